// Package store contains all entity persistence. Every function takes the
// *gorm.DB it should run against, so callers can pass either the shared
// handle or an open transaction. No other code path mutates these tables.
package store

import (
	"errors"

	"gorm.io/gorm"

	"ecom-service/internal/apperr"
	"ecom-service/internal/model"
)

// GetTenantByName looks a tenant up case-insensitively.
func GetTenantByName(db *gorm.DB, name string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := db.Where("LOWER(name) = LOWER(?)", name).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Tenant", name)
		}
		return nil, apperr.Internal("failed to query tenant").WithCause(err)
	}
	return &tenant, nil
}

func GetTenantByID(db *gorm.DB, id uint) (*model.Tenant, error) {
	var tenant model.Tenant
	err := db.First(&tenant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Tenant", id)
		}
		return nil, apperr.Internal("failed to query tenant").WithCause(err)
	}
	return &tenant, nil
}

// CreateTenant inserts a tenant, rejecting names that collide under any casing.
func CreateTenant(db *gorm.DB, name string) (*model.Tenant, error) {
	if _, err := GetTenantByName(db, name); err == nil {
		return nil, apperr.AlreadyExists("Tenant", "name")
	}
	tenant := model.Tenant{Name: name}
	if err := db.Create(&tenant).Error; err != nil {
		return nil, apperr.Internal("failed to create tenant").WithCause(err)
	}
	return &tenant, nil
}

// DeleteTenant removes a tenant as an explicit ordered sequence inside one
// transaction: detach users first, then remove the tenant's products together
// with their favourites and order items, then the tenant row itself. The
// ordering avoids depending on database-level cascade evaluation.
func DeleteTenant(db *gorm.DB, tenant *model.Tenant) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).
			Where("tenant_id = ?", tenant.ID).
			Update("tenant_id", nil).Error; err != nil {
			return err
		}

		var productIDs []uint
		if err := tx.Model(&model.Product{}).
			Where("tenant_id = ?", tenant.ID).
			Pluck("id", &productIDs).Error; err != nil {
			return err
		}
		if len(productIDs) > 0 {
			if err := tx.Where("product_id IN ?", productIDs).Delete(&model.Favourite{}).Error; err != nil {
				return err
			}
			if err := tx.Where("product_id IN ?", productIDs).Delete(&model.OrderItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("tenant_id = ?", tenant.ID).Delete(&model.Product{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&model.Tenant{}, tenant.ID).Error
	})
	if err != nil {
		return apperr.Internal("failed to delete tenant").WithCause(err)
	}
	return nil
}

// ListTenants returns tenants with bounded pagination.
func ListTenants(db *gorm.DB, skip, limit int) ([]model.Tenant, error) {
	var tenants []model.Tenant
	if err := db.Order("id").Offset(skip).Limit(limit).Find(&tenants).Error; err != nil {
		return nil, apperr.Internal("failed to list tenants").WithCause(err)
	}
	return tenants, nil
}
