package store

import (
	"errors"

	"gorm.io/gorm"

	"ecom-service/internal/apperr"
	"ecom-service/internal/model"
)

func GetUserByUsername(db *gorm.DB, username string) (*model.User, error) {
	var user model.User
	err := db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User", username)
		}
		return nil, apperr.Internal("failed to query user").WithCause(err)
	}
	return &user, nil
}

func GetUserByID(db *gorm.DB, id uint) (*model.User, error) {
	var user model.User
	err := db.First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User", id)
		}
		return nil, apperr.Internal("failed to query user").WithCause(err)
	}
	return &user, nil
}

// CreateUser inserts a user with the given role and optional tenant link.
func CreateUser(db *gorm.DB, username, role string, tenant *model.Tenant) (*model.User, error) {
	if _, err := GetUserByUsername(db, username); err == nil {
		return nil, apperr.AlreadyExists("User", "username")
	}
	user := model.User{Username: username, Role: role}
	if tenant != nil {
		user.TenantID = &tenant.ID
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, apperr.Internal("failed to create user").WithCause(err)
	}
	return &user, nil
}

// GetTenantUser fetches a user that must belong to the given tenant.
func GetTenantUser(db *gorm.DB, tenantID, userID uint) (*model.User, error) {
	var user model.User
	err := db.Where("id = ? AND tenant_id = ?", userID, tenantID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("User", userID)
		}
		return nil, apperr.Internal("failed to query user").WithCause(err)
	}
	return &user, nil
}

// ListTenantUsers returns the users attached to a tenant.
func ListTenantUsers(db *gorm.DB, tenantID uint, skip, limit int) ([]model.User, error) {
	var users []model.User
	err := db.Where("tenant_id = ?", tenantID).Order("id").Offset(skip).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, apperr.Internal("failed to list tenant users").WithCause(err)
	}
	return users, nil
}

// SetUserRole applies the role/tenant coupling rule: tenant_admin is attached
// to the given tenant, user and platform_admin carry no tenant.
func SetUserRole(db *gorm.DB, user *model.User, role string, tenant *model.Tenant) error {
	user.Role = role
	if role == model.RoleTenantAdmin {
		user.TenantID = &tenant.ID
	} else {
		user.TenantID = nil
	}
	if err := db.Save(user).Error; err != nil {
		return apperr.Internal("failed to update user").WithCause(err)
	}
	return nil
}

// DeleteUser removes a user together with its favourites and orders.
func DeleteUser(db *gorm.DB, user *model.User) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&model.Favourite{}).Error; err != nil {
			return err
		}
		var orderIDs []uint
		if err := tx.Model(&model.Order{}).Where("user_id = ?", user.ID).Pluck("id", &orderIDs).Error; err != nil {
			return err
		}
		if len(orderIDs) > 0 {
			if err := tx.Where("order_id IN ?", orderIDs).Delete(&model.OrderItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", user.ID).Delete(&model.Order{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.User{}, user.ID).Error
	})
	if err != nil {
		return apperr.Internal("failed to delete user").WithCause(err)
	}
	return nil
}
