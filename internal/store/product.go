package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"ecom-service/internal/apperr"
	"ecom-service/internal/model"
)

// ProductData carries the mutable product fields through create and update.
type ProductData struct {
	Name              string
	Description       string
	Category          string
	Price             float64
	AvailableQuantity int
}

// ProductFilter holds the optional list filters.
type ProductFilter struct {
	Category string
	Search   string
}

func (d *ProductData) validate() error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return apperr.Validation("product name cannot be empty")
	}
	if d.Price <= 0 {
		return apperr.Validation("price must be greater than 0")
	}
	if d.AvailableQuantity < 0 {
		return apperr.Validation("available_quantity must not be negative")
	}
	return nil
}

func GetProduct(db *gorm.DB, id uint) (*model.Product, error) {
	var product model.Product
	err := db.First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Product", id)
		}
		return nil, apperr.Internal("failed to query product").WithCause(err)
	}
	return &product, nil
}

// CreateProduct inserts a product for the tenant. Names collide
// case-insensitively within one tenant; the same name in another tenant is
// allowed.
func CreateProduct(db *gorm.DB, tenant *model.Tenant, data ProductData) (*model.Product, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	var count int64
	if err := db.Model(&model.Product{}).
		Where("tenant_id = ? AND LOWER(name) = LOWER(?)", tenant.ID, data.Name).
		Count(&count).Error; err != nil {
		return nil, apperr.Internal("failed to check product name").WithCause(err)
	}
	if count > 0 {
		return nil, apperr.AlreadyExists("Product", "name")
	}

	product := model.Product{
		Name:              data.Name,
		Description:       data.Description,
		Category:          data.Category,
		Price:             data.Price,
		AvailableQuantity: data.AvailableQuantity,
		TenantID:          tenant.ID,
	}
	if err := db.Create(&product).Error; err != nil {
		return nil, apperr.Internal("failed to create product").WithCause(err)
	}
	return &product, nil
}

// UpdateProduct overwrites the mutable fields. The caller must have passed
// the authorization guard before calling.
func UpdateProduct(db *gorm.DB, product *model.Product, data ProductData) (*model.Product, error) {
	if err := data.validate(); err != nil {
		return nil, err
	}

	if !strings.EqualFold(product.Name, data.Name) {
		var count int64
		if err := db.Model(&model.Product{}).
			Where("tenant_id = ? AND LOWER(name) = LOWER(?) AND id != ?", product.TenantID, data.Name, product.ID).
			Count(&count).Error; err != nil {
			return nil, apperr.Internal("failed to check product name").WithCause(err)
		}
		if count > 0 {
			return nil, apperr.AlreadyExists("Product", "name")
		}
	}

	product.Name = data.Name
	product.Description = data.Description
	product.Category = data.Category
	product.Price = data.Price
	product.AvailableQuantity = data.AvailableQuantity
	if err := db.Save(product).Error; err != nil {
		return nil, apperr.Internal("failed to update product").WithCause(err)
	}
	return product, nil
}

// DeleteProduct removes the product along with its favourites and order items
// in one transaction. Order items lose their product link permanently; the
// snapshotted unit_price on remaining items is all that survives.
func DeleteProduct(db *gorm.DB, product *model.Product) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", product.ID).Delete(&model.Favourite{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Product{}, product.ID).Error
	})
	if err != nil {
		return apperr.Internal("failed to delete product").WithCause(err)
	}
	return nil
}

func applyProductFilter(query *gorm.DB, filter ProductFilter) *gorm.DB {
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	return query
}

// ListProducts returns the tenant's products with filters and pagination.
func ListProducts(db *gorm.DB, tenant *model.Tenant, filter ProductFilter, skip, limit int) ([]model.Product, error) {
	var products []model.Product
	query := applyProductFilter(db.Where("tenant_id = ?", tenant.ID), filter)
	if err := query.Order("id").Offset(skip).Limit(limit).Find(&products).Error; err != nil {
		return nil, apperr.Internal("failed to list products").WithCause(err)
	}
	return products, nil
}

// ListAllProducts is the global public catalog across all tenants.
func ListAllProducts(db *gorm.DB, filter ProductFilter, skip, limit int) ([]model.Product, error) {
	var products []model.Product
	query := applyProductFilter(db.Model(&model.Product{}), filter)
	if err := query.Order("id").Offset(skip).Limit(limit).Find(&products).Error; err != nil {
		return nil, apperr.Internal("failed to list products").WithCause(err)
	}
	return products, nil
}
