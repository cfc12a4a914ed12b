package store

import (
	"errors"

	"gorm.io/gorm"

	"ecom-service/internal/apperr"
	"ecom-service/internal/model"
)

// AddFavourite inserts the (user, product) pair. Any authenticated user may
// favourite any tenant's product.
func AddFavourite(db *gorm.DB, user *model.User, product *model.Product) error {
	var count int64
	if err := db.Model(&model.Favourite{}).
		Where("user_id = ? AND product_id = ?", user.ID, product.ID).
		Count(&count).Error; err != nil {
		return apperr.Internal("failed to check favourite").WithCause(err)
	}
	if count > 0 {
		return apperr.AlreadyExists("Favourite", "product")
	}
	fav := model.Favourite{UserID: user.ID, ProductID: product.ID}
	if err := db.Create(&fav).Error; err != nil {
		return apperr.Internal("failed to add favourite").WithCause(err)
	}
	return nil
}

// RemoveFavourite deletes the pair, reporting NotFound when it was absent.
func RemoveFavourite(db *gorm.DB, user *model.User, product *model.Product) error {
	result := db.Where("user_id = ? AND product_id = ?", user.ID, product.ID).Delete(&model.Favourite{})
	if result.Error != nil {
		return apperr.Internal("failed to remove favourite").WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("Favourite", product.ID)
	}
	return nil
}

// ListFavourites returns the user's favourite products in insertion order.
func ListFavourites(db *gorm.DB, user *model.User, skip, limit int) ([]model.Product, error) {
	var products []model.Product
	err := db.Model(&model.Product{}).
		Joins("JOIN favourites ON favourites.product_id = products.id").
		Where("favourites.user_id = ?", user.ID).
		Order("favourites.id").
		Offset(skip).Limit(limit).
		Find(&products).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []model.Product{}, nil
		}
		return nil, apperr.Internal("failed to list favourites").WithCause(err)
	}
	return products, nil
}
