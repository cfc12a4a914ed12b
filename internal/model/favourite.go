package model

import (
	"time"
)

// Favourite is the user<->product relation. The pair is unique and the
// auto-increment ID preserves insertion order for stable listing.
type Favourite struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:uq_user_product_favourite;not null"`
	ProductID uint      `json:"product_id" gorm:"uniqueIndex:uq_user_product_favourite;not null"`
	CreatedAt time.Time `json:"created_at"`
}
