package model

import (
	"time"
)

// Order is tenant-agnostic: a single order may contain products owned by
// different tenants. Totals are computed by the order engine, never by callers.
type Order struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"index;not null"`
	TotalQuantity int       `json:"total_quantity" gorm:"not null;default:0"`
	TotalAmount   float64   `json:"total_amount" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
}

// OrderItem snapshots the unit price at order time. The product link is weak:
// deleting the product removes its order items, so unit_price is the only
// price detail that survives.
type OrderItem struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	OrderID   uint    `json:"-" gorm:"index;not null"`
	ProductID uint    `json:"product_id" gorm:"index;not null"`
	Quantity  int     `json:"quantity" gorm:"not null"`
	UnitPrice float64 `json:"unit_price" gorm:"not null"`
}
