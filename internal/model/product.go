package model

import (
	"time"
)

// Product belongs to exactly one tenant. (tenant_id, lower(name)) is unique;
// the store layer checks it case-insensitively before insert.
type Product struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Name              string    `json:"name" gorm:"type:varchar(200);not null;index"`
	Description       string    `json:"description" gorm:"type:text"`
	Category          string    `json:"category" gorm:"type:varchar(100);index"`
	Price             float64   `json:"price" gorm:"not null"`
	AvailableQuantity int       `json:"available_quantity" gorm:"not null;default:0"`
	TenantID          uint      `json:"tenant_id" gorm:"index;not null"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"-"`

	Tenant *Tenant `json:"-" gorm:"foreignKey:TenantID"`
}
