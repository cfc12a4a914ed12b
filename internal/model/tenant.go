package model

import (
	"time"
)

// Tenant is an isolated store namespace owning its own products.
// Name uniqueness is case-insensitive and enforced by the store layer so the
// behavior is identical across database engines.
type Tenant struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}
