package model

import (
	"time"
)

// Roles recognized by the platform. The identity token is the source of truth;
// the local row is a cache that is reconciled on every authenticated request.
const (
	RoleUser          = "user"
	RoleTenantAdmin   = "tenant_admin"
	RolePlatformAdmin = "platform_admin"
)

// User is the locally cached identity record. TenantID is a weak reference:
// deleting the tenant detaches the user instead of deleting it.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	Role      string    `json:"role" gorm:"type:varchar(50);not null;default:'user'"`
	TenantID  *uint     `json:"tenant_id" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Tenant *Tenant `json:"-" gorm:"foreignKey:TenantID"`
}

// IsPlatformAdmin reports whether the user holds the unrestricted role.
func (u *User) IsPlatformAdmin() bool {
	return u.Role == RolePlatformAdmin
}

// MemberOf reports whether the user is attached to the given tenant.
func (u *User) MemberOf(tenantID uint) bool {
	return u.TenantID != nil && *u.TenantID == tenantID
}

// ValidRole reports whether role is one of the recognized role names.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleTenantAdmin, RolePlatformAdmin:
		return true
	}
	return false
}
