// Package authz holds the stateless authorization decisions. Guards take the
// resolved user and the target tenant scope and either allow or return
// apperr.PermissionDenied; they never touch the database.
package authz

import (
	"ecom-service/internal/apperr"
	"ecom-service/internal/model"
)

// RequirePlatformAdmin allows only the unrestricted platform role.
func RequirePlatformAdmin(u *model.User) error {
	if !u.IsPlatformAdmin() {
		return apperr.PermissionDenied("platform admin required")
	}
	return nil
}

// RequireTenantAdmin allows platform admins anywhere and tenant admins within
// their own tenant.
func RequireTenantAdmin(u *model.User, tenant *model.Tenant) error {
	if u.IsPlatformAdmin() {
		return nil
	}
	if u.Role != model.RoleTenantAdmin {
		return apperr.PermissionDenied("tenant admin required")
	}
	if !u.MemberOf(tenant.ID) {
		return apperr.PermissionDenied("tenant admin for this tenant required")
	}
	return nil
}

// RequireTenantMember allows platform admins anywhere, and tenant admins or
// ordinary users attached to the given tenant.
func RequireTenantMember(u *model.User, tenant *model.Tenant) error {
	if u.IsPlatformAdmin() {
		return nil
	}
	if !u.MemberOf(tenant.ID) {
		return apperr.PermissionDenied("access to this tenant is forbidden")
	}
	if u.Role != model.RoleTenantAdmin && u.Role != model.RoleUser {
		return apperr.PermissionDenied("tenant user role required")
	}
	return nil
}

// CanManageProduct gates product create/update/delete: platform admin, or
// tenant admin of the owning tenant. Favouriting and ordering are deliberately
// not gated per tenant.
func CanManageProduct(u *model.User, product *model.Product) error {
	if u.IsPlatformAdmin() {
		return nil
	}
	if u.Role != model.RoleTenantAdmin || !u.MemberOf(product.TenantID) {
		return apperr.PermissionDenied("only the tenant admin can manage this product")
	}
	return nil
}
