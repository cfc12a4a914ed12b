package identity

import (
	"context"

	"ecom-service/internal/model"
)

// Claims are the identity attributes extracted from a verified token.
// Roles come from the provider's realm role list; Role, when set, is an
// explicit override claim and wins over the derived role.
type Claims struct {
	Username   string
	Roles      []string
	Role       string
	TenantName string
}

// Verifier checks a bearer token and returns its claims. Implementations wrap
// the external identity provider; a fake is injected in tests.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// DeriveRole maps the claims to a platform role. Precedence is
// platform_admin > tenant_admin > user, first match wins; an explicit role
// claim overrides the derived value.
func (c *Claims) DeriveRole() string {
	role := model.RoleUser
	for _, r := range c.Roles {
		if r == model.RolePlatformAdmin {
			role = model.RolePlatformAdmin
			break
		}
		if r == model.RoleTenantAdmin && role != model.RolePlatformAdmin {
			role = model.RoleTenantAdmin
		}
	}
	if c.Role != "" {
		role = c.Role
	}
	return role
}
