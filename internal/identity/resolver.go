package identity

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ecom-service/internal/apperr"
	"ecom-service/internal/model"
	"ecom-service/internal/store"
)

// Resolver turns a raw Authorization header into a local user record,
// provisioning the user on first sight and reconciling role/tenant with the
// token claims on every request.
type Resolver struct {
	db       *gorm.DB
	verifier Verifier
	log      *zap.Logger
}

func NewResolver(db *gorm.DB, verifier Verifier, log *zap.Logger) *Resolver {
	return &Resolver{db: db, verifier: verifier, log: log}
}

// BearerToken extracts the token from an Authorization header value.
// Returns an empty string when the header is absent or not a Bearer scheme.
func BearerToken(authorization string) string {
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Resolve verifies the header's bearer token and returns the matching local
// user. Exactly one user row may be created or updated per call.
func (r *Resolver) Resolve(ctx context.Context, authorization string) (*model.User, error) {
	token := BearerToken(authorization)
	if token == "" {
		return nil, apperr.Unauthenticated("missing Authorization header. Provide 'Authorization: Bearer <token>'")
	}

	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if claims.Username == "" {
		return nil, apperr.InvalidToken("token missing username/sub claim")
	}

	role := claims.DeriveRole()

	// A tenant claim that matches no local tenant is silently ignored; the
	// request proceeds without a tenant attached.
	var tenant *model.Tenant
	if claims.TenantName != "" {
		if t, err := store.GetTenantByName(r.db, claims.TenantName); err == nil {
			tenant = t
		}
	}

	user, err := store.GetUserByUsername(r.db, claims.Username)
	if errors.Is(err, apperr.NotFound("User", claims.Username)) {
		created, cerr := store.CreateUser(r.db, claims.Username, role, tenant)
		if cerr != nil {
			return nil, cerr
		}
		r.log.Info("provisioned user from token",
			zap.String("username", created.Username),
			zap.String("role", created.Role))
		return created, nil
	}
	if err != nil {
		return nil, err
	}

	// Reconcile stored state with the token in one place. Role follows the
	// token whenever it differs. Tenant follows the token only on an explicit
	// mismatch; the absence of a tenant claim never clears a stored tenant.
	updated := false
	if user.Role != role {
		user.Role = role
		updated = true
	}
	if tenant != nil && !user.MemberOf(tenant.ID) {
		user.TenantID = &tenant.ID
		user.Tenant = tenant
		updated = true
	}
	if updated {
		if err := r.db.Save(user).Error; err != nil {
			return nil, apperr.Internal("failed to sync user from token").WithCause(err)
		}
		r.log.Info("synced user from token claims",
			zap.String("username", user.Username),
			zap.String("role", user.Role))
	}

	return user, nil
}
