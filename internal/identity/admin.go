package identity

import (
	"context"
)

// TokenSet is the credential exchange result returned by the provider's
// token endpoint.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Admin is the identity-provider management surface used for signup, login
// and role mirroring. The production implementation talks to the Keycloak
// admin API; tests inject a fake.
type Admin interface {
	// CreateUser provisions a user with a password and role. A hard failure
	// must abort the local operation.
	CreateUser(ctx context.Context, username, password, role string) error
	// UpdateUserRole swaps the user's realm role. Callers treat failures as
	// best-effort: logged, never rolling back the local commit.
	UpdateUserRole(ctx context.Context, username, oldRole, newRole string) error
	// DeleteUser removes the user from the provider.
	DeleteUser(ctx context.Context, username string) error
	// Login exchanges credentials for tokens via the password grant.
	Login(ctx context.Context, username, password string) (*TokenSet, error)
}
