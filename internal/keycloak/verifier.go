// Package keycloak wraps the external identity provider: JWT verification
// against the realm's JWKS endpoint, and the admin API used to mirror user
// and role changes. Both sides use short HTTP timeouts and fail closed.
package keycloak

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"ecom-service/internal/apperr"
	"ecom-service/internal/identity"
	"ecom-service/pkg/config"
)

// Verifier validates bearer tokens against the realm's published signing keys.
// It implements identity.Verifier.
type Verifier struct {
	jwksURL  string
	issuer   string
	audience string

	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	cacheTTL  time.Duration
}

// NewVerifier builds a verifier from the Keycloak configuration section.
func NewVerifier(cfg *config.KeycloakConfig, logger *zap.Logger) *Verifier {
	return &Verifier{
		jwksURL:    cfg.JWKSURL,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		cacheTTL:   cfg.JWKSCacheTTL,
	}
}

type jwksDocument struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

type tokenClaims struct {
	PreferredUsername string `json:"preferred_username"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	Role       string `json:"role"`
	Tenant     string `json:"tenant"`
	TenantName string `json:"tenant_name"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token, returning its identity claims.
// Any failure, including a JWKS fetch error, surfaces as InvalidToken so the
// request is rejected rather than hung.
func (v *Verifier) Verify(ctx context.Context, token string) (*identity.Claims, error) {
	if v.jwksURL == "" {
		return nil, apperr.InvalidToken("token verification is not configured")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.signingKey(ctx, kid)
	})
	if err != nil {
		v.logger.Warn("JWT verification failed", zap.Error(err))
		return nil, apperr.InvalidToken("invalid or expired JWT token").WithCause(err)
	}
	if !parsed.Valid {
		return nil, apperr.InvalidToken("invalid or expired JWT token")
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, apperr.InvalidToken("token issuer mismatch")
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, apperr.InvalidToken("token audience mismatch")
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Subject
	}
	tenantName := claims.Tenant
	if tenantName == "" {
		tenantName = claims.TenantName
	}

	return &identity.Claims{
		Username:   username,
		Roles:      claims.RealmAccess.Roles,
		Role:       claims.Role,
		TenantName: tenantName,
	}, nil
}

// signingKey returns the cached key for kid, refetching the JWKS document when
// the cache is stale or the kid is unknown (key rotation).
func (v *Verifier) signingKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fresh := time.Since(v.fetchedAt) < v.cacheTTL
	if key, ok := v.keys[kid]; ok && fresh {
		return key, nil
	}
	if err := v.fetchLocked(ctx); err != nil {
		// Staleness inside the TTL window is acceptable; a stale key that
		// still matches beats failing the request on a transient fetch error.
		if key, ok := v.keys[kid]; ok {
			return key, nil
		}
		return nil, err
	}
	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no signing key found for kid %q", kid)
	}
	return key, nil
}

func (v *Verifier) fetchLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Error("failed to fetch JWKS", zap.String("url", v.jwksURL), zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return err
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			v.logger.Warn("skipping unparsable JWKS key", zap.String("kid", k.Kid), zap.Error(err))
			continue
		}
		keys[k.Kid] = pub
	}

	v.keys = keys
	v.fetchedAt = time.Now()
	v.logger.Debug("JWKS refreshed", zap.Int("keys", len(keys)))
	return nil
}

func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nb),
		E: int(new(big.Int).SetBytes(eb).Int64()),
	}, nil
}
