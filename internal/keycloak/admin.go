package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ecom-service/internal/apperr"
	"ecom-service/internal/identity"
	"ecom-service/pkg/config"
)

// AdminClient talks to the Keycloak admin API. It acquires an admin token
// from the master realm lazily and retries a request once after a 401 with a
// fresh token. It implements identity.Admin.
type AdminClient struct {
	baseURL       string
	realm         string
	adminUsername string
	adminPassword string
	clientID      string
	clientSecret  string

	httpClient *http.Client
	logger     *zap.Logger

	// One client is shared by every request goroutine; the cached admin
	// token is guarded the same way the Verifier guards its key cache.
	mu    sync.Mutex
	token string
}

func NewAdminClient(cfg *config.KeycloakConfig, logger *zap.Logger) *AdminClient {
	return &AdminClient{
		baseURL:       cfg.AdminURL,
		realm:         cfg.Realm,
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		logger:        logger,
	}
}

// Login exchanges user credentials for tokens via the realm's password grant.
func (a *AdminClient) Login(ctx context.Context, username, password string) (*identity.TokenSet, error) {
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", a.baseURL, a.realm)
	form := url.Values{}
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.clientSecret)
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperr.Service("failed to build login request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("login request to identity provider failed", zap.Error(err))
		return nil, apperr.Service("identity provider unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Service("failed to read identity provider response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		var kcErr struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		detail := "invalid credentials"
		if json.Unmarshal(body, &kcErr) == nil && kcErr.ErrorDescription != "" {
			detail = kcErr.ErrorDescription
		}
		a.logger.Warn("login rejected by identity provider",
			zap.String("username", username),
			zap.Int("status", resp.StatusCode))
		return nil, apperr.InvalidToken(detail)
	}

	var tokens identity.TokenSet
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, apperr.Service("failed to parse token response").WithCause(err)
	}
	return &tokens, nil
}

// CreateUser provisions a user in the realm and assigns its role. A user that
// already exists in the provider is not an error; the caller syncs locally.
func (a *AdminClient) CreateUser(ctx context.Context, username, password, role string) error {
	usersURL := fmt.Sprintf("%s/admin/realms/%s/users", a.baseURL, a.realm)
	payload := map[string]interface{}{
		"username":      username,
		"enabled":       true,
		"emailVerified": true,
		"email":         fmt.Sprintf("%s@ecommerce.local", username),
		"credentials": []map[string]interface{}{
			{"type": "password", "value": password, "temporary": false},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Service("failed to encode user payload").WithCause(err)
	}

	resp, err := a.do(ctx, http.MethodPost, usersURL, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		a.logger.Info("user already exists in identity provider", zap.String("username", username))
	case resp.StatusCode >= 400:
		return apperr.Service(fmt.Sprintf("identity provider rejected user creation (status %d)", resp.StatusCode))
	}

	userID, err := a.getUserID(ctx, username)
	if err != nil {
		return err
	}
	if userID == "" {
		return apperr.Service("created user not found in identity provider")
	}
	return a.assignRole(ctx, userID, role)
}

// UpdateUserRole removes the old application role and assigns the new one.
func (a *AdminClient) UpdateUserRole(ctx context.Context, username, oldRole, newRole string) error {
	userID, err := a.getUserID(ctx, username)
	if err != nil {
		return err
	}
	if userID == "" {
		return apperr.NotFound("User", username)
	}

	// Only touch the application's own roles, never Keycloak defaults.
	if isAppRole(oldRole) {
		if err := a.removeRole(ctx, userID, oldRole); err != nil {
			a.logger.Debug("old role removal skipped", zap.String("role", oldRole), zap.Error(err))
		}
	}
	if isAppRole(newRole) {
		return a.assignRole(ctx, userID, newRole)
	}
	return nil
}

// DeleteUser removes the user from the provider.
func (a *AdminClient) DeleteUser(ctx context.Context, username string) error {
	userID, err := a.getUserID(ctx, username)
	if err != nil {
		return err
	}
	if userID == "" {
		return apperr.NotFound("User", username)
	}
	deleteURL := fmt.Sprintf("%s/admin/realms/%s/users/%s", a.baseURL, a.realm, userID)
	resp, err := a.do(ctx, http.MethodDelete, deleteURL, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return apperr.Service(fmt.Sprintf("identity provider rejected user deletion (status %d)", resp.StatusCode))
	}
	return nil
}

func isAppRole(role string) bool {
	switch role {
	case "platform_admin", "tenant_admin", "user":
		return true
	}
	return false
}

func (a *AdminClient) getUserID(ctx context.Context, username string) (string, error) {
	usersURL := fmt.Sprintf("%s/admin/realms/%s/users", a.baseURL, a.realm)
	params := url.Values{}
	params.Set("username", username)
	params.Set("exact", "true")

	resp, err := a.do(ctx, http.MethodGet, usersURL, params, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Service(fmt.Sprintf("identity provider user lookup failed (status %d)", resp.StatusCode))
	}

	var users []struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return "", apperr.Service("failed to parse user lookup response").WithCause(err)
	}
	if len(users) == 0 {
		return "", nil
	}
	return users[0].ID, nil
}

func (a *AdminClient) roleRepresentation(ctx context.Context, roleName string) (json.RawMessage, error) {
	roleURL := fmt.Sprintf("%s/admin/realms/%s/roles/%s", a.baseURL, a.realm, roleName)
	resp, err := a.do(ctx, http.MethodGet, roleURL, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Service(fmt.Sprintf("role %s not found in identity provider", roleName))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Service("failed to read role response").WithCause(err)
	}
	return raw, nil
}

func (a *AdminClient) assignRole(ctx context.Context, userID, roleName string) error {
	return a.mapRole(ctx, http.MethodPost, userID, roleName)
}

func (a *AdminClient) removeRole(ctx context.Context, userID, roleName string) error {
	return a.mapRole(ctx, http.MethodDelete, userID, roleName)
}

func (a *AdminClient) mapRole(ctx context.Context, method, userID, roleName string) error {
	roleRep, err := a.roleRepresentation(ctx, roleName)
	if err != nil {
		return err
	}
	mappingURL := fmt.Sprintf("%s/admin/realms/%s/users/%s/role-mappings/realm", a.baseURL, a.realm, userID)
	body := append(append([]byte("["), roleRep...), ']')

	resp, err := a.do(ctx, method, mappingURL, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return apperr.Service(fmt.Sprintf("identity provider role mapping failed (status %d)", resp.StatusCode))
	}
	return nil
}

// do performs an authenticated admin request, refreshing the admin token and
// retrying once when the provider answers 401.
func (a *AdminClient) do(ctx context.Context, method, rawURL string, params url.Values, body []byte) (*http.Response, error) {
	resp, err := a.doOnce(ctx, method, rawURL, params, body, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return a.doOnce(ctx, method, rawURL, params, body, true)
	}
	return resp, nil
}

func (a *AdminClient) doOnce(ctx context.Context, method, rawURL string, params url.Values, body []byte, refreshToken bool) (*http.Response, error) {
	token, err := a.bearerToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	if params != nil {
		rawURL = rawURL + "?" + params.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, apperr.Service("failed to build admin request").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("identity provider admin request failed",
			zap.String("method", method),
			zap.Error(err))
		return nil, apperr.Service("identity provider unreachable").WithCause(err)
	}
	return resp, nil
}

// bearerToken returns the cached admin token, acquiring a fresh one under the
// lock when the cache is empty or a refresh was requested.
func (a *AdminClient) bearerToken(ctx context.Context, refresh bool) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == "" || refresh {
		token, err := a.adminToken(ctx)
		if err != nil {
			return "", err
		}
		a.token = token
	}
	return a.token, nil
}

// adminToken obtains an admin access token from the master realm.
func (a *AdminClient) adminToken(ctx context.Context) (string, error) {
	tokenURL := fmt.Sprintf("%s/realms/master/protocol/openid-connect/token", a.baseURL)
	form := url.Values{}
	form.Set("client_id", "admin-cli")
	form.Set("username", a.adminUsername)
	form.Set("password", a.adminPassword)
	form.Set("grant_type", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperr.Service("failed to build token request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", apperr.Service("identity provider unreachable").WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Service(fmt.Sprintf("admin token request failed (status %d)", resp.StatusCode))
	}

	var tokens identity.TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", apperr.Service("failed to parse admin token response").WithCause(err)
	}
	return tokens.AccessToken, nil
}
