package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecom-service/internal/apperr"
	"ecom-service/pkg/config"
)

// fakeKeycloak is a minimal in-memory Keycloak admin API.
type fakeKeycloak struct {
	mux        *http.ServeMux
	server     *httptest.Server
	users      map[string]string // username -> id
	roles      map[string][]string
	tokenCalls int
	rejectNext bool // answer the next admin request with 401
}

func newFakeKeycloak(t *testing.T) *fakeKeycloak {
	t.Helper()
	f := &fakeKeycloak{
		mux:   http.NewServeMux(),
		users: map[string]string{},
		roles: map[string][]string{},
	}

	f.mux.HandleFunc("/realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, _ *http.Request) {
		f.tokenCalls++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "admin-token", "token_type": "Bearer", "expires_in": 60,
		})
	})
	f.mux.HandleFunc("/realms/shop/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostFormValue("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "invalid_grant", "error_description": "Invalid user credentials",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "user-token", "token_type": "Bearer", "expires_in": 300,
		})
	})
	f.mux.HandleFunc("/admin/realms/shop/users", func(w http.ResponseWriter, r *http.Request) {
		if f.intercept(w) {
			return
		}
		switch r.Method {
		case http.MethodPost:
			var payload struct {
				Username string `json:"username"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			if _, exists := f.users[payload.Username]; exists {
				w.WriteHeader(http.StatusConflict)
				return
			}
			f.users[payload.Username] = "id-" + payload.Username
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			username := r.URL.Query().Get("username")
			result := []map[string]string{}
			if id, ok := f.users[username]; ok {
				result = append(result, map[string]string{"id": id, "username": username})
			}
			_ = json.NewEncoder(w).Encode(result)
		}
	})
	f.mux.HandleFunc("/admin/realms/shop/users/", func(w http.ResponseWriter, r *http.Request) {
		if f.intercept(w) {
			return
		}
		if r.Method == http.MethodDelete && !strings.HasSuffix(r.URL.Path, "/role-mappings/realm") {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		// role-mappings/realm
		var reps []map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reps))
		require.Len(t, reps, 1)
		userID := pathSegment(r.URL.Path, 4)
		role := reps[0]["name"]
		switch r.Method {
		case http.MethodPost:
			f.roles[userID] = append(f.roles[userID], role)
		case http.MethodDelete:
			kept := f.roles[userID][:0]
			for _, existing := range f.roles[userID] {
				if existing != role {
					kept = append(kept, existing)
				}
			}
			f.roles[userID] = kept
		}
		w.WriteHeader(http.StatusNoContent)
	})
	f.mux.HandleFunc("/admin/realms/shop/roles/", func(w http.ResponseWriter, r *http.Request) {
		if f.intercept(w) {
			return
		}
		name := pathSegment(r.URL.Path, 4)
		if !isAppRole(name) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "role-" + name, "name": name})
	})

	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeKeycloak) intercept(w http.ResponseWriter) bool {
	if f.rejectNext {
		f.rejectNext = false
		w.WriteHeader(http.StatusUnauthorized)
		return true
	}
	return false
}

func pathSegment(path string, n int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if n < len(parts) {
		return parts[n]
	}
	return ""
}

func (f *fakeKeycloak) client() *AdminClient {
	return NewAdminClient(&config.KeycloakConfig{
		AdminURL:      f.server.URL,
		Realm:         "shop",
		AdminUsername: "admin",
		AdminPassword: "admin",
		ClientID:      "ecom-service",
		Timeout:       5 * time.Second,
	}, zap.NewNop())
}

func TestAdminCreateUserAssignsRole(t *testing.T) {
	f := newFakeKeycloak(t)
	a := f.client()

	require.NoError(t, a.CreateUser(context.Background(), "alice", "secret", "user"))
	assert.Equal(t, []string{"user"}, f.roles["id-alice"])

	// An existing provider-side user is tolerated.
	require.NoError(t, a.CreateUser(context.Background(), "alice", "secret", "user"))
}

func TestAdminUpdateUserRoleSwapsRoles(t *testing.T) {
	f := newFakeKeycloak(t)
	a := f.client()
	require.NoError(t, a.CreateUser(context.Background(), "alice", "secret", "user"))

	require.NoError(t, a.UpdateUserRole(context.Background(), "alice", "user", "tenant_admin"))
	assert.Equal(t, []string{"tenant_admin"}, f.roles["id-alice"])
}

func TestAdminUpdateUserRoleUnknownUser(t *testing.T) {
	f := newFakeKeycloak(t)
	a := f.client()

	err := a.UpdateUserRole(context.Background(), "ghost", "user", "tenant_admin")
	require.ErrorIs(t, err, apperr.NotFound("User", "ghost"))
}

func TestAdminDeleteUser(t *testing.T) {
	f := newFakeKeycloak(t)
	a := f.client()
	require.NoError(t, a.CreateUser(context.Background(), "alice", "secret", "user"))

	require.NoError(t, a.DeleteUser(context.Background(), "alice"))
}

func TestAdminRetriesOnceAfter401(t *testing.T) {
	f := newFakeKeycloak(t)
	a := f.client()
	require.NoError(t, a.CreateUser(context.Background(), "alice", "secret", "user"))
	initialTokenCalls := f.tokenCalls

	// The provider invalidates the token; the next call gets a 401 and the
	// client must refresh and retry transparently.
	f.rejectNext = true
	require.NoError(t, a.DeleteUser(context.Background(), "alice"))
	assert.Equal(t, initialTokenCalls+1, f.tokenCalls)
}

func TestAdminConcurrentRequests(t *testing.T) {
	f := newFakeKeycloak(t)
	a := f.client()
	f.users["alice"] = "id-alice"

	// Handlers share one client; parallel lookups must not trip the race
	// detector on the cached admin token.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := a.getUserID(context.Background(), "alice")
			assert.NoError(t, err)
			assert.Equal(t, "id-alice", id)
		}()
	}
	wg.Wait()
}

func TestAdminLogin(t *testing.T) {
	f := newFakeKeycloak(t)
	a := f.client()

	tokens, err := a.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-token", tokens.AccessToken)
	assert.Equal(t, 300, tokens.ExpiresIn)
}

func TestAdminLoginBadCredentials(t *testing.T) {
	f := newFakeKeycloak(t)
	a := f.client()

	_, err := a.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, apperr.InvalidToken(""))
	assert.Contains(t, err.Error(), "Invalid user credentials")
}

func TestAdminUnreachableProvider(t *testing.T) {
	a := NewAdminClient(&config.KeycloakConfig{
		AdminURL: "http://127.0.0.1:1",
		Realm:    "shop",
		Timeout:  time.Second,
	}, zap.NewNop())

	err := a.CreateUser(context.Background(), "alice", "secret", "user")
	require.ErrorIs(t, err, apperr.Service(""))

	_, err = a.Login(context.Background(), "alice", "secret")
	require.ErrorIs(t, err, apperr.Service(""))
}
