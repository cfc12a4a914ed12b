package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ecom-service/internal/apperr"
	"ecom-service/internal/identity"
	"ecom-service/internal/middleware"
	"ecom-service/internal/model"
	"ecom-service/internal/store"
	"ecom-service/pkg/config"
	"ecom-service/pkg/database"
)

// fakeVerifier maps bearer tokens straight to claims.
type fakeVerifier struct {
	claims map[string]*identity.Claims
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*identity.Claims, error) {
	claims, ok := f.claims[token]
	if !ok {
		return nil, apperr.InvalidToken("token verification failed")
	}
	return claims, nil
}

// fakeAdmin records identity-provider calls and fails on demand.
type fakeAdmin struct {
	createErr  error
	updateErr  error
	deleteErr  error
	loginErr   error
	created    []string
	roleCalls  []string
	deleted    []string
	loginCalls []string
}

func (f *fakeAdmin) CreateUser(_ context.Context, username, _, _ string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, username)
	return nil
}

func (f *fakeAdmin) UpdateUserRole(_ context.Context, username, _, newRole string) error {
	f.roleCalls = append(f.roleCalls, username+":"+newRole)
	return f.updateErr
}

func (f *fakeAdmin) DeleteUser(_ context.Context, username string) error {
	f.deleted = append(f.deleted, username)
	return f.deleteErr
}

func (f *fakeAdmin) Login(_ context.Context, username, _ string) (*identity.TokenSet, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.loginCalls = append(f.loginCalls, username)
	return &identity.TokenSet{AccessToken: "fake-access-token", TokenType: "Bearer", ExpiresIn: 300}, nil
}

type testServer struct {
	echo  *echo.Echo
	db    *gorm.DB
	admin *fakeAdmin
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "handler_test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.DB = db
	t.Cleanup(func() { database.DB = nil })

	admin := &fakeAdmin{}
	Initialize(admin, config.PaginationConfig{DefaultLimit: 10, MaxLimit: 100})

	verifier := &fakeVerifier{claims: map[string]*identity.Claims{
		"platform-token": {Username: "root", Roles: []string{"platform_admin"}},
		"nike-token":     {Username: "nike_admin", Roles: []string{"tenant_admin"}, TenantName: "Nike"},
		"adidas-token":   {Username: "adidas_admin", Roles: []string{"tenant_admin"}, TenantName: "Adidas"},
		"shopper-token":  {Username: "shopper", Roles: nil},
	}}
	resolver := identity.NewResolver(db, verifier, zap.NewNop())

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zap.NewNop())
	e.Pre(echomiddleware.RemoveTrailingSlash())
	RegisterRoutes(e, middleware.Auth(resolver))

	return &testServer{echo: e, db: db, admin: admin}
}

func (s *testServer) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

func (s *testServer) seedTenant(t *testing.T, name string) *model.Tenant {
	t.Helper()
	tenant, err := store.CreateTenant(s.db, name)
	require.NoError(t, err)
	return tenant
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	t.Run("missing header", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/orders", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		assert.Contains(t, body["detail"], "Authorization")
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/orders", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("public catalog needs no token", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/products", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health needs no token", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestTenantEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seedTenant(t, "Nike")

	t.Run("create requires platform admin", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/tenants", "shopper-token", echo.Map{"name": "Puma"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("platform admin creates tenant", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/tenants", "platform-token", echo.Map{"name": "Puma"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "Puma", body["name"])
	})

	t.Run("duplicate name is rejected case-insensitively", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/tenants", "platform-token", echo.Map{"name": "puma"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "Tenant already exists (field: name)", body["detail"])
	})

	t.Run("list requires platform admin", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/tenants", "nike-token", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.request(t, http.MethodGet, "/tenants", "platform-token", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var tenants []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tenants))
		assert.Len(t, tenants, 2)
	})

	t.Run("delete unknown tenant is 404", func(t *testing.T) {
		rec := s.request(t, http.MethodDelete, "/tenants/ghost", "platform-token", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := s.request(t, http.MethodDelete, "/tenants/puma", "platform-token", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "Tenant deleted successfully", body["message"])
	})
}

func TestProductEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seedTenant(t, "Nike")
	s.seedTenant(t, "Adidas")

	productBody := echo.Map{
		"name":               "Air Max",
		"description":        "Classic running shoe",
		"category":           "shoes",
		"price":              120.0,
		"available_quantity": 50,
	}

	t.Run("tenant admin creates own product", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/nike/products", "nike-token", productBody)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "Air Max", body["name"])
	})

	t.Run("foreign tenant admin is forbidden", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/nike/products", "adidas-token", echo.Map{
			"name": "Intruder", "price": 1.0, "available_quantity": 1,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("ordinary user is forbidden", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/nike/products", "shopper-token", productBody)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("platform admin may create anywhere", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/adidas/products", "platform-token", echo.Map{
			"name": "Samba", "category": "shoes", "price": 90.0, "available_quantity": 10,
		})
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("tenant catalog is public and scoped", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/nike/products", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var products []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
		require.Len(t, products, 1)
		assert.Equal(t, "Air Max", products[0]["name"])
	})

	t.Run("cross-tenant product read is 404", func(t *testing.T) {
		airMax, err := store.ListAllProducts(s.db, store.ProductFilter{Search: "air max"}, 0, 1)
		require.NoError(t, err)
		require.Len(t, airMax, 1)

		rec := s.request(t, http.MethodGet, "/adidas/products/"+itoa(airMax[0].ID), "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = s.request(t, http.MethodGet, "/nike/products/"+itoa(airMax[0].ID), "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("global catalog spans tenants", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/products", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var products []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
		assert.Len(t, products, 2)
	})

	t.Run("invalid pagination is 400", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/products?limit=0", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = s.request(t, http.MethodGet, "/products?skip=-1", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = s.request(t, http.MethodGet, "/products?limit=101", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validation error surfaces as detail", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/nike/products", "nike-token", echo.Map{
			"name": "Freebie", "price": 0.0, "available_quantity": 1,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "price must be greater than 0", body["detail"])
	})
}

func TestOrderEndpoints(t *testing.T) {
	s := newTestServer(t)
	tenant := s.seedTenant(t, "Nike")
	product, err := store.CreateProduct(s.db, tenant, store.ProductData{
		Name: "Air Max", Price: 120.0, AvailableQuantity: 50,
	})
	require.NoError(t, err)

	t.Run("place order", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/orders", "shopper-token", echo.Map{
			"items": []echo.Map{{"product_id": product.ID, "quantity": 2}},
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.EqualValues(t, 2, body["total_quantity"])
		assert.EqualValues(t, 240.0, body["total_amount"])

		reloaded, err := store.GetProduct(s.db, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 48, reloaded.AvailableQuantity)
	})

	t.Run("empty order is 400", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/orders", "shopper-token", echo.Map{"items": []echo.Map{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "order must contain at least one item", body["detail"])
	})

	t.Run("insufficient stock is 400 with shortfall", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/orders", "shopper-token", echo.Map{
			"items": []echo.Map{{"product_id": product.ID, "quantity": 1000}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "insufficient stock for product Air Max. Available: 48, requested: 1000", body["detail"])
	})

	t.Run("unknown product is 404", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/orders", "shopper-token", echo.Map{
			"items": []echo.Map{{"product_id": 99999, "quantity": 1}},
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list own orders only", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/orders", "nike-token", echo.Map{
			"items": []echo.Map{{"product_id": product.ID, "quantity": 1}},
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = s.request(t, http.MethodGet, "/orders", "shopper-token", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var orders []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
		assert.Len(t, orders, 1)
	})
}

func TestFavouriteEndpoints(t *testing.T) {
	s := newTestServer(t)
	tenant := s.seedTenant(t, "Nike")
	product, err := store.CreateProduct(s.db, tenant, store.ProductData{
		Name: "Air Max", Price: 120.0, AvailableQuantity: 50,
	})
	require.NoError(t, err)
	path := "/users/me/favourites/" + itoa(product.ID)

	t.Run("add", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, path, "shopper-token", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "added", body["detail"])
	})

	t.Run("duplicate add is 400", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, path, "shopper-token", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/users/me/favourites", "shopper-token", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var products []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
		require.Len(t, products, 1)
		assert.Equal(t, "Air Max", products[0]["name"])
	})

	t.Run("favourites are per user", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/users/me/favourites", "nike-token", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var products []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
		assert.Empty(t, products)
	})

	t.Run("remove", func(t *testing.T) {
		rec := s.request(t, http.MethodDelete, path, "shopper-token", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "removed", body["detail"])
	})

	t.Run("remove absent is 404", func(t *testing.T) {
		rec := s.request(t, http.MethodDelete, path, "shopper-token", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown product is 404", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/users/me/favourites/99999", "shopper-token", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSignup(t *testing.T) {
	s := newTestServer(t)

	t.Run("success", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/users/signup", "", echo.Map{
			"username": "alice", "password": "secret",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "user", body["role"])
		assert.Equal(t, []string{"alice"}, s.admin.created)
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/users/signup", "", echo.Map{
			"username": "alice", "password": "secret",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("short password", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/users/signup", "", echo.Map{
			"username": "bob", "password": "abc",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("provider failure aborts local creation", func(t *testing.T) {
		s.admin.createErr = apperr.Service("identity provider unreachable")
		defer func() { s.admin.createErr = nil }()

		rec := s.request(t, http.MethodPost, "/users/signup", "", echo.Map{
			"username": "carol", "password": "secret",
		})
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		_, err := store.GetUserByUsername(s.db, "carol")
		require.ErrorIs(t, err, apperr.NotFound("User", "carol"))
	})
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	t.Run("proxies token response", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/users/login", "", echo.Map{
			"username": "alice", "password": "secret",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "fake-access-token", body["access_token"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		s.admin.loginErr = apperr.InvalidToken("invalid user credentials")
		defer func() { s.admin.loginErr = nil }()

		rec := s.request(t, http.MethodPost, "/users/login", "", echo.Map{
			"username": "alice", "password": "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/users/login", "", echo.Map{"username": "alice"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTenantUserEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.seedTenant(t, "Nike")

	t.Run("create tenant user", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/tenants/nike/users", "platform-token", echo.Map{
			"username": "clerk", "password": "secret", "role": "user",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, s.admin.created, "clerk")
	})

	t.Run("requires platform admin", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/tenants/nike/users", "shopper-token", echo.Map{
			"username": "mole", "password": "secret",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid role", func(t *testing.T) {
		rec := s.request(t, http.MethodPost, "/tenants/nike/users", "platform-token", echo.Map{
			"username": "weird", "password": "secret", "role": "superuser",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list tenant users", func(t *testing.T) {
		rec := s.request(t, http.MethodGet, "/tenants/nike/users", "platform-token", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var users []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
		require.Len(t, users, 1)
		assert.Equal(t, "clerk", users[0]["username"])
	})

	t.Run("promote with failing mirror still commits", func(t *testing.T) {
		clerk, err := store.GetUserByUsername(s.db, "clerk")
		require.NoError(t, err)

		s.admin.updateErr = apperr.Service("identity provider unreachable")
		defer func() { s.admin.updateErr = nil }()

		rec := s.request(t, http.MethodPut, "/tenants/nike/users/"+itoa(clerk.ID), "platform-token", echo.Map{
			"role": "tenant_admin",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, s.admin.roleCalls, "clerk:tenant_admin")

		reloaded, err := store.GetUserByUsername(s.db, "clerk")
		require.NoError(t, err)
		assert.Equal(t, model.RoleTenantAdmin, reloaded.Role)
	})

	t.Run("assign existing user", func(t *testing.T) {
		_, err := store.CreateUser(s.db, "drifter", model.RoleUser, nil)
		require.NoError(t, err)

		rec := s.request(t, http.MethodPost, "/tenants/nike/users/assign", "platform-token", echo.Map{
			"username": "drifter", "role": "tenant_admin",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		reloaded, err := store.GetUserByUsername(s.db, "drifter")
		require.NoError(t, err)
		assert.Equal(t, model.RoleTenantAdmin, reloaded.Role)
		require.NotNil(t, reloaded.TenantID)
	})

	t.Run("delete tenant user survives provider failure", func(t *testing.T) {
		drifter, err := store.GetUserByUsername(s.db, "drifter")
		require.NoError(t, err)

		s.admin.deleteErr = apperr.Service("identity provider unreachable")
		defer func() { s.admin.deleteErr = nil }()

		rec := s.request(t, http.MethodDelete, "/tenants/nike/users/"+itoa(drifter.ID), "platform-token", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		_, err = store.GetUserByUsername(s.db, "drifter")
		require.ErrorIs(t, err, apperr.NotFound("User", "drifter"))
	})

	t.Run("user outside tenant is 404", func(t *testing.T) {
		outsider, err := store.CreateUser(s.db, "outsider", model.RoleUser, nil)
		require.NoError(t, err)

		rec := s.request(t, http.MethodDelete, "/tenants/nike/users/"+itoa(outsider.ID), "platform-token", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
