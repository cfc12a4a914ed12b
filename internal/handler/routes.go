package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes attaches every endpoint to the echo instance. Routes that
// require authentication take the auth middleware; tenant-scoped catalog
// reads and the global catalog are public.
func RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	// Public routes
	e.GET("/health", HealthCheck)
	e.GET("/metrics", MetricsHandler)
	e.POST("/users/signup", Signup)
	e.POST("/users/login", Login)

	// Global public catalog
	e.GET("/products", ListAllProducts)
	e.GET("/products/:product_id", GetProductGlobal)

	// Tenant management - platform admin
	e.GET("/tenants", ListTenants, auth)
	e.POST("/tenants", CreateTenant, auth)
	e.DELETE("/tenants/:tenant_name", DeleteTenant, auth)

	// Tenant user management - platform admin
	e.GET("/tenants/:tenant_name/users", ListTenantUsers, auth)
	e.POST("/tenants/:tenant_name/users", CreateTenantUser, auth)
	e.POST("/tenants/:tenant_name/users/assign", AssignUserToTenant, auth)
	e.PUT("/tenants/:tenant_name/users/:user_id", UpdateTenantUser, auth)
	e.DELETE("/tenants/:tenant_name/users/:user_id", DeleteTenantUser, auth)

	// Orders and favourites - any authenticated user
	e.POST("/orders", CreateOrder, auth)
	e.GET("/orders", ListOrders, auth)
	e.GET("/users/me/favourites", ListFavourites, auth)
	e.POST("/users/me/favourites/:product_id", MarkFavourite, auth)
	e.DELETE("/users/me/favourites/:product_id", UnmarkFavourite, auth)

	// Tenant-scoped product catalog; reads are public, mutations are
	// tenant-admin scoped inside the handlers
	e.GET("/:tenant_name/products", ListTenantProducts)
	e.GET("/:tenant_name/products/:product_id", GetTenantProduct)
	e.POST("/:tenant_name/products", CreateProduct, auth)
	e.PUT("/:tenant_name/products/:product_id", UpdateProduct, auth)
	e.DELETE("/:tenant_name/products/:product_id", DeleteProduct, auth)
}
