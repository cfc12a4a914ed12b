package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ecom-service/internal/apperr"
	"ecom-service/internal/authz"
	"ecom-service/internal/middleware"
	"ecom-service/internal/store"
	"ecom-service/pkg/logger"
	"ecom-service/prometheus"
)

// ProductRequest is the body for product creation and update.
type ProductRequest struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Category          string  `json:"category"`
	Price             float64 `json:"price"`
	AvailableQuantity int     `json:"available_quantity"`
}

func (r ProductRequest) data() store.ProductData {
	return store.ProductData{
		Name:              r.Name,
		Description:       r.Description,
		Category:          r.Category,
		Price:             r.Price,
		AvailableQuantity: r.AvailableQuantity,
	}
}

func productFilter(c echo.Context) store.ProductFilter {
	return store.ProductFilter{
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("search"),
	}
}

// CreateProduct creates a product under the path tenant. Tenant admin of that
// tenant or platform admin.
func CreateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProductOperation("create")

	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	tenant, err := tenantByPath(c, db())
	if err != nil {
		return err
	}
	if err := authz.RequireTenantAdmin(user, tenant); err != nil {
		prometheus.RecordAuthError("permission_denied")
		return err
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request").WithCause(err)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	product, err := store.CreateProduct(db(), tenant, req.data())
	if err != nil {
		return err
	}

	log.Info("product created",
		zap.Uint("id", product.ID),
		zap.String("name", product.Name),
		zap.String("tenant", tenant.Name),
		zap.String("created_by", user.Username))
	return c.JSON(http.StatusCreated, product)
}

// ListTenantProducts lists a tenant's products. Public.
func ListTenantProducts(c echo.Context) error {
	prometheus.RecordProductOperation("list")

	tenant, err := tenantByPath(c, db())
	if err != nil {
		return err
	}
	skip, limit, err := paginationParams(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	products, err := store.ListProducts(db(), tenant, productFilter(c), skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

// GetTenantProduct fetches one product within the path tenant. A product that
// exists under another tenant reports NotFound, not a leak.
func GetTenantProduct(c echo.Context) error {
	tenant, err := tenantByPath(c, db())
	if err != nil {
		return err
	}
	id, err := pathID(c, "product_id")
	if err != nil {
		return err
	}

	product, err := store.GetProduct(db(), id)
	if err != nil {
		return err
	}
	if product.TenantID != tenant.ID {
		return apperr.NotFound("Product", id)
	}
	return c.JSON(http.StatusOK, product)
}

// UpdateProduct overwrites a product's fields. Tenant admin of the owning
// tenant or platform admin.
func UpdateProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProductOperation("update")

	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	tenant, err := tenantByPath(c, db())
	if err != nil {
		return err
	}
	id, err := pathID(c, "product_id")
	if err != nil {
		return err
	}

	product, err := store.GetProduct(db(), id)
	if err != nil {
		return err
	}
	if product.TenantID != tenant.ID {
		return apperr.NotFound("Product", id)
	}
	if err := authz.CanManageProduct(user, product); err != nil {
		prometheus.RecordAuthError("permission_denied")
		return err
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request").WithCause(err)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	updated, err := store.UpdateProduct(db(), product, req.data())
	if err != nil {
		return err
	}

	log.Info("product updated",
		zap.Uint("id", updated.ID),
		zap.String("name", updated.Name),
		zap.String("updated_by", user.Username))
	return c.JSON(http.StatusOK, updated)
}

// DeleteProduct removes a product. Tenant admin of the owning tenant or
// platform admin.
func DeleteProduct(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordProductOperation("delete")

	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	tenant, err := tenantByPath(c, db())
	if err != nil {
		return err
	}
	id, err := pathID(c, "product_id")
	if err != nil {
		return err
	}

	product, err := store.GetProduct(db(), id)
	if err != nil {
		return err
	}
	if product.TenantID != tenant.ID {
		return apperr.NotFound("Product", id)
	}
	if err := authz.CanManageProduct(user, product); err != nil {
		prometheus.RecordAuthError("permission_denied")
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := store.DeleteProduct(db(), product); err != nil {
		return err
	}

	log.Info("product deleted",
		zap.Uint("id", product.ID),
		zap.String("name", product.Name),
		zap.String("deleted_by", user.Username))
	return c.JSON(http.StatusOK, echo.Map{"detail": "deleted"})
}

// ListAllProducts is the global public catalog across every tenant.
func ListAllProducts(c echo.Context) error {
	prometheus.RecordProductOperation("list_all")

	skip, limit, err := paginationParams(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	products, err := store.ListAllProducts(db(), productFilter(c), skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

// GetProductGlobal fetches one product from the global catalog. Public.
func GetProductGlobal(c echo.Context) error {
	id, err := pathID(c, "product_id")
	if err != nil {
		return err
	}
	product, err := store.GetProduct(db(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}
