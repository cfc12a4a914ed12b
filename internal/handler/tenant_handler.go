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

// ListTenants returns all tenants. Platform admin only.
func ListTenants(c echo.Context) error {
	prometheus.RecordTenantOperation("list")

	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := authz.RequirePlatformAdmin(user); err != nil {
		prometheus.RecordAuthError("permission_denied")
		return err
	}

	skip, limit, err := paginationParams(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	tenants, err := store.ListTenants(db(), skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tenants)
}

// CreateTenant creates a tenant. Platform admin only.
func CreateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("create")

	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := authz.RequirePlatformAdmin(user); err != nil {
		prometheus.RecordAuthError("permission_denied")
		return err
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request").WithCause(err)
	}
	if req.Name == "" {
		return apperr.Validation("name is required")
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	tenant, err := store.CreateTenant(db(), req.Name)
	if err != nil {
		return err
	}

	log.Info("tenant created",
		zap.String("name", tenant.Name),
		zap.Uint("id", tenant.ID),
		zap.String("created_by", user.Username))
	return c.JSON(http.StatusCreated, tenant)
}

// DeleteTenant removes a tenant by name, detaching its users and deleting its
// products. Platform admin only.
func DeleteTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("delete")

	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := authz.RequirePlatformAdmin(user); err != nil {
		prometheus.RecordAuthError("permission_denied")
		return err
	}

	tenant, err := tenantByPath(c, db())
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := store.DeleteTenant(db(), tenant); err != nil {
		return err
	}

	log.Info("tenant deleted",
		zap.String("name", tenant.Name),
		zap.Uint("id", tenant.ID),
		zap.String("deleted_by", user.Username))
	return c.JSON(http.StatusOK, echo.Map{"message": "Tenant deleted successfully"})
}
