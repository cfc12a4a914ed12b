package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"ecom-service/internal/apperr"
	"ecom-service/internal/identity"
	"ecom-service/internal/model"
	"ecom-service/internal/store"
	"ecom-service/pkg/config"
	"ecom-service/pkg/database"
)

var (
	identityAdmin identity.Admin
	defaultLimit  = 10
	maxLimit      = 100
)

// Initialize wires the handler package's external collaborators, mirroring
// how the configuration is pushed into package state at startup.
func Initialize(admin identity.Admin, pagination config.PaginationConfig) {
	identityAdmin = admin
	if pagination.DefaultLimit > 0 {
		defaultLimit = pagination.DefaultLimit
	}
	if pagination.MaxLimit > 0 {
		maxLimit = pagination.MaxLimit
	}
}

// paginationParams parses skip/limit with the configured bounds:
// skip >= 0 (default 0), 1 <= limit <= max (default from config).
func paginationParams(c echo.Context) (int, int, error) {
	skip := 0
	if raw := c.QueryParam("skip"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, apperr.Validation("skip must be a non-negative integer")
		}
		skip = v
	}
	limit := defaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxLimit {
			return 0, 0, apperr.Validation("limit must be between 1 and %d", maxLimit)
		}
		limit = v
	}
	return skip, limit, nil
}

// tenantByPath resolves the :tenant_name path segment to a tenant row.
func tenantByPath(c echo.Context, db *gorm.DB) (*model.Tenant, error) {
	return store.GetTenantByName(db, c.Param("tenant_name"))
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, apperr.Validation("invalid %s", name)
	}
	return uint(id), nil
}

func db() *gorm.DB {
	return database.GetDB()
}
