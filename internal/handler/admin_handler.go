package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ecom-service/internal/apperr"
	"ecom-service/internal/authz"
	"ecom-service/internal/middleware"
	"ecom-service/internal/model"
	"ecom-service/internal/store"
	"ecom-service/pkg/logger"
	"ecom-service/prometheus"
)

// TenantUserRequest is the body for tenant-user management endpoints.
type TenantUserRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (r *TenantUserRequest) normalizedRole() (string, error) {
	if r.Role == "" {
		r.Role = model.RoleUser
	}
	if !model.ValidRole(r.Role) {
		return "", apperr.Validation("invalid role: %s", r.Role)
	}
	return r.Role, nil
}

// ListTenantUsers lists the users attached to the path tenant. Platform
// admin only.
func ListTenantUsers(c echo.Context) error {
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
	skip, limit, err := paginationParams(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	users, err := store.ListTenantUsers(db(), tenant.ID, skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// CreateTenantUser provisions a user in the identity provider and locally,
// attached to the path tenant. A hard provider failure aborts the local
// creation. Platform admin only.
func CreateTenantUser(c echo.Context) error {
	log := logger.FromContext(c)

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

	var req TenantUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request").WithCause(err)
	}
	if req.Username == "" {
		return apperr.Validation("username is required")
	}
	if req.Password == "" {
		return apperr.Validation("password is required for user creation")
	}
	role, err := req.normalizedRole()
	if err != nil {
		return err
	}

	if _, err := store.GetUserByUsername(db(), req.Username); err == nil {
		return apperr.AlreadyExists("User", "username")
	}

	if err := identityAdmin.CreateUser(c.Request().Context(), req.Username, req.Password, role); err != nil {
		log.Error("failed to create user in identity provider",
			zap.String("username", req.Username),
			zap.Error(err))
		return err
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	created, err := store.CreateUser(db(), req.Username, role, tenant)
	if err != nil {
		return err
	}

	log.Info("tenant user created",
		zap.String("username", created.Username),
		zap.String("role", created.Role),
		zap.String("tenant", tenant.Name))
	return c.JSON(http.StatusCreated, created)
}

// UpdateTenantUser changes the role of a user belonging to the path tenant.
// The role mirror to the identity provider is best-effort: a mirror failure
// is logged and the local commit proceeds, accepting a divergence window.
// Platform admin only.
func UpdateTenantUser(c echo.Context) error {
	log := logger.FromContext(c)

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
	userID, err := pathID(c, "user_id")
	if err != nil {
		return err
	}

	var req TenantUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request").WithCause(err)
	}
	role, err := req.normalizedRole()
	if err != nil {
		return err
	}

	target, err := store.GetTenantUser(db(), tenant.ID, userID)
	if err != nil {
		return err
	}

	if target.Role != role {
		mirrorUserRole(c, log, target.Username, target.Role, role)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := store.SetUserRole(db(), target, role, tenant); err != nil {
		return err
	}

	log.Info("tenant user updated",
		zap.String("username", target.Username),
		zap.String("role", target.Role),
		zap.String("tenant", tenant.Name))
	return c.JSON(http.StatusOK, target)
}

// AssignUserToTenant looks an existing user up by username and applies the
// role/tenant coupling for the path tenant. Platform admin only.
func AssignUserToTenant(c echo.Context) error {
	log := logger.FromContext(c)

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

	var req TenantUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request").WithCause(err)
	}
	if req.Username == "" {
		return apperr.Validation("username is required")
	}
	role, err := req.normalizedRole()
	if err != nil {
		return err
	}

	target, err := store.GetUserByUsername(db(), req.Username)
	if err != nil {
		return err
	}

	if target.Role != role {
		mirrorUserRole(c, log, target.Username, target.Role, role)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := store.SetUserRole(db(), target, role, tenant); err != nil {
		return err
	}

	log.Info("user assigned to tenant",
		zap.String("username", target.Username),
		zap.String("role", target.Role),
		zap.String("tenant", tenant.Name))
	return c.JSON(http.StatusOK, target)
}

// DeleteTenantUser removes a user belonging to the path tenant, locally and
// from the identity provider. Provider-side deletion is best-effort.
// Platform admin only.
func DeleteTenantUser(c echo.Context) error {
	log := logger.FromContext(c)

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
	userID, err := pathID(c, "user_id")
	if err != nil {
		return err
	}

	target, err := store.GetTenantUser(db(), tenant.ID, userID)
	if err != nil {
		return err
	}

	if err := identityAdmin.DeleteUser(c.Request().Context(), target.Username); err != nil {
		// The user may never have existed provider-side; local removal
		// still proceeds.
		prometheus.IdentitySyncErrorCounter.Inc()
		log.Warn("failed to delete user from identity provider",
			zap.String("username", target.Username),
			zap.Error(err))
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := store.DeleteUser(db(), target); err != nil {
		return err
	}

	log.Info("tenant user deleted",
		zap.String("username", target.Username),
		zap.String("tenant", tenant.Name))
	return c.JSON(http.StatusOK, echo.Map{"detail": "deleted"})
}

// mirrorUserRole pushes a role change to the identity provider without
// letting a failure abort the local transaction.
func mirrorUserRole(c echo.Context, log *zap.Logger, username, oldRole, newRole string) {
	if err := identityAdmin.UpdateUserRole(c.Request().Context(), username, oldRole, newRole); err != nil {
		prometheus.IdentitySyncErrorCounter.Inc()
		log.Error("failed to mirror role to identity provider",
			zap.String("username", username),
			zap.String("old_role", oldRole),
			zap.String("new_role", newRole),
			zap.Error(err))
		return
	}
	log.Info("role mirrored to identity provider",
		zap.String("username", username),
		zap.String("new_role", newRole))
}
