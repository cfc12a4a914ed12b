package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ecom-service/internal/apperr"
	"ecom-service/internal/middleware"
	"ecom-service/internal/model"
	"ecom-service/internal/store"
	"ecom-service/pkg/logger"
	"ecom-service/prometheus"
)

// Signup is the public registration endpoint. The user is created in the
// identity provider first; a hard provider failure aborts before anything is
// written locally. Role is always "user" here regardless of input.
func Signup(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.SignupCounter.Inc()

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request").WithCause(err)
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		return apperr.Validation("username cannot be empty")
	}
	if len(req.Password) < 4 {
		return apperr.Validation("password must be at least 4 characters")
	}

	if _, err := store.GetUserByUsername(db(), req.Username); err == nil {
		return apperr.AlreadyExists("User", "username")
	}

	if err := identityAdmin.CreateUser(c.Request().Context(), req.Username, req.Password, model.RoleUser); err != nil {
		log.Error("failed to create user in identity provider",
			zap.String("username", req.Username),
			zap.Error(err))
		return err
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	user, err := store.CreateUser(db(), req.Username, model.RoleUser, nil)
	if err != nil {
		return err
	}

	log.Info("user signed up", zap.String("username", user.Username))
	return c.JSON(http.StatusCreated, user)
}

// Login proxies the credential exchange to the identity provider and returns
// its token response unchanged.
func Login(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request").WithCause(err)
	}
	if req.Username == "" || req.Password == "" {
		return apperr.Validation("username and password are required")
	}

	tokens, err := identityAdmin.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		prometheus.RecordAuthError("login_failed")
		return err
	}

	log.Info("user logged in", zap.String("username", req.Username))
	return c.JSON(http.StatusOK, tokens)
}

// MarkFavourite adds a product to the current user's favourites. Any
// authenticated user may favourite any tenant's product.
func MarkFavourite(c echo.Context) error {
	prometheus.RecordFavouriteOperation("add")

	user, err := middleware.CurrentUser(c)
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

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := store.AddFavourite(db(), user, product); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"detail": "added"})
}

// UnmarkFavourite removes a product from the current user's favourites.
func UnmarkFavourite(c echo.Context) error {
	prometheus.RecordFavouriteOperation("remove")

	user, err := middleware.CurrentUser(c)
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

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := store.RemoveFavourite(db(), user, product); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"detail": "removed"})
}

// ListFavourites returns the current user's favourite products in the order
// they were added.
func ListFavourites(c echo.Context) error {
	prometheus.RecordFavouriteOperation("list")

	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	skip, limit, err := paginationParams(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	products, err := store.ListFavourites(db(), user, skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}
