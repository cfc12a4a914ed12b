package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ecom-service/internal/apperr"
	"ecom-service/internal/middleware"
	"ecom-service/internal/store"
	"ecom-service/pkg/logger"
	"ecom-service/prometheus"
)

// CreateOrder places a multi-line order for the current user. Orders are
// global: items may reference products from any tenant.
func CreateOrder(c echo.Context) error {
	log := logger.FromContext(c)

	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	var req struct {
		Items []store.OrderItemInput `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request").WithCause(err)
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	order, err := store.CreateOrder(db(), user, req.Items)
	if err != nil {
		recordOrderError(err)
		return err
	}

	prometheus.OrderCounter.Inc()
	log.Info("order placed",
		zap.Uint("order_id", order.ID),
		zap.String("username", user.Username),
		zap.Int("total_quantity", order.TotalQuantity),
		zap.Float64("total_amount", order.TotalAmount))
	return c.JSON(http.StatusCreated, order)
}

// ListOrders returns the current user's orders across all tenants.
func ListOrders(c echo.Context) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	skip, limit, err := paginationParams(c)
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	orders, err := store.ListOrdersForUser(db(), user, skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

func recordOrderError(err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return
	}
	switch appErr.Code {
	case "invalid_operation":
		prometheus.RecordOrderError("empty")
	case "validation":
		prometheus.RecordOrderError("invalid_quantity")
	case "insufficient_quantity":
		prometheus.RecordOrderError("insufficient_stock")
	case "not_found":
		prometheus.RecordOrderError("not_found")
	default:
		prometheus.RecordOrderError("other")
	}
}
