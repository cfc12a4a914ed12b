package store

import (
	"errors"

	"gorm.io/gorm"

	"ecom-service/internal/apperr"
	"ecom-service/internal/model"
)

// OrderItemInput is one requested line of an order.
type OrderItemInput struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// CreateOrder validates and executes a multi-line order as a single
// transaction. Items are processed in input order; the first failure rolls
// everything back, so no partial stock decrement is ever visible.
//
// Stock is taken with a conditional decrement
// (available_quantity >= requested in the WHERE clause), so concurrent orders
// against the same product serialize on the row write and the quantity can
// never go negative.
func CreateOrder(db *gorm.DB, user *model.User, items []OrderItemInput) (*model.Order, error) {
	if len(items) == 0 {
		return nil, apperr.InvalidOperation("order must contain at least one item")
	}

	var order model.Order
	err := db.Transaction(func(tx *gorm.DB) error {
		order = model.Order{UserID: user.ID}
		if err := tx.Create(&order).Error; err != nil {
			return apperr.Internal("failed to create order").WithCause(err)
		}

		totalQuantity := 0
		totalAmount := 0.0
		for _, item := range items {
			if item.Quantity <= 0 {
				return apperr.Validation("invalid quantity: %d. Quantity must be positive", item.Quantity)
			}

			product, err := GetProduct(tx, item.ProductID)
			if err != nil {
				return err
			}

			result := tx.Model(&model.Product{}).
				Where("id = ? AND available_quantity >= ?", product.ID, item.Quantity).
				Update("available_quantity", gorm.Expr("available_quantity - ?", item.Quantity))
			if result.Error != nil {
				return apperr.Internal("failed to decrement stock").WithCause(result.Error)
			}
			if result.RowsAffected == 0 {
				// Re-read for an accurate shortfall report; the decrement
				// did not touch the row.
				current, rerr := GetProduct(tx, item.ProductID)
				available := product.AvailableQuantity
				if rerr == nil {
					available = current.AvailableQuantity
				}
				return apperr.InsufficientQuantity(product.Name, available, item.Quantity)
			}

			orderItem := model.OrderItem{
				OrderID:   order.ID,
				ProductID: product.ID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
			}
			if err := tx.Create(&orderItem).Error; err != nil {
				return apperr.Internal("failed to create order item").WithCause(err)
			}
			order.Items = append(order.Items, orderItem)

			totalQuantity += item.Quantity
			totalAmount += product.Price * float64(item.Quantity)
		}

		order.TotalQuantity = totalQuantity
		order.TotalAmount = totalAmount
		if err := tx.Model(&model.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"total_quantity": totalQuantity,
			"total_amount":   totalAmount,
		}).Error; err != nil {
			return apperr.Internal("failed to finalize order").WithCause(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder loads an order with its items.
func GetOrder(db *gorm.DB, id uint) (*model.Order, error) {
	var order model.Order
	err := db.Preload("Items").First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Order", id)
		}
		return nil, apperr.Internal("failed to query order").WithCause(err)
	}
	return &order, nil
}

// ListOrdersForUser returns the user's orders across all tenants.
func ListOrdersForUser(db *gorm.DB, user *model.User, skip, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := db.Preload("Items").
		Where("user_id = ?", user.ID).
		Order("id").Offset(skip).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, apperr.Internal("failed to list orders").WithCause(err)
	}
	return orders, nil
}
