package checkout

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/database"
	"storefront/internal/models"
)

type OrderDetail struct {
	models.Order
	History []models.OrderStatusHistory `json:"history"`
}

func (s *Service) GetOrder(ctx context.Context, orderNumber string, actor Actor) (*OrderDetail, error) {
	order, err := s.visibleOrder(ctx, s.store, strings.TrimSpace(orderNumber), actor)
	if err != nil {
		return nil, err
	}
	history, err := s.store.ListStatusHistory(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, History: history}, nil
}

// ListOrders returns orders newest first. Non-admin callers only ever see
// their own orders, and guests see none.
func (s *Service) ListOrders(ctx context.Context, actor Actor, filter models.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ValidationError{Field: "status", Message: "is invalid"}
	}
	if !actor.Admin {
		if actor.UserID == "" {
			return []models.Order{}, nil
		}
		userID := actor.UserID
		filter.UserID = &userID
	}
	return s.store.ListOrders(ctx, filter)
}

func (s *Service) DeleteOrder(ctx context.Context, orderNumber string) error {
	err := s.store.DeleteOrder(ctx, strings.TrimSpace(orderNumber))
	if errors.Is(err, database.ErrNotFound) {
		return NotFoundError{Resource: "order", ID: orderNumber}
	}
	return err
}
