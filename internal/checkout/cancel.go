package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
)

// CancelOrder moves a pending or confirmed order to cancelled and puts its
// stock back. Users may only cancel their own orders; admins any order.
func (s *Service) CancelOrder(ctx context.Context, orderNumber string, actor Actor, comment string) (*models.Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if comment = strings.TrimSpace(comment); comment == "" {
		comment = "Order cancelled"
	}

	var cancelled models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context, repo database.Repository) error {
		order, err := s.visibleOrder(ctx, repo, orderNumber, actor)
		if err != nil {
			return err
		}
		if !order.Status.Cancellable() {
			return ConflictError{Reason: "order cannot be cancelled", Status: order.Status}
		}

		now := s.now()
		ok, err := repo.UpdateOrderStatus(ctx, orderNumber, models.CancellableStatuses, models.StatusChange{
			To: models.StatusCancelled,
			At: now,
		})
		if err != nil {
			return err
		}
		if !ok {
			current, err := repo.GetOrderByNumber(ctx, orderNumber)
			if err != nil {
				log.Printf("[ORDER] [ERROR] reload %s after lost cancel: %v", orderNumber, err)
				return fmt.Errorf("reload order %s: %w", orderNumber, err)
			}
			return ConflictError{Reason: "order cannot be cancelled", Status: current.Status}
		}

		for _, item := range order.Items {
			err := repo.IncrementStock(ctx, item.ProductID, item.Quantity)
			if errors.Is(err, database.ErrNotFound) {
				log.Printf("[ORDER] [WARN] product %s of order %s no longer exists, stock not restored", item.ProductID, orderNumber)
				continue
			}
			if err != nil {
				return err
			}
		}

		if err := repo.AppendStatusHistory(ctx, models.OrderStatusHistory{
			ID:          newID(),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Status:      models.StatusCancelled,
			Comment:     comment,
			Actor:       actor.label(),
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		order.Status = models.StatusCancelled
		order.UpdatedAt = now
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ORDER] [INFO] order %s cancelled by %s, stock restored", cancelled.OrderNumber, actor.label())
	s.publish(ctx, events.OrderCancelled, cancelled)
	return &cancelled, nil
}

type StatusUpdate struct {
	Status         models.OrderStatus
	Comment        string
	TrackingNumber string
	// EstimatedDelivery keeps only the date part.
	EstimatedDelivery *time.Time
}

// UpdateStatus is a staff status write. Apart from cancellation, which goes
// through CancelOrder, transitions are not checked against a table; only a
// cancelled order is frozen because its stock has already been returned.
func (s *Service) UpdateStatus(ctx context.Context, orderNumber string, update StatusUpdate, actor Actor) (*models.Order, error) {
	if !update.Status.Valid() {
		return nil, ValidationError{Field: "status", Message: "is invalid"}
	}
	if update.Status == models.StatusCancelled {
		return s.CancelOrder(ctx, orderNumber, actor, update.Comment)
	}
	orderNumber = strings.TrimSpace(orderNumber)

	var updated models.Order
	err := s.store.WithTx(ctx, func(ctx context.Context, repo database.Repository) error {
		order, err := s.visibleOrder(ctx, repo, orderNumber, actor)
		if err != nil {
			return err
		}
		if order.Status == models.StatusCancelled {
			return ConflictError{Reason: "cancelled orders cannot change status", Status: order.Status}
		}

		now := s.now()
		change := models.StatusChange{
			To:             update.Status,
			At:             now,
			TrackingNumber: strings.TrimSpace(update.TrackingNumber),
		}
		if update.Status == models.StatusDelivered {
			change.DeliveredAt = &now
		}
		if update.EstimatedDelivery != nil {
			date := deliveryDate(*update.EstimatedDelivery)
			change.EstimatedDelivery = &date
		}

		ok, err := repo.UpdateOrderStatus(ctx, orderNumber, []models.OrderStatus{order.Status}, change)
		if err != nil {
			return err
		}
		if !ok {
			return ConflictError{Reason: "order changed concurrently, retry"}
		}

		comment := strings.TrimSpace(update.Comment)
		if comment == "" {
			comment = "Status changed to " + string(update.Status)
		}
		if err := repo.AppendStatusHistory(ctx, models.OrderStatusHistory{
			ID:          newID(),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Status:      update.Status,
			Comment:     comment,
			Actor:       actor.label(),
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		order.Status = update.Status
		order.UpdatedAt = now
		if change.TrackingNumber != "" {
			order.TrackingNumber = change.TrackingNumber
		}
		if change.DeliveredAt != nil {
			order.DeliveredAt = change.DeliveredAt
		}
		if change.EstimatedDelivery != nil {
			order.EstimatedDelivery = change.EstimatedDelivery
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ORDER] [INFO] order %s status set to %s by %s", updated.OrderNumber, updated.Status, actor.label())
	s.publish(ctx, events.OrderStatusChanged, updated)
	return &updated, nil
}

// visibleOrder hides orders the actor does not own behind a not-found error.
func (s *Service) visibleOrder(ctx context.Context, repo database.Repository, orderNumber string, actor Actor) (models.Order, error) {
	order, err := repo.GetOrderByNumber(ctx, orderNumber)
	if errors.Is(err, database.ErrNotFound) {
		return models.Order{}, NotFoundError{Resource: "order", ID: orderNumber}
	}
	if err != nil {
		return models.Order{}, err
	}
	if !actor.Admin && !order.OwnedBy(actor.UserID) {
		return models.Order{}, NotFoundError{Resource: "order", ID: orderNumber}
	}
	return order, nil
}

func deliveryDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
