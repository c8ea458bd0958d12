package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"storefront/internal/models"
)

const (
	OrderConfirmed     = "order.confirmed"
	OrderCancelled     = "order.cancelled"
	OrderStatusChanged = "order.status_changed"
)

type Event struct {
	EventID     string             `json:"event_id"`
	Type        string             `json:"type"`
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Status      models.OrderStatus `json:"status"`
	Email       string             `json:"email,omitempty"`
	Total       string             `json:"total"`
	CreatedAt   time.Time          `json:"created_at"`
}

func NewOrderEvent(eventType string, order models.Order, at time.Time) Event {
	return Event{
		EventID:     uuid.NewString(),
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Email:       order.Contact.Email,
		Total:       order.Total.StringFixed(2),
		CreatedAt:   at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
