package checkout

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/payments"
)

// SystemActor labels history entries written without a logged-in user.
const SystemActor = "system"

// Actor is who is calling. A zero Actor is a guest.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) Guest() bool {
	return a.UserID == "" && !a.Admin
}

func (a Actor) label() string {
	switch {
	case a.Admin && a.UserID != "":
		return "admin:" + a.UserID
	case a.Admin:
		return "admin"
	case a.UserID != "":
		return a.UserID
	default:
		return SystemActor
	}
}

type Options struct {
	Pricing Pricing
	// Currency is the ISO code sent to the payment provider.
	Currency string
	// AllowSimulatedPayments lets sim_ intents confirm without the provider.
	AllowSimulatedPayments bool
	Now                    func() time.Time
	NewOrderNumber         func() string
}

type Service struct {
	store          database.Store
	gateway        payments.Gateway
	publisher      events.Publisher
	pricing        Pricing
	currency       string
	allowSimulated bool
	now            func() time.Time
	newOrderNumber func() string
}

func NewService(store database.Store, gateway payments.Gateway, publisher events.Publisher, opts Options) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewOrderNumber == nil {
		opts.NewOrderNumber = NewOrderNumber
	}
	if opts.Currency == "" {
		opts.Currency = "pen"
	}
	return &Service{
		store:          store,
		gateway:        gateway,
		publisher:      publisher,
		pricing:        opts.Pricing,
		currency:       opts.Currency,
		allowSimulated: opts.AllowSimulatedPayments,
		now:            opts.Now,
		newOrderNumber: opts.NewOrderNumber,
	}
}

func (s *Service) Pricing() Pricing {
	return s.pricing
}

func (s *Service) publish(ctx context.Context, eventType string, order models.Order) {
	event := events.NewOrderEvent(eventType, order, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("[EVENTS] [ERROR] publish %s for %s failed: %v", eventType, order.OrderNumber, err)
	}
}

func newID() string {
	return uuid.NewString()
}
