package checkout

import (
	"fmt"

	"storefront/internal/models"
)

// ValidationError reports a malformed request. Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports an unknown product, coupon or order.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError reports a request that is well formed but blocked by current
// state: insufficient stock, a non-cancellable order, a reused payment.
type ConflictError struct {
	Reason    string
	ProductID string
	Available int
	Requested int
	Status    models.OrderStatus
}

func (e ConflictError) Error() string {
	switch {
	case e.ProductID != "":
		return fmt.Sprintf("%s: product %s has %d available, %d requested", e.Reason, e.ProductID, e.Available, e.Requested)
	case e.Status != "":
		return fmt.Sprintf("%s: order is %s", e.Reason, e.Status)
	default:
		return e.Reason
	}
}

func insufficientStock(productID string, available, requested int) ConflictError {
	if available < 0 {
		available = 0
	}
	return ConflictError{
		Reason:    "insufficient stock",
		ProductID: productID,
		Available: available,
		Requested: requested,
	}
}

// PaymentError reports that the payment provider failed or refused the
// payment. No order is created.
type PaymentError struct {
	IntentID string
	Reason   string
	Err      error
}

func (e PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment %s: %s: %v", e.IntentID, e.Reason, e.Err)
	}
	return fmt.Sprintf("payment %s: %s", e.IntentID, e.Reason)
}

func (e PaymentError) Unwrap() error {
	return e.Err
}
