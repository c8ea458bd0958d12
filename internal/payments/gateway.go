package payments

import (
	"context"
	"errors"
	"strings"
)

// SimulatedPrefix marks intent ids that never reach the provider.
const SimulatedPrefix = "sim_"

type Status string

const (
	StatusSucceeded             Status = "succeeded"
	StatusProcessing            Status = "processing"
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresConfirmation  Status = "requires_confirmation"
	StatusRequiresAction        Status = "requires_action"
	StatusCanceled              Status = "canceled"
)

type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Metadata    map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
	AmountMinor  int64
	Currency     string
	Status       Status
}

func (i Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
}

var ErrUnknownIntent = errors.New("unknown payment intent")

func IsSimulated(intentID string) bool {
	return strings.HasPrefix(intentID, SimulatedPrefix)
}
