package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// SimulatedGateway issues sim_ intents that are always considered paid. It is
// used when no provider key is configured.
type SimulatedGateway struct{}

func NewSimulatedGateway() SimulatedGateway {
	return SimulatedGateway{}
}

func (SimulatedGateway) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
	if req.AmountMinor <= 0 {
		return Intent{}, errors.New("amount must be greater than zero")
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	id := SimulatedPrefix + token[:24]
	return Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + token[24:],
		AmountMinor:  req.AmountMinor,
		Currency:     req.Currency,
		Status:       StatusRequiresPaymentMethod,
	}, nil
}

func (SimulatedGateway) RetrieveIntent(_ context.Context, id string) (Intent, error) {
	if !IsSimulated(id) {
		return Intent{}, ErrUnknownIntent
	}
	return Intent{ID: id, Status: StatusSucceeded}, nil
}
