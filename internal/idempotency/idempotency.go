package idempotency

import (
	"context"
	"net/http"
	"strings"
)

const Header = "Idempotency-Key"

// Key returns the trimmed Idempotency-Key header, empty when absent.
func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// ScopedKey namespaces the request's key by owner so two callers sending the
// same header value never share a record. Guests share the "guest" scope.
func ScopedKey(r *http.Request, owner string) string {
	key := Key(r)
	if key == "" {
		return ""
	}
	if owner == "" {
		owner = "guest"
	}
	return owner + ":" + key
}

type State string

const (
	StatePending State = "pending"
	StateDone    State = "done"
)

// Record is what a key currently maps to. Value carries the order number once
// the request that reserved the key has completed.
type Record struct {
	State State  `json:"state"`
	Value string `json:"value,omitempty"`
}

// Store remembers which requests have already been handled.
type Store interface {
	// Reserve claims key for the caller. When the key is already known it
	// returns the existing record and false.
	Reserve(ctx context.Context, key string) (Record, bool, error)
	// Complete stores the outcome of a reserved key.
	Complete(ctx context.Context, key, value string) error
	// Release forgets a reserved key so the request can be retried.
	Release(ctx context.Context, key string) error
}
