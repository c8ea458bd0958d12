package database

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrStale     = errors.New("record changed concurrently")

	// ErrInvalidQuantity rejects stock moves of zero or fewer units.
	ErrInvalidQuantity = errors.New("stock quantity must be positive")
)

// Unique keys reported by DuplicateKeyError.
const (
	KeyOrderNumber = "orderNumber"
	KeyPaymentID   = "paymentId"
	KeySKU         = "sku"
	KeyCouponCode  = "code"
	KeyActiveCart  = "activeCart"
)

// DuplicateKeyError is returned when a write collides with a unique key.
// Key is empty when the backend did not say which one.
type DuplicateKeyError struct {
	Key string
	Err error
}

func (e DuplicateKeyError) Error() string {
	if e.Key == "" {
		return ErrDuplicate.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s on %s: %v", ErrDuplicate, e.Key, e.Err)
	}
	return fmt.Sprintf("%s on %s", ErrDuplicate, e.Key)
}

func (e DuplicateKeyError) Is(target error) bool { return target == ErrDuplicate }

func (e DuplicateKeyError) Unwrap() error { return e.Err }

// DuplicateKey reports which unique key err collided with, or "".
func DuplicateKey(err error) string {
	var dup DuplicateKeyError
	if errors.As(err, &dup) {
		return dup.Key
	}
	return ""
}
