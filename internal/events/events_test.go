package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

func TestEncodeMessageKeysByOrderNumber(t *testing.T) {
	order := models.Order{
		ID:          "o1",
		OrderNumber: "ORD-ABCDEF1234",
		Status:      models.StatusConfirmed,
		Total:       decimal.RequireFromString("246"),
		Contact:     models.OrderContact{Email: "ana@example.com"},
	}
	event := NewOrderEvent(OrderConfirmed, order, time.Now())

	msg, err := encodeMessage(event)
	if err != nil {
		t.Fatalf("encodeMessage returned error: %v", err)
	}
	if string(msg.Key) != "ORD-ABCDEF1234" {
		t.Fatalf("unexpected key %s", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != OrderConfirmed {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}

	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if decoded["total"] != "246.00" || decoded["status"] != "confirmed" {
		t.Fatalf("unexpected payload %v", decoded)
	}
	if decoded["event_id"] == "" {
		t.Fatal("expected event id")
	}
}
