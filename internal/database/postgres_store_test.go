package database

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

func TestOrderFilterSQL(t *testing.T) {
	where, args := orderFilterSQL(models.OrderFilter{})
	if where != "" || len(args) != 0 {
		t.Fatalf("empty filter produced %q %v", where, args)
	}

	user := "u-1"
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args = orderFilterSQL(models.OrderFilter{
		UserID:      &user,
		Status:      models.StatusShipped,
		CreatedFrom: &from,
	})
	want := " WHERE user_id = $1 AND status = $2 AND created_at >= $3"
	if where != want {
		t.Fatalf("where = %q, want %q", where, want)
	}
	if len(args) != 3 || args[0] != "u-1" || args[1] != "shipped" || args[2] != from {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestStatusChangeSQLGuardsCurrentStatus(t *testing.T) {
	at := time.Now()
	query, args := statusChangeSQL("ORD-1", models.CancellableStatuses, models.StatusChange{To: models.StatusCancelled, At: at})

	if !strings.Contains(query, "status = ANY($4)") {
		t.Fatalf("query lacks status guard: %s", query)
	}
	statuses, ok := args[3].([]string)
	if !ok || len(statuses) != 2 || statuses[0] != "pending" || statuses[1] != "confirmed" {
		t.Fatalf("unexpected guard args %v", args[3])
	}
}

func TestStatusChangeSQLDelivered(t *testing.T) {
	at := time.Now()
	query, args := statusChangeSQL("ORD-1", nil, models.StatusChange{
		To:             models.StatusDelivered,
		At:             at,
		TrackingNumber: "TRK",
		DeliveredAt:    &at,
	})

	want := "UPDATE orders SET status = $2, updated_at = $3, tracking_number = $4, delivered_at = $5 WHERE order_number = $1"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
}

func TestStatusChangeSQLEstimatedDelivery(t *testing.T) {
	at := time.Now()
	eta := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	query, args := statusChangeSQL("ORD-1", nil, models.StatusChange{To: models.StatusShipped, At: at, EstimatedDelivery: &eta})

	want := "UPDATE orders SET status = $2, updated_at = $3, estimated_delivery = $4 WHERE order_number = $1"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
	if args[3] != eta {
		t.Fatalf("estimated delivery arg = %v", args[3])
	}
}

func TestOrderColumnsMatchInsertPlaceholders(t *testing.T) {
	if got, want := strings.Count(orderInsertColumns, ",")+1, strings.Count(orderColumns, ",")+1; got != want {
		t.Fatalf("insert columns %d, select columns %d", got, want)
	}
	if !strings.Contains(orderColumns, "estimated_delivery") {
		t.Fatal("orderColumns lacks estimated_delivery")
	}
}

func TestProductPatchSQL(t *testing.T) {
	price := decimal.RequireFromString("12.50")
	active := false
	set, args := productPatchSQL(models.ProductPatch{
		Price:         &price,
		ClearDiscount: true,
		IsActive:      &active,
		UpdatedAt:     time.Now(),
	})

	want := "updated_at = $1, price = $2, discount_price = NULL, is_active = $3"
	if set != want {
		t.Fatalf("set = %q, want %q", set, want)
	}
	if args[1] != "12.5" {
		t.Fatalf("price arg = %v", args[1])
	}
	if strings.Contains(set, "stock") {
		t.Fatal("stock must not be assigned without an explicit value")
	}
}

func TestCouponPatchSQLEmpty(t *testing.T) {
	set, args := couponPatchSQL(models.CouponPatch{})
	if set != "" || len(args) != 0 {
		t.Fatalf("expected no assignments, got %q %v", set, args)
	}

	limit := 5
	set, _ = couponPatchSQL(models.CouponPatch{ClearExpiry: true, UsageLimit: &limit})
	if set != "expires_at = NULL, usage_limit = $1" {
		t.Fatalf("set = %q", set)
	}
}

func TestLimitOffset(t *testing.T) {
	if got := limitOffset(0, 0); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := limitOffset(20, 40); got != " LIMIT 20 OFFSET 40" {
		t.Fatalf("got %q", got)
	}
}

func TestDecrementStockSQLIsConditional(t *testing.T) {
	for _, clause := range []string{"stock = stock - $2", "WHERE id = $1", "AND stock >= $2", "AND is_active", "AND NOT is_deleted"} {
		if !strings.Contains(decrementStockSQL, clause) {
			t.Fatalf("decrementStockSQL lacks %q: %s", clause, decrementStockSQL)
		}
	}
}

func TestPgStockMovesRejectNonPositiveQuantity(t *testing.T) {
	// A nil querier would panic if the statement were sent.
	repo := &pgRepo{}
	if ok, err := repo.DecrementStock(context.Background(), "p1", -5); ok || !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("decrement = %v %v", ok, err)
	}
	if err := repo.IncrementStock(context.Background(), "p1", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("increment = %v", err)
	}
}

func TestPgDuplicateNamesTheKey(t *testing.T) {
	cases := map[string]string{
		"orders_order_number_key": KeyOrderNumber,
		"orders_payment_id_key":   KeyPaymentID,
		"products_sku_unique":     KeySKU,
		"some_other_constraint":   "",
	}
	for constraint, key := range cases {
		err := pgDuplicate(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: constraint})
		if !errors.Is(err, ErrDuplicate) || DuplicateKey(err) != key {
			t.Fatalf("%s: got %v (key %q), want %q", constraint, err, DuplicateKey(err), key)
		}
	}
	if err := pgDuplicate(&pgconn.PgError{Code: "23503"}); errors.Is(err, ErrDuplicate) {
		t.Fatalf("foreign key violation reported as duplicate: %v", err)
	}
}
