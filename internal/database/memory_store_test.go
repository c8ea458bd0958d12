package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

func seedProduct(t *testing.T, s *MemoryStore, id string, stock int) {
	t.Helper()
	err := s.InsertProduct(context.Background(), &models.Product{
		ID:       id,
		Name:     id,
		Price:    decimal.NewFromInt(10),
		Stock:    stock,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func TestMemoryStoreWithTxRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 5)
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(ctx context.Context, repo Repository) error {
		if ok, err := repo.DecrementStock(ctx, "p1", 2); !ok || err != nil {
			t.Fatalf("decrement = %v %v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	p, _ := s.GetProduct(context.Background(), "p1")
	if p.Stock != 5 {
		t.Fatalf("stock = %d after rollback, want 5", p.Stock)
	}
}

func TestMemoryStoreDecrementStockIsConditional(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 2)

	ok, err := s.DecrementStock(context.Background(), "p1", 3)
	if err != nil || ok {
		t.Fatalf("decrement beyond stock = %v %v", ok, err)
	}
	ok, err = s.DecrementStock(context.Background(), "p1", 2)
	if err != nil || !ok {
		t.Fatalf("decrement to zero = %v %v", ok, err)
	}
	if ok, _ := s.DecrementStock(context.Background(), "missing", 1); ok {
		t.Fatal("decrement of unknown product reported success")
	}
}

func TestMemoryStoreRejectsNonPositiveStockMoves(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 2)
	ctx := context.Background()

	for _, qty := range []int{0, -1, -1 << 62} {
		if ok, err := s.DecrementStock(ctx, "p1", qty); ok || !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("decrement %d = %v %v", qty, ok, err)
		}
		if err := s.IncrementStock(ctx, "p1", qty); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("increment %d = %v", qty, err)
		}
	}
	p, _ := s.GetProduct(ctx, "p1")
	if p.Stock != 2 {
		t.Fatalf("stock = %d, want 2", p.Stock)
	}
}

func TestMemoryStoreOrderUniqueness(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &models.Order{ID: "o1", OrderNumber: "ORD-1", PaymentID: "pi_1", Status: models.StatusConfirmed}
	if err := s.InsertOrder(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}
	samePayment := &models.Order{ID: "o2", OrderNumber: "ORD-2", PaymentID: "pi_1"}
	err := s.InsertOrder(ctx, samePayment)
	if !errors.Is(err, ErrDuplicate) || DuplicateKey(err) != KeyPaymentID {
		t.Fatalf("expected duplicate payment id, got %v", err)
	}
	sameNumber := &models.Order{ID: "o3", OrderNumber: "ORD-1"}
	err = s.InsertOrder(ctx, sameNumber)
	if !errors.Is(err, ErrDuplicate) || DuplicateKey(err) != KeyOrderNumber {
		t.Fatalf("expected duplicate order number, got %v", err)
	}
}

func TestMemoryStoreUpdateOrderStatusGuardsCurrentStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.InsertOrder(ctx, &models.Order{ID: "o1", OrderNumber: "ORD-1", Status: models.StatusShipped}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ok, err := s.UpdateOrderStatus(ctx, "ORD-1", models.CancellableStatuses, models.StatusChange{To: models.StatusCancelled, At: time.Now()})
	if err != nil || ok {
		t.Fatalf("guarded update = %v %v", ok, err)
	}

	at := time.Now()
	ok, err = s.UpdateOrderStatus(ctx, "ORD-1", nil, models.StatusChange{To: models.StatusDelivered, At: at, DeliveredAt: &at})
	if err != nil || !ok {
		t.Fatalf("unguarded update = %v %v", ok, err)
	}
	order, _ := s.GetOrderByNumber(ctx, "ORD-1")
	if order.Status != models.StatusDelivered || order.DeliveredAt == nil {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestMemoryStoreListProductsPaginates(t *testing.T) {
	s := NewMemoryStore()
	for i, id := range []string{"a", "b", "c"} {
		err := s.InsertProduct(context.Background(), &models.Product{
			ID: id, Name: id, Price: decimal.NewFromInt(1), IsActive: i != 1,
			CreatedAt: time.Date(2025, 1, i+1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	products, total, err := s.ListProducts(context.Background(), models.ProductFilter{AvailableOnly: true, Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(products) != 1 || products[0].ID != "c" {
		t.Fatalf("unexpected page total=%d products=%+v", total, products)
	}
}

func TestMemoryStoreCartVersioning(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	owner := models.CartOwner{UserID: "u1"}

	if _, err := s.GetActiveCart(ctx, owner); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	cart := owner.NewCart("c1", time.Now())
	if err := s.InsertCart(ctx, &cart); err != nil {
		t.Fatalf("insert: %v", err)
	}
	second := owner.NewCart("c2", time.Now())
	if err := s.InsertCart(ctx, &second); DuplicateKey(err) != KeyActiveCart {
		t.Fatalf("expected active cart duplicate, got %v", err)
	}

	first, _ := s.GetActiveCart(ctx, owner)
	racer, _ := s.GetActiveCart(ctx, owner)

	first.Items = append(first.Items, models.CartItem{ID: "i1", ProductID: "p1", Quantity: 1})
	if err := s.SaveCart(ctx, &first); err != nil {
		t.Fatalf("save: %v", err)
	}
	racer.Items = append(racer.Items, models.CartItem{ID: "i2", ProductID: "p2", Quantity: 1})
	if err := s.SaveCart(ctx, &racer); !errors.Is(err, ErrStale) {
		t.Fatalf("expected stale save, got %v", err)
	}

	stored, _ := s.GetActiveCart(ctx, owner)
	if len(stored.Items) != 1 || stored.Items[0].ID != "i1" || stored.Version != 1 {
		t.Fatalf("unexpected cart %+v", stored)
	}

	guest := models.CartOwner{SessionID: "s1"}
	if _, err := s.GetActiveCart(ctx, guest); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user cart leaked to a guest: %v", err)
	}
}
