package idempotency

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestKeyTrimsHeader(t *testing.T) {
	req := httptest.NewRequest("POST", "/payments/confirm", nil)
	req.Header.Set(Header, "  abc-123 ")
	if got := Key(req); got != "abc-123" {
		t.Fatalf("Key() = %q", got)
	}
}

func TestScopedKeySeparatesCallers(t *testing.T) {
	req := httptest.NewRequest("POST", "/payments/confirm", nil)
	if got := ScopedKey(req, "u-1"); got != "" {
		t.Fatalf("ScopedKey() without header = %q", got)
	}

	req.Header.Set(Header, "abc")
	if got := ScopedKey(req, "u-1"); got != "u-1:abc" {
		t.Fatalf("ScopedKey(u-1) = %q", got)
	}
	if got := ScopedKey(req, ""); got != "guest:abc" {
		t.Fatalf("ScopedKey(guest) = %q", got)
	}
}

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStoreWithClient(client, time.Hour)
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	rec, reserved, err := store.Reserve(ctx, "k1")
	if err != nil || !reserved || rec.State != StatePending {
		t.Fatalf("first reserve = %+v %v %v", rec, reserved, err)
	}

	rec, reserved, err = store.Reserve(ctx, "k1")
	if err != nil || reserved || rec.State != StatePending {
		t.Fatalf("second reserve = %+v %v %v", rec, reserved, err)
	}

	if err := store.Complete(ctx, "k1", "ORD-ABC"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	rec, reserved, err = store.Reserve(ctx, "k1")
	if err != nil || reserved || rec.State != StateDone || rec.Value != "ORD-ABC" {
		t.Fatalf("replay = %+v %v %v", rec, reserved, err)
	}

	if _, _, err := store.Reserve(ctx, "k2"); err != nil {
		t.Fatalf("reserve k2: %v", err)
	}
	if err := store.Release(ctx, "k2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, reserved, _ := store.Reserve(ctx, "k2"); !reserved {
		t.Fatal("released key should be reservable again")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	if _, reserved, _ := store.Reserve(context.Background(), "k"); !reserved {
		t.Fatal("expected reservation")
	}
	now = now.Add(2 * time.Minute)
	if _, reserved, _ := store.Reserve(context.Background(), "k"); !reserved {
		t.Fatal("expired key should be reservable again")
	}
}

func TestRedisStore(t *testing.T) {
	_, store := setupRedisStore(t)
	exerciseStore(t, store)
}

func TestRedisStoreTTL(t *testing.T) {
	mr, store := setupRedisStore(t)

	if _, reserved, _ := store.Reserve(context.Background(), "k"); !reserved {
		t.Fatal("expected reservation")
	}
	if ttl := mr.TTL(redisKeyPrefix + ":k"); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if _, reserved, _ := store.Reserve(context.Background(), "k"); !reserved {
		t.Fatal("expired key should be reservable again")
	}
}
