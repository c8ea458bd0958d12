package database

import (
	"context"

	"storefront/internal/models"
)

// Repository is the set of reads and writes a checkout performs. Inside
// Store.WithTx every call joins the same transaction.
type Repository interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)
	// DecrementStock subtracts qty only when at least qty units remain and
	// reports whether it did.
	DecrementStock(ctx context.Context, productID string, qty int) (bool, error)
	IncrementStock(ctx context.Context, productID string, qty int) error

	FindCouponByCode(ctx context.Context, code string) (models.Coupon, error)
	IncrementCouponUsage(ctx context.Context, couponID string) error

	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrderByNumber(ctx context.Context, orderNumber string) (models.Order, error)
	// UpdateOrderStatus applies change only when the order is currently in one
	// of from (any status when from is empty) and reports whether it did.
	UpdateOrderStatus(ctx context.Context, orderNumber string, from []models.OrderStatus, change models.StatusChange) (bool, error)
	AppendStatusHistory(ctx context.Context, entry models.OrderStatusHistory) error
}

type Store interface {
	Repository
	WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	ListStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error)
	DeleteOrder(ctx context.Context, orderNumber string) error
}

// Catalog is the product and coupon administration surface.
type Catalog interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	InsertProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error)

	ListCoupons(ctx context.Context) ([]models.Coupon, error)
	GetCoupon(ctx context.Context, id string) (models.Coupon, error)
	InsertCoupon(ctx context.Context, coupon *models.Coupon) error
	UpdateCoupon(ctx context.Context, id string, patch models.CouponPatch) (models.Coupon, error)
}

// CartStore keeps shopping carts. Cart writes are optimistic: SaveCart only
// succeeds when the stored version still matches cart.Version.
type CartStore interface {
	GetProduct(ctx context.Context, id string) (models.Product, error)

	// GetActiveCart returns ErrNotFound when owner has no active cart.
	GetActiveCart(ctx context.Context, owner models.CartOwner) (models.Cart, error)
	// InsertCart fails with a DuplicateKeyError on KeyActiveCart when the
	// owner already has an active cart.
	InsertCart(ctx context.Context, cart *models.Cart) error
	// SaveCart replaces the items and active flag and bumps cart.Version. It
	// returns ErrStale when the cart changed since it was read.
	SaveCart(ctx context.Context, cart *models.Cart) error
}

// Backend is everything a storage driver provides.
type Backend interface {
	Store
	Catalog
	CartStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
