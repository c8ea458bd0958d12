package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/database"
	"storefront/internal/models"
)

// cartSaveAttempts bounds how often a cart write is retried after losing a
// race with another write to the same cart.
const cartSaveAttempts = 3

// CartService manages shopping carts. Carts hold no prices: every view prices
// the lines from the current catalog.
type CartService struct {
	store database.CartStore
	now   func() time.Time
}

func NewCartService(store database.CartStore, now func() time.Time) *CartService {
	if now == nil {
		now = time.Now
	}
	return &CartService{store: store, now: now}
}

// NewCartSessionID returns an id a guest uses to find their cart again.
func NewCartSessionID() string {
	return newID()
}

// CartLine is a cart item priced against the catalog. Lines whose product is
// gone or inactive are shown but not counted in the totals.
type CartLine struct {
	Item        models.CartItem
	ProductName string
	ProductSKU  string
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	Stock       int
	Available   bool
}

type CartView struct {
	Cart       models.Cart
	Lines      []CartLine
	TotalPrice decimal.Decimal
	TotalItems int
}

func validOwner(owner models.CartOwner) (models.CartOwner, error) {
	owner.UserID = strings.TrimSpace(owner.UserID)
	owner.SessionID = strings.TrimSpace(owner.SessionID)
	if owner.Guest() && owner.SessionID == "" {
		return owner, ValidationError{Field: "session", Message: "a cart session is required"}
	}
	return owner, nil
}

func validCartQuantity(qty int) error {
	if qty < 1 {
		return ValidationError{Field: "quantity", Message: "must be at least 1"}
	}
	if qty > MaxLineQuantity {
		return ValidationError{Field: "quantity", Message: fmt.Sprintf("must be at most %d", MaxLineQuantity)}
	}
	return nil
}

// GetCart returns the owner's active cart, creating an empty one when there is
// none yet.
func (s *CartService) GetCart(ctx context.Context, owner models.CartOwner) (*CartView, error) {
	owner, err := validOwner(owner)
	if err != nil {
		return nil, err
	}
	cart, err := s.activeCart(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart)
}

// AddItem puts qty units of a product in the cart, merging with a line that
// already holds it. The merged quantity may not exceed the current stock.
func (s *CartService) AddItem(ctx context.Context, owner models.CartOwner, productID string, qty int) (*CartView, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, ValidationError{Field: "productId", Message: "is required"}
	}
	if err := validCartQuantity(qty); err != nil {
		return nil, err
	}

	return s.mutate(ctx, owner, func(ctx context.Context, cart *models.Cart) error {
		product, err := s.sellableProduct(ctx, productID)
		if err != nil {
			return err
		}

		i := cart.ItemForProduct(productID)
		total := qty
		if i >= 0 {
			if cart.Items[i].Quantity > MaxLineQuantity-qty {
				return ValidationError{Field: "quantity", Message: fmt.Sprintf("must be at most %d in total", MaxLineQuantity)}
			}
			total += cart.Items[i].Quantity
		}
		if total > product.Stock {
			return cartStockError(product)
		}

		if i >= 0 {
			cart.Items[i].Quantity = total
			return nil
		}
		cart.Items = append(cart.Items, models.CartItem{
			ID:        newID(),
			ProductID: productID,
			Quantity:  qty,
			AddedAt:   s.now(),
		})
		return nil
	})
}

// UpdateItem sets the quantity of one line.
func (s *CartService) UpdateItem(ctx context.Context, owner models.CartOwner, itemID string, qty int) (*CartView, error) {
	if err := validCartQuantity(qty); err != nil {
		return nil, err
	}

	return s.mutate(ctx, owner, func(ctx context.Context, cart *models.Cart) error {
		i := cart.Item(itemID)
		if i < 0 {
			return NotFoundError{Resource: "cart item", ID: itemID}
		}
		product, err := s.sellableProduct(ctx, cart.Items[i].ProductID)
		if err != nil {
			return err
		}
		if qty > product.Stock {
			return cartStockError(product)
		}
		cart.Items[i].Quantity = qty
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, owner models.CartOwner, itemID string) (*CartView, error) {
	return s.mutate(ctx, owner, func(_ context.Context, cart *models.Cart) error {
		i := cart.Item(itemID)
		if i < 0 {
			return NotFoundError{Resource: "cart item", ID: itemID}
		}
		cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		return nil
	})
}

func (s *CartService) Clear(ctx context.Context, owner models.CartOwner) (*CartView, error) {
	return s.mutate(ctx, owner, func(_ context.Context, cart *models.Cart) error {
		cart.Items = []models.CartItem{}
		return nil
	})
}

func (s *CartService) sellableProduct(ctx context.Context, productID string) (models.Product, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if errors.Is(err, database.ErrNotFound) || (err == nil && !product.Available()) {
		return models.Product{}, NotFoundError{Resource: "product", ID: productID}
	}
	return product, err
}

func cartStockError(product models.Product) ValidationError {
	available := max(product.Stock, 0)
	return ValidationError{Field: "quantity", Message: fmt.Sprintf("insufficient stock, only %d units available", available)}
}

// activeCart reads the owner's cart or creates it. Two first requests racing
// to create it both end up with the one that won the insert.
func (s *CartService) activeCart(ctx context.Context, owner models.CartOwner) (models.Cart, error) {
	cart, err := s.store.GetActiveCart(ctx, owner)
	if !errors.Is(err, database.ErrNotFound) {
		return cart, err
	}

	cart = owner.NewCart(newID(), s.now())
	err = s.store.InsertCart(ctx, &cart)
	if database.DuplicateKey(err) == database.KeyActiveCart {
		return s.store.GetActiveCart(ctx, owner)
	}
	return cart, err
}

// mutate applies change to a fresh copy of the owner's cart and saves it,
// starting over when another write got there first.
func (s *CartService) mutate(ctx context.Context, owner models.CartOwner, change func(ctx context.Context, cart *models.Cart) error) (*CartView, error) {
	owner, err := validOwner(owner)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= cartSaveAttempts; attempt++ {
		cart, err := s.activeCart(ctx, owner)
		if err != nil {
			return nil, err
		}
		if err := change(ctx, &cart); err != nil {
			return nil, err
		}
		cart.UpdatedAt = s.now()

		err = s.store.SaveCart(ctx, &cart)
		if errors.Is(err, database.ErrStale) {
			log.Printf("[CART] [WARN] cart %s changed concurrently, retrying (attempt %d)", cart.ID, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.view(ctx, cart)
	}
	return nil, ConflictError{Reason: "cart changed concurrently, retry"}
}

func (s *CartService) view(ctx context.Context, cart models.Cart) (*CartView, error) {
	view := &CartView{
		Cart:       cart,
		Lines:      make([]CartLine, 0, len(cart.Items)),
		TotalPrice: decimal.Zero,
	}
	for _, item := range cart.Items {
		line := CartLine{Item: item}
		product, err := s.store.GetProduct(ctx, item.ProductID)
		switch {
		case errors.Is(err, database.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			line.ProductName = product.Name
			line.ProductSKU = product.SKU
			line.UnitPrice = product.EffectivePrice()
			line.Subtotal = LineSubtotal(line.UnitPrice, item.Quantity)
			line.Stock = product.Stock
			line.Available = product.Available()
		}
		if line.Available {
			view.TotalPrice = view.TotalPrice.Add(line.Subtotal)
			view.TotalItems += item.Quantity
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}
