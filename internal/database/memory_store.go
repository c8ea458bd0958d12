package database

import (
	"context"
	"sort"
	"sync"

	"storefront/internal/models"
)

// MemoryStore keeps everything in process. Transactions are serialized and
// work on a copy of the data that replaces the live copy on commit, so a
// failed transaction leaves no trace.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
}

type memoryState struct {
	products map[string]models.Product
	coupons  map[string]models.Coupon
	orders   map[string]models.Order
	history  []models.OrderStatusHistory
	carts    map[string]models.Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		products: make(map[string]models.Product),
		coupons:  make(map[string]models.Coupon),
		orders:   make(map[string]models.Order),
		carts:    make(map[string]models.Cart),
	}}
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		products: make(map[string]models.Product, len(s.products)),
		coupons:  make(map[string]models.Coupon, len(s.coupons)),
		orders:   make(map[string]models.Order, len(s.orders)),
		history:  append([]models.OrderStatusHistory(nil), s.history...),
		carts:    make(map[string]models.Cart, len(s.carts)),
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.coupons {
		out.coupons[k] = v
	}
	for k, v := range s.orders {
		out.orders[k] = v
	}
	for k, v := range s.carts {
		out.carts[k] = v
	}
	return out
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(ctx, memoryRepo{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *MemoryStore) read(fn func(repo memoryRepo)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(memoryRepo{state: s.state})
}

func (s *MemoryStore) write(fn func(repo memoryRepo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(memoryRepo{state: s.state})
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (product models.Product, err error) {
	s.read(func(r memoryRepo) { product, err = r.GetProduct(ctx, id) })
	return
}

func (s *MemoryStore) DecrementStock(ctx context.Context, productID string, qty int) (ok bool, err error) {
	s.write(func(r memoryRepo) { ok, err = r.DecrementStock(ctx, productID, qty) })
	return
}

func (s *MemoryStore) IncrementStock(ctx context.Context, productID string, qty int) (err error) {
	s.write(func(r memoryRepo) { err = r.IncrementStock(ctx, productID, qty) })
	return
}

func (s *MemoryStore) FindCouponByCode(ctx context.Context, code string) (coupon models.Coupon, err error) {
	s.read(func(r memoryRepo) { coupon, err = r.FindCouponByCode(ctx, code) })
	return
}

func (s *MemoryStore) IncrementCouponUsage(ctx context.Context, couponID string) (err error) {
	s.write(func(r memoryRepo) { err = r.IncrementCouponUsage(ctx, couponID) })
	return
}

func (s *MemoryStore) InsertOrder(ctx context.Context, order *models.Order) (err error) {
	s.write(func(r memoryRepo) { err = r.InsertOrder(ctx, order) })
	return
}

func (s *MemoryStore) GetOrderByNumber(ctx context.Context, orderNumber string) (order models.Order, err error) {
	s.read(func(r memoryRepo) { order, err = r.GetOrderByNumber(ctx, orderNumber) })
	return
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, orderNumber string, from []models.OrderStatus, change models.StatusChange) (ok bool, err error) {
	s.write(func(r memoryRepo) { ok, err = r.UpdateOrderStatus(ctx, orderNumber, from, change) })
	return
}

func (s *MemoryStore) AppendStatusHistory(ctx context.Context, entry models.OrderStatusHistory) (err error) {
	s.write(func(r memoryRepo) { err = r.AppendStatusHistory(ctx, entry) })
	return
}

func (s *MemoryStore) ListOrders(_ context.Context, filter models.OrderFilter) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Order, 0)
	for _, order := range s.state.orders {
		if matchesOrderFilter(order, filter) {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, filter.Skip, filter.Limit), nil
}

func matchesOrderFilter(order models.Order, filter models.OrderFilter) bool {
	if filter.UserID != nil && !order.OwnedBy(*filter.UserID) {
		return false
	}
	if filter.Status != "" && order.Status != filter.Status {
		return false
	}
	if filter.PaymentMethod != "" && order.PaymentMethod != filter.PaymentMethod {
		return false
	}
	if filter.CreatedFrom != nil && order.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && order.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	return true
}

func paginate[T any](items []T, skip, limit int64) []T {
	if skip > 0 {
		if skip >= int64(len(items)) {
			return []T{}
		}
		items = items[skip:]
	}
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}

func (s *MemoryStore) ListStatusHistory(_ context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.OrderStatusHistory, 0)
	for _, entry := range s.state.history {
		if entry.OrderID == orderID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteOrder(_ context.Context, orderNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.state.orders[orderNumber]
	if !ok {
		return ErrNotFound
	}
	delete(s.state.orders, orderNumber)
	kept := s.state.history[:0]
	for _, entry := range s.state.history {
		if entry.OrderID != order.ID {
			kept = append(kept, entry)
		}
	}
	s.state.history = kept
	return nil
}

func (s *MemoryStore) ListProducts(_ context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0)
	for _, product := range s.state.products {
		if product.IsDeleted || (filter.AvailableOnly && !product.Available()) {
			continue
		}
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	total := int64(len(out))
	return paginate(out, filter.Skip, filter.Limit), total, nil
}

func (s *MemoryStore) InsertProduct(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.products[product.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range s.state.products {
		if product.SKU != "" && existing.SKU == product.SKU {
			return DuplicateKeyError{Key: KeySKU}
		}
	}
	s.state.products[product.ID] = *product
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, id string, patch models.ProductPatch) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.state.products[id]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	updated := patch.Apply(product)
	if patch.SKU != nil {
		for otherID, existing := range s.state.products {
			if otherID != id && updated.SKU != "" && existing.SKU == updated.SKU {
				return models.Product{}, DuplicateKeyError{Key: KeySKU}
			}
		}
	}
	s.state.products[id] = updated
	return updated, nil
}

func (s *MemoryStore) ListCoupons(_ context.Context) ([]models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Coupon, 0, len(s.state.coupons))
	for _, coupon := range s.state.coupons {
		out = append(out, coupon)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (s *MemoryStore) GetCoupon(_ context.Context, id string) (models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coupon, ok := s.state.coupons[id]
	if !ok {
		return models.Coupon{}, ErrNotFound
	}
	return coupon, nil
}

func (s *MemoryStore) InsertCoupon(_ context.Context, coupon *models.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.state.coupons {
		if existing.ID == coupon.ID {
			return ErrDuplicate
		}
		if existing.Code == coupon.Code {
			return DuplicateKeyError{Key: KeyCouponCode}
		}
	}
	s.state.coupons[coupon.ID] = *coupon
	return nil
}

func (s *MemoryStore) UpdateCoupon(_ context.Context, id string, patch models.CouponPatch) (models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coupon, ok := s.state.coupons[id]
	if !ok {
		return models.Coupon{}, ErrNotFound
	}
	updated := patch.Apply(coupon)
	s.state.coupons[id] = updated
	return updated, nil
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }

// memoryRepo is the Repository view over one memoryState. The caller holds
// the store lock.
type memoryRepo struct {
	state *memoryState
}

func (r memoryRepo) GetProduct(_ context.Context, id string) (models.Product, error) {
	product, ok := r.state.products[id]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	return product, nil
}

func (r memoryRepo) DecrementStock(_ context.Context, productID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	product, ok := r.state.products[productID]
	if !ok || !product.Available() || product.Stock < qty {
		return false, nil
	}
	product.Stock -= qty
	r.state.products[productID] = product
	return true, nil
}

func (r memoryRepo) IncrementStock(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	product, ok := r.state.products[productID]
	if !ok {
		return ErrNotFound
	}
	product.Stock += qty
	r.state.products[productID] = product
	return nil
}

func (r memoryRepo) FindCouponByCode(_ context.Context, code string) (models.Coupon, error) {
	for _, coupon := range r.state.coupons {
		if coupon.Code == code {
			return coupon, nil
		}
	}
	return models.Coupon{}, ErrNotFound
}

func (r memoryRepo) IncrementCouponUsage(_ context.Context, couponID string) error {
	coupon, ok := r.state.coupons[couponID]
	if !ok {
		return ErrNotFound
	}
	coupon.UsedCount++
	r.state.coupons[couponID] = coupon
	return nil
}

func (r memoryRepo) InsertOrder(_ context.Context, order *models.Order) error {
	if _, ok := r.state.orders[order.OrderNumber]; ok {
		return DuplicateKeyError{Key: KeyOrderNumber}
	}
	if order.PaymentID != "" {
		for _, existing := range r.state.orders {
			if existing.PaymentID == order.PaymentID {
				return DuplicateKeyError{Key: KeyPaymentID}
			}
		}
	}
	r.state.orders[order.OrderNumber] = cloneOrder(*order)
	return nil
}

func (r memoryRepo) GetOrderByNumber(_ context.Context, orderNumber string) (models.Order, error) {
	order, ok := r.state.orders[orderNumber]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	return cloneOrder(order), nil
}

func (r memoryRepo) UpdateOrderStatus(_ context.Context, orderNumber string, from []models.OrderStatus, change models.StatusChange) (bool, error) {
	order, ok := r.state.orders[orderNumber]
	if !ok {
		return false, nil
	}
	if len(from) > 0 && !containsStatus(from, order.Status) {
		return false, nil
	}
	order.Status = change.To
	order.UpdatedAt = change.At
	if change.TrackingNumber != "" {
		order.TrackingNumber = change.TrackingNumber
	}
	if change.DeliveredAt != nil {
		delivered := *change.DeliveredAt
		order.DeliveredAt = &delivered
	}
	if change.EstimatedDelivery != nil {
		estimated := *change.EstimatedDelivery
		order.EstimatedDelivery = &estimated
	}
	r.state.orders[orderNumber] = order
	return true, nil
}

func (r memoryRepo) AppendStatusHistory(_ context.Context, entry models.OrderStatusHistory) error {
	r.state.history = append(r.state.history, entry)
	return nil
}

func containsStatus(statuses []models.OrderStatus, status models.OrderStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneOrder(order models.Order) models.Order {
	order.Items = append([]models.OrderItem(nil), order.Items...)
	return order
}

func ownsCart(cart models.Cart, owner models.CartOwner) bool {
	if !cart.IsActive {
		return false
	}
	if owner.Guest() {
		return cart.UserID == nil && owner.SessionID != "" && cart.SessionID == owner.SessionID
	}
	return cart.UserID != nil && *cart.UserID == owner.UserID
}

func cloneCart(cart models.Cart) models.Cart {
	cart.Items = append([]models.CartItem{}, cart.Items...)
	return cart
}

func (s *MemoryStore) GetActiveCart(_ context.Context, owner models.CartOwner) (models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cart := range s.state.carts {
		if ownsCart(cart, owner) {
			return cloneCart(cart), nil
		}
	}
	return models.Cart{}, ErrNotFound
}

func (s *MemoryStore) InsertCart(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.carts[cart.ID]; ok {
		return ErrDuplicate
	}
	if cart.IsActive {
		owner := models.CartOwner{SessionID: cart.SessionID}
		if cart.UserID != nil {
			owner.UserID = *cart.UserID
		}
		for _, existing := range s.state.carts {
			if ownsCart(existing, owner) {
				return DuplicateKeyError{Key: KeyActiveCart}
			}
		}
	}
	s.state.carts[cart.ID] = cloneCart(*cart)
	return nil
}

func (s *MemoryStore) SaveCart(_ context.Context, cart *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.state.carts[cart.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != cart.Version {
		return ErrStale
	}
	cart.Version++
	stored.Items = append([]models.CartItem{}, cart.Items...)
	stored.IsActive = cart.IsActive
	stored.UpdatedAt = cart.UpdatedAt
	stored.Version = cart.Version
	s.state.carts[cart.ID] = stored
	return nil
}
