package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

const pgUniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore keeps the catalog and orders in PostgreSQL. Money columns are
// NUMERIC and travel as text so no precision is lost on the way in or out.
type PostgresStore struct {
	pool *pgxpool.Pool
	pgRepo
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, pgRepo: pgRepo{q: pool}}
}

// pgRepo implements Repository on top of a pool or a transaction. Inside a
// transaction order reads take a row lock.
type pgRepo struct {
	q    querier
	inTx bool
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &pgRepo{q: tx, inTx: true})
	})
}

const productColumns = `id, name, sku, price::text, discount_price::text, stock, is_active, is_deleted, created_at, updated_at`

func scanProduct(row pgx.Row) (models.Product, error) {
	var (
		p             models.Product
		price         string
		discountPrice *string
	)
	err := row.Scan(&p.ID, &p.Name, &p.SKU, &price, &discountPrice, &p.Stock, &p.IsActive, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.Product{}, pgNotFound(err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return models.Product{}, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	if p.DiscountPrice, err = nullableDecimal(discountPrice); err != nil {
		return models.Product{}, fmt.Errorf("product %s discount price: %w", p.ID, err)
	}
	return p, nil
}

func (r *pgRepo) GetProduct(ctx context.Context, id string) (models.Product, error) {
	return scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// decrementStockSQL only touches a sellable row that still has $2 units.
const decrementStockSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2 AND is_active AND NOT is_deleted`

const incrementStockSQL = `UPDATE products SET stock = stock + $2 WHERE id = $1`

func (r *pgRepo) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	tag, err := r.q.Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgRepo) IncrementStock(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	tag, err := r.q.Exec(ctx, incrementStockSQL, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const couponColumns = `id, code, discount_type, discount_value::text, is_active, expires_at, usage_limit, used_count, created_at`

func scanCoupon(row pgx.Row) (models.Coupon, error) {
	var (
		c     models.Coupon
		kind  string
		value string
	)
	err := row.Scan(&c.ID, &c.Code, &kind, &value, &c.IsActive, &c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.CreatedAt)
	if err != nil {
		return models.Coupon{}, pgNotFound(err)
	}
	c.DiscountType = models.DiscountType(kind)
	if c.DiscountValue, err = decimal.NewFromString(value); err != nil {
		return models.Coupon{}, fmt.Errorf("coupon %s value: %w", c.ID, err)
	}
	return c, nil
}

func (r *pgRepo) FindCouponByCode(ctx context.Context, code string) (models.Coupon, error) {
	return scanCoupon(r.q.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
}

func (r *pgRepo) IncrementCouponUsage(ctx context.Context, couponID string) error {
	tag, err := r.q.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1`, couponID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const orderColumns = `id, order_number, user_id, full_name, email, phone, address_line1, address_line2,
	city, state, postal_code, country, notes, subtotal::text, shipping_cost::text, tax::text,
	discount::text, total::text, coupon_code, status, payment_method, payment_id, is_paid, paid_at,
	tracking_number, delivered_at, estimated_delivery, created_at, updated_at`

// InsertOrder writes the order and its lines in one batch, which the server
// runs as a single implicit transaction when no explicit one is open.
func (r *pgRepo) InsertOrder(ctx context.Context, order *models.Order) error {
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO orders (`+orderInsertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		order.ID, order.OrderNumber, order.UserID,
		order.Contact.FullName, order.Contact.Email, order.Contact.Phone,
		order.Contact.AddressLine1, order.Contact.AddressLine2, order.Contact.City,
		order.Contact.State, order.Contact.PostalCode, order.Contact.Country,
		order.Notes,
		order.Subtotal.String(), order.ShippingCost.String(), order.Tax.String(),
		order.Discount.String(), order.Total.String(),
		order.CouponCode, string(order.Status), order.PaymentMethod, nullableString(order.PaymentID),
		order.IsPaid, order.PaidAt, order.TrackingNumber, order.DeliveredAt, order.EstimatedDelivery,
		order.CreatedAt, order.UpdatedAt,
	)
	for i, item := range order.Items {
		batch.Queue(`INSERT INTO order_items (order_id, position, product_id, product_name, product_sku, unit_price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			order.ID, i, item.ProductID, item.ProductName, item.ProductSKU,
			item.UnitPrice.String(), item.Quantity, item.Subtotal.String(),
		)
	}

	results := r.q.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return pgDuplicate(err)
		}
	}
	return pgDuplicate(results.Close())
}

const orderInsertColumns = `id, order_number, user_id, full_name, email, phone, address_line1, address_line2,
	city, state, postal_code, country, notes, subtotal, shipping_cost, tax,
	discount, total, coupon_code, status, payment_method, payment_id, is_paid, paid_at,
	tracking_number, delivered_at, estimated_delivery, created_at, updated_at`

func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		o                                    models.Order
		subtotal, shipping, tax, disc, total string
		status                               string
		paymentID                            *string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID,
		&o.Contact.FullName, &o.Contact.Email, &o.Contact.Phone,
		&o.Contact.AddressLine1, &o.Contact.AddressLine2, &o.Contact.City,
		&o.Contact.State, &o.Contact.PostalCode, &o.Contact.Country,
		&o.Notes, &subtotal, &shipping, &tax, &disc, &total,
		&o.CouponCode, &status, &o.PaymentMethod, &paymentID, &o.IsPaid, &o.PaidAt,
		&o.TrackingNumber, &o.DeliveredAt, &o.EstimatedDelivery, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return models.Order{}, pgNotFound(err)
	}
	o.Status = models.OrderStatus(status)
	if paymentID != nil {
		o.PaymentID = *paymentID
	}

	amounts := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&o.Subtotal, subtotal}, {&o.ShippingCost, shipping}, {&o.Tax, tax},
		{&o.Discount, disc}, {&o.Total, total},
	}
	for _, a := range amounts {
		if *a.dst, err = decimal.NewFromString(a.src); err != nil {
			return models.Order{}, fmt.Errorf("order %s amount: %w", o.OrderNumber, err)
		}
	}
	return o, nil
}

func (r *pgRepo) GetOrderByNumber(ctx context.Context, orderNumber string) (models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	if r.inTx {
		query += ` FOR UPDATE`
	}
	order, err := scanOrder(r.q.QueryRow(ctx, query, orderNumber))
	if err != nil {
		return models.Order{}, err
	}

	items, err := r.loadItems(ctx, []string{order.ID})
	if err != nil {
		return models.Order{}, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *pgRepo) loadItems(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT order_id, product_id, product_name, product_sku, unit_price::text, quantity, subtotal::text
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make(map[string][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID         string
			item            models.OrderItem
			price, subtotal string
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.ProductSKU, &price, &item.Quantity, &subtotal); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if item.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}
	return items, rows.Err()
}

func (r *pgRepo) UpdateOrderStatus(ctx context.Context, orderNumber string, from []models.OrderStatus, change models.StatusChange) (bool, error) {
	query, args := statusChangeSQL(orderNumber, from, change)
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func statusChangeSQL(orderNumber string, from []models.OrderStatus, change models.StatusChange) (string, []any) {
	args := []any{orderNumber, string(change.To), change.At}
	set := []string{"status = $2", "updated_at = $3"}
	if change.TrackingNumber != "" {
		args = append(args, change.TrackingNumber)
		set = append(set, fmt.Sprintf("tracking_number = $%d", len(args)))
	}
	if change.DeliveredAt != nil {
		args = append(args, *change.DeliveredAt)
		set = append(set, fmt.Sprintf("delivered_at = $%d", len(args)))
	}
	if change.EstimatedDelivery != nil {
		args = append(args, *change.EstimatedDelivery)
		set = append(set, fmt.Sprintf("estimated_delivery = $%d", len(args)))
	}

	query := `UPDATE orders SET ` + strings.Join(set, ", ") + ` WHERE order_number = $1`
	if len(from) > 0 {
		statuses := make([]string, len(from))
		for i, st := range from {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		query += fmt.Sprintf(` AND status = ANY($%d)`, len(args))
	}
	return query, args
}

func (r *pgRepo) AppendStatusHistory(ctx context.Context, entry models.OrderStatusHistory) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO order_status_history (id, order_id, order_number, status, comment, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.OrderID, entry.OrderNumber, string(entry.Status), entry.Comment, entry.Actor, entry.CreatedAt)
	return err
}

func (s *PostgresStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	where, args := orderFilterSQL(filter)
	query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY created_at DESC` + limitOffset(filter.Limit, filter.Skip)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	orders := make([]models.Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func orderFilterSQL(filter models.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.PaymentMethod != "" {
		add("payment_method = $%d", filter.PaymentMethod)
	}
	if filter.CreatedFrom != nil {
		add("created_at >= $%d", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		add("created_at <= $%d", *filter.CreatedTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func limitOffset(limit, skip int64) string {
	clause := ""
	if limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", limit)
	}
	if skip > 0 {
		clause += fmt.Sprintf(" OFFSET %d", skip)
	}
	return clause
}

func (s *PostgresStore) ListStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, order_number, status, comment, actor, created_at
		FROM order_status_history WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]models.OrderStatusHistory, 0)
	for rows.Next() {
		var (
			entry  models.OrderStatusHistory
			status string
		)
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.OrderNumber, &status, &entry.Comment, &entry.Actor, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Status = models.OrderStatus(status)
		history = append(history, entry)
	}
	return history, rows.Err()
}

// DeleteOrder removes the order; lines and history go with it via ON DELETE CASCADE.
func (s *PostgresStore) DeleteOrder(ctx context.Context, orderNumber string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE order_number = $1`, orderNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	where := ` WHERE NOT is_deleted`
	if filter.AvailableOnly {
		where += ` AND is_active`
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products`+where+` ORDER BY created_at DESC`+limitOffset(filter.Limit, filter.Skip))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}
	return products, total, rows.Err()
}

func (s *PostgresStore) InsertProduct(ctx context.Context, product *models.Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, sku, price, discount_price, stock, is_active, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		product.ID, product.Name, product.SKU, product.Price.String(), nullableDecimalText(product.DiscountPrice),
		product.Stock, product.IsActive, product.IsDeleted, product.CreatedAt, product.UpdatedAt)
	return pgDuplicate(err)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error) {
	set, args := productPatchSQL(patch)
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d RETURNING %s`, set, len(args), productColumns)

	product, err := scanProduct(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return models.Product{}, pgDuplicate(err)
	}
	return product, nil
}

// productPatchSQL only assigns stock when the patch carries it so concurrent
// checkout decrements are not overwritten.
func productPatchSQL(patch models.ProductPatch) (string, []any) {
	args := []any{patch.UpdatedAt}
	set := []string{"updated_at = $1"}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.SKU != nil {
		add("sku", *patch.SKU)
	}
	if patch.Price != nil {
		add("price", patch.Price.String())
	}
	if patch.ClearDiscount {
		set = append(set, "discount_price = NULL")
	} else if patch.DiscountPrice != nil {
		add("discount_price", patch.DiscountPrice.String())
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.IsDeleted != nil {
		add("is_deleted", *patch.IsDeleted)
	}
	return strings.Join(set, ", "), args
}

func (s *PostgresStore) ListCoupons(ctx context.Context) ([]models.Coupon, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coupons := make([]models.Coupon, 0)
	for rows.Next() {
		coupon, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, coupon)
	}
	return coupons, rows.Err()
}

func (s *PostgresStore) GetCoupon(ctx context.Context, id string) (models.Coupon, error) {
	return scanCoupon(s.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id))
}

func (s *PostgresStore) InsertCoupon(ctx context.Context, coupon *models.Coupon) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO coupons (id, code, discount_type, discount_value, is_active, expires_at, usage_limit, used_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		coupon.ID, coupon.Code, string(coupon.DiscountType), coupon.DiscountValue.String(), coupon.IsActive,
		coupon.ExpiresAt, coupon.UsageLimit, coupon.UsedCount, coupon.CreatedAt)
	return pgDuplicate(err)
}

func (s *PostgresStore) UpdateCoupon(ctx context.Context, id string, patch models.CouponPatch) (models.Coupon, error) {
	set, args := couponPatchSQL(patch)
	if set == "" {
		return s.GetCoupon(ctx, id)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE coupons SET %s WHERE id = $%d RETURNING %s`, set, len(args), couponColumns)
	return scanCoupon(s.pool.QueryRow(ctx, query, args...))
}

func couponPatchSQL(patch models.CouponPatch) (string, []any) {
	var (
		set  []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.DiscountValue != nil {
		add("discount_value", patch.DiscountValue.String())
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.ClearExpiry {
		set = append(set, "expires_at = NULL")
	} else if patch.ExpiresAt != nil {
		add("expires_at", *patch.ExpiresAt)
	}
	if patch.ClearUsageLimit {
		set = append(set, "usage_limit = NULL")
	} else if patch.UsageLimit != nil {
		add("usage_limit", *patch.UsageLimit)
	}
	return strings.Join(set, ", "), args
}

const cartColumns = `id, user_id, session_id, is_active, version, created_at, updated_at`

func (s *PostgresStore) GetActiveCart(ctx context.Context, owner models.CartOwner) (models.Cart, error) {
	query := `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 AND is_active`
	arg := owner.UserID
	if owner.Guest() {
		if owner.SessionID == "" {
			return models.Cart{}, ErrNotFound
		}
		query = `SELECT ` + cartColumns + ` FROM carts WHERE session_id = $1 AND user_id IS NULL AND is_active`
		arg = owner.SessionID
	}

	var cart models.Cart
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&cart.ID, &cart.UserID, &cart.SessionID, &cart.IsActive, &cart.Version, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		return models.Cart{}, pgNotFound(err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, quantity, added_at FROM cart_items
		WHERE cart_id = $1 ORDER BY added_at, id`, cart.ID)
	if err != nil {
		return models.Cart{}, err
	}
	cart.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CartItem, error) {
		var item models.CartItem
		err := row.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.AddedAt)
		return item, err
	})
	if err != nil {
		return models.Cart{}, err
	}
	return cart, nil
}

func (s *PostgresStore) InsertCart(ctx context.Context, cart *models.Cart) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO carts (`+cartColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			cart.ID, cart.UserID, cart.SessionID, cart.IsActive, cart.Version, cart.CreatedAt, cart.UpdatedAt)
		if err != nil {
			return pgDuplicate(err)
		}
		return insertCartItems(ctx, tx, cart)
	})
}

// SaveCart bumps the version first so a concurrent writer holding the same
// version matches no row, then rewrites the items.
func (s *PostgresStore) SaveCart(ctx context.Context, cart *models.Cart) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE carts SET version = version + 1, is_active = $3, updated_at = $4
			WHERE id = $1 AND version = $2`,
			cart.ID, cart.Version, cart.IsActive, cart.UpdatedAt)
		if err != nil {
			return pgDuplicate(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrStale
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
			return err
		}
		return insertCartItems(ctx, tx, cart)
	})
	if err != nil {
		return err
	}
	cart.Version++
	return nil
}

func insertCartItems(ctx context.Context, tx pgx.Tx, cart *models.Cart) error {
	if len(cart.Items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, item := range cart.Items {
		batch.Queue(`INSERT INTO cart_items (cart_id, id, product_id, quantity, added_at) VALUES ($1, $2, $3, $4, $5)`,
			cart.ID, item.ID, item.ProductID, item.Quantity, item.AddedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func nullableDecimal(text *string) (*decimal.Decimal, error) {
	if text == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*text)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableDecimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	text := d.String()
	return &text
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func pgNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// pgConstraintKeys maps unique constraint names to the key they protect.
var pgConstraintKeys = map[string]string{
	"orders_order_number_key": KeyOrderNumber,
	"orders_payment_id_key":   KeyPaymentID,
	"products_sku_unique":     KeySKU,
	"coupons_code_key":        KeyCouponCode,
	"carts_user_active":       KeyActiveCart,
	"carts_session_active":    KeyActiveCart,
}

func pgDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return DuplicateKeyError{Key: pgConstraintKeys[pgErr.ConstraintName], Err: err}
	}
	return err
}

var _ Backend = (*PostgresStore)(nil)
