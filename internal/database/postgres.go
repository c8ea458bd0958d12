package database

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	sku            TEXT NOT NULL DEFAULT '',
	price          NUMERIC(12,2) NOT NULL,
	discount_price NUMERIC(12,2),
	stock          INTEGER NOT NULL CHECK (stock >= 0),
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	is_deleted     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS products_sku_unique ON products (sku) WHERE sku <> '';

CREATE TABLE IF NOT EXISTS coupons (
	id             TEXT PRIMARY KEY,
	code           TEXT NOT NULL UNIQUE,
	discount_type  TEXT NOT NULL,
	discount_value NUMERIC(12,2) NOT NULL,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	expires_at     TIMESTAMPTZ,
	usage_limit    INTEGER,
	used_count     INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id              TEXT PRIMARY KEY,
	order_number    TEXT NOT NULL UNIQUE,
	user_id         TEXT,
	full_name       TEXT NOT NULL,
	email           TEXT NOT NULL,
	phone           TEXT NOT NULL,
	address_line1   TEXT NOT NULL,
	address_line2   TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL,
	state           TEXT NOT NULL,
	postal_code     TEXT NOT NULL,
	country         TEXT NOT NULL,
	notes           TEXT NOT NULL DEFAULT '',
	subtotal        NUMERIC(12,2) NOT NULL,
	shipping_cost   NUMERIC(12,2) NOT NULL,
	tax             NUMERIC(12,2) NOT NULL,
	discount        NUMERIC(12,2) NOT NULL,
	total           NUMERIC(12,2) NOT NULL,
	coupon_code     TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	payment_method  TEXT NOT NULL,
	payment_id      TEXT UNIQUE,
	is_paid         BOOLEAN NOT NULL DEFAULT FALSE,
	paid_at         TIMESTAMPTZ,
	tracking_number TEXT NOT NULL DEFAULT '',
	delivered_at    TIMESTAMPTZ,
	estimated_delivery DATE,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
ALTER TABLE orders ADD COLUMN IF NOT EXISTS estimated_delivery DATE;

CREATE INDEX IF NOT EXISTS orders_user_created ON orders (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS order_items (
	order_id     TEXT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	product_id   TEXT NOT NULL,
	product_name TEXT NOT NULL,
	product_sku  TEXT NOT NULL DEFAULT '',
	unit_price   NUMERIC(12,2) NOT NULL,
	quantity     INTEGER NOT NULL CHECK (quantity > 0),
	subtotal     NUMERIC(12,2) NOT NULL,
	PRIMARY KEY (order_id, position)
);

CREATE TABLE IF NOT EXISTS order_status_history (
	id           TEXT PRIMARY KEY,
	order_id     TEXT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
	order_number TEXT NOT NULL,
	status       TEXT NOT NULL,
	comment      TEXT NOT NULL DEFAULT '',
	actor        TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS order_status_history_order ON order_status_history (order_id, created_at);

CREATE TABLE IF NOT EXISTS carts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT,
	session_id TEXT NOT NULL DEFAULT '',
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	version    BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS carts_user_active ON carts (user_id) WHERE is_active AND user_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS carts_session_active ON carts (session_id) WHERE is_active AND user_id IS NULL;

CREATE TABLE IF NOT EXISTS cart_items (
	cart_id    TEXT NOT NULL REFERENCES carts (id) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	product_id TEXT NOT NULL,
	quantity   INTEGER NOT NULL CHECK (quantity > 0),
	added_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (cart_id, id),
	UNIQUE (cart_id, product_id)
);
`

// ConnectPostgres opens a pgx pool and checks it with a ping.
func ConnectPostgres(databaseURL string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func EnsurePostgresSchema(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("EnsurePostgresSchema: applying schema")
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		log.Println("EnsurePostgresSchema: schema error:", err)
		return err
	}
	log.Println("EnsurePostgresSchema: schema ready")
	return nil
}
