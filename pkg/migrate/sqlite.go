package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for local SQLite runs and
// repository tests. Array columns hold the Postgres array literal as text and
// jsonb columns hold raw JSON.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		short_description TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL,
		category TEXT NOT NULL,
		image TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '{}',
		customizable BOOLEAN NOT NULL DEFAULT 0,
		ingredients TEXT NOT NULL DEFAULT '{}',
		calories_total INTEGER NOT NULL DEFAULT 0,
		calories_fat INTEGER NOT NULL DEFAULT 0,
		calories_protein INTEGER NOT NULL DEFAULT 0,
		calories_carbs INTEGER NOT NULL DEFAULT 0,
		in_stock BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS products_name_lower_key ON products (lower(name))`,
	`CREATE TABLE IF NOT EXISTS product_variations (
		product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		size TEXT NOT NULL,
		price NUMERIC NOT NULL,
		PRIMARY KEY (product_id, size)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT users_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		status TEXT NOT NULL,
		total_price NUMERIC NOT NULL,
		shipping_address TEXT NOT NULL,
		shipping_city TEXT NOT NULL,
		shipping_postal_code TEXT NOT NULL,
		shipping_country TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_transaction_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS orders_user_id_idx ON orders (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		product TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		total_price NUMERIC NOT NULL,
		customization TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (order_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS reviews_product_id_idx ON reviews (product_id)`,
	`CREATE TABLE IF NOT EXISTS favorites (
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		created_at DATETIME,
		PRIMARY KEY (user_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlqs (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// ApplySQLite creates the schema on a SQLite connection. It is idempotent.
func ApplySQLite(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
