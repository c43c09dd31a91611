// Package dbtest opens a file-backed SQLite database carrying the same tables and
// store-level constraints as the Postgres migrations, for repository and service tests.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/bullion-backend/pkg/db"
)

// The sqlite schema mirrors pkg/migrate/migrations without Postgres-only features
// (gen_random_uuid defaults, triggers). Ids are always generated by the caller.
var schema = []string{
	`CREATE TABLE tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE tenant_commodity_margins (
		tenant_id TEXT NOT NULL,
		commodity TEXT NOT NULL,
		margin_percent NUMERIC NOT NULL DEFAULT 0,
		margin_fixed NUMERIC NOT NULL DEFAULT 0,
		updated_at DATETIME,
		PRIMARY KEY (tenant_id, commodity)
	)`,
	`CREATE TABLE wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		cash_balance NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT uq_wallets_user_tenant UNIQUE (user_id, tenant_id),
		CHECK (cash_balance >= 0)
	)`,
	`CREATE TABLE wallet_gram_balances (
		wallet_id TEXT NOT NULL REFERENCES wallets(id) ON DELETE CASCADE,
		commodity TEXT NOT NULL,
		grams NUMERIC NOT NULL DEFAULT 0,
		updated_at DATETIME,
		CONSTRAINT uq_wallet_gram_balances_wallet_commodity UNIQUE (wallet_id, commodity),
		CHECK (grams >= 0)
	)`,
	`CREATE TABLE price_snapshots (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		commodity TEXT NOT NULL,
		effective_day DATE NOT NULL,
		base_price NUMERIC NOT NULL,
		margin_percent NUMERIC NOT NULL,
		margin_fixed NUMERIC NOT NULL,
		final_price NUMERIC NOT NULL,
		set_by TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT uq_price_snapshots_tenant_commodity_day UNIQUE (tenant_id, commodity, effective_day)
	)`,
	`CREATE TABLE bookings (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		commodity TEXT NOT NULL,
		amount_paid NUMERIC NOT NULL,
		grams NUMERIC NOT NULL,
		locked_price_per_gram NUMERIC NOT NULL,
		status TEXT NOT NULL,
		booked_at DATETIME NOT NULL,
		updated_at DATETIME
	)`,
	`CREATE TABLE ledger_transactions (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		user_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		booking_id TEXT REFERENCES bookings(id),
		amount NUMERIC NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		external_ref TEXT,
		metadata BLOB,
		created_at DATETIME,
		CONSTRAINT uq_ledger_transactions_type_ref UNIQUE (type, external_ref),
		CHECK (amount > 0)
	)`,
	`CREATE UNIQUE INDEX uq_ledger_transactions_debit_booking ON ledger_transactions (booking_id) WHERE type = 'DEBIT'`,
	`CREATE TABLE payment_orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		gateway_order_id TEXT NOT NULL,
		gateway_payment_id TEXT,
		amount NUMERIC NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT uq_payment_orders_gateway_order UNIQUE (gateway_order_id)
	)`,
}

// Open returns a client over a fresh database in t.TempDir(). Writers take the
// database lock at BEGIN, so concurrent tests serialize on the store like Postgres rows do.
func Open(t testing.TB) *db.Client {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bullion.db")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate&_foreign_keys=1", path)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}

	client := db.Wrap(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
