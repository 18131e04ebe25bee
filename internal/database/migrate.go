package database

import (
	"database/sql"
	"fmt"
)

// Migrate creates the schema if it does not exist. For production
// deployments a versioned migration tool should own this; the inline DDL
// keeps development and tests self-contained.
func Migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS branches (
		id SERIAL PRIMARY KEY,
		branch_name TEXT NOT NULL,
		branch_location TEXT NOT NULL DEFAULT '',
		routing_number TEXT NOT NULL UNIQUE,
		accounting_number TEXT,
		branch_code TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id SERIAL PRIMARY KEY,
		account_number TEXT NOT NULL UNIQUE,
		account_holder_name TEXT NOT NULL,
		account_type INT NOT NULL,
		branch_id INT REFERENCES branches(id),
		last_printed_serial INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		branch_id INT REFERENCES branches(id),
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		failed_login_attempts INT NOT NULL DEFAULT 0,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	-- One ledger row per entity: (account, account_number) for standard
	-- checkbooks, (branch, branch id) for certified checks.
	CREATE TABLE IF NOT EXISTS serial_ledgers (
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		last_serial INT NOT NULL DEFAULT 0,
		custom_start_serial INT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (entity_type, entity_id)
	);

	-- Append-only print audit trail. No UPDATE or DELETE paths exist in
	-- application code.
	CREATE TABLE IF NOT EXISTS print_logs (
		id BIGSERIAL PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		branch_id INT NOT NULL,
		branch_name TEXT NOT NULL,
		routing_number TEXT NOT NULL,
		accounting_number TEXT,
		account_number TEXT,
		account_holder_name TEXT,
		stock_class TEXT NOT NULL,
		first_serial INT NOT NULL,
		last_serial INT NOT NULL,
		total_count INT NOT NULL,
		number_of_books INT NOT NULL DEFAULT 1,
		custom_start_serial INT,
		operation_type TEXT NOT NULL,
		reprint_reason TEXT,
		printed_by INT NOT NULL,
		printed_by_name TEXT NOT NULL,
		notes TEXT,
		reference TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_print_logs_entity
		ON print_logs(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_print_logs_branch
		ON print_logs(branch_id);
	CREATE INDEX IF NOT EXISTS idx_print_logs_created_at
		ON print_logs(created_at);

	CREATE TABLE IF NOT EXISTS inventory (
		stock_class TEXT PRIMARY KEY,
		quantity INT NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS inventory_transactions (
		id BIGSERIAL PRIMARY KEY,
		stock_class TEXT NOT NULL,
		delta INT NOT NULL,
		tx_type TEXT NOT NULL,
		user_id INT NOT NULL,
		user_name TEXT NOT NULL,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	-- Runtime-editable settings, applied over env defaults at startup
	CREATE TABLE IF NOT EXISTS system_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_by TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	INSERT INTO inventory (stock_class, quantity) VALUES
		('individual', 0), ('corporate', 0), ('certified', 0)
	ON CONFLICT (stock_class) DO NOTHING;
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("error migrating schema: %w", err)
	}
	return nil
}
