package repository

import (
	"context"
	"fmt"
)

// Transaction tables are append-only: nothing in the schema or the repository
// deletes or updates a transaction row once written.
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS sacco`,
	`CREATE TABLE IF NOT EXISTS sacco.staff (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sacco.members (
		id BIGSERIAL PRIMARY KEY,
		member_id TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		date_joined DATE NOT NULL,
		savings_balance NUMERIC(10,2) NOT NULL DEFAULT 0.00,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sacco.savings_transactions (
		id BIGSERIAL PRIMARY KEY,
		member_id BIGINT NOT NULL REFERENCES sacco.members(id),
		amount NUMERIC(10,2) NOT NULL,
		transaction_type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sacco.loans (
		id BIGSERIAL PRIMARY KEY,
		member_id BIGINT NOT NULL REFERENCES sacco.members(id),
		principal_amount NUMERIC(10,2) NOT NULL,
		interest_rate NUMERIC(5,4) NOT NULL,
		interest_amount NUMERIC(10,2) NOT NULL,
		total_amount NUMERIC(10,2) NOT NULL,
		current_balance NUMERIC(10,2) NOT NULL,
		issue_date DATE NOT NULL,
		next_due_date DATE NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_loans_member_active
		ON sacco.loans (member_id) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS sacco.loan_transactions (
		id BIGSERIAL PRIMARY KEY,
		loan_id BIGINT NOT NULL REFERENCES sacco.loans(id),
		amount NUMERIC(10,2) NOT NULL,
		transaction_type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_savings_transactions_member
		ON sacco.savings_transactions (member_id)`,
	`CREATE INDEX IF NOT EXISTS idx_loan_transactions_loan
		ON sacco.loan_transactions (loan_id)`,
	`CREATE INDEX IF NOT EXISTS idx_loans_next_due_date
		ON sacco.loans (next_due_date) WHERE is_active`,
}

// EnsureSchema creates the database objects if they do not exist yet
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
