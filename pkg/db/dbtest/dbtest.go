// Package dbtest opens throwaway sqlite databases for repository and
// service tests. The schema mirrors the goose migrations but swaps the
// Postgres uuid default for a sqlite expression, since sqlite cannot
// evaluate gen_random_uuid().
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const accountsDDL = `
CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  display_name TEXT NOT NULL,
  locale TEXT NOT NULL DEFAULT 'en',
  token_balance INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`

const ledgerEntriesDDL = `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
  account_id TEXT NOT NULL,
  record_id TEXT,
  type TEXT NOT NULL,
  amount INTEGER NOT NULL,
  balance_after INTEGER NOT NULL,
  metadata TEXT,
  created_at DATETIME
);`

const purchaseRecordsDDL = `
CREATE TABLE IF NOT EXISTS purchase_records (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
  account_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'processing',
  token_delta INTEGER NOT NULL,
  fiat_amount NUMERIC NOT NULL DEFAULT 0,
  fiat_currency TEXT NOT NULL DEFAULT 'usd',
  course_ref TEXT,
  language TEXT,
  goals TEXT,
  markets TEXT,
  instruments TEXT,
  experience TEXT,
  risk_tolerance TEXT,
  trading_style TEXT,
  deposit_bracket TEXT,
  secondary_language TEXT,
  estimated_ready_at DATETIME,
  content_ref TEXT,
  error_message TEXT,
  model_id TEXT,
  prompt_tokens INTEGER NOT NULL DEFAULT 0,
  completion_tokens INTEGER NOT NULL DEFAULT 0,
  total_tokens INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`

const generationJobsDDL = `
CREATE TABLE IF NOT EXISTS generation_jobs (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
  record_id TEXT NOT NULL UNIQUE,
  account_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  payload TEXT NOT NULL,
  published_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`

// Open returns an isolated in-memory database with the full schema
// applied. Each call gets its own shared-cache DSN so parallel tests
// never see each other's rows.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:dbtest_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Shared-cache sqlite returns table-lock errors under concurrent
	// writers. A single connection serializes them instead.
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, ddl := range []string{accountsDDL, ledgerEntriesDDL, purchaseRecordsDDL, generationJobsDDL} {
		if err := conn.Exec(ddl).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
