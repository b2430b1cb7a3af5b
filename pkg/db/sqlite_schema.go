package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for local sqlite runs and tests.
// Postgres-only features (partial index predicates aside) are dropped.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_login_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS roles (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
)`,
	`CREATE TABLE IF NOT EXISTS account_roles (
  account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  role_id TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
  PRIMARY KEY (account_id, role_id)
)`,
	`CREATE TABLE IF NOT EXISTS registration_requests (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  requested_by TEXT NOT NULL DEFAULT 'Anonymous',
  request_date DATETIME NOT NULL,
  is_approved INTEGER NOT NULL DEFAULT 0,
  is_processed INTEGER NOT NULL DEFAULT 0,
  CHECK (is_approved = 0 OR is_processed = 1)
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_registration_requests_pending_username
  ON registration_requests (username) WHERE is_processed = 0`,
	`CREATE TABLE IF NOT EXISTS genres (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS songs (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  artist TEXT NOT NULL,
  file_path TEXT NOT NULL,
  original_filename TEXT NOT NULL,
  content_type TEXT NOT NULL,
  size_bytes INTEGER NOT NULL,
  genre_id TEXT NOT NULL REFERENCES genres(id) ON DELETE RESTRICT,
  owner_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE INDEX IF NOT EXISTS idx_songs_owner_id ON songs (owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_songs_genre_id ON songs (genre_id)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
}

// EnsureSQLiteSchema creates every table when running against sqlite. It is a
// no-op on postgres, where goose owns the schema.
func (c *Client) EnsureSQLiteSchema(ctx context.Context) error {
	if c.dialect != DialectSQLite {
		return nil
	}
	return ApplySQLiteSchema(c.conn.WithContext(ctx))
}

// ApplySQLiteSchema executes the sqlite DDL on conn.
func ApplySQLiteSchema(conn *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
