// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/tabpulse/tabpulse/lib/presence"
	"github.com/tabpulse/tabpulse/lib/sqlitepool"
)

// schema creates the presence table. The composite primary key is the
// identity triple; the index serves the per-user query in its output
// order (device, then creation time).
const schema = `
CREATE TABLE IF NOT EXISTS presence (
    user_id    TEXT NOT NULL,
    device_id  TEXT NOT NULL,
    tab_id     TEXT NOT NULL,
    user_agent TEXT NOT NULL DEFAULT '',
    is_active  INTEGER NOT NULL,
    last_seen  TEXT NOT NULL,
    state      TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (user_id, device_id, tab_id)
);
CREATE INDEX IF NOT EXISTS idx_presence_user
    ON presence(user_id, device_id, created_at);
`

// Store is the SQLite-backed presence store. Timestamps are persisted
// as RFC 3339 UTC text so rows stay readable with plain sqlite3.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// StoreConfig holds the parameters for opening a store.
type StoreConfig struct {
	// Path is the database file. Required.
	Path string

	// PoolSize is the connection pool size. Zero takes the pool's
	// default.
	PoolSize int

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// OpenStore opens the database, creating the schema on first use.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("presence store: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
		Prepare: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("presence store: %w", err)
	}

	return &Store{pool: pool, logger: cfg.Logger}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Upsert writes the full record, keyed by the identity triple. Last
// writer wins on every column except created_at, which keeps the
// value from the row's first insert so per-device ordering is stable
// across heartbeats.
func (s *Store) Upsert(ctx context.Context, record presence.Record) error {
	if record.UserID == "" || record.DeviceID == "" || record.TabID == "" {
		return fmt.Errorf("upsert: incomplete identity triple (%q, %q, %q)",
			record.UserID, record.DeviceID, record.TabID)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO presence (user_id, device_id, tab_id, user_agent, is_active, last_seen, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, device_id, tab_id) DO UPDATE SET
			user_agent = excluded.user_agent,
			is_active  = excluded.is_active,
			last_seen  = excluded.last_seen,
			state      = excluded.state
	`, &sqlitex.ExecOptions{
		Args: []any{
			record.UserID,
			record.DeviceID,
			record.TabID,
			record.UserAgent,
			boolToInt(record.IsActive),
			formatTime(record.LastSeen),
			string(record.State),
			formatTime(record.CreatedAt),
		},
	})
	if err != nil {
		return fmt.Errorf("upsert (%s, %s, %s): %w",
			record.UserID, record.DeviceID, record.TabID, err)
	}
	return nil
}

// QueryUser returns every record owned by userID, ordered by device
// then creation time, so grouped output is stable across refreshes.
func (s *Store) QueryUser(ctx context.Context, userID string) ([]presence.Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var records []presence.Record
	err = sqlitex.Execute(conn, `
		SELECT user_id, device_id, tab_id, user_agent, is_active, last_seen, state, created_at
		FROM presence
		WHERE user_id = ?
		ORDER BY device_id, created_at
	`, &sqlitex.ExecOptions{
		Args: []any{userID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record, err := scanRecord(stmt)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query user %s: %w", userID, err)
	}
	return records, nil
}

// Prune deletes rows whose last_seen is before horizon. Returns the
// number of rows removed. Rows are otherwise never deleted; stale
// records are last-known history.
func (s *Store) Prune(ctx context.Context, horizon time.Time) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM presence WHERE last_seen < ?`, &sqlitex.ExecOptions{
		Args: []any{formatTime(horizon)},
	})
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return conn.Changes(), nil
}

// Stats reports row and distinct-user counts for the status action.
func (s *Store) Stats(ctx context.Context) (records, users int, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`SELECT COUNT(*), COUNT(DISTINCT user_id) FROM presence`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = stmt.ColumnInt(0)
				users = stmt.ColumnInt(1)
				return nil
			},
		})
	if err != nil {
		return 0, 0, fmt.Errorf("stats: %w", err)
	}
	return records, users, nil
}

func scanRecord(stmt *sqlite.Stmt) (presence.Record, error) {
	lastSeen, err := parseTime(stmt.ColumnText(5))
	if err != nil {
		return presence.Record{}, fmt.Errorf("last_seen: %w", err)
	}
	createdAt, err := parseTime(stmt.ColumnText(7))
	if err != nil {
		return presence.Record{}, fmt.Errorf("created_at: %w", err)
	}
	return presence.Record{
		UserID:    stmt.ColumnText(0),
		DeviceID:  stmt.ColumnText(1),
		TabID:     stmt.ColumnText(2),
		UserAgent: stmt.ColumnText(3),
		IsActive:  stmt.ColumnInt(4) != 0,
		LastSeen:  lastSeen,
		State:     presence.State(stmt.ColumnText(6)),
		CreatedAt: createdAt,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
