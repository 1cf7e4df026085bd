package storage

// sqlite.go — lightweight persistence for the event stream and executed
// copies.
//
// Two tables:
//   - `events`: the append-only engine log, pruned to 7 days on open.
//     Mostly INFO noise, so retention is short.
//   - `executions`: one row per placed (or simulated) order. These are
//     the audit trail and are kept for 90 days.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/veranoksenfeld/PolyBot-Pro/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    kind     TEXT     NOT NULL,
    message  TEXT     NOT NULL,
    tx_hash  TEXT     NOT NULL DEFAULT '',
    amount   REAL     NOT NULL DEFAULT 0,
    outcome  TEXT     NOT NULL DEFAULT '',
    token_id TEXT     NOT NULL DEFAULT '',
    side     TEXT     NOT NULL DEFAULT '',
    at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
    order_id   TEXT PRIMARY KEY,
    tx_hash    TEXT    NOT NULL DEFAULT '',
    amount_usd INTEGER NOT NULL DEFAULT 0,
    market     TEXT    NOT NULL DEFAULT '',
    outcome    TEXT    NOT NULL DEFAULT '',
    token_id   TEXT    NOT NULL DEFAULT '',
    side       TEXT    NOT NULL DEFAULT '',
    simulated  INTEGER NOT NULL DEFAULT 0,
    error      TEXT    NOT NULL DEFAULT '',
    at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_at     ON events(at DESC);
CREATE INDEX IF NOT EXISTS idx_executions_at ON executions(at DESC);
`

const (
	retentionEvents     = 7 * 24 * time.Hour
	retentionExecutions = 90 * 24 * time.Hour
)

// SQLiteStorage implements ports.Storage using SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at the given path,
// applies the schema and prunes stale rows.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveEvent appends one event row.
func (s *SQLiteStorage) SaveEvent(ctx context.Context, ev domain.LogEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO events (kind, message, tx_hash, amount, outcome, token_id, side, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Kind), ev.Message, ev.TxHash, ev.Amount,
		string(ev.Outcome), ev.TokenID, string(ev.Side), at.UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveEvent: %w", err)
	}
	return nil
}

// SaveExecution upserts one executed copy, keyed by order id so an
// engine retry never duplicates the row.
func (s *SQLiteStorage) SaveExecution(ctx context.Context, res domain.ExecutionResult) error {
	at := res.At
	if at.IsZero() {
		at = time.Now()
	}
	simulated := 0
	if res.Simulated {
		simulated = 1
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO executions
			(order_id, tx_hash, amount_usd, market, outcome, token_id, side, simulated, error, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			tx_hash = excluded.tx_hash,
			error   = excluded.error
	`,
		res.OrderID, res.TxHash, res.AmountUSD, res.Market,
		string(res.Outcome), res.TokenID, string(res.Side), simulated, res.Err, at.UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveExecution: %s: %w", res.OrderID, err)
	}
	return nil
}

// RecentEvents returns the newest events, newest first.
func (s *SQLiteStorage) RecentEvents(ctx context.Context, limit int) ([]domain.LogEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, message, tx_hash, amount, outcome, token_id, side, at
		FROM events
		ORDER BY at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentEvents: query: %w", err)
	}
	defer rows.Close()

	var events []domain.LogEvent
	for rows.Next() {
		var ev domain.LogEvent
		var kind, outcome, side, at string
		if err := rows.Scan(&kind, &ev.Message, &ev.TxHash, &ev.Amount, &outcome, &ev.TokenID, &side, &at); err != nil {
			return nil, fmt.Errorf("storage.RecentEvents: scan row: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		ev.Outcome = domain.Outcome(outcome)
		ev.Side = domain.Side(side)
		ev.At, _ = time.Parse(time.RFC3339, at)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld drops stale rows to keep the file small.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	s.db.ExecContext(ctx, `DELETE FROM events WHERE at < ?`, time.Now().UTC().Add(-retentionEvents))
	s.db.ExecContext(ctx, `DELETE FROM executions WHERE at < ?`, time.Now().UTC().Add(-retentionExecutions))
}
