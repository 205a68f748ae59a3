package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	key        TEXT PRIMARY KEY,
	bpm        REAL    NOT NULL,
	timestamp  TEXT    NOT NULL,
	agent_id   TEXT    NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
`

// SQLite is a Persister backed by a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// One writer; the store serialises access anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		slog.Warn("sqlite: failed to set WAL mode", "err", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		slog.Warn("sqlite: failed to set synchronous mode", "err", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Save inserts or replaces e.
func (p *SQLite) Save(ctx context.Context, e Entry) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO readings (key, bpm, timestamp, agent_id, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Record.Key, e.Record.BPM, e.Record.Timestamp, e.AgentID, e.UpdatedAt.UnixNano())
	return err
}

// Delete removes keys in one transaction.
func (p *SQLite) Delete(ctx context.Context, keys []string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM readings WHERE key = ?`)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	defer stmt.Close()
	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, k); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// Load returns every stored entry.
func (p *SQLite) Load(ctx context.Context) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT key, bpm, timestamp, agent_id, updated_at FROM readings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			updated int64
		)
		if err := rows.Scan(&e.Record.Key, &e.Record.BPM, &e.Record.Timestamp, &e.AgentID, &updated); err != nil {
			return nil, err
		}
		e.UpdatedAt = time.Unix(0, updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (p *SQLite) Close() error {
	return p.db.Close()
}

var _ Persister = (*SQLite)(nil)
