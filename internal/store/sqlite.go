// Package store persists resolved capacity results in SQLite, keyed by
// competition name, with a snapshot history per competition.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ramkansal/capwatch/pkg/plugin"
)

// ErrNotFound is returned by Get for an unknown name.
var ErrNotFound = errors.New("competition not found")

// Record is the latest stored result of one competition.
type Record struct {
	Name      string                `json:"name"`
	URL       string                `json:"url"`
	Result    plugin.CapacityResult `json:"result"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Snapshot is one historical result.
type Snapshot struct {
	ID        string                `json:"id"`
	Name      string                `json:"name"`
	Result    plugin.CapacityResult `json:"result"`
	CreatedAt time.Time             `json:"created_at"`
}

// timeLayout is fixed-width UTC so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS results (
	name       TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	registered INTEGER,
	max_limit  INTEGER,
	remaining  INTEGER,
	queued     INTEGER,
	note       TEXT NOT NULL,
	start      TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_name_created ON snapshots (name, created_at);
`

// SQLiteStore is a result store backed by a single SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; the driver serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Put stores r as the latest result for name and appends a snapshot.
func (s *SQLiteStore) Put(ctx context.Context, name, url string, r plugin.CapacityResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	now := s.now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results (name, url, registered, max_limit, remaining, queued, note, start, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			registered = excluded.registered,
			max_limit = excluded.max_limit,
			remaining = excluded.remaining,
			queued = excluded.queued,
			note = excluded.note,
			start = excluded.start,
			updated_at = excluded.updated_at
	`, name, url, nullInt(r.Registered), nullInt(r.Limit), nullInt(r.Remaining), nullInt(r.Queued),
		r.Note.String(), r.Start, now)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, name, result, created_at) VALUES (?, ?, ?, ?)
	`, uuid.New().String(), name, string(payload), now)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	return tx.Commit()
}

// Get returns the latest result stored for name.
func (s *SQLiteStore) Get(ctx context.Context, name string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, url, registered, max_limit, remaining, queued, note, start, updated_at
		FROM results WHERE name = ?
	`, name)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns the latest result of every competition, sorted by name.
func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, url, registered, max_limit, remaining, queued, note, start, updated_at
		FROM results ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// History returns up to limit snapshots for name, newest first.
func (s *SQLiteStore) History(ctx context.Context, name string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, result, created_at FROM snapshots
		WHERE name = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var payload, created string
		if err := rows.Scan(&snap.ID, &snap.Name, &payload, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &snap.Result); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
		}
		snap.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var registered, limit, remaining, queued sql.NullInt64
	var note, updated string
	err := row.Scan(&rec.Name, &rec.URL, &registered, &limit, &remaining, &queued, &note, &rec.Result.Start, &updated)
	if err != nil {
		return Record{}, err
	}
	rec.Result.Registered = intPtr(registered)
	rec.Result.Limit = intPtr(limit)
	rec.Result.Remaining = intPtr(remaining)
	rec.Result.Queued = intPtr(queued)
	rec.Result.Note = plugin.ParseNote(note)
	rec.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return rec, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return plugin.Int(int(v.Int64))
}
