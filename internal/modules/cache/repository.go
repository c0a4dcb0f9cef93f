// Package cache stores the most recent refresh results so the API can serve
// reads between refreshes and immediately after startup.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/history"
	"github.com/Hahasky-afk/my-portfolio-dashboard/internal/modules/snapshot"
)

const (
	kindSnapshot = "snapshot"
	kindHistory  = "history"
)

// Repository persists the latest snapshot and history in cache.db as
// msgpack blobs keyed by kind.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a cache repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "cache").Logger(),
	}
}

// Init creates the backing table if it does not exist.
func (r *Repository) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS latest_results (
		kind      TEXT PRIMARY KEY,
		payload   BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	);`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create cache schema: %w", err)
	}
	return nil
}

// StoreSnapshot replaces the cached snapshot.
func (r *Repository) StoreSnapshot(snap *snapshot.Snapshot) error {
	return r.store(kindSnapshot, snap)
}

// GetSnapshot returns the cached snapshot, or (nil, nil) when none exists.
func (r *Repository) GetSnapshot() (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	found, err := r.load(kindSnapshot, &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

// StoreHistory replaces the cached history series.
func (r *Repository) StoreHistory(points []history.Point) error {
	return r.store(kindHistory, points)
}

// GetHistory returns the cached history series, or (nil, nil) when none exists.
func (r *Repository) GetHistory() ([]history.Point, error) {
	var points []history.Point
	found, err := r.load(kindHistory, &points)
	if err != nil || !found {
		return nil, err
	}
	return points, nil
}

func (r *Repository) store(kind string, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}

	_, err = r.db.Exec(`
		INSERT INTO latest_results (kind, payload, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET
			payload = excluded.payload,
			stored_at = excluded.stored_at`,
		kind, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", kind, err)
	}

	r.log.Debug().Str("kind", kind).Int("bytes", len(payload)).Msg("Cached result")
	return nil
}

func (r *Repository) load(kind string, out any) (bool, error) {
	var payload []byte
	err := r.db.QueryRow(`SELECT payload FROM latest_results WHERE kind = ?`, kind).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", kind, err)
	}
	if err := msgpack.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", kind, err)
	}
	return true, nil
}
