// Package sqlite provides a SQLite-backed persistence bridge storing the
// serialized request collection as one JSON blob.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"materialtracker/internal/infra/persistence/snapshot"
	"materialtracker/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.Bridge = (*Bridge)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "materialtracker.db"

// Bridge persists the request collection to a single SQLite table row.
type Bridge struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
	key  string
}

// NewBridge opens (creating if needed) the database at path and ensures the
// state table exists. An empty key selects snapshot.StorageKey.
func NewBridge(path, key string) (*Bridge, error) {
	if path == "" {
		path = DefaultPath
	}
	if key == "" {
		key = snapshot.StorageKey
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Bridge{db: db, path: path, key: key}, nil
}

// Load reads the stored collection, degrading a missing row to empty.
func (b *Bridge) Load(ctx context.Context) ([]domain.Request, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, b.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.Request{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	return snapshot.Restore(payload)
}

// Save upserts the encoded collection under the bridge key.
func (b *Bridge) Save(ctx context.Context, requests []domain.Request) (retErr error) {
	data, err := snapshot.Encode(requests)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, b.key, data); err != nil {
		return fmt.Errorf("upsert %s: %w", b.key, err)
	}
	return tx.Commit()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (b *Bridge) DB() *sql.DB { return b.db }

// Path returns the configured database path.
func (b *Bridge) Path() string { return b.path }

// Close releases the database handle.
func (b *Bridge) Close() error { return b.db.Close() }
