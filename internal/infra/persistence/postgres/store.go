// Package postgres provides a Postgres-backed persistence bridge that keeps
// the serialized request collection in a single keyed row.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"materialtracker/internal/infra/persistence/snapshot"
	"materialtracker/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the bridge satisfies the domain interface.
var _ domain.Bridge = (*Bridge)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/materialtracker?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Bridge mirrors the request collection into a Postgres state table.
type Bridge struct {
	db  *sql.DB
	key string
	mu  sync.Mutex
}

// NewBridge opens a Postgres connection using the provided DSN (falls back to
// defaultDSN) and ensures the state table exists. An empty key selects
// snapshot.StorageKey.
func NewBridge(ctx context.Context, dsn, key string) (*Bridge, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if key == "" {
		key = snapshot.StorageKey
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		return nil, err
	}
	return &Bridge{db: db, key: key}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Load reads the stored collection. A missing row yields an empty
// collection; a malformed payload yields an empty collection and an error
// wrapping snapshot.ErrMalformed.
func (b *Bridge) Load(ctx context.Context) ([]domain.Request, error) {
	var payload []byte
	err := b.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = $1`, b.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []domain.Request{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	return snapshot.Restore(payload)
}

// Save replaces the stored collection inside one database transaction.
func (b *Bridge) Save(ctx context.Context, requests []domain.Request) error {
	data, err := snapshot.Encode(requests)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, b.key, data); err != nil {
		return fmt.Errorf("upsert %s: %w", b.key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Key returns the state bucket the bridge writes.
func (b *Bridge) Key() string { return b.key }

// DB exposes the underlying sql.DB for integration testing hooks.
func (b *Bridge) DB() *sql.DB { return b.db }

// Close releases the database handle.
func (b *Bridge) Close() error { return b.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
