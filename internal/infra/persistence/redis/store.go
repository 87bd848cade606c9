// Package redis provides a Redis-backed persistence bridge holding the
// serialized request collection under a single string key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"materialtracker/internal/infra/persistence/snapshot"
	"materialtracker/pkg/domain"
)

var _ domain.Bridge = (*Bridge)(nil)

// Client is the subset of the go-redis command set the bridge needs.
// *goredis.Client satisfies it.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
}

// Options configures a dialled Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Bridge mirrors the request collection into one Redis key.
type Bridge struct {
	client Client
	key    string
}

// NewBridge wraps an existing client. An empty key selects snapshot.StorageKey.
func NewBridge(client Client, key string) *Bridge {
	if key == "" {
		key = snapshot.StorageKey
	}
	return &Bridge{client: client, key: key}
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, opts Options, key string) (*Bridge, *goredis.Client, error) {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewBridge(rdb, key), rdb, nil
}

// Load reads the key. A missing key yields an empty collection.
func (b *Bridge) Load(ctx context.Context) ([]domain.Request, error) {
	payload, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []domain.Request{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", b.key, err)
	}
	return snapshot.Restore(payload)
}

// Save overwrites the key with the encoded collection. No expiry is set.
func (b *Bridge) Save(ctx context.Context, requests []domain.Request) error {
	data, err := snapshot.Encode(requests)
	if err != nil {
		return err
	}
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", b.key, err)
	}
	return nil
}

// Key returns the Redis key the bridge writes.
func (b *Bridge) Key() string { return b.key }
