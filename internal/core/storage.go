package core

import (
	"context"
	"fmt"

	"materialtracker/internal/blob"
	"materialtracker/internal/config"
	"materialtracker/internal/infra/persistence/blobstate"
	"materialtracker/internal/infra/persistence/memory"
	"materialtracker/internal/infra/persistence/mirror"
	"materialtracker/internal/infra/persistence/postgres"
	redisbridge "materialtracker/internal/infra/persistence/redis"
	"materialtracker/internal/infra/persistence/sqlite"
	"materialtracker/pkg/domain"
)

// StorageDriver identifies a persistence backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = config.DriverMemory   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = config.DriverSQLite   // embedded sqlite file
	StoragePostgres StorageDriver = config.DriverPostgres // PostgreSQL server
	StorageRedis    StorageDriver = config.DriverRedis    // single Redis key
	StorageBlob     StorageDriver = config.DriverBlob     // object in a blob store
)

// OpenPersistentStore builds the store selected by cfg.Driver (default
// sqlite). Every durable backend is a mirror over the in-memory store. The
// returned close function releases backend connections and is never nil.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *RulesEngine) (PersistentStore, func() error, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	noClose := func() error { return nil }
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), noClose, nil
	case StorageSQLite:
		b, err := sqlite.NewBridge(cfg.SQLite.Path, cfg.Key)
		if err != nil {
			return nil, nil, err
		}
		return openMirror(ctx, b, engine, b.Close)
	case StoragePostgres:
		b, err := postgres.NewBridge(ctx, cfg.Postgres.DSN, cfg.Key)
		if err != nil {
			return nil, nil, err
		}
		return openMirror(ctx, b, engine, b.Close)
	case StorageRedis:
		b, client, err := redisbridge.Dial(ctx, redisbridge.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Key)
		if err != nil {
			return nil, nil, err
		}
		return openMirror(ctx, b, engine, client.Close)
	case StorageBlob:
		store, err := OpenBlobStore(ctx, cfg.Blob)
		if err != nil {
			return nil, nil, err
		}
		return openMirror(ctx, blobstate.NewBridge(store, cfg.Key), engine, noClose)
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// OpenBlobStore opens the object store described by cfg. Exports are
// published there as well as blob-backed state.
func OpenBlobStore(ctx context.Context, cfg config.Blob) (blob.Store, error) {
	store, err := blob.Open(ctx, blob.Config{
		Driver: blob.Driver(cfg.Driver),
		FSRoot: cfg.FSRoot,
		S3: blob.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return store, nil
}

func openMirror(ctx context.Context, bridge domain.Bridge, engine *RulesEngine, closeFn func() error) (PersistentStore, func() error, error) {
	store, err := mirror.Open(ctx, bridge, engine)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}
