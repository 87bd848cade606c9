// Package blobstate persists the request collection as a single JSON object
// in a blob store (filesystem, memory or S3).
package blobstate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"

	"materialtracker/internal/blob"
	"materialtracker/internal/infra/persistence/snapshot"
	"materialtracker/pkg/domain"
)

var _ domain.Bridge = (*Bridge)(nil)

const contentType = "application/json"

// Bridge stores the encoded collection at state/<key>.json.
type Bridge struct {
	store  blob.Store
	object string
	mu     sync.Mutex
}

// NewBridge wraps store. An empty key selects snapshot.StorageKey.
func NewBridge(store blob.Store, key string) *Bridge {
	if key == "" {
		key = snapshot.StorageKey
	}
	return &Bridge{store: store, object: ObjectKey(key)}
}

// ObjectKey returns the blob key used for a storage key.
func ObjectKey(key string) string {
	return path.Join("state", key+".json")
}

// Object returns the blob key the bridge writes.
func (b *Bridge) Object() string { return b.object }

// Load reads the object. A missing object yields an empty collection.
func (b *Bridge) Load(ctx context.Context) ([]domain.Request, error) {
	_, rc, err := b.store.Get(ctx, b.object)
	if errors.Is(err, blob.ErrNotFound) {
		return []domain.Request{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", b.object, err)
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.object, err)
	}
	return snapshot.Restore(payload)
}

// Save replaces the object with the encoded collection in a single
// overwriting write. A failed write leaves the previous collection in place.
func (b *Bridge) Save(ctx context.Context, requests []domain.Request) error {
	data, err := snapshot.Encode(requests)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	opts := blob.PutOptions{ContentType: contentType, Overwrite: true}
	if _, err := b.store.Put(ctx, b.object, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("put %s: %w", b.object, err)
	}
	return nil
}
