package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  Config
		want Driver
	}{
		{Config{Driver: DriverMemory}, DriverMemory},
		{Config{FSRoot: filepath.Join(t.TempDir(), "blobs")}, DriverFilesystem},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %q: %v", tc.cfg.Driver, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, store.Driver())
		}
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

// Every backend must honour the same create-only and not-found semantics.
func TestBackendContract(t *testing.T) {
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	backends := map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
		"s3":     NewMockS3ForTests(),
	}
	for name, store := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "state/materialRequests", strings.NewReader("[]"), PutOptions{ContentType: "application/json"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "state/materialRequests", strings.NewReader("[1]"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			info, rc, err := store.Get(ctx, "state/materialRequests")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if !bytes.Equal(body, []byte("[]")) || info.Size != 2 {
				t.Fatalf("unexpected object %q %+v", body, info)
			}
			if _, err := store.Head(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on head, got %v", err)
			}
			if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on get, got %v", err)
			}
			list, err := store.List(ctx, "state/")
			if err != nil || len(list) != 1 {
				t.Fatalf("expected one listed object, got %v (%v)", list, err)
			}
			if removed, err := store.Delete(ctx, "state/materialRequests"); err != nil || !removed {
				t.Fatalf("delete: %v %v", removed, err)
			}
			if _, err := store.Head(ctx, "state/materialRequests"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected object gone, got %v", err)
			}
		})
	}
}
