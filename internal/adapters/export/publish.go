package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"materialtracker/internal/blob"
	"materialtracker/internal/query"
)

// KeyPrefix is the blob prefix under which artifacts are published.
const KeyPrefix = "exports/"

const defaultLinkExpiry = 15 * time.Minute

// Artifact describes a published export.
type Artifact struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Publish renders rows and stores them at exports/<uuid>/<file name>. A
// missing link capability is not an error; URL is left empty.
func Publish(ctx context.Context, store blob.Store, f Format, rows []query.Row) (Artifact, error) {
	data, err := Bytes(f, rows)
	if err != nil {
		return Artifact{}, err
	}
	id := uuid.NewString()
	key := path.Join(KeyPrefix, id, f.FileName())
	info, err := store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: f.ContentType(),
		Metadata: map[string]string{
			"format": string(f),
			"rows":   strconv.Itoa(len(rows)),
		},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("publish %s: %w", key, err)
	}
	art := Artifact{
		ID:          id,
		Key:         key,
		Format:      f,
		FileName:    f.FileName(),
		ContentType: f.ContentType(),
		SizeBytes:   info.Size,
		Rows:        len(rows),
		CreatedAt:   info.LastModified,
	}
	if link, err := store.URL(ctx, key, defaultLinkExpiry); err == nil {
		art.URL = link
	}
	return art, nil
}

// ListPublished returns the stored export objects, ordered by key.
func ListPublished(ctx context.Context, store blob.Store) ([]blob.Info, error) {
	return store.List(ctx, KeyPrefix)
}
