// Package snapshot encodes the request collection into the single JSON value
// that every key-value bridge stores under one namespaced key.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"materialtracker/pkg/domain"
)

// StorageKey is the default key holding the serialized collection.
const StorageKey = "materialRequests"

// ErrMalformed is wrapped when stored bytes cannot be decoded.
var ErrMalformed = errors.New("malformed request snapshot")

// Encode serializes requests as a JSON array. Nil slices are written as []
// so that encoding a decoded value reproduces the same bytes.
func Encode(requests []domain.Request) ([]byte, error) {
	payload, err := json.Marshal(normalize(requests))
	if err != nil {
		return nil, fmt.Errorf("encode requests: %w", err)
	}
	return payload, nil
}

// Decode parses a stored payload. An empty or null payload yields an empty
// collection; anything else that is not a request array is ErrMalformed.
func Decode(data []byte) ([]domain.Request, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []domain.Request{}, nil
	}
	var requests []domain.Request
	if err := json.Unmarshal(trimmed, &requests); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return normalize(requests), nil
}

// Restore decodes a payload and never fails to produce a collection: a
// malformed value degrades to empty. The returned error reports the
// degradation so callers can log it.
func Restore(data []byte) ([]domain.Request, error) {
	requests, err := Decode(data)
	if err != nil {
		return []domain.Request{}, err
	}
	return requests, nil
}

func normalize(in []domain.Request) []domain.Request {
	out := make([]domain.Request, len(in))
	for i, req := range in {
		req = req.Clone()
		if req.Items == nil {
			req.Items = []domain.LineItem{}
		}
		for j := range req.Items {
			if req.Items[j].Supplied == nil {
				req.Items[j].Supplied = []domain.Delivery{}
			}
		}
		out[i] = req
	}
	return out
}
