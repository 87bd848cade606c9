// Package mirror couples the in-memory store with a key-value Bridge: the
// collection is loaded once on open and saved after every successful
// transaction.
package mirror

import (
	"context"
	"errors"
	"fmt"

	"materialtracker/internal/infra/persistence/memory"
	"materialtracker/internal/infra/persistence/snapshot"
	"materialtracker/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

// Store is a memory.Store whose committed state is mirrored to a Bridge.
type Store struct {
	*memory.Store
	bridge     domain.Bridge
	restoreErr error
}

// Open loads the bridge contents into a fresh memory store. A malformed
// stored value is not fatal: the store starts empty and RestoreError reports
// what was discarded. Any other load error aborts.
func Open(ctx context.Context, bridge domain.Bridge, engine *domain.RulesEngine) (*Store, error) {
	if bridge == nil {
		return nil, fmt.Errorf("mirror: nil bridge")
	}
	requests, err := bridge.Load(ctx)
	var restoreErr error
	if err != nil {
		if !errors.Is(err, snapshot.ErrMalformed) {
			return nil, fmt.Errorf("load requests: %w", err)
		}
		restoreErr = err
		requests = nil
	}
	ms := memory.NewStore(engine)
	ms.ImportState(memory.Snapshot{Requests: requests})
	return &Store{Store: ms, bridge: bridge, restoreErr: restoreErr}, nil
}

// RestoreError returns the decode error that caused the stored collection to
// be discarded on open, or nil.
func (s *Store) RestoreError() error { return s.restoreErr }

// Bridge returns the underlying bridge.
func (s *Store) Bridge() domain.Bridge { return s.bridge }

// RunInTransaction commits in memory, then saves the whole collection. A
// failed save returns *domain.PersistError alongside the committed result;
// the in-memory state is not rolled back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.bridge.Save(ctx, s.ExportState().Requests); pErr != nil {
		return res, &domain.PersistError{Op: "save", Err: pErr}
	}
	return res, nil
}
