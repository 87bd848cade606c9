package domain

import (
	"context"
	"fmt"
)

// Transaction exposes the request operations that a persistence
// implementation must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateRequest(Request) (Request, error)
	ReplaceRequest(id string, mutator func(*Request) error) (Request, error)
	DeleteRequest(id string) error
	AppendDelivery(id string, itemIndex int, delivery Delivery) (Request, error)
	FindRequest(id string) (Request, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListRequests() []Request
	FindRequest(id string) (Request, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetRequest(id string) (Request, bool)
	ListRequests() []Request
}

// Bridge is the key-value collaborator that mirrors the full request
// collection. Load returns an empty collection when nothing is stored.
type Bridge interface {
	Load(ctx context.Context) ([]Request, error)
	Save(ctx context.Context, requests []Request) error
}

// PersistError reports that a committed mutation could not be mirrored to
// the bridge. The in-memory state remains authoritative.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
