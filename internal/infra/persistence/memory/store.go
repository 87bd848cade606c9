// Package memory provides the in-memory transactional store that holds the
// authoritative request collection. Durable backends mirror its state.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"materialtracker/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Request aliases domain.Request for in-memory persistence operations.
	Request = domain.Request
	// Delivery aliases domain.Delivery.
	Delivery = domain.Delivery
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// ErrRequestNotFound is wrapped by transaction operations addressing an
// unknown request id.
var ErrRequestNotFound = errors.New("request not found")

// ErrItemOutOfRange is wrapped when a delivery targets a missing line item.
var ErrItemOutOfRange = errors.New("line item out of range")

// memoryState keeps requests newest first, which is the canonical list order.
type memoryState struct {
	requests []Request
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Requests []Request `json:"requests"`
}

func (s memoryState) clone() memoryState {
	return memoryState{requests: domain.CloneRequests(s.requests)}
}

func (s memoryState) indexOf(id string) int {
	for i, req := range s.requests {
		if req.ID == id {
			return i
		}
	}
	return -1
}

// Store provides an in-memory transactional store for material requests.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{engine: engine}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Requests: domain.CloneRequests(s.state.requests)}
}

// ImportState replaces the store state with the provided snapshot. Order
// is taken as given.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryState{requests: domain.CloneRequests(snapshot.Requests)}
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

type transaction struct {
	state   memoryState
	changes []Change
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListRequests returns all requests within the snapshot, newest first.
func (v transactionView) ListRequests() []Request {
	return domain.CloneRequests(v.state.requests)
}

// FindRequest looks up a request by id.
func (v transactionView) FindRequest(id string) (Request, bool) {
	idx := v.state.indexOf(id)
	if idx < 0 {
		return Request{}, false
	}
	return v.state.requests[idx].Clone(), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{state: s.state.clone()}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindRequest exposes request lookup within the transaction scope.
func (tx *transaction) FindRequest(id string) (Request, bool) {
	return transactionView{state: &tx.state}.FindRequest(id)
}

// CreateRequest assigns the next identifier when none is set and prepends
// the request so the collection stays newest first.
func (tx *transaction) CreateRequest(r Request) (Request, error) {
	if r.ID == "" {
		r.ID = domain.NextID(tx.state.requests)
	}
	if tx.state.indexOf(r.ID) >= 0 {
		return Request{}, fmt.Errorf("request %q already exists", r.ID)
	}
	stored := r.Clone()
	tx.state.requests = append([]Request{stored}, tx.state.requests...)
	tx.recordChange(Change{Entity: domain.EntityRequest, Action: domain.ActionCreate, After: stored.Clone()})
	return stored.Clone(), nil
}

// ReplaceRequest mutates a request in place. The id and the position in the
// collection are preserved whatever the mutator does.
func (tx *transaction) ReplaceRequest(id string, mutator func(*Request) error) (Request, error) {
	idx := tx.state.indexOf(id)
	if idx < 0 {
		return Request{}, fmt.Errorf("request %q: %w", id, ErrRequestNotFound)
	}
	before := tx.state.requests[idx].Clone()
	current := before.Clone()
	if err := mutator(&current); err != nil {
		return Request{}, err
	}
	current.ID = id
	tx.state.requests[idx] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityRequest, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current, nil
}

// DeleteRequest removes exactly one request.
func (tx *transaction) DeleteRequest(id string) error {
	idx := tx.state.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("request %q: %w", id, ErrRequestNotFound)
	}
	before := tx.state.requests[idx]
	tx.state.requests = append(tx.state.requests[:idx:idx], tx.state.requests[idx+1:]...)
	tx.recordChange(Change{Entity: domain.EntityRequest, Action: domain.ActionDelete, Before: before})
	return nil
}

// AppendDelivery appends a delivery to one line item of a request. No other
// item is touched.
func (tx *transaction) AppendDelivery(id string, itemIndex int, delivery Delivery) (Request, error) {
	idx := tx.state.indexOf(id)
	if idx < 0 {
		return Request{}, fmt.Errorf("request %q: %w", id, ErrRequestNotFound)
	}
	current := tx.state.requests[idx].Clone()
	if itemIndex < 0 || itemIndex >= len(current.Items) {
		return Request{}, fmt.Errorf("request %q item %d: %w", id, itemIndex, ErrItemOutOfRange)
	}
	before := current.Clone()
	item := &current.Items[itemIndex]
	item.Supplied = append(item.Supplied, delivery)
	tx.state.requests[idx] = current
	tx.recordChange(Change{Entity: domain.EntityDelivery, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// GetRequest retrieves a request by id.
func (s *Store) GetRequest(id string) (Request, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindRequest(id)
}

// ListRequests returns all requests, newest first.
func (s *Store) ListRequests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneRequests(s.state.requests)
}
