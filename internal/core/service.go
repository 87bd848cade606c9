package core

import (
	"context"
	"errors"
	"strings"

	"materialtracker/internal/infra/persistence/memory"
	"materialtracker/internal/query"
	"materialtracker/pkg/domain"
)

// Service is the request repository: every mutation runs as one store
// transaction and is observed through the configured logger, metrics
// recorder and tracer.
type Service struct {
	store     PersistentStore
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer
	clock     Clock
	qtyPolicy QtyParsePolicy
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the clock used for operation timing.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithQtyParsePolicy selects how delivery quantity text is parsed.
func WithQtyParsePolicy(p QtyParsePolicy) Option {
	return func(s *Service) { s.qtyPolicy = p }
}

// NewService constructs a service backed by store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		clock:   ClockFunc(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	if r, ok := store.(interface{ RestoreError() error }); ok && r.RestoreError() != nil {
		s.logger.Warn("stored requests could not be decoded, starting empty", "error", r.RestoreError())
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine selects NewDefaultRulesEngine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) (Result, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	res, err := fn(ctx)

	var pErr *domain.PersistError
	if errors.As(err, &pErr) {
		// The mutation is committed in memory; only the mirror is stale.
		s.logger.Error("persist failed", "operation", op, "error", pErr.Err)
		s.metrics.Observe(ctx, "persist", false, s.clock.Now().Sub(start))
		res.Unsaved = pErr
		err = nil
	}
	for _, w := range res.Warnings() {
		s.logger.Warn(w.Message, "operation", op, "rule", w.Rule, "request", w.EntityID)
	}
	switch {
	case err == nil:
		s.logger.Debug("operation completed", "operation", op)
	case IsInputError(err):
		s.logger.Info("operation rejected", "operation", op, "error", err)
	default:
		s.logger.Error("operation failed", "operation", op, "error", err)
	}
	s.metrics.Observe(ctx, op, err == nil, s.clock.Now().Sub(start))
	span.End(err)
	return res, err
}

// Add validates d and stores it as a new request with the next identifier.
// The new request becomes the first in list order.
func (s *Service) Add(ctx context.Context, d Draft) (Request, Result, error) {
	var created Request
	res, err := s.run(ctx, "add_request", func(ctx context.Context) (Result, error) {
		if err := d.Validate(); err != nil {
			return Result{}, err
		}
		req := d.request()
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			req.ID = domain.NextID(tx.Snapshot().ListRequests())
			var err error
			created, err = tx.CreateRequest(req)
			return err
		})
	})
	return created, res, err
}

// Update replaces every field of request id with the draft contents. The id
// and the list position are kept.
func (s *Service) Update(ctx context.Context, id string, d Draft) (Request, Result, error) {
	var updated Request
	res, err := s.run(ctx, "update_request", func(ctx context.Context) (Result, error) {
		if err := d.Validate(); err != nil {
			return Result{}, err
		}
		replacement := d.request()
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, ok := tx.FindRequest(id); !ok {
				return ErrNotFound{Entity: domain.EntityRequest, ID: id}
			}
			var err error
			updated, err = tx.ReplaceRequest(id, func(r *Request) error {
				*r = replacement
				return nil
			})
			return err
		})
	})
	return updated, res, err
}

// Remove deletes exactly the request with id.
func (s *Service) Remove(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "remove_request", func(ctx context.Context) (Result, error) {
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, ok := tx.FindRequest(id); !ok {
				return ErrNotFound{Entity: domain.EntityRequest, ID: id}
			}
			return tx.DeleteRequest(id)
		})
	})
}

// AddDelivery appends a delivery to the line item addressed by key. Only
// that item changes.
func (s *Service) AddDelivery(ctx context.Context, key SupplyKey, in DeliveryInput) (Request, Result, error) {
	var updated Request
	res, err := s.run(ctx, "add_delivery", func(ctx context.Context) (Result, error) {
		date := strings.TrimSpace(in.Date)
		if date == "" || strings.TrimSpace(in.Qty) == "" {
			return Result{}, &AddressingError{Key: key, Message: MsgSupplyInputRequired}
		}
		qty, exact, err := s.qtyPolicy.Parse(in.Qty)
		if err != nil {
			return Result{}, &AddressingError{Key: key, Message: "invalid delivery quantity", Err: err}
		}
		if !exact {
			s.logger.Warn("delivery quantity coerced", "key", key.String(), "raw", in.Qty, "qty", qty)
		}
		return s.store.RunInTransaction(ctx, func(tx Transaction) error {
			req, ok := tx.FindRequest(key.RequestID)
			if !ok {
				return &AddressingError{Key: key, Message: "unknown request", Err: ErrNotFound{Entity: domain.EntityRequest, ID: key.RequestID}}
			}
			if _, ok := req.Item(key.ItemIndex); !ok {
				return &AddressingError{Key: key, Message: "unknown line item"}
			}
			var err error
			updated, err = tx.AppendDelivery(key.RequestID, key.ItemIndex, Delivery{Date: date, Qty: qty})
			return err
		})
	})
	return updated, res, err
}

// Submit adds or updates depending on whether d was opened for editing,
// then resets d. A rejected submit leaves d untouched.
func (s *Service) Submit(ctx context.Context, d *Draft) (Request, Result, error) {
	var (
		req Request
		res Result
		err error
	)
	if id := d.EditingID(); id != "" {
		req, res, err = s.Update(ctx, id, *d)
	} else {
		req, res, err = s.Add(ctx, *d)
	}
	if err != nil {
		return Request{}, res, err
	}
	d.Reset()
	return req, res, nil
}

// CommitSupply adds the delivery staged for key and clears it on success.
func (s *Service) CommitSupply(ctx context.Context, inputs *SupplyInputs, key SupplyKey) (Request, Result, error) {
	req, res, err := s.AddDelivery(ctx, key, inputs.Get(key))
	if err != nil {
		return Request{}, res, err
	}
	inputs.Clear(key)
	return req, res, nil
}

// Request returns the stored request with id.
func (s *Service) Request(id string) (Request, bool) {
	return s.store.GetRequest(id)
}

// Requests returns every request, newest first.
func (s *Service) Requests() []Request {
	return s.store.ListRequests()
}

// Rows projects the stored requests through filters.
func (s *Service) Rows(filters query.Filters) []query.Row {
	return query.Project(s.store.ListRequests(), filters)
}

// Projects lists distinct project titles in first-seen order.
func (s *Service) Projects() []string {
	return query.UniqueProjects(s.store.ListRequests())
}

// Statuses lists the four status texts.
func (s *Service) Statuses() []string {
	return query.UniqueStatuses()
}
