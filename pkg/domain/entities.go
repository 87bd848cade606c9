// Package domain defines the material request records, fulfillment
// derivations, and rule evaluation primitives used by materialtracker.
package domain

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records.
const (
	// EntityRequest identifies a material request record.
	EntityRequest EntityType = "request"
	// EntityDelivery identifies a delivery appended to a request line item.
	EntityDelivery EntityType = "delivery"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Request is a single material procurement document. Items keep insertion
// order, which is also display order.
type Request struct {
	ID           string     `json:"id"`
	Date         string     `json:"date"`
	ProjectTitle string     `json:"projectTitle"`
	Warehouse    string     `json:"warehouse"`
	Notes        string     `json:"notes"`
	Items        []LineItem `json:"items"`
}

// LineItem is a requested material within a Request. It has no identity of
// its own and is addressed by its index in Request.Items.
type LineItem struct {
	Material     string     `json:"material"`
	Unit         string     `json:"unit"`
	RequestedQty int        `json:"requestedQty"`
	Supplied     []Delivery `json:"supplied"`
}

// Delivery records one supply event against a LineItem. Qty is not
// constrained to be positive.
type Delivery struct {
	Date string `json:"date"`
	Qty  int    `json:"qty"`
}

// Clone returns a deep copy of the request so callers can mutate items and
// deliveries without aliasing stored state.
func (r Request) Clone() Request {
	cp := r
	if r.Items != nil {
		cp.Items = make([]LineItem, len(r.Items))
		for i, item := range r.Items {
			cp.Items[i] = item.Clone()
		}
	}
	return cp
}

// Item returns the line item at index, reporting false when out of range.
func (r Request) Item(index int) (LineItem, bool) {
	if index < 0 || index >= len(r.Items) {
		return LineItem{}, false
	}
	return r.Items[index], true
}

// Clone returns a deep copy of the line item.
func (i LineItem) Clone() LineItem {
	cp := i
	if i.Supplied != nil {
		cp.Supplied = append([]Delivery(nil), i.Supplied...)
	}
	return cp
}

// CloneRequests deep copies a request collection preserving order.
func CloneRequests(in []Request) []Request {
	if in == nil {
		return nil
	}
	out := make([]Request, len(in))
	for i, req := range in {
		out[i] = req.Clone()
	}
	return out
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
	// Unsaved is set when the mutation committed in memory but the durable
	// copy could not be written.
	Unsaved *PersistError
}

// Persisted reports whether the mutation reached durable storage.
func (r Result) Persisted() bool { return r.Unsaved == nil }

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if other.Unsaved != nil {
		r.Unsaved = other.Unsaved
	}
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
