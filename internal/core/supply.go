package core

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// SupplyKey addresses one line item of one request.
type SupplyKey struct {
	RequestID string
	ItemIndex int
}

func (k SupplyKey) String() string {
	return fmt.Sprintf("%s_%d", k.RequestID, k.ItemIndex)
}

// DeliveryInput is the raw text entered for a delivery.
type DeliveryInput struct {
	Date string
	Qty  string
}

// SupplyInputs stages delivery input per line item. The zero value is ready
// to use.
type SupplyInputs struct {
	mu     sync.Mutex
	staged map[SupplyKey]DeliveryInput
}

// NewSupplyInputs returns an empty staging area.
func NewSupplyInputs() *SupplyInputs {
	return &SupplyInputs{staged: make(map[SupplyKey]DeliveryInput)}
}

func (s *SupplyInputs) update(key SupplyKey, fn func(*DeliveryInput)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		s.staged = make(map[SupplyKey]DeliveryInput)
	}
	in := s.staged[key]
	fn(&in)
	s.staged[key] = in
}

// SetDate stages the delivery date for key.
func (s *SupplyInputs) SetDate(key SupplyKey, date string) {
	s.update(key, func(in *DeliveryInput) { in.Date = date })
}

// SetQty stages the delivery quantity text for key.
func (s *SupplyInputs) SetQty(key SupplyKey, qty string) {
	s.update(key, func(in *DeliveryInput) { in.Qty = qty })
}

// Get returns the staged input for key; unset keys yield empty input.
func (s *SupplyInputs) Get(key SupplyKey) DeliveryInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staged[key]
}

// Clear resets the staged input for key.
func (s *SupplyInputs) Clear(key SupplyKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, key)
}

// Len reports how many keys hold staged input.
func (s *SupplyInputs) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

// QtyParsePolicy decides how delivery quantity text becomes an integer.
type QtyParsePolicy int

const (
	// QtyLenient reads a leading integer ("12kg" is 12, "3.7" is 3) and
	// coerces text without one to 0.
	QtyLenient QtyParsePolicy = iota
	// QtyStrict accepts only a complete base-10 integer.
	QtyStrict
)

// ParseQtyParsePolicy maps a configured name to a policy; blank means
// lenient.
func ParseQtyParsePolicy(name string) (QtyParsePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lenient":
		return QtyLenient, nil
	case "strict":
		return QtyStrict, nil
	default:
		return QtyLenient, fmt.Errorf("unknown delivery quantity policy %q", name)
	}
}

// Parse converts raw. exact is false when the lenient policy had to drop
// trailing text or fall back to 0.
func (p QtyParsePolicy) Parse(raw string) (qty int, exact bool, err error) {
	trimmed := strings.TrimSpace(raw)
	if n, convErr := strconv.Atoi(trimmed); convErr == nil {
		return n, true, nil
	}
	if p == QtyStrict {
		return 0, false, fmt.Errorf("quantity %q is not a whole number", raw)
	}
	return leadingInt(trimmed), false, nil
}

func leadingInt(s string) int {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
