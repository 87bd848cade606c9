package domain

import "strings"

// Status is the derived fulfillment classification of a line item. It is
// never stored; compute it from the item on every read.
type Status int

// Fulfillment statuses in their canonical display order.
const (
	StatusPending Status = iota
	StatusPartiallySupplied
	StatusFullySupplied
	StatusSuppliedMore
)

var statusText = [...]string{
	StatusPending:           "Pending",
	StatusPartiallySupplied: "Partially Supplied",
	StatusFullySupplied:     "Fully Supplied",
	StatusSuppliedMore:      "Supplied More",
}

var statusColor = [...]string{
	StatusPending:           "red",
	StatusPartiallySupplied: "blue",
	StatusFullySupplied:     "green",
	StatusSuppliedMore:      "orange",
}

var statusClass = [...]string{
	StatusPending:           "status-pending",
	StatusPartiallySupplied: "status-partial",
	StatusFullySupplied:     "status-fully",
	StatusSuppliedMore:      "status-over",
}

func (s Status) valid() bool {
	return s >= StatusPending && s <= StatusSuppliedMore
}

// Text returns the user-facing label used for display, filtering and export.
func (s Status) Text() string {
	if !s.valid() {
		return ""
	}
	return statusText[s]
}

// String implements fmt.Stringer.
func (s Status) String() string { return s.Text() }

// Color returns the presentation color token for the status.
func (s Status) Color() string {
	if !s.valid() {
		return ""
	}
	return statusColor[s]
}

// StyleClass returns the CSS class printed documents attach to status cells.
func (s Status) StyleClass() string {
	if !s.valid() {
		return ""
	}
	return statusClass[s]
}

// AllStatuses returns every status in canonical order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusPartiallySupplied, StatusFullySupplied, StatusSuppliedMore}
}

// ParseStatus resolves a status from its label. Matching ignores case and
// surrounding whitespace.
func ParseStatus(text string) (Status, bool) {
	text = strings.TrimSpace(text)
	for _, s := range AllStatuses() {
		if strings.EqualFold(s.Text(), text) {
			return s, true
		}
	}
	return StatusPending, false
}

// Classify maps requested and supplied totals onto a status. The zero check
// runs first, then equality, then over-supply.
func Classify(requested, supplied int) Status {
	switch {
	case supplied == 0:
		return StatusPending
	case supplied == requested:
		return StatusFullySupplied
	case supplied > requested:
		return StatusSuppliedMore
	default:
		return StatusPartiallySupplied
	}
}

// SuppliedTotal sums every delivery recorded against the item.
func SuppliedTotal(item LineItem) int {
	total := 0
	for _, d := range item.Supplied {
		total += d.Qty
	}
	return total
}

// Remaining is the requested quantity minus the supplied total. It goes
// negative under over-supply.
func Remaining(item LineItem) int {
	return item.RequestedQty - SuppliedTotal(item)
}

// SuppliedTotal is a convenience accessor for the package function.
func (i LineItem) SuppliedTotal() int { return SuppliedTotal(i) }

// Remaining is a convenience accessor for the package function.
func (i LineItem) Remaining() int { return Remaining(i) }

// Status classifies the item from its current deliveries.
func (i LineItem) Status() Status {
	return Classify(i.RequestedQty, SuppliedTotal(i))
}
