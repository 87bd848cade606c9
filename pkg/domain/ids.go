package domain

import (
	"fmt"
	"strconv"
)

// idWidth is the zero-padded width of generated request identifiers.
const idWidth = 5

// NextID derives the identifier for a new request from the existing
// collection: one above the highest numeric id, zero padded to five digits.
// Ids that do not parse as base-10 integers are ignored. Gaps left by
// deleted requests are never reused.
func NextID(existing []Request) string {
	highest := 0
	for _, req := range existing {
		n, err := strconv.Atoi(req.ID)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%0*d", idWidth, highest+1)
}
