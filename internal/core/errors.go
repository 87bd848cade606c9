package core

import (
	"errors"
	"fmt"

	"materialtracker/pkg/domain"
)

// Messages shown to the operator for rejected input.
const (
	MsgItemFieldsRequired    = "Please fill all item fields"
	MsgRequestFieldsRequired = "Please fill all required fields and add at least one item."
	MsgSupplyInputRequired   = "Please enter supply date and quantity"
	MsgQtyNotInteger         = "Requested quantity must be a whole number"
	MsgQtyNegative           = "Requested quantity must not be negative"
)

// ValidationError rejects draft or line item input. Field names the first
// offending input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AddressingError rejects a delivery: missing input, or a key that does not
// address an existing request and line item.
type AddressingError struct {
	Key     SupplyKey
	Message string
	Err     error
}

func (e *AddressingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AddressingError) Unwrap() error { return e.Err }

// ErrNotFound is returned when an operation addresses an unknown record.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsInputError reports whether err was caused by operator input rather than
// by storage or rules.
func IsInputError(err error) bool {
	var vErr *ValidationError
	var aErr *AddressingError
	var nf ErrNotFound
	return errors.As(err, &vErr) || errors.As(err, &aErr) || errors.As(err, &nf)
}
