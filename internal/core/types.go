// Package core hosts the request repository service: draft and delivery
// staging, validation, rule evaluation, observability hooks and storage
// selection around a domain.PersistentStore.
package core

import (
	"time"

	"materialtracker/pkg/domain"
)

type (
	Request         = domain.Request
	LineItem        = domain.LineItem
	Delivery        = domain.Delivery
	Status          = domain.Status
	Result          = domain.Result
	Violation       = domain.Violation
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock. A nil ClockFunc reads the wall clock.
type ClockFunc func() time.Time

// Now returns the function result in UTC.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}
