// Package services defines the business logic for payment reconciliation,
// the reconciliation log and the public tour catalog. This file centralizes
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import "errors"

var (
	// ErrInvalidEvent is returned when Reconcile receives an event without an
	// id or intent. The adapter never produces one; this guards other callers.
	ErrInvalidEvent = errors.New("invalid payment event")

	// ErrInProgress indicates another delivery of the same event holds the
	// claim and has not recorded an outcome within the wait budget. The
	// caller should ask the gateway to redeliver later.
	ErrInProgress = errors.New("reconciliation in progress")

	// ErrStoreUnavailable wraps transient database failures. Nothing was
	// committed, so the event is safe to redeliver.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrReconciliationNotFound indicates no log row exists for an event id.
	ErrReconciliationNotFound = errors.New("reconciliation not found")

	// ErrTourNotFound indicates that the requested tour does not exist.
	ErrTourNotFound = errors.New("tour not found")
)

// IsTransient reports whether err should be answered with a retriable status.
func IsTransient(err error) bool {
	return errors.Is(err, ErrInProgress) || errors.Is(err, ErrStoreUnavailable)
}
