package recycle

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/entity"
)

var (
	// ErrNotFound - the target record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyDeleted - delete was called on a tombstoned record. Callers
	// that want idempotent deletes may treat this as success against the
	// record's existing event; the service never swallows it.
	ErrAlreadyDeleted = errors.New("record is already deleted")

	// ErrNotDeleted - restore was called on a live record.
	ErrNotDeleted = errors.New("record is not deleted")

	// ErrConcurrentModification - the transaction lost a conflict with a
	// concurrent delete/restore; safe to retry.
	ErrConcurrentModification = errors.New("record was concurrently modified")

	// ErrTimeout - the store did not complete within its bound; no partial
	// change was applied; safe to retry.
	ErrTimeout = errors.New("store operation timed out")

	// ErrPartialRestoreConflict - a member of the computed restore set was
	// concurrently mutated; no records were changed; safe to retry.
	ErrPartialRestoreConflict = errors.New("restore set changed concurrently")
)

// InvariantViolationError indicates stored deletion state that breaks the
// subsystem's invariants. It is a bug, never retryable, and must reach the
// operator alert path before being returned.
type InvariantViolationError struct {
	Ref    entity.Ref
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("deletion state invariant violated on %s: %s", e.Ref, e.Reason)
}

// IsInvariantViolation reports whether err carries an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	_, ok := errors.Cause(err).(*InvariantViolationError)
	return ok
}

// Retryable reports whether the caller may safely re-issue the failed
// operation. Everything else is fatal: either a precondition failure or a
// bug surfaced as an InvariantViolationError.
func Retryable(err error) bool {
	switch errors.Cause(err) {
	case ErrConcurrentModification, ErrTimeout, ErrPartialRestoreConflict:
		return true
	}
	return false
}
