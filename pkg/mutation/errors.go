package mutation

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned before any persistence call when the caller lacks edit capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrOperationInProgress is returned when another mutation on the same collection is pending.
	ErrOperationInProgress = errors.New("another operation is in progress")
	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("persistence failure")
	// ErrStaleResult is returned when the collection was refreshed or abandoned while the
	// persistence call was pending. The result was not applied.
	ErrStaleResult = errors.New("collection changed while the operation was pending")
	// ErrNothingSelected is returned by a delete with an empty selection.
	ErrNothingSelected = errors.New("nothing selected")
	// ErrNotEditing is returned by row operations outside an edit session.
	ErrNotEditing = errors.New("no edit in progress")
)

// PersistenceError wraps a rejection or timeout from the persistence service.
// Local state is unchanged when it is returned.
type PersistenceError struct {
	Op     string
	Reason string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrPersistence, e.Reason)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

func persistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Reason: err.Error(), Err: err}
}
