package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrLedgerNotFound is returned by a Store when the user has no ledger yet.
	ErrLedgerNotFound = errors.New("ledger not found")

	// ErrVersionConflict is returned by a Store when the ledger changed
	// since it was read.
	ErrVersionConflict = errors.New("ledger version conflict")

	// ErrNoUser is returned when an operation has no user to act for.
	ErrNoUser = errors.New("no user for ledger operation")
)

// DateFormatError reports a receipt date that is neither MM/DD/YYYY nor MM/DD/YY.
type DateFormatError struct {
	Value string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("receipt date %q is not MM/DD/YYYY or MM/DD/YY", e.Value)
}

// PersistenceError wraps a store failure. The in-memory computation was
// discarded; callers may retry the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Outcome is the result of an aggregation operation.
type Outcome int

const (
	// OutcomeFailed means nothing was persisted; an error accompanies it.
	OutcomeFailed Outcome = iota
	// OutcomeApplied means the ledger was updated.
	OutcomeApplied
	// OutcomeNoOp means the input was valid but produced no change.
	OutcomeNoOp
	// OutcomeSkipped means the input referenced an untracked category.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeNoOp:
		return "noop"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}
