package vaccination

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSubmission is returned for submissions rejected before
	// any write.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrDuplicateVaccination is returned when the patient already
	// completed a non-recurring regimen for the vaccine.
	ErrDuplicateVaccination = errors.New("vaccination already recorded for this patient and vaccine")

	// ErrNotForwarded is returned when step-2 completion targets an
	// entry that is not awaiting a second operator.
	ErrNotForwarded = errors.New("history entry is not awaiting completion")
)

// Orphan identifies an entity a failed compensation left behind.
type Orphan struct {
	Kind string
	ID   uuid.UUID
	Err  error
}

// PartialRollbackError is the most severe failure class: the saga
// failed AND could not remove everything it had created. The orphans
// need manual cleanup, so they are enumerated rather than hidden.
type PartialRollbackError struct {
	Cause   error
	Orphans []Orphan
}

func (e *PartialRollbackError) Error() string {
	kinds := make([]string, len(e.Orphans))
	for i, o := range e.Orphans {
		kinds[i] = fmt.Sprintf("%s %s", o.Kind, o.ID)
	}
	return fmt.Sprintf("rollback incomplete after %v: orphaned entities remain: %s",
		e.Cause, strings.Join(kinds, ", "))
}

// Unwrap exposes the original failure so errors.Is still matches it.
func (e *PartialRollbackError) Unwrap() error { return e.Cause }
