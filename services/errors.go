package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the engine services.
var (
	// ErrNotAuthorized means the caller lacks the role or ownership the
	// operation requires. Surfaced to the caller, never retried.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrAlreadySatisfied marks a benign race on a duplicate assignment
	// insert. Callers treat it as success; it is logged at debug level
	// only and never surfaced as a failure.
	ErrAlreadySatisfied = errors.New("assignment already satisfied")

	// ErrImmutable is returned on any attempt to alter a submitted
	// review or an audit entry. It indicates a programming defect.
	ErrImmutable = errors.New("record is immutable")
)

// ValidationError carries the specific constraints an operation
// violated. The operation aborts with no partial write.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Missing, "; ")
}

// NewValidationError builds a ValidationError from the violated
// constraints.
func NewValidationError(missing ...string) *ValidationError {
	return &ValidationError{Missing: missing}
}

// ConflictBlockedError rejects a manual assignment because one of the
// selected reviewers has a recorded conflict with the proposal. The
// automatic path never produces it; conflicted reviewers are silently
// excluded from the eligible pool there.
type ConflictBlockedError struct {
	ReviewerID int
	ProposalID int
}

func (e *ConflictBlockedError) Error() string {
	return fmt.Sprintf("reviewer %d has a recorded conflict with proposal %d", e.ReviewerID, e.ProposalID)
}
