package reconcile

import (
	"errors"
	"fmt"

	"fleetdocs-service/internal/domain/fleet"
)

// ErrMergeInput matches any MergeInputError via errors.Is.
var ErrMergeInput = errors.New("merge input unusable")

// MergeInputError means a source table is empty or could not be read. The
// whole run stops.
type MergeInputError struct {
	Role   fleet.Role
	Reason string
	Err    error
}

func NewMergeInputError(role fleet.Role, reason string, err error) *MergeInputError {
	return &MergeInputError{Role: role, Reason: reason, Err: err}
}

func (e *MergeInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s table unusable: %s: %v", e.Role, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s table unusable: %s", e.Role, e.Reason)
}

func (e *MergeInputError) Unwrap() error {
	return e.Err
}

func (e *MergeInputError) Is(target error) bool {
	return target == ErrMergeInput
}
