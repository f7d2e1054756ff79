// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"errors"
	"fmt"
)

// ErrPreconditionViolation is the sentinel error wrapped by PreconditionError.
var ErrPreconditionViolation = errors.New("precondition violation")

// PreconditionError is returned when a request cannot be attempted as given.
// Reference fields are checked before any staging or container work.
type PreconditionError struct {
	// Subject names the offending input (e.g. "primary", "implementation 42").
	Subject string
	// Reason describes what is missing or inconsistent.
	Reason string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("precondition violated: %s", e.Reason)
	}
	return fmt.Sprintf("precondition violated for %s: %s", e.Subject, e.Reason)
}

// Unwrap returns ErrPreconditionViolation for errors.Is() compatibility.
func (e *PreconditionError) Unwrap() error { return ErrPreconditionViolation }

func precondition(subject, format string, args ...any) *PreconditionError {
	return &PreconditionError{Subject: subject, Reason: fmt.Sprintf(format, args...)}
}
