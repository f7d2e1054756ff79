// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/mlbe/mlbe-runner/internal/orchestrator"
)

// ErrNotFound is the sentinel error wrapped by NotFoundError.
var ErrNotFound = errors.New("implementation not found")

type (
	// Catalog looks up stored implementations.
	Catalog interface {
		Implementation(ctx context.Context, id int64) (orchestrator.ImplementationRef, error)
	}

	// NotFoundError is returned when no implementation has the requested id.
	NotFoundError struct {
		ID     int64
		Source string
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("implementation %d not found in %s", e.ID, e.Source)
}

// Unwrap returns ErrNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }
