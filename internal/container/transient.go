// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"strings"

	"github.com/mlbe/mlbe-runner/internal/invoke"
)

// IsTransientError reports whether err is a container engine failure that may
// succeed on retry: engine failures (exit 125) caused by network timeouts,
// rootless Podman races or storage driver glitches.
//
// Context errors, missing tools and invalid requests are never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, invoke.ErrToolMissing) || errors.Is(err, invoke.ErrPathMissing) ||
		errors.Is(err, ErrInvalidRunRequest) || errors.Is(err, ErrInvalidBuildRequest) {
		return false
	}

	errStr := err.Error()
	var failed *invoke.InvocationFailedError
	if errors.As(err, &failed) {
		errStr += "\n" + failed.Stderr
	}

	// Rootless Podman race conditions and OCI runtime errors.
	if strings.Contains(errStr, "ping_group_range") ||
		strings.Contains(errStr, "OCI runtime error") {
		return true
	}

	// Network errors during image pull or package installation inside builds.
	if strings.Contains(errStr, "Temporary failure resolving") ||
		strings.Contains(errStr, "Could not resolve host") ||
		strings.Contains(errStr, "TLS handshake timeout") ||
		strings.Contains(errStr, "connection timed out") ||
		strings.Contains(errStr, "connection refused") {
		return true
	}

	// Storage driver errors (overlay mount races on rootless Podman).
	if strings.Contains(errStr, "error creating overlay mount") ||
		strings.Contains(errStr, "error mounting layer") {
		return true
	}

	return false
}
