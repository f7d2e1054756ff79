// SPDX-License-Identifier: MPL-2.0

package invoke

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolMissing is the sentinel error wrapped by ToolMissingError.
	ErrToolMissing = errors.New("required tool missing")

	// ErrPathMissing is the sentinel error wrapped by PathMissingError.
	ErrPathMissing = errors.New("path missing")

	// ErrInvocationFailed is the sentinel error wrapped by InvocationFailedError.
	ErrInvocationFailed = errors.New("invocation failed")
)

type (
	// ToolMissingError is returned when a binary cannot be located or is not executable.
	// Binary is the path or name exactly as configured, so an operator can fix the environment.
	ToolMissingError struct {
		Binary string
		Reason string
	}

	// PathMissingError is returned when a working directory or host path does not exist.
	PathMissingError struct {
		Path string
	}

	// InvocationFailedError is returned when a binary ran and exited non-zero.
	// Args are already redacted and safe to log.
	InvocationFailedError struct {
		Binary   string
		Args     []string
		Stdout   string
		Stderr   string
		ExitCode int
	}
)

// Error implements the error interface.
func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("tool %q is not usable: %s", e.Binary, e.Reason)
}

// Unwrap returns ErrToolMissing for errors.Is() compatibility.
func (e *ToolMissingError) Unwrap() error { return ErrToolMissing }

// Error implements the error interface.
func (e *PathMissingError) Error() string {
	return fmt.Sprintf("path %q does not exist", e.Path)
}

// Unwrap returns ErrPathMissing for errors.Is() compatibility.
func (e *PathMissingError) Unwrap() error { return ErrPathMissing }

// Error implements the error interface.
// The message includes the trimmed stderr because it is usually the only useful hint.
func (e *InvocationFailedError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "%s %s failed with exit %d", e.Binary, strings.Join(e.Args, " "), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg.WriteString(": ")
		msg.WriteString(stderr)
	}
	return msg.String()
}

// Unwrap returns ErrInvocationFailed for errors.Is() compatibility.
func (e *InvocationFailedError) Unwrap() error { return ErrInvocationFailed }
