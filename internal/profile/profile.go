// SPDX-License-Identifier: MPL-2.0

package profile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProfileNotFound is the sentinel error wrapped by NotFoundError.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidProfile is the sentinel error wrapped by InvalidProfileError.
	ErrInvalidProfile = errors.New("invalid profile")
)

type (
	// Profile describes how to build, test and contract-test code in one language,
	// and which base image to run it in. Implementations must be immutable.
	Profile interface {
		// Name is the unique, case-insensitive language identifier.
		Name() string
		// FileExtensions lists extensions (with leading dot) used for language detection.
		FileExtensions() []string
		// Image is the base container image tag.
		Image() string
		// ServicePort is the port a deployed service listens on inside its container.
		ServicePort() int
		// BuildCommand returns the build step for the project rooted at workspace, if any.
		BuildCommand(workspace string) (Command, bool)
		// TestCommand returns the test step for the project rooted at workspace.
		TestCommand(workspace string) Command
		// ContractTestCommand returns the harness command for a paired run.
		// The implementation under test is mounted at /code.
		ContractTestCommand(primaryID, contractID, workspace string) Command
	}

	// Definition is a Profile assembled from plain values and command builders.
	Definition struct {
		ID           string
		Extensions   []string
		BaseImage    string
		Port         int
		Build        func(workspace string) (Command, bool)
		Test         func(workspace string) Command
		ContractTest func(primaryID, contractID, workspace string) Command
		// Scaffold generates service artifacts; nil means the profile offers none.
		Scaffold func(vars ScaffoldVars) ([]Artifact, error)
	}

	// Summary is the diagnostic view of a registered profile.
	Summary struct {
		Name  string `json:"name" yaml:"name"`
		Image string `json:"image" yaml:"image"`
	}

	// NotFoundError is returned when no profile is registered under a name.
	NotFoundError struct {
		Name      string
		Available []string
	}

	// InvalidProfileError is returned when a profile cannot be registered.
	InvalidProfileError struct {
		Name   string
		Reason string
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("no profile registered for language %q", e.Name)
	}
	return fmt.Sprintf("no profile registered for language %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// Unwrap returns ErrProfileNotFound so callers can use errors.Is for programmatic detection.
func (e *NotFoundError) Unwrap() error { return ErrProfileNotFound }

// Error implements the error interface.
func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid profile %q: %s", e.Name, e.Reason)
}

// Unwrap returns ErrInvalidProfile for errors.Is() compatibility.
func (e *InvalidProfileError) Unwrap() error { return ErrInvalidProfile }

// Name returns the language identifier.
func (d *Definition) Name() string { return d.ID }

// FileExtensions returns a copy of the detection extensions.
func (d *Definition) FileExtensions() []string {
	return append([]string(nil), d.Extensions...)
}

// Image returns the base container image.
func (d *Definition) Image() string { return d.BaseImage }

// ServicePort returns the internal service port.
func (d *Definition) ServicePort() int { return d.Port }

// BuildCommand returns the build step, or false when the language has none.
func (d *Definition) BuildCommand(workspace string) (Command, bool) {
	if d.Build == nil {
		return Command{}, false
	}
	cmd, ok := d.Build(workspace)
	if !ok || cmd.IsZero() {
		return Command{}, false
	}
	return cmd, true
}

// TestCommand returns the test step.
func (d *Definition) TestCommand(workspace string) Command {
	if d.Test == nil {
		return Command{}
	}
	return d.Test(workspace)
}

// ContractTestCommand returns the paired-run harness command.
func (d *Definition) ContractTestCommand(primaryID, contractID, workspace string) Command {
	if d.ContractTest == nil {
		return Command{}
	}
	return d.ContractTest(primaryID, contractID, workspace)
}

// Validate reports whether p carries everything the registry requires.
func Validate(p Profile) error {
	if p == nil {
		return &InvalidProfileError{Reason: "profile is nil"}
	}
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return &InvalidProfileError{Reason: "name is empty"}
	}
	if strings.TrimSpace(p.Image()) == "" {
		return &InvalidProfileError{Name: name, Reason: "container image is empty"}
	}
	if err := p.TestCommand("/code").Check(); err != nil {
		return &InvalidProfileError{Name: name, Reason: "test command: " + err.Error()}
	}
	return nil
}
