// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mlbe/mlbe-runner/internal/issue"
)

var (
	// ErrStageFailed is matched by StageFailedError.
	ErrStageFailed = errors.New("stage failed")

	// ErrInvalidLabel is the sentinel error wrapped by InvalidLabelError.
	ErrInvalidLabel = errors.New("invalid workspace label")

	_ issue.StepError = (*StageFailedError)(nil)
)

type (
	// StageFailedError reports a failed clone, open, fetch, checkout or pull.
	// Stderr holds the failing step's captured output with credentials removed.
	StageFailedError struct {
		Label    string
		Step     string
		URL      string
		Revision string
		Stderr   string
		ExitCode int
		Err      error
	}

	// InvalidLabelError is returned for labels that are not a single path element.
	InvalidLabelError struct {
		Label string
	}
)

// Error implements the error interface.
func (e *StageFailedError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "stage %s: %s %s", e.Label, e.Step, e.URL)
	if e.Revision != "" {
		fmt.Fprintf(&msg, "@%s", e.Revision)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&msg, ": %s", stderr)
	} else if e.Err != nil {
		fmt.Fprintf(&msg, ": %v", e.Err)
	}
	return msg.String()
}

// Is reports whether target is ErrStageFailed.
func (e *StageFailedError) Is(target error) bool { return target == ErrStageFailed }

// Unwrap returns the underlying failure.
func (e *StageFailedError) Unwrap() error { return e.Err }

// FailedStep returns the staging step that failed and git's exit code.
func (e *StageFailedError) FailedStep() (string, int) {
	switch e.Step {
	case "stat", "open", "inspect":
		return e.Step, e.ExitCode
	default:
		return "git " + e.Step, e.ExitCode
	}
}

// stageError links sf to the staging issue page with hints for its step.
func stageError(sf *StageFailedError, path string) error {
	ctx := issue.NewErrorContext().
		WithOperation("stage workspace").
		WithWorkspace(sf.Label).
		WithIssue(issue.StagingFailedId)

	switch sf.Step {
	case "clone", "fetch", "remote", "pull":
		ctx.WithSuggestion("Check that " + sf.URL + " is reachable from this host")
		ctx.WithSuggestion("Set git.token or GITHUB_TOKEN for private repositories")
	case "checkout":
		ctx.WithSuggestion("Check that revision " + sf.Revision + " exists in " + sf.URL)
	case "open":
		ctx.WithSuggestion("Move " + path + " aside; it is not a git checkout and is never deleted")
	default:
		ctx.WithSuggestion("Check permissions on " + path)
	}
	return ctx.Wrap(sf).BuildError()
}

// Error implements the error interface.
func (e *InvalidLabelError) Error() string {
	return fmt.Sprintf("invalid workspace label %q: must be a single non-empty path element", e.Label)
}

// Unwrap returns ErrInvalidLabel for errors.Is() compatibility.
func (e *InvalidLabelError) Unwrap() error { return ErrInvalidLabel }
