// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"

	"github.com/mlbe/mlbe-runner/internal/catalog"
	"github.com/mlbe/mlbe-runner/internal/config"
	"github.com/mlbe/mlbe-runner/internal/invoke"
	"github.com/mlbe/mlbe-runner/internal/issue"
	"github.com/mlbe/mlbe-runner/internal/orchestrator"
	"github.com/mlbe/mlbe-runner/internal/profile"
	"github.com/mlbe/mlbe-runner/internal/workspace"
)

// Process exit codes, following sysexits.h where one fits.
const (
	exitFailure      = 1
	exitPrecondition = 64
	exitProfile      = 65
	exitNotFound     = 66
	exitUnavailable  = 69
	exitSoftware     = 70
	exitPathMissing  = 72
	exitStaging      = 74
	exitConfig       = 78
)

// errCatalogNotConfigured is returned when a command needs the catalog but
// neither catalog.file nor catalog.database_url is set.
var errCatalogNotConfigured = errors.New("no implementation catalog configured")

// classifyError maps an orchestration failure to a process exit code and the
// issue page that explains it. An issue linked by an ActionableError in the
// chain wins over the sentinel mapping.
func classifyError(err error) (code int, issueID issue.Id) {
	code = exitFailure

	var toolErr *invoke.ToolMissingError
	switch {
	case errors.As(err, &toolErr):
		code, issueID = exitUnavailable, issue.ContainerEngineNotFoundId
		if isGitBinary(toolErr.Binary) {
			issueID = issue.GitNotFoundId
		}
	case errors.Is(err, errCatalogNotConfigured):
		code, issueID = exitConfig, issue.CatalogUnavailableId
	case errors.Is(err, catalog.ErrNotFound):
		code, issueID = exitNotFound, issue.ImplementationNotFoundId
	case errors.Is(err, profile.ErrProfileNotFound):
		code, issueID = exitProfile, issue.ProfileNotFoundId
	case errors.Is(err, orchestrator.ErrPreconditionViolation):
		code, issueID = exitPrecondition, issue.PreconditionViolatedId
	case errors.Is(err, workspace.ErrStageFailed):
		code, issueID = exitStaging, issue.StagingFailedId
	case errors.Is(err, invoke.ErrPathMissing):
		code = exitPathMissing
	case errors.Is(err, invoke.ErrInvocationFailed):
		code, issueID = exitSoftware, issue.ContainerRunFailedId
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrInvalidLoadOptions):
		code, issueID = exitConfig, issue.ConfigLoadFailedId
	}

	if linked := issue.IssueFor(err); linked != nil {
		issueID = linked.Id()
		switch issueID {
		case issue.ConfigLoadFailedId:
			code = exitConfig
		case issue.CatalogUnavailableId:
			if code == exitFailure {
				code = exitUnavailable
			}
		}
	}
	return code, issueID
}

// exitCode returns the process exit code for an error returned by the root command.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	code, _ := classifyError(err)
	return code
}

func isGitBinary(binary string) bool {
	base := strings.TrimSuffix(filepath.Base(binary), ".exe")
	return base == config.DefaultGitBinary
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderError prints err and, in verbose mode, the issue page explaining it.
func renderError(w io.Writer, err error, verbose bool, scheme config.ColorScheme) {
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))

	_, issueID := classifyError(err)
	if issueID == 0 {
		return
	}
	page := issue.Get(issueID)
	if page == nil {
		return
	}
	if !verbose {
		fmt.Fprintln(w, SubtitleStyle.Render("Run with --verbose for troubleshooting steps."))
		return
	}
	rendered, renderErr := page.Render(string(scheme))
	if renderErr != nil {
		log.Warn("failed to render issue page", "issue", issueID, "error", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}

// handleError is the fang error handler. Failures already reported by a
// command, such as a failing test, print nothing further.
func (a *App) handleError(w io.Writer, _ fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	renderError(w, err, a.verbose, a.colorScheme)
}
