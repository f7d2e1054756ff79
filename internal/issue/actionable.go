// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Resource kinds an ActionableError can point at.
const (
	ResourceFile           ResourceKind = "file"
	ResourceWorkspace      ResourceKind = "workspace"
	ResourceImage          ResourceKind = "image"
	ResourceContainer      ResourceKind = "container"
	ResourceImplementation ResourceKind = "implementation"
	ResourceProfile        ResourceKind = "profile"
	ResourceCatalog        ResourceKind = "catalog"
)

type (
	// ResourceKind classifies the entity an error is about.
	ResourceKind string

	// Resource is the entity a failed operation was acting on: a workspace
	// label, an image tag, an implementation id, a file path.
	Resource struct {
		Kind ResourceKind
		Name string
	}

	// StepError is implemented by failures of one named step of a longer
	// operation, such as the git fetch of a workspace update.
	StepError interface {
		error
		// FailedStep returns the step name and the exit code of the process
		// that ran it, or 0 when no process was involved.
		FailedStep() (step string, exitCode int)
	}

	// ActionableError is an error with context for user-facing error messages:
	// the operation that failed, the resource it was acting on and hints for
	// fixing it.
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("stage workspace").
	//		WithWorkspace("impl_42").
	//		WithSuggestion("Set git.token for private repositories").
	//		Wrap(stageErr).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "build container image".
		Operation string

		// Resource identifies the entity involved (optional).
		Resource Resource

		// Suggestions provides hints on how to fix the issue (optional).
		Suggestions []string

		// Cause is the underlying error (optional).
		Cause error

		// Issue links the error to a catalogued issue page (optional).
		Issue Id
	}

	// ErrorContext is a builder for ActionableError.
	ErrorContext struct {
		operation   string
		resource    Resource
		suggestions []string
		cause       error
		issue       Id
	}
)

// String renders the resource for messages. Files are shown as bare paths.
func (r Resource) String() string {
	switch {
	case r.Name == "":
		return ""
	case r.Kind == "" || r.Kind == ResourceFile:
		return r.Name
	default:
		return string(r.Kind) + " " + r.Name
	}
}

// IsZero reports whether no resource was set.
func (r Resource) IsZero() bool { return r.Name == "" }

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error returns the one-line form: failed to <operation>: <resource>: <cause>.
func (e *ActionableError) Error() string {
	var msg strings.Builder

	msg.WriteString("failed to ")
	msg.WriteString(e.Operation)

	if res := e.Resource.String(); res != "" {
		msg.WriteString(": ")
		msg.WriteString(res)
	}

	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}

	return msg.String()
}

// Unwrap returns the underlying cause error for use with errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format returns the error for display:
//
//	failed to <operation>: <resource>: <cause message>
//	  step: <step> (exit <code>)
//
//	  • <suggestion 1>
//	  • <suggestion 2>
//
// The step line appears when a StepError is in the cause chain. When verbose
// is true the full error chain follows.
func (e *ActionableError) Format(verbose bool) string {
	var msg strings.Builder

	msg.WriteString(e.Error())

	var stepErr StepError
	if e.Cause != nil && errors.As(e.Cause, &stepErr) {
		step, code := stepErr.FailedStep()
		msg.WriteString("\n  step: ")
		msg.WriteString(step)
		if code != 0 {
			msg.WriteString(" (exit " + strconv.Itoa(code) + ")")
		}
	}

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n")
		for _, suggestion := range e.Suggestions {
			msg.WriteString("\n  • ")
			msg.WriteString(suggestion)
		}
	}

	if verbose && e.Cause != nil {
		msg.WriteString("\n\nError chain:")
		err := e.Cause
		depth := 1
		for err != nil {
			fmt.Fprintf(&msg, "\n  %d. %s", depth, err.Error())
			err = errors.Unwrap(err)
			depth++
		}
	}

	return msg.String()
}

// WithOperation sets the operation being performed.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.operation = op
	return c
}

// WithFile names the file involved.
func (c *ErrorContext) WithFile(path string) *ErrorContext {
	return c.withResource(ResourceFile, path)
}

// WithWorkspace names the workspace label involved.
func (c *ErrorContext) WithWorkspace(label string) *ErrorContext {
	return c.withResource(ResourceWorkspace, label)
}

// WithImage names the container image involved.
func (c *ErrorContext) WithImage(tag string) *ErrorContext {
	return c.withResource(ResourceImage, tag)
}

// WithContainer names the container involved.
func (c *ErrorContext) WithContainer(name string) *ErrorContext {
	return c.withResource(ResourceContainer, name)
}

// WithImplementation names the catalogued implementation involved.
func (c *ErrorContext) WithImplementation(id int64) *ErrorContext {
	return c.withResource(ResourceImplementation, strconv.FormatInt(id, 10))
}

// WithProfile names the language profile involved.
func (c *ErrorContext) WithProfile(name string) *ErrorContext {
	return c.withResource(ResourceProfile, name)
}

// WithCatalog names the catalog source involved.
func (c *ErrorContext) WithCatalog(source string) *ErrorContext {
	return c.withResource(ResourceCatalog, source)
}

func (c *ErrorContext) withResource(kind ResourceKind, name string) *ErrorContext {
	c.resource = Resource{Kind: kind, Name: name}
	return c
}

// WithSuggestion adds a suggestion for how to fix the issue.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.suggestions = append(c.suggestions, sug)
	return c
}

// WithIssue links the error to a catalogued issue.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.issue = id
	return c
}

// Wrap wraps an underlying error as the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.cause = err
	return c
}

// Build creates an ActionableError from the context.
// Returns nil if no operation is set.
func (c *ErrorContext) Build() *ActionableError {
	if c.operation == "" {
		return nil
	}

	return &ActionableError{
		Operation:   c.operation,
		Resource:    c.resource,
		Suggestions: append([]string(nil), c.suggestions...),
		Cause:       c.cause,
		Issue:       c.issue,
	}
}

// BuildError is Build returned as an error, nil when no operation is set.
func (c *ErrorContext) BuildError() error {
	ae := c.Build()
	if ae == nil {
		return nil
	}
	return ae
}

// IssueFor returns the catalogued issue linked to the first ActionableError
// in err's chain that carries one.
func IssueFor(err error) *Issue {
	for err != nil {
		var ae *ActionableError
		if !errors.As(err, &ae) {
			return nil
		}
		if ae.Issue != 0 {
			return Get(ae.Issue)
		}
		err = ae.Cause
	}
	return nil
}
