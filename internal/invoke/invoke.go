// SPDX-License-Identifier: MPL-2.0

package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// DefaultWaitDelay bounds how long Invoke waits for output pipes after the child is killed.
const DefaultWaitDelay = 5 * time.Second

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// LookPathFunc resolves a bare binary name against PATH.
	LookPathFunc func(file string) (string, error)

	// Option configures an Invoker.
	Option func(*Invoker)

	// Invoker spawns external binaries and captures their output.
	// It is safe for concurrent use; it holds no per-call state.
	Invoker struct {
		execCommand ExecCommandFunc
		lookPath    LookPathFunc
		fs          afero.Fs
		logger      *log.Logger
		waitDelay   time.Duration
	}

	// Command describes a single process invocation.
	Command struct {
		// Binary is a bare name resolved on PATH, or a path to an executable.
		Binary string
		// Args are passed verbatim; they may contain secrets and are redacted before logging.
		Args []string
		// Dir is the working directory. Empty means the current directory.
		Dir string
		// Env holds extra KEY=VALUE entries appended to the parent environment.
		Env []string
	}

	// Output is the captured result of a successful invocation.
	Output struct {
		Stdout   string
		Stderr   string
		ExitCode int
	}
)

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(i *Invoker) {
		i.execCommand = fn
	}
}

// WithLookPath sets the PATH resolver for bare binary names.
func WithLookPath(fn LookPathFunc) Option {
	return func(i *Invoker) {
		i.lookPath = fn
	}
}

// WithFs sets the filesystem used for pre-spawn binary and directory checks.
func WithFs(fs afero.Fs) Option {
	return func(i *Invoker) {
		i.fs = fs
	}
}

// WithLogger sets the logger used for debug tracing of invocations.
func WithLogger(l *log.Logger) Option {
	return func(i *Invoker) {
		i.logger = l
	}
}

// WithWaitDelay overrides DefaultWaitDelay.
func WithWaitDelay(d time.Duration) Option {
	return func(i *Invoker) {
		i.waitDelay = d
	}
}

// New creates an Invoker backed by the real OS unless options say otherwise.
func New(opts ...Option) *Invoker {
	i := &Invoker{
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
		fs:          afero.NewOsFs(),
		logger:      log.New(io.Discard),
		waitDelay:   DefaultWaitDelay,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Resolve locates binary without running it.
// Names containing a path separator are checked on the filesystem; bare names go through PATH.
func (i *Invoker) Resolve(binary string) (string, error) {
	if strings.TrimSpace(binary) == "" {
		return "", &ToolMissingError{Binary: binary, Reason: "no binary configured"}
	}

	if !strings.ContainsRune(binary, '/') && !strings.ContainsRune(binary, os.PathSeparator) {
		path, err := i.lookPath(binary)
		if err != nil {
			return "", &ToolMissingError{Binary: binary, Reason: "not found on PATH"}
		}
		return path, nil
	}

	info, err := i.fs.Stat(binary)
	if err != nil {
		return "", &ToolMissingError{Binary: binary, Reason: "file does not exist"}
	}
	if info.IsDir() {
		return "", &ToolMissingError{Binary: binary, Reason: "path is a directory"}
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", &ToolMissingError{Binary: binary, Reason: "file is not executable"}
	}
	return binary, nil
}

// Invoke runs the command once and waits for it.
//
// It returns ToolMissingError or PathMissingError before spawning anything, and
// InvocationFailedError (carrying stdout, stderr and the exit code) when the process
// exits non-zero. Cancellation of ctx kills the child's process group.
func (i *Invoker) Invoke(ctx context.Context, c Command) (*Output, error) {
	binPath, err := i.Resolve(c.Binary)
	if err != nil {
		return nil, err
	}

	if c.Dir != "" {
		if ok, statErr := afero.DirExists(i.fs, c.Dir); statErr != nil || !ok {
			return nil, &PathMissingError{Path: c.Dir}
		}
	}

	redacted := RedactArgs(c.Args)
	i.logger.Debug("invoke", "binary", c.Binary, "args", strings.Join(redacted, " "), "dir", c.Dir)

	cmd := i.execCommand(ctx, binPath, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		base := cmd.Env
		if base == nil {
			base = os.Environ()
		}
		cmd.Env = append(base, c.Env...)
	}
	configureProcessGroup(cmd)
	cmd.WaitDelay = i.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	out := &Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if runErr == nil {
		i.logger.Debug("invoke done", "binary", c.Binary, "elapsed", elapsed)
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s %s interrupted: %w", c.Binary, strings.Join(redacted, " "), ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		i.logger.Debug("invoke exited non-zero", "binary", c.Binary, "exit", out.ExitCode, "elapsed", elapsed)
		return nil, &InvocationFailedError{
			Binary:   c.Binary,
			Args:     redacted,
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
			ExitCode: out.ExitCode,
		}
	}

	// Start failures after a successful Resolve (permission flips, exec format errors).
	if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, os.ErrNotExist) || errors.Is(runErr, os.ErrPermission) {
		return nil, &ToolMissingError{Binary: c.Binary, Reason: runErr.Error()}
	}
	return nil, fmt.Errorf("start %s: %w", c.Binary, runErr)
}
