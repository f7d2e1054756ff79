// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mlbe/mlbe-runner/internal/invoke"
)

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"

	// RuntimeFailureExitCode is the exit status docker and podman use for their own
	// failures (daemon errors, missing image, container could not be created).
	RuntimeFailureExitCode = 125
	// CommandNotExecutableExitCode is reported when the container command exists but cannot be run.
	CommandNotExecutableExitCode = 126
	// CommandNotFoundExitCode is reported when the container command cannot be found.
	CommandNotFoundExitCode = 127
)

var (
	// ErrInvalidRunRequest is the sentinel error wrapped by InvalidRunRequestError.
	ErrInvalidRunRequest = errors.New("invalid run request")

	// ErrInvalidBuildRequest is the sentinel error wrapped by InvalidBuildRequestError.
	ErrInvalidBuildRequest = errors.New("invalid build request")

	// ErrUnknownEngine is returned by NewEngine for an unsupported engine type.
	ErrUnknownEngine = errors.New("unknown container engine")
)

type (
	// Engine defines the container operations the orchestrators need.
	Engine interface {
		// Name returns the engine name (docker or podman).
		Name() string
		// BinaryPath returns the configured engine binary.
		BinaryPath() string
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)
		// Build builds an image from a context directory.
		Build(ctx context.Context, req BuildRequest) (*Result, error)
		// Run runs a command in a container.
		Run(ctx context.Context, req RunRequest) (*Result, error)
		// Remove removes a container.
		Remove(ctx context.Context, name string, force bool) error
		// RemoveIfExists force-removes a container and reports whether one existed.
		RemoveIfExists(ctx context.Context, name string) (bool, error)
	}

	// Runner executes one process invocation. *invoke.Invoker satisfies it.
	Runner interface {
		Invoke(ctx context.Context, c invoke.Command) (*invoke.Output, error)
	}

	// EngineType identifies the container engine type.
	EngineType string

	// RunRequest describes one container run.
	RunRequest struct {
		// Image is the image to run.
		Image string
		// Command is the argv executed inside the container.
		Command []string
		// Volumes are bind mounts, in order.
		Volumes []VolumeMount
		// WorkDir is the working directory inside the container.
		// When volumes are present it must be one of the mount targets or inside one.
		WorkDir string
		// Env contains environment variables.
		Env map[string]string
		// Detached starts the container in the background and returns its ID.
		Detached bool
		// AutoRemove removes a foreground container after it exits. Nil means true.
		// It is ignored for detached runs.
		AutoRemove *bool
		// Name is the container name. Ephemeral runs get a generated one when empty.
		Name string
		// Ports are published port mappings.
		Ports []PortMapping
		// Network is the network to attach to; empty uses the engine default.
		Network string
	}

	// BuildRequest describes one image build.
	BuildRequest struct {
		// ContextDir is the build context directory; the build runs with it as cwd.
		ContextDir string
		// Tag is the image tag.
		Tag string
		// Dockerfile is the build recipe relative to ContextDir. Empty means the engine default.
		Dockerfile string
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// NoCache disables the build cache.
		NoCache bool
	}

	// Result is a completed container attempt. A non-zero ExitCode is the
	// command's own status, not an engine failure.
	Result struct {
		ExitCode    int           `json:"exit_code" yaml:"exit_code"`
		Stdout      string        `json:"stdout" yaml:"stdout"`
		Stderr      string        `json:"stderr" yaml:"stderr"`
		Elapsed     time.Duration `json:"elapsed" yaml:"elapsed"`
		Image       string        `json:"image" yaml:"image"`
		ContainerID string        `json:"container_id,omitempty" yaml:"container_id,omitempty"`
	}

	// InvalidRunRequestError is returned when a RunRequest has one or more invalid fields.
	InvalidRunRequestError struct {
		Image     string
		FieldErrs []error
	}

	// InvalidBuildRequestError is returned when a BuildRequest has one or more invalid fields.
	InvalidBuildRequestError struct {
		Tag       string
		FieldErrs []error
	}
)

// NewEngine creates the engine of the given type bound to binaryPath.
// An empty binaryPath uses the engine name, resolved on PATH by the runner.
func NewEngine(kind EngineType, binaryPath string, opts ...BaseCLIEngineOption) (Engine, error) {
	if binaryPath == "" {
		binaryPath = string(kind)
	}
	switch kind {
	case EngineTypePodman:
		return NewPodmanEngine(binaryPath, opts...), nil
	case EngineTypeDocker:
		return NewDockerEngine(binaryPath, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: podman, docker)", ErrUnknownEngine, kind)
	}
}

// Success reports whether the command exited zero.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// ElapsedSeconds returns the wall-clock duration in seconds.
func (r *Result) ElapsedSeconds() float64 { return r.Elapsed.Seconds() }

// Error implements the error interface.
func (e *InvalidRunRequestError) Error() string {
	return fmt.Sprintf("invalid run request for image %q: %v", e.Image, errors.Join(e.FieldErrs...))
}

// Unwrap returns ErrInvalidRunRequest for errors.Is() compatibility.
func (e *InvalidRunRequestError) Unwrap() error { return ErrInvalidRunRequest }

// Error implements the error interface.
func (e *InvalidBuildRequestError) Error() string {
	return fmt.Sprintf("invalid build request for tag %q: %v", e.Tag, errors.Join(e.FieldErrs...))
}

// Unwrap returns ErrInvalidBuildRequest for errors.Is() compatibility.
func (e *InvalidBuildRequestError) Unwrap() error { return ErrInvalidBuildRequest }

// removeAfterExit reports whether the run gets --rm.
func (r RunRequest) removeAfterExit() bool {
	if r.Detached {
		return false
	}
	return r.AutoRemove == nil || *r.AutoRemove
}

// Validate checks the request before any process is spawned.
func (r RunRequest) Validate() error {
	var errs []error
	if strings.TrimSpace(r.Image) == "" {
		errs = append(errs, errors.New("image is empty"))
	}
	for _, v := range r.Volumes {
		if err := v.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range r.Ports {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for k := range r.Env {
		if k == "" || strings.ContainsAny(k, "= \t\n") {
			errs = append(errs, fmt.Errorf("invalid environment variable name %q", k))
		}
	}
	if r.WorkDir != "" && len(r.Volumes) > 0 && !r.workDirMounted() {
		errs = append(errs, fmt.Errorf("working directory %q is not inside any mount target", r.WorkDir))
	}
	if len(errs) > 0 {
		return &InvalidRunRequestError{Image: r.Image, FieldErrs: errs}
	}
	return nil
}

func (r RunRequest) workDirMounted() bool {
	wd := path.Clean(r.WorkDir)
	for _, v := range r.Volumes {
		target := path.Clean(string(v.ContainerPath))
		if wd == target || target == "/" || strings.HasPrefix(wd, target+"/") {
			return true
		}
	}
	return false
}

// Validate checks the request before any process is spawned.
func (b BuildRequest) Validate() error {
	var errs []error
	if strings.TrimSpace(b.ContextDir) == "" {
		errs = append(errs, errors.New("context directory is empty"))
	}
	if strings.TrimSpace(b.Tag) == "" {
		errs = append(errs, errors.New("image tag is empty"))
	}
	if b.Dockerfile != "" && b.ContextDir != "" {
		if _, err := ResolveDockerfilePath(b.ContextDir, b.Dockerfile); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &InvalidBuildRequestError{Tag: b.Tag, FieldErrs: errs}
	}
	return nil
}
