// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/mlbe/mlbe-runner/internal/invoke"
	"github.com/mlbe/mlbe-runner/internal/issue"
)

const (
	// PortProtocolTCP is the TCP transport protocol for port mappings.
	PortProtocolTCP PortProtocol = "tcp"
	// PortProtocolUDP is the UDP transport protocol for port mappings.
	PortProtocolUDP PortProtocol = "udp"

	// SELinuxLabelNone means no SELinux label is applied to volume mounts.
	SELinuxLabelNone SELinuxLabel = ""
	// SELinuxLabelShared allows sharing the volume between containers.
	SELinuxLabelShared SELinuxLabel = "z"
	// SELinuxLabelPrivate restricts the volume to a single container.
	SELinuxLabelPrivate SELinuxLabel = "Z"

	// EphemeralNamePrefix prefixes generated names of foreground test containers.
	EphemeralNamePrefix = "mlbe-run-"

	// DefaultCleanupTimeout bounds the force-removal of a container whose run was cancelled.
	DefaultCleanupTimeout = 30 * time.Second
)

var (
	// ErrInvalidPortProtocol is the sentinel error wrapped by InvalidPortProtocolError.
	ErrInvalidPortProtocol = errors.New("invalid port protocol")

	// ErrInvalidSELinuxLabel is the sentinel error wrapped by InvalidSELinuxLabelError.
	ErrInvalidSELinuxLabel = errors.New("invalid SELinux label")

	// ErrInvalidNetworkPort is the sentinel error wrapped by InvalidNetworkPortError.
	ErrInvalidNetworkPort = errors.New("invalid network port")

	// ErrInvalidHostFilesystemPath is the sentinel error wrapped by InvalidHostFilesystemPathError.
	ErrInvalidHostFilesystemPath = errors.New("invalid host filesystem path")

	// ErrInvalidMountTargetPath is the sentinel error wrapped by InvalidMountTargetPathError.
	ErrInvalidMountTargetPath = errors.New("invalid container filesystem path")

	// ErrInvalidVolumeMount is the sentinel error wrapped by InvalidVolumeMountError.
	ErrInvalidVolumeMount = errors.New("invalid volume mount")

	// ErrInvalidPortMapping is the sentinel error wrapped by InvalidPortMappingError.
	ErrInvalidPortMapping = errors.New("invalid port mapping")
)

type (
	// VolumeFormatFunc adjusts a volume mount before it is rendered for -v.
	// Podman uses this to add SELinux labels (:z) in SELinux-enforcing environments.
	VolumeFormatFunc func(VolumeMount) VolumeMount

	// NameFunc generates names for ephemeral containers.
	NameFunc func() string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides the implementation shared by CLI-based container engines.
	// Docker and Podman engines embed this struct. It owns argument composition and
	// result shaping only; every process goes through the Runner.
	BaseCLIEngine struct {
		name            string
		binaryPath      string
		runner          Runner
		volumeFormatter VolumeFormatFunc
		nameFunc        NameFunc
		logger          *log.Logger
		cleanupTimeout  time.Duration
	}

	// PortProtocol represents a network transport protocol for port mappings.
	// The zero value ("") is valid and means "default to tcp".
	PortProtocol string

	// InvalidPortProtocolError is returned when a PortProtocol is not a recognized protocol.
	InvalidPortProtocolError struct {
		Value PortProtocol
	}

	// SELinuxLabel represents an SELinux volume labeling option.
	// The zero value ("") means no SELinux label is applied.
	SELinuxLabel string

	// InvalidSELinuxLabelError is returned when an SELinuxLabel is not a recognized label.
	InvalidSELinuxLabelError struct {
		Value SELinuxLabel
	}

	// NetworkPort represents a TCP/UDP port number for container port mappings.
	// A valid port must be greater than zero.
	NetworkPort uint16

	// InvalidNetworkPortError is returned when a NetworkPort value is zero.
	InvalidNetworkPortError struct {
		Value NetworkPort
	}

	// HostFilesystemPath represents a filesystem path on the host for volume mounts.
	HostFilesystemPath string

	// InvalidHostFilesystemPathError is returned when a HostFilesystemPath is empty or relative.
	InvalidHostFilesystemPathError struct {
		Value HostFilesystemPath
	}

	// MountTargetPath represents an absolute filesystem path inside a container.
	MountTargetPath string

	// InvalidMountTargetPathError is returned when a MountTargetPath is empty or relative.
	InvalidMountTargetPathError struct {
		Value MountTargetPath
	}

	// VolumeMount represents a bind mount of a host directory into the container.
	VolumeMount struct {
		HostPath      HostFilesystemPath
		ContainerPath MountTargetPath
		ReadOnly      bool
		SELinux       SELinuxLabel
	}

	// PortMapping publishes a container port on the host.
	PortMapping struct {
		HostPort      NetworkPort
		ContainerPort NetworkPort
		Protocol      PortProtocol
	}

	// InvalidVolumeMountError is returned when a VolumeMount has one or more invalid fields.
	// It wraps the individual field validation errors for inspection.
	InvalidVolumeMountError struct {
		Value     VolumeMount
		FieldErrs []error
	}

	// InvalidPortMappingError is returned when a PortMapping has one or more invalid fields.
	InvalidPortMappingError struct {
		Value     PortMapping
		FieldErrs []error
	}
)

// Error implements the error interface.
func (e *InvalidPortProtocolError) Error() string {
	return fmt.Sprintf("invalid port protocol %q (valid: tcp, udp)", e.Value)
}

// Unwrap returns ErrInvalidPortProtocol so callers can use errors.Is for programmatic detection.
func (e *InvalidPortProtocolError) Unwrap() error { return ErrInvalidPortProtocol }

// Validate returns an error if the PortProtocol is not one of the defined protocols.
func (p PortProtocol) Validate() error {
	switch p {
	case PortProtocolTCP, PortProtocolUDP, "":
		return nil
	default:
		return &InvalidPortProtocolError{Value: p}
	}
}

// Error implements the error interface.
func (e *InvalidSELinuxLabelError) Error() string {
	return fmt.Sprintf("invalid SELinux label %q (valid: empty, z, Z)", e.Value)
}

// Unwrap returns ErrInvalidSELinuxLabel so callers can use errors.Is for programmatic detection.
func (e *InvalidSELinuxLabelError) Unwrap() error { return ErrInvalidSELinuxLabel }

// Validate returns an error if the SELinuxLabel is not one of the defined labels.
func (s SELinuxLabel) Validate() error {
	switch s {
	case SELinuxLabelNone, SELinuxLabelShared, SELinuxLabelPrivate:
		return nil
	default:
		return &InvalidSELinuxLabelError{Value: s}
	}
}

// String returns the string representation of the NetworkPort.
func (p NetworkPort) String() string { return strconv.Itoa(int(p)) }

// Validate returns an error if the port is zero.
func (p NetworkPort) Validate() error {
	if p == 0 {
		return &InvalidNetworkPortError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidNetworkPortError.
func (e *InvalidNetworkPortError) Error() string {
	return fmt.Sprintf("invalid network port %d: must be greater than zero", e.Value)
}

// Unwrap returns ErrInvalidNetworkPort for errors.Is() compatibility.
func (e *InvalidNetworkPortError) Unwrap() error { return ErrInvalidNetworkPort }

// Validate returns an error unless the path is non-empty and absolute.
func (p HostFilesystemPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" || !filepath.IsAbs(string(p)) {
		return &InvalidHostFilesystemPathError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidHostFilesystemPathError.
func (e *InvalidHostFilesystemPathError) Error() string {
	return fmt.Sprintf("invalid host filesystem path %q: must be absolute", e.Value)
}

// Unwrap returns ErrInvalidHostFilesystemPath for errors.Is() compatibility.
func (e *InvalidHostFilesystemPathError) Unwrap() error { return ErrInvalidHostFilesystemPath }

// Validate returns an error unless the path is non-empty and absolute.
func (p MountTargetPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" || !strings.HasPrefix(string(p), "/") {
		return &InvalidMountTargetPathError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidMountTargetPathError.
func (e *InvalidMountTargetPathError) Error() string {
	return fmt.Sprintf("invalid container filesystem path %q: must be absolute", e.Value)
}

// Unwrap returns ErrInvalidMountTargetPath for errors.Is() compatibility.
func (e *InvalidMountTargetPathError) Unwrap() error { return ErrInvalidMountTargetPath }

// Error implements the error interface for InvalidVolumeMountError.
func (e *InvalidVolumeMountError) Error() string {
	return fmt.Sprintf("invalid volume mount %s:%s: %v",
		e.Value.HostPath, e.Value.ContainerPath, errors.Join(e.FieldErrs...))
}

// Unwrap returns ErrInvalidVolumeMount for errors.Is() compatibility.
func (e *InvalidVolumeMountError) Unwrap() error { return ErrInvalidVolumeMount }

// Validate returns an error if any field of the VolumeMount is invalid.
func (v VolumeMount) Validate() error {
	var errs []error
	if err := v.HostPath.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := v.ContainerPath.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := v.SELinux.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidVolumeMountError{Value: v, FieldErrs: errs}
	}
	return nil
}

// String returns the mount in -v form.
func (v VolumeMount) String() string { return FormatVolumeMount(v) }

// Error implements the error interface for InvalidPortMappingError.
func (e *InvalidPortMappingError) Error() string {
	return fmt.Sprintf("invalid port mapping %d:%d/%s: %v",
		e.Value.HostPort, e.Value.ContainerPort, e.Value.Protocol, errors.Join(e.FieldErrs...))
}

// Unwrap returns ErrInvalidPortMapping for errors.Is() compatibility.
func (e *InvalidPortMappingError) Unwrap() error { return ErrInvalidPortMapping }

// Validate returns an error if any field of the PortMapping is invalid.
func (p PortMapping) Validate() error {
	var errs []error
	if err := p.HostPort.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := p.ContainerPort.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := p.Protocol.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidPortMappingError{Value: p, FieldErrs: errs}
	}
	return nil
}

// String returns the mapping in -p form.
func (p PortMapping) String() string { return FormatPortMapping(p) }

// --- Option Functions ---

// WithName sets the engine name used in logs and error messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithRunner sets the process runner. Tests inject a recording fake.
func WithRunner(r Runner) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.runner = r
	}
}

// WithVolumeFormatter sets a volume formatter applied to every mount.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// WithNameFunc sets the generator for ephemeral container names.
func WithNameFunc(fn NameFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.nameFunc = fn
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.logger = l
	}
}

// WithCleanupTimeout overrides DefaultCleanupTimeout.
func WithCleanupTimeout(d time.Duration) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.cleanupTimeout = d
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a base engine for the given binary.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath:      binaryPath,
		volumeFormatter: func(v VolumeMount) VolumeMount { return v },
		nameFunc:        EphemeralName,
		logger:          log.New(io.Discard),
		cleanupTimeout:  DefaultCleanupTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = invoke.New(invoke.WithLogger(e.logger))
	}
	return e
}

// EphemeralName returns a unique name for a foreground test container.
func EphemeralName() string {
	return EphemeralNamePrefix + strings.ToLower(ulid.Make().String())
}

// --- Accessor Methods ---

// Name returns the engine name.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// BuildArgs constructs arguments for a build command run from the context directory.
//
// Generated command: <binary> build [-f <dockerfile>] -t <tag> [--no-cache] [--build-arg K=V]* .
func (e *BaseCLIEngine) BuildArgs(req BuildRequest) []string {
	args := []string{"build"}

	if req.Dockerfile != "" {
		args = append(args, "-f", req.Dockerfile)
	}

	args = append(args, "-t", req.Tag)

	if req.NoCache {
		args = append(args, "--no-cache")
	}

	for _, k := range slices.Sorted(maps.Keys(req.BuildArgs)) {
		args = append(args, "--build-arg", k+"="+req.BuildArgs[k])
	}

	return append(args, ".")
}

// RunArgs constructs arguments for a container run command.
// Environment variables are emitted in key order so the argv is deterministic.
//
// Generated command: <binary> run [--rm] [-d] [--name N] [--network N] [-e K=V]* [-v h:c[:opts]]* [-p h:c]* [-w dir] <image> [command...]
func (e *BaseCLIEngine) RunArgs(req RunRequest) []string {
	args := []string{"run"}

	if req.removeAfterExit() {
		args = append(args, "--rm")
	}

	if req.Detached {
		args = append(args, "-d")
	}

	if req.Name != "" {
		args = append(args, "--name", req.Name)
	}

	if req.Network != "" {
		args = append(args, "--network", req.Network)
	}

	for _, k := range slices.Sorted(maps.Keys(req.Env)) {
		args = append(args, "-e", k+"="+req.Env[k])
	}

	for _, v := range req.Volumes {
		args = append(args, "-v", FormatVolumeMount(e.volumeFormatter(v)))
	}

	for _, p := range req.Ports {
		args = append(args, "-p", FormatPortMapping(p))
	}

	if req.WorkDir != "" {
		args = append(args, "-w", req.WorkDir)
	}

	args = append(args, req.Image)
	return append(args, req.Command...)
}

// RemoveArgs constructs arguments for a container remove command.
func (e *BaseCLIEngine) RemoveArgs(name string, force bool) []string {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	return append(args, name)
}

// --- Command Execution ---

// invoke runs the engine binary once with args.
func (e *BaseCLIEngine) invoke(ctx context.Context, dir string, args ...string) (*invoke.Output, error) {
	return e.runner.Invoke(ctx, invoke.Command{Binary: e.binaryPath, Args: args, Dir: dir})
}

// RunCommandWithOutput executes an engine subcommand and returns its stdout.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	out, err := e.invoke(ctx, "", args...)
	if err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return out.Stdout, nil
}

// --- Engine Methods (shared by Docker and Podman) ---

// Build builds an image with the context directory as working directory.
// Any non-zero exit is an error.
func (e *BaseCLIEngine) Build(ctx context.Context, req BuildRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	args := e.BuildArgs(req)
	e.logger.Info("building image", "tag", req.Tag, "context", req.ContextDir)

	start := time.Now()
	out, err := e.invoke(ctx, req.ContextDir, args...)
	elapsed := time.Since(start)
	if err != nil {
		return nil, buildContainerError(e.name, req, err)
	}

	e.logger.Debug("image built", "tag", req.Tag, "elapsed", elapsed)
	return &Result{
		Stdout:  out.Stdout,
		Stderr:  out.Stderr,
		Elapsed: elapsed,
		Image:   req.Tag,
	}, nil
}

// Run runs a command in a container.
//
// For foreground runs a non-zero exit of the command is returned in Result.ExitCode.
// Only infrastructure failures are errors: a missing binary, an invalid request,
// the engine's own failure status (see isRuntimeFailure), or any failure of a
// detached start. Ephemeral containers are force-removed if ctx is cancelled.
func (e *BaseCLIEngine) Run(ctx context.Context, req RunRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Name == "" && req.removeAfterExit() {
		req.Name = e.nameFunc()
	}

	args := e.RunArgs(req)
	e.logger.Debug("running container", "image", req.Image, "name", req.Name, "detached", req.Detached)

	start := time.Now()
	out, err := e.invoke(ctx, "", args...)
	result := &Result{Image: req.Image, Elapsed: time.Since(start)}

	if err != nil {
		if ctx.Err() != nil {
			if !req.Detached && req.Name != "" {
				e.cleanup(req.Name)
			}
			return nil, fmt.Errorf("run container %s: %w", req.Image, err)
		}

		var failed *invoke.InvocationFailedError
		if errors.As(err, &failed) && !req.Detached && !isRuntimeFailure(failed.ExitCode, failed.Stderr) {
			result.ExitCode = failed.ExitCode
			result.Stdout = failed.Stdout
			result.Stderr = failed.Stderr
			e.logger.Debug("container exited non-zero", "image", req.Image, "exit", failed.ExitCode, "elapsed", result.Elapsed)
			return result, nil
		}
		return nil, runContainerError(e.name, req, err)
	}

	result.Stdout = out.Stdout
	result.Stderr = out.Stderr
	if req.Detached {
		result.ContainerID = lastLine(out.Stdout)
		e.logger.Info("container started", "image", req.Image, "name", req.Name, "id", shortID(result.ContainerID))
	}
	return result, nil
}

// Remove removes a container.
func (e *BaseCLIEngine) Remove(ctx context.Context, name string, force bool) error {
	if _, err := e.invoke(ctx, "", e.RemoveArgs(name, force)...); err != nil {
		return fmt.Errorf("remove container %s: %w", name, err)
	}
	return nil
}

// RemoveIfExists force-removes the named container. A missing container is not
// an error; the boolean reports whether a container was removed.
func (e *BaseCLIEngine) RemoveIfExists(ctx context.Context, name string) (bool, error) {
	out, err := e.invoke(ctx, "", e.RemoveArgs(name, true)...)
	if err != nil {
		var failed *invoke.InvocationFailedError
		if errors.As(err, &failed) && isNoSuchContainer(failed.Stderr) {
			e.logger.Debug("no container to remove", "name", name)
			return false, nil
		}
		return false, fmt.Errorf("remove container %s: %w", name, err)
	}
	// Recent docker versions exit zero for a missing container under -f.
	if isNoSuchContainer(out.Stderr) {
		return false, nil
	}
	return true, nil
}

// cleanup force-removes a container left behind by a cancelled run.
// It uses its own context because the run's context is already done.
func (e *BaseCLIEngine) cleanup(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cleanupTimeout)
	defer cancel()
	if _, err := e.RemoveIfExists(ctx, name); err != nil {
		e.logger.Warn("failed to remove cancelled container", "name", name, "err", err)
	}
}

// runtimeErrorMarkers are stderr fragments written by docker, podman and their
// OCI runtimes, never by the command inside the container.
var runtimeErrorMarkers = []string{
	"error response from daemon",
	"oci runtime",
	"failed to create task",
	"failed to create shim",
	"crun: ",
	"runc: ",
	"runc create failed",
}

// isRuntimeFailure reports whether a foreground run's exit status came from the
// engine rather than the command. 125 always does. 126 and 127 do only when
// the engine reports it could not start the command; a shell inside the
// container uses the same codes for its own missing or non-executable programs.
func isRuntimeFailure(exitCode int, stderr string) bool {
	switch exitCode {
	case RuntimeFailureExitCode:
		return true
	case CommandNotExecutableExitCode, CommandNotFoundExitCode:
		s := strings.ToLower(stderr)
		for _, m := range runtimeErrorMarkers {
			if strings.Contains(s, m) {
				return true
			}
		}
	}
	return false
}

// isNoSuchContainer matches the docker and podman messages for a missing container.
func isNoSuchContainer(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "no such container") || strings.Contains(s, "no container with name or id")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// --- Dockerfile Resolution ---

// ResolveDockerfilePath resolves a Dockerfile path relative to the build context.
// It returns an error if the result escapes the context directory.
func ResolveDockerfilePath(contextPath, dockerfilePath string) (string, error) {
	if dockerfilePath == "" {
		return "", nil
	}

	if filepath.IsAbs(dockerfilePath) {
		return dockerfilePath, nil
	}

	resolved := filepath.Clean(filepath.Join(contextPath, dockerfilePath))
	contextClean := filepath.Clean(contextPath)

	rel, err := filepath.Rel(contextClean, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("dockerfile path %q escapes context directory %q", dockerfilePath, contextPath)
	}

	return resolved, nil
}

// --- Volume Mount Formatting ---

// FormatVolumeMount formats a volume mount as a string for -v flag.
func FormatVolumeMount(mount VolumeMount) string {
	var result strings.Builder
	result.WriteString(string(mount.HostPath))
	result.WriteString(":")
	result.WriteString(string(mount.ContainerPath))

	var options []string
	if mount.ReadOnly {
		options = append(options, "ro")
	}
	if mount.SELinux != "" {
		options = append(options, string(mount.SELinux))
	}

	if len(options) > 0 {
		result.WriteString(":")
		result.WriteString(strings.Join(options, ","))
	}

	return result.String()
}

// ParseVolumeMount parses "host_path:container_path[:options]" where options may
// include ro, rw, z and Z. The result is validated.
func ParseVolumeMount(volume string) (VolumeMount, error) {
	mount := VolumeMount{}

	parts := strings.Split(volume, ":")

	if len(parts) >= 1 {
		mount.HostPath = HostFilesystemPath(parts[0])
	}
	if len(parts) >= 2 {
		mount.ContainerPath = MountTargetPath(parts[1])
	}
	if len(parts) >= 3 {
		for opt := range strings.SplitSeq(parts[2], ",") {
			switch opt {
			case "ro":
				mount.ReadOnly = true
			case "z", "Z":
				mount.SELinux = SELinuxLabel(opt)
			}
		}
	}

	if err := mount.Validate(); err != nil {
		return mount, err
	}
	return mount, nil
}

// --- Port Mapping Formatting ---

// FormatPortMapping formats a port mapping as a string for -p flag.
func FormatPortMapping(mapping PortMapping) string {
	result := fmt.Sprintf("%d:%d", mapping.HostPort, mapping.ContainerPort)
	if mapping.Protocol != "" && mapping.Protocol != PortProtocolTCP {
		result += "/" + string(mapping.Protocol)
	}
	return result
}

// --- Actionable Error Helpers ---

// buildContainerError creates an actionable error for image build failures.
func buildContainerError(engine string, req BuildRequest, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("build container image").
		WithImage(req.Tag)

	if errors.Is(cause, invoke.ErrToolMissing) {
		ctx.WithIssue(issue.ContainerEngineNotFoundId)
		ctx.WithSuggestion("Install " + engine + " or set container.binary to its path")
	} else {
		ctx.WithIssue(issue.ImageBuildFailedId)
		ctx.WithSuggestion("Check the Dockerfile in " + req.ContextDir + " for errors")
		ctx.WithSuggestion("Ensure base images are available (try: " + engine + " pull <base-image>)")
	}
	ctx.WithSuggestion("Run with --verbose to see full build output")

	return ctx.Wrap(cause).BuildError()
}

// runContainerError creates an actionable error for container start failures.
func runContainerError(engine string, req RunRequest, cause error) error {
	ctx := issue.NewErrorContext().
		WithOperation("run container").
		WithImage(req.Image)

	if errors.Is(cause, invoke.ErrToolMissing) {
		ctx.WithIssue(issue.ContainerEngineNotFoundId)
		ctx.WithSuggestion("Install " + engine + " or set container.binary to its path")
	} else {
		ctx.WithIssue(issue.ContainerRunFailedId)
		ctx.WithSuggestion("Verify the image exists (try: " + engine + " images)")
		ctx.WithSuggestion("Check that volume mount paths exist on the host")
		if len(req.Ports) > 0 {
			ctx.WithSuggestion("Ensure port mappings don't conflict with running services")
		}
	}

	return ctx.Wrap(cause).BuildError()
}
