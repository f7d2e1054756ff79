// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mlbe/mlbe-runner/internal/container"
	"github.com/mlbe/mlbe-runner/internal/invoke"
)

const (
	// ContainerEnginePodman uses Podman as the container runtime.
	ContainerEnginePodman ContainerEngine = "podman"
	// ContainerEngineDocker uses Docker as the container runtime.
	ContainerEngineDocker ContainerEngine = "docker"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultNetwork is the network containers are attached to.
	DefaultNetwork = "bridge"
	// DefaultGitBinary is the git executable resolved on PATH.
	DefaultGitBinary = "git"
	// DefaultRevision is checked out when a reference names none.
	DefaultRevision = "main"
	// DefaultWorkspaceRoot holds test workspaces.
	DefaultWorkspaceRoot = "./workspace"
	// DefaultServiceRoot holds service deployment workspaces.
	DefaultServiceRoot = "./services_workspace"
	// DefaultBasePort is added to an implementation id to pick its host port.
	DefaultBasePort = 18000
	// MaxBuildAttempts bounds deploy.build_attempts.
	MaxBuildAttempts = 10
	// DefaultBuildBackoff is the default deploy.build_backoff.
	DefaultBuildBackoff = 2 * time.Second
	// MaxBuildBackoff bounds deploy.build_backoff.
	MaxBuildBackoff = 5 * time.Minute

	maxPort = 65535
)

var (
	// ErrInvalidContainerEngine is returned when a ContainerEngine value is not recognized.
	ErrInvalidContainerEngine = errors.New("invalid container engine")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidBinaryFilePath is returned when a BinaryFilePath value is whitespace-only.
	ErrInvalidBinaryFilePath = errors.New("invalid binary file path")
	// ErrInvalidField is returned for a scalar setting outside its allowed range.
	ErrInvalidField = errors.New("invalid config field")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ContainerEngine specifies which container runtime to use.
	ContainerEngine string

	// InvalidContainerEngineError is returned when a ContainerEngine value is not recognized.
	// It wraps ErrInvalidContainerEngine for errors.Is() compatibility.
	InvalidContainerEngineError struct {
		Value ContainerEngine
	}

	// ColorScheme selects the glamour style used for issue pages.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// BinaryFilePath represents a filesystem path to a binary executable.
	// The zero value ("") is valid and means "resolve the default name on PATH".
	BinaryFilePath string

	// InvalidBinaryFilePathError is returned when a BinaryFilePath value is
	// non-empty but whitespace-only.
	InvalidBinaryFilePathError struct {
		Value BinaryFilePath
	}

	// InvalidFieldError names a setting whose value is out of range.
	InvalidFieldError struct {
		Key    string
		Reason string
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		Container ContainerConfig `json:"container" mapstructure:"container"`
		Git       GitConfig       `json:"git" mapstructure:"git"`
		Workspace WorkspaceConfig `json:"workspace" mapstructure:"workspace"`
		Deploy    DeployConfig    `json:"deploy" mapstructure:"deploy"`
		Catalog   CatalogConfig   `json:"catalog" mapstructure:"catalog"`
		Archive   ArchiveConfig   `json:"archive" mapstructure:"archive"`
		Profiles  ProfilesConfig  `json:"profiles" mapstructure:"profiles"`
		UI        UIConfig        `json:"ui" mapstructure:"ui"`
	}

	// ContainerConfig selects the engine every run goes through.
	ContainerConfig struct {
		// Engine is "podman" or "docker".
		Engine ContainerEngine `json:"engine" mapstructure:"engine"`
		// Binary overrides the engine executable.
		Binary BinaryFilePath `json:"binary,omitempty" mapstructure:"binary"`
		// Network is attached to every container.
		Network string `json:"network" mapstructure:"network"`
		// Mounts are extra "host:container[:ro]" bind mounts added to test runs.
		Mounts []string `json:"mounts,omitempty" mapstructure:"mounts"`
	}

	// GitConfig configures repository staging.
	GitConfig struct {
		Binary BinaryFilePath `json:"binary" mapstructure:"binary"`
		// Token is injected into https remotes. When empty, GITHUB_TOKEN,
		// GH_TOKEN and GITHUB_PAT are consulted in that order.
		Token           string `json:"token,omitempty" mapstructure:"token"`
		DefaultRevision string `json:"default_revision" mapstructure:"default_revision"`
	}

	// WorkspaceConfig locates the staging roots.
	WorkspaceConfig struct {
		Root        string `json:"root" mapstructure:"root"`
		ServiceRoot string `json:"service_root" mapstructure:"service_root"`
	}

	// DeployConfig tunes service deployments.
	DeployConfig struct {
		BasePort      int `json:"base_port" mapstructure:"base_port"`
		BuildAttempts int `json:"build_attempts" mapstructure:"build_attempts"`
		// BuildBackoff is the wait before the first build retry; it doubles per attempt.
		BuildBackoff time.Duration `json:"build_backoff" mapstructure:"build_backoff"`
	}

	// CatalogConfig selects where implementation metadata is read from.
	// DatabaseURL wins when both are set.
	CatalogConfig struct {
		File        string `json:"file,omitempty" mapstructure:"file"`
		DatabaseURL string `json:"database_url,omitempty" mapstructure:"database_url"`
	}

	// ArchiveConfig enables uploading run records to an S3-compatible bucket.
	ArchiveConfig struct {
		Endpoint  string `json:"endpoint,omitempty" mapstructure:"endpoint"`
		Region    string `json:"region,omitempty" mapstructure:"region"`
		Bucket    string `json:"bucket,omitempty" mapstructure:"bucket"`
		Prefix    string `json:"prefix,omitempty" mapstructure:"prefix"`
		AccessKey string `json:"access_key,omitempty" mapstructure:"access_key"`
		SecretKey string `json:"secret_key,omitempty" mapstructure:"secret_key"`
		UseSSL    bool   `json:"use_ssl" mapstructure:"use_ssl"`
	}

	// ProfilesConfig lists declarative profile files registered at start-up.
	ProfilesConfig struct {
		Files []string `json:"files,omitempty" mapstructure:"files"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme sets the color scheme
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug logging and issue pages
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Container: ContainerConfig{
			Engine:  ContainerEnginePodman,
			Network: DefaultNetwork,
		},
		Git: GitConfig{
			Binary:          DefaultGitBinary,
			DefaultRevision: DefaultRevision,
		},
		Workspace: WorkspaceConfig{
			Root:        DefaultWorkspaceRoot,
			ServiceRoot: DefaultServiceRoot,
		},
		Deploy: DeployConfig{
			BasePort:      DefaultBasePort,
			BuildAttempts: 1,
			BuildBackoff:  DefaultBuildBackoff,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

// Redacted returns a copy with secrets masked, suitable for printing.
func (c Config) Redacted() Config {
	const mask = "********"
	if c.Git.Token != "" {
		c.Git.Token = mask
	}
	if c.Archive.SecretKey != "" {
		c.Archive.SecretKey = mask
	}
	if c.Catalog.DatabaseURL != "" {
		c.Catalog.DatabaseURL = invoke.RedactURL(c.Catalog.DatabaseURL)
	}
	c.Container.Mounts = append([]string(nil), c.Container.Mounts...)
	c.Profiles.Files = append([]string(nil), c.Profiles.Files...)
	return c
}

// String returns the string representation of the ContainerEngine.
func (e ContainerEngine) String() string { return string(e) }

// IsValid returns whether the ContainerEngine is one of the defined engine types.
func (e ContainerEngine) IsValid() (bool, []error) {
	switch e {
	case ContainerEnginePodman, ContainerEngineDocker:
		return true, nil
	default:
		return false, []error{&InvalidContainerEngineError{Value: e}}
	}
}

// Error implements the error interface.
func (e *InvalidContainerEngineError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: podman, docker)", e.Value)
}

// Unwrap returns ErrInvalidContainerEngine so callers can use errors.Is for programmatic detection.
func (e *InvalidContainerEngineError) Unwrap() error { return ErrInvalidContainerEngine }

// String returns the string representation of the ColorScheme.
func (c ColorScheme) String() string { return string(c) }

// IsValid returns whether the ColorScheme is one of the defined color schemes.
func (c ColorScheme) IsValid() (bool, []error) {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: c}}
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme so callers can use errors.Is for programmatic detection.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// String returns the string representation of the BinaryFilePath.
func (p BinaryFilePath) String() string { return string(p) }

// IsValid returns whether the BinaryFilePath is valid.
// The zero value ("") is valid. Non-zero values must not be whitespace-only.
func (p BinaryFilePath) IsValid() (bool, []error) {
	if p == "" {
		return true, nil
	}
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidBinaryFilePathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidBinaryFilePathError.
func (e *InvalidBinaryFilePathError) Error() string {
	return fmt.Sprintf("invalid binary file path %q: must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidBinaryFilePath for errors.Is() compatibility.
func (e *InvalidBinaryFilePathError) Unwrap() error { return ErrInvalidBinaryFilePath }

// Error implements the error interface.
func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

// Unwrap returns ErrInvalidField for errors.Is() compatibility.
func (e *InvalidFieldError) Unwrap() error { return ErrInvalidField }

// IsValid returns whether the Config has valid fields.
// The CUE schema covers file input; this also covers environment and flag overrides.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Container.Engine.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Container.Binary.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Git.Binary.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if strings.TrimSpace(c.Git.DefaultRevision) == "" {
		errs = append(errs, &InvalidFieldError{Key: "git.default_revision", Reason: "must not be empty"})
	}
	if strings.TrimSpace(c.Workspace.Root) == "" {
		errs = append(errs, &InvalidFieldError{Key: "workspace.root", Reason: "must not be empty"})
	}
	if strings.TrimSpace(c.Workspace.ServiceRoot) == "" {
		errs = append(errs, &InvalidFieldError{Key: "workspace.service_root", Reason: "must not be empty"})
	}
	if c.Deploy.BasePort < 1 || c.Deploy.BasePort >= maxPort {
		errs = append(errs, &InvalidFieldError{Key: "deploy.base_port", Reason: fmt.Sprintf("%d is outside 1..%d", c.Deploy.BasePort, maxPort-1)})
	}
	if c.Deploy.BuildAttempts < 1 || c.Deploy.BuildAttempts > MaxBuildAttempts {
		errs = append(errs, &InvalidFieldError{Key: "deploy.build_attempts", Reason: fmt.Sprintf("%d is outside 1..%d", c.Deploy.BuildAttempts, MaxBuildAttempts)})
	}
	if c.Deploy.BuildBackoff < 0 || c.Deploy.BuildBackoff > MaxBuildBackoff {
		errs = append(errs, &InvalidFieldError{Key: "deploy.build_backoff", Reason: fmt.Sprintf("%s is outside 0..%s", c.Deploy.BuildBackoff, MaxBuildBackoff)})
	}
	for i, m := range c.Container.Mounts {
		if _, err := container.ParseVolumeMount(m); err != nil {
			errs = append(errs, &InvalidFieldError{Key: fmt.Sprintf("container.mounts[%d]", i), Reason: err.Error()})
		}
	}
	if c.Archive.Endpoint != "" && c.Archive.Bucket == "" {
		errs = append(errs, &InvalidFieldError{Key: "archive.bucket", Reason: "required when archive.endpoint is set"})
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors, so errors.Is
// matches both the config sentinel and each field sentinel.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
