// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// ErrInvalidLoadOptions is the sentinel error wrapped by InvalidLoadOptionsError.
var ErrInvalidLoadOptions = errors.New("invalid load options")

type (
	// LoadOptions defines explicit configuration loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific config file when set.
		ConfigFilePath string
		// ConfigDirPath overrides the config directory lookup when set.
		ConfigDirPath string
		// BaseDir is where mlbe.cue and .env are looked up. Empty means the
		// working directory.
		BaseDir string
		// EnvFile names a dotenv file that must exist.
		EnvFile string
		// Overrides are applied last, keyed like "deploy.base_port".
		Overrides map[string]any
	}

	// InvalidLoadOptionsError is returned when LoadOptions has one or more
	// whitespace-only paths.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	// FileProvider reads the CUE config file, a .env file and the environment.
	FileProvider struct {
		fs        afero.Fs
		lookupEnv func(string) (string, bool)
	}

	// ProviderOption configures a FileProvider.
	ProviderOption func(*FileProvider)
)

var _ Provider = (*FileProvider)(nil)

// WithFs sets the filesystem config and env files are read from.
func WithFs(fs afero.Fs) ProviderOption {
	return func(p *FileProvider) {
		if fs != nil {
			p.fs = fs
		}
	}
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) ProviderOption {
	return func(p *FileProvider) {
		if fn != nil {
			p.lookupEnv = fn
		}
	}
}

// NewProvider creates a configuration provider.
func NewProvider(opts ...ProviderOption) *FileProvider {
	p := &FileProvider{fs: afero.NewOsFs(), lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads configuration from the requested source.
func (p *FileProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := p.loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithSource is Load that also returns the config file used, or "" when
// only defaults and the environment applied.
func (p *FileProvider) LoadWithSource(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	return p.loadWithOptions(ctx, opts)
}

// Validate rejects whitespace-only paths. Empty fields are valid.
func (o LoadOptions) Validate() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"config file path", o.ConfigFilePath},
		{"config dir path", o.ConfigDirPath},
		{"base dir", o.BaseDir},
		{"env file", o.EnvFile},
	} {
		if f.value != "" && strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%s %q must not be whitespace-only", f.name, f.value))
		}
	}
	if len(errs) > 0 {
		return &InvalidLoadOptionsError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidLoadOptionsError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid load options: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid load options: %d field errors", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLoadOptions for errors.Is() compatibility.
func (e *InvalidLoadOptionsError) Unwrap() error { return ErrInvalidLoadOptions }
