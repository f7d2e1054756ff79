// SPDX-License-Identifier: MPL-2.0

package config

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/mlbe/mlbe-runner/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "mlbe"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFile is looked up in the base directory when the user config
	// directory has no file.
	LocalConfigFile = AppName + "." + ConfigFileExt
	// EnvPrefix prefixes environment overrides: deploy.base_port is read from
	// MLBE_DEPLOY_BASE_PORT.
	EnvPrefix = "MLBE"
	// DefaultEnvFile is read from the base directory when present.
	DefaultEnvFile = ".env"

	maxConfigFileSize = 1 << 20
)

// TokenFallbackEnv lists the variables consulted, in order, when git.token is unset.
var TokenFallbackEnv = []string{"GITHUB_TOKEN", "GH_TOKEN", "GITHUB_PAT"}

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the mlbe configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	return configDir(os.LookupEnv)
}

func configDir(lookupEnv func(string) (string, bool)) (string, error) {
	getenv := func(k string) string {
		v, _ := lookupEnv(k)
		return v
	}

	var dir string
	switch runtime.GOOS {
	case "windows":
		dir = getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		dir = getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(dir, AppName), nil
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// loadWithOptions performs option-driven config loading. Precedence, lowest first:
// defaults, config file, .env file, process environment, explicit overrides.
func (p *FileProvider) loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}
	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	dotenv, err := p.readEnvFile(opts)
	if err != nil {
		return nil, "", err
	}

	resolvedPath, err := p.resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := p.loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", loadError(resolvedPath, err)
		}
	}

	lookup := func(name string) (string, bool) {
		if val, ok := p.lookupEnv(name); ok {
			return val, true
		}
		val, ok := dotenv[name]
		return val, ok
	}
	for _, key := range v.AllKeys() {
		if val, ok := lookup(EnvName(key)); ok {
			v.Set(key, val)
		}
	}
	for key, val := range opts.Overrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Container.Mounts) == 0 {
		cfg.Container.Mounts = nil
	}
	if len(cfg.Profiles.Files) == 0 {
		cfg.Profiles.Files = nil
	}

	if strings.TrimSpace(cfg.Git.Token) == "" {
		cfg.Git.Token = ""
		for _, name := range TokenFallbackEnv {
			if val, ok := lookup(name); ok && strings.TrimSpace(val) != "" {
				cfg.Git.Token = strings.TrimSpace(val)
				break
			}
		}
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithFile(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check MLBE_* environment variables and command-line flags").
			WithSuggestion("Use 'mlbe config show' to see the effective configuration").
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("container.engine", string(d.Container.Engine))
	v.SetDefault("container.binary", string(d.Container.Binary))
	v.SetDefault("container.network", d.Container.Network)
	v.SetDefault("container.mounts", d.Container.Mounts)
	v.SetDefault("git.binary", string(d.Git.Binary))
	v.SetDefault("git.token", d.Git.Token)
	v.SetDefault("git.default_revision", d.Git.DefaultRevision)
	v.SetDefault("workspace.root", d.Workspace.Root)
	v.SetDefault("workspace.service_root", d.Workspace.ServiceRoot)
	v.SetDefault("deploy.base_port", d.Deploy.BasePort)
	v.SetDefault("deploy.build_attempts", d.Deploy.BuildAttempts)
	v.SetDefault("deploy.build_backoff", d.Deploy.BuildBackoff)
	v.SetDefault("catalog.file", d.Catalog.File)
	v.SetDefault("catalog.database_url", d.Catalog.DatabaseURL)
	v.SetDefault("archive.endpoint", d.Archive.Endpoint)
	v.SetDefault("archive.region", d.Archive.Region)
	v.SetDefault("archive.bucket", d.Archive.Bucket)
	v.SetDefault("archive.prefix", d.Archive.Prefix)
	v.SetDefault("archive.access_key", d.Archive.AccessKey)
	v.SetDefault("archive.secret_key", d.Archive.SecretKey)
	v.SetDefault("archive.use_ssl", d.Archive.UseSSL)
	v.SetDefault("profiles.files", d.Profiles.Files)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// resolveConfigFile picks the file to load. An explicit path must exist; the
// user config directory and the base directory are optional.
func (p *FileProvider) resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !p.fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithFile(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'mlbe config show' to see default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := configDir(p.lookupEnv)
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}
	if path := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); p.fileExists(path) {
		return path, nil
	}
	if path := filepath.Join(opts.BaseDir, LocalConfigFile); p.fileExists(path) {
		return path, nil
	}
	// If no config file found, use defaults (no error)
	return "", nil
}

// readEnvFile parses the .env file. A missing default file is not an error;
// a missing explicit one is.
func (p *FileProvider) readEnvFile(opts LoadOptions) (map[string]string, error) {
	path := opts.EnvFile
	explicit := path != ""
	if !explicit {
		path = filepath.Join(opts.BaseDir, DefaultEnvFile)
	}
	if !p.fileExists(path) {
		if explicit {
			return nil, issue.NewErrorContext().
				WithOperation("load environment file").
				WithFile(path).
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("env file not found: %s", path)).
				BuildError()
		}
		return nil, nil
	}

	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	values, err := godotenv.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load environment file").
			WithFile(path).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Use KEY=value lines; quote values containing spaces").
			Wrap(err).
			BuildError()
	}
	return values, nil
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func (p *FileProvider) loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("config file %s is %d bytes, larger than the %d byte limit", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err())
	}

	// Unify with schema to validate against #Config definition
	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err)
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

func formatCUEError(err error) error {
	return errors.New(strings.TrimSpace(cueerrors.Details(err, nil)))
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithFile(path).
		WithIssue(issue.ConfigLoadFailedId).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'mlbe config --help' for configuration options").
		Wrap(err).
		BuildError()
}

// fileExists checks if a file exists and is not a directory
func (p *FileProvider) fileExists(path string) bool {
	info, err := p.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to path unless a file
// already exists there. It reports whether a file was written.
func CreateDefaultConfig(fs afero.Fs, path string) (bool, error) {
	if _, err := fs.Stat(path); err == nil {
		return false, nil
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE generates a CUE representation of the configuration.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// mlbe runner configuration\n")
	sb.WriteString("// Every field is optional. MLBE_<SECTION>_<KEY> environment variables override this file.\n\n")

	sb.WriteString("container: {\n")
	fmt.Fprintf(&sb, "\tengine:  %q\n", cfg.Container.Engine)
	if cfg.Container.Binary != "" {
		fmt.Fprintf(&sb, "\tbinary:  %q\n", cfg.Container.Binary)
	}
	fmt.Fprintf(&sb, "\tnetwork: %q\n", cfg.Container.Network)
	if len(cfg.Container.Mounts) > 0 {
		sb.WriteString("\tmounts: [\n")
		for _, m := range cfg.Container.Mounts {
			fmt.Fprintf(&sb, "\t\t%q,\n", m)
		}
		sb.WriteString("\t]\n")
	}
	sb.WriteString("}\n")

	sb.WriteString("\ngit: {\n")
	fmt.Fprintf(&sb, "\tbinary:           %q\n", cfg.Git.Binary)
	fmt.Fprintf(&sb, "\tdefault_revision: %q\n", cfg.Git.DefaultRevision)
	if cfg.Git.Token != "" {
		fmt.Fprintf(&sb, "\ttoken:            %q\n", cfg.Git.Token)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nworkspace: {\n")
	fmt.Fprintf(&sb, "\troot:         %q\n", cfg.Workspace.Root)
	fmt.Fprintf(&sb, "\tservice_root: %q\n", cfg.Workspace.ServiceRoot)
	sb.WriteString("}\n")

	sb.WriteString("\ndeploy: {\n")
	fmt.Fprintf(&sb, "\tbase_port:      %d\n", cfg.Deploy.BasePort)
	fmt.Fprintf(&sb, "\tbuild_attempts: %d\n", cfg.Deploy.BuildAttempts)
	fmt.Fprintf(&sb, "\tbuild_backoff:  %q\n", cfg.Deploy.BuildBackoff)
	sb.WriteString("}\n")

	if cfg.Catalog.File != "" || cfg.Catalog.DatabaseURL != "" {
		sb.WriteString("\ncatalog: {\n")
		if cfg.Catalog.File != "" {
			fmt.Fprintf(&sb, "\tfile: %q\n", cfg.Catalog.File)
		}
		if cfg.Catalog.DatabaseURL != "" {
			fmt.Fprintf(&sb, "\tdatabase_url: %q\n", cfg.Catalog.DatabaseURL)
		}
		sb.WriteString("}\n")
	}

	if cfg.Archive.Endpoint != "" {
		sb.WriteString("\narchive: {\n")
		fmt.Fprintf(&sb, "\tendpoint: %q\n", cfg.Archive.Endpoint)
		for _, kv := range [][2]string{
			{"region", cfg.Archive.Region},
			{"bucket", cfg.Archive.Bucket},
			{"prefix", cfg.Archive.Prefix},
			{"access_key", cfg.Archive.AccessKey},
			{"secret_key", cfg.Archive.SecretKey},
		} {
			if kv[1] != "" {
				fmt.Fprintf(&sb, "\t%s: %q\n", kv[0], kv[1])
			}
		}
		fmt.Fprintf(&sb, "\tuse_ssl: %v\n", cfg.Archive.UseSSL)
		sb.WriteString("}\n")
	}

	if len(cfg.Profiles.Files) > 0 {
		sb.WriteString("\nprofiles: files: [\n")
		for _, f := range cfg.Profiles.Files {
			fmt.Fprintf(&sb, "\t%q,\n", f)
		}
		sb.WriteString("]\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
