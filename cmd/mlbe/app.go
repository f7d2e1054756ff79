// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/mlbe/mlbe-runner/internal/catalog"
	"github.com/mlbe/mlbe-runner/internal/config"
	"github.com/mlbe/mlbe-runner/internal/container"
	"github.com/mlbe/mlbe-runner/internal/orchestrator"
	"github.com/mlbe/mlbe-runner/internal/profile"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root
	// for the CLI layer: every Cobra handler receives an App and delegates
	// through its interfaces.
	App struct {
		Config   ConfigProvider
		Services ServiceFactory
		fs       afero.Fs
		stdout   io.Writer
		stderr   io.Writer

		flags       globalFlags
		verbose     bool
		colorScheme config.ColorScheme
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   ConfigProvider
		Services ServiceFactory
		Fs       afero.Fs
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// ConfigProvider loads configuration using explicit options and reports
	// the config file it read. *config.FileProvider satisfies it.
	ConfigProvider interface {
		LoadWithSource(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// Orchestrator runs tests and deployments. *orchestrator.Service satisfies it.
	Orchestrator interface {
		RunSingleTargetTest(ctx context.Context, impl orchestrator.ImplementationRef) (*container.Result, error)
		RunPairedContractTest(ctx context.Context, primary, harness orchestrator.ImplementationRef, cc orchestrator.ContractContext) (*container.Result, error)
		DeployService(ctx context.Context, impl orchestrator.ImplementationRef, hostPort *int) (*orchestrator.ServiceDeployment, error)
		ListProfiles() []profile.Summary
	}

	// ServiceFactory builds the services a command needs from the loaded
	// configuration. The returned close func is never nil.
	ServiceFactory interface {
		NewOrchestrator(cfg *config.Config, logger *log.Logger) (Orchestrator, error)
		OpenCatalog(ctx context.Context, cfg *config.Config) (catalog.Catalog, func() error, error)
	}

	// globalFlags holds the persistent root flags.
	globalFlags struct {
		verbose    bool
		configFile string
		envFile    string
		engine     string
		catalog    string
	}
)

// NewApp creates an App, filling nil dependencies with production defaults.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider(config.WithFs(deps.Fs))
	}
	if deps.Services == nil {
		deps.Services = &productionServices{fs: deps.Fs}
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}

	return &App{
		Config:      deps.Config,
		Services:    deps.Services,
		fs:          deps.Fs,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
		colorScheme: config.ColorSchemeAuto,
	}, nil
}

// loadConfig loads configuration with the root flags applied as overrides
// and records the UI settings used for error rendering.
func (a *App) loadConfig(ctx context.Context) (*config.Config, string, error) {
	a.verbose = a.flags.verbose
	cfg, source, err := a.Config.LoadWithSource(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configFile,
		EnvFile:        a.flags.envFile,
		Overrides:      a.flags.overrides(),
	})
	if err != nil {
		return nil, "", err
	}
	a.verbose = cfg.UI.Verbose
	a.colorScheme = cfg.UI.ColorScheme
	return cfg, source, nil
}

// newLogger returns the root logger; components derive prefixed children.
func (a *App) newLogger() *log.Logger {
	logger := log.NewWithOptions(a.stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          config.AppName,
	})
	if a.verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// overrides maps flags that were given onto config keys. --catalog also
// clears catalog.database_url so the named file is used.
func (f globalFlags) overrides() map[string]any {
	out := map[string]any{}
	if f.verbose {
		out["ui.verbose"] = true
	}
	if f.engine != "" {
		out["container.engine"] = f.engine
	}
	if f.catalog != "" {
		out["catalog.file"] = f.catalog
		out["catalog.database_url"] = ""
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
