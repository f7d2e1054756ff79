// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/mlbe/mlbe-runner/internal/archive"
	"github.com/mlbe/mlbe-runner/internal/catalog"
	"github.com/mlbe/mlbe-runner/internal/config"
	"github.com/mlbe/mlbe-runner/internal/container"
	"github.com/mlbe/mlbe-runner/internal/issue"
	"github.com/mlbe/mlbe-runner/internal/orchestrator"
	"github.com/mlbe/mlbe-runner/internal/profile"
	"github.com/mlbe/mlbe-runner/internal/workspace"
)

// productionServices builds real engines, stagers and catalogs.
type productionServices struct {
	fs afero.Fs
}

var _ ServiceFactory = (*productionServices)(nil)

// NewOrchestrator registers the built-in and configured profiles, then wires
// one stager per workspace root, the container engine and the optional
// archive into an orchestrator.Service.
func (p *productionServices) NewOrchestrator(cfg *config.Config, logger *log.Logger) (Orchestrator, error) {
	registry, err := newProfileRegistry(p.fs, cfg.Profiles.Files)
	if err != nil {
		return nil, err
	}

	engine, err := container.NewEngine(
		container.EngineType(cfg.Container.Engine),
		string(cfg.Container.Binary),
		container.WithLogger(logger.WithPrefix("engine")),
	)
	if err != nil {
		return nil, err
	}

	stagerOpts := []workspace.Option{
		workspace.WithGitBinary(string(cfg.Git.Binary)),
		workspace.WithDefaultRevision(cfg.Git.DefaultRevision),
		workspace.WithToken(cfg.Git.Token),
		workspace.WithFs(p.fs),
		workspace.WithLogger(logger.WithPrefix("stager")),
	}
	tests, err := workspace.NewStager(cfg.Workspace.Root, stagerOpts...)
	if err != nil {
		return nil, err
	}
	services, err := workspace.NewStager(cfg.Workspace.ServiceRoot, stagerOpts...)
	if err != nil {
		return nil, err
	}

	mounts, err := extraMounts(cfg.Container.Mounts)
	if err != nil {
		return nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithServiceStager(services),
		orchestrator.WithFs(p.fs),
		orchestrator.WithLogger(logger.WithPrefix("orchestrator")),
		orchestrator.WithNetwork(cfg.Container.Network),
		orchestrator.WithBasePort(cfg.Deploy.BasePort),
		orchestrator.WithBuildRetry(cfg.Deploy.BuildAttempts, cfg.Deploy.BuildBackoff),
		orchestrator.WithExtraMounts(mounts...),
	}
	archiveCfg := archiveConfig(cfg)
	if archiveCfg.Enabled() {
		store, err := archive.New(archiveCfg, logger.WithPrefix("archive"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithArchiver(store))
	}

	return orchestrator.NewService(registry, tests, engine, opts...)
}

// OpenCatalog opens the PostgreSQL catalog when a database URL is configured,
// otherwise the YAML catalog file.
func (p *productionServices) OpenCatalog(ctx context.Context, cfg *config.Config) (catalog.Catalog, func() error, error) {
	switch {
	case cfg.Catalog.DatabaseURL != "":
		pg, err := catalog.OpenPostgres(ctx, cfg.Catalog.DatabaseURL)
		if err != nil {
			return nil, nil, catalogUnavailable("database", err)
		}
		return pg, pg.Close, nil
	case cfg.Catalog.File != "":
		fc, err := catalog.LoadFile(p.fs, cfg.Catalog.File)
		if err != nil {
			return nil, nil, catalogUnavailable(cfg.Catalog.File, err)
		}
		return fc, func() error { return nil }, nil
	default:
		return nil, nil, catalogUnavailable("", errCatalogNotConfigured)
	}
}

func newProfileRegistry(fs afero.Fs, files []string) (*profile.Registry, error) {
	registry := profile.NewDefaultRegistry()
	for _, path := range files {
		if err := registry.RegisterFile(fs, path); err != nil {
			return nil, fmt.Errorf("register profiles from %s: %w", path, err)
		}
	}
	return registry, nil
}

// extraMounts parses the configured host:container[:options] mount specs.
func extraMounts(specs []string) ([]container.VolumeMount, error) {
	mounts := make([]container.VolumeMount, 0, len(specs))
	for _, spec := range specs {
		m, err := container.ParseVolumeMount(spec)
		if err != nil {
			return nil, fmt.Errorf("container.mounts: %w", err)
		}
		mounts = append(mounts, m)
	}
	return mounts, nil
}

func archiveConfig(cfg *config.Config) archive.Config {
	return archive.Config{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		Bucket:    cfg.Archive.Bucket,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		UseSSL:    cfg.Archive.UseSSL,
		Prefix:    cfg.Archive.Prefix,
	}
}

func catalogUnavailable(resource string, err error) error {
	return issue.NewErrorContext().
		WithOperation("open implementation catalog").
		WithCatalog(resource).
		WithIssue(issue.CatalogUnavailableId).
		WithSuggestion("Set catalog.file or catalog.database_url, or pass --catalog").
		WithSuggestion("Describe the implementation inline with --repo and --language").
		Wrap(err).
		BuildError()
}
