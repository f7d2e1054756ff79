// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/mlbe/mlbe-runner/internal/catalog"
	"github.com/mlbe/mlbe-runner/internal/config"
	"github.com/mlbe/mlbe-runner/internal/container"
	"github.com/mlbe/mlbe-runner/internal/orchestrator"
	"github.com/mlbe/mlbe-runner/internal/profile"
)

type (
	fakeOrchestrator struct {
		mu sync.Mutex

		result     *container.Result
		deployment *orchestrator.ServiceDeployment
		err        error
		profiles   []profile.Summary

		tested    []orchestrator.ImplementationRef
		contracts [][2]orchestrator.ImplementationRef
		contract  orchestrator.ContractContext
		deployed  []orchestrator.ImplementationRef
		hostPort  *int
	}

	fakeCatalog map[int64]orchestrator.ImplementationRef

	fakeServices struct {
		orch       *fakeOrchestrator
		catalog    catalog.Catalog
		catalogErr error
		closed     int

		gotConfig *config.Config
	}

	cliHarness struct {
		app      *App
		fs       afero.Fs
		services *fakeServices
		stdout   *bytes.Buffer
		stderr   *bytes.Buffer
	}
)

func (f *fakeOrchestrator) RunSingleTargetTest(_ context.Context, impl orchestrator.ImplementationRef) (*container.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tested = append(f.tested, impl)
	return f.result, f.err
}

func (f *fakeOrchestrator) RunPairedContractTest(_ context.Context, primary, harness orchestrator.ImplementationRef, cc orchestrator.ContractContext) (*container.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contracts = append(f.contracts, [2]orchestrator.ImplementationRef{primary, harness})
	f.contract = cc
	return f.result, f.err
}

func (f *fakeOrchestrator) DeployService(_ context.Context, impl orchestrator.ImplementationRef, hostPort *int) (*orchestrator.ServiceDeployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deployed = append(f.deployed, impl)
	f.hostPort = hostPort
	return f.deployment, f.err
}

func (f *fakeOrchestrator) ListProfiles() []profile.Summary { return f.profiles }

func (c fakeCatalog) Implementation(_ context.Context, id int64) (orchestrator.ImplementationRef, error) {
	ref, ok := c[id]
	if !ok {
		return orchestrator.ImplementationRef{}, &catalog.NotFoundError{ID: id, Source: "fake"}
	}
	return ref, nil
}

func (s *fakeServices) NewOrchestrator(cfg *config.Config, _ *log.Logger) (Orchestrator, error) {
	s.gotConfig = cfg
	return s.orch, nil
}

func (s *fakeServices) OpenCatalog(_ context.Context, cfg *config.Config) (catalog.Catalog, func() error, error) {
	s.gotConfig = cfg
	if s.catalogErr != nil {
		return nil, nil, s.catalogErr
	}
	if s.catalog == nil {
		return nil, nil, catalogUnavailable("", errCatalogNotConfigured)
	}
	return s.catalog, func() error { s.closed++; return nil }, nil
}

// newHarness builds an App over an in-memory filesystem, an empty environment
// and fake services.
func newHarness(t *testing.T, orch *fakeOrchestrator, cat catalog.Catalog) *cliHarness {
	t.Helper()

	fs := afero.NewMemMapFs()
	env := map[string]string{"XDG_CONFIG_HOME": "/cfg"}
	provider := config.NewProvider(config.WithFs(fs), config.WithLookupEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	services := &fakeServices{orch: orch, catalog: cat}
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}

	app, err := NewApp(Dependencies{
		Config:   provider,
		Services: services,
		Fs:       fs,
		Stdout:   stdout,
		Stderr:   stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return &cliHarness{app: app, fs: fs, services: services, stdout: stdout, stderr: stderr}
}

// run executes the root command with args.
func (h *cliHarness) run(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand(h.app)
	root.SetArgs(args)
	root.SetOut(h.stdout)
	root.SetErr(&bytes.Buffer{})
	root.SilenceErrors = true
	return root.ExecuteContext(t.Context())
}

func passingResult() *container.Result {
	return &container.Result{ExitCode: 0, Stdout: "ok 1 - totals\n", Image: "perl:5.36"}
}

func sampleCatalog() fakeCatalog {
	return fakeCatalog{
		12: {ID: 12, Language: "perl", RepoURL: "https://github.com/acme/legacy-billing", Revision: "main", FilePath: "Billing.pm"},
		31: {ID: 31, Language: "perl", RepoURL: "https://github.com/acme/billing-harness"},
		42: {ID: 42, Language: "python", RepoURL: "https://github.com/acme/billing-py", FilePath: "app.py"},
	}
}
