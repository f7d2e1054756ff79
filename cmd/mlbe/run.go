// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mlbe/mlbe-runner/internal/config"
	"github.com/mlbe/mlbe-runner/internal/orchestrator"
)

type (
	// inlineImplFlags describe an implementation without a catalog.
	inlineImplFlags struct {
		repo     string
		language string
		revision string
		file     string
	}

	// session is the per-command state built from configuration.
	session struct {
		cfg    *config.Config
		logger *log.Logger
		orch   Orchestrator
	}
)

func (f *inlineImplFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.repo, "repo", "", "repository URL; skips the catalog lookup")
	cmd.Flags().StringVar(&f.language, "language", "", "language profile of --repo")
	cmd.Flags().StringVar(&f.revision, "revision", "", "branch, tag or commit of --repo (default from git.default_revision)")
	cmd.Flags().StringVar(&f.file, "file", "", "entry point of --repo, relative to the repository root")
}

func (f inlineImplFlags) set() bool { return f.repo != "" }

func (f inlineImplFlags) ref(id int64) orchestrator.ImplementationRef {
	return orchestrator.ImplementationRef{
		ID:       id,
		Language: f.language,
		RepoURL:  f.repo,
		Revision: f.revision,
		FilePath: f.file,
	}
}

func newTestCommand(app *App) *cobra.Command {
	var (
		inline inlineImplFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "test <implementation-id>",
		Short: "Run an implementation's test suite in a fresh container",
		Long: `Stage the implementation's repository into workspace/impl_<id>, mount it at
/code and run its language profile's test command.

The command exits with the test suite's exit code.`,
		Example: `  mlbe test 42
  mlbe test 7 --repo https://github.com/acme/legacy-billing --language perl -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			id, err := parseImplementationID("implementation", args[0])
			if err != nil {
				return err
			}
			return runSingleTest(cmd.Context(), app, id, inline, format)
		},
	}
	inline.register(cmd)
	addOutputFlag(cmd, &output)
	return cmd
}

func newContractCommand(app *App) *cobra.Command {
	var (
		cc     orchestrator.ContractContext
		output string
	)
	cmd := &cobra.Command{
		Use:   "contract <primary-id> <harness-id>",
		Short: "Run a harness's contract tests against a primary implementation",
		Long: `Stage the primary implementation at /code and the test harness at /tests,
then run the harness's contract tests for the given behavior and contract.

Both implementations are read from the catalog and must share a language.`,
		Example: `  mlbe contract 12 31 --behavior invoice-total --contract 4`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			primary, err := parseImplementationID("primary", args[0])
			if err != nil {
				return err
			}
			harness, err := parseImplementationID("harness", args[1])
			if err != nil {
				return err
			}
			return runContractTest(cmd.Context(), app, primary, harness, cc, format)
		},
	}
	cmd.Flags().StringVar(&cc.BehaviorID, "behavior", "", "behavior identifier passed to the harness")
	cmd.Flags().StringVar(&cc.ContractID, "contract", "", "contract identifier passed to the harness")
	addOutputFlag(cmd, &output)
	return cmd
}

func runSingleTest(ctx context.Context, app *App, id int64, inline inlineImplFlags, format outputFormat) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	refs, err := app.resolveImplementations(ctx, s.cfg, inline, id)
	if err != nil {
		return err
	}

	res, err := s.orch.RunSingleTargetTest(ctx, refs[0])
	if err != nil {
		return err
	}
	if err := writeRunResult(app.stdout, app.stderr, format, fmt.Sprintf("implementation %d", id), res); err != nil {
		return err
	}
	return resultExit(res)
}

func runContractTest(ctx context.Context, app *App, primary, harness int64, cc orchestrator.ContractContext, format outputFormat) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	refs, err := app.resolveImplementations(ctx, s.cfg, inlineImplFlags{}, primary, harness)
	if err != nil {
		return err
	}

	res, err := s.orch.RunPairedContractTest(ctx, refs[0], refs[1], cc)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("contract %s of implementation %d (harness %d)", cc.ContractID, primary, harness)
	if err := writeRunResult(app.stdout, app.stderr, format, title, res); err != nil {
		return err
	}
	return resultExit(res)
}

// openSession loads configuration and builds the orchestrator.
func (a *App) openSession(ctx context.Context) (*session, error) {
	cfg, _, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	logger := a.newLogger()
	orch, err := a.Services.NewOrchestrator(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, orch: orch}, nil
}

// resolveImplementations returns one reference per id, in order. Inline flags
// describe a single implementation; otherwise every id is read from the catalog.
func (a *App) resolveImplementations(ctx context.Context, cfg *config.Config, inline inlineImplFlags, ids ...int64) (refs []orchestrator.ImplementationRef, err error) {
	if inline.set() {
		if len(ids) != 1 {
			return nil, errors.New("--repo describes a single implementation")
		}
		return []orchestrator.ImplementationRef{inline.ref(ids[0])}, nil
	}

	cat, closeCatalog, err := a.Services.OpenCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := closeCatalog(); closeErr != nil && err == nil {
			err = fmt.Errorf("close catalog: %w", closeErr)
		}
	}()

	for _, id := range ids {
		ref, lookupErr := cat.Implementation(ctx, id)
		if lookupErr != nil {
			return nil, lookupErr
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func parseImplementationID(subject, arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, &orchestrator.PreconditionError{
			Subject: subject,
			Reason:  fmt.Sprintf("implementation id must be a positive integer, got %q", arg),
		}
	}
	return id, nil
}
