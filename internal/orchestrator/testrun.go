// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mlbe/mlbe-runner/internal/container"
	"github.com/mlbe/mlbe-runner/internal/profile"
	"github.com/mlbe/mlbe-runner/internal/workspace"
)

// TestCommand composes the single-target command for p with the project at
// root: the build step, when p has one, chained before the test step.
func TestCommand(p profile.Profile, root string) profile.Command {
	build, ok := p.BuildCommand(root)
	if !ok {
		return p.TestCommand(root)
	}
	return profile.Chain(build, p.TestCommand(root))
}

// checkCommand rejects an absent or failed command before anything is staged.
func checkCommand(prof profile.Profile, kind string, cmd profile.Command) error {
	if err := cmd.Check(); err != nil {
		if errors.Is(err, profile.ErrEmptyCommand) {
			return precondition("profile "+prof.Name(), "no %s command", kind)
		}
		return precondition("profile "+prof.Name(), "%s command: %v", kind, err)
	}
	return nil
}

// RunSingleTargetTest stages impl and runs its profile's build and test
// commands with the checkout mounted at /code.
//
// A failing test is reported through Result.ExitCode. Errors mean the run
// could not happen: an invalid reference, an unknown profile, a staging
// failure or an engine failure.
func (s *Service) RunSingleTargetTest(ctx context.Context, impl ImplementationRef) (*container.Result, error) {
	if err := impl.Validate("implementation"); err != nil {
		return nil, err
	}
	prof, err := s.profiles.Lookup(impl.Language)
	if err != nil {
		return nil, err
	}

	cmd := TestCommand(prof, CodeDir)
	if err := checkCommand(prof, "test", cmd); err != nil {
		return nil, err
	}

	logger := s.logger.With("implementation", impl.ID, "profile", prof.Name())
	ws, err := s.tests.Stage(ctx, impl.repoRef(), TestLabel(impl.ID))
	if err != nil {
		return nil, err
	}

	logger.Info("running tests", "commit", ws.Commit, "image", prof.Image())
	res, err := s.engine.Run(ctx, container.RunRequest{
		Image:   prof.Image(),
		Command: cmd.ContainerArgs(),
		Volumes: s.runVolumes(
			container.VolumeMount{HostPath: container.HostFilesystemPath(ws.Path), ContainerPath: CodeDir},
		),
		WorkDir: CodeDir,
		Network: s.network,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("tests finished", "exit", res.ExitCode, "elapsed", res.Elapsed)

	s.archive(ctx, Record{
		Kind:            KindSingleTest,
		Implementations: []int64{impl.ID},
		Language:        prof.Name(),
		Workspaces:      []workspace.Workspace{*ws},
		Result:          res,
	})
	return res, nil
}

// RunPairedContractTest stages primary and harness side by side and runs the
// harness's contract tests against the primary, mounted at /code and /tests.
//
// Both references must be complete, name the same language and be distinct
// implementations. These checks happen before any workspace is touched.
func (s *Service) RunPairedContractTest(ctx context.Context, primary, harness ImplementationRef, cc ContractContext) (*container.Result, error) {
	if err := primary.Validate("primary"); err != nil {
		return nil, err
	}
	if err := harness.Validate("harness"); err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(primary.Language), strings.TrimSpace(harness.Language)) {
		return nil, precondition("contract test",
			"primary %d is %s but harness %d is %s", primary.ID, primary.Language, harness.ID, harness.Language)
	}
	if primary.ID == harness.ID {
		return nil, precondition("contract test", "primary and harness are both implementation %d", primary.ID)
	}
	prof, err := s.profiles.Lookup(primary.Language)
	if err != nil {
		return nil, err
	}
	cmd := prof.ContractTestCommand(cc.BehaviorID, cc.ContractID, TestsDir)
	if err := checkCommand(prof, "contract test", cmd); err != nil {
		return nil, err
	}

	logger := s.logger.With("primary", primary.ID, "harness", harness.ID, "profile", prof.Name())

	var primaryWS, harnessWS *workspace.Workspace
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ws, err := s.tests.Stage(gctx, primary.repoRef(), TestLabel(primary.ID))
		if err != nil {
			return fmt.Errorf("stage primary: %w", err)
		}
		primaryWS = ws
		return nil
	})
	g.Go(func() error {
		ws, err := s.tests.Stage(gctx, harness.repoRef(), TestLabel(harness.ID))
		if err != nil {
			return fmt.Errorf("stage harness: %w", err)
		}
		harnessWS = ws
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("running contract tests", "behavior", cc.BehaviorID, "contract", cc.ContractID)
	res, err := s.engine.Run(ctx, container.RunRequest{
		Image:   prof.Image(),
		Command: cmd.ContainerArgs(),
		Volumes: s.runVolumes(
			container.VolumeMount{HostPath: container.HostFilesystemPath(primaryWS.Path), ContainerPath: CodeDir},
			container.VolumeMount{HostPath: container.HostFilesystemPath(harnessWS.Path), ContainerPath: TestsDir},
		),
		WorkDir: TestsDir,
		Network: s.network,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("contract tests finished", "exit", res.ExitCode, "elapsed", res.Elapsed)

	s.archive(ctx, Record{
		Kind:            KindContractTest,
		Implementations: []int64{primary.ID, harness.ID},
		Language:        prof.Name(),
		Contract:        &cc,
		Workspaces:      []workspace.Workspace{*primaryWS, *harnessWS},
		Result:          res,
	})
	return res, nil
}
