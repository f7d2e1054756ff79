// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/mlbe/mlbe-runner/internal/container"
	"github.com/mlbe/mlbe-runner/internal/issue"
	"github.com/mlbe/mlbe-runner/internal/profile"
	"github.com/mlbe/mlbe-runner/internal/workspace"
)

// Dockerfile is the build recipe a service workspace is built from.
const Dockerfile = profile.ServiceDockerfile

// HostPort returns the host port a deployment of id publishes on: requested
// when given, otherwise the base port plus id.
//
// The derived port is unique per implementation id but nothing reserves it;
// unrelated listeners or ids past the port range collide.
func (s *Service) HostPort(id int64, requested *int) (int, error) {
	port := int64(s.basePort) + id
	if requested != nil {
		port = int64(*requested)
	}
	if port <= 0 || port > maxPort {
		return 0, precondition(fmt.Sprintf("implementation %d", id), "host port %d is outside 1-%d", port, maxPort)
	}
	return int(port), nil
}

// DeployService stages impl, builds its service image and (re)starts the
// detached service container with the internal port published on hostPort.
// A repository without a Dockerfile is built from the artifacts its profile
// generates.
//
// Redeploying an id replaces the previous container: the deterministic name
// is force-removed first and a missing container is not an error.
func (s *Service) DeployService(ctx context.Context, impl ImplementationRef, hostPort *int) (*ServiceDeployment, error) {
	if err := impl.Validate("implementation"); err != nil {
		return nil, err
	}
	port, err := s.HostPort(impl.ID, hostPort)
	if err != nil {
		return nil, err
	}
	prof, err := s.profiles.Lookup(impl.Language)
	if err != nil {
		return nil, err
	}
	internal := prof.ServicePort()
	if internal <= 0 || internal > maxPort {
		return nil, precondition("profile "+prof.Name(), "no service port declared")
	}

	logger := s.logger.With("implementation", impl.ID, "profile", prof.Name())
	ws, err := s.services.Stage(ctx, impl.repoRef(), ServiceLabel(impl.ID))
	if err != nil {
		return nil, err
	}
	if err := s.prepareArtifacts(prof, impl, ws); err != nil {
		return nil, artifactsError(impl.ID, err)
	}

	dep := &ServiceDeployment{
		ImplementationID: impl.ID,
		Image:            ServiceImage(prof.Name(), impl.ID),
		ContainerName:    ServiceContainerName(impl.ID),
		InternalPort:     internal,
		HostPort:         port,
		URL:              ServiceURL(port),
		Commit:           ws.Commit,
	}

	logger.Info("building service image", "image", dep.Image, "commit", ws.Commit)
	dep.Build, err = container.RetryTransient(ctx, s.buildAttempts, s.buildBackoff, func() (*container.Result, error) {
		return s.engine.Build(ctx, container.BuildRequest{ContextDir: ws.Path, Tag: dep.Image})
	})
	if err != nil {
		return nil, err
	}

	removed, err := s.engine.RemoveIfExists(ctx, dep.ContainerName)
	if err != nil {
		return nil, err
	}
	if removed {
		logger.Info("replaced previous deployment", "container", dep.ContainerName)
	}

	dep.Run, err = s.engine.Run(ctx, container.RunRequest{
		Image:    dep.Image,
		Detached: true,
		Name:     dep.ContainerName,
		Network:  s.network,
		Ports: []container.PortMapping{{
			HostPort:      container.NetworkPort(port),
			ContainerPort: container.NetworkPort(internal),
		}},
	})
	if err != nil {
		return nil, err
	}
	logger.Info("service deployed", "container", dep.ContainerName, "url", dep.URL)

	s.archive(ctx, Record{
		Kind:            KindDeploy,
		Implementations: []int64{impl.ID},
		Language:        prof.Name(),
		Workspaces:      []workspace.Workspace{*ws},
		Deployment:      dep,
	})
	return dep, nil
}

// prepareArtifacts requires the entry point, when impl names one, to exist in
// the staged workspace. A workspace without a Dockerfile gets the artifacts
// prof generates; files the repository already ships are kept.
func (s *Service) prepareArtifacts(prof profile.Profile, impl ImplementationRef, ws *workspace.Workspace) error {
	subject := fmt.Sprintf("implementation %d", impl.ID)
	if impl.FilePath != "" {
		if !filepath.IsLocal(impl.FilePath) {
			return precondition(subject, "entry point %q is not inside the repository", impl.FilePath)
		}
		ok, err := s.exists(ws, impl.FilePath)
		if err != nil {
			return err
		}
		if !ok {
			return precondition(subject, "%s not found in workspace %s", impl.FilePath, ws.Label)
		}
	}

	ok, err := s.exists(ws, Dockerfile)
	if err != nil || ok {
		return err
	}

	scaffolder, ok := prof.(profile.ServiceScaffolder)
	if !ok {
		return precondition(subject, "%s not found in workspace %s and profile %s generates none", Dockerfile, ws.Label, prof.Name())
	}
	artifacts, err := scaffolder.ServiceArtifacts(impl.FilePath)
	switch {
	case errors.Is(err, profile.ErrNoServiceArtifacts):
		return precondition(subject, "%s not found in workspace %s and profile %s generates none", Dockerfile, ws.Label, prof.Name())
	case errors.Is(err, profile.ErrInvalidEntryPoint):
		return precondition(subject, "%v", err)
	case err != nil:
		return fmt.Errorf("generate service artifacts for %s: %w", ws.Label, err)
	}

	for _, a := range artifacts {
		if !filepath.IsLocal(a.Path) {
			return fmt.Errorf("generated artifact %q escapes workspace %s", a.Path, ws.Label)
		}
		present, err := s.exists(ws, a.Path)
		if err != nil {
			return err
		}
		if present {
			continue
		}
		target := filepath.Join(ws.Path, a.Path)
		if err := afero.WriteFile(s.fs, target, a.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		s.logger.Info("generated service artifact", "implementation", impl.ID, "file", a.Path)
	}
	return nil
}

// artifactsError links precondition failures to the service artifacts issue page.
func artifactsError(id int64, err error) error {
	if !errors.Is(err, ErrPreconditionViolation) {
		return err
	}
	return issue.NewErrorContext().
		WithOperation("prepare service build").
		WithImplementation(id).
		WithIssue(issue.ServiceArtifactsMissingId).
		WithSuggestion("Commit a Dockerfile, or record an entry point the language profile can serve").
		Wrap(err).
		BuildError()
}

func (s *Service) exists(ws *workspace.Workspace, rel string) (bool, error) {
	ok, err := afero.Exists(s.fs, filepath.Join(ws.Path, rel))
	if err != nil {
		return false, fmt.Errorf("check %s in %s: %w", rel, ws.Path, err)
	}
	return ok, nil
}
