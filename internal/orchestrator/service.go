// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/mlbe/mlbe-runner/internal/container"
	"github.com/mlbe/mlbe-runner/internal/profile"
	"github.com/mlbe/mlbe-runner/internal/workspace"
)

const (
	// DefaultBasePort is added to the implementation id to derive a service host port.
	DefaultBasePort = 18000
	// DefaultNetwork is the container network used when none is configured.
	DefaultNetwork = "bridge"

	defaultBuildBackoff = 2 * time.Second
	maxPort             = 65535
)

type (
	// Profiles resolves language profiles. *profile.Registry satisfies it.
	Profiles interface {
		Lookup(name string) (profile.Profile, error)
		List() []profile.Summary
	}

	// Stager checks repositories out into labelled workspaces. *workspace.Stager satisfies it.
	Stager interface {
		Stage(ctx context.Context, ref workspace.RepoRef, label string) (*workspace.Workspace, error)
	}

	// Archiver stores completed orchestration records.
	Archiver interface {
		Archive(ctx context.Context, rec Record) error
	}

	// Option configures a Service.
	Option func(*Service)

	// Service runs tests and deployments. It holds no mutable state of its own
	// and is safe for concurrent use.
	Service struct {
		profiles      Profiles
		tests         Stager
		services      Stager
		engine        container.Engine
		archiver      Archiver
		fs            afero.Fs
		logger        *log.Logger
		network       string
		basePort      int
		buildAttempts int
		buildBackoff  time.Duration
		extraMounts   []container.VolumeMount
		now           func() time.Time
	}
)

// WithServiceStager stages deployments separately from test runs.
func WithServiceStager(s Stager) Option {
	return func(svc *Service) {
		svc.services = s
	}
}

// WithArchiver archives every completed run.
func WithArchiver(a Archiver) Option {
	return func(svc *Service) {
		svc.archiver = a
	}
}

// WithFs sets the filesystem used for deployment artifact checks.
func WithFs(fs afero.Fs) Option {
	return func(svc *Service) {
		svc.fs = fs
	}
}

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(svc *Service) {
		svc.logger = l
	}
}

// WithNetwork sets the container network for every run.
func WithNetwork(name string) Option {
	return func(svc *Service) {
		if name != "" {
			svc.network = name
		}
	}
}

// WithBasePort sets the offset used to derive default service host ports.
func WithBasePort(port int) Option {
	return func(svc *Service) {
		if port > 0 {
			svc.basePort = port
		}
	}
}

// WithBuildRetry retries service image builds that fail with a transient
// engine error. attempts <= 1 disables retries. A zero backoff retries
// immediately; a negative one keeps the default.
func WithBuildRetry(attempts int, backoff time.Duration) Option {
	return func(svc *Service) {
		svc.buildAttempts = max(attempts, 1)
		if backoff >= 0 {
			svc.buildBackoff = backoff
		}
	}
}

// WithExtraMounts adds bind mounts to every test run container. Targets may
// not overlap /code or /tests.
func WithExtraMounts(mounts ...container.VolumeMount) Option {
	return func(svc *Service) {
		svc.extraMounts = append(svc.extraMounts, mounts...)
	}
}

// NewService wires the orchestrators. Test runs and deployments share stager
// unless WithServiceStager is given.
func NewService(profiles Profiles, stager Stager, engine container.Engine, opts ...Option) (*Service, error) {
	if profiles == nil || stager == nil || engine == nil {
		return nil, errors.New("orchestrator requires a profile registry, a stager and an engine")
	}
	svc := &Service{
		profiles:      profiles,
		tests:         stager,
		services:      stager,
		engine:        engine,
		fs:            afero.NewOsFs(),
		logger:        log.New(io.Discard),
		network:       DefaultNetwork,
		basePort:      DefaultBasePort,
		buildAttempts: 1,
		buildBackoff:  defaultBuildBackoff,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if err := checkExtraMounts(svc.extraMounts); err != nil {
		return nil, err
	}
	return svc, nil
}

func checkExtraMounts(mounts []container.VolumeMount) error {
	for _, m := range mounts {
		if err := m.Validate(); err != nil {
			return err
		}
		target := path.Clean(string(m.ContainerPath))
		for _, reserved := range []string{CodeDir, TestsDir} {
			if target == "/" || target == reserved || strings.HasPrefix(target, reserved+"/") {
				return fmt.Errorf("extra mount %s overlaps %s", m.ContainerPath, reserved)
			}
		}
	}
	return nil
}

// runVolumes appends the configured extra mounts to base.
func (s *Service) runVolumes(base ...container.VolumeMount) []container.VolumeMount {
	return append(base, s.extraMounts...)
}

// ListProfiles returns name and image of every registered profile in registration order.
func (s *Service) ListProfiles() []profile.Summary {
	return s.profiles.List()
}

// archive hands rec to the archiver. Archival failures never fail the run.
func (s *Service) archive(ctx context.Context, rec Record) {
	if s.archiver == nil {
		return
	}
	rec.FinishedAt = s.now().UTC()
	if err := s.archiver.Archive(ctx, rec); err != nil {
		s.logger.Warn("archiving run failed", "kind", rec.Kind, "implementations", rec.Implementations, "err", err)
	}
}
