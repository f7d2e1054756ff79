// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// selinuxEnforcePath reports the SELinux mode on Linux hosts.
const selinuxEnforcePath = "/sys/fs/selinux/enforce"

type (
	// SELinuxCheckFunc reports whether SELinux is enforcing.
	SELinuxCheckFunc func() bool

	// PodmanEngine implements the Engine interface using the Podman CLI.
	PodmanEngine struct {
		*BaseCLIEngine
	}
)

// NewPodmanEngine creates a Podman engine for binaryPath.
// When SELinux is enforcing, volume mounts without a label get the shared :z label.
func NewPodmanEngine(binaryPath string, opts ...BaseCLIEngineOption) *PodmanEngine {
	return NewPodmanEngineWithSELinuxCheck(binaryPath, SELinuxEnforcing(afero.NewOsFs()), opts...)
}

// NewPodmanEngineWithSELinuxCheck creates a Podman engine with an explicit SELinux check.
func NewPodmanEngineWithSELinuxCheck(binaryPath string, check SELinuxCheckFunc, opts ...BaseCLIEngineOption) *PodmanEngine {
	allOpts := append([]BaseCLIEngineOption{
		WithName(string(EngineTypePodman)),
		WithVolumeFormatter(selinuxLabeler(check)),
	}, opts...)
	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(binaryPath, allOpts...),
	}
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// SELinuxEnforcing returns a check reading the SELinux enforce flag from fs.
func SELinuxEnforcing(fs afero.Fs) SELinuxCheckFunc {
	return func() bool {
		data, err := afero.ReadFile(fs, selinuxEnforcePath)
		if err != nil {
			return false
		}
		return strings.TrimSpace(string(data)) == "1"
	}
}

// selinuxLabeler adds the :z label to unlabeled mounts while SELinux is enforcing.
// The check runs once per engine.
func selinuxLabeler(check SELinuxCheckFunc) VolumeFormatFunc {
	enforcing := check != nil && check()
	return func(v VolumeMount) VolumeMount {
		if enforcing && v.SELinux == SELinuxLabelNone {
			v.SELinux = SELinuxLabelShared
		}
		return v
	}
}
