// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/mlbe/mlbe-runner/internal/container"
	"github.com/mlbe/mlbe-runner/internal/workspace"
)

// Container-side mount points.
const (
	CodeDir  = "/code"
	TestsDir = "/tests"
)

// RunKind identifies which orchestration produced a Record.
type RunKind string

const (
	// KindSingleTest is a single-target test run.
	KindSingleTest RunKind = "test"
	// KindContractTest is a paired contract test run.
	KindContractTest RunKind = "contract"
	// KindDeploy is a service deployment.
	KindDeploy RunKind = "deploy"
)

type (
	// ImplementationRef is the metadata of one stored implementation.
	// FilePath is the entry point relative to the repository root. Token, when
	// set, overrides the configured git token for this repository.
	ImplementationRef struct {
		ID       int64  `json:"id" yaml:"id"`
		Language string `json:"language" yaml:"language"`
		RepoURL  string `json:"repo_url" yaml:"repo_url"`
		Revision string `json:"revision,omitempty" yaml:"revision,omitempty"`
		FilePath string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
		Token    string `json:"-" yaml:"-"`
	}

	// ContractContext identifies the behavior and contract a paired run exercises.
	ContractContext struct {
		BehaviorID string `json:"behavior_id" yaml:"behavior_id"`
		ContractID string `json:"contract_id" yaml:"contract_id"`
	}

	// ServiceDeployment describes a running service container.
	ServiceDeployment struct {
		ImplementationID int64             `json:"implementation_id" yaml:"implementation_id"`
		Image            string            `json:"image" yaml:"image"`
		ContainerName    string            `json:"container_name" yaml:"container_name"`
		InternalPort     int               `json:"internal_port" yaml:"internal_port"`
		HostPort         int               `json:"host_port" yaml:"host_port"`
		URL              string            `json:"url" yaml:"url"`
		Commit           string            `json:"commit" yaml:"commit"`
		Build            *container.Result `json:"build" yaml:"build"`
		Run              *container.Result `json:"run" yaml:"run"`
	}

	// Record is one completed orchestration handed to an Archiver.
	Record struct {
		Kind            RunKind               `json:"kind" yaml:"kind"`
		Implementations []int64               `json:"implementations" yaml:"implementations"`
		Language        string                `json:"language" yaml:"language"`
		Contract        *ContractContext      `json:"contract,omitempty" yaml:"contract,omitempty"`
		Workspaces      []workspace.Workspace `json:"workspaces" yaml:"workspaces"`
		Result          *container.Result     `json:"result,omitempty" yaml:"result,omitempty"`
		Deployment      *ServiceDeployment    `json:"deployment,omitempty" yaml:"deployment,omitempty"`
		FinishedAt      time.Time             `json:"finished_at" yaml:"finished_at"`
	}
)

// Validate reports missing reference fields. Revision may be empty; the stager
// falls back to its default revision.
func (r ImplementationRef) Validate(subject string) error {
	switch {
	case r.ID <= 0:
		return precondition(subject, "implementation id must be positive, got %d", r.ID)
	case strings.TrimSpace(r.Language) == "":
		return precondition(subject, "implementation %d has no language", r.ID)
	case strings.TrimSpace(r.RepoURL) == "":
		return precondition(subject, "implementation %d has no repository URL", r.ID)
	}
	return nil
}

func (r ImplementationRef) repoRef() workspace.RepoRef {
	return workspace.RepoRef{URL: r.RepoURL, Revision: r.Revision, Token: r.Token}
}

// TestLabel is the workspace label used for test runs of implementation id.
func TestLabel(id int64) string { return fmt.Sprintf("impl_%d", id) }

// ServiceLabel is the workspace label used for deployments of implementation id.
func ServiceLabel(id int64) string { return fmt.Sprintf("svc_%d", id) }

// ServiceImage is the image tag built for a deployment.
func ServiceImage(language string, id int64) string {
	return fmt.Sprintf("mlbe-svc-%s-impl-%d", strings.ToLower(language), id)
}

// ServiceContainerName is the deterministic container name of a deployment.
func ServiceContainerName(id int64) string { return fmt.Sprintf("mlbe-svc-%d", id) }

// ServiceURL is the address a deployment is reachable at on the host.
func ServiceURL(hostPort int) string { return fmt.Sprintf("http://localhost:%d", hostPort) }
