// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

type (
	// Inspector reads repository state without invoking the git CLI.
	Inspector interface {
		// IsRepository reports whether path is the root of a git working tree.
		IsRepository(path string) bool
		// HasRemoteBranch reports whether refs/remotes/<remote>/<branch> exists.
		HasRemoteBranch(path, remote, branch string) bool
		// Head returns the commit SHA HEAD resolves to.
		Head(path string) (string, error)
	}

	// gitInspector implements Inspector with go-git.
	gitInspector struct{}
)

// NewGitInspector returns the go-git backed Inspector.
func NewGitInspector() Inspector {
	return gitInspector{}
}

func (gitInspector) IsRepository(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

func (gitInspector) HasRemoteBranch(path, remote, branch string) bool {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return false
	}
	_, err = repo.Reference(plumbing.NewRemoteReferenceName(remote, branch), true)
	return err == nil
}

func (gitInspector) Head(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("open repository %s: %w", path, err)
	}
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD of %s: %w", path, err)
	}
	return ref.Hash().String(), nil
}
