// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/mlbe/mlbe-runner/internal/invoke"
)

const (
	// DefaultGitBinary is resolved on PATH.
	DefaultGitBinary = "git"
	// DefaultRevision is used when a RepoRef names no revision.
	DefaultRevision = "main"

	originRemote = "origin"
)

type (
	// Runner executes one process invocation. *invoke.Invoker satisfies it.
	Runner interface {
		Invoke(ctx context.Context, c invoke.Command) (*invoke.Output, error)
	}

	// RepoRef identifies a repository revision to stage.
	RepoRef struct {
		// URL is the remote clone URL or a local repository path.
		URL string
		// Revision is a branch, tag or commit SHA. Empty means the stager default.
		Revision string
		// Token is an optional access token for https remotes. Empty means the stager default.
		Token string
	}

	// Workspace is a staged checkout.
	Workspace struct {
		Label    string `json:"label" yaml:"label"`
		Path     string `json:"path" yaml:"path"`
		Revision string `json:"revision" yaml:"revision"`
		Commit   string `json:"commit" yaml:"commit"`
	}

	// Option configures a Stager.
	Option func(*Stager)

	// Stager clones or refreshes repositories under a fixed root.
	Stager struct {
		root            string
		gitBinary       string
		defaultRevision string
		token           string
		runner          Runner
		inspector       Inspector
		fs              afero.Fs
		logger          *log.Logger
		locks           *keyedMutex
	}
)

// WithGitBinary sets the git executable (bare name or path).
func WithGitBinary(path string) Option {
	return func(s *Stager) {
		if path != "" {
			s.gitBinary = path
		}
	}
}

// WithDefaultRevision sets the revision used when a RepoRef names none.
func WithDefaultRevision(rev string) Option {
	return func(s *Stager) {
		if rev != "" {
			s.defaultRevision = rev
		}
	}
}

// WithToken sets the access token used when a RepoRef carries none.
func WithToken(token string) Option {
	return func(s *Stager) {
		s.token = token
	}
}

// WithRunner sets the process runner.
func WithRunner(r Runner) Option {
	return func(s *Stager) {
		s.runner = r
	}
}

// WithInspector sets the repository inspector.
func WithInspector(i Inspector) Option {
	return func(s *Stager) {
		s.inspector = i
	}
}

// WithFs sets the filesystem used for directory checks.
func WithFs(fs afero.Fs) Option {
	return func(s *Stager) {
		s.fs = fs
	}
}

// WithLogger sets the stager logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Stager) {
		s.logger = l
	}
}

// NewStager creates a stager rooted at root. A relative root is made absolute
// so that workspace paths can be bind-mounted.
func NewStager(root string, opts ...Option) (*Stager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", root, err)
	}

	s := &Stager{
		root:            abs,
		gitBinary:       DefaultGitBinary,
		defaultRevision: DefaultRevision,
		inspector:       NewGitInspector(),
		fs:              afero.NewOsFs(),
		logger:          log.New(io.Discard),
		locks:           newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = invoke.New(invoke.WithFs(s.fs), invoke.WithLogger(s.logger))
	}
	return s, nil
}

// Root returns the absolute workspace root.
func (s *Stager) Root() string { return s.root }

// Path returns the workspace directory for label without touching the filesystem.
func (s *Stager) Path(label string) (string, error) {
	if err := validateLabel(label); err != nil {
		return "", err
	}
	return filepath.Join(s.root, label), nil
}

// Stage clones ref into root/label, or updates an existing checkout there, and
// leaves HEAD at ref's revision.
//
// Failing git steps return an *issue.ActionableError wrapping a
// *StageFailedError. A missing git binary returns an
// error matching invoke.ErrToolMissing, and a missing local source repository
// or workspace root one matching invoke.ErrPathMissing.
func (s *Stager) Stage(ctx context.Context, ref RepoRef, label string) (*Workspace, error) {
	path, err := s.Path(label)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(ref.URL) == "" {
		return nil, errors.New("repository URL is empty")
	}

	remote := NormalizeURL(ref.URL)
	revision := ref.Revision
	if revision == "" {
		revision = s.defaultRevision
	}
	token := ref.Token
	if token == "" {
		token = s.token
	}

	if !IsRemoteURL(remote) {
		local := strings.TrimPrefix(remote, "file://")
		if ok, _ := afero.Exists(s.fs, local); !ok {
			return nil, &invoke.PathMissingError{Path: local}
		}
	}

	op := &stageOp{
		Stager:   s,
		label:    label,
		path:     path,
		url:      InjectToken(remote, token),
		shownURL: RedactURL(remote),
		revision: revision,
		token:    token,
	}

	unlock := s.locks.Lock(path)
	defer unlock()

	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return nil, &invoke.PathMissingError{Path: s.root}
	}

	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return nil, op.failed("stat", err)
	}

	if !exists {
		s.logger.Info("cloning repository", "label", label, "url", op.shownURL, "revision", revision)
		if err := op.git(ctx, "clone", s.root, "clone", op.url, path); err != nil {
			return nil, err
		}
	} else {
		if err := op.update(ctx); err != nil {
			return nil, err
		}
	}

	if err := op.git(ctx, "checkout", path, "checkout", revision); err != nil {
		return nil, err
	}

	commit, err := s.inspector.Head(path)
	if err != nil {
		return nil, op.failed("inspect", err)
	}
	s.logger.Debug("workspace ready", "label", label, "commit", commit)

	return &Workspace{Label: label, Path: path, Revision: revision, Commit: commit}, nil
}

// stageOp carries the state of one Stage call.
type stageOp struct {
	*Stager
	label    string
	path     string
	url      string
	shownURL string
	revision string
	token    string
}

// update refreshes an existing checkout. A directory that is not a git working
// tree is reported, never deleted.
func (op *stageOp) update(ctx context.Context) error {
	if !op.inspector.IsRepository(op.path) {
		return op.failed("open", fmt.Errorf("%s exists but is not a git repository", op.path))
	}

	op.logger.Info("updating workspace", "label", op.label, "url", op.shownURL, "revision", op.revision)
	steps := []struct {
		step string
		args []string
	}{
		{"remote", []string{"remote", "set-url", originRemote, op.url}},
		{"fetch", []string{"fetch", "--tags", "--force", originRemote}},
		{"checkout", []string{"checkout", op.revision}},
	}
	for _, st := range steps {
		if err := op.git(ctx, st.step, op.path, st.args...); err != nil {
			return err
		}
	}

	// Tags and commit SHAs have nothing to fast-forward to.
	if op.inspector.HasRemoteBranch(op.path, originRemote, op.revision) {
		if err := op.git(ctx, "pull", op.path, "pull", "--ff-only", originRemote, op.revision); err != nil {
			return err
		}
	}
	return nil
}

// git runs one git step. Missing tools, missing paths and cancellation pass
// through; any other failure becomes a StageFailedError.
func (op *stageOp) git(ctx context.Context, step, dir string, args ...string) error {
	_, err := op.runner.Invoke(ctx, invoke.Command{
		Binary: op.gitBinary,
		Args:   args,
		Dir:    dir,
		Env:    []string{"GIT_TERMINAL_PROMPT=0"},
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, invoke.ErrToolMissing) || errors.Is(err, invoke.ErrPathMissing) {
		return fmt.Errorf("stage %s: git %s: %w", op.label, step, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("stage %s: git %s: %w", op.label, step, ctxErr)
	}
	return op.failed(step, err)
}

func (op *stageOp) failed(step string, err error) error {
	sf := &StageFailedError{
		Label:    op.label,
		Step:     step,
		URL:      op.shownURL,
		Revision: op.revision,
		Err:      err,
	}
	var failed *invoke.InvocationFailedError
	if errors.As(err, &failed) {
		sf.Stderr = redactToken(failed.Stderr, op.token)
		sf.ExitCode = failed.ExitCode
	}
	op.logger.Warn("stage failed", "label", op.label, "step", step, "exit", sf.ExitCode)
	return stageError(sf, op.path)
}

func validateLabel(label string) error {
	if strings.TrimSpace(label) == "" || label == "." || label == ".." ||
		strings.ContainsAny(label, `/\`) || filepath.Base(label) != label {
		return &InvalidLabelError{Label: label}
	}
	return nil
}
