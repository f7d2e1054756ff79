// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/mlbe/mlbe-runner/internal/invoke"
)

type (
	// respondFunc scripts the outcome of one runner call.
	respondFunc func(ctx context.Context, c invoke.Command) (*invoke.Output, error)

	// recordingRunner captures every invocation and answers with a scripted response.
	recordingRunner struct {
		mu      sync.Mutex
		calls   []invoke.Command
		respond respondFunc
	}
)

func (r *recordingRunner) Invoke(ctx context.Context, c invoke.Command) (*invoke.Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	respond := r.respond
	r.mu.Unlock()

	if respond == nil {
		return &invoke.Output{}, nil
	}
	return respond(ctx, c)
}

func (r *recordingRunner) Calls() []invoke.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// succeed returns a response printing stdout and exiting zero.
func succeed(stdout string) respondFunc {
	return func(context.Context, invoke.Command) (*invoke.Output, error) {
		return &invoke.Output{Stdout: stdout}, nil
	}
}

// exitWith returns a response failing with the given status.
func exitWith(code int, stdout, stderr string) respondFunc {
	return func(_ context.Context, c invoke.Command) (*invoke.Output, error) {
		return nil, &invoke.InvocationFailedError{
			Binary:   c.Binary,
			Args:     c.Args,
			Stdout:   stdout,
			Stderr:   stderr,
			ExitCode: code,
		}
	}
}

// newTestEngine returns a docker engine with a fixed ephemeral name and a recording runner.
func newTestEngine(t *testing.T, respond respondFunc, opts ...BaseCLIEngineOption) (*DockerEngine, *recordingRunner) {
	t.Helper()
	runner := &recordingRunner{respond: respond}
	all := append([]BaseCLIEngineOption{
		WithRunner(runner),
		WithNameFunc(func() string { return "mlbe-run-fixed" }),
	}, opts...)
	return NewDockerEngine("/usr/bin/docker", all...), runner
}

func assertArgs(t *testing.T, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("args mismatch\n got: %q\nwant: %q", got, want)
	}
}
