// SPDX-License-Identifier: MPL-2.0

package invoke

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
)

type (
	// mockExec records exec.Command calls and re-executes the test binary
	// as TestHelperProcess with the configured output.
	mockExec struct {
		mu          sync.Mutex
		invocations [][]string
		exitCode    int
		stdout      string
		stderr      string
		sleep       time.Duration
	}
)

func (m *mockExec) commandFunc() ExecCommandFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		m.mu.Lock()
		m.invocations = append(m.invocations, append([]string{name}, args...))
		m.mu.Unlock()

		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", m.exitCode),
			"GO_HELPER_STDOUT=" + m.stdout,
			"GO_HELPER_STDERR=" + m.stderr,
			fmt.Sprintf("GO_HELPER_SLEEP=%s", m.sleep),
		}
		return cmd
	}
}

func (m *mockExec) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invocations)
}

// TestHelperProcess is used by the mock to simulate command execution.
// It is a no-op unless invoked by mockExec.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if d, err := time.ParseDuration(os.Getenv("GO_HELPER_SLEEP")); err == nil && d > 0 {
		time.Sleep(d)
	}
	if s := os.Getenv("GO_HELPER_STDOUT"); s != "" {
		fmt.Fprint(os.Stdout, s)
	}
	if s := os.Getenv("GO_HELPER_STDERR"); s != "" {
		fmt.Fprint(os.Stderr, s)
	}
	code := 0
	fmt.Sscanf(os.Getenv("GO_HELPER_EXIT_CODE"), "%d", &code)
	os.Exit(code)
}

// newTestInvoker returns an Invoker whose filesystem contains an executable /usr/bin/docker.
func newTestInvoker(t *testing.T, m *mockExec) *Invoker {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/usr/bin/docker", []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	if err := afero.WriteFile(fs, "/usr/bin/readonly", []byte("data"), 0o644); err != nil {
		t.Fatalf("write fake file: %v", err)
	}
	return New(
		WithFs(fs),
		WithExecCommand(m.commandFunc()),
		WithLookPath(func(file string) (string, error) {
			if file == "docker" {
				return "/usr/bin/docker", nil
			}
			return "", exec.ErrNotFound
		}),
	)
}

func TestInvoke_Success(t *testing.T) {
	t.Parallel()
	m := &mockExec{stdout: "abc123", stderr: "warning"}
	inv := newTestInvoker(t, m)

	out, err := inv.Invoke(context.Background(), Command{Binary: "docker", Args: []string{"run", "-d", "img"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Stdout != "abc123" || out.Stderr != "warning" || out.ExitCode != 0 {
		t.Errorf("unexpected output: %+v", out)
	}
	if m.count() != 1 {
		t.Errorf("expected 1 invocation, got %d", m.count())
	}
	if got := m.invocations[0]; got[0] != "/usr/bin/docker" || got[1] != "run" {
		t.Errorf("expected resolved binary and args, got %v", got)
	}
}

func TestInvoke_NonZeroExit(t *testing.T) {
	t.Parallel()
	m := &mockExec{exitCode: 7, stdout: "partial", stderr: "boom"}
	inv := newTestInvoker(t, m)

	_, err := inv.Invoke(context.Background(), Command{Binary: "/usr/bin/docker", Args: []string{"build", "."}})
	if !errors.Is(err, ErrInvocationFailed) {
		t.Fatalf("expected ErrInvocationFailed, got %v", err)
	}
	var failed *InvocationFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *InvocationFailedError, got %T", err)
	}
	if failed.ExitCode != 7 || failed.Stdout != "partial" || failed.Stderr != "boom" {
		t.Errorf("unexpected captured output: %+v", failed)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error should include stderr, got %q", err.Error())
	}
}

func TestInvoke_ToolMissing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		binary string
		reason string
	}{
		{name: "bare name not on PATH", binary: "podman", reason: "PATH"},
		{name: "absolute path absent", binary: "/opt/podman/bin/podman", reason: "does not exist"},
		{name: "not executable", binary: "/usr/bin/readonly", reason: "not executable"},
		{name: "directory", binary: "/usr/bin", reason: "directory"},
		{name: "empty", binary: " ", reason: "no binary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := &mockExec{}
			inv := newTestInvoker(t, m)

			_, err := inv.Invoke(context.Background(), Command{Binary: tt.binary, Args: []string{"version"}})
			if !errors.Is(err, ErrToolMissing) {
				t.Fatalf("expected ErrToolMissing, got %v", err)
			}
			if errors.Is(err, ErrInvocationFailed) {
				t.Error("tool missing must not be reported as invocation failure")
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("error %q should mention %q", err.Error(), tt.reason)
			}
			if m.count() != 0 {
				t.Errorf("nothing should be spawned, got %d invocations", m.count())
			}
		})
	}
}

func TestInvoke_PathMissing(t *testing.T) {
	t.Parallel()
	m := &mockExec{}
	inv := newTestInvoker(t, m)

	_, err := inv.Invoke(context.Background(), Command{Binary: "docker", Args: []string{"build"}, Dir: "/no/such/dir"})
	if !errors.Is(err, ErrPathMissing) {
		t.Fatalf("expected ErrPathMissing, got %v", err)
	}
	var missing *PathMissingError
	if !errors.As(err, &missing) || missing.Path != "/no/such/dir" {
		t.Errorf("expected PathMissingError for /no/such/dir, got %v", err)
	}
	if m.count() != 0 {
		t.Errorf("nothing should be spawned, got %d invocations", m.count())
	}
}

func TestInvoke_RunsInDirectory(t *testing.T) {
	t.Parallel()
	m := &mockExec{}
	dir := t.TempDir()
	inv := New(
		WithFs(afero.NewOsFs()),
		WithExecCommand(m.commandFunc()),
		WithLookPath(func(string) (string, error) { return "/usr/bin/git", nil }),
	)

	if _, err := inv.Invoke(context.Background(), Command{Binary: "git", Args: []string{"status"}, Dir: dir}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvoke_RedactsCredentials(t *testing.T) {
	t.Parallel()
	m := &mockExec{exitCode: 128, stderr: "fatal: repository not found"}
	inv := newTestInvoker(t, m)

	_, err := inv.Invoke(context.Background(), Command{
		Binary: "docker",
		Args:   []string{"clone", "https://s3cret@github.com/acme/repo.git", "/tmp/x"},
	})
	var failed *InvocationFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *InvocationFailedError, got %v", err)
	}
	if strings.Contains(err.Error(), "s3cret") {
		t.Errorf("error leaks credential: %q", err.Error())
	}
	if failed.Args[1] != "https://REDACTED@github.com/acme/repo.git" {
		t.Errorf("unexpected redacted arg %q", failed.Args[1])
	}
}

func TestInvoke_Cancellation(t *testing.T) {
	t.Parallel()
	m := &mockExec{sleep: 10 * time.Second}
	inv := newTestInvoker(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := inv.Invoke(ctx, Command{Binary: "docker", Args: []string{"run", "img"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if errors.Is(err, ErrInvocationFailed) {
		t.Error("cancellation must not be reported as invocation failure")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("child was not killed promptly")
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://tok@github.com/a/b.git", "https://REDACTED@github.com/a/b.git"},
		{"https://user:pw@example.com/r", "https://REDACTED@example.com/r"},
		{"https://github.com/a/b.git", "https://github.com/a/b.git"},
		{"git@github.com:a/b.git", "git@github.com:a/b.git"},
		{"-lc", "-lc"},
	}

	for _, tt := range tests {
		if got := RedactURL(tt.in); got != tt.want {
			t.Errorf("RedactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
