// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// ParallelEnv overrides the container semaphore capacity.
const ParallelEnv = "MLBE_TEST_CONTAINER_PARALLEL"

// ContainerSemaphore returns a process-wide buffered channel that limits concurrent
// container operations in tests. Acquire a slot by sending, release by receiving:
//
//	sem := testutil.ContainerSemaphore()
//	sem <- struct{}{}
//	defer func() { <-sem }()
//
// The capacity is MLBE_TEST_CONTAINER_PARALLEL when set, otherwise
// min(GOMAXPROCS, 2). Podman on small CI runners hangs instead of failing
// when too many containers start at once.
var ContainerSemaphore = sync.OnceValue(func() chan struct{} {
	return make(chan struct{}, containerParallelism(os.LookupEnv))
})

func containerParallelism(lookupEnv func(string) (string, bool)) int {
	if v, ok := lookupEnv(ParallelEnv); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return min(runtime.GOMAXPROCS(0), 2)
}

// providerAvailable reports whether testcontainers can reach a container daemon.
// GetProvider panics on some hosts without a socket.
var providerAvailable = func() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// RequireContainerProvider skips t in short mode, when any of binaries is not
// on PATH, or when no testcontainers provider is reachable.
func RequireContainerProvider(t testing.TB, binaries ...string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	for _, bin := range binaries {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("skipping integration test: %s not on PATH", bin)
		}
	}
	if !providerAvailable() {
		t.Skip("skipping integration test: testcontainers provider not available")
	}
}

// AcquireContainerSlot blocks until a container slot is free and releases it
// when t finishes.
func AcquireContainerSlot(t testing.TB) {
	t.Helper()
	sem := ContainerSemaphore()
	sem <- struct{}{}
	t.Cleanup(func() { <-sem })
}

// DeferClose returns a cleanup function that closes c, logging any error.
func DeferClose(t testing.TB, c io.Closer) func() {
	t.Helper()
	return func() {
		t.Helper()
		if err := c.Close(); err != nil {
			t.Logf("warning: close returned error: %v", err)
		}
	}
}
