// SPDX-License-Identifier: MPL-2.0

// Package container composes docker and podman invocations for image builds,
// ephemeral test runs and detached service runs, and shapes their results.
//
// The Engine interface is implemented by DockerEngine and PodmanEngine, both
// embedding BaseCLIEngine for argument construction. Every process is executed
// through a Runner (normally *invoke.Invoker), so argument vectors can be
// asserted in tests without a container runtime.
//
// A foreground run whose command exits non-zero is a successful run of a failing
// command and is returned as a Result. Errors are reserved for infrastructure
// failures: a missing engine binary, an invalid request, the engine's own failure
// status (exit 125), a failed build or a failed detached start.
package container
