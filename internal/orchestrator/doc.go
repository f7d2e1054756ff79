// SPDX-License-Identifier: MPL-2.0

// Package orchestrator drives the three execution modes on top of the profile
// registry, the repository stager and the container engine: single-target
// test runs, paired contract test runs and detached service deployments.
//
// Orchestration calls are independent and may run concurrently. The only
// exclusivity is the stager's per-label lock. A command that exits non-zero
// inside its container is reported as a Result; errors are reserved for
// failures of the machinery itself.
package orchestrator
