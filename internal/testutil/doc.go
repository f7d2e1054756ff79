// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that drive a real container
// daemon: a skip guard for hosts without a usable testcontainers provider, a
// process-wide semaphore bounding concurrent container work, and cleanup
// helpers that log instead of failing.
package testutil
