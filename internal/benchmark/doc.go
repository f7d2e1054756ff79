// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// They cover the hot paths of a run that do not need a container daemon:
//   - CUE configuration loading and schema validation
//   - Declarative profile and catalog file parsing
//   - Container argv composition
//   - A single-target test run through the orchestrator with a recording engine
//
// To generate a PGO profile, run:
//
//	go test -run=^$ -bench=. -cpuprofile=default.pgo ./internal/benchmark
package benchmark
