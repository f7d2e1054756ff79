// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the mlbe CLI.
//
// The root command wires configuration, the language profile registry, the
// repository stagers and the container engine into an orchestrator, then
// exposes single-target tests, paired contract tests and service deployments
// as subcommands. Implementations are resolved from the configured catalog
// (YAML file or PostgreSQL) or described inline with flags.
package cmd
