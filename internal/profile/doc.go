// SPDX-License-Identifier: MPL-2.0

// Package profile holds the per-language execution profiles: the base image and the
// build, test and contract-test commands for a language, and the Registry that
// resolves them by case-insensitive name.
//
// Built-in profiles cover perl and python. Additional profiles can be declared in
// TOML or YAML files and registered at start-up with Registry.RegisterFile.
//
// The built-in profiles also implement ServiceScaffolder, which generates the
// Dockerfile (and for perl the PSGI wrapper) of a service repository that
// ships none. File-declared profiles generate nothing.
package profile
