// SPDX-License-Identifier: MPL-2.0

// Package config handles runner configuration using Viper with CUE as the file format.
//
// Values are layered, lowest precedence first: built-in defaults, the CUE file
// (an explicit --config path, else $XDG_CONFIG_HOME/mlbe/config.cue, else ./mlbe.cue),
// a .env file, MLBE_* environment variables, and explicit overrides from flags.
// The file is validated against the embedded #Config schema (config_schema.cue);
// the decoded Config is validated again after every layer is applied.
package config
