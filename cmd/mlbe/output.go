// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mlbe/mlbe-runner/internal/container"
)

// outputFormat selects how command results are printed.
type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", string(outputText), "output format: text, json or yaml")
}

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case outputText, outputJSON, outputYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: text, json, yaml)", s)
	}
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format outputFormat, v any) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not structured", format)
	}
}

// writeRunResult prints a container result. Text output replays the captured
// streams and ends with a one-line verdict.
func writeRunResult(stdout, stderr io.Writer, format outputFormat, title string, res *container.Result) error {
	if format != outputText {
		return writeStructured(stdout, format, res)
	}

	if res.Stdout != "" {
		fmt.Fprint(stdout, ensureNewline(res.Stdout))
	}
	if res.Stderr != "" {
		fmt.Fprint(stderr, ensureNewline(res.Stderr))
	}

	detail := VerboseStyle.Render(fmt.Sprintf("(exit %d, %.2fs, %s)", res.ExitCode, res.ElapsedSeconds(), res.Image))
	if res.Success() {
		fmt.Fprintf(stdout, "%s %s passed %s\n", SuccessStyle.Render("✓"), title, detail)
	} else {
		fmt.Fprintf(stdout, "%s %s failed %s\n", ErrorStyle.Render("✗"), title, detail)
	}
	return nil
}

// resultExit turns a failing result into an ExitError carrying its exit code.
func resultExit(res *container.Result) error {
	if res.Success() {
		return nil
	}
	code := res.ExitCode
	if code <= 0 || code > 255 {
		code = exitFailure
	}
	return &ExitError{Code: code}
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
