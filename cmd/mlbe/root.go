// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mlbe",
		Short: "Stage, test and deploy implementations in isolated containers",
		Long: TitleStyle.Render("mlbe") + SubtitleStyle.Render(" - container execution engine for legacy behavior implementations") + `

mlbe checks implementations out of version control and runs them inside
ephemeral docker or podman containers under a per-language profile:
single-target test runs, paired contract tests against a harness, and
detached service deployments.

` + SubtitleStyle.Render("Examples:") + `
  mlbe test 42                          Run implementation 42's tests
  mlbe contract 12 31 --behavior b1     Run harness 31 against implementation 12
  mlbe deploy 42 --port 8080            Serve implementation 42 on localhost:8080
  mlbe profiles                         List language profiles
  mlbe config show                      Show the effective configuration`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging and troubleshooting pages")
	flags.StringVar(&app.flags.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/mlbe/config.cue)")
	flags.StringVar(&app.flags.envFile, "env-file", "", "dotenv file to read (default is ./.env when present)")
	flags.StringVar(&app.flags.engine, "engine", "", "container engine: podman or docker")
	flags.StringVar(&app.flags.catalog, "catalog", "", "YAML implementation catalog file")

	rootCmd.AddCommand(newTestCommand(app))
	rootCmd.AddCommand(newContractCommand(app))
	rootCmd.AddCommand(newDeployCommand(app))
	rootCmd.AddCommand(newProfilesCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the classified exit code on failure.
// This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:"), err)
		os.Exit(exitFailure)
	}

	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithErrorHandler(app.handleError),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(exitCode(err))
	}
}
