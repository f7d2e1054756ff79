// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlbe/mlbe-runner/internal/config"
)

// newConfigCommand creates the `mlbe config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mlbe configuration",
		Long: `Manage mlbe configuration.

Configuration is read, lowest precedence first, from built-in defaults,
the config file, a .env file, MLBE_<SECTION>_<KEY> environment variables
and command-line flags.

The config file is the first of:
  - the --config flag
  - $XDG_CONFIG_HOME/mlbe/config.cue (Linux), the user config dir elsewhere
  - ./mlbe.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.Context(), app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			redacted := cfg.Redacted()
			fmt.Fprint(app.stdout, config.GenerateCUE(&redacted))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigPath(app)
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App) error {
	cfg, source, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	red := cfg.Redacted()
	out := app.stdout

	fmt.Fprintln(out, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(out)
	if source == "" {
		source = SubtitleStyle.Render("(using defaults)")
	}
	fmt.Fprintf(out, "%s: %s\n", CmdStyle.Render("Config file"), source)

	sections := []struct {
		name string
		rows [][2]string
	}{
		{"container", [][2]string{
			{"engine", string(red.Container.Engine)},
			{"binary", string(red.Container.Binary)},
			{"network", red.Container.Network},
			{"mounts", strings.Join(red.Container.Mounts, ", ")},
		}},
		{"git", [][2]string{
			{"binary", string(red.Git.Binary)},
			{"token", red.Git.Token},
			{"default_revision", red.Git.DefaultRevision},
		}},
		{"workspace", [][2]string{
			{"root", red.Workspace.Root},
			{"service_root", red.Workspace.ServiceRoot},
		}},
		{"deploy", [][2]string{
			{"base_port", fmt.Sprint(red.Deploy.BasePort)},
			{"build_attempts", fmt.Sprint(red.Deploy.BuildAttempts)},
			{"build_backoff", red.Deploy.BuildBackoff.String()},
		}},
		{"catalog", [][2]string{
			{"file", red.Catalog.File},
			{"database_url", red.Catalog.DatabaseURL},
		}},
		{"archive", [][2]string{
			{"endpoint", red.Archive.Endpoint},
			{"bucket", red.Archive.Bucket},
			{"prefix", red.Archive.Prefix},
			{"access_key", red.Archive.AccessKey},
			{"secret_key", red.Archive.SecretKey},
		}},
		{"profiles", [][2]string{
			{"files", strings.Join(red.Profiles.Files, ", ")},
		}},
		{"ui", [][2]string{
			{"color_scheme", string(red.UI.ColorScheme)},
			{"verbose", fmt.Sprint(red.UI.Verbose)},
		}},
	}

	for _, section := range sections {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%s:\n", CmdStyle.Render(section.name))
		for _, row := range section.rows {
			value := SuccessStyle.Render(row[1])
			if row[1] == "" {
				value = SubtitleStyle.Render("(not set)")
			}
			fmt.Fprintf(out, "  %s: %s\n", row[0], value)
		}
	}
	return nil
}

func initConfig(app *App) error {
	path, err := userConfigFile()
	if err != nil {
		return err
	}
	if app.flags.configFile != "" {
		path = app.flags.configFile
	}

	created, err := config.CreateDefaultConfig(app.fs, path)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if !created {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), path)
		return nil
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	fmt.Fprintf(app.stdout, "Local config file: %s\n", config.LocalConfigFile)
	return nil
}

func userConfigFile() (string, error) {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt), nil
}
