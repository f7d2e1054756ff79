// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newProfilesCommand(app *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the registered language profiles",
		Long: `List every registered language profile with the image it runs in.

Built-in profiles are always present; profiles.files adds declarative ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			return listProfiles(cmd.Context(), app, format)
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func listProfiles(ctx context.Context, app *App, format outputFormat) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	profiles := s.orch.ListProfiles()

	if format != outputText {
		return writeStructured(app.stdout, format, profiles)
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Language profiles"))
	fmt.Fprintln(app.stdout)
	if len(profiles) == 0 {
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(none registered)"))
		return nil
	}
	for _, p := range profiles {
		fmt.Fprintf(app.stdout, "  %s %s\n", labelStyle.Render(p.Name), VerboseStyle.Render(p.Image))
	}
	return nil
}
