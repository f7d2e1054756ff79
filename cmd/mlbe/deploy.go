// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mlbe/mlbe-runner/internal/orchestrator"
)

func newDeployCommand(app *App) *cobra.Command {
	var (
		inline inlineImplFlags
		port   int
		output string
	)
	cmd := &cobra.Command{
		Use:   "deploy <implementation-id>",
		Short: "Build and start an implementation as a detached service",
		Long: `Stage the implementation into services_workspace/svc_<id>, build its Dockerfile
into mlbe-svc-<language>-impl-<id> and (re)start container mlbe-svc-<id>.

Repositories without a Dockerfile are built from the artifacts the language
profile generates: app.psgi and a plackup Dockerfile for perl CGI scripts,
a Dockerfile running the entry point for python.

The service port of the language profile is published on --port, or on
deploy.base_port plus the implementation id.`,
		Example: `  mlbe deploy 42
  mlbe deploy 42 --port 8080 -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			id, err := parseImplementationID("implementation", args[0])
			if err != nil {
				return err
			}
			var hostPort *int
			if cmd.Flags().Changed("port") {
				hostPort = &port
			}
			return runDeploy(cmd.Context(), app, id, inline, hostPort, format)
		},
	}
	inline.register(cmd)
	cmd.Flags().IntVar(&port, "port", 0, "host port to publish the service on")
	addOutputFlag(cmd, &output)
	return cmd
}

func runDeploy(ctx context.Context, app *App, id int64, inline inlineImplFlags, hostPort *int, format outputFormat) error {
	s, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	refs, err := app.resolveImplementations(ctx, s.cfg, inline, id)
	if err != nil {
		return err
	}

	dep, err := s.orch.DeployService(ctx, refs[0], hostPort)
	if err != nil {
		return err
	}
	s.logger.Debug("service deployed", "container", dep.ContainerName, "url", dep.URL)

	if format != outputText {
		return writeStructured(app.stdout, format, dep)
	}
	writeDeployment(app.stdout, dep)
	return nil
}

func writeDeployment(w io.Writer, dep *orchestrator.ServiceDeployment) {
	fmt.Fprintf(w, "%s implementation %d deployed\n\n", SuccessStyle.Render("✓"), dep.ImplementationID)
	rows := []struct{ key, value string }{
		{"URL", CmdStyle.Render(dep.URL)},
		{"Container", dep.ContainerName},
		{"Image", dep.Image},
		{"Ports", fmt.Sprintf("%d -> %d", dep.HostPort, dep.InternalPort)},
		{"Commit", dep.Commit},
	}
	if dep.Run != nil && dep.Run.ContainerID != "" {
		rows = append(rows, struct{ key, value string }{"Container ID", dep.Run.ContainerID})
	}
	for _, row := range rows {
		if row.value == "" {
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(row.key), row.value)
	}
}
