// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalogued issue.
type Id int

const (
	ContainerEngineNotFoundId Id = iota + 1
	GitNotFoundId
	ConfigLoadFailedId
	ProfileNotFoundId
	ImplementationNotFoundId
	StagingFailedId
	PreconditionViolatedId
	ImageBuildFailedId
	ContainerRunFailedId
	ServiceArtifactsMissingId
	CatalogUnavailableId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render returns the issue as terminal-styled Markdown. An empty stylePath
// selects glamour's default style.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also:\n")
		for _, link := range i.docLinks {
			md.WriteString("- [" + string(link) + "](" + string(link) + ")\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- [" + string(link) + "](" + string(link) + ")\n")
		}
	}
	if stylePath == "" {
		stylePath = "auto"
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

Every test run and deployment happens inside a container, but neither Podman nor Docker could be found.

## Things you can try:
- Install Podman (recommended for rootless containers):
  - Linux: ` + "`sudo apt install podman`" + ` or ` + "`sudo dnf install podman`" + `
  - macOS: ` + "`brew install podman`" + `
- Install Docker: https://docs.docker.com/get-docker/
- Point the runner at a binary outside PATH:
~~~
$ export MLBE_CONTAINER_BINARY=/opt/podman/bin/podman
~~~`,
		extLinks: []HttpLink{"https://podman.io/docs/installation"},
	}

	gitNotFoundIssue = &Issue{
		id: GitNotFoundId,
		mdMsg: `
# git not found!

Implementation repositories are cloned and updated with the git command-line tool.

## Things you can try:
- Install git from your package manager
- Set the binary explicitly:
~~~
$ export MLBE_GIT_BINARY=/usr/local/bin/git
~~~`,
		extLinks: []HttpLink{"https://git-scm.com/downloads"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

Could not load the runner configuration file.

## Configuration sources (highest precedence first):
1. Command-line flags
2. ` + "`MLBE_*`" + ` environment variables (a ` + "`.env`" + ` file in the working directory is read too)
3. The file given by ` + "`--config`" + `, or ` + "`mlbe.cue`" + ` in the working directory
4. Built-in defaults

## Things you can try:
- Print the effective configuration:
~~~
$ mlbe config show
~~~
- Validate the file with the cue tool:
~~~
$ cue vet mlbe.cue
~~~`,
	}

	profileNotFoundIssue = &Issue{
		id: ProfileNotFoundId,
		mdMsg: `
# Language profile not found!

The implementation's language has no registered profile, so the runner does not know which image or commands to use.

## Things you can try:
- List the registered profiles:
~~~
$ mlbe profiles
~~~
- Check the language stored for the implementation (matching ignores case)
- Add a profile file with ` + "`--profiles path/to/profiles.toml`" + ``,
	}

	implementationNotFoundIssue = &Issue{
		id: ImplementationNotFoundId,
		mdMsg: `
# Implementation not found!

The implementation id was not present in the configured catalog.

## Things you can try:
- Check the id for typos
- Verify ` + "`catalog.file`" + ` or ` + "`catalog.database_url`" + ` points at the catalog you expect
- Pass the repository directly with ` + "`--repo`" + ` and ` + "`--language`" + ``,
	}

	stagingFailedIssue = &Issue{
		id: StagingFailedId,
		mdMsg: `
# Failed to stage the workspace!

A git operation failed while cloning or updating the implementation repository.

## Common causes:
- The repository URL is wrong or private
- The requested branch, tag or commit does not exist
- The workspace directory contains something that is not a git repository

## Things you can try:
- Export a token for private repositories:
~~~
$ export GITHUB_TOKEN=<token>
~~~
- Remove the workspace directory and retry
- Run with --verbose to see the git output`,
	}

	preconditionViolatedIssue = &Issue{
		id: PreconditionViolatedId,
		mdMsg: `
# Invalid request!

The request was rejected before anything was staged or started.

## Common causes:
- A paired contract test mixes implementations of different languages
- A host port outside 1..65535
- The language profile does not declare a service port`,
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# Image build failed!

The service image could not be built. The container that was running before, if any, has been left untouched.

## Things you can try:
- Build the image by hand from the service workspace:
~~~
$ podman build -t test-image services_workspace/svc_<id>
~~~
- Enable retries for flaky registries with ` + "`deploy.build_attempts`" + ``,
	}

	containerRunFailedIssue = &Issue{
		id: ContainerRunFailedId,
		mdMsg: `
# Container could not be started!

The container engine refused to start the container. This is an infrastructure problem, not a failing test.

## Things you can try:
- Check that the image can be pulled
- Check that the host port is free:
~~~
$ ss -ltnp | grep <port>
~~~
- On SELinux hosts, make sure workspaces live on a filesystem that supports relabeling`,
	}

	serviceArtifactsMissingIssue = &Issue{
		id: ServiceArtifactsMissingId,
		mdMsg: `
# Service artifacts missing!

A deployment needs the implementation file recorded in the catalog and either a ` + "`Dockerfile`" + ` at the repository root
or a language profile that generates one. The perl profile wraps a ` + "`.cgi`" + ` entry point in ` + "`app.psgi`" + `;
the python profile runs the entry point with the interpreter.

## Things you can try:
- Commit a Dockerfile to the implementation repository
- Fix the file path stored for the implementation
- Point perl deployments at the CGI script`,
	}

	catalogUnavailableIssue = &Issue{
		id: CatalogUnavailableId,
		mdMsg: `
# Catalog unavailable!

The implementation catalog could not be opened.

## Things you can try:
- Check ` + "`MLBE_CATALOG_DATABASE_URL`" + ` and that the database is reachable
- Use a local catalog file instead with ` + "`--catalog catalog.yaml`" + ``,
	}

	issues = map[Id]*Issue{
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		gitNotFoundIssue.Id():             gitNotFoundIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		profileNotFoundIssue.Id():         profileNotFoundIssue,
		implementationNotFoundIssue.Id():  implementationNotFoundIssue,
		stagingFailedIssue.Id():           stagingFailedIssue,
		preconditionViolatedIssue.Id():    preconditionViolatedIssue,
		imageBuildFailedIssue.Id():        imageBuildFailedIssue,
		containerRunFailedIssue.Id():      containerRunFailedIssue,
		serviceArtifactsMissingIssue.Id(): serviceArtifactsMissingIssue,
		catalogUnavailableIssue.Id():      catalogUnavailableIssue,
	}
)

// Values returns every catalogued issue ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return int(a.id) - int(b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
