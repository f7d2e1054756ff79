// SPDX-License-Identifier: MPL-2.0

package profile

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"text/template"
)

const (
	// DefaultPythonEntryPoint is run when a python service names no entry point.
	DefaultPythonEntryPoint = "app/ui/plot_ui.py"

	// PSGIApp is the PSGI wrapper written next to a perl CGI entry point.
	PSGIApp = "app.psgi"
	// ServiceDockerfile is the build recipe name written into a service workspace.
	ServiceDockerfile = "Dockerfile"
)

var (
	// ErrNoServiceArtifacts is returned by profiles that cannot generate a
	// service build context.
	ErrNoServiceArtifacts = errors.New("profile offers no service artifacts")

	// ErrInvalidEntryPoint is the sentinel error wrapped by InvalidEntryPointError.
	ErrInvalidEntryPoint = errors.New("invalid service entry point")

	//go:embed templates/*.tmpl
	templateFS embed.FS

	serviceTemplates = template.Must(template.New("").
		Funcs(template.FuncMap{"perlquote": perlQuote, "json": jsonString}).
		ParseFS(templateFS, "templates/*.tmpl"))

	_ ServiceScaffolder = (*Definition)(nil)
)

type (
	// Artifact is one generated file, relative to the service workspace root.
	Artifact struct {
		Path    string
		Content []byte
	}

	// ServiceScaffolder is implemented by profiles that can generate the
	// build context of a service whose repository ships no Dockerfile.
	ServiceScaffolder interface {
		// ServiceArtifacts returns the files to write for entryPoint, a
		// repository-relative path that may be empty.
		ServiceArtifacts(entryPoint string) ([]Artifact, error)
	}

	// InvalidEntryPointError is returned when a profile cannot serve an entry point.
	InvalidEntryPointError struct {
		Profile    string
		EntryPoint string
		Reason     string
	}

	// ScaffoldVars are the fields available to service artifact templates.
	ScaffoldVars struct {
		Image      string
		Port       int
		EntryPoint string
	}
)

// Error implements the error interface.
func (e *InvalidEntryPointError) Error() string {
	return fmt.Sprintf("%s service entry point %q: %s", e.Profile, e.EntryPoint, e.Reason)
}

// Unwrap returns ErrInvalidEntryPoint for errors.Is() compatibility.
func (e *InvalidEntryPointError) Unwrap() error { return ErrInvalidEntryPoint }

// ServiceArtifacts generates the service build context, or returns
// ErrNoServiceArtifacts when the definition has no scaffold.
func (d *Definition) ServiceArtifacts(entryPoint string) ([]Artifact, error) {
	if d.Scaffold == nil {
		return nil, ErrNoServiceArtifacts
	}
	return d.Scaffold(ScaffoldVars{Image: d.BaseImage, Port: d.Port, EntryPoint: entryPoint})
}

// scaffoldPerl wraps a CGI script in a PSGI app served by plackup.
func scaffoldPerl(vars ScaffoldVars) ([]Artifact, error) {
	entry, err := cleanEntryPoint(Perl, vars.EntryPoint)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(entry, ".cgi") {
		return nil, &InvalidEntryPointError{Profile: Perl, EntryPoint: vars.EntryPoint, Reason: "expected a CGI script (.cgi)"}
	}
	vars.EntryPoint = entry
	return renderArtifacts(vars,
		artifactTemplate{path: PSGIApp, name: "perl.app.psgi.tmpl"},
		artifactTemplate{path: ServiceDockerfile, name: "perl.Dockerfile.tmpl"},
	)
}

// scaffoldPython runs the entry point with the interpreter.
func scaffoldPython(vars ScaffoldVars) ([]Artifact, error) {
	if strings.TrimSpace(vars.EntryPoint) == "" {
		vars.EntryPoint = DefaultPythonEntryPoint
	}
	entry, err := cleanEntryPoint(Python, vars.EntryPoint)
	if err != nil {
		return nil, err
	}
	vars.EntryPoint = entry
	return renderArtifacts(vars, artifactTemplate{path: ServiceDockerfile, name: "python.Dockerfile.tmpl"})
}

type artifactTemplate struct {
	path string
	name string
}

func renderArtifacts(vars ScaffoldVars, files ...artifactTemplate) ([]Artifact, error) {
	out := make([]Artifact, 0, len(files))
	for _, f := range files {
		var buf bytes.Buffer
		if err := serviceTemplates.ExecuteTemplate(&buf, f.name, vars); err != nil {
			return nil, fmt.Errorf("render %s: %w", f.path, err)
		}
		out = append(out, Artifact{Path: f.path, Content: buf.Bytes()})
	}
	return out, nil
}

// cleanEntryPoint normalizes separators and requires a path inside the repository.
func cleanEntryPoint(profile, entry string) (string, error) {
	p := strings.ReplaceAll(strings.TrimSpace(entry), `\`, "/")
	if p == "" {
		return "", &InvalidEntryPointError{Profile: profile, EntryPoint: entry, Reason: "no entry point given"}
	}
	p = path.Clean(p)
	if path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
		return "", &InvalidEntryPointError{Profile: profile, EntryPoint: entry, Reason: "must be inside the repository"}
	}
	return p, nil
}

// perlQuote escapes s for a single-quoted Perl string.
func perlQuote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func jsonString(s string) (string, error) {
	b, err := json.Marshal(s)
	return string(b), err
}
