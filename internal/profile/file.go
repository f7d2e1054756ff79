// SPDX-License-Identifier: MPL-2.0

package profile

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type (
	// commandVars are the fields available to command templates in profile files.
	commandVars struct {
		Workspace  string
		PrimaryID  string
		ContractID string
	}

	// fileEntry is one profile as written in a profile file.
	fileEntry struct {
		Name         string   `toml:"name" yaml:"name"`
		Image        string   `toml:"image" yaml:"image"`
		Extensions   []string `toml:"extensions" yaml:"extensions"`
		ServicePort  int      `toml:"service_port" yaml:"service_port"`
		Build        string   `toml:"build" yaml:"build"`
		Test         string   `toml:"test" yaml:"test"`
		ContractTest string   `toml:"contract_test" yaml:"contract_test"`
	}

	// fileDocument is the top-level layout of a profile file.
	fileDocument struct {
		Profiles []fileEntry `toml:"profiles" yaml:"profiles"`
	}
)

// sampleVars are substituted when checking templates at load time.
var sampleVars = commandVars{Workspace: "/code", PrimaryID: "1", ContractID: "1"}

// LoadFile reads profile definitions from a .toml, .yaml or .yml file.
//
// Command fields are text/template strings over {{.Workspace}}, {{.PrimaryID}} and
// {{.ContractID}}; the quote function shell-quotes a value. Every rendered command
// must parse as POSIX shell or the whole file is rejected.
func LoadFile(fs afero.Fs, path string) ([]*Definition, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read profile file %s: %w", path, err)
	}

	var doc fileDocument
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("profile file %s: unsupported extension %q (want .toml, .yaml or .yml)", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse profile file %s: %w", path, err)
	}

	defs := make([]*Definition, 0, len(doc.Profiles))
	for i, entry := range doc.Profiles {
		def, err := entry.definition()
		if err != nil {
			return nil, fmt.Errorf("profile file %s: entry %d: %w", path, i, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// RegisterFile loads path and registers every profile it defines.
// Nothing is registered if any entry is invalid.
func (r *Registry) RegisterFile(fs afero.Fs, path string) error {
	defs, err := LoadFile(fs, path)
	if err != nil {
		return err
	}
	for _, d := range defs {
		if err := Validate(d); err != nil {
			return fmt.Errorf("profile file %s: %w", path, err)
		}
	}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return fmt.Errorf("profile file %s: %w", path, err)
		}
	}
	return nil
}

func (e fileEntry) definition() (*Definition, error) {
	name := strings.TrimSpace(e.Name)
	build, err := compileCommand(name, "build", e.Build)
	if err != nil {
		return nil, err
	}
	test, err := compileCommand(name, "test", e.Test)
	if err != nil {
		return nil, err
	}
	contract, err := compileCommand(name, "contract_test", e.ContractTest)
	if err != nil {
		return nil, err
	}

	def := &Definition{
		ID:         name,
		Extensions: e.Extensions,
		BaseImage:  strings.TrimSpace(e.Image),
		Port:       e.ServicePort,
	}
	if build != nil {
		def.Build = func(workspace string) (Command, bool) {
			cmd := render(build, commandVars{Workspace: workspace})
			return cmd, !cmd.IsZero()
		}
	}
	if test != nil {
		def.Test = func(workspace string) Command {
			return render(test, commandVars{Workspace: workspace})
		}
	}
	if contract != nil {
		def.ContractTest = func(primaryID, contractID, workspace string) Command {
			return render(contract, commandVars{Workspace: workspace, PrimaryID: primaryID, ContractID: contractID})
		}
	}
	return def, nil
}

// compileCommand parses a command template and checks its sample rendering.
// An empty source yields a nil template.
func compileCommand(profileName, field, src string) (*template.Template, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	tmpl, err := template.New(field).
		Option("missingkey=error").
		Funcs(template.FuncMap{"quote": quoteWord}).
		Parse(src)
	if err != nil {
		return nil, &InvalidProfileError{Name: profileName, Reason: fmt.Sprintf("%s: %v", field, err)}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, sampleVars); err != nil {
		return nil, &InvalidProfileError{Name: profileName, Reason: fmt.Sprintf("%s: %v", field, err)}
	}
	if err := ValidateShell(buf.String()); err != nil {
		return nil, &InvalidProfileError{Name: profileName, Reason: fmt.Sprintf("%s is not valid shell: %v", field, err)}
	}
	return tmpl, nil
}

// render executes a template that already passed compileCommand.
// An execution error yields a failed command.
func render(tmpl *template.Template, vars commandVars) Command {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return Failed(fmt.Errorf("render %s command: %w", tmpl.Name(), err))
	}
	return Shell(buf.String())
}
