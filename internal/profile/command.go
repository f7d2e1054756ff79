// SPDX-License-Identifier: MPL-2.0

package profile

import (
	"errors"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ShellPath is the interpreter used for shell-form commands inside containers.
const ShellPath = "/bin/sh"

// ErrEmptyCommand is returned by Check for an absent command.
var ErrEmptyCommand = errors.New("command is empty")

// Command is either a shell script (interpreted by /bin/sh -lc inside the container)
// or an argument vector. The zero value is the absent command.
//
// A command that could not be produced carries its error instead; it is not
// zero and never renders.
type Command struct {
	script string
	argv   []string
	err    error
}

// Shell returns a shell-form command.
func Shell(script string) Command {
	return Command{script: script}
}

// Argv returns an argument-vector command.
func Argv(args ...string) Command {
	return Command{argv: append([]string(nil), args...)}
}

// Failed returns a command that could not be produced because of err.
func Failed(err error) Command {
	return Command{err: err}
}

// IsZero reports whether the command is absent.
func (c Command) IsZero() bool {
	return c.err == nil && strings.TrimSpace(c.script) == "" && len(c.argv) == 0
}

// Err returns the error that prevented the command from being produced.
func (c Command) Err() error { return c.err }

// Check returns nil when c can be rendered: its production error, or
// ErrEmptyCommand when it is absent.
func (c Command) Check() error {
	if c.err != nil {
		return c.err
	}
	if c.IsZero() {
		return ErrEmptyCommand
	}
	return nil
}

// IsShell reports whether the command is shell-form.
func (c Command) IsShell() bool {
	return c.argv == nil
}

// Script renders the command as shell text. Argument vectors are quoted word by word.
func (c Command) Script() string {
	if c.IsShell() {
		return c.script
	}
	words := make([]string, 0, len(c.argv))
	for _, a := range c.argv {
		words = append(words, quoteWord(a))
	}
	return strings.Join(words, " ")
}

// String implements fmt.Stringer.
func (c Command) String() string { return c.Script() }

// ContainerArgs returns the argv to hand to the container runtime after the image name.
// It returns nil for a command that fails Check.
func (c Command) ContainerArgs() []string {
	if c.Check() != nil {
		return nil
	}
	if c.IsShell() {
		return []string{ShellPath, "-lc", c.script}
	}
	return append([]string(nil), c.argv...)
}

// Chain joins the present commands with " && " into one shell command.
// Absent commands are skipped; a single present command is returned as-is.
// The first failed command is returned unchanged.
func Chain(cmds ...Command) Command {
	var present []Command
	for _, c := range cmds {
		if c.err != nil {
			return c
		}
		if !c.IsZero() {
			present = append(present, c)
		}
	}
	switch len(present) {
	case 0:
		return Command{}
	case 1:
		return present[0]
	}
	parts := make([]string, len(present))
	for i, c := range present {
		parts[i] = c.Script()
	}
	return Shell(strings.Join(parts, " && "))
}

func quoteWord(s string) string {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		// Only strings with NUL bytes cannot be quoted; keep them visible rather than dropping the word.
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return q
}

// ValidateShell parses script as POSIX shell and returns the first syntax error.
func ValidateShell(script string) error {
	_, err := syntax.NewParser(syntax.Variant(syntax.LangPOSIX)).Parse(strings.NewReader(script), "")
	return err
}
