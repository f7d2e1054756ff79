// SPDX-License-Identifier: MPL-2.0

package profile

// Built-in language identifiers.
const (
	Perl   = "perl"
	Python = "python"
)

// Builtins returns fresh instances of the built-in profiles in registration order.
func Builtins() []Profile {
	return []Profile{PerlProfile(), PythonProfile()}
}

// PerlProfile runs prove against t/ (or the project root) with a syntax-check fallback.
func PerlProfile() *Definition {
	return &Definition{
		ID:         Perl,
		Extensions: []string{".pl", ".pm", ".cgi", ".plx", ".pls", ".psgi", ".fcgi"},
		BaseImage:  "perl:5.38",
		Port:       5000,
		Test: func(workspace string) Command {
			return Shell("cd " + quoteWord(workspace) + " && " +
				"if [ -d t ]; then " +
				"prove -r t || prove -r . || " +
				"(echo 'prove failed; fallback to syntax check'; " +
				"find . -name '*.pl' -print0 | xargs -0 -n1 perl -c); " +
				"else " +
				"prove -r . || " +
				"(echo 'prove failed; fallback to syntax check'; " +
				"find . -name '*.pl' -print0 | xargs -0 -n1 perl -c); " +
				"fi")
		},
		ContractTest: func(_, _, workspace string) Command {
			return Shell("cd " + quoteWord(workspace) + " && " +
				"export PERL5LIB=/code/lib:/code:$PERL5LIB; " +
				"if [ -d t ]; then " +
				"prove -r t || prove -r .; " +
				"else " +
				"prove -r .; " +
				"fi")
		},
		Scaffold: scaffoldPerl,
	}
}

// PythonProfile installs requirements.txt when present and runs pytest with a compileall fallback.
func PythonProfile() *Definition {
	return &Definition{
		ID:         Python,
		Extensions: []string{".py"},
		BaseImage:  "python:3.12-slim",
		Port:       8000,
		Build: func(workspace string) (Command, bool) {
			return Shell("cd " + quoteWord(workspace) + " && " +
				"if [ -f requirements.txt ]; then " +
				"pip install -r requirements.txt; " +
				"else " +
				"echo 'No requirements.txt; skipping dependency install'; " +
				"fi"), true
		},
		Test: func(workspace string) Command {
			return Shell("cd " + quoteWord(workspace) + " && " +
				"if [ -d tests ] || ls test_*.py *_test.py 1>/dev/null 2>&1; then " +
				"python -m pytest || " +
				"(echo 'pytest failed; fallback to syntax check'; python -m compileall .); " +
				"else " +
				"echo 'No tests/ or test_*.py found; running compileall only'; " +
				"python -m compileall .; " +
				"fi")
		},
		ContractTest: func(_, _, workspace string) Command {
			return Shell("cd " + quoteWord(workspace) + " && " +
				"export PYTHONPATH=/code:$PYTHONPATH; " +
				"if [ -d tests ] || ls test_*.py *_test.py 1>/dev/null 2>&1; then " +
				"python -m pytest; " +
				"else " +
				"echo 'No tests found in harness repo'; " +
				"exit 1; " +
				"fi")
		},
		Scaffold: scaffoldPython,
	}
}
