// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

func TestLoadOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       LoadOptions
		wantFields int
	}{
		{name: "all empty", opts: LoadOptions{}},
		{name: "all valid", opts: LoadOptions{
			ConfigFilePath: "/tmp/config.cue",
			ConfigDirPath:  "/tmp/config",
			BaseDir:        "/tmp/base",
			EnvFile:        "/tmp/base/.env",
		}},
		{name: "config file path", opts: LoadOptions{ConfigFilePath: "   "}, wantFields: 1},
		{name: "config dir path", opts: LoadOptions{ConfigDirPath: "\t"}, wantFields: 1},
		{name: "base dir", opts: LoadOptions{BaseDir: "  \t  "}, wantFields: 1},
		{name: "env file", opts: LoadOptions{EnvFile: " "}, wantFields: 1},
		{name: "mixed", opts: LoadOptions{ConfigFilePath: " ", BaseDir: "/ok", EnvFile: "\n"}, wantFields: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.opts.Validate()
			if tt.wantFields == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, ErrInvalidLoadOptions) {
				t.Fatalf("error should wrap ErrInvalidLoadOptions, got: %v", err)
			}
			var loadErr *InvalidLoadOptionsError
			if !errors.As(err, &loadErr) {
				t.Fatalf("error should be *InvalidLoadOptionsError, got: %T", err)
			}
			if len(loadErr.FieldErrors) != tt.wantFields {
				t.Errorf("expected %d field errors, got %d", tt.wantFields, len(loadErr.FieldErrors))
			}
		})
	}
}

func TestInvalidLoadOptionsError_Error(t *testing.T) {
	t.Parallel()

	single := &InvalidLoadOptionsError{FieldErrors: []error{errors.New("base dir is blank")}}
	if got := single.Error(); got != "invalid load options: base dir is blank" {
		t.Errorf("Error() = %q", got)
	}
	multi := &InvalidLoadOptionsError{FieldErrors: []error{errors.New("a"), errors.New("b")}}
	if got := multi.Error(); got != "invalid load options: 2 field errors" {
		t.Errorf("Error() = %q", got)
	}
}
