// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// These tests verify Go struct JSON tags match CUE schema field names.
// They catch misalignments at CI time, preventing silent parsing failures.

// extractCUEFields extracts all field names from a CUE struct definition.
// It returns a map of field names to whether the field is optional.
// Nested struct fields are not included; only top-level fields of the given definition.
func extractCUEFields(t *testing.T, val cue.Value) map[string]bool {
	t.Helper()

	fields := make(map[string]bool)

	// Iterate over the struct fields
	iter, err := val.Fields(cue.Definitions(false), cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate CUE fields: %v", err)
	}

	for iter.Next() {
		sel := iter.Selector()
		// Skip hidden fields (start with _) and definitions (start with #)
		labelType := sel.LabelType()
		if labelType.IsHidden() || sel.IsDefinition() {
			continue
		}

		// Skip fields that are explicitly set to bottom (_|_) - these are error constraints
		// used to explicitly forbid certain field names.
		// We detect these by checking if the error message contains "explicit error (_|_ literal)".
		// This distinguishes between:
		// - "explicitly _|_" → skip, not a real field
		// - "constraint evaluation error" → include, valid field
		fieldValue := iter.Value()
		if fieldValue.Kind() == cue.BottomKind && fieldValue.Err() != nil {
			errMsg := fieldValue.Err().Error()
			if strings.Contains(errMsg, "explicit error (_|_ literal)") {
				continue
			}
		}

		// The selector string may include the "?" suffix for optional fields
		// We need to strip it to get the actual field name
		fieldName := sel.String()
		fieldName = strings.TrimSuffix(fieldName, "?")
		isOptional := iter.IsOptional()
		fields[fieldName] = isOptional
	}

	return fields
}

// extractGoJSONTags extracts all JSON field names from a Go struct using reflection.
// It returns a map of JSON tag names to whether the field has "omitempty".
// Fields with json:"-" are excluded.
// Embedded structs are not expanded; only direct fields are returned.
func extractGoJSONTags(t *testing.T, typ reflect.Type) map[string]bool {
	t.Helper()

	// Dereference pointer types
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		t.Fatalf("expected struct type, got %s", typ.Kind())
	}

	fields := make(map[string]bool)

	for i := range typ.NumField() {
		field := typ.Field(i)
		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" {
			// No json tag or explicitly excluded
			continue
		}

		// Parse the tag: "name,omitempty" or just "name"
		parts := strings.Split(tag, ",")
		name := parts[0]
		if name == "" || name == "-" {
			continue
		}

		hasOmitempty := slices.Contains(parts[1:], "omitempty")

		fields[name] = hasOmitempty
	}

	return fields
}

// assertFieldsSync verifies that CUE schema fields and Go struct JSON tags are in sync.
// It checks:
// 1. Every CUE field has a corresponding Go JSON tag
// 2. Every Go JSON tag has a corresponding CUE field
// 3. Optional/omitempty alignment (warning only, not a failure)
func assertFieldsSync(t *testing.T, structName string, cueFields, goFields map[string]bool) {
	t.Helper()

	// Check CUE fields exist in Go struct
	for field, isOptional := range cueFields {
		hasOmitempty, exists := goFields[field]
		if !exists {
			t.Errorf("[%s] CUE field %q not found in Go struct (missing JSON tag)", structName, field)
			continue
		}
		// Warn about optional/omitempty mismatch (not a hard failure)
		if isOptional && !hasOmitempty {
			t.Logf("[%s] Note: CUE field %q is optional but Go field lacks omitempty tag", structName, field)
		}
	}

	// Check Go fields exist in CUE schema
	for field := range goFields {
		if _, exists := cueFields[field]; !exists {
			t.Errorf("[%s] Go JSON tag %q not found in CUE schema (missing CUE field)", structName, field)
		}
	}
}

// getCUESchema compiles the embedded CUE schema and returns the context and compiled value.
func getCUESchema(t *testing.T) (cue.Value, *cue.Context) {
	t.Helper()

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema)
	if schema.Err() != nil {
		t.Fatalf("failed to compile CUE schema: %v", schema.Err())
	}

	return schema, ctx
}

// lookupDefinition looks up a CUE definition by path (e.g., "#Config").
func lookupDefinition(t *testing.T, schema cue.Value, defPath string) cue.Value {
	t.Helper()

	def := schema.LookupPath(cue.ParsePath(defPath))
	if def.Err() != nil {
		t.Fatalf("failed to lookup CUE definition %s: %v", defPath, def.Err())
	}

	return def
}

func TestSchemaSync(t *testing.T) {
	t.Parallel()

	tests := []struct {
		def string
		typ reflect.Type
	}{
		{"#Config", reflect.TypeFor[Config]()},
		{"#ContainerConfig", reflect.TypeFor[ContainerConfig]()},
		{"#GitConfig", reflect.TypeFor[GitConfig]()},
		{"#WorkspaceConfig", reflect.TypeFor[WorkspaceConfig]()},
		{"#DeployConfig", reflect.TypeFor[DeployConfig]()},
		{"#CatalogConfig", reflect.TypeFor[CatalogConfig]()},
		{"#ArchiveConfig", reflect.TypeFor[ArchiveConfig]()},
		{"#ProfilesConfig", reflect.TypeFor[ProfilesConfig]()},
		{"#UIConfig", reflect.TypeFor[UIConfig]()},
	}

	for _, tt := range tests {
		t.Run(tt.def, func(t *testing.T) {
			t.Parallel()
			schema, _ := getCUESchema(t)
			cueFields := extractCUEFields(t, lookupDefinition(t, schema, tt.def))
			goFields := extractGoJSONTags(t, tt.typ)

			assertFieldsSync(t, tt.typ.Name(), cueFields, goFields)
		})
	}
}

// validateCUE compiles CUE test data against the embedded config schema's #Config definition.
// It returns nil if the data is valid, or an error describing why validation failed.
func validateCUE(t *testing.T, cueData string) error {
	t.Helper()

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		t.Fatalf("failed to compile schema: %v", schemaValue.Err())
	}

	userValue := ctx.CompileString(cueData)
	if userValue.Err() != nil {
		return fmt.Errorf("CUE compile error: %w", userValue.Err())
	}

	schemaDef := schemaValue.LookupPath(cue.ParsePath("#Config"))
	if schemaDef.Err() != nil {
		t.Fatalf("failed to lookup #Config: %v", schemaDef.Err())
	}

	unified := schemaDef.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("CUE validation error: %w", err)
	}

	return nil
}

func TestSchemaConstraints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"empty file", ``, false},
		{"engine docker", `container: engine: "docker"`, false},
		{"engine unknown", `container: engine: "lxc"`, true},
		{"blank binary", `container: binary: "   "`, true},
		{"network with space", `container: network: "my net"`, true},
		{"revision tag", `git: default_revision: "v1.2.0"`, false},
		{"revision with space", `git: default_revision: "main branch"`, true},
		{"base port in range", `deploy: base_port: 20000`, false},
		{"base port too high", `deploy: base_port: 70000`, true},
		{"base port zero", `deploy: base_port: 0`, true},
		{"build attempts zero", `deploy: build_attempts: 0`, true},
		{"build attempts string", `deploy: build_attempts: "3"`, true},
		{"build backoff", `deploy: build_backoff: "1m30s"`, false},
		{"build backoff fractional", `deploy: build_backoff: "1.5s"`, false},
		{"build backoff without unit", `deploy: build_backoff: "30"`, true},
		{"extra mounts", `container: mounts: ["/srv/cache/pip:/root/.cache/pip", "/data:/data:ro"]`, false},
		{"mount without target", `container: mounts: ["/srv/cache"]`, true},
		{"mount relative target", `container: mounts: ["/srv/cache:cache"]`, true},
		{"catalog yaml", `catalog: file: "catalog.yml"`, false},
		{"catalog json", `catalog: file: "catalog.json"`, true},
		{"database url", `catalog: database_url: "postgres://u:p@db:5432/mlbe"`, false},
		{"database url mysql", `catalog: database_url: "mysql://db/mlbe"`, true},
		{"bucket name", `archive: bucket: "mlbe-runs"`, false},
		{"bucket uppercase", `archive: bucket: "MLBE"`, true},
		{"endpoint with scheme", `archive: endpoint: "http://minio:9000"`, true},
		{"profile files", `profiles: files: ["go.toml", "ruby.yaml"]`, false},
		{"profile file json", `profiles: files: ["go.json"]`, true},
		{"color scheme", `ui: color_scheme: "dark"`, false},
		{"color scheme unknown", `ui: color_scheme: "solarized"`, true},
		{"unknown section", `workers: 4`, true},
		{"unknown field", `deploy: port: 80`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := validateCUE(t, tt.data)
			if tt.wantErr && err == nil {
				t.Errorf("expected %q to be rejected", tt.data)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected %q to be accepted, got: %v", tt.data, err)
			}
		})
	}
}

func TestGenerateCUE_ValidatesAgainstSchema(t *testing.T) {
	t.Parallel()

	full := DefaultConfig()
	full.Container.Binary = "/usr/bin/podman"
	full.Git.Token = "ghp_x"
	full.Catalog = CatalogConfig{File: "catalog.yaml", DatabaseURL: "postgres://db/mlbe"}
	full.Archive = ArchiveConfig{Endpoint: "minio:9000", Bucket: "mlbe-runs", AccessKey: "a", SecretKey: "s"}
	full.Profiles.Files = []string{"extra.toml"}
	full.Container.Mounts = []string{"/srv/cache/pip:/root/.cache/pip:ro"}
	full.Deploy.BuildBackoff = 1500 * time.Millisecond

	for name, cfg := range map[string]*Config{"defaults": DefaultConfig(), "full": full} {
		if err := validateCUE(t, GenerateCUE(cfg)); err != nil {
			t.Errorf("%s: generated CUE does not validate: %v\n%s", name, err, GenerateCUE(cfg))
		}
	}
}
