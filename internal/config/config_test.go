// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlbe/mlbe-runner/internal/issue"
)

const testConfigDir = "/home/dev/.config/mlbe"

// testEnv returns a lookup function backed by a map.
func testEnv(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func newTestProvider(t *testing.T, files map[string]string, env map[string]string) *FileProvider {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	return NewProvider(WithFs(fs), WithLookupEnv(testEnv(env)))
}

func load(t *testing.T, p *FileProvider, opts LoadOptions) (*Config, string, error) {
	t.Helper()
	if opts.ConfigDirPath == "" {
		opts.ConfigDirPath = testConfigDir
	}
	if opts.BaseDir == "" {
		opts.BaseDir = "/work"
	}
	return p.LoadWithSource(context.Background(), opts)
}

func TestLoad_DefaultsWhenNothingConfigured(t *testing.T) {
	t.Parallel()

	cfg, path, err := load(t, newTestProvider(t, nil, nil), LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ConfigFileLookupOrder(t *testing.T) {
	t.Parallel()

	userFile := filepath.Join(testConfigDir, "config.cue")
	localFile := "/work/mlbe.cue"

	t.Run("user config dir wins", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider(t, map[string]string{
			userFile:  `deploy: base_port: 20000`,
			localFile: `deploy: base_port: 30000`,
		}, nil)
		cfg, path, err := load(t, p, LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, userFile, path)
		assert.Equal(t, 20000, cfg.Deploy.BasePort)
	})

	t.Run("local file fallback", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider(t, map[string]string{localFile: `deploy: base_port: 30000`}, nil)
		cfg, path, err := load(t, p, LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, localFile, path)
		assert.Equal(t, 30000, cfg.Deploy.BasePort)
	})

	t.Run("explicit path", func(t *testing.T) {
		t.Parallel()
		p := newTestProvider(t, map[string]string{
			userFile:         `deploy: base_port: 20000`,
			"/etc/mlbe.cue": `container: engine: "docker"`,
		}, nil)
		cfg, path, err := load(t, p, LoadOptions{ConfigFilePath: "/etc/mlbe.cue"})
		require.NoError(t, err)
		assert.Equal(t, "/etc/mlbe.cue", path)
		assert.Equal(t, ContainerEngineDocker, cfg.Container.Engine)
		assert.Equal(t, DefaultBasePort, cfg.Deploy.BasePort, "user file is not merged when a path is given")
	})
}

func TestLoad_FullFile(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, map[string]string{"/work/mlbe.cue": `
container: {
	engine:  "docker"
	binary:  "/usr/local/bin/docker"
	network: "mlbe"
	mounts: ["/srv/cache/pip:/root/.cache/pip", "/srv/fixtures:/fixtures:ro"]
}
git: {
	default_revision: "develop"
	token:            "ghp_file"
}
workspace: root: "/srv/ws"
deploy: {
	build_attempts: 3
	build_backoff:  "500ms"
}
catalog: file: "catalog.yaml"
archive: {
	endpoint: "minio:9000"
	bucket:   "mlbe-runs"
	use_ssl:  true
}
profiles: files: ["extra.toml", "more.yaml"]
ui: color_scheme: "dark"
`}, nil)

	cfg, _, err := load(t, p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, ContainerConfig{
		Engine:  ContainerEngineDocker,
		Binary:  "/usr/local/bin/docker",
		Network: "mlbe",
		Mounts:  []string{"/srv/cache/pip:/root/.cache/pip", "/srv/fixtures:/fixtures:ro"},
	}, cfg.Container)
	assert.Equal(t, GitConfig{Binary: "git", Token: "ghp_file", DefaultRevision: "develop"}, cfg.Git)
	assert.Equal(t, "/srv/ws", cfg.Workspace.Root)
	assert.Equal(t, DefaultServiceRoot, cfg.Workspace.ServiceRoot)
	assert.Equal(t, DeployConfig{BasePort: DefaultBasePort, BuildAttempts: 3, BuildBackoff: 500 * time.Millisecond}, cfg.Deploy)
	assert.Equal(t, "catalog.yaml", cfg.Catalog.File)
	assert.True(t, cfg.Archive.UseSSL)
	assert.Equal(t, "mlbe-runs", cfg.Archive.Bucket)
	assert.Equal(t, []string{"extra.toml", "more.yaml"}, cfg.Profiles.Files)
	assert.Equal(t, ColorSchemeDark, cfg.UI.ColorScheme)
}

func TestLoad_Precedence(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"/work/mlbe.cue": `deploy: base_port: 20000
container: network: "from-file"
git: default_revision: "from-file"`,
		"/work/.env": `MLBE_DEPLOY_BASE_PORT=21000
MLBE_CONTAINER_NETWORK=from-dotenv
MLBE_UI_VERBOSE=true
# comment
MLBE_PROFILES_FILES=a.toml,b.yaml
`,
	}
	env := map[string]string{
		"MLBE_DEPLOY_BASE_PORT": "22000",
		"MLBE_CONTAINER_ENGINE": "docker",
	}

	cfg, _, err := load(t, newTestProvider(t, files, env), LoadOptions{
		Overrides: map[string]any{"deploy.build_attempts": 4},
	})
	require.NoError(t, err)

	assert.Equal(t, 22000, cfg.Deploy.BasePort, "process env beats .env and file")
	assert.Equal(t, "from-dotenv", cfg.Container.Network, ".env beats file")
	assert.Equal(t, "from-file", cfg.Git.DefaultRevision, "file beats defaults")
	assert.Equal(t, ContainerEngineDocker, cfg.Container.Engine)
	assert.True(t, cfg.UI.Verbose)
	assert.Equal(t, 4, cfg.Deploy.BuildAttempts, "overrides apply last")
	assert.Equal(t, []string{"a.toml", "b.yaml"}, cfg.Profiles.Files)
}

func TestLoad_TokenFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		env   map[string]string
		files map[string]string
		want  string
	}{
		{name: "none"},
		{
			name: "explicit wins",
			env:  map[string]string{"MLBE_GIT_TOKEN": "mlbe", "GITHUB_TOKEN": "gh"},
			want: "mlbe",
		},
		{
			name: "github token first",
			env:  map[string]string{"GITHUB_TOKEN": "gh", "GH_TOKEN": "cli", "GITHUB_PAT": "pat"},
			want: "gh",
		},
		{
			name: "blank github token skipped",
			env:  map[string]string{"GITHUB_TOKEN": " ", "GITHUB_PAT": "pat"},
			want: "pat",
		},
		{
			name:  "from dotenv",
			files: map[string]string{"/work/.env": "GH_TOKEN=\"cli-token\"\n"},
			want:  "cli-token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, _, err := load(t, newTestProvider(t, tt.files, tt.env), LoadOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Git.Token)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[string]string
		env   map[string]string
		opts  LoadOptions
		want  string
	}{
		{
			name: "explicit file missing",
			opts: LoadOptions{ConfigFilePath: "/nope.cue"},
			want: "config file not found",
		},
		{
			name:  "invalid cue syntax",
			files: map[string]string{"/work/mlbe.cue": `deploy: {`},
			want:  "load configuration",
		},
		{
			name:  "schema violation",
			files: map[string]string{"/work/mlbe.cue": `deploy: base_port: 70000`},
			want:  "load configuration",
		},
		{
			name:  "unknown field",
			files: map[string]string{"/work/mlbe.cue": `deploy: workers: 2`},
			want:  "load configuration",
		},
		{
			name: "invalid env override",
			env:  map[string]string{"MLBE_CONTAINER_ENGINE": "lxc"},
			want: "invalid container engine",
		},
		{
			name: "explicit env file missing",
			opts: LoadOptions{EnvFile: "/work/prod.env"},
			want: "env file not found",
		},
		{
			name: "invalid options",
			opts: LoadOptions{BaseDir: "  "},
			want: "invalid load options",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, _, err := load(t, newTestProvider(t, tt.files, tt.env), tt.opts)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_ActionableErrors(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, map[string]string{"/work/mlbe.cue": `ui: color_scheme: "neon"`}, nil)
	_, _, err := load(t, p, LoadOptions{})
	require.Error(t, err)

	var ae *issue.ActionableError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, issue.Resource{Kind: issue.ResourceFile, Name: "/work/mlbe.cue"}, ae.Resource)
	assert.NotEmpty(t, ae.Suggestions)
	got := issue.IssueFor(err)
	require.NotNil(t, got)
	assert.Equal(t, issue.ConfigLoadFailedId, got.Id())

	_, _, err = load(t, newTestProvider(t, nil, map[string]string{"MLBE_DEPLOY_BUILD_ATTEMPTS": "99"}), LoadOptions{})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, ErrInvalidField)
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestProvider(t, nil, nil).Load(ctx, LoadOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfigDir(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("XDG lookup is Linux-specific")
	}

	dir, err := configDir(testEnv(map[string]string{"XDG_CONFIG_HOME": "/tmp/test-xdg-config"}))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/test-xdg-config", AppName), dir)

	dir, err = configDir(testEnv(nil))
	require.NoError(t, err)
	assert.Equal(t, AppName, filepath.Base(dir))
	assert.Equal(t, ".config", filepath.Base(filepath.Dir(dir)))
}

func TestEnvName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "MLBE_DEPLOY_BASE_PORT", EnvName("deploy.base_port"))
	assert.Equal(t, "MLBE_CONTAINER_ENGINE", EnvName("container.engine"))
	assert.Equal(t, "MLBE_CATALOG_DATABASE_URL", EnvName("catalog.database_url"))
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	path := filepath.Join(testConfigDir, "config.cue")

	written, err := CreateDefaultConfig(fs, path)
	require.NoError(t, err)
	assert.True(t, written)

	require.NoError(t, afero.WriteFile(fs, path, []byte(`ui: verbose: true`), 0o644))
	written, err = CreateDefaultConfig(fs, path)
	require.NoError(t, err)
	assert.False(t, written, "existing file is kept")

	fresh := afero.NewMemMapFs()
	_, err = CreateDefaultConfig(fresh, path)
	require.NoError(t, err)
	p := NewProvider(WithFs(fresh), WithLookupEnv(testEnv(nil)))
	cfg, src, err := load(t, p, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, path, src)
	assert.Equal(t, DefaultConfig(), cfg, "generated file round-trips to the defaults")
}
