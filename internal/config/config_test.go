package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mscherer/site-builder/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(writeConfig(t, "name: site\nbuilder: middleman\n"))
	require.NoError(t, err)

	assert.Equal(t, "site", cfg.Name)
	assert.Equal(t, "middleman", cfg.Builder)
	assert.Equal(t, DefaultGitVersion, cfg.GitVersion)
	assert.Equal(t, filepath.Join(home, "site"), cfg.CheckoutDir)
	assert.Equal(t, filepath.Join(home, ".ssh", "site_id.rsa"), cfg.SSHKey)
	assert.False(t, cfg.HasRemote())
	assert.False(t, cfg.UpdateSubmoduleHead)
	assert.Empty(t, cfg.BuildEnv)

	_, ok := cfg.RebuildInterval()
	assert.False(t, ok)
}

func TestLoad_FullConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SITE_REMOTE", "web@host:/srv/www")

	cfg, err := Load(writeConfig(t, `
name: site
builder: jekyll
remote: ${SITE_REMOTE}
git_version: production
regular_rebuild_interval: 24
update_submodule_head: true
notify:
  nats_url: nats://127.0.0.1:4222
daemon:
  interval: 30m
log:
  file: /var/log/builder/site.log
`))
	require.NoError(t, err)

	assert.Equal(t, "web@host:/srv/www", cfg.Remote)
	assert.True(t, cfg.HasRemote())
	assert.Equal(t, "production", cfg.GitVersion)
	assert.True(t, cfg.UpdateSubmoduleHead)
	assert.Equal(t, DefaultNotifySubject, cfg.Notify.Subject)
	assert.Equal(t, 30*time.Minute, cfg.DaemonInterval())
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)

	iv, ok := cfg.RebuildInterval()
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour, iv)
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	envPath := filepath.Join(t.TempDir(), "site.env")
	require.NoError(t, os.WriteFile(envPath, []byte("# comment\nFOO=bar\nQUOTED=\"x y\"\n"), 0o600))

	cfg, err := Load(writeConfig(t, "name: site\nbuilder: nikola\nenv_file: "+envPath+"\n"))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"FOO": "bar", "QUOTED": "x y"}, cfg.BuildEnv)
	_, set := os.LookupEnv("FOO")
	assert.False(t, set, "env file must not leak into the process environment")
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name    string
		path    func(t *testing.T) string
		field   string
		builder string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yml") },
		},
		{
			name: "directory",
			path: func(t *testing.T) string { return t.TempDir() },
		},
		{
			name:  "missing name",
			path:  func(t *testing.T) string { return writeConfig(t, "builder: jekyll\n") },
			field: "name",
		},
		{
			name:  "missing builder",
			path:  func(t *testing.T) string { return writeConfig(t, "name: site\n") },
			field: "builder",
		},
		{
			name:    "unknown builder",
			path:    func(t *testing.T) string { return writeConfig(t, "name: site\nbuilder: hugo\n") },
			builder: "hugo",
		},
		{
			name: "bad yaml",
			path: func(t *testing.T) string { return writeConfig(t, "name: [site\n") },
		},
		{
			name:  "bad daemon interval",
			path:  func(t *testing.T) string { return writeConfig(t, "name: site\nbuilder: planet\ndaemon:\n  interval: soon\n") },
			field: "daemon.interval",
		},
		{
			name:  "missing env file",
			path:  func(t *testing.T) string { return writeConfig(t, "name: site\nbuilder: planet\nenv_file: /nonexistent/site.env\n") },
			field: "env_file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			require.Error(t, err)

			ce, ok := errors.AsClassified(err)
			require.True(t, ok, "expected classified error, got %T", err)
			assert.Equal(t, errors.CategoryConfig, ce.Category)
			if tt.field != "" {
				assert.Equal(t, tt.field, ce.Context["field"])
			}
			if tt.builder != "" {
				assert.Equal(t, tt.builder, ce.Context["builder"])
			}
		})
	}
}

func TestValidateAuth(t *testing.T) {
	base := func(a *AuthConfig) *Config {
		return &Config{Name: "site", Builder: "jekyll", GitAuth: a}
	}

	assert.NoError(t, validateConfig(base(&AuthConfig{Type: AuthTypeSSH})))
	assert.NoError(t, validateConfig(base(&AuthConfig{Type: AuthTypeToken, Token: "t"})))
	assert.Error(t, validateConfig(base(&AuthConfig{Type: AuthTypeToken})))
	assert.Error(t, validateConfig(base(&AuthConfig{Type: AuthTypeBasic, Username: "u"})))
	assert.Error(t, validateConfig(base(&AuthConfig{Type: "kerberos"})))
	assert.True(t, (*AuthConfig)(nil).IsZero())
}

func TestResolvePaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg := &Config{Name: "site", CheckoutDir: "/srv/site", SSHKey: "/keys/site"}

	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	p, err := ResolvePaths(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000", p.LockDir)
	assert.Equal(t, filepath.Join(home, "status_site.yml"), p.StatusFile)
	assert.Equal(t, filepath.Join(home, "site.log"), p.RunLog)
	assert.Equal(t, "/srv/site", p.Checkout)
	assert.Equal(t, "/keys/site", p.SSHKey)

	t.Setenv("XDG_RUNTIME_DIR", "")
	p, err = ResolvePaths(cfg)
	require.NoError(t, err)
	assert.Equal(t, home, p.LockDir)
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, "x/y"), ExpandHome("~/x/y"))
	assert.Equal(t, "/abs", ExpandHome("/abs"))
	assert.Equal(t, "~other/x", ExpandHome("~other/x"))
}
