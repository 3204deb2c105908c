package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, defaultServerURL, cfg.ServerURL)
	require.NotEmpty(t, cfg.HomeDir)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "text", cfg.Log.Format)
	require.Nil(t, cfg.ExplicitWidget())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: http://backend:9000
portal_url: http://portal:9001
widget: true
log:
  level: warn
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://backend:9000", cfg.ServerURL)
	require.Equal(t, "http://portal:9001", cfg.PortalURL)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)

	explicit := cfg.ExplicitWidget()
	require.NotNil(t, explicit)
	require.True(t, *explicit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://from-file\n"), 0o600))

	t.Setenv("PULSE_SERVER_URL", "http://from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://from-env", cfg.ServerURL)
}

func TestLoadExplicitWidgetFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("widget: false\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	explicit := cfg.ExplicitWidget()
	require.NotNil(t, explicit)
	require.False(t, *explicit)
}

func TestDebugRaisesLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: true\nlog:\n  level: error\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
