package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"WRANGLER_CONFIG_PATH", "DB", "WRANGLER_TURTLE_ADDR", "WRANGLER_CLIENT_ADDR", "WRANGLER_STATUS_ADDR", "WRANGLER_LOG_LEVEL"} {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "0.0.0.0:8080", cfg.TurtleAddr)
	require.Equal(t, "0.0.0.0:8081", cfg.ClientAddr)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRequiresDBPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("WRANGLER_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WRANGLER_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DB", "/tmp/turtles.sqlite")
	t.Setenv("WRANGLER_TURTLE_ADDR", "127.0.0.1:9090")
	t.Setenv("WRANGLER_STATUS_ADDR", "127.0.0.1:9999")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/turtles.sqlite", cfg.DBPath)
	require.Equal(t, "127.0.0.1:9090", cfg.TurtleAddr)
	require.Equal(t, "127.0.0.1:9999", cfg.StatusAddr)
	require.Equal(t, "0.0.0.0:8081", cfg.ClientAddr)
}

func TestLoadReadsConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /var/lib/turtles.db\nlog_level: debug\n"), 0o644))
	t.Setenv("WRANGLER_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/var/lib/turtles.db", cfg.DBPath)
	require.Equal(t, "debug", cfg.LogLevel)
}
