package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at fresh temp dirs so no
// real config or .env leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".agrasandhani", "tasks.json"), cfg.DataPath)
	assert.Equal(t, filepath.Join(home, ".agrasandhani", "tasks.db"), cfg.SQLitePath)
	assert.Equal(t, BackendJSON, cfg.Backend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:8765", cfg.HTTPAddr)
	assert.Equal(t, "newest", cfg.ListOrder)
	assert.True(t, cfg.Watch)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("AGRASANDHANI_BACKEND", "sqlite")
	t.Setenv("AGRASANDHANI_LOG_LEVEL", "DEBUG")
	t.Setenv("AGRASANDHANI_DATA_PATH", "~/elsewhere/tasks.yaml")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(home, "elsewhere", "tasks.yaml"), cfg.DataPath)
}

func TestLoadDotEnv(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".env", []byte("AGRASANDHANI_HTTP_ADDR=0.0.0.0:9000\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("AGRASANDHANI_HTTP_ADDR") })

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTPAddr)
}

func TestLoadProjectConfigFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.MkdirAll(".agrasandhani", 0o755))
	body := "backend: memory\nlist_order: title\nwatch: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(".agrasandhani", "config.yaml"), []byte(body), 0o644))

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "title", cfg.ListOrder)
	assert.False(t, cfg.Watch)
}

func TestLoadExplicitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("format = \"toml\"\nlog_level = \"warn\"\n"), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "toml", cfg.Format)
	assert.Equal(t, "warn", cfg.LogLevel)

	_, err = Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	isolate(t)

	t.Setenv("AGRASANDHANI_BACKEND", "postgres")
	_, err := Load(viper.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend")

	t.Setenv("AGRASANDHANI_BACKEND", "json")
	t.Setenv("AGRASANDHANI_LOG_LEVEL", "loud")
	_, err = Load(viper.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logLevel")
}
