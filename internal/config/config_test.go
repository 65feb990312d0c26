package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("valid config file", func(t *testing.T) {
		path := writeConfig(t, `
port: 9090
debug: true
credentials: "tok_a,tok_b"
database:
  type: sqlite
  dsn: test.db
optimizer:
  model: qwen-plus
`)
		cfg, warning, err := Load(path)
		require.NoError(t, err)
		assert.Empty(t, warning)
		assert.Equal(t, 9090, cfg.Port)
		assert.True(t, cfg.Debug)
		assert.Equal(t, "tok_a,tok_b", cfg.Credentials)
		assert.Equal(t, "sqlite", cfg.Database.Type)
		assert.Equal(t, "qwen-plus", cfg.Optimizer.Model)
		assert.Equal(t, defaultBasePrompt, cfg.Optimizer.BasePrompt)
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, warning, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Contains(t, warning, "port not set")
		assert.Equal(t, defaultPort, cfg.Port)
		assert.Equal(t, "sqlite", cfg.Database.Type)
		assert.Equal(t, "zimage.db", cfg.Database.DSN)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "port: 8080\n  debug: true")
		_, _, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("ZIMAGE_PORT", "7000")
		t.Setenv("ZIMAGE_CREDENTIALS", "env_tok")
		t.Setenv("ZIMAGE_DATABASE_TYPE", "postgres")
		t.Setenv("ZIMAGE_DATABASE_DSN", "host=localhost dbname=zimage")

		path := writeConfig(t, "port: 9090\ncredentials: file_tok\n")
		cfg, _, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Port)
		assert.Equal(t, "env_tok", cfg.Credentials)
		assert.Equal(t, "postgres", cfg.Database.Type)
	})

	t.Run("non-sqlite type requires dsn", func(t *testing.T) {
		path := writeConfig(t, "database:\n  type: mysql\n")
		_, _, err := Load(path)
		assert.Error(t, err)
	})
}
