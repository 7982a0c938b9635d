package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{envExportsRoot, envDBPath, envViewer, envLogLevel} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "WhatsApp"), cfg.ExportsRoot)
	assert.Equal(t, filepath.Join(home, ".config", "wcv", "wcv.db"), cfg.DBPath)
	assert.Equal(t, "", cfg.ViewerName)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_FileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	path := Path(home)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
exports_root = "~/chats"
viewer_name = "Alice"
log_level = "info"
`), 0o644))

	t.Run("file values", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "chats"), cfg.ExportsRoot)
		assert.Equal(t, "Alice", cfg.ViewerName)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv(envViewer, "Bob")
		t.Setenv(envDBPath, "~/x.db")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "Bob", cfg.ViewerName)
		assert.Equal(t, filepath.Join(home, "x.db"), cfg.DBPath)
	})
}

func TestLoad_BadFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	path := Path(home)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("viewer_name = "), 0o644))

	_, err := Load()
	assert.Error(t, err)
}
