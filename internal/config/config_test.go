package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, "bazel", cfg.Bazel)
	assert.Equal(t, "execroot/__main__", cfg.MetadataSegment)
	assert.Equal(t, "external", cfg.ExternalDir)
	assert.Equal(t, 64, cfg.MaxAliasDepth)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, filepath.Join(root, ".bazelnav", "index.db"), cfg.Cache.Path)
	assert.Equal(t, 200*time.Millisecond, cfg.Debounce())
}

func TestLoad_WorkspaceFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeConfig(t, root, `
bazel = "/usr/local/bin/bazelisk"
exec_root = "/tmp/exec"
metadata_segment = ""
max_alias_depth = 8
log_level = "debug"

[cache]
enabled = true
path = "/tmp/cache.db"

[watch]
enabled = true
debounce_ms = 50
`)
	cfg, err := Load(root, "")
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/bazelisk", cfg.Bazel)
	assert.Equal(t, "/tmp/exec", cfg.ExecRoot)
	assert.Empty(t, cfg.MetadataSegment, "explicit empty disables the rewrite")
	assert.Equal(t, "external", cfg.ExternalDir)
	assert.Equal(t, 8, cfg.MaxAliasDepth)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/cache.db", cfg.Cache.Path)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 50*time.Millisecond, cfg.Debounce())

	level, err := ParseLevel(cfg.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_ExplicitPath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	p := writeConfig(t, t.TempDir(), "max_alias_depth = 3\n")
	cfg, err := Load(root, p)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxAliasDepth)

	_, err = Load(root, filepath.Join(root, "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_Rejects(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"unknown key":  "bazle = \"x\"\n",
		"bad depth":    "max_alias_depth = 0\n",
		"bad level":    "log_level = \"loud\"\n",
		"bad debounce": "[watch]\ndebounce_ms = -1\n",
		"bad syntax":   "bazel = \n",
		"empty cache":  "[cache]\nenabled = true\npath = \"\"\n",
	}
	for name, content := range cases {
		root := t.TempDir()
		writeConfig(t, root, content)
		_, err := Load(root, "")
		assert.Error(t, err, name)
	}
}
