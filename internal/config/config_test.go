package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sherlock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Root)
	assert.False(t, cfg.StrictPhases)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.Empty(t, cfg.AuditPath())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `root: /srv/incidents
strict_phases: true
log:
  level: debug
audit:
  path: audit/decisions.jsonl
watch:
  debounce: 1s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/incidents", cfg.Root)
	assert.True(t, cfg.StrictPhases)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, filepath.Join("/srv/incidents", "audit/decisions.jsonl"), cfg.AuditPath())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv("SHERLOCK_LOG_LEVEL", "warn")
	t.Setenv("SHERLOCK_STRICT_PHASES", "true")
	t.Setenv("SHERLOCK_UNRELATED", "x")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.StrictPhases)
}

func TestDefaultFileComesFromWorkingDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultFile), []byte("strict_phases: true\n"), 0o644))
	cwd := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cwd, DefaultFile), []byte("root: "+root+"\nlog:\n  level: debug\n"), 0o644))
	t.Chdir(cwd)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.StrictPhases, "file under root must not be read")
}

func TestExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestInvalidValues(t *testing.T) {
	path := writeConfig(t, "log:\n  level: verbose\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Level")
}

func TestAbsoluteAuditPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Audit.Path = "/var/log/sherlock.jsonl"
	assert.Equal(t, "/var/log/sherlock.jsonl", cfg.AuditPath())
}
