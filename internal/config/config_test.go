package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotator.yaml")
	writeFile(t, path, `
backend:
  url: http://backend:8080/api
  timeout: 5s
logLevel: debug
undo:
  maxItems: 20
tools:
  brush:
    radius: 12
  wand:
    threshold: 40
shortcuts:
  undo: Control+y
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8080/api", cfg.Backend.URL)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 20, cfg.Undo.MaxItems)
	assert.Equal(t, 12.0, cfg.Tools.Brush.Radius)
	assert.Equal(t, "white", cfg.Tools.Brush.Color, "unset keys keep defaults")
	assert.Equal(t, 40, cfg.Tools.Wand.Threshold)
	assert.Equal(t, 30, cfg.Tools.Wand.Blur)
	assert.Equal(t, "Control+y", cfg.Shortcuts["undo"])
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvBackendURL, "https://data.example.com/api")
	t.Setenv(EnvLogLevel, "WARN")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://data.example.com/api", cfg.Backend.URL)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "bad.yaml")
	writeFile(t, path, "logLevel: loud\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogLevel")

	writeFile(t, path, "viewport:\n  marginX: 2\n")
	_, err = Load(path)
	assert.Error(t, err)

	writeFile(t, path, "backend: [1, 2\n")
	_, err = Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotator.yaml")
	writeFile(t, path, "logLevel: info\n")
	initial, err := Load(path)
	require.NoError(t, err)

	w := NewWatcher(path, initial, nil)
	w.SetDebounce(20 * time.Millisecond)
	changed := make(chan *Config, 4)
	w.OnChange(func(c *Config) { changed <- c })
	require.NoError(t, w.Start())
	defer w.Stop()

	writeFile(t, path, "logLevel: info\nundo:\n  maxItems: 7\n")

	select {
	case cfg := <-changed:
		assert.Equal(t, 7, cfg.Undo.MaxItems)
		assert.Equal(t, 7, w.Current().Undo.MaxItems)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}
}

func TestWatcherIgnoresInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotator.yaml")
	writeFile(t, path, "logLevel: info\n")
	initial, err := Load(path)
	require.NoError(t, err)

	w := NewWatcher(path, initial, nil)
	w.SetDebounce(10 * time.Millisecond)
	calls := make(chan struct{}, 4)
	w.OnChange(func(*Config) { calls <- struct{}{} })
	require.NoError(t, w.Start())

	writeFile(t, path, "logLevel: shout\n")
	time.Sleep(200 * time.Millisecond)
	w.Stop()

	assert.Empty(t, calls)
	assert.Same(t, initial, w.Current())
}
