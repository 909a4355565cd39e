package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.json")
	p := LoadFrom(path)

	_, ok := p.Int(KeyLastImage)
	assert.False(t, ok)
	assert.True(t, p.Bool(KeyTooltips, true))

	p.SetInt(KeyLastImage, 42)
	p.SetBool(KeyTooltips, false)
	p.SetFloat(KeyWindowWidth, 1280)
	require.NoError(t, p.Save())

	q := LoadFrom(path)
	id, ok := q.Int(KeyLastImage)
	require.True(t, ok)
	assert.Equal(t, 42, id)
	assert.False(t, q.Bool(KeyTooltips, true))
	assert.Equal(t, 1280.0, q.FloatWithFallback(KeyWindowWidth, 0))
	assert.Equal(t, 600.0, q.FloatWithFallback(KeyWindowHeight, 600))
}

func TestCorruptFileGivesEmptyPrefs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	p := LoadFrom(path)
	assert.Equal(t, path, p.Path())
	p.SetBool(KeyTooltips, true)
	assert.True(t, p.Bool(KeyTooltips, false))
}
