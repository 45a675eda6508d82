package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.Equal(t, 800*time.Millisecond, s.DebounceWindow)
	assert.Equal(t, 500, s.MaxAutoExpandRows)
	assert.Equal(t, 15*time.Second, s.RequestTimeout)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	s, err := Load([]byte(`
grid:
  debounce_ms: 250
`))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, s.DebounceWindow)
	assert.Equal(t, 500, s.MaxAutoExpandRows, "unset keys keep defaults")

	_, err = Load([]byte("{broken"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	s, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)

	s, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), s, "missing file keeps defaults")

	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grid:\n  max_auto_expand_rows: 50\n"), 0o644))
	s, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 50, s.MaxAutoExpandRows)
}
