package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := LoadFrom(filepath.Join(dir, "settings.json"), filepath.Join(dir, "settings.local.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultFetchConcurrency, s.FetchConcurrency)
	assert.False(t, s.AssumeYes)
	assert.Empty(t, s.Editor)
}

func TestLoadFrom_LocalOverrides(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	base := filepath.Join(dir, "settings.json")
	local := filepath.Join(dir, "settings.local.json")

	require.NoError(t, os.WriteFile(base, []byte(`{"log_level":"debug","editor":"nano","assume_yes":true}`), 0o600))
	require.NoError(t, os.WriteFile(local, []byte(`{"editor":"vim","assume_yes":false,"fetch_concurrency":2}`), 0o600))

	s, err := LoadFrom(base, local)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "vim", s.Editor)
	assert.False(t, s.AssumeYes)
	assert.Equal(t, 2, s.FetchConcurrency)
}

func TestLoadFrom_EmptyLocalValuesKeepBase(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	base := filepath.Join(dir, "settings.json")
	local := filepath.Join(dir, "settings.local.json")

	require.NoError(t, os.WriteFile(base, []byte(`{"log_level":"warn","editor":"nano"}`), 0o600))
	require.NoError(t, os.WriteFile(local, []byte(`{"log_level":"","editor":"","fetch_concurrency":0}`), 0o600))

	s, err := LoadFrom(base, local)
	require.NoError(t, err)
	assert.Equal(t, "warn", s.LogLevel)
	assert.Equal(t, "nano", s.Editor)
	assert.Equal(t, DefaultFetchConcurrency, s.FetchConcurrency)
}

func TestLoadFrom_InvalidJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	base := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(base, []byte(`{not json`), 0o600))

	_, err := LoadFrom(base, filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}
