package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsFillsEveryDirectoryUnderBase(t *testing.T) {
	cfg := Defaults("/var/lib/hutch")
	assert.Equal(t, "/var/lib/hutch", cfg.BaseDir)
	assert.Equal(t, "/var/lib/hutch/drivers", cfg.DriversDir)
	assert.Equal(t, "/var/lib/hutch/root", cfg.RootDir)
	assert.Equal(t, "/var/lib/hutch/trash", cfg.TrashDir)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.Equal(t, DefaultStorageTTL, cfg.StorageTTL)
}

func TestLoadAppliesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hutch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_dir: `+dir+`
root_dir: `+dir+`/root
trash_dir: `+dir+`/trash
cache_ttl: 10s
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.BaseDir)
	assert.Equal(t, 10*time.Second, cfg.CacheTTL)
	assert.Equal(t, DefaultStorageTTL, cfg.StorageTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsMissingRequiredDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hutch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root_dir: ""
trash_dir: ""
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverridesCacheTTL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hutch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_dir: `+dir+`
root_dir: `+dir+`/root
trash_dir: `+dir+`/trash
`), 0o644))

	t.Setenv("HUTCH_CACHE_TTL", "42s")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42*time.Second, cfg.CacheTTL)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
