package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nestlab/hutch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 0, 0)
	s.Store["owner/repo"] = &types.LocalRepositoryEntry{
		RepositoryIndex: types.RepositoryIndex{Name: "repo", Priority: 5},
		Identifier:      "owner/repo",
		UserInstalled:   true,
	}

	errs := s.Flush()
	assert.Empty(t, errs)

	s2 := New(dir, 0, 0)
	loadErrs := s2.Load()
	assert.Empty(t, loadErrs)
	require.Contains(t, s2.Store, "owner/repo")
	assert.Equal(t, 5, s2.Store["owner/repo"].Priority)
	assert.True(t, s2.Store["owner/repo"].UserInstalled)
}

func TestLoadMissingFilesYieldsEmptyMaps(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 0, 0)
	errs := s.Load()
	assert.Empty(t, errs)
	assert.Empty(t, s.Store)
	assert.Empty(t, s.Index)
	assert.Empty(t, s.Pool)
}

func TestLoadQuarantinesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, storeFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(dir, 0, 0)
	errs := s.Load()
	assert.Contains(t, errs, storeFile)
	assert.Empty(t, s.Store)

	matches, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// Original corrupt file was moved, not left behind.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadIfExpiredThrottles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Hour, 0)
	firstErrs := s.Load()
	assert.Empty(t, firstErrs)

	s.Store["x"] = &types.LocalRepositoryEntry{Identifier: "x"}
	// Within the TTL window, LoadIfExpired must not re-read and wipe
	// the in-memory mutation above.
	secondErrs := s.LoadIfExpired()
	assert.Nil(t, secondErrs)
	assert.Contains(t, s.Store, "x")
}

func TestLoadIfExpiredReloadsAfterTTL(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, time.Nanosecond, 0)
	s.Load()
	s.Store["x"] = &types.LocalRepositoryEntry{Identifier: "x"}

	time.Sleep(2 * time.Millisecond)
	s.LoadIfExpired()
	assert.NotContains(t, s.Store, "x")
}

func TestCacheHitWithinTTL(t *testing.T) {
	s := New(t.TempDir(), 0, time.Hour)
	idx := &types.RepositoryIndex{Name: "repo"}
	s.PutCache("owner/repo", idx)

	got, ok := s.FetchCache("owner/repo")
	assert.True(t, ok)
	assert.Same(t, idx, got)
}

func TestCacheMissAfterTTL(t *testing.T) {
	s := New(t.TempDir(), 0, time.Nanosecond)
	s.PutCache("owner/repo", &types.RepositoryIndex{Name: "repo"})

	time.Sleep(2 * time.Millisecond)
	_, ok := s.FetchCache("owner/repo")
	assert.False(t, ok)
}

func TestCacheMissWhenAbsent(t *testing.T) {
	s := New(t.TempDir(), 0, time.Hour)
	_, ok := s.FetchCache("nothing/here")
	assert.False(t, ok)
}
