package pkgindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nestlab/hutch/pkg/digest"
	"github.com/nestlab/hutch/pkg/driver"
	"github.com/nestlab/hutch/pkg/future"
	"github.com/nestlab/hutch/pkg/storage"
	"github.com/nestlab/hutch/pkg/transaction"
	"github.com/nestlab/hutch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fileDriver struct {
	name  string
	files map[string][]byte
	fail  map[string]bool
}

func newFileDriver(name string) *fileDriver {
	return &fileDriver{name: name, files: make(map[string][]byte), fail: make(map[string]bool)}
}

func (d *fileDriver) Name() string                               { return d.name }
func (d *fileDriver) Compatible(types.RepositoryIdentifier) bool { return true }
func (d *fileDriver) Exists(types.RepositoryIdentifier) bool     { return true }
func (d *fileDriver) FetchIndex(types.RepositoryIdentifier) (*types.RepositoryIndex, error) {
	return &types.RepositoryIndex{}, nil
}
func (d *fileDriver) FetchPackageFile(repo types.RepositoryIdentifier, name types.PackageName, path string) ([]byte, error) {
	key := repo + "/" + string(name) + "/" + path
	if d.fail[key] {
		return nil, errors.New("fetch failed")
	}
	data, ok := d.files[key]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func (d *fileDriver) put(repo types.RepositoryIdentifier, name types.PackageName, path string, data []byte) {
	d.files[repo+"/"+string(name)+"/"+path] = data
}

func newTestIndex(t *testing.T, d driver.Driver) (*Index, *storage.Storage) {
	t.Helper()
	s := storage.New(t.TempDir(), time.Hour, time.Hour)
	// Load once up front so the orchestrators' LoadIfExpired calls keep
	// the state each test seeds in memory instead of re-reading empty files.
	s.Load()
	reg := driver.NewRegistry()
	reg.Register(d)
	root := filepath.Join(t.TempDir(), "root")
	trash := filepath.Join(t.TempDir(), "trash")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(trash, 0o755))
	return New(s, reg, nil, root, trash), s
}

func TestBuildIndexCoversEveryRepoPublishingAName(t *testing.T) {
	d := newFileDriver("test")
	ix, s := newTestIndex(t, d)

	s.Store["repo/high"] = &types.LocalRepositoryEntry{
		Identifier: "repo/high",
		RepositoryIndex: types.RepositoryIndex{
			Priority: 10,
			Packages: map[types.PackageName]*types.PackageManifest{
				"curl": {Name: "curl"},
			},
		},
	}
	s.Store["repo/low"] = &types.LocalRepositoryEntry{
		Identifier: "repo/low",
		RepositoryIndex: types.RepositoryIndex{
			Priority: 5,
			Packages: map[types.PackageName]*types.PackageManifest{
				"curl": {Name: "curl"},
			},
		},
	}

	packs := future.Drain(ix.BuildIndex())
	assert.Equal(t, []types.PackageName{"curl"}, packs)
	assert.Contains(t, s.Index, "curl@repo/high")
	assert.Contains(t, s.Index, "curl@repo/low")
}

func TestAddDownloadsAndVerifiesDigest(t *testing.T) {
	d := newFileDriver("test")
	content := []byte("binary payload")
	d.put("repo/a", "curl", "bin/curl", content)

	ix, s := newTestIndex(t, d)
	s.Index["curl@repo/a"] = &types.IndexEntry{
		PackageManifest: types.PackageManifest{Name: "curl", Files: map[string]string{"bin/curl": digest.Of(content)}},
		Repository:      "repo/a",
	}
	s.Store["repo/a"] = &types.LocalRepositoryEntry{Identifier: "repo/a", RepositoryIndex: types.RepositoryIndex{Driver: "test"}}

	result := future.Drain(ix.Add("curl"))
	require.Empty(t, result.Errors)
	require.NotNil(t, result.Transaction)

	ok, faults := result.Transaction.Apply()
	require.True(t, ok)
	require.Empty(t, faults)

	assert.Contains(t, s.Pool, "curl@repo/a")
	data, err := os.ReadFile(filepath.Join(ix.rootDir, "bin/curl"))
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestAddDigestMismatchRollsBackAndLeavesNoFile(t *testing.T) {
	d := newFileDriver("test")
	d.put("repo/a", "curl", "bin/curl", []byte("wrong bytes"))

	ix, s := newTestIndex(t, d)
	s.Index["curl@repo/a"] = &types.IndexEntry{
		PackageManifest: types.PackageManifest{Name: "curl", Files: map[string]string{"bin/curl": digest.Of([]byte("expected bytes"))}},
		Repository:      "repo/a",
	}
	s.Store["repo/a"] = &types.LocalRepositoryEntry{Identifier: "repo/a", RepositoryIndex: types.RepositoryIndex{Driver: "test"}}

	result := future.Drain(ix.Add("curl"))
	require.NotNil(t, result.Transaction)

	ok, faults := result.Transaction.Apply()
	require.False(t, ok)
	require.NotEmpty(t, faults)

	assert.NotContains(t, s.Pool, "curl@repo/a")
	_, err := os.Stat(filepath.Join(ix.rootDir, "bin/curl"))
	assert.True(t, os.IsNotExist(err))
}

func TestAddRejectsAlreadyInstalled(t *testing.T) {
	d := newFileDriver("test")
	ix, s := newTestIndex(t, d)
	s.Index["curl@repo/a"] = &types.IndexEntry{PackageManifest: types.PackageManifest{Name: "curl"}, Repository: "repo/a"}
	s.Pool["curl@repo/a"] = &types.InstalledPackageEntry{PackageManifest: types.PackageManifest{Name: "curl"}, Repository: "repo/a"}

	result := future.Drain(ix.Add("curl"))
	require.Len(t, result.Errors, 1)
	assert.Nil(t, result.Transaction)
}

func TestRemoveMovesToTrash(t *testing.T) {
	d := newFileDriver("test")
	ix, s := newTestIndex(t, d)

	content := []byte("payload")
	full := filepath.Join(ix.rootDir, "bin/curl")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, content, 0o644))

	s.Pool["curl@repo/a"] = &types.InstalledPackageEntry{
		PackageManifest: types.PackageManifest{Name: "curl", Files: map[string]string{"bin/curl": digest.Of(content)}},
		Repository:      "repo/a",
		UserInstalled:   true,
	}

	result := future.Drain(ix.Remove("curl"))
	require.Empty(t, result.Errors)
	require.NotNil(t, result.Transaction)

	ok, faults := result.Transaction.Apply()
	require.True(t, ok)
	require.Empty(t, faults)

	assert.NotContains(t, s.Pool, "curl@repo/a")
	_, err := os.Stat(full)
	assert.True(t, os.IsNotExist(err))

	trashed, err := os.ReadFile(filepath.Join(ix.trashDir, "bin/curl"))
	require.NoError(t, err)
	assert.Equal(t, content, trashed)
}

func TestRemovePreservesUserInstalledDependency(t *testing.T) {
	d := newFileDriver("test")
	ix, s := newTestIndex(t, d)

	s.Pool["curl@repo/a"] = &types.InstalledPackageEntry{
		PackageManifest: types.PackageManifest{Name: "curl", Dependencies: []types.PackageName{"libssl"}},
		Repository:      "repo/a",
		UserInstalled:   true,
	}
	s.Pool["libssl@repo/a"] = &types.InstalledPackageEntry{
		PackageManifest: types.PackageManifest{Name: "libssl"},
		Repository:      "repo/a",
		UserInstalled:   true,
	}

	result := future.Drain(ix.Remove("curl"))
	require.NotNil(t, result.Transaction)
	ok, faults := result.Transaction.Apply()
	require.True(t, ok)
	require.Empty(t, faults)

	assert.NotContains(t, s.Pool, "curl@repo/a")
	assert.Contains(t, s.Pool, "libssl@repo/a")
}

func TestMoveToTrashRollbackRestoresFile(t *testing.T) {
	d := newFileDriver("test")
	ix, s := newTestIndex(t, d)

	content := []byte("payload")
	full := filepath.Join(ix.rootDir, "bin/curl")
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, content, 0o644))

	entry := &types.InstalledPackageEntry{
		PackageManifest: types.PackageManifest{Name: "curl", Files: map[string]string{"bin/curl": digest.Of(content)}},
		Repository:      "repo/a",
	}
	s.Pool["curl@repo/a"] = entry

	failing := &types.InstalledPackageEntry{PackageManifest: types.PackageManifest{Name: "broken"}}
	actions := []transaction.Action[*types.InstalledPackageEntry]{
		{Data: entry, Apply: ix.moveToTrash, Rollback: ix.restoreFromTrash},
		{Data: failing, Apply: func(*types.InstalledPackageEntry) error { return errors.New("forced failure") }},
	}
	tx := transaction.New(actions, nil)

	ok, faults := tx.Apply()
	require.False(t, ok)
	require.Len(t, faults, 1)

	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Contains(t, s.Pool, "curl@repo/a")
}
