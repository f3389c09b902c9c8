// Package pkgindex orchestrates the package half of hutch: deriving a
// priority-ordered index from the store's published manifests, and
// installing or removing packages by expanding or shrinking the pool
// over "dependencies" edges, materializing files to disk as the
// transaction applies.
package pkgindex

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/nestlab/hutch/pkg/deptree"
	"github.com/nestlab/hutch/pkg/digest"
	"github.com/nestlab/hutch/pkg/driver"
	"github.com/nestlab/hutch/pkg/events"
	"github.com/nestlab/hutch/pkg/future"
	"github.com/nestlab/hutch/pkg/log"
	"github.com/nestlab/hutch/pkg/metrics"
	"github.com/nestlab/hutch/pkg/storage"
	"github.com/nestlab/hutch/pkg/transaction"
	"github.com/nestlab/hutch/pkg/types"
	"github.com/nestlab/hutch/pkg/wildcard"
)

// Index orchestrates buildIndex/add/remove against a Storage, fetching
// package files through whichever driver a package's owning
// repository was registered under.
type Index struct {
	storage  *storage.Storage
	registry *driver.Registry
	broker   *events.Broker
	rootDir  string
	trashDir string
}

// New builds a package Index. rootDir is where package files are
// materialized; trashDir is where removed files are staged so a
// rollback can restore them. Nothing empties trashDir after a
// successful remove.
func New(s *storage.Storage, registry *driver.Registry, broker *events.Broker, rootDir, trashDir string) *Index {
	return &Index{storage: s, registry: registry, broker: broker, rootDir: rootDir, trashDir: trashDir}
}

// Find resolves a "namePattern[@repoPattern]" pattern against every
// manifest published by a store entry, returning a shallow copy of
// each match keyed by the repository that publishes it. An absent "@"
// is treated as "@*".
func (ix *Index) Find(pattern string) map[types.RepositoryIdentifier][]*types.PackageManifest {
	m := compilePackagePattern(pattern)
	out := make(map[types.RepositoryIdentifier][]*types.PackageManifest)

	for repo, entry := range ix.storage.Store {
		for name, manifest := range entry.Packages {
			id := types.PackageID(name, repo)
			if !m.Matches(id) {
				continue
			}
			out[repo] = append(out[repo], manifest.Clone())
		}
	}
	return out
}

// findInstalledPool is Find's analogue over the pool instead of the
// store, used by remove's dependency resolution against
// already-installed packages.
func (ix *Index) findInstalledPool(pattern string) []types.PackageIdentifier {
	m := compilePackagePattern(pattern)
	var out []types.PackageIdentifier
	for pid := range ix.storage.Pool {
		if m.Matches(pid) {
			out = append(out, pid)
		}
	}
	sort.Strings(out)
	return out
}

func (ix *Index) findInIndex(pattern string) []types.PackageIdentifier {
	m := compilePackagePattern(pattern)
	var out []types.PackageIdentifier
	for pid := range ix.storage.Index {
		if m.Matches(pid) {
			out = append(out, pid)
		}
	}
	sort.Strings(out)
	return out
}

func compilePackagePattern(pattern string) *wildcard.Matcher {
	if !containsAt(pattern) {
		pattern += "@*"
	}
	return wildcard.MustCompile(pattern, "@")
}

func containsAt(s string) bool {
	for _, r := range s {
		if r == '@' {
			return true
		}
	}
	return false
}

// BuildIndex recomputes the derived index from the store: every
// manifest published by every repository, stamped with its publishing
// repository and keyed by PackageIdentifier. Resolves to the sorted,
// deduplicated list of package names the store publishes.
func (ix *Index) BuildIndex() *future.Future[[]types.PackageName] {
	return future.New(func() (bool, []types.PackageName) {
		ix.storage.LoadIfExpired()

		entries := make([]*types.LocalRepositoryEntry, 0, len(ix.storage.Store))
		for _, e := range ix.storage.Store {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Priority != entries[j].Priority {
				return entries[i].Priority > entries[j].Priority
			}
			return entries[i].Identifier < entries[j].Identifier
		})

		packSet := make(map[types.PackageName]bool)
		for _, e := range entries {
			for name := range e.Packages {
				packSet[name] = true
			}
		}
		packs := make([]types.PackageName, 0, len(packSet))
		for name := range packSet {
			packs = append(packs, name)
		}
		sort.Strings(packs)

		newIndex := make(map[types.PackageIdentifier]*types.IndexEntry)
		for _, name := range packs {
			for repo, manifests := range ix.Find(name + "@*") {
				for _, m := range manifests {
					newIndex[types.PackageID(m.Name, repo)] = &types.IndexEntry{
						PackageManifest: *m,
						Repository:      repo,
					}
				}
			}
		}

		ix.storage.Index = newIndex
		ix.storage.Flush()
		return true, packs
	})
}

func (ix *Index) driverFor(repo types.RepositoryIdentifier) driver.Driver {
	e, ok := ix.storage.Store[repo]
	if !ok {
		return nil
	}
	return ix.registry.ByName(e.Driver)
}

func (ix *Index) resolveFromIndex(pid types.PackageIdentifier) (*types.InstalledPackageEntry, error) {
	entry, ok := ix.storage.Index[pid]
	if !ok {
		return nil, fmt.Errorf("package %s: %w", pid, types.ErrNotFound)
	}
	return entry.Clone(), nil
}

func (ix *Index) newTransaction(actions []transaction.Action[*types.InstalledPackageEntry]) *transaction.Transaction[*types.InstalledPackageEntry] {
	tx := transaction.New(actions, ix.broker)
	tx.SetHandlers(transaction.Handlers[*types.InstalledPackageEntry]{
		Open:  func() { ix.storage.LoadIfExpired() },
		Close: func() { ix.storage.Flush() },
	})
	return tx
}

// AddResult is what Add's Future resolves to.
type AddResult struct {
	Transaction *transaction.Transaction[*types.InstalledPackageEntry]
	Errors      []error
}

// Add resolves each requested name against the index, expands the
// dependency closure, and builds a transaction that downloads every
// newly-resolved dependency followed by the user-requested packages
// themselves, flagged user_installed.
func (ix *Index) Add(names ...types.PackageName) *future.Future[AddResult] {
	ix.storage.LoadIfExpired()

	var errs []error
	seen := make(map[types.PackageIdentifier]bool)
	var addedPacks []types.PackageIdentifier

	for _, name := range names {
		matches := ix.findInIndex(name)
		if len(matches) == 0 {
			errs = append(errs, fmt.Errorf("package %s: %w", name, types.ErrNotFound))
			continue
		}
		for _, pid := range matches {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			addedPacks = append(addedPacks, pid)
		}
	}

	pool := make([]string, 0, len(ix.storage.Pool)+len(addedPacks))
	for pid := range ix.storage.Pool {
		pool = append(pool, pid)
	}

	alreadyInstalled := make(map[types.PackageIdentifier]bool)
	for _, pid := range addedPacks {
		if _, ok := ix.storage.Pool[pid]; ok {
			errs = append(errs, fmt.Errorf("package %s: %w", pid, types.ErrAlreadyPresent))
			alreadyInstalled[pid] = true
			continue
		}
		pool = append(pool, pid)
	}

	getDeps := func(pid string) []string {
		entry, ok := ix.storage.Index[pid]
		if !ok {
			errs = append(errs, fmt.Errorf("dependency %s: %w", pid, types.ErrNotFound))
			return []string{}
		}
		deps := []string{}
		for _, dep := range entry.Dependencies {
			matches := ix.findInIndex(dep)
			if len(matches) == 0 {
				errs = append(errs, fmt.Errorf("dependency %s: %w", dep, types.ErrNotFound))
				continue
			}
			deps = append(deps, matches...)
		}
		return deps
	}

	expandFut := deptree.Expand(pool, getDeps)

	return future.Map(expandFut, func(additions []string) AddResult {
		var actions []transaction.Action[*types.InstalledPackageEntry]

		appendAction := func(pid types.PackageIdentifier, userInstalled bool) {
			if _, ok := ix.storage.Pool[pid]; ok {
				return
			}
			entry, err := ix.resolveFromIndex(pid)
			if err != nil {
				errs = append(errs, err)
				return
			}
			entry.UserInstalled = userInstalled
			actions = append(actions, transaction.Action[*types.InstalledPackageEntry]{
				Data: entry, Apply: ix.downloadFiles, Rollback: ix.deleteFiles,
			})
		}

		for _, pid := range additions {
			appendAction(pid, false)
		}
		for _, pid := range addedPacks {
			if alreadyInstalled[pid] {
				continue
			}
			appendAction(pid, true)
		}

		if len(actions) == 0 && len(errs) > 0 {
			return AddResult{Errors: errs}
		}

		return AddResult{Transaction: ix.newTransaction(actions), Errors: errs}
	})
}

// RemoveResult is what Remove's Future resolves to.
type RemoveResult struct {
	Transaction *transaction.Transaction[*types.InstalledPackageEntry]
	Errors      []error
}

// Remove resolves each requested name against the pool, shrinks the
// pool to the orphans removing those roots leaves behind, and builds a
// transaction that trashes every affected package's files.
func (ix *Index) Remove(names ...types.PackageName) *future.Future[RemoveResult] {
	ix.storage.LoadIfExpired()

	var errs []error
	roots := make(map[types.PackageIdentifier]bool)

	for _, name := range names {
		matches := ix.findInstalledPool(name)
		if len(matches) == 0 {
			errs = append(errs, fmt.Errorf("package %s: %w", name, types.ErrNotPresent))
			continue
		}
		for _, pid := range matches {
			roots[pid] = true
		}
	}

	pool := make([]string, 0, len(ix.storage.Pool))
	for pid := range ix.storage.Pool {
		pool = append(pool, pid)
	}

	getDeps := func(pid string) []string {
		entry, ok := ix.storage.Pool[pid]
		if !ok {
			return []string{}
		}
		deps := []string{}
		for _, dep := range entry.Dependencies {
			deps = append(deps, ix.findInstalledPool(dep)...)
		}
		return deps
	}

	isPinned := func(pid string) bool {
		if roots[pid] {
			return false
		}
		e, ok := ix.storage.Pool[pid]
		if !ok {
			return false
		}
		return e.UserInstalled
	}

	shrinkFut := deptree.Shrink(pool, getDeps, isPinned)

	return future.Map(shrinkFut, func(deletions []string) RemoveResult {
		var actions []transaction.Action[*types.InstalledPackageEntry]

		for _, pid := range deletions {
			entry, ok := ix.storage.Pool[pid]
			if !ok {
				continue
			}
			actions = append(actions, transaction.Action[*types.InstalledPackageEntry]{
				Data: entry, Apply: ix.moveToTrash, Rollback: ix.restoreFromTrash,
			})
		}

		if len(actions) == 0 && len(errs) > 0 {
			return RemoveResult{Errors: errs}
		}

		return RemoveResult{Transaction: ix.newTransaction(actions), Errors: errs}
	})
}

// downloadFiles fetches every file a manifest declares through its
// repository's driver, verifying each against its expected digest
// before writing it. The pool entry is only written once every file
// has succeeded.
func (ix *Index) downloadFiles(e *types.InstalledPackageEntry) error {
	d := ix.driverFor(e.Repository)
	if d == nil {
		return fmt.Errorf("no driver registered for repository %s", e.Repository)
	}

	for path, expectedDigest := range e.Files {
		timer := metrics.NewTimer()
		data, err := d.FetchPackageFile(e.Repository, e.Name, path)
		timer.ObserveDurationVec(metrics.DriverFileFetchDuration, d.Name())
		if err != nil {
			return fmt.Errorf("download %s of %s: %w", path, e.Name, err)
		}

		got := digest.Of(data)
		if got != expectedDigest {
			metrics.FilesDigestMismatchTotal.Inc()
			log.WithPackage("pkgindex", e.Name, e.Repository).Warn().
				Str("file", path).Str("expected", expectedDigest).Str("got", got).
				Msg("digest mismatch")
			return fmt.Errorf("digest for %s: expected %s got %s: %w", path, expectedDigest, got, types.ErrDigestMismatch)
		}

		full := filepath.Join(ix.rootDir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		metrics.FilesDownloadedTotal.Inc()
	}

	ix.storage.Pool[e.ID()] = e.Clone()
	metrics.PackagesInstalledTotal.Inc()
	log.WithPackage("pkgindex", e.Name, e.Repository).Info().Int("files", len(e.Files)).Msg("package installed")
	return nil
}

// deleteFiles removes every file a manifest declares, best-effort, and
// drops its pool entry. Used as downloadFiles' rollback, undoing a
// partial or completed install.
func (ix *Index) deleteFiles(e *types.InstalledPackageEntry) {
	for path := range e.Files {
		full := filepath.Join(ix.rootDir, path)
		_ = os.Remove(full)
		pruneEmptyParents(ix.rootDir, filepath.Dir(full))
	}
	if _, ok := ix.storage.Pool[e.ID()]; ok {
		delete(ix.storage.Pool, e.ID())
		metrics.PackagesInstalledTotal.Dec()
	}
}

// moveToTrash relocates every file a manifest declares under the
// trash directory, overwriting any existing trash entry at that path,
// and drops the pool entry.
func (ix *Index) moveToTrash(e *types.InstalledPackageEntry) error {
	for path := range e.Files {
		full := filepath.Join(ix.rootDir, path)
		trashPath := filepath.Join(ix.trashDir, path)

		if err := os.MkdirAll(filepath.Dir(trashPath), 0o755); err != nil {
			return fmt.Errorf("move %s to trash: %w", path, err)
		}
		if err := os.Rename(full, trashPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("move %s to trash: %w", path, err)
		}
		pruneEmptyParents(ix.rootDir, filepath.Dir(full))
	}

	delete(ix.storage.Pool, e.ID())
	metrics.PackagesInstalledTotal.Dec()
	return nil
}

// restoreFromTrash reads every trashed file back, verifying its digest
// before moving it back into place, and reinserts the pool entry. It
// has no error return (it is used as a Rollback), so any failure
// panics — the transaction actuator converts that into a Fault.
func (ix *Index) restoreFromTrash(e *types.InstalledPackageEntry) {
	for path, expectedDigest := range e.Files {
		trashPath := filepath.Join(ix.trashDir, path)

		data, err := os.ReadFile(trashPath)
		if err != nil {
			panic(fmt.Sprintf("restore %s: %v", path, err))
		}
		if got := digest.Of(data); got != expectedDigest {
			panic(fmt.Sprintf("restore %s: digest mismatch: expected %s got %s", path, expectedDigest, got))
		}

		full := filepath.Join(ix.rootDir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			panic(fmt.Sprintf("restore %s: %v", path, err))
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			panic(fmt.Sprintf("restore %s: %v", path, err))
		}
		_ = os.Remove(trashPath)
	}

	ix.storage.Pool[e.ID()] = e.Clone()
	metrics.PackagesInstalledTotal.Inc()
}

// pruneEmptyParents climbs from dir towards root, removing each
// directory along the way that is now empty, stopping at root or the
// first non-empty directory.
func pruneEmptyParents(root, dir string) {
	root = filepath.Clean(root)
	for {
		dir = filepath.Clean(dir)
		if dir == root || dir == "." || dir == string(filepath.Separator) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
