// Package storage owns the three durable maps (store, index, pool)
// hutch persists as JSON under a base directory, plus an in-memory,
// TTL-bounded cache of remote repository indexes that is never
// persisted. Orchestrators never touch these maps directly — only
// through action bodies run inside a transaction bracketed by Load
// (open) and Flush (close), per the single-writer concurrency model
// this module assumes.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nestlab/hutch/pkg/log"
	"github.com/nestlab/hutch/pkg/metrics"
	"github.com/nestlab/hutch/pkg/types"
	"github.com/tidwall/gjson"
)

const (
	// DefaultStorageTTL throttles re-reading the on-disk files: a
	// LoadIfExpired call within this window of the last successful
	// load is a no-op.
	DefaultStorageTTL = 5 * time.Second

	// DefaultCacheTTL bounds how long a fetched remote index is
	// reused without re-invoking the driver.
	DefaultCacheTTL = 300 * time.Second

	storeFile = "store.json"
	indexFile = "index.json"
	poolFile  = "pool.json"
)

type cacheEntry struct {
	index     *types.RepositoryIndex
	fetchedAt int64
}

// Storage is the durable store/index/pool plus the process-memory
// cache. The zero value is not usable; construct with New.
type Storage struct {
	baseDir    string
	storageTTL time.Duration
	cacheTTL   time.Duration

	Store map[types.RepositoryIdentifier]*types.LocalRepositoryEntry
	Index map[types.PackageIdentifier]*types.IndexEntry
	Pool  map[types.PackageIdentifier]*types.InstalledPackageEntry

	cache map[types.RepositoryIdentifier]cacheEntry

	loadTimestamp int64
}

// New constructs a Storage rooted at baseDir. storageTTL or cacheTTL
// of zero fall back to the package defaults.
func New(baseDir string, storageTTL, cacheTTL time.Duration) *Storage {
	if storageTTL <= 0 {
		storageTTL = DefaultStorageTTL
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Storage{
		baseDir:    baseDir,
		storageTTL: storageTTL,
		cacheTTL:   cacheTTL,
		Store:      make(map[types.RepositoryIdentifier]*types.LocalRepositoryEntry),
		Index:      make(map[types.PackageIdentifier]*types.IndexEntry),
		Pool:       make(map[types.PackageIdentifier]*types.InstalledPackageEntry),
		cache:      make(map[types.RepositoryIdentifier]cacheEntry),
	}
}

func epoch() int64 { return time.Now().UnixNano() }

func epochMillis() int64 { return time.Now().UnixMilli() }

// Load reads all three files from disk unconditionally, replacing the
// in-memory maps. Per-file deserialization failures quarantine the
// offending file and substitute an empty map rather than raising;
// the returned map carries one entry per failed file, keyed by file
// name.
func (s *Storage) Load() map[string]error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StorageLoadDuration)

	errs := make(map[string]error)

	if m, err := loadFile[types.LocalRepositoryEntry](s.path(storeFile)); err != nil {
		errs[storeFile] = err
		if m != nil {
			s.Store = m
		}
	} else {
		s.Store = m
	}

	if m, err := loadFile[types.IndexEntry](s.path(indexFile)); err != nil {
		errs[indexFile] = err
		if m != nil {
			s.Index = m
		}
	} else {
		s.Index = m
	}

	if m, err := loadFile[types.InstalledPackageEntry](s.path(poolFile)); err != nil {
		errs[poolFile] = err
		if m != nil {
			s.Pool = m
		}
	} else {
		s.Pool = m
	}

	s.loadTimestamp = epoch()
	return errs
}

// LoadIfExpired calls Load only when more than storageTTL has elapsed
// since the last successful load; this is purely a latency
// optimization and never changes observable behavior beyond timing.
func (s *Storage) LoadIfExpired() map[string]error {
	if s.loadTimestamp != 0 && epoch()-s.loadTimestamp <= int64(s.storageTTL) {
		return nil
	}
	return s.Load()
}

// Flush serializes all three maps to disk. On a per-file write
// failure, that file's on-disk snapshot is left at its previous value
// and the error is reported; loadTimestamp only advances if every
// file wrote successfully.
func (s *Storage) Flush() map[string]error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.StorageFlushDuration)

	errs := make(map[string]error)

	if err := writeFile(s.path(storeFile), s.Store); err != nil {
		errs[storeFile] = err
	}
	if err := writeFile(s.path(indexFile), s.Index); err != nil {
		errs[indexFile] = err
	}
	if err := writeFile(s.path(poolFile), s.Pool); err != nil {
		errs[poolFile] = err
	}

	if len(errs) == 0 {
		s.loadTimestamp = epoch()
	}
	return errs
}

func (s *Storage) path(name string) string {
	return filepath.Join(s.baseDir, name)
}

func loadFile[V any](path string) (map[string]*V, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]*V), nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}

	var out map[string]*V
	if err := json.Unmarshal(data, &out); err != nil {
		diag := diagnose(data)
		backupPath := fmt.Sprintf("%s.backup.%d", path, epochMillis())
		storageLog := log.WithComponent("storage")
		if renameErr := os.Rename(path, backupPath); renameErr != nil {
			storageLog.Warn().Err(renameErr).Str("file", path).Msg("failed to quarantine corrupt storage file")
		} else {
			metrics.StorageCorruptionsTotal.WithLabelValues(filepath.Base(path)).Inc()
			storageLog.Warn().Str("file", path).Str("backup", backupPath).Str("diagnosis", diag).Msg("quarantined corrupt storage file")
		}
		return make(map[string]*V), fmt.Errorf("storage: parse %s (%s), quarantined: %w", path, diag, err)
	}
	if out == nil {
		out = make(map[string]*V)
	}
	return out, nil
}

// diagnose produces a best-effort human-readable summary of a corrupt
// JSON file using gjson, which can surface partial structure (e.g. a
// truncated file or trailing garbage) that encoding/json only reports
// as a generic syntax error.
func diagnose(data []byte) string {
	if len(data) == 0 {
		return "empty file"
	}
	if !gjson.ValidBytes(data) {
		result := gjson.ParseBytes(data)
		if result.Exists() {
			return fmt.Sprintf("invalid JSON; partially parses as %s", result.Type)
		}
		return "invalid JSON; no parseable prefix"
	}
	// Valid JSON but not the expected shape (e.g. an array where an
	// object was expected).
	return fmt.Sprintf("valid JSON of unexpected shape: %s", gjson.ParseBytes(data).Type)
}

func writeFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for %s: %w", path, err)
	}
	// Write to a sibling file and rename it over path, so a failed write
	// leaves the previous snapshot in place.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// FetchCache returns the cached remote index for id, if present and
// not expired.
func (s *Storage) FetchCache(id types.RepositoryIdentifier) (*types.RepositoryIndex, bool) {
	entry, ok := s.cache[id]
	if !ok || s.CacheIsExpired(entry.fetchedAt) {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return entry.index, true
}

// PutCache records a freshly-fetched remote index, stamped with the
// current time.
func (s *Storage) PutCache(id types.RepositoryIdentifier, idx *types.RepositoryIndex) {
	s.cache[id] = cacheEntry{index: idx, fetchedAt: epoch()}
}

// CacheIsExpired reports whether a cache entry fetched at ts has aged
// past cacheTTL.
func (s *Storage) CacheIsExpired(ts int64) bool {
	return epoch()-ts > int64(s.cacheTTL)
}
