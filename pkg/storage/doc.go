/*
Package storage persists hutch's three maps — store (repositories),
index (the derived, priority-ordered package listing), and pool
(installed packages) — as JSON files under a base directory, plus a
process-memory cache of fetched remote indexes that is deliberately
never written to disk.

# Files

	store.json   RepositoryIdentifier -> LocalRepositoryEntry
	index.json   PackageIdentifier    -> IndexEntry
	pool.json    PackageIdentifier    -> InstalledPackageEntry

# Load and Flush

Load reads all three files, replacing the in-memory maps; a file that
fails to deserialize is quarantined to "<file>.backup.<epoch-ms>" and
treated as empty rather than raising — store corruption is recoverable
only to the empty state, which is acceptable because the store is a
deterministic rebuild from remote indexes. LoadIfExpired is the
throttled form an orchestrator calls in its transaction's open hook:
within StorageTTL of the last load it is a no-op.

Flush writes all three files; a per-file write failure leaves that
file's on-disk snapshot at its previous value rather than producing a
half-written result.

# Cache

FetchCache/PutCache hold fetched RepositoryIndex values keyed by
RepositoryIdentifier, each stamped with the time it was fetched.
CacheIsExpired implements `now - fetchedAt > CacheTTL`; it is never
serialized, so a restart always starts with a cold cache.

# Ownership

Storage's maps are mutated only from within action apply/rollback
bodies run inside a transaction — see pkg/transaction. A transaction
assumes exclusive access across open (load) through close (flush);
running two transactions concurrently against the same Storage value
is unsupported, matching the single-threaded concurrency model the
whole engine assumes.
*/
package storage
