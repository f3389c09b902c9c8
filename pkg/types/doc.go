/*
Package types defines hutch's domain model: repositories, packages, and
the derived store/index/pool entries the rest of the engine operates on.

# Entities

  - RepositoryIndex: what a driver fetches for a RepositoryIdentifier.
  - PackageManifest: one installable package published by a repository.
  - LocalRepositoryEntry: a RepositoryIndex as held in the durable store,
    tagged with Identifier and UserInstalled.
  - InstalledPackageEntry / IndexEntry: a PackageManifest as held in the
    pool / index, tagged with Repository and UserInstalled.
  - CacheEntry: a RepositoryIndex plus its fetch time; pkg/storage's
    process-memory cache uses its own unexported entry type instead.

All Clone methods perform a structural copy (slices and maps are
copied, not aliased) so a stored entry never shares backing memory
with a driver's freshly fetched index — see pkg/storage and
pkg/repository for where this matters.
*/
package types
