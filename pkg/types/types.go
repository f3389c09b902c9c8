// Package types defines the core data structures shared across hutch:
// repositories, packages, and the store/index/pool entries derived
// from them.
package types

// RepositoryIdentifier is an opaque string understood by at least one
// driver (e.g. "owner/repo" or a filesystem path). It is the uniqueness
// key for repositories.
type RepositoryIdentifier = string

// PackageName is a short, conventionally kebab-case string. It is not
// globally unique — the same name may be published by several
// repositories.
type PackageName = string

// PackageIdentifier is the globally unique "name@repository" key used
// throughout the pool and index.
type PackageIdentifier = string

// PackageID builds the canonical "name@repository" identifier.
func PackageID(name PackageName, repository RepositoryIdentifier) PackageIdentifier {
	return name + "@" + repository
}

// PackageManifest describes a single installable package as published
// by a repository index.
type PackageManifest struct {
	Name         PackageName       `json:"name" validate:"required"`
	Dependencies []PackageName     `json:"dependencies,omitempty"`
	Files        map[string]string `json:"files,omitempty"` // installPath -> hex digest
	Metadata     map[string]any    `json:"metadata,omitempty"`
}

// Clone returns a deep-enough copy of the manifest: slices and maps are
// copied so the caller can mutate the result without aliasing the
// original (spec's "shallow table-copy" rule applied structurally).
func (m *PackageManifest) Clone() *PackageManifest {
	if m == nil {
		return nil
	}
	out := &PackageManifest{Name: m.Name}
	if m.Dependencies != nil {
		out.Dependencies = append([]PackageName(nil), m.Dependencies...)
	}
	if m.Files != nil {
		out.Files = make(map[string]string, len(m.Files))
		for k, v := range m.Files {
			out.Files[k] = v
		}
	}
	if m.Metadata != nil {
		out.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// RepositoryIndex is the document a driver fetches on behalf of a
// repository identifier.
type RepositoryIndex struct {
	Name            string                     `json:"name"`
	Priority        int                         `json:"priority"`
	Companions      []RepositoryIdentifier      `json:"companions,omitempty"`
	Packages        map[PackageName]*PackageManifest `json:"packages,omitempty"`
	Driver          string                     `json:"driver,omitempty"`
	UpdateTimestamp int64                      `json:"update_timestamp,omitempty"`
}

// LocalRepositoryEntry is a RepositoryIndex as stored in the durable
// store, augmented with installation bookkeeping.
type LocalRepositoryEntry struct {
	RepositoryIndex
	Identifier    RepositoryIdentifier `json:"identifier" validate:"required"`
	UserInstalled bool                 `json:"user_installed"`
}

// Clone returns a structural copy of the entry; the Packages map and
// Companions slice are copied so the stored entry never aliases a
// driver's in-memory index.
func (e *LocalRepositoryEntry) Clone() *LocalRepositoryEntry {
	if e == nil {
		return nil
	}
	out := &LocalRepositoryEntry{
		RepositoryIndex: RepositoryIndex{
			Name:            e.Name,
			Priority:        e.Priority,
			Driver:          e.Driver,
			UpdateTimestamp: e.UpdateTimestamp,
		},
		Identifier:    e.Identifier,
		UserInstalled: e.UserInstalled,
	}
	if e.Companions != nil {
		out.Companions = append([]RepositoryIdentifier(nil), e.Companions...)
	}
	if e.Packages != nil {
		out.Packages = make(map[PackageName]*PackageManifest, len(e.Packages))
		for k, v := range e.Packages {
			out.Packages[k] = v.Clone()
		}
	}
	return out
}

// InstalledPackageEntry is a PackageManifest as stored in the pool,
// augmented with the owning repository and installation bookkeeping.
// IndexEntry has the identical shape and is used for the derived,
// priority-ordered package index.
type InstalledPackageEntry struct {
	PackageManifest
	Repository    RepositoryIdentifier `json:"repository" validate:"required"`
	UserInstalled bool                 `json:"user_installed"`
}

// IndexEntry mirrors InstalledPackageEntry; it is kept as a distinct
// name so the two maps in pkg/storage read clearly even though the
// wire shape is identical.
type IndexEntry = InstalledPackageEntry

// Clone copies the manifest and its nested slices/maps so index and
// pool entries built from the same manifest never alias each other.
func (e *InstalledPackageEntry) Clone() *InstalledPackageEntry {
	if e == nil {
		return nil
	}
	return &InstalledPackageEntry{
		PackageManifest: *e.PackageManifest.Clone(),
		Repository:      e.Repository,
		UserInstalled:   e.UserInstalled,
	}
}

// ID returns the entry's PackageIdentifier.
func (e *InstalledPackageEntry) ID() PackageIdentifier {
	return PackageID(e.Name, e.Repository)
}

// CacheEntry describes a cached remote index: a RepositoryIndex plus
// the time it was fetched. pkg/storage's in-memory cache keeps its own
// unexported entry type and does not use this one.
type CacheEntry struct {
	RepositoryIndex
	FetchedAt int64 // seconds since epoch, recorded at fetch time
}
