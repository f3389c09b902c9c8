package types

import "errors"

// Sentinel errors returned (wrapped with %w) by pkg/repository,
// pkg/pkgindex, and pkg/driver so callers can distinguish
// failure modes with errors.Is instead of matching message text.
var (
	// ErrNotFound means an identifier has no corresponding entry in a
	// store, index, or remote repository.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyPresent means an Add was requested for a repository or
	// package identifier that is already tracked.
	ErrAlreadyPresent = errors.New("already present")

	// ErrNotPresent means a Remove was requested for an identifier
	// that isn't tracked.
	ErrNotPresent = errors.New("not present")

	// ErrDigestMismatch means a downloaded file's SHA-256 digest does
	// not match the manifest's recorded digest.
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrUnreadableIndex means a driver fetched index bytes that
	// could not be decoded into a RepositoryIndex.
	ErrUnreadableIndex = errors.New("unreadable index")
)
