// Package pkgindex is the package-facing counterpart of pkg/repository:
// BuildIndex derives index.json from the store, Add/Remove expand or
// shrink the pool over "dependencies" edges, and the four
// file-materialization primitives (downloadFiles, deleteFiles,
// moveToTrash, restoreFromTrash) move bytes between a repository's
// driver, disk, and a trash area as a transaction applies.
package pkgindex
