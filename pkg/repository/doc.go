// Package repository composes pkg/storage, pkg/driver, pkg/deptree,
// and pkg/transaction into the three repository-facing operations:
// Add expands a companion closure and installs it, Remove shrinks the
// store to the orphans a removal leaves behind, and Find filters the
// store by wildcard pattern. Add and Remove return a *future.Future so
// a caller can interleave progress reporting between resolution steps
// instead of blocking on the whole resolution in one step; Fetch and
// FetchAndStore call the driver directly and return plain values.
package repository
