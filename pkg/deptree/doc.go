// Package deptree is the graph engine shared by the repository
// orchestrator (over "companions" edges) and the package orchestrator
// (over "dependencies" edges): Expand computes what a new set of roots
// pulls in, Shrink computes what removing roots leaves orphaned or
// dangling, and Check answers "would Shrink remove anything" without
// mutating a result list the caller has to discard.
package deptree
