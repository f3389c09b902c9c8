// Package deptree computes and repairs dependency closures over a pool
// of named nodes (repositories linked by "companions", packages linked
// by "dependencies" — the algorithm is the same either way). Both
// operations are exposed as Futures so a caller driving a large closure
// can interleave progress reporting between steps.
package deptree

import "github.com/nestlab/hutch/pkg/future"

// GetDeps returns the outgoing edges of name. It must return a non-nil
// (possibly empty) slice for "no edges"; returning nil signals the
// engine to abort early and resolve to whatever has been computed so
// far, used by callers whose getter can fail mid-walk (e.g. a driver
// fetch error during resolution).
type GetDeps func(name string) []string

// IsPinned reports whether name must survive shrink's orphan pass even
// with no remaining parent. A nil IsPinned behaves as "never pinned".
type IsPinned func(name string) bool

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Expand walks the dependency graph reachable from roots via getDeps
// and resolves to the list of newly-discovered nodes, in stable DFS
// order (ties broken by the insertion order of roots and of each
// node's dependency list). roots themselves are not included in the
// result — the full closure is roots plus the returned additions.
func Expand(roots []string, getDeps GetDeps) *future.Future[[]string] {
	pool := make(map[string]bool)
	queue := make([]string, 0, len(roots))
	for _, r := range dedupe(roots) {
		if !pool[r] {
			pool[r] = true
			queue = append(queue, r)
		}
	}

	cache := make(map[string][]string)
	additions := make([]string, 0)
	aborted := false

	return future.New(func() (bool, []string) {
		if aborted || len(queue) == 0 {
			return true, additions
		}

		node := queue[0]
		queue = queue[1:]

		deps, cached := cache[node]
		if !cached {
			deps = getDeps(node)
			if deps == nil {
				aborted = true
				return true, additions
			}
			cache[node] = deps
		}

		for _, dep := range deps {
			if pool[dep] {
				continue
			}
			pool[dep] = true
			additions = append(additions, dep)
			queue = append(queue, dep)
		}

		return len(queue) == 0, additions
	})
}

type shrinkPhase int

const (
	phaseMissingDeps shrinkPhase = iota
	phaseOrphans
)

// Shrink removes nodes from pool to restore two invariants together:
// no node depends on something absent from the pool (missing-dep
// pass), and no non-pinned node lacks a parent within the pool (orphan
// pass). It alternates the two passes until one full cycle removes
// nothing, and resolves to the list of removed nodes in the order
// they were removed. isPinned may be nil.
func Shrink(pool []string, getDeps GetDeps, isPinned IsPinned) *future.Future[[]string] {
	if isPinned == nil {
		isPinned = func(string) bool { return false }
	}

	current := dedupe(pool)
	cache := make(map[string][]string)
	deletions := make([]string, 0)
	aborted := false

	deps := func(name string) ([]string, bool) {
		if d, ok := cache[name]; ok {
			return d, true
		}
		d := getDeps(name)
		if d == nil {
			return nil, false
		}
		cache[name] = d
		return d, true
	}

	phase := phaseMissingDeps
	cursor := 0
	changedThisCycle := false
	scanOrder := append([]string(nil), current...)

	remove := func(name string) {
		idx := -1
		for i, n := range current {
			if n == name {
				idx = i
				break
			}
		}
		if idx == -1 {
			return
		}
		current = append(current[:idx], current[idx+1:]...)
		deletions = append(deletions, name)
		changedThisCycle = true
	}

	inPool := func(name string) bool {
		for _, n := range current {
			if n == name {
				return true
			}
		}
		return false
	}

	return future.New(func() (bool, []string) {
		if aborted {
			return true, deletions
		}

		for {
			if cursor >= len(scanOrder) {
				if phase == phaseMissingDeps {
					phase = phaseOrphans
					cursor = 0
					scanOrder = append([]string(nil), current...)
					continue
				}

				if !changedThisCycle {
					return true, deletions
				}
				changedThisCycle = false
				phase = phaseMissingDeps
				cursor = 0
				scanOrder = append([]string(nil), current...)
				continue
			}

			node := scanOrder[cursor]
			cursor++

			if !inPool(node) {
				// Already removed earlier in this same pass.
				continue
			}

			switch phase {
			case phaseMissingDeps:
				nodeDeps, ok := deps(node)
				if !ok {
					aborted = true
					return true, deletions
				}
				for _, d := range nodeDeps {
					if !inPool(d) {
						remove(node)
						break
					}
				}
			case phaseOrphans:
				if isPinned(node) {
					continue
				}
				hasParent := false
				for _, other := range current {
					if other == node {
						continue
					}
					otherDeps, ok := deps(other)
					if !ok {
						aborted = true
						return true, deletions
					}
					for _, d := range otherDeps {
						if d == node {
							hasParent = true
							break
						}
					}
					if hasParent {
						break
					}
				}
				if !hasParent {
					remove(node)
				}
			}

			return false, deletions
		}
	})
}

// Check is a read-only predicate: true iff Shrink over the same
// arguments would remove nothing.
func Check(pool []string, getDeps GetDeps, isPinned IsPinned) *future.Future[bool] {
	return future.Map(Shrink(pool, getDeps, isPinned), func(deletions []string) bool {
		return len(deletions) == 0
	})
}
