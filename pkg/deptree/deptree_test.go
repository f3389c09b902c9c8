package deptree

import (
	"testing"

	"github.com/nestlab/hutch/pkg/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func graph(edges map[string][]string) GetDeps {
	return func(name string) []string {
		if deps, ok := edges[name]; ok {
			return deps
		}
		return []string{}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestExpandClosure(t *testing.T) {
	g := graph(map[string][]string{
		"A": {"B", "C"},
		"B": {"D"},
		"C": {"D"},
		"D": {},
	})

	additions := future.Drain(Expand([]string{"A"}, g))
	assert.ElementsMatch(t, []string{"B", "C", "D"}, additions)

	all := append([]string{"A"}, additions...)
	for _, n := range all {
		for _, d := range g(n) {
			assert.Truef(t, contains(all, d), "dependency %s of %s missing from closure", d, n)
		}
	}
}

func TestExpandMinimality(t *testing.T) {
	g := graph(map[string][]string{
		"A": {"B"},
		"B": {},
		"unrelated": {"Z"},
	})

	additions := future.Drain(Expand([]string{"A"}, g))
	assert.Equal(t, []string{"B"}, additions)
	assert.False(t, contains(additions, "Z"))
	assert.False(t, contains(additions, "unrelated"))
}

func TestExpandSelfEdgeNoAdditions(t *testing.T) {
	g := graph(map[string][]string{"A": {"A"}})
	additions := future.Drain(Expand([]string{"A"}, g))
	assert.Empty(t, additions)
}

func TestExpandStableDFSOrder(t *testing.T) {
	g := graph(map[string][]string{
		"A": {"B", "C"},
		"B": {"D", "E"},
		"C": {},
		"D": {},
		"E": {},
	})
	additions := future.Drain(Expand([]string{"A"}, g))
	// BFS-order append (queue discipline): B, C discovered from A; then
	// D, E discovered from B.
	assert.Equal(t, []string{"B", "C", "D", "E"}, additions)
}

func TestExpandAbortsOnNilDeps(t *testing.T) {
	calls := 0
	g := func(name string) []string {
		calls++
		if name == "B" {
			return nil
		}
		return []string{"B"}
	}
	additions := future.Drain(Expand([]string{"A"}, g))
	assert.Equal(t, []string{"B"}, additions)
}

func TestShrinkRemovesMissingDeps(t *testing.T) {
	g := graph(map[string][]string{
		"A": {"B"}, // B absent from pool
	})
	deletions := future.Drain(Shrink([]string{"A"}, g, nil))
	assert.Equal(t, []string{"A"}, deletions)
}

func TestShrinkRemovesOrphans(t *testing.T) {
	g := graph(map[string][]string{
		"A": {},
		"B": {}, // orphan: nothing in pool depends on B
	})
	deletions := future.Drain(Shrink([]string{"A", "B"}, g, nil))
	assert.ElementsMatch(t, []string{"A", "B"}, deletions)
}

func TestShrinkRespectsPinning(t *testing.T) {
	g := graph(map[string][]string{
		"A": {"B"},
		"B": {},
	})
	pinned := func(name string) bool { return name == "B" }
	deletions := future.Drain(Shrink([]string{"A", "B"}, g, pinned))
	assert.Equal(t, []string{"A"}, deletions)
}

func TestShrinkFixedPointCascade(t *testing.T) {
	// A depends on B; removing the user root A should cascade to
	// orphan B, matching spec scenario "remove respects pinning".
	g := graph(map[string][]string{
		"A": {"B"},
		"B": {},
		"C": {},
	})
	pinned := func(name string) bool { return name == "C" }
	deletions := future.Drain(Shrink([]string{"A", "B", "C"}, g, pinned))
	assert.ElementsMatch(t, []string{"A", "B"}, deletions)
}

func TestShrinkIsIdempotentFixedPoint(t *testing.T) {
	g := graph(map[string][]string{
		"A": {"B"},
		"B": {},
	})
	pool := []string{"A", "B"}
	first := future.Drain(Shrink(pool, g, nil))
	require.NotEmpty(t, first)

	remaining := []string{}
	for _, n := range pool {
		if !contains(first, n) {
			remaining = append(remaining, n)
		}
	}
	second := future.Drain(Shrink(remaining, g, nil))
	assert.Empty(t, second)
}

func TestShrinkSafetyInvariant(t *testing.T) {
	g := graph(map[string][]string{
		"A": {"B"},
		"B": {},
		"C": {}, // orphan, removed
	})
	pool := []string{"A", "B", "C"}
	deletions := future.Drain(Shrink(pool, g, nil))

	remaining := []string{}
	for _, n := range pool {
		if !contains(deletions, n) {
			remaining = append(remaining, n)
		}
	}

	for _, n := range remaining {
		for _, d := range g(n) {
			assert.True(t, contains(remaining, d))
		}
	}
	for _, n := range remaining {
		parented := false
		for _, other := range remaining {
			if other != n && contains(g(other), n) {
				parented = true
			}
		}
		assert.Truef(t, parented, "%s has no remaining parent", n)
	}
}

func TestExpandShrinkIdentityOnClosedPool(t *testing.T) {
	g := graph(map[string][]string{
		"A": {"B"},
		"B": {},
	})
	pool := []string{"A", "B"}
	pinned := func(name string) bool { return name == "A" }
	deletions := future.Drain(Shrink(pool, g, pinned))
	assert.Empty(t, deletions)
	assert.True(t, future.Drain(Check(pool, g, pinned)))
}

func TestCheckReportsFalseWhenShrinkWouldAct(t *testing.T) {
	g := graph(map[string][]string{
		"A": {},
		"B": {}, // orphan
	})
	assert.False(t, future.Drain(Check([]string{"A", "B"}, g, nil)))
}
