package future

import "sort"

// KV is one key/value pair of an iterator drained by ForEach.
type KV[K comparable, V any] struct {
	Key   K
	Value V
}

// ForEach drains items one at a time, invoking body(key, value) per
// step, and resolves to the map of per-step results.
func ForEach[K comparable, V any, R any](items []KV[K, V], body func(k K, v V) R) *Future[map[K]R] {
	i := 0
	results := make(map[K]R, len(items))
	return New(func() (bool, map[K]R) {
		if i >= len(items) {
			return true, results
		}
		item := items[i]
		results[item.Key] = body(item.Key, item.Value)
		i++
		return i >= len(items), results
	})
}

// Map resolves when fut resolves, transforming its value with fn.
func Map[T any, R any](fut *Future[T], fn func(T) R) *Future[R] {
	return New(func() (bool, R) {
		done, val := fut.Poll()
		if !done {
			var zero R
			return false, zero
		}
		return true, fn(val)
	})
}

// Merge polls each of futs to completion in the order given — never
// concurrently — then resolves to join(results).
func Merge[T any, R any](join func([]T) R, futs ...*Future[T]) *Future[R] {
	idx := 0
	results := make([]T, 0, len(futs))
	return New(func() (bool, R) {
		for idx < len(futs) {
			done, val := futs[idx].Poll()
			if !done {
				var zero R
				return false, zero
			}
			results = append(results, val)
			idx++
		}
		return true, join(results)
	})
}

// Concat is Merge with an identity join: it resolves to the list of
// every future's result, in order.
func Concat[T any](futs ...*Future[T]) *Future[[]T] {
	return Merge(func(results []T) []T { return results }, futs...)
}

// Sort recursively quicksorts list as a Future tree using comp, where
// comp(a, b) returns <0, 0, or >0 as a sorts before, equal to, or after
// b (the cmp.Compare convention). Once a partition drops at or below
// limit items it is sorted in a single step instead of recursing
// further, bounding the depth of the Future tree for small inputs.
func Sort[T any](list []T, comp func(a, b T) int, limit int) *Future[[]T] {
	if limit < 1 {
		limit = 1
	}
	if len(list) <= limit {
		return New(func() (bool, []T) {
			out := append([]T(nil), list...)
			sort.SliceStable(out, func(i, j int) bool { return comp(out[i], out[j]) < 0 })
			return true, out
		})
	}

	pivot := list[len(list)/2]
	var less, equal, greater []T
	for _, v := range list {
		switch c := comp(v, pivot); {
		case c < 0:
			less = append(less, v)
		case c > 0:
			greater = append(greater, v)
		default:
			equal = append(equal, v)
		}
	}

	lessFut := Sort(less, comp, limit)
	greaterFut := Sort(greater, comp, limit)
	return Merge(func(parts [][]T) []T {
		out := make([]T, 0, len(list))
		out = append(out, parts[0]...)
		out = append(out, equal...)
		out = append(out, parts[1]...)
		return out
	}, lessFut, greaterFut)
}
