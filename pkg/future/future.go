// Package future implements the cooperative, single-threaded step
// engine long-running hutch operations are built on: a unit of work is
// wrapped as a function that performs one bounded chunk of work per
// call and reports whether it is done. Only the caller decides when to
// poll, and dropping a Future (simply no longer polling it) is the
// entire cancellation story.
package future

// Future wraps a step function as poll() -> (done, value). Once poll
// reports done, the Future latches: the wrapped function is never
// called again and Poll keeps returning the cached value.
type Future[T any] struct {
	step func() (bool, T)
	done bool
	val  T
}

// New wraps step as a Future. step must be safe to call repeatedly
// until it reports done=true; after that New's caller must not invoke
// step again (Future enforces this by never calling it past latching).
func New[T any](step func() (bool, T)) *Future[T] {
	return &Future[T]{step: step}
}

// Done returns an already-resolved Future, useful as a base case for
// combinators and in tests.
func Done[T any](value T) *Future[T] {
	return &Future[T]{done: true, val: value}
}

// Poll performs one bounded step of work if the Future has not yet
// resolved, and reports whether it is now done along with the current
// (possibly final) value.
func (f *Future[T]) Poll() (bool, T) {
	if f.done {
		return true, f.val
	}
	done, val := f.step()
	if done {
		f.done = true
		f.val = val
		f.step = nil
	}
	return done, val
}

// IsDone reports whether the Future has latched.
func (f *Future[T]) IsDone() bool {
	return f.done
}

// Result returns the cached value of a resolved Future. Calling it
// before the Future is done returns the zero value of T.
func (f *Future[T]) Result() T {
	return f.val
}

// Drain polls f to completion in a tight loop and returns its value.
// It is the synchronous escape hatch used by code that doesn't need to
// interleave polling with anything else (tests, and orchestrator
// call sites that compose several Futures into one before handing the
// outermost one back to their own caller).
func Drain[T any](f *Future[T]) T {
	for {
		if done, val := f.Poll(); done {
			return val
		}
	}
}
