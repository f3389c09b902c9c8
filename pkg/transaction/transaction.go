// Package transaction sequences a list of reversible Actions: apply
// each one in order, continuing past failures, and if any failed, walk
// the same list again running rollbacks in the same order. It fires a
// fixed set of lifecycle hooks around the pass, both as direct
// synchronous callbacks and (when a Broker is attached) as events for
// anything observing from the outside.
package transaction

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nestlab/hutch/pkg/events"
	"github.com/nestlab/hutch/pkg/log"
)

// Action pairs data with how to apply and undo it. Apply and Rollback
// may be left nil; a nil Apply is treated as a no-op success, a nil
// Rollback as a no-op.
type Action[T any] struct {
	Data     T
	Apply    func(T) error
	Rollback func(T)
}

// Fault records one failed apply or rollback call.
type Fault[T any] struct {
	Data T
	Err  error
}

func (f Fault[T]) Error() string {
	return fmt.Sprintf("%v: %v", f.Data, f.Err)
}

// Handlers are the lifecycle callbacks fired around an apply pass.
// Every field may be left nil.
type Handlers[T any] struct {
	Open      func()
	Close     func()
	BeforeAll func(rollback bool, n int)
	AfterAll  func(rollback bool, n int, hadError bool)
	Before    func(rollback bool, i int, data T)
	After     func(rollback bool, i int, data T, isError bool)
}

// Transaction sequences actions against a set of lifecycle handlers
// and an optional event broker for external observers.
type Transaction[T any] struct {
	id       string
	acts     []Action[T]
	handlers Handlers[T]
	broker   *events.Broker
}

// New builds a Transaction over actions. broker may be nil. Each
// Transaction gets its own id so a fault logged mid-pass can be
// correlated back to the events a subscriber saw for the same run.
func New[T any](actions []Action[T], broker *events.Broker) *Transaction[T] {
	return &Transaction[T]{id: uuid.New().String(), acts: actions, broker: broker}
}

// Actions returns the data of every action in order.
func (t *Transaction[T]) Actions() []T {
	out := make([]T, len(t.acts))
	for i, a := range t.acts {
		out[i] = a.Data
	}
	return out
}

// SetHandlers replaces the transaction's lifecycle callbacks.
func (t *Transaction[T]) SetHandlers(h Handlers[T]) {
	t.handlers = h
}

// newEvent stamps a fresh UUID on every published event so a subscriber
// correlating events across a transaction (or across several concurrent
// ones) has a stable per-notification identifier, not just a type.
func newEvent(typ events.EventType, msg string) *events.Event {
	return &events.Event{ID: uuid.New().String(), Type: typ, Message: msg}
}

func callApply[T any](a Action[T]) (err error) {
	if a.Apply == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("apply panicked: %v", r)
		}
	}()
	return a.Apply(a.Data)
}

func callRollback[T any](a Action[T]) (err error) {
	if a.Rollback == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rollback panicked: %v", r)
		}
	}()
	a.Rollback(a.Data)
	return nil
}

// Apply runs the apply pass in order, continuing past individual
// failures, then — if any action failed — runs the rollback pass over
// the same list in the same order. Returns (true, nil) on a clean
// apply pass, or (false, faults) when either pass produced a fault.
func (t *Transaction[T]) Apply() (bool, []Fault[T]) {
	n := len(t.acts)

	call := func(name func()) {
		if name != nil {
			name()
		}
	}

	publish := func(typ events.EventType, msg string) {
		t.broker.Publish(newEvent(typ, msg))
	}

	call(t.handlers.Open)
	publish(events.EventOpened, "transaction opened")

	errors := t.runPass(false, n)

	if len(errors) == 0 {
		call(t.handlers.Close)
		publish(events.EventClosed, "transaction closed")
		return true, nil
	}

	rollbackErrors := t.runPass(true, n)
	errors = append(errors, rollbackErrors...)

	call(t.handlers.Close)
	publish(events.EventClosed, "transaction closed")
	return false, errors
}

func (t *Transaction[T]) runPass(rollback bool, n int) []Fault[T] {
	var errors []Fault[T]

	if t.handlers.BeforeAll != nil {
		t.handlers.BeforeAll(rollback, n)
	}
	t.broker.Publish(newEvent(events.EventBeforeAll, "before all"))

	for i, a := range t.acts {
		if t.handlers.Before != nil {
			t.handlers.Before(rollback, i+1, a.Data)
		}
		t.broker.Publish(newEvent(events.EventActionBefore, ""))

		var err error
		if rollback {
			err = callRollback(a)
		} else {
			err = callApply(a)
		}

		isError := err != nil
		if isError {
			errors = append(errors, Fault[T]{Data: a.Data, Err: err})
			log.WithTransaction("transaction", t.id, rollback).Warn().Err(err).Int("action", i+1).Msg("action faulted")
			t.broker.Publish(newEvent(events.EventActionFailed, err.Error()))
		}

		if t.handlers.After != nil {
			t.handlers.After(rollback, i+1, a.Data, isError)
		}
		t.broker.Publish(newEvent(events.EventActionAfter, ""))
	}

	hadError := len(errors) > 0
	if t.handlers.AfterAll != nil {
		t.handlers.AfterAll(rollback, n, hadError)
	}
	t.broker.Publish(newEvent(events.EventAfterAll, ""))

	return errors
}
