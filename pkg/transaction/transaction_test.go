package transaction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyTransactionIsNoOp(t *testing.T) {
	var calls []string
	tx := New[string](nil, nil)
	tx.SetHandlers(Handlers[string]{
		Open:      func() { calls = append(calls, "open") },
		Close:     func() { calls = append(calls, "close") },
		BeforeAll: func(r bool, n int) { calls = append(calls, "beforeAll") },
		AfterAll:  func(r bool, n int, hadErr bool) { calls = append(calls, "afterAll") },
		Before:    func(r bool, i int, d string) { calls = append(calls, "before") },
		After:     func(r bool, i int, d string, isErr bool) { calls = append(calls, "after") },
	})

	ok, errs := tx.Apply()
	assert.True(t, ok)
	assert.Nil(t, errs)
	assert.Equal(t, []string{"open", "beforeAll", "afterAll", "close"}, calls)
}

func TestSuccessfulApplyRunsEveryAction(t *testing.T) {
	var applied []string
	actions := []Action[string]{
		{Data: "a", Apply: func(d string) error { applied = append(applied, d); return nil }},
		{Data: "b", Apply: func(d string) error { applied = append(applied, d); return nil }},
		{Data: "c", Apply: func(d string) error { applied = append(applied, d); return nil }},
	}
	tx := New(actions, nil)
	ok, errs := tx.Apply()
	assert.True(t, ok)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"a", "b", "c"}, applied)
}

func TestFaultAtStepKRollsBackAllStepsInOrder(t *testing.T) {
	var applied, rolledBack []string
	actions := []Action[string]{
		{Data: "a",
			Apply:    func(d string) error { applied = append(applied, d); return nil },
			Rollback: func(d string) { rolledBack = append(rolledBack, d) }},
		{Data: "b",
			Apply:    func(d string) error { applied = append(applied, d); return errors.New("boom") },
			Rollback: func(d string) { rolledBack = append(rolledBack, d) }},
		{Data: "c",
			Apply:    func(d string) error { applied = append(applied, d); return nil },
			Rollback: func(d string) { rolledBack = append(rolledBack, d) }},
	}
	tx := New(actions, nil)
	ok, errs := tx.Apply()

	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "b", errs[0].Data)

	// Continue-on-error: apply ran every action despite the fault at b.
	assert.Equal(t, []string{"a", "b", "c"}, applied)
	// Rollback pass covers the full list, in the same order.
	assert.Equal(t, []string{"a", "b", "c"}, rolledBack)
}

func TestLifecycleEventOrderUnderFault(t *testing.T) {
	var calls []string

	actions := []Action[int]{
		{Data: 1, Apply: func(int) error { return errors.New("fail") }},
	}
	tx := New(actions, nil)
	tx.SetHandlers(Handlers[int]{
		Open:      func() { calls = append(calls, "open") },
		Close:     func() { calls = append(calls, "close") },
		BeforeAll: func(r bool, n int) { calls = append(calls, pass("beforeAll", r)) },
		AfterAll:  func(r bool, n int, hadErr bool) { calls = append(calls, pass("afterAll", r)) },
		Before:    func(r bool, i int, d int) { calls = append(calls, pass("before", r)) },
		After:     func(r bool, i int, d int, isErr bool) { calls = append(calls, pass("after", r)) },
	})

	ok, errs := tx.Apply()
	assert.False(t, ok)
	assert.Len(t, errs, 1)

	assert.Equal(t, []string{
		"open",
		"beforeAll:apply", "before:apply", "after:apply", "afterAll:apply",
		"beforeAll:rollback", "before:rollback", "after:rollback", "afterAll:rollback",
		"close",
	}, calls)
}

func pass(name string, rollback bool) string {
	if rollback {
		return name + ":rollback"
	}
	return name + ":apply"
}

func TestApplyPanicBecomesFault(t *testing.T) {
	actions := []Action[string]{
		{Data: "boom", Apply: func(string) error { panic("unexpected") }},
	}
	tx := New(actions, nil)
	ok, errs := tx.Apply()
	assert.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "panicked")
}

func TestNilApplyAndRollbackAreNoOps(t *testing.T) {
	actions := []Action[string]{{Data: "x"}}
	tx := New(actions, nil)
	ok, errs := tx.Apply()
	assert.True(t, ok)
	assert.Empty(t, errs)
}
