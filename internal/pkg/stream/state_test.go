package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func assertQuiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("unexpected value %v", v)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStateReplaysLatestToLateSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewState[int]()
	s.Set(1)
	s.Set(2)

	ch := s.Subscribe(ctx)
	assert.Equal(t, 2, recv(t, ch))
	assertQuiet(t, ch)

	s.Set(3)
	assert.Equal(t, 3, recv(t, ch))
}

func TestStateEmptyDoesNotEmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewState[string]()
	ch := s.Subscribe(ctx)
	assertQuiet(t, ch)

	_, ok := s.Get()
	assert.False(t, ok)
}

func TestStateDeliversInOrderWithoutConflation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewState[int]()
	ch := s.Subscribe(ctx)
	for i := 1; i <= 5; i++ {
		s.Set(i)
	}
	for i := 1; i <= 5; i++ {
		assert.Equal(t, i, recv(t, ch))
	}
}

func TestStateConflatedSkipsToLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewState(Conflated[int]())
	ch := s.Subscribe(ctx)
	s.Set(1)
	v := recv(t, ch)
	require.Equal(t, 1, v)

	for i := 2; i <= 100; i++ {
		s.Set(i)
	}
	// The subscriber may observe at most one intermediate value before the latest.
	for v != 100 {
		v = recv(t, ch)
	}
	assertQuiet(t, ch)
}

func TestStateWithEqualDropsRepeats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStateOf(1, WithEqual(func(a, b int) bool { return a == b }))
	ch := s.Subscribe(ctx)
	assert.Equal(t, 1, recv(t, ch))

	s.Set(1)
	assertQuiet(t, ch)

	s.Update(func(v int) int { return v + 1 })
	assert.Equal(t, 2, recv(t, ch))
}

func TestStateSubscriptionClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStateOf("x")
	ch := s.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)

	// Producer must not block once the subscriber is gone.
	s.Set("y")
}
