// Package stream provides the broadcast cells and latest-wins combinators the
// agent wires its dataflow graph from.
package stream

import (
	"context"
	"sync"
)

// State is a broadcast cell with replay depth 1. It has one producer, any
// number of subscribers, and never blocks the producer on a slow subscriber.
type State[T any] struct {
	mu       sync.Mutex
	value    T
	has      bool
	equal    func(a, b T) bool
	conflate bool
	subs     map[*subscriber[T]]struct{}
}

// Option configures a State.
type Option[T any] func(*State[T])

// WithEqual drops a Set whose value equals the current one.
func WithEqual[T any](eq func(a, b T) bool) Option[T] {
	return func(s *State[T]) { s.equal = eq }
}

// Conflated lets a slow subscriber skip intermediate values and observe only
// the latest. Without it every value is delivered in order.
func Conflated[T any]() Option[T] {
	return func(s *State[T]) { s.conflate = true }
}

// NewState returns an empty cell. Subscribers receive nothing until the first Set.
func NewState[T any](opts ...Option[T]) *State[T] {
	s := &State[T]{subs: make(map[*subscriber[T]]struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStateOf returns a cell already holding v.
func NewStateOf[T any](v T, opts ...Option[T]) *State[T] {
	s := NewState(opts...)
	s.value, s.has = v, true
	return s
}

// Set publishes v to every subscriber.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(v)
}

// Update replaces the value with fn(current). current is the zero value
// before the first Set.
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(fn(s.value))
}

func (s *State[T]) setLocked(v T) {
	if s.has && s.equal != nil && s.equal(s.value, v) {
		return
	}
	s.value, s.has = v, true
	for sub := range s.subs {
		sub.push(v, s.conflate)
	}
}

// Get returns the current value and whether one was ever set.
func (s *State[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.has
}

// Subscribe returns a channel replaying the current value, if any, followed
// by every later one. The channel is closed once ctx is done.
func (s *State[T]) Subscribe(ctx context.Context) <-chan T {
	sub := &subscriber[T]{wake: make(chan struct{}, 1)}
	out := make(chan T)

	s.mu.Lock()
	if s.has {
		sub.push(s.value, s.conflate)
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.wake:
			}

			for {
				v, ok := sub.pop()
				if !ok {
					break
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

type subscriber[T any] struct {
	mu    sync.Mutex
	queue []T
	wake  chan struct{}
}

func (s *subscriber[T]) push(v T, conflate bool) {
	s.mu.Lock()
	if conflate {
		clear(s.queue)
		s.queue = s.queue[:0]
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) pop() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		var zero T
		return zero, false
	}
	v := s.queue[0]
	var zero T
	s.queue[0] = zero
	s.queue = s.queue[1:]
	return v, true
}
