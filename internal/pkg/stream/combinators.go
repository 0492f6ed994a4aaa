package stream

import (
	"context"
)

// Pair holds the latest values of two streams.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Distinct forwards values that differ from the previously forwarded one.
func Distinct[T any](ctx context.Context, in <-chan T, eq func(a, b T) bool) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		var last T
		has := false
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				if has && eq(last, v) {
					continue
				}
				last, has = v, true
				if !send(ctx, out, v) {
					return
				}
			}
		}
	}()
	return out
}

// Filter forwards the values for which keep returns true.
func Filter[T any](ctx context.Context, in <-chan T, keep func(T) bool) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				if keep(v) && !send(ctx, out, v) {
					return
				}
			}
		}
	}()
	return out
}

// Map forwards fn(v) for every value.
func Map[T, U any](ctx context.Context, in <-chan T, fn func(T) U) <-chan U {
	out := make(chan U)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				if !send(ctx, out, fn(v)) {
					return
				}
			}
		}
	}()
	return out
}

// CombineLatest2 emits a Pair once both inputs produced a value, then again
// on every change of either. An undelivered pair is replaced by a newer one.
// The output closes when ctx is done or either input closes.
func CombineLatest2[A, B any](ctx context.Context, a <-chan A, b <-chan B) <-chan Pair[A, B] {
	out := make(chan Pair[A, B])
	go func() {
		defer close(out)
		var (
			latest     Pair[A, B]
			hasA, hasB bool
			pending    Pair[A, B]
			sendCh     chan Pair[A, B]
		)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-a:
				if !ok {
					return
				}
				latest.First, hasA = v, true
			case v, ok := <-b:
				if !ok {
					return
				}
				latest.Second, hasB = v, true
			case sendCh <- pending:
				sendCh = nil
				continue
			}
			if hasA && hasB {
				pending, sendCh = latest, out
			}
		}
	}()
	return out
}

// SwitchLatest calls fn for every value of in. A new value cancels the
// context of the running call and waits for it to return before the next
// call starts. When in closes the last call runs to completion.
// SwitchLatest blocks until in closes or ctx is done.
func SwitchLatest[T any](ctx context.Context, in <-chan T, fn func(ctx context.Context, v T)) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	stop := func() {
		if cancel == nil {
			return
		}
		cancel()
		<-done
		cancel, done = nil, nil
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-in:
			if !ok {
				if done != nil {
					select {
					case <-done:
					case <-ctx.Done():
					}
				}
				return
			}
			stop()

			runCtx, runCancel := context.WithCancel(ctx)
			runDone := make(chan struct{})
			cancel, done = runCancel, runDone
			go func() {
				defer close(runDone)
				fn(runCtx, v)
			}()
		}
	}
}

func send[T any](ctx context.Context, out chan<- T, v T) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
