// Package observable provides a single mutable cell whose changes are
// broadcast, in order, to every current subscriber.
package observable

import (
	"context"
	"sync"
)

// Reader is the read-only view of a Value.
type Reader[T any] interface {
	// Get returns the current value without blocking on subscribers.
	Get() T
	// Subscribe registers fn for every later change. The returned function
	// removes the subscription.
	Subscribe(fn func(T)) (cancel func())
	// Wait blocks until the value satisfies pred or ctx is done.
	Wait(ctx context.Context, pred func(T) bool) (T, error)
}

// Value is a thread-safe observable cell.
//
// Subscriber callbacks run synchronously on the goroutine calling Set, one
// change at a time. A callback must not call Set on the same Value.
type Value[T any] struct {
	deliverMu sync.Mutex

	mu      sync.RWMutex
	current T
	nextID  int
	subs    map[int]func(T)
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[int]func(T)),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set stores next and delivers it to all subscribers before returning.
func (v *Value[T]) Set(next T) {
	v.deliverMu.Lock()
	defer v.deliverMu.Unlock()

	v.mu.Lock()
	v.current = next
	subs := make([]func(T), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}

// Subscribe registers fn for every change made after this call.
func (v *Value[T]) Subscribe(fn func(T)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subs[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.subs, id)
			v.mu.Unlock()
		})
	}
}

// Wait returns the first value, current or future, for which pred holds.
func (v *Value[T]) Wait(ctx context.Context, pred func(T) bool) (T, error) {
	matched := make(chan T, 1)
	cancel := v.Subscribe(func(val T) {
		if pred(val) {
			select {
			case matched <- val:
			default:
			}
		}
	})
	defer cancel()

	if current := v.Get(); pred(current) {
		return current, nil
	}

	select {
	case val := <-matched:
		return val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
