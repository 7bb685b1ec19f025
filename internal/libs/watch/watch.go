// Package watch provides a single-producer, multi-consumer cell holding the
// most recently published value.
//
// Receivers do not queue values: a receiver that falls behind observes only
// the latest one. Each receiver tracks whether a value newer than the last one
// it marked as seen has been published, and can block until that happens.
package watch

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Receiver.Changed once the Value has been closed.
var ErrClosed = errors.New("watch: value closed")

// Value is the producer side of a watch cell. Publish must only be called by
// a single writer; readers use Subscribe.
type Value[T any] struct {
	mtx     sync.RWMutex
	val     T
	version uint64
	closed  bool
	changed chan struct{}
}

// New returns a cell initialized to initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		val:     initial,
		changed: make(chan struct{}),
	}
}

// Publish replaces the current value and wakes every blocked receiver.
func (v *Value[T]) Publish(val T) {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	if v.closed {
		return
	}
	v.val = val
	v.version++
	close(v.changed)
	v.changed = make(chan struct{})
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	return v.val
}

// Close wakes all receivers with ErrClosed. Publishing after Close is a no-op.
func (v *Value[T]) Close() {
	v.mtx.Lock()
	defer v.mtx.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	close(v.changed)
}

// Subscribe returns a receiver for which the current value counts as seen.
func (v *Value[T]) Subscribe() *Receiver[T] {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	return &Receiver[T]{src: v, seen: v.version}
}

// Receiver observes a Value. A Receiver must not be used from more than one
// goroutine at a time.
type Receiver[T any] struct {
	src  *Value[T]
	seen uint64
}

// Borrow returns the current value without marking it as seen.
func (r *Receiver[T]) Borrow() T {
	return r.src.Load()
}

// BorrowAndUpdate returns the current value and marks it as seen.
func (r *Receiver[T]) BorrowAndUpdate() T {
	r.src.mtx.RLock()
	defer r.src.mtx.RUnlock()
	r.seen = r.src.version
	return r.src.val
}

// HasChanged reports whether a value newer than the last seen one exists.
func (r *Receiver[T]) HasChanged() bool {
	r.src.mtx.RLock()
	defer r.src.mtx.RUnlock()
	return r.src.version > r.seen
}

// Changed blocks until a value newer than the last seen one is published,
// then marks it as seen. It returns immediately if such a value already
// exists.
func (r *Receiver[T]) Changed(ctx context.Context) error {
	for {
		r.src.mtx.RLock()
		closed, version, ch := r.src.closed, r.src.version, r.src.changed
		r.src.mtx.RUnlock()

		if version > r.seen {
			r.seen = version
			return nil
		}
		if closed {
			return ErrClosed
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
