// Package waitq implements the blocking hand-off primitive behind the
// long-poll endpoints. A reader that finds no data registers a waiter under
// a (company, car) key and suspends; the next producer for that key wakes
// every queued waiter with its own copy of the new batch. This is fan-out,
// not a work queue: all concurrent long-polls for the same car must observe
// the same newly arrived data.
package waitq

import (
	"context"
	"sync"
	"time"

	"github.com/fleethub-io/fleethub/internal/pkg/util"
)

// Key addresses one waiter queue. The zero Key is the global queue used
// for car availability.
type Key struct {
	Company string
	Car     string
}

// Global is the key of the unkeyed (car availability) queue.
var Global Key

// Queue coordinates waiters for one payload type. Three instances run in
// the relay: statuses, commands and available cars.
type Queue[T any] struct {
	mu      sync.Mutex
	timeout time.Duration
	clone   func([]T) []T
	waiters map[Key][]*Waiter[T]
	closed  bool
}

// New creates a queue. clone produces the per-waiter payload copy handed
// out on release; nil means waiters share the released slice.
func New[T any](timeout time.Duration, clone func([]T) []T) *Queue[T] {
	if clone == nil {
		clone = func(in []T) []T { return in }
	}
	return &Queue[T]{
		timeout: timeout,
		clone:   clone,
		waiters: make(map[Key][]*Waiter[T]),
	}
}

// Waiter is one registered long-poll reader. It must be consumed with a
// single Wait call.
type Waiter[T any] struct {
	queue   *Queue[T]
	key     Key
	timeout time.Duration
	ch      chan []T
}

// NewWaiter registers a waiter under the key. The waiter captures the
// queue's current timeout; later SetTimeout calls do not affect it.
func (q *Queue[T]) NewWaiter(key Key) (*Waiter[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, util.ErrUnavailable
	}
	w := &Waiter[T]{
		queue:   q,
		key:     key,
		timeout: q.timeout,
		// Buffered so ReleaseAll never blocks on a waiter that is
		// concurrently timing out.
		ch: make(chan []T, 1),
	}
	q.waiters[key] = append(q.waiters[key], w)
	return w, nil
}

// Wait suspends until the waiter is released, its timeout elapses, or the
// context is cancelled. A timeout returns an empty payload and no error;
// queue shutdown returns ErrUnavailable so parked requests surface a
// failure instead of hanging. The waiter is always deregistered before
// Wait returns.
func (w *Waiter[T]) Wait(ctx context.Context) ([]T, error) {
	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case payload, ok := <-w.ch:
		if !ok {
			return nil, util.ErrUnavailable
		}
		return payload, nil
	case <-timer.C:
		return w.abandon(nil)
	case <-ctx.Done():
		return w.abandon(ctx.Err())
	}
}

// abandon removes the waiter from the queue and drains a release that may
// have landed between the wake-up reason and the removal.
func (w *Waiter[T]) abandon(cause error) ([]T, error) {
	w.queue.remove(w)
	select {
	case payload, ok := <-w.ch:
		if !ok {
			return nil, util.ErrUnavailable
		}
		return payload, nil
	default:
	}
	return nil, cause
}

// ReleaseAll delivers the payload to every waiter currently queued under
// the key and clears the queue. Each waiter receives an independent copy.
// Releasing a key with no waiters is a no-op; the data is already in the
// store for the next direct query. The lock covers the full iterate-and-
// send sequence, so a waiter registered concurrently is either woken by
// this release or untouched by it, never half-registered.
func (q *Queue[T]) ReleaseAll(key Key, payload []T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	woken := len(q.waiters[key])
	for _, w := range q.waiters[key] {
		w.ch <- q.clone(payload)
	}
	delete(q.waiters, key)
	return woken
}

// SetTimeout changes the timeout for waiters created after the call.
func (q *Queue[T]) SetTimeout(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.timeout = d
}

// Timeout returns the timeout applied to new waiters.
func (q *Queue[T]) Timeout() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.timeout
}

// Reset wakes every waiter with an empty payload and clears all queues.
// Used after a store restart: the blocked readers re-run their presence
// fallback against the rebuilt (empty) cache instead of trusting stale
// wait state.
func (q *Queue[T]) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for key, waiters := range q.waiters {
		for _, w := range waiters {
			w.ch <- nil
		}
		delete(q.waiters, key)
	}
}

// Close permanently shuts the queue down. Parked waiters resolve with
// ErrUnavailable and later NewWaiter calls fail.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	for key, waiters := range q.waiters {
		for _, w := range waiters {
			close(w.ch)
		}
		delete(q.waiters, key)
	}
}

func (q *Queue[T]) remove(w *Waiter[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()

	waiters := q.waiters[w.key]
	for i, candidate := range waiters {
		if candidate == w {
			q.waiters[w.key] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(q.waiters[w.key]) == 0 {
		delete(q.waiters, w.key)
	}
}
