// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// taskq is the bounded queue between [Runtime.Go] and the workers.
//
// It owns the runtime's lifecycle: Close stops new Puts, and Next reports
// false only once the queue is closed, no Put is in flight and every task
// has been taken. Idle workers and producers facing a full queue park on
// one-slot signals instead of polling, so the first task after a quiet
// period starts without backoff delay.
//
// Any goroutine may Put; every worker calls Next.
type taskq struct {
	slots *taskSlots

	_         pad
	closed    atomix.Bool
	_         pad
	producers atomix.Int64 // Puts between the closed check and the push
	_         pad

	ready     signal // a task was pushed
	space     signal // a task was taken
	done      chan struct{}
	closeOnce sync.Once
}

// newTaskq creates a task queue.
// Capacity rounds up to the next power of 2.
func newTaskq(capacity int) *taskq {
	if capacity < 2 {
		panic("flip: task capacity must be >= 2")
	}
	return &taskq{
		slots: newTaskSlots(roundToPow2(capacity)),
		ready: newSignal(),
		space: newSignal(),
		done:  make(chan struct{}),
	}
}

// Put adds fn, parking while the queue is full.
// Returns ErrClosed once Close has been called.
func (q *taskq) Put(fn func() error) error {
	q.producers.Add(1)
	defer q.producers.Add(-1)
	for {
		if q.closed.Load() {
			return ErrClosed
		}
		if q.slots.push(fn) {
			q.ready.notify()
			return nil
		}
		q.space.wait(q.done)
	}
}

// TryPut adds fn without blocking.
// Returns ErrWouldBlock if the queue is full, ErrClosed if closed.
func (q *taskq) TryPut(fn func() error) error {
	q.producers.Add(1)
	defer q.producers.Add(-1)
	if q.closed.Load() {
		return ErrClosed
	}
	if !q.slots.push(fn) {
		return ErrWouldBlock
	}
	q.ready.notify()
	return nil
}

// Next parks until a task is available and returns it.
// Returns false once the queue is closed and drained.
func (q *taskq) Next() (func() error, bool) {
	sw := spin.Wait{}
	for {
		if fn, ok := q.take(); ok {
			return fn, true
		}
		if !q.closed.Load() {
			q.ready.wait(q.done)
			continue
		}
		if q.producers.Load() == 0 {
			// A Put that raced with Close may have pushed after the
			// first take.
			return q.take()
		}
		sw.Once()
	}
}

func (q *taskq) take() (func() error, bool) {
	fn, ok := q.slots.take()
	if !ok {
		return nil, false
	}
	q.space.notify()
	if q.slots.len() > 0 {
		// Hand the wake-up on to another idle worker.
		q.ready.notify()
	}
	return fn, true
}

// Close stops accepting tasks and wakes every parked goroutine.
func (q *taskq) Close() {
	q.closeOnce.Do(func() {
		// Swap, not Store: a full barrier ahead of the producers check
		// in Next.
		q.closed.Swap(true)
		close(q.done)
	})
}

// Len returns the number of queued tasks.
func (q *taskq) Len() int {
	return q.slots.len()
}

// Cap returns the queue capacity.
func (q *taskq) Cap() int {
	return q.slots.cap()
}
