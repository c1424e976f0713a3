// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package flip

import "sync"

// RaceEnabled is true when the race detector is active.
//
// Race builds replace the lock-free mailbox ring and task slots with the
// mutex-guarded versions below, so the detector sees every hand-off
// between the frame goroutine, the mailbox consumer and the workers.
const RaceEnabled = true

// ring is the mutex-guarded mailbox queue used under the race detector.
// Same contract as the lock-free ring: exact capacity, single producer,
// single consumer.
type ring[T any] struct {
	mu       sync.Mutex
	buffer   []T
	head     uint64
	tail     uint64
	capacity uint64
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		panic("flip: ring capacity must be >= 1")
	}
	return &ring[T]{
		buffer:   make([]T, capacity),
		capacity: uint64(capacity),
	}
}

// Enqueue adds an element to the ring.
// Returns ErrWouldBlock if the ring is full.
func (q *ring[T]) Enqueue(elem *T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.tail-q.head >= q.capacity {
		return ErrWouldBlock
	}
	q.buffer[q.tail%q.capacity] = *elem
	q.tail++
	return nil
}

// Dequeue removes and returns an element.
// Returns (zero-value, ErrWouldBlock) if the ring is empty.
func (q *ring[T]) Dequeue() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.head == q.tail {
		return zero, ErrWouldBlock
	}
	i := q.head % q.capacity
	elem := q.buffer[i]
	q.buffer[i] = zero
	q.head++
	return elem, nil
}

// Cap returns the ring capacity.
func (q *ring[T]) Cap() int {
	return int(q.capacity)
}

// taskSlots is the mutex-guarded task storage used under the race detector.
type taskSlots struct {
	mu    sync.Mutex
	slots []func() error
	head  uint64
	tail  uint64
	mask  uint64
}

func newTaskSlots(n int) *taskSlots {
	return &taskSlots{
		slots: make([]func() error, n),
		mask:  uint64(n - 1),
	}
}

func (s *taskSlots) push(fn func() error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tail-s.head == uint64(len(s.slots)) {
		return false
	}
	s.slots[s.tail&s.mask] = fn
	s.tail++
	return true
}

func (s *taskSlots) take() (func() error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head == s.tail {
		return nil, false
	}
	i := s.head & s.mask
	fn := s.slots[i]
	s.slots[i] = nil
	s.head++
	return fn, true
}

func (s *taskSlots) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.tail - s.head)
}

func (s *taskSlots) cap() int {
	return len(s.slots)
}
