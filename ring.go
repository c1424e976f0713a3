// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

package flip

import "code.hybscloud.com/atomix"

// ring is the single-producer single-consumer queue behind a [Mailbox].
//
// Based on Lamport's ring buffer with cached index optimization, like a
// power-of-two SPSC queue, except that the capacity is exact: a depth of 1
// holds exactly one message. Indices are reduced modulo the capacity.
//
// Race builds use the mutex-guarded ring in race.go instead.
//
// Memory: O(capacity) with minimal per-slot overhead
type ring[T any] struct {
	_          pad
	head       atomix.Uint64 // Consumer reads from here
	_          pad
	cachedTail uint64 // Consumer's cached view of tail
	_          pad
	tail       atomix.Uint64 // Producer writes here
	_          pad
	cachedHead uint64 // Producer's cached view of head
	_          pad
	buffer     []T
	capacity   uint64
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

// Enqueue adds an element to the ring (producer only).
// Returns ErrWouldBlock if the ring is full.
func (q *ring[T]) Enqueue(elem *T) error {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead >= q.capacity {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead >= q.capacity {
			return ErrWouldBlock
		}
	}

	q.buffer[tail%q.capacity] = *elem
	q.tail.StoreRelease(tail + 1)
	return nil
}

// Dequeue removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the ring is empty.
func (q *ring[T]) Dequeue() (T, error) {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			var zero T
			return zero, ErrWouldBlock
		}
	}

	i := head % q.capacity
	elem := q.buffer[i]
	var zero T
	q.buffer[i] = zero
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// Cap returns the ring capacity.
func (q *ring[T]) Cap() int {
	return int(q.capacity)
}
