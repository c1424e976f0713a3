// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip

import (
	"sync"

	"code.hybscloud.com/atomix"
)

// Buffer is a generation-swapping double buffer.
//
// Buffer owns exactly one current generation, read and written only by the
// goroutine that drives the frame loop, and at most one pending generation
// staged by [Publisher.Publish] from any goroutine. [Buffer.Swap] promotes
// the pending generation to current once per frame.
//
// Thread safety:
//   - Lock, Unlock, Swap, Current and Generation: owner goroutine only
//   - Publisher and Pending: any goroutine
//
// Holding the current lock across Swap deadlocks. Calling Swap from two
// goroutines concurrently is undefined behavior.
//
// Example:
//
//	buf := flip.NewBuffer(Model{})
//	pub := buf.Publisher()
//
//	go func() { pub.Publish(Model{Title: "next"}) }()
//
//	// once per frame
//	m := buf.Lock()
//	render(m)
//	buf.Unlock()
//	buf.Swap(func(old, new *Model) { old.ReleaseTextures() })
type Buffer[T any] struct {
	current *Cell[T]
	next    *pendingSlot[T]
}

// pendingSlot is shared between a buffer and all of its publishers.
// The lock is held only to take or replace the cell.
type pendingSlot[T any] struct {
	_    pad
	gen  atomix.Uint64 // Last assigned generation number
	_    pad
	mu   sync.Mutex
	cell *Cell[T]
}

// replace installs c as pending and returns the displaced cell, if any.
func (s *pendingSlot[T]) replace(c *Cell[T]) *Cell[T] {
	s.mu.Lock()
	prev := s.cell
	s.cell = c
	s.mu.Unlock()
	return prev
}

// take clears the slot and returns what it held.
func (s *pendingSlot[T]) take() *Cell[T] {
	s.mu.Lock()
	c := s.cell
	s.cell = nil
	s.mu.Unlock()
	return c
}

// NewBuffer creates a buffer whose current generation is initial.
// The initial generation is numbered 1 and nothing is pending.
func NewBuffer[T any](initial T) *Buffer[T] {
	next := &pendingSlot[T]{}
	next.gen.StoreRelease(1)
	return &Buffer[T]{
		current: newCell(1, initial),
		next:    next,
	}
}

// Lock acquires the current generation and returns a pointer to it.
// Only the owner goroutine may call Lock, and it must Unlock before Swap.
func (b *Buffer[T]) Lock() *T {
	return b.current.Lock()
}

// Unlock releases the current generation acquired by Lock.
func (b *Buffer[T]) Unlock() {
	b.current.Unlock()
}

// View locks the current generation, applies fn, and unlocks.
func (b *Buffer[T]) View(fn func(m *T)) {
	m := b.current.Lock()
	defer b.current.Unlock()
	fn(m)
}

// Current returns a weak back-reference to the current generation.
func (b *Buffer[T]) Current() Weak[T] {
	return Weak[T]{cell: b.current}
}

// Generation returns the generation number of the current generation.
func (b *Buffer[T]) Generation() uint64 {
	return b.current.gen
}

// Pending reports whether a generation is staged for the next Swap.
func (b *Buffer[T]) Pending() bool {
	b.next.mu.Lock()
	ok := b.next.cell != nil
	b.next.mu.Unlock()
	return ok
}

// Publisher returns a publish handle for this buffer's pending slot.
func (b *Buffer[T]) Publisher() Publisher[T] {
	return Publisher[T]{next: b.next}
}

// Swap promotes the pending generation to current.
//
// If nothing is pending Swap returns false without calling hook.
// Otherwise the previous current generation becomes old, hook runs with
// exclusive access to old and the new current generation, and old is
// released once hook returns. Swap returns true in that case.
//
// hook is the only point where resources tied to the old generation's
// identity can be torn down safely. It may be nil.
func (b *Buffer[T]) Swap(hook HookFunc[T]) bool {
	c := b.next.take()
	if c == nil {
		return false
	}

	old := b.current
	b.current = c

	if hook != nil {
		o := old.Lock()
		n := c.Lock()
		hook(o, n)
		c.Unlock()
		old.Unlock()
	}

	old.release()
	return true
}

// Publisher installs new pending generations into a [Buffer].
//
// A Publisher is a small value; copying it yields an equivalent handle on
// the same pending slot. Publishers are safe for concurrent use. The zero
// Publisher is not usable and panics on Publish.
type Publisher[T any] struct {
	next *pendingSlot[T]
}

// Publish wraps v in a new generation, replaces the pending generation
// with it, and returns a weak back-reference to the new generation.
//
// Last publish wins: an unconsumed pending generation is discarded without
// warning, and its weak references stop upgrading once no worker holds a
// strong [Ref] to it.
//
// The returned reference upgrades while the generation is pending, after it
// has been swapped in as current, and until it is superseded as current and
// released.
func (p Publisher[T]) Publish(v T) Weak[T] {
	if p.next == nil {
		panic("flip: Publish on zero Publisher")
	}
	c := newCell(p.next.gen.AddAcqRel(1), v)
	w := Weak[T]{cell: c}
	if prev := p.next.replace(c); prev != nil {
		prev.release()
	}
	return w
}
