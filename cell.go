// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Cell is a mutex-guarded container holding one generation of a model.
//
// A Cell is shared by explicit strong reference counting. The buffer holds
// one reference for the current generation, the pending slot holds one for
// the pending generation, and every upgraded [Ref] holds one until released.
// When the count drops to zero the cell is dead: its value is cleared and
// no [Weak] reference to it can ever be upgraded again.
//
// Lock acquisitions on a cell must be short-lived. The owner of the current
// generation and an upgrading worker may contend for it.
type Cell[T any] struct {
	_    pad
	refs atomix.Uint64 // Strong references
	_    pad
	gen  uint64
	mu   sync.Mutex
	val  T
}

func newCell[T any](gen uint64, v T) *Cell[T] {
	c := &Cell[T]{gen: gen, val: v}
	c.refs.StoreRelease(1)
	return c
}

// Lock acquires the cell and returns a pointer to its value.
// The pointer must not be used after Unlock.
func (c *Cell[T]) Lock() *T {
	c.mu.Lock()
	return &c.val
}

// Unlock releases the cell acquired by Lock.
func (c *Cell[T]) Unlock() {
	c.mu.Unlock()
}

// Generation returns the generation number assigned at publish time.
// The initial model is generation 1.
func (c *Cell[T]) Generation() uint64 {
	return c.gen
}

// Alive reports whether the cell still has a strong holder.
// The answer is advisory: it may change as soon as it is returned.
func (c *Cell[T]) Alive() bool {
	return c.refs.LoadAcquire() > 0
}

// tryAcquire adds a strong reference unless the cell is already dead.
// A count of zero is final.
func (c *Cell[T]) tryAcquire() bool {
	sw := spin.Wait{}
	for {
		n := c.refs.LoadAcquire()
		if n == 0 {
			return false
		}
		if c.refs.CompareAndSwapAcqRel(n, n+1) {
			return true
		}
		sw.Once()
	}
}

// release drops a strong reference and clears the value on the last one.
func (c *Cell[T]) release() {
	if c.refs.AddAcqRel(^uint64(0)) != 0 {
		return
	}
	var zero T
	c.mu.Lock()
	c.val = zero
	c.mu.Unlock()
}

// Ref is a strong handle to a generation obtained from [Weak.Upgrade].
//
// While a Ref is held the generation stays alive even if it was replaced in
// the pending slot or superseded as current. Release it as soon as the
// unit of work is done, otherwise superseded generations linger and the
// cancellation signal is delayed.
type Ref[T any] struct {
	cell     *Cell[T]
	released atomix.Uint64
}

// Lock acquires the generation and returns a pointer to its value.
func (r *Ref[T]) Lock() *T {
	return r.cell.Lock()
}

// Unlock releases the generation acquired by Lock.
func (r *Ref[T]) Unlock() {
	r.cell.Unlock()
}

// Generation returns the generation number of the referenced cell.
func (r *Ref[T]) Generation() uint64 {
	return r.cell.gen
}

// Update locks the generation, applies fn, and unlocks.
func (r *Ref[T]) Update(fn func(v *T)) {
	v := r.cell.Lock()
	defer r.cell.Unlock()
	fn(v)
}

// Release drops the strong reference. Calling Release more than once on the
// same Ref has no further effect.
func (r *Ref[T]) Release() {
	if r.released.CompareAndSwapAcqRel(0, 1) {
		r.cell.release()
	}
}

// Weak is a non-owning back-reference to one generation.
//
// Upgrade yields a strong [Ref] only while some strong holder keeps the
// generation alive. Once the generation has been replaced and every strong
// holder has let go, Upgrade fails permanently. A failed upgrade is the
// staleness signal for incremental workers; there is no other cancellation
// mechanism.
//
// The zero Weak refers to nothing and never upgrades.
type Weak[T any] struct {
	cell *Cell[T]
}

// Upgrade returns a strong reference if the generation is still alive.
func (w Weak[T]) Upgrade() (*Ref[T], bool) {
	if w.cell == nil || !w.cell.tryAcquire() {
		return nil, false
	}
	return &Ref[T]{cell: w.cell}, true
}

// Alive reports whether Upgrade would currently succeed.
// Use it to skip expensive work early; Upgrade remains authoritative.
func (w Weak[T]) Alive() bool {
	return w.cell != nil && w.cell.Alive()
}

// Generation returns the generation number, or 0 for the zero Weak.
func (w Weak[T]) Generation() uint64 {
	if w.cell == nil {
		return 0
	}
	return w.cell.gen
}
