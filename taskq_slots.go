// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

package flip

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// taskSlots is the lock-free storage behind a [taskq]: a power-of-two ring
// of task slots, each stamped with a sequence number.
//
// A slot at position i is free for the producer that claims tail == seq,
// and holds a task for the consumer that claims head == seq-1. Stamps make
// a slot reusable only after its previous task was taken, so producers
// and consumers never meet on the same slot.
type taskSlots struct {
	_     pad
	tail  atomix.Uint64
	_     pad
	head  atomix.Uint64
	_     pad
	slots []taskSlot
	mask  uint64
}

type taskSlot struct {
	seq atomix.Uint64
	fn  func() error
	_   [64 - 16]byte
}

func newTaskSlots(n int) *taskSlots {
	s := &taskSlots{
		slots: make([]taskSlot, n),
		mask:  uint64(n - 1),
	}
	for i := range s.slots {
		s.slots[i].seq.StoreRelaxed(uint64(i))
	}
	return s
}

func (s *taskSlots) push(fn func() error) bool {
	sw := spin.Wait{}
	for {
		tail := s.tail.LoadAcquire()
		slot := &s.slots[tail&s.mask]
		switch seq := slot.seq.LoadAcquire(); {
		case seq == tail:
			if s.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.fn = fn
				slot.seq.StoreRelease(tail + 1)
				return true
			}
		case seq < tail:
			return false // full: slot still holds the previous lap's task
		}
		sw.Once()
	}
}

func (s *taskSlots) take() (func() error, bool) {
	sw := spin.Wait{}
	for {
		head := s.head.LoadAcquire()
		slot := &s.slots[head&s.mask]
		switch seq := slot.seq.LoadAcquire(); {
		case seq == head+1:
			if s.head.CompareAndSwapAcqRel(head, head+1) {
				fn := slot.fn
				slot.fn = nil
				slot.seq.StoreRelease(head + uint64(len(s.slots)))
				return fn, true
			}
		case seq < head+1:
			return nil, false // empty: slot not yet filled for this lap
		}
		sw.Once()
	}
}

// len is a snapshot; head is read first so the result is never negative.
func (s *taskSlots) len() int {
	head := s.head.LoadAcquire()
	return int(s.tail.LoadAcquire() - head)
}

func (s *taskSlots) cap() int {
	return len(s.slots)
}
