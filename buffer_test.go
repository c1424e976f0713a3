// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/flip"
)

type snapshot struct {
	Name  string
	Items []int
}

// =============================================================================
// Buffer - Basic Operations
// =============================================================================

// TestBufferRoundTrip publishes a model, swaps it in, and checks that the
// previous current generation reaches the hook as old.
func TestBufferRoundTrip(t *testing.T) {
	buf := flip.NewBuffer(snapshot{Name: "initial"})
	pub := buf.Publisher()

	pub.Publish(snapshot{Name: "next", Items: []int{1, 2}})

	calls := 0
	swapped := buf.Swap(func(old, new *snapshot) {
		calls++
		if old.Name != "initial" {
			t.Fatalf("hook old: got %q, want %q", old.Name, "initial")
		}
		if new.Name != "next" {
			t.Fatalf("hook new: got %q, want %q", new.Name, "next")
		}
	})
	if !swapped || calls != 1 {
		t.Fatalf("Swap: got swapped=%v calls=%d, want true 1", swapped, calls)
	}

	m := buf.Lock()
	name, n := m.Name, len(m.Items)
	buf.Unlock()
	if name != "next" || n != 2 {
		t.Fatalf("current: got %q/%d, want %q/2", name, n, "next")
	}
}

// TestBufferSwapEmpty checks that Swap without a pending generation neither
// calls the hook nor touches current.
func TestBufferSwapEmpty(t *testing.T) {
	buf := flip.NewBuffer(snapshot{Name: "only"})

	for range 3 {
		if buf.Swap(func(old, new *snapshot) { t.Fatal("hook called on empty slot") }) {
			t.Fatal("Swap on empty: got true, want false")
		}
	}
	if buf.Generation() != 1 {
		t.Fatalf("Generation: got %d, want 1", buf.Generation())
	}
	buf.View(func(m *snapshot) {
		if m.Name != "only" {
			t.Fatalf("current: got %q, want %q", m.Name, "only")
		}
	})

	// A nil hook is allowed.
	buf.Publisher().Publish(snapshot{Name: "x"})
	if !buf.Swap(nil) {
		t.Fatal("Swap(nil): got false, want true")
	}
}

// TestBufferGenerations checks generation numbering across publishes.
func TestBufferGenerations(t *testing.T) {
	buf := flip.NewBuffer(snapshot{})
	pub := buf.Publisher()

	w2 := pub.Publish(snapshot{})
	w3 := pub.Publish(snapshot{})
	if w2.Generation() != 2 || w3.Generation() != 3 {
		t.Fatalf("generations: got %d,%d, want 2,3", w2.Generation(), w3.Generation())
	}
	if !buf.Pending() {
		t.Fatal("Pending: got false, want true")
	}
	buf.Swap(nil)
	if buf.Pending() {
		t.Fatal("Pending after Swap: got true, want false")
	}
	if buf.Generation() != 3 {
		t.Fatalf("Generation: got %d, want 3", buf.Generation())
	}
	if buf.Current().Generation() != 3 {
		t.Fatalf("Current().Generation: got %d, want 3", buf.Current().Generation())
	}
}

// TestPublisherClone checks that copies of a publisher share one slot.
func TestPublisherClone(t *testing.T) {
	buf := flip.NewBuffer(snapshot{})
	a := buf.Publisher()
	b := a

	a.Publish(snapshot{Name: "a"})
	b.Publish(snapshot{Name: "b"})

	buf.Swap(nil)
	buf.View(func(m *snapshot) {
		if m.Name != "b" {
			t.Fatalf("current: got %q, want %q", m.Name, "b")
		}
	})
}

// TestZeroPublisherPanics checks that the zero Publisher is unusable.
func TestZeroPublisherPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Publish on zero Publisher: want panic")
		}
	}()
	var p flip.Publisher[int]
	p.Publish(1)
}

// =============================================================================
// Weak Back-References
// =============================================================================

// TestAtMostOnePending publishes several generations without a swap: only
// the last is observed, and the earlier ones can no longer be upgraded.
func TestAtMostOnePending(t *testing.T) {
	buf := flip.NewBuffer(snapshot{Name: "g1"})
	pub := buf.Publisher()

	weaks := []flip.Weak[snapshot]{
		pub.Publish(snapshot{Name: "a"}),
		pub.Publish(snapshot{Name: "b"}),
		pub.Publish(snapshot{Name: "c"}),
	}

	for i, w := range weaks[:2] {
		if w.Alive() {
			t.Fatalf("weak %d: Alive after replace", i)
		}
		if _, ok := w.Upgrade(); ok {
			t.Fatalf("weak %d: Upgrade succeeded after replace", i)
		}
	}

	var seen []string
	buf.Swap(func(old, new *snapshot) { seen = append(seen, new.Name) })
	if buf.Swap(func(old, new *snapshot) { seen = append(seen, new.Name) }) {
		t.Fatal("second Swap: got true, want false")
	}
	if len(seen) != 1 || seen[0] != "c" {
		t.Fatalf("hook: got %v, want [c]", seen)
	}
}

// TestWeakLifecycle follows one generation from pending through current to
// superseded.
func TestWeakLifecycle(t *testing.T) {
	buf := flip.NewBuffer(snapshot{})
	pub := buf.Publisher()

	w := pub.Publish(snapshot{Name: "g2"})

	// Pending: upgrade succeeds.
	ref, ok := w.Upgrade()
	if !ok {
		t.Fatal("Upgrade while pending: got false")
	}
	ref.Update(func(s *snapshot) { s.Items = append(s.Items, 1) })
	ref.Release()
	ref.Release() // idempotent

	// Current: upgrade still succeeds.
	buf.Swap(nil)
	ref, ok = w.Upgrade()
	if !ok {
		t.Fatal("Upgrade while current: got false")
	}
	v := ref.Lock()
	n := len(v.Items)
	ref.Unlock()
	ref.Release()
	if n != 1 {
		t.Fatalf("items: got %d, want 1", n)
	}

	// Superseded as current and released.
	pub.Publish(snapshot{Name: "g3"})
	buf.Swap(nil)
	if _, ok := w.Upgrade(); ok {
		t.Fatal("Upgrade after supersede: got true, want false")
	}
}

// TestWeakHeldRefKeepsAlive checks that a strong Ref keeps a replaced
// generation alive, and that it cannot be resurrected after release.
func TestWeakHeldRefKeepsAlive(t *testing.T) {
	buf := flip.NewBuffer(snapshot{})
	pub := buf.Publisher()

	w := pub.Publish(snapshot{Name: "held"})
	ref, ok := w.Upgrade()
	if !ok {
		t.Fatal("Upgrade: got false")
	}

	pub.Publish(snapshot{Name: "replacement"})
	if !w.Alive() {
		t.Fatal("Alive while Ref held: got false")
	}
	ref2, ok := w.Upgrade()
	if !ok {
		t.Fatal("Upgrade while Ref held: got false")
	}
	ref2.Release()

	ref.Release()
	if w.Alive() {
		t.Fatal("Alive after last Release: got true")
	}
	for range 3 {
		if _, ok := w.Upgrade(); ok {
			t.Fatal("Upgrade after death: got true, want false")
		}
	}

	var seen string
	buf.Swap(func(old, new *snapshot) { seen = new.Name })
	if seen != "replacement" {
		t.Fatalf("swapped in: got %q, want %q", seen, "replacement")
	}
}

// TestZeroWeak checks that the zero Weak never upgrades.
func TestZeroWeak(t *testing.T) {
	var w flip.Weak[snapshot]
	if w.Alive() || w.Generation() != 0 {
		t.Fatal("zero Weak: want dead, generation 0")
	}
	if _, ok := w.Upgrade(); ok {
		t.Fatal("zero Weak: Upgrade succeeded")
	}
}

// TestCancellation runs the incremental producer protocol: after k writes
// the owner publishes G2, the worker's next upgrade fails, and G1 is never
// observed as current.
func TestCancellation(t *testing.T) {
	const k = 5
	buf := flip.NewBuffer(snapshot{Name: "g0"})
	pub := buf.Publisher()

	g1 := pub.Publish(snapshot{Name: "g1"})
	for i := range k {
		ref, ok := g1.Upgrade()
		if !ok {
			t.Fatalf("write %d: Upgrade failed before supersede", i)
		}
		ref.Update(func(s *snapshot) { s.Items = append(s.Items, i) })
		ref.Release()
	}

	pub.Publish(snapshot{Name: "g2"})

	writes := k
	for i := k; i < 100; i++ {
		ref, ok := g1.Upgrade()
		if !ok {
			break
		}
		writes++
		ref.Release()
	}
	if writes != k {
		t.Fatalf("writes: got %d, want %d", writes, k)
	}

	var current []string
	for range 3 {
		buf.Swap(func(old, new *snapshot) { current = append(current, new.Name) })
	}
	for _, name := range current {
		if name == "g1" {
			t.Fatal("g1 observed as current")
		}
	}
}

// =============================================================================
// Buffer - Concurrency
// =============================================================================

type checked struct {
	Producer int
	Seq      int
	Sum      int
	Items    []int
}

func makeChecked(p, seq int) checked {
	items := make([]int, seq%16+1)
	sum := 0
	for i := range items {
		items[i] = p*1000 + i
		sum += items[i]
	}
	return checked{Producer: p, Seq: seq, Sum: sum, Items: items}
}

func (c *checked) valid() bool {
	sum := 0
	for _, v := range c.Items {
		sum += v
	}
	return sum == c.Sum && len(c.Items) == c.Seq%16+1
}

// TestSwapAtomicity publishes from several goroutines while one goroutine
// swaps. Every swapped-in model must be complete, and the hook must fire
// exactly once per successful swap and never twice for the same value.
func TestSwapAtomicity(t *testing.T) {
	const (
		producers = 4
		perProd   = 2000
	)

	buf := flip.NewBuffer(checked{Seq: -1})
	var wg sync.WaitGroup
	var finished atomix.Int32

	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			defer finished.Add(1)
			pub := buf.Publisher()
			for seq := range perProd {
				pub.Publish(makeChecked(p, seq))
			}
		}(p)
	}

	type key struct{ p, seq int }
	seen := make(map[key]bool)
	hooks, swaps := 0, 0
	hook := func(old, new *checked) {
		hooks++
		if !new.valid() {
			t.Errorf("partial model: producer %d seq %d", new.Producer, new.Seq)
		}
		k := key{new.Producer, new.Seq}
		if seen[k] {
			t.Errorf("model swapped in twice: %+v", k)
		}
		seen[k] = true
	}

	for finished.Load() < producers {
		if buf.Swap(hook) {
			swaps++
		}
	}
	wg.Wait()
	if buf.Swap(hook) {
		swaps++
	}

	if hooks != swaps {
		t.Fatalf("hooks: got %d, want %d", hooks, swaps)
	}
	if swaps == 0 {
		t.Fatal("no swap observed")
	}
	if buf.Pending() {
		t.Fatal("pending generation left after final swap")
	}
}
