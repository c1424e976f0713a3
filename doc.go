// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package flip lets a single-goroutine frame loop cooperate with a pool of
// background workers without either side blocking for long or racing on
// shared application state.
//
// The package has two collaborating mechanisms:
//
//   - Buffer: a generation-swapping double buffer. The frame goroutine owns
//     the current generation; any goroutine may stage a pending one.
//   - Mailbox: a bounded single-consumer queue from the frame goroutine to
//     update logic, which publishes new generations.
//
// # Quick Start
//
// Drive an [App] with a [Program]:
//
//	p := flip.NewProgram[Model, Msg](flip.New().Workers(4), app)
//	defer p.Close()
//
//	for range time.Tick(time.Second / 60) {
//	    p.Frame() // Render, send messages, Swap
//	}
//
// Or wire the pieces yourself:
//
//	buf := flip.NewBuffer(Model{})
//	rt := flip.NewRuntime(flip.New())
//	mb := flip.NewMailbox(flip.New(), rt, buf.Publisher(), update, onError)
//
// # Generations
//
// A generation is one model value in its own [Cell]. The buffer holds
// exactly one current generation and at most one pending generation:
//
//	Publish(v)  → v becomes pending, replacing any unconsumed pending one
//	Swap(hook)  → pending becomes current, hook(old, new), old is released
//
// Swap on an empty pending slot does nothing and does not call the hook.
// The hook is the place to release resources tied to the old generation,
// such as GPU textures: nothing else can reach the old generation once the
// hook returns, except workers still holding a strong [Ref].
//
// # Cooperative Cancellation
//
// Publish returns a [Weak] back-reference to the new generation. Incremental
// workers use it to keep writing into that exact generation and to notice
// when nobody can observe their output any more:
//
//	w := pub.Publish(Gallery{})
//	for _, path := range paths {
//	    thumb := decode(path)      // one unit of work
//	    ref, ok := w.Upgrade()
//	    if !ok {
//	        return                 // superseded: stop
//	    }
//	    ref.Update(func(g *Gallery) { g.Thumbs = append(g.Thumbs, thumb) })
//	    ref.Release()
//	}
//
// Upgrade fails once the generation was replaced (in the pending slot or as
// current) and no strong holder is left. Failure is permanent. There is no
// cancellation token: the check is advisory and only as fine-grained as the
// worker makes it.
//
// Go's garbage collector does not release objects deterministically, so
// liveness is tracked with explicit strong reference counts rather than
// runtime weak pointers. Release every Ref promptly.
//
// # Mailbox
//
// [Mailbox.Send] enqueues a message and blocks while the queue is full.
// One consumer goroutine dequeues messages in send order and runs the
// update function for each, never two at a time. Errors returned by update
// logic, and panics inside it, go to the error handler and are otherwise
// discarded.
//
// The queue depth defaults to 1: one message may wait while another is being
// processed. A further Send stalls the frame loop until the consumer
// advances. Use [Builder.Depth] to trade memory for frame latency:
//
//	b := flip.New().Depth(8)
//
// [Mailbox.Close] is the only teardown path. Messages queued before Close
// are still processed.
//
// # Runtime
//
// [Runtime] is a fixed-size pool of worker goroutines for detached tasks,
// typically incremental producers spawned from update logic so that the
// mailbox consumer can move on to the next message:
//
//	rt.Go(func() error { return loadThumbnails(w, dir) })
//
// # Error Handling
//
// Queue-level operations return [ErrWouldBlock] when they cannot proceed.
// This error is sourced from [code.hybscloud.com/iox] for ecosystem
// consistency. Blocking operations park instead: an idle consumer or
// worker sleeps on a one-slot wake-up channel until a message or task
// arrives, and a sender facing a full queue sleeps until a slot frees.
//
//	err := mb.TrySend(msg)
//	if flip.IsWouldBlock(err) {
//	    // queue full: retry next frame
//	}
//
// [ErrClosed] reports use after Close. Staleness is not an error.
//
// Calling Swap from two goroutines, or holding the current lock across
// Swap, is a programmer error with undefined behavior.
//
// # Thread Safety
//
//   - Buffer Lock/Unlock/Swap: the frame goroutine only
//   - Publisher.Publish, Weak.Upgrade: any goroutine
//   - Mailbox Send/TrySend/Close: one sending goroutine
//   - Runtime.Go: any goroutine
//
// # Race Detection
//
// The mailbox ring and the runtime task queue are lock-free, synchronized
// through [code.hybscloud.com/atomix] acquire/release ordering that Go's
// race detector cannot observe. Under -race ([RaceEnabled]) both are
// replaced by mutex-guarded versions with the same contract, so
// applications built on flip can be race-tested like any other code.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors, [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause instructions.
package flip
