// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip

// App is the contract between the frame loop and the worker runtime,
// loosely based on the Elm architecture.
//
// T is the model: one consistent snapshot of application state. It crosses
// goroutine boundaries, so it must not hold resources bound to the frame
// goroutine. Render-only state belongs in the App implementation itself.
// M is the message type describing one unit of update work.
//
// Init, Render and Swap run on the frame goroutine. Update runs on the
// mailbox consumer, one message at a time. HandleError may run on any
// goroutine and must not block.
//
// Example:
//
//	type Gallery struct{ rt *flip.Runtime }
//
//	func (g *Gallery) Init(rt *flip.Runtime) (Model, []Msg) {
//	    g.rt = rt
//	    return Model{}, []Msg{OpenDir("~/Pictures")}
//	}
//
//	func (g *Gallery) Update(pub flip.Publisher[Model], msg Msg) error {
//	    w := pub.Publish(Model{})
//	    return g.rt.Go(func() error { return load(w, msg.Dir) })
//	}
type App[T, M any] interface {
	// Init builds the initial model and the messages to send before the
	// first frame. rt is the runtime the program will dispatch updates on;
	// keep it to spawn incremental work from Update.
	Init(rt *Runtime) (T, []M)

	// Render draws the current model and appends messages to msgs.
	// The current generation is locked for the duration of the call.
	Render(model *T, msgs []M) []M

	// Swap runs when a pending generation replaces the current one, with
	// exclusive access to both. Release resources tied to old here.
	Swap(old, new *T)

	// Update handles one message. It may publish new generations through
	// pub. A returned error is routed to HandleError.
	Update(pub Publisher[T], msg M) error

	// HandleError receives update and task errors.
	HandleError(err error)
}

// UpdateFunc handles one mailbox message.
type UpdateFunc[T, M any] func(pub Publisher[T], msg M) error

// ErrorHandler receives errors that must not cross back into the frame loop.
type ErrorHandler func(err error)

// HookFunc is called by [Buffer.Swap] with the outgoing and incoming
// generations.
type HookFunc[T any] func(old, new *T)

// signal is a one-slot wake-up channel. A waiter re-checks its condition
// after every wake-up: notifications may be spurious or coalesced, but a
// notify that happens before wait is never lost.
type signal chan struct{}

func newSignal() signal {
	return make(signal, 1)
}

func (s signal) notify() {
	select {
	case s <- struct{}{}:
	default:
	}
}

// wait parks until notified or until done is closed. A nil done never fires.
func (s signal) wait(done <-chan struct{}) {
	select {
	case <-s:
	case <-done:
	}
}
