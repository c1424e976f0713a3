// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip

import (
	"log/slog"
	"sync"

	"code.hybscloud.com/atomix"
)

// Mailbox delivers messages from the frame goroutine to a single consumer
// that runs update logic strictly one message at a time.
//
// Messages are processed in send order and update calls never overlap.
// This keeps publishes made by update logic from racing each other on the
// same buffer. The queue is bounded: with the default depth of 1, one
// message may wait while another is being processed, and a further Send
// blocks until the consumer advances. Messages are never dropped.
//
// Thread safety:
//   - Send, TrySend and Close: one sending goroutine (the frame goroutine)
//   - Wait, Done and Processed: any goroutine
//
// Close is the only teardown path. Messages queued before Close are still
// processed, after which the consumer exits.
type Mailbox[T, M any] struct {
	q       *ring[M]
	pub     Publisher[T]
	update  UpdateFunc[T, M]
	onError ErrorHandler
	log     *slog.Logger

	_         pad
	closed    atomix.Bool
	_         pad
	processed atomix.Uint64
	_         pad

	ready     signal // a message was sent, or the mailbox closed
	space     signal // a message was taken
	closeOnce sync.Once
	done      chan struct{}
}

// NewMailbox creates a mailbox with the builder's depth and starts its
// consumer. update runs for every message with pub as its publish handle;
// non-nil errors go to onError, which may be nil to discard them.
//
// rt supplies the logger and is where update logic is expected to spawn
// incremental work. It may be nil.
func NewMailbox[T, M any](b *Builder, rt *Runtime, pub Publisher[T], update UpdateFunc[T, M], onError ErrorHandler) *Mailbox[T, M] {
	if update == nil {
		panic("flip: NewMailbox requires an update function")
	}
	if onError == nil {
		onError = func(error) {}
	}
	log := b.log()
	if rt != nil {
		log = rt.log
	}
	m := &Mailbox[T, M]{
		q:       newRing[M](b.opts.depth),
		pub:     pub,
		update:  update,
		onError: onError,
		log:     log,
		ready:   newSignal(),
		space:   newSignal(),
		done:    make(chan struct{}),
	}
	go m.consume()
	return m
}

// Send enqueues msg, parking while the queue is full until the consumer
// takes a message. Returns ErrClosed if the mailbox was closed.
func (m *Mailbox[T, M]) Send(msg M) error {
	m.log.Debug("flip: sending message", "msg", msg)
	for {
		if m.closed.Load() {
			return ErrClosed
		}
		if m.q.Enqueue(&msg) == nil {
			m.ready.notify()
			return nil
		}
		m.space.wait(m.done)
	}
}

// TrySend enqueues msg without blocking.
// Returns ErrWouldBlock if the queue is full, ErrClosed if closed.
func (m *Mailbox[T, M]) TrySend(msg M) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if err := m.q.Enqueue(&msg); err != nil {
		return err
	}
	m.ready.notify()
	return nil
}

// Close stops accepting messages. Already queued messages are processed.
// Close must not run concurrently with Send.
func (m *Mailbox[T, M]) Close() {
	m.closeOnce.Do(func() {
		m.closed.Swap(true)
		m.ready.notify()
	})
}

// Wait blocks until the consumer has drained the queue and exited.
func (m *Mailbox[T, M]) Wait() {
	<-m.done
}

// Done returns a channel closed once the consumer has exited.
func (m *Mailbox[T, M]) Done() <-chan struct{} {
	return m.done
}

// Processed returns the number of messages consumed so far.
func (m *Mailbox[T, M]) Processed() uint64 {
	return m.processed.LoadAcquire()
}

// Depth returns the queue depth.
func (m *Mailbox[T, M]) Depth() int {
	return m.q.Cap()
}

func (m *Mailbox[T, M]) consume() {
	defer close(m.done)
	for {
		msg, err := m.q.Dequeue()
		if err != nil {
			if m.closed.Load() {
				// Re-check: a Send may have landed before Close.
				if msg, err = m.q.Dequeue(); err != nil {
					m.log.Debug("flip: mailbox closed")
					return
				}
			} else {
				m.log.Debug("flip: waiting for message")
				m.ready.wait(nil)
				continue
			}
		}
		m.space.notify()

		m.log.Debug("flip: got message", "msg", msg)
		if err := m.dispatch(msg); err != nil {
			m.onError(err)
		}
		m.processed.AddAcqRel(1)
	}
}

func (m *Mailbox[T, M]) dispatch(msg M) error {
	return call(func() error { return m.update(m.pub, msg) })
}
