// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip

import "sync"

// Program drives an [App] from a frame loop.
//
// Program owns the buffer, the mailbox and the runtime. The goroutine that
// calls Frame becomes the owner of the current generation; all calls to
// Frame and Close must come from it.
//
// Example:
//
//	p := flip.NewProgram[Model, Msg](flip.New(), app)
//	defer p.Close()
//
//	ticker := time.NewTicker(time.Second / 60)
//	for range ticker.C {
//	    if err := p.Frame(); err != nil {
//	        break
//	    }
//	}
type Program[T, M any] struct {
	app     App[T, M]
	buf     *Buffer[T]
	mailbox *Mailbox[T, M]
	rt      *Runtime

	msgs      []M
	frames    uint64
	closed    bool
	closeOnce sync.Once
}

// NewProgram starts the runtime, initializes app, and sends the messages
// returned by Init. Like Frame, it blocks while the mailbox is full.
func NewProgram[T, M any](b *Builder, app App[T, M]) *Program[T, M] {
	rt := NewRuntime(b)
	rt.SetErrorHandler(app.HandleError)

	model, msgs := app.Init(rt)
	buf := NewBuffer(model)
	mb := NewMailbox[T, M](b, rt, buf.Publisher(), app.Update, app.HandleError)

	p := &Program[T, M]{
		app:     app,
		buf:     buf,
		mailbox: mb,
		rt:      rt,
	}
	if err := p.send(msgs); err != nil {
		panic(err) // fresh mailbox, unreachable
	}
	return p
}

// Frame runs one frame: Render with the current generation locked, send
// every message Render produced, then Swap in a pending generation through
// the app's Swap hook.
//
// Send may block the frame while the mailbox is full.
// Returns ErrClosed after Close.
func (p *Program[T, M]) Frame() error {
	if p.closed {
		return ErrClosed
	}

	p.render()
	if err := p.send(p.msgs); err != nil {
		return err
	}
	clear(p.msgs)

	p.buf.Swap(p.app.Swap)
	p.frames++
	return nil
}

// Frames returns the number of completed frames.
func (p *Program[T, M]) Frames() uint64 {
	return p.frames
}

// Buffer returns the program's generation buffer.
func (p *Program[T, M]) Buffer() *Buffer[T] {
	return p.buf
}

// Mailbox returns the program's mailbox.
func (p *Program[T, M]) Mailbox() *Mailbox[T, M] {
	return p.mailbox
}

// Runtime returns the program's worker runtime.
func (p *Program[T, M]) Runtime() *Runtime {
	return p.rt
}

// Close closes the mailbox, waits for queued messages to be processed,
// then closes the runtime and waits for its tasks.
func (p *Program[T, M]) Close() {
	p.closeOnce.Do(func() {
		p.closed = true
		p.mailbox.Close()
		p.mailbox.Wait()
		p.rt.Close()
	})
}

// render runs Render with the current generation locked. The lock is
// released even if Render panics.
func (p *Program[T, M]) render() {
	m := p.buf.Lock()
	defer p.buf.Unlock()
	p.msgs = p.app.Render(m, p.msgs[:0])
}

func (p *Program[T, M]) send(msgs []M) error {
	for _, msg := range msgs {
		if err := p.mailbox.Send(msg); err != nil {
			return err
		}
	}
	return nil
}
