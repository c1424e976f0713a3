// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip

import "log/slog"

const (
	defaultWorkers      = 4
	defaultDepth        = 1
	defaultTaskCapacity = 64
	defaultName         = "flip-workers"
)

// Options configures the worker runtime and the task mailbox.
type Options struct {
	// Runtime
	workers      int
	taskCapacity int // Rounds up to next power of 2
	name         string

	// Mailbox queue depth beyond the message being processed
	depth int

	logger *slog.Logger
}

// Builder configures runtimes, mailboxes and programs with a fluent API.
//
// Example:
//
//	b := flip.New().Workers(4).Depth(1).Name("photos-workers")
//	rt := flip.NewRuntime(b)
//	mb := flip.NewMailbox(b, rt, buf.Publisher(), update, onError)
//
//	// Or drive an App directly
//	p := flip.NewProgram[Model, Msg](b, app)
type Builder struct {
	opts Options
}

// New creates a builder with the defaults: 4 workers, a mailbox depth of 1,
// a task queue of 64 entries and a logger that discards everything.
func New() *Builder {
	return &Builder{opts: Options{
		workers:      defaultWorkers,
		taskCapacity: defaultTaskCapacity,
		name:         defaultName,
		depth:        defaultDepth,
	}}
}

// Workers sets the number of runtime worker goroutines.
// Panics if n < 1.
func (b *Builder) Workers(n int) *Builder {
	if n < 1 {
		panic("flip: workers must be >= 1")
	}
	b.opts.workers = n
	return b
}

// Depth sets how many messages the mailbox buffers beyond the one being
// processed. Send blocks once Depth messages are queued.
//
// The default of 1 means a second message sent while the consumer is busy
// stalls the sender. Raise it when the frame loop must not wait on slow
// update logic.
//
// Panics if n < 1.
func (b *Builder) Depth(n int) *Builder {
	if n < 1 {
		panic("flip: depth must be >= 1")
	}
	b.opts.depth = n
	return b
}

// TaskCapacity sets the runtime task queue capacity.
// Capacity rounds up to the next power of 2. Panics if n < 2.
func (b *Builder) TaskCapacity(n int) *Builder {
	if n < 2 {
		panic("flip: task capacity must be >= 2")
	}
	b.opts.taskCapacity = n
	return b
}

// Name sets the runtime name used in log records.
func (b *Builder) Name(name string) *Builder {
	b.opts.name = name
	return b
}

// Logger sets the structured logger. A nil logger discards records.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.opts.logger = l
	return b
}

func (b *Builder) log() *slog.Logger {
	if b.opts.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.opts.logger
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
