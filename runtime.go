// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip

import (
	"log/slog"
	"sync"

	"code.hybscloud.com/atomix"
)

// Runtime is a fixed-size pool of worker goroutines executing detached
// tasks, typically incremental producers spawned by update logic.
//
// Tasks run concurrently with each other and with the mailbox consumer.
// A task's error, or a panic inside it, goes to the runtime's error
// handler and never reaches the scheduler.
//
// Example:
//
//	rt := flip.NewRuntime(flip.New().Workers(4))
//	rt.SetErrorHandler(app.HandleError)
//	defer rt.Close()
//
//	w := pub.Publish(Gallery{})
//	rt.Go(func() error {
//	    for _, path := range paths {
//	        thumb, err := decode(path)
//	        if err != nil {
//	            return err
//	        }
//	        ref, ok := w.Upgrade()
//	        if !ok {
//	            return nil // superseded
//	        }
//	        ref.Update(func(g *Gallery) { g.Thumbs = append(g.Thumbs, thumb) })
//	        ref.Release()
//	    }
//	    return nil
//	})
type Runtime struct {
	tasks   *taskq
	workers int
	name    string
	log     *slog.Logger

	_         pad
	running   atomix.Int64
	_         pad
	completed atomix.Uint64
	_         pad

	mu      sync.Mutex
	onError ErrorHandler
	wg      sync.WaitGroup
}

// NewRuntime starts the builder's number of workers.
func NewRuntime(b *Builder) *Runtime {
	rt := &Runtime{
		tasks:   newTaskq(b.opts.taskCapacity),
		workers: b.opts.workers,
		name:    b.opts.name,
		log:     b.log().With("runtime", b.opts.name),
	}
	rt.wg.Add(rt.workers)
	for id := range rt.workers {
		go rt.work(id)
	}
	rt.log.Debug("flip: runtime started", "workers", rt.workers)
	return rt
}

// SetErrorHandler sets where task errors go. A nil handler logs them.
func (rt *Runtime) SetErrorHandler(h ErrorHandler) {
	rt.mu.Lock()
	rt.onError = h
	rt.mu.Unlock()
}

// Go schedules fn on a worker, blocking while the task queue is full.
// Returns ErrClosed once Close has been called.
//
// A task that calls Go on a full queue waits for another worker to free a
// slot; with a single worker that never happens.
func (rt *Runtime) Go(fn func() error) error {
	if fn == nil {
		panic("flip: Go with nil task")
	}
	return rt.tasks.Put(fn)
}

// TryGo schedules fn without blocking.
// Returns ErrWouldBlock if the task queue is full, ErrClosed if closed.
func (rt *Runtime) TryGo(fn func() error) error {
	if fn == nil {
		panic("flip: TryGo with nil task")
	}
	return rt.tasks.TryPut(fn)
}

// Close stops accepting tasks, lets the workers finish what is queued, and
// waits for them to exit. Tasks that call Go after Close get ErrClosed.
func (rt *Runtime) Close() {
	rt.tasks.Close()
	rt.wg.Wait()
	rt.log.Debug("flip: runtime stopped", "completed", rt.completed.LoadAcquire())
}

// Workers returns the number of worker goroutines.
func (rt *Runtime) Workers() int {
	return rt.workers
}

// Name returns the runtime name.
func (rt *Runtime) Name() string {
	return rt.name
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.log
}

// Running returns the number of tasks currently executing.
func (rt *Runtime) Running() int {
	return int(rt.running.Load())
}

// Pending returns the number of tasks waiting for a worker.
func (rt *Runtime) Pending() int {
	return rt.tasks.Len()
}

// Completed returns the number of tasks that have finished.
func (rt *Runtime) Completed() uint64 {
	return rt.completed.LoadAcquire()
}

func (rt *Runtime) work(id int) {
	defer rt.wg.Done()
	for {
		fn, ok := rt.tasks.Next()
		if !ok {
			return
		}
		rt.run(id, fn)
	}
}

func (rt *Runtime) run(id int, fn func() error) {
	rt.running.Add(1)
	err := call(fn)
	rt.running.Add(-1)
	defer rt.completed.AddAcqRel(1)
	if err == nil {
		return
	}

	rt.mu.Lock()
	h := rt.onError
	rt.mu.Unlock()
	if h == nil {
		rt.log.Error("flip: task failed", "worker", id, "err", err)
		return
	}
	h(err)
}

// call runs fn, converting a panic into a *PanicError.
func call(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
