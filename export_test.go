// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flip

// NewRing exposes the mailbox ring to external tests.
func NewRing[T any](capacity int) *ring[T] {
	return newRing[T](capacity)
}

// NewTaskQueue exposes the runtime task queue to external tests.
func NewTaskQueue(capacity int) *taskq {
	return newTaskq(capacity)
}
