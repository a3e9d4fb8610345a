// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/kont"
)

// syncOp is the effect operation for a synchronous side effect.
// The runloop runs fn on the fiber's current goroutine and resumes
// with its result. Panics in fn become die causes.
type syncOp struct {
	kont.Phantom[kont.Resumed]
	run func() kont.Resumed
}

// failOp is the effect operation that raises a Cause. The fiber never
// resumes past it: the runloop discards the continuation and unwinds,
// running pending finalizers.
type failOp struct {
	kont.Phantom[kont.Resumed]
	cause *Cause
}

// maskOp enters an uninterruptible region by bumping the fiber's mask
// counter. Interruption requested while masked is recorded and delivered
// at the next unmasked boundary.
type maskOp struct {
	kont.Phantom[Unit]
}

// unmaskOp leaves the innermost uninterruptible region.
type unmaskOp struct {
	kont.Phantom[Unit]
}

// finalizer is a cleanup action run during unwinding, fed the cause that
// triggered the unwind. Finalizers run masked and one at a time, so a
// failing finalizer cannot cancel or skip the remaining ones.
type finalizer func(*Cause) kont.Eff[kont.Resumed]

// pushFinalizerOp registers a finalizer on the fiber's stack.
type pushFinalizerOp struct {
	kont.Phantom[Unit]
	fin finalizer
}

// popFinalizerOp discards the most recently pushed finalizer without
// running it. Bracket continuations pop before running the release
// explicitly with the typed exit.
type popFinalizerOp struct {
	kont.Phantom[Unit]
}

// yieldOp reschedules the fiber's continuation on the executor, letting
// other runnable fibers make progress.
type yieldOp struct {
	kont.Phantom[Unit]
}

// forkOp is the effect operation for creating a child fiber.
// Dispatch schedules the child and resumes immediately with its handle;
// it never raises synchronously.
type forkOp[A any] struct {
	kont.Phantom[*Fiber[A]]
	task Task[A]
}

// dispatchFork creates and schedules the child fiber.
func (o forkOp[A]) dispatchFork(rt *Runtime) kont.Resumed {
	return spawnFiber(rt, o.task)
}

// forkDispatcher is the structural interface for fork operations,
// erasing the child's result type at the dispatch boundary.
type forkDispatcher interface {
	dispatchFork(rt *Runtime) kont.Resumed
}

// asyncOp is the effect operation that parks the fiber until a one-shot
// resume callback is invoked. register may call resume synchronously or
// later from any goroutine; at most one invocation is honored. The
// returned canceler (may be nil) runs when the parked fiber is
// interrupted before resumption.
type asyncOp[A any] struct {
	kont.Phantom[A]
	register func(resume func(A)) (cancel func())
}

// registerAsync adapts the typed resume callback to the erased runloop.
func (o asyncOp[A]) registerAsync(resume func(kont.Resumed)) (cancel func()) {
	return o.register(func(a A) { resume(a) })
}

// asyncRegistrar is the structural interface for async operations.
type asyncRegistrar interface {
	registerAsync(resume func(kont.Resumed)) (cancel func())
}
