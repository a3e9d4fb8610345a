// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "code.hybscloud.com/kont"

// Promise is a single-assignment cell that any number of fibers can
// await. Exactly one completion among racing Succeed/Fail/Die/Interrupt/
// Done calls wins; once done the cell never changes.
type Promise[A any] struct {
	cell cell
}

func newPromise[A any]() *Promise[A] {
	p := &Promise[A]{}
	p.cell.init()
	return p
}

// MakePromise allocates a fresh empty promise. Allocation is itself an
// effect and never fails.
func MakePromise[A any]() Task[*Promise[A]] {
	return Sync(newPromise[A])
}

// Await succeeds or re-raises with the stored exit, immediately when the
// promise is already done, otherwise after suspending. Interruption of
// the awaiting fiber deregisters exactly its own callback: no leak, no
// spurious wake of other waiters.
func (p *Promise[A]) Await() Task[A] {
	return kont.Bind(awaitCell(&p.cell), fromExitCore[A])
}

// Succeed completes the promise with a value. Returns true iff this call
// performed the empty|pending → done transition.
func (p *Promise[A]) Succeed(a A) Task[bool] {
	return p.completeWith(exitCore{value: a})
}

// Fail completes the promise with a typed failure.
func (p *Promise[A]) Fail(err error) Task[bool] {
	return p.completeWith(exitCore{cause: causeFail(err)})
}

// Die completes the promise with a defect.
func (p *Promise[A]) Die(defect any) Task[bool] {
	return p.completeWith(exitCore{cause: causeDie(defect)})
}

// Interrupt completes the promise with interruption.
func (p *Promise[A]) Interrupt() Task[bool] {
	return p.completeWith(exitCore{cause: causeInterrupt()})
}

// Done completes the promise with an arbitrary exit.
func (p *Promise[A]) Done(e Exit[A]) Task[bool] {
	return p.completeWith(coreOf(e))
}

func (p *Promise[A]) completeWith(e exitCore) Task[bool] {
	return Sync(func() bool { return p.cell.complete(e) })
}

// Poll returns Right(exit) when done, Left otherwise. Never suspends,
// never mutates.
func (p *Promise[A]) Poll() Task[kont.Either[Unit, Exit[A]]] {
	return Sync(func() kont.Either[Unit, Exit[A]] {
		if e, ok := p.cell.poll(); ok {
			return kont.Right[Unit](exitOf[A](e))
		}
		return kont.Left[Unit, Exit[A]](Unit{})
	})
}

// IsDone reports whether the cell is in the done state (not merely
// whether it has waiters).
func (p *Promise[A]) IsDone() Task[bool] {
	return Sync(p.cell.isDone)
}
