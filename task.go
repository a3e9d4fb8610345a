// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"time"

	"code.hybscloud.com/kont"
)

// Task describes an effectful computation producing a value of type A.
// Tasks are immutable values; nothing runs until a Runtime interprets one.
// Sequencing and mapping come from kont (Bind, Map, Then, Pure).
type Task[A any] = kont.Eff[A]

// Succeed lifts a pure value into a task.
func Succeed[A any](a A) Task[A] { return kont.Pure(a) }

// Sync lifts a side-effecting function into a task. fn runs on the
// fiber's goroutine when the task is interpreted; a panic in fn becomes
// a die cause.
func Sync[A any](fn func() A) Task[A] {
	return kont.Map[kont.Resumed, kont.Resumed, A](
		kont.Perform(syncOp{run: func() kont.Resumed { return fn() }}),
		func(v kont.Resumed) A {
			a, _ := v.(A)
			return a
		},
	)
}

// Fail raises a typed failure when evaluated.
func Fail[A any](err error) Task[A] { return failCause[A](causeFail(err)) }

// Die raises a defect when evaluated. Defects signal programming errors
// and are kept distinct from typed failures.
func Die[A any](defect any) Task[A] { return failCause[A](causeDie(defect)) }

// FromExit re-raises a stored exit: success resumes with the value,
// anything else raises the stored cause verbatim.
func FromExit[A any](e Exit[A]) Task[A] { return fromExitCore[A](coreOf(e)) }

func fromExitCore[A any](e exitCore) Task[A] {
	if e.cause != nil {
		return failCause[A](e.cause)
	}
	v, _ := e.value.(A)
	return kont.Pure(v)
}

// failCause raises c. The continuation never runs; the zero-value map
// only satisfies the result type.
func failCause[A any](c *Cause) Task[A] {
	return kont.Map[kont.Resumed, kont.Resumed, A](
		kont.Perform(failOp{cause: c}),
		func(kont.Resumed) A {
			var zero A
			return zero
		},
	)
}

// Async suspends the fiber and hands a one-shot resume callback to
// register. register may invoke the callback synchronously or later from
// any goroutine; at most one invocation is honored.
func Async[A any](register func(resume func(A))) Task[A] {
	return AsyncInterrupt(func(resume func(A)) func() {
		register(resume)
		return nil
	})
}

// AsyncInterrupt is Async with a canceler: the returned function (may be
// nil) runs when the parked fiber is interrupted before resumption, so
// the registration can be unwound without leaking.
func AsyncInterrupt[A any](register func(resume func(A)) (cancel func())) Task[A] {
	return kont.Perform(asyncOp[A]{register: register})
}

// Yield reschedules the fiber, letting other runnable fibers proceed.
func Yield() Task[Unit] { return kont.Perform(yieldOp{}) }

// Sleep suspends the fiber for at least d. Interruption stops the timer.
func Sleep(d time.Duration) Task[Unit] {
	return AsyncInterrupt(func(resume func(Unit)) func() {
		t := time.AfterFunc(d, func() { resume(Unit{}) })
		return func() { t.Stop() }
	})
}

// Fork schedules t as a child fiber and resumes immediately with its
// handle; it never raises synchronously.
func Fork[A any](t Task[A]) Task[*Fiber[A]] {
	return kont.Perform(forkOp[A]{task: t})
}

// Uninterruptible masks interruption for the duration of t. Requests
// arriving during the window are recorded and delivered at the next
// unmasked suspension point.
func Uninterruptible[A any](t Task[A]) Task[A] {
	return kont.Then(kont.Perform(maskOp{}),
		kont.Bind(t, func(a A) Task[A] {
			return kont.Then(kont.Perform(unmaskOp{}), kont.Pure(a))
		}),
	)
}

// BracketExit acquires a resource uninterruptibly, runs use with
// interruption restored, and guarantees release runs exactly once with
// the exit of use: success, typed failure, defect, or interruption.
// release itself runs masked, so cleanup cannot be cancelled mid-way.
func BracketExit[A, B any](acquire Task[A], release func(A, Exit[B]) Task[Unit], use func(A) Task[B]) Task[B] {
	return kont.Then(kont.Perform(maskOp{}),
		kont.Bind(acquire, func(a A) Task[B] {
			fin := func(c *Cause) kont.Eff[kont.Resumed] {
				return erase(release(a, Exit[B]{Cause: c}))
			}
			return kont.Then(kont.Perform(pushFinalizerOp{fin: fin}),
				kont.Then(kont.Perform(unmaskOp{}),
					kont.Bind(use(a), func(b B) Task[B] {
						return kont.Then(kont.Perform(maskOp{}),
							kont.Then(kont.Perform(popFinalizerOp{}),
								kont.Then(release(a, Exit[B]{Value: b}),
									kont.Then(kont.Perform(unmaskOp{}), kont.Pure(b)),
								),
							),
						)
					}),
				),
			)
		}),
	)
}

// Bracket is BracketExit with a release that ignores the exit.
func Bracket[A, B any](acquire Task[A], release func(A) Task[Unit], use func(A) Task[B]) Task[B] {
	return BracketExit(acquire, func(a A, _ Exit[B]) Task[Unit] { return release(a) }, use)
}

// Ensuring runs fin after t finishes for any reason.
func Ensuring[A any](t Task[A], fin Task[Unit]) Task[A] {
	return BracketExit(Succeed(Unit{}),
		func(Unit, Exit[A]) Task[Unit] { return fin },
		func(Unit) Task[A] { return t },
	)
}

// OnInterrupt runs fin only when t is interrupted.
func OnInterrupt[A any](t Task[A], fin Task[Unit]) Task[A] {
	return BracketExit(Succeed(Unit{}),
		func(_ Unit, e Exit[A]) Task[Unit] {
			if e.IsInterrupted() {
				return fin
			}
			return Succeed(Unit{})
		},
		func(Unit) Task[A] { return t },
	)
}

// Attempt runs t in a child fiber and succeeds with its exit instead of
// re-raising, making failures first-class. Interrupting the attempt
// interrupts the child.
func Attempt[A any](t Task[A]) Task[Exit[A]] {
	return kont.Bind(Fork(t), func(f *Fiber[A]) Task[Exit[A]] {
		return OnInterrupt(f.Await(), discard(f.Interrupt()))
	})
}

// Loop runs a recursive effect. step returns Left(nextState) to continue
// or Right(result) to finish.
func Loop[S, A any](initial S, step func(S) Task[kont.Either[S, A]]) Task[A] {
	return kont.Bind(step(initial), func(e kont.Either[S, A]) Task[A] {
		if left, ok := e.GetLeft(); ok {
			return Loop(left, step)
		}
		right, _ := e.GetRight()
		return kont.Pure(right)
	})
}

// erase forgets a task's result type for the erased runloop world.
func erase[A any](t Task[A]) kont.Eff[kont.Resumed] {
	return kont.Map[kont.Resumed, A, kont.Resumed](t, func(a A) kont.Resumed { return a })
}

// discard forgets a task's result value.
func discard[A any](t Task[A]) Task[Unit] {
	return kont.Map[kont.Resumed, A, Unit](t, func(A) Unit { return Unit{} })
}

// flatten collapses a task producing a task.
func flatten[A any](t Task[Task[A]]) Task[A] {
	return kont.Bind(t, func(inner Task[A]) Task[A] { return inner })
}
