// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/fiber"
	"code.hybscloud.com/kont"
)

func TestRunSucceed(t *testing.T) {
	exit := runExit(t, fiber.Succeed(42))
	if !exit.IsSuccess() {
		t.Fatalf("got %v, want success", exit.Cause)
	}
	if exit.Value != 42 {
		t.Fatalf("got %d, want 42", exit.Value)
	}
}

func TestSyncAndBind(t *testing.T) {
	task := kont.Bind(fiber.Sync(func() int { return 6 }), func(n int) fiber.Task[int] {
		return fiber.Succeed(n * 7)
	})
	exit := runExit(t, task)
	if exit.Value != 42 {
		t.Fatalf("got %d, want 42", exit.Value)
	}
}

func TestFailProducesTypedFailure(t *testing.T) {
	wantErr := errors.New("boom")
	exit := runExit(t, fiber.Fail[int](wantErr))
	err, ok := exit.Failure()
	if !ok {
		t.Fatalf("got %v, want typed failure", exit.Cause)
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if exit.IsInterrupted() {
		t.Fatalf("failure reported as interruption")
	}
}

func TestDieProducesDefect(t *testing.T) {
	exit := runExit(t, fiber.Die[int]("broken"))
	defect, ok := exit.Defect()
	if !ok {
		t.Fatalf("got %v, want defect", exit.Cause)
	}
	if defect != "broken" {
		t.Fatalf("got %v, want broken", defect)
	}
	if _, ok := exit.Failure(); ok {
		t.Fatalf("defect reported as typed failure")
	}
}

func TestPanicBecomesDefect(t *testing.T) {
	exit := runExit(t, fiber.Sync(func() int { panic("kaboom") }))
	defect, ok := exit.Defect()
	if !ok {
		t.Fatalf("got %v, want defect", exit.Cause)
	}
	if defect != "kaboom" {
		t.Fatalf("got %v, want kaboom", defect)
	}
}

func TestForkJoin(t *testing.T) {
	task := kont.Bind(fiber.Fork(fiber.Sync(func() int { return 21 })), func(f *fiber.Fiber[int]) fiber.Task[int] {
		return kont.Map[kont.Resumed, int, int](f.Join(), func(n int) int { return n * 2 })
	})
	exit := runExit(t, task)
	if exit.Value != 42 {
		t.Fatalf("got %d, want 42", exit.Value)
	}
}

func TestJoinReRaisesFailure(t *testing.T) {
	wantErr := errors.New("child failed")
	task := kont.Bind(fiber.Fork(fiber.Fail[int](wantErr)), func(f *fiber.Fiber[int]) fiber.Task[int] {
		return f.Join()
	})
	exit := runExit(t, task)
	err, ok := exit.Failure()
	if !ok || !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", exit.Cause, wantErr)
	}
}

func TestAwaitReturnsExitWithoutRaising(t *testing.T) {
	task := kont.Bind(fiber.Fork(fiber.Fail[int](errors.New("inner"))), func(f *fiber.Fiber[int]) fiber.Task[fiber.Exit[int]] {
		return f.Await()
	})
	exit := runExit(t, task)
	if !exit.IsSuccess() {
		t.Fatalf("await raised: %v", exit.Cause)
	}
	if _, ok := exit.Value.Failure(); !ok {
		t.Fatalf("got inner %v, want typed failure", exit.Value.Cause)
	}
}

func TestInterruptParkedFiber(t *testing.T) {
	rt := serialRuntime(t)
	canceled := false
	child := fiber.AsyncInterrupt(func(resume func(int)) func() {
		return func() { canceled = true }
	})
	task := kont.Bind(fiber.Fork(child), func(f *fiber.Fiber[int]) fiber.Task[fiber.Exit[int]] {
		return kont.Then(fiber.Yield(), f.Interrupt())
	})
	exit := fiber.Run(rt, task)
	if !exit.IsSuccess() {
		t.Fatalf("interrupt raised: %v", exit.Cause)
	}
	if !exit.Value.IsInterrupted() {
		t.Fatalf("got %v, want interruption", exit.Value.Cause)
	}
	if !canceled {
		t.Fatalf("async registration was not cancelled")
	}
}

func TestInterruptBeforeStart(t *testing.T) {
	ex := &gateExecutor{}
	rt := fiber.NewRuntime(fiber.WithExecutor(ex))
	ran := false
	f := fiber.Spawn(rt, fiber.Sync(func() int { ran = true; return 1 }))
	g := fiber.Spawn(rt, f.Interrupt())

	ex.step(1) // interrupter requests, then parks awaiting f
	ex.step(0) // f observes the pending request before running its task
	ex.release()

	exit := fiber.Run(rt, g.Join())
	if !exit.IsSuccess() {
		t.Fatalf("join raised: %v", exit.Cause)
	}
	if !exit.Value.IsInterrupted() {
		t.Fatalf("got %v, want interruption", exit.Value.Cause)
	}
	if ran {
		t.Fatalf("task ran despite interruption before start")
	}
}

func TestInterruptAfterCompletionIsNoop(t *testing.T) {
	task := kont.Bind(fiber.Fork(fiber.Succeed(7)), func(f *fiber.Fiber[int]) fiber.Task[fiber.Exit[int]] {
		return kont.Bind(f.Await(), func(fiber.Exit[int]) fiber.Task[fiber.Exit[int]] {
			return f.Interrupt()
		})
	})
	exit := runExit(t, task)
	if !exit.Value.IsSuccess() || exit.Value.Value != 7 {
		t.Fatalf("got %v, want completed exit 7", exit.Value)
	}
}

func TestBracketReleasesOnInterrupt(t *testing.T) {
	rt := serialRuntime(t)
	acquired, released := 0, 0
	child := fiber.Bracket(
		fiber.Sync(func() int { acquired++; return acquired }),
		func(int) fiber.Task[fiber.Unit] {
			return fiber.Sync(func() fiber.Unit { released++; return fiber.Unit{} })
		},
		func(int) fiber.Task[int] {
			return fiber.AsyncInterrupt(func(func(int)) func() { return func() {} })
		},
	)
	task := kont.Bind(fiber.Fork(child), func(f *fiber.Fiber[int]) fiber.Task[fiber.Exit[int]] {
		return kont.Then(fiber.Yield(), f.Interrupt())
	})
	exit := fiber.Run(rt, task)
	if !exit.Value.IsInterrupted() {
		t.Fatalf("got %v, want interruption", exit.Value.Cause)
	}
	if acquired != 1 || released != 1 {
		t.Fatalf("got acquired=%d released=%d, want 1 and 1", acquired, released)
	}
}

func TestBracketExitSeesFailure(t *testing.T) {
	wantErr := errors.New("use failed")
	var seen *fiber.Cause
	task := fiber.BracketExit(
		fiber.Succeed("res"),
		func(_ string, e fiber.Exit[int]) fiber.Task[fiber.Unit] {
			return fiber.Sync(func() fiber.Unit { seen = e.Cause; return fiber.Unit{} })
		},
		func(string) fiber.Task[int] { return fiber.Fail[int](wantErr) },
	)
	exit := runExit(t, task)
	if err, ok := exit.Failure(); !ok || !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", exit.Cause, wantErr)
	}
	if seen == nil {
		t.Fatalf("release did not observe the exit")
	}
	if err, ok := seen.Failure(); !ok || !errors.Is(err, wantErr) {
		t.Fatalf("release got %v, want %v", seen, wantErr)
	}
}

func TestUninterruptibleDefersInterrupt(t *testing.T) {
	rt := serialRuntime(t)
	finished := false
	child := kont.Then(
		fiber.Uninterruptible(kont.Then(fiber.Yield(), fiber.Sync(func() fiber.Unit {
			finished = true
			return fiber.Unit{}
		}))),
		fiber.AsyncInterrupt(func(func(int)) func() { return func() {} }),
	)
	task := kont.Bind(fiber.Fork(child), func(f *fiber.Fiber[int]) fiber.Task[fiber.Exit[int]] {
		return kont.Then(fiber.Yield(), f.Interrupt())
	})
	exit := fiber.Run(rt, task)
	if !exit.Value.IsInterrupted() {
		t.Fatalf("got %v, want interruption", exit.Value.Cause)
	}
	if !finished {
		t.Fatalf("masked region was cut short by interruption")
	}
}

func TestEnsuringRunsOnSuccessAndFailure(t *testing.T) {
	runs := 0
	fin := fiber.Sync(func() fiber.Unit { runs++; return fiber.Unit{} })

	exit := runExit(t, fiber.Ensuring(fiber.Succeed(1), fin))
	if !exit.IsSuccess() || runs != 1 {
		t.Fatalf("got runs=%d exit=%v, want 1 and success", runs, exit.Cause)
	}

	exit = runExit(t, fiber.Ensuring(fiber.Fail[int](errors.New("nope")), fin))
	if _, ok := exit.Failure(); !ok || runs != 2 {
		t.Fatalf("got runs=%d exit=%v, want 2 and failure", runs, exit.Cause)
	}
}

func TestOnInterruptSkipsOnSuccess(t *testing.T) {
	runs := 0
	fin := fiber.Sync(func() fiber.Unit { runs++; return fiber.Unit{} })
	exit := runExit(t, fiber.OnInterrupt(fiber.Succeed(1), fin))
	if !exit.IsSuccess() || runs != 0 {
		t.Fatalf("got runs=%d exit=%v, want 0 and success", runs, exit.Cause)
	}
}

func TestFinalizersRunInReverseOrder(t *testing.T) {
	var order []int
	fin := func(n int) fiber.Task[fiber.Unit] {
		return fiber.Sync(func() fiber.Unit { order = append(order, n); return fiber.Unit{} })
	}
	task := fiber.Ensuring(fiber.Ensuring(fiber.Fail[int](errors.New("unwind")), fin(1)), fin(2))
	exit := runExit(t, task)
	if _, ok := exit.Failure(); !ok {
		t.Fatalf("got %v, want failure", exit.Cause)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("got order %v, want [1 2]", order)
	}
}

func TestFailingFinalizerSuppressed(t *testing.T) {
	wantErr := errors.New("primary")
	finErr := errors.New("cleanup failed")
	task := fiber.Ensuring(fiber.Fail[int](wantErr), fiber.Fail[fiber.Unit](finErr))
	exit := runExit(t, task)
	err, ok := exit.Failure()
	if !ok || !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want primary cause %v", exit.Cause, wantErr)
	}
	sup := exit.Cause.Suppressed()
	if len(sup) != 1 {
		t.Fatalf("got %d suppressed causes, want 1", len(sup))
	}
	if err, ok := sup[0].Failure(); !ok || !errors.Is(err, finErr) {
		t.Fatalf("suppressed got %v, want %v", sup[0], finErr)
	}
}

func TestAttemptCapturesFailure(t *testing.T) {
	wantErr := errors.New("captured")
	exit := runExit(t, fiber.Attempt(fiber.Fail[int](wantErr)))
	if !exit.IsSuccess() {
		t.Fatalf("attempt raised: %v", exit.Cause)
	}
	if err, ok := exit.Value.Failure(); !ok || !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", exit.Value.Cause, wantErr)
	}
}

func TestAsyncResumeFromGoroutine(t *testing.T) {
	task := fiber.Async(func(resume func(int)) {
		go func() {
			time.Sleep(time.Millisecond)
			resume(11)
		}()
	})
	exit := runExit(t, task)
	if exit.Value != 11 {
		t.Fatalf("got %d, want 11", exit.Value)
	}
}

func TestAsyncResumeInline(t *testing.T) {
	task := fiber.Async(func(resume func(int)) { resume(5) })
	exit := runExit(t, task)
	if exit.Value != 5 {
		t.Fatalf("got %d, want 5", exit.Value)
	}
}

func TestAsyncRegisterPanicBecomesDefect(t *testing.T) {
	exit := runExit(t, fiber.Async(func(func(int)) { panic("bad registration") }))
	defect, ok := exit.Defect()
	if !ok || defect != "bad registration" {
		t.Fatalf("got %v, want bad registration defect", exit.Cause)
	}
}

func TestSleepElapses(t *testing.T) {
	start := time.Now()
	exit := runExit(t, kont.Then(fiber.Sleep(10*time.Millisecond), fiber.Succeed(1)))
	if !exit.IsSuccess() {
		t.Fatalf("sleep raised: %v", exit.Cause)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("woke after %v, want at least 10ms", elapsed)
	}
}

func TestInterruptCancelsSleep(t *testing.T) {
	start := time.Now()
	task := kont.Bind(fiber.Fork(fiber.Sleep(time.Hour)), func(f *fiber.Fiber[fiber.Unit]) fiber.Task[fiber.Exit[fiber.Unit]] {
		return kont.Then(fiber.Sleep(time.Millisecond), f.Interrupt())
	})
	exit := runExit(t, task)
	if !exit.Value.IsInterrupted() {
		t.Fatalf("got %v, want interruption", exit.Value.Cause)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("interrupting a sleeper took %v", elapsed)
	}
}

func TestPollBeforeAndAfterCompletion(t *testing.T) {
	rt := serialRuntime(t)
	task := kont.Bind(fiber.Fork(kont.Then(fiber.Yield(), fiber.Succeed(9))), func(f *fiber.Fiber[int]) fiber.Task[[2]bool] {
		return kont.Bind(f.Poll(), func(before kont.Either[fiber.Unit, fiber.Exit[int]]) fiber.Task[[2]bool] {
			return kont.Bind(f.Await(), func(fiber.Exit[int]) fiber.Task[[2]bool] {
				return kont.Map[kont.Resumed, kont.Either[fiber.Unit, fiber.Exit[int]], [2]bool](
					f.Poll(),
					func(after kont.Either[fiber.Unit, fiber.Exit[int]]) [2]bool {
						return [2]bool{before.IsLeft(), after.IsRight()}
					},
				)
			})
		})
	})
	exit := fiber.Run(rt, task)
	if !exit.Value[0] {
		t.Fatalf("poll before completion reported done")
	}
	if !exit.Value[1] {
		t.Fatalf("poll after completion reported pending")
	}
}

func TestLoopAccumulates(t *testing.T) {
	task := fiber.Loop([2]int{5, 0}, func(s [2]int) fiber.Task[kont.Either[[2]int, int]] {
		n, sum := s[0], s[1]
		if n == 0 {
			return fiber.Succeed(kont.Right[[2]int](sum))
		}
		return fiber.Succeed(kont.Left[[2]int, int]([2]int{n - 1, sum + n}))
	})
	exit := runExit(t, task)
	if exit.Value != 15 {
		t.Fatalf("got %d, want 15", exit.Value)
	}
}

func TestRefModify(t *testing.T) {
	task := kont.Bind(fiber.MakeRef(10), func(r *fiber.Ref[int]) fiber.Task[int] {
		return kont.Bind(fiber.ModifyRef(r, func(n int) (int, int) { return n, n + 1 }), func(old int) fiber.Task[int] {
			return kont.Map[kont.Resumed, int, int](fiber.GetRef(r), func(now int) int { return old*100 + now })
		})
	})
	exit := runExit(t, task)
	if exit.Value != 1011 {
		t.Fatalf("got %d, want 1011", exit.Value)
	}
}

func TestFromExitRoundTrip(t *testing.T) {
	exit := runExit(t, fiber.FromExit(fiber.Exit[int]{Value: 3}))
	if exit.Value != 3 {
		t.Fatalf("got %d, want 3", exit.Value)
	}
	wantErr := errors.New("stored")
	inner := runExit(t, fiber.Fail[int](wantErr))
	exit = runExit(t, fiber.FromExit(inner))
	if err, ok := exit.Failure(); !ok || !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", exit.Cause, wantErr)
	}
}
