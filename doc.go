// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fiber provides a cooperative fiber runtime with interruption-safe
// synchronization primitives on [code.hybscloud.com/kont].
//
// Computations are described as effect values ([Task]) and interpreted by a
// [Runtime] that multiplexes logical fibers onto an [Executor]. Fibers can be
// forked, joined, awaited, and interrupted; interruption is cooperative and
// delivered only at effect boundaries, so resource-safe regions built with
// [Bracket] and [Uninterruptible] are never torn mid-way.
//
// # Architecture
//
//   - Effects: Tasks are kont computations; runtime operations are effect
//     operations stepped one at a time via [code.hybscloud.com/kont.StepExpr].
//   - Scheduling: [Spawn] and [Fork] create fibers. The default executor runs
//     each resumption on its own goroutine; [NewPool] provides a bounded
//     worker pool backed by [code.hybscloud.com/lfq] MPMC queues.
//   - Suspension: [Async] parks a fiber with a one-shot resume callback;
//     at most one invocation of the callback is honored.
//   - State: The sole mutation primitive is [Ref] with atomic [Modify];
//     no lock is ever held across a suspension point.
//
// # Primitives
//
//   - [Promise]: single-assignment cell. Exactly one completion among racing
//     [Promise.Succeed]/[Promise.Fail]/[Promise.Interrupt] calls wins; every
//     registered awaiter observes the winning [Exit] exactly once, and an
//     interrupted awaiter deregisters without disturbing other waiters.
//   - [Semaphore]: fair counting semaphore. Waiters are granted permits in
//     strict FIFO order, and interruption of a queued acquirer compensates
//     so permits are conserved exactly.
//   - [Schedule]: pure recurrence-policy algebra for repeat/retry decisions,
//     composable via [Both], [EitherOf], [AndThen], predicates, and [Jittered].
//
// # Outcomes
//
// A fiber or promise finishes with an [Exit]: success, typed failure, or
// interruption, discriminated by [Cause]. Unexpected conditions (recovered
// panics, negative permit counts) are defects, kept distinct from typed
// failures and from interruption.
//
// # Example
//
//	rt := fiber.NewRuntime()
//	exit := fiber.Run(rt, kont.Bind(fiber.MakeSemaphore(1), func(sem *fiber.Semaphore) fiber.Task[int] {
//		return fiber.WithPermit(sem, fiber.Succeed(42))
//	}))
//	// exit.Value == 42
package fiber
