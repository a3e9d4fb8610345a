// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"context"
	"testing"
	"time"

	"code.hybscloud.com/fiber"
	"code.hybscloud.com/kont"
	"golang.org/x/sync/semaphore"
)

// BenchmarkRunSucceed measures the fixed cost of driving a pure task
// through a fiber.
func BenchmarkRunSucceed(b *testing.B) {
	rt := fiber.NewRuntime()
	b.ReportAllocs()
	for b.Loop() {
		fiber.Run(rt, fiber.Succeed(42))
	}
}

// BenchmarkForkJoin measures one fork/join round-trip.
func BenchmarkForkJoin(b *testing.B) {
	rt := fiber.NewRuntime()
	task := kont.Bind(fiber.Fork(fiber.Succeed(1)), func(f *fiber.Fiber[int]) fiber.Task[int] {
		return f.Join()
	})
	b.ReportAllocs()
	for b.Loop() {
		fiber.Run(rt, task)
	}
}

// BenchmarkPromiseRoundTrip measures complete-then-await on a fresh
// promise.
func BenchmarkPromiseRoundTrip(b *testing.B) {
	rt := fiber.NewRuntime()
	task := kont.Bind(fiber.MakePromise[int](), func(p *fiber.Promise[int]) fiber.Task[int] {
		return kont.Then(p.Succeed(1), p.Await())
	})
	b.ReportAllocs()
	for b.Loop() {
		fiber.Run(rt, task)
	}
}

// BenchmarkWithPermitUncontended measures the permit bracket with no
// waiters.
func BenchmarkWithPermitUncontended(b *testing.B) {
	rt := fiber.NewRuntime()
	task := kont.Bind(fiber.MakeSemaphore(1), func(s *fiber.Semaphore) fiber.Task[int] {
		return fiber.WithPermit(s, fiber.Succeed(1))
	})
	b.ReportAllocs()
	for b.Loop() {
		fiber.Run(rt, task)
	}
}

// BenchmarkWeightedUncontended is the golang.org/x/sync baseline for
// BenchmarkWithPermitUncontended.
func BenchmarkWeightedUncontended(b *testing.B) {
	sem := semaphore.NewWeighted(1)
	ctx := context.Background()
	b.ReportAllocs()
	for b.Loop() {
		if err := sem.Acquire(ctx, 1); err != nil {
			b.Fatal(err)
		}
		sem.Release(1)
	}
}

// BenchmarkScheduleStep measures one pure policy evaluation.
func BenchmarkScheduleStep(b *testing.B) {
	s := fiber.Exponential[int](time.Millisecond, 2)
	clk := fixedClock(0)
	inputs := []int{1}
	b.ReportAllocs()
	for b.Loop() {
		fiber.RunSchedule(s, clk, inputs)
	}
}
