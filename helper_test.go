// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/fiber"
)

// runExit executes the task on a fresh default runtime and returns its exit.
func runExit[A any](t testing.TB, task fiber.Task[A]) fiber.Exit[A] {
	t.Helper()
	return fiber.Run(fiber.NewRuntime(), task)
}

// serialRuntime returns a runtime backed by a single pool worker. Fibers
// then run one at a time in submission order, which makes interleavings
// in coordination tests deterministic: a Yield hands the worker to every
// fiber queued before the caller's continuation.
func serialRuntime(t testing.TB) *fiber.Runtime {
	t.Helper()
	p := fiber.NewPool(1, 256)
	t.Cleanup(p.Close)
	return fiber.NewRuntime(fiber.WithExecutor(p))
}

// gateExecutor holds submitted functions until released, so tests can
// run them one by one in a chosen order. After release it degrades to a
// plain goroutine-per-submit executor.
type gateExecutor struct {
	mu   sync.Mutex
	open bool
	fns  []func()
}

func (e *gateExecutor) Submit(fn func()) {
	e.mu.Lock()
	if e.open {
		e.mu.Unlock()
		go fn()
		return
	}
	e.fns = append(e.fns, fn)
	e.mu.Unlock()
}

// step runs the i-th held function on the calling goroutine.
func (e *gateExecutor) step(i int) {
	e.mu.Lock()
	fn := e.fns[i]
	e.fns[i] = func() {}
	e.mu.Unlock()
	fn()
}

// release opens the gate and starts everything still held.
func (e *gateExecutor) release() {
	e.mu.Lock()
	e.open = true
	fns := e.fns
	e.fns = nil
	e.mu.Unlock()
	for _, fn := range fns {
		go fn()
	}
}

// steppingClock returns the configured instants in order, then keeps
// repeating the last one.
type steppingClock struct {
	times []time.Duration
	i     int
}

func (c *steppingClock) Now() time.Duration {
	if c.i >= len(c.times) {
		return c.times[len(c.times)-1]
	}
	now := c.times[c.i]
	c.i++
	return now
}

func fixedClock(now time.Duration) fiber.Clock {
	return &steppingClock{times: []time.Duration{now}}
}

// fakeRand returns the configured samples in order, then repeats the
// last one.
type fakeRand struct {
	vals []float64
	i    int
}

func (r *fakeRand) Float64() float64 {
	if r.i >= len(r.vals) {
		return r.vals[len(r.vals)-1]
	}
	v := r.vals[r.i]
	r.i++
	return v
}
