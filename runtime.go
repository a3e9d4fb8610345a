// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "code.hybscloud.com/iox"

// Runtime interprets tasks by scheduling fiber resumptions on an
// executor. A Runtime is cheap and safe for concurrent use.
type Runtime struct {
	exec Executor
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithExecutor installs a custom executor, e.g. a bounded Pool.
func WithExecutor(e Executor) Option {
	return func(rt *Runtime) { rt.exec = e }
}

// NewRuntime creates a runtime. The default executor runs each
// resumption on its own goroutine.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{exec: GoExecutor{}}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Spawn schedules t as a new fiber and returns its handle immediately.
func Spawn[A any](rt *Runtime, t Task[A]) *Fiber[A] {
	return spawnFiber(rt, t)
}

// Run schedules t and blocks the calling goroutine until it finishes,
// returning its exit. Blocking is confined to this top-level call: it
// waits with adaptive backoff (iox.Backoff) on the fiber's completion
// cell rather than occupying an executor worker.
func Run[A any](rt *Runtime, t Task[A]) Exit[A] {
	f := Spawn(rt, t)
	var bo iox.Backoff
	for {
		if e, ok := f.core.done.poll(); ok {
			return exitOf[A](e)
		}
		bo.Wait()
	}
}
