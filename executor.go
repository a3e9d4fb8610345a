// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// Executor schedules fiber resumptions. Submissions must eventually run;
// they never block the submitting fiber logically.
type Executor interface {
	Submit(fn func())
}

// GoExecutor runs each resumption on its own goroutine, delegating
// multiplexing onto OS threads to the Go scheduler.
type GoExecutor struct{}

// Submit implements Executor.
func (GoExecutor) Submit(fn func()) { go fn() }

// Pool is a bounded executor: a fixed set of workers draining a shared
// lock-free MPMC run queue. Fibers never block a worker; parks return
// the worker to the queue immediately.
type Pool struct {
	queue  *lfq.MPMC[func()]
	closed atomix.Uint32
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given worker count and run-queue
// capacity.
func NewPool(workers, capacity int) *Pool {
	p := &Pool{queue: lfq.NewMPMC[func()](capacity)}
	for range workers {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// work drains the run queue, backing off adaptively when idle and
// exiting once the pool is closed and drained.
func (p *Pool) work() {
	defer p.wg.Done()
	var bo iox.Backoff
	for {
		fn, err := p.queue.Dequeue()
		if err != nil {
			if p.closed.Load() != 0 {
				return
			}
			bo.Wait()
			continue
		}
		bo.Reset()
		fn()
	}
}

// Submit implements Executor. Waits with backoff on a full queue;
// submissions against a closed pool are dropped.
func (p *Pool) Submit(fn func()) {
	var bo iox.Backoff
	for p.queue.Enqueue(&fn) != nil {
		if p.closed.Load() != 0 {
			return
		}
		bo.Wait()
	}
}

// Close drains the run queue and stops the workers.
func (p *Pool) Close() {
	p.closed.Store(1)
	p.wg.Wait()
}
