// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"errors"
	"fmt"
	"slices"

	"code.hybscloud.com/kont"
)

// ErrNegativeArgument is the defect raised when AcquireN or ReleaseN is
// evaluated with a negative amount. A programming error, not a
// recoverable failure: it dies rather than failing typed.
var ErrNegativeArgument = errors.New("fiber: negative permit count")

// semaphoreState is exactly one of Available (no waiters, available may
// be spent) or Queued (available is 0, waiters hold FIFO entries with
// remaining > 0).
type semaphoreState struct {
	available int64
	waiters   []semaphoreWaiter
}

type semaphoreWaiter struct {
	promise   *Promise[Unit]
	remaining int64
}

// Semaphore is a fair counting semaphore. Waiters are granted permits in
// strict FIFO order: a later, smaller request never overtakes an earlier
// one. Interruption of a queued acquirer compensates so that permits are
// conserved exactly.
type Semaphore struct {
	state Ref[semaphoreState]
}

func newSemaphore(permits int64) *Semaphore {
	s := &Semaphore{}
	s.state.init(semaphoreState{available: permits})
	return s
}

// MakeSemaphore allocates a semaphore with the given permit count as an
// effect. The count is validated at use time, not here: zero permits is
// legal (a lock usable only by releasing first).
func MakeSemaphore(permits int64) Task[*Semaphore] {
	return Sync(func() *Semaphore { return newSemaphore(permits) })
}

// Available snapshots the free permit count: 0 while any waiter is
// queued.
func (s *Semaphore) Available() Task[int64] {
	return Sync(func() int64 {
		st := s.state.Load()
		if len(st.waiters) > 0 {
			return 0
		}
		return st.available
	})
}

// acquisition pairs the suspend half of an acquire with the compensation
// that undoes it.
type acquisition struct {
	wait    Task[Unit]
	release Task[Unit]
}

// AcquireN acquires n permits, suspending in FIFO position when fewer
// are free. AcquireN(0) succeeds immediately without touching state.
// When the suspended acquirer is interrupted, the queued entry is
// unwound: removed outright if untouched, or compensated with
// ReleaseN(n-k) when releases already granted it n-k of its n, so the
// permits flow back to the next waiter. Every successful AcquireN(n)
// must be paired with exactly one ReleaseN(n) by its continuation;
// WithPermit does the pairing automatically.
func (s *Semaphore) AcquireN(n int64) Task[Unit] {
	if n < 0 {
		return Die[Unit](fmt.Errorf("%w: %d", ErrNegativeArgument, n))
	}
	if n == 0 {
		return Succeed(Unit{})
	}
	return BracketExit(s.prepare(n),
		func(a acquisition, e Exit[Unit]) Task[Unit] {
			if e.IsInterrupted() {
				return a.release
			}
			return Succeed(Unit{})
		},
		func(a acquisition) Task[Unit] { return a.wait },
	)
}

// Acquire acquires a single permit.
func (s *Semaphore) Acquire() Task[Unit] { return s.AcquireN(1) }

// prepare atomically either deducts n free permits, or enqueues a
// promise-keyed entry for the remainder at the tail. The returned
// release compensates whichever branch was taken.
func (s *Semaphore) prepare(n int64) Task[acquisition] {
	if n == 0 {
		return Succeed(acquisition{wait: Succeed(Unit{}), release: Succeed(Unit{})})
	}
	return Sync(func() acquisition {
		p := newPromise[Unit]()
		return Modify(&s.state, func(st semaphoreState) (acquisition, semaphoreState) {
			if len(st.waiters) == 0 && st.available >= n {
				return acquisition{wait: Succeed(Unit{}), release: s.ReleaseN(n)},
					semaphoreState{available: st.available - n}
			}
			granted := int64(0)
			if len(st.waiters) == 0 {
				granted = st.available
			}
			ws := append(slices.Clone(st.waiters), semaphoreWaiter{promise: p, remaining: n - granted})
			return acquisition{wait: p.Await(), release: s.restore(p, n)},
				semaphoreState{waiters: ws}
		})
	})
}

// restore unwinds an interrupted acquire: the entry is removed from the
// queue and the permits already notionally assigned to it (n minus its
// remaining amount) are released back. When the entry is gone because
// the grant completed before the interrupt landed, the full n permits
// are released.
func (s *Semaphore) restore(p *Promise[Unit], n int64) Task[Unit] {
	return flatten(Sync(func() Task[Unit] {
		return Modify(&s.state, func(st semaphoreState) (Task[Unit], semaphoreState) {
			for i, w := range st.waiters {
				if w.promise == p {
					ws := slices.Delete(slices.Clone(st.waiters), i, i+1)
					return s.ReleaseN(n - w.remaining),
						semaphoreState{available: st.available, waiters: ws}
				}
			}
			return s.ReleaseN(n), st
		})
	}))
}

// ReleaseN returns n permits, satisfying queued entries head-first in
// strict FIFO order: a fully covered entry's promise is completed and
// the walk continues with the leftover; an insufficiently covered head
// is decremented in place and the walk stops; leftover with an empty
// queue becomes available. The whole walk is one atomic transition and
// runs uninterruptibly, so a partial release is never abandoned mid-way.
func (s *Semaphore) ReleaseN(n int64) Task[Unit] {
	if n < 0 {
		return Die[Unit](fmt.Errorf("%w: %d", ErrNegativeArgument, n))
	}
	if n == 0 {
		return Succeed(Unit{})
	}
	return Uninterruptible(flatten(Sync(func() Task[Unit] {
		return Modify(&s.state, func(st semaphoreState) (Task[Unit], semaphoreState) {
			budget := n
			var grants []*Promise[Unit]
			ws := slices.Clone(st.waiters)
			for budget > 0 && len(ws) > 0 {
				head := ws[0]
				if budget >= head.remaining {
					budget -= head.remaining
					grants = append(grants, head.promise)
					ws = ws[1:]
					continue
				}
				ws[0] = semaphoreWaiter{promise: head.promise, remaining: head.remaining - budget}
				budget = 0
			}
			available := st.available
			if len(ws) == 0 {
				available += budget
			}
			return completeGrants(grants), semaphoreState{available: available, waiters: ws}
		})
	})))
}

// Release returns a single permit.
func (s *Semaphore) Release() Task[Unit] { return s.ReleaseN(1) }

func completeGrants(grants []*Promise[Unit]) Task[Unit] {
	if len(grants) == 0 {
		return Succeed(Unit{})
	}
	return Sync(func() Unit {
		for _, p := range grants {
			p.cell.complete(exitCore{value: Unit{}})
		}
		return Unit{}
	})
}

// WithPermit runs t while holding one permit.
func WithPermit[B any](s *Semaphore, t Task[B]) Task[B] {
	return WithPermits(s, 1, t)
}

// WithPermits acquires n permits, runs t only after the grant, and
// guarantees the matching release after t finishes for any reason,
// including interruption while still waiting in the queue.
func WithPermits[B any](s *Semaphore, n int64, t Task[B]) Task[B] {
	if n < 0 {
		return Die[B](fmt.Errorf("%w: %d", ErrNegativeArgument, n))
	}
	return Bracket(s.prepare(n),
		func(a acquisition) Task[Unit] { return a.release },
		func(a acquisition) Task[B] { return kont.Then(a.wait, t) },
	)
}
