// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "slices"

// cellState is empty (no waiters), pending (FIFO waiter callbacks), or
// done. Once done it never changes.
type cellState struct {
	done    bool
	exit    exitCore
	waiters []cellWaiter
}

// cellWaiter is a one-shot resume handle keyed by serial, so cancellation
// of one awaiter removes exactly its own entry.
type cellWaiter struct {
	serial uint64
	notify func(exitCore)
}

// cell is the single-assignment core shared by Promise and fiber
// completion. All transitions go through one Ref.Modify call.
type cell struct {
	state Ref[cellState]
}

func (c *cell) init() { c.state.init(cellState{}) }

type completeOutcome struct {
	won     bool
	waiters []cellWaiter
}

// complete attempts the empty|pending → done transition. Returns true iff
// this call won; the winner notifies every registered waiter exactly once
// with the stored exit. Losers leave the cell and its waiters untouched.
func (c *cell) complete(e exitCore) bool {
	out := Modify(&c.state, func(s cellState) (completeOutcome, cellState) {
		if s.done {
			return completeOutcome{}, s
		}
		return completeOutcome{won: true, waiters: s.waiters},
			cellState{done: true, exit: e}
	})
	for _, w := range out.waiters {
		w.notify(e)
	}
	return out.won
}

type registerOutcome struct {
	serial uint64
	done   bool
	exit   exitCore
}

// register appends a waiter, or reports the stored exit when already done
// so the caller can resume without suspending.
func (c *cell) register(notify func(exitCore)) registerOutcome {
	serial := nextWaiterSerial()
	return Modify(&c.state, func(s cellState) (registerOutcome, cellState) {
		if s.done {
			return registerOutcome{done: true, exit: s.exit}, s
		}
		ws := append(slices.Clone(s.waiters), cellWaiter{serial: serial, notify: notify})
		return registerOutcome{serial: serial}, cellState{waiters: ws}
	})
}

// deregister removes the waiter with the given serial, if still pending.
func (c *cell) deregister(serial uint64) {
	Modify(&c.state, func(s cellState) (Unit, cellState) {
		if s.done {
			return Unit{}, s
		}
		ws := slices.DeleteFunc(slices.Clone(s.waiters), func(w cellWaiter) bool {
			return w.serial == serial
		})
		return Unit{}, cellState{waiters: ws}
	})
}

// poll returns the stored exit without suspending or mutating.
func (c *cell) poll() (exitCore, bool) {
	s := c.state.Load()
	return s.exit, s.done
}

func (c *cell) isDone() bool {
	return c.state.Load().done
}

// awaitCell suspends until the cell completes, resuming immediately when
// already done. Interruption of the awaiter deregisters its callback.
func awaitCell(c *cell) Task[exitCore] {
	return AsyncInterrupt(func(resume func(exitCore)) func() {
		out := c.register(resume)
		if out.done {
			resume(out.exit)
			return nil
		}
		return func() { c.deregister(out.serial) }
	})
}
