// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// Fiber is a handle to a running instance of a task. Fibers may be
// awaited, joined, or interrupted at any time, including after
// completion (a no-op then).
type Fiber[A any] struct {
	core *fiberCore
}

// Serial returns the serial number assigned to this fiber.
func (f *Fiber[A]) Serial() Serial {
	return f.core.serial
}

// Await suspends until the fiber finishes and succeeds with its exit
// without re-raising. The underlying goroutine is never blocked.
func (f *Fiber[A]) Await() Task[Exit[A]] {
	return kont.Map[kont.Resumed, exitCore, Exit[A]](awaitCell(&f.core.done), exitOf[A])
}

// Join suspends until the fiber finishes and re-raises its failure or
// interruption in the caller.
func (f *Fiber[A]) Join() Task[A] {
	return kont.Bind(awaitCell(&f.core.done), fromExitCore[A])
}

// Interrupt requests cancellation and suspends until the fiber has fully
// finished, finalizers included (or never started). Interrupting a
// completed fiber is a no-op that returns its exit.
func (f *Fiber[A]) Interrupt() Task[Exit[A]] {
	request := Sync(func() Unit {
		f.core.interrupt()
		return Unit{}
	})
	return Uninterruptible(kont.Then(request, f.Await()))
}

// Poll returns Right(exit) when the fiber is done, Left otherwise.
// Never suspends.
func (f *Fiber[A]) Poll() Task[kont.Either[Unit, Exit[A]]] {
	return Sync(func() kont.Either[Unit, Exit[A]] {
		if e, ok := f.core.done.poll(); ok {
			return kont.Right[Unit](exitOf[A](e))
		}
		return kont.Left[Unit, Exit[A]](Unit{})
	})
}

func spawnFiber[A any](rt *Runtime, t Task[A]) *Fiber[A] {
	core := newFiberCore(rt)
	core.start(erase(t))
	return &Fiber[A]{core: core}
}

// fiberCore is the type-erased control block. The runloop fields (mask,
// fins, unwind) are owned by the single goroutine currently stepping the
// fiber; cross-goroutine handoff happens through the park atomics.
type fiberCore struct {
	serial      Serial
	rt          *Runtime
	interrupted atomix.Uint32
	parked      atomic.Pointer[parkCell]
	done        cell

	mask   int
	fins   []finalizer
	unwind *Cause
}

func newFiberCore(rt *Runtime) *fiberCore {
	f := &fiberCore{serial: nextSerial(), rt: rt}
	f.done.init()
	return f
}

// interruptible reports whether interruption may be delivered right now.
func (f *fiberCore) interruptible() bool {
	return f.mask == 0 && f.unwind == nil
}

// interrupt records the request and wakes the fiber when it is parked in
// an interruptible region. Requests against masked or finished fibers
// are deferred or ignored respectively.
func (f *fiberCore) interrupt() {
	f.interrupted.Store(1)
	if p := f.parked.Load(); p != nil && p.interruptible {
		p.interruptWake()
	}
}

func (f *fiberCore) start(task kont.Eff[kont.Resumed]) {
	f.rt.exec.Submit(func() {
		// interrupted before the first step: never starts
		if f.interrupted.Load() != 0 {
			f.finish(exitCore{cause: causeInterrupt()})
			return
		}
		v, s, raised := advance(func() (kont.Resumed, *kont.Suspension[kont.Resumed]) {
			return kont.StepExpr(kont.Reify(task))
		})
		f.loop(v, s, raised)
	})
}

func (f *fiberCore) finish(e exitCore) {
	f.unwind = nil
	f.fins = nil
	f.done.complete(e)
}

// loop is the fiber runloop: it drives the computation one effect at a
// time, delivering pending interruption at every unmasked boundary, and
// returns whenever the fiber parks, yields, or finishes.
func (f *fiberCore) loop(value kont.Resumed, susp *kont.Suspension[kont.Resumed], raised *Cause) {
	for {
		if raised != nil {
			if f.unwind == nil {
				f.unwind = raised
			} else {
				// a finalizer failed mid-unwind; the original cause wins
				f.unwind.suppress(raised)
			}
			raised = nil
			var finished bool
			value, susp, raised, finished = f.nextFinalizer()
			if finished {
				f.finish(exitCore{cause: f.unwind})
				return
			}
			continue
		}
		if susp == nil {
			if f.unwind != nil {
				var finished bool
				value, susp, raised, finished = f.nextFinalizer()
				if finished {
					f.finish(exitCore{cause: f.unwind})
					return
				}
				continue
			}
			f.finish(exitCore{value: value})
			return
		}
		if f.interruptible() && f.interrupted.Load() != 0 {
			susp.Discard()
			raised = causeInterrupt()
			continue
		}
		switch o := susp.Op().(type) {
		case syncOp:
			var v kont.Resumed
			var c *Cause
			func() {
				defer func() {
					if r := recover(); r != nil {
						c = causeDie(r)
					}
				}()
				v = o.run()
			}()
			if c != nil {
				susp.Discard()
				raised = c
				continue
			}
			value, susp, raised = resumeWith(susp, v)
		case maskOp:
			f.mask++
			value, susp, raised = resumeWith(susp, Unit{})
		case unmaskOp:
			if f.mask > 0 {
				f.mask--
			}
			value, susp, raised = resumeWith(susp, Unit{})
		case pushFinalizerOp:
			f.fins = append(f.fins, o.fin)
			value, susp, raised = resumeWith(susp, Unit{})
		case popFinalizerOp:
			if n := len(f.fins); n > 0 {
				f.fins = f.fins[:n-1]
			}
			value, susp, raised = resumeWith(susp, Unit{})
		case failOp:
			susp.Discard()
			raised = o.cause
		case yieldOp:
			s := susp
			f.rt.exec.Submit(func() {
				v2, s2, r2 := resumeWith(s, Unit{})
				f.loop(v2, s2, r2)
			})
			return
		default:
			if fo, ok := susp.Op().(forkDispatcher); ok {
				value, susp, raised = resumeWith(susp, fo.dispatchFork(f.rt))
				continue
			}
			if ao, ok := susp.Op().(asyncRegistrar); ok {
				var stays bool
				value, susp, raised, stays = f.parkOn(susp, ao)
				if stays {
					return
				}
				continue
			}
			panic("fiber: unhandled effect in runloop")
		}
	}
}

// nextFinalizer pops and starts the next pending finalizer, or reports
// that unwinding is finished.
func (f *fiberCore) nextFinalizer() (kont.Resumed, *kont.Suspension[kont.Resumed], *Cause, bool) {
	n := len(f.fins)
	if n == 0 {
		return nil, nil, nil, true
	}
	fin := f.fins[n-1]
	f.fins = f.fins[:n-1]
	c := f.unwind
	v, s, raised := advance(func() (kont.Resumed, *kont.Suspension[kont.Resumed]) {
		return kont.StepExpr(kont.Reify(fin(c)))
	})
	return v, s, raised, false
}

// parkOn suspends the fiber on an async registration. Returns stays=true
// when the fiber parked (a later completion re-enters loop), or the next
// step results when the callback fired during registration.
func (f *fiberCore) parkOn(susp *kont.Suspension[kont.Resumed], reg asyncRegistrar) (kont.Resumed, *kont.Suspension[kont.Resumed], *Cause, bool) {
	p := &parkCell{fiber: f, susp: susp, interruptible: f.interruptible()}
	f.parked.Store(p)
	// deliver requests that raced with publication of the park
	if p.interruptible && f.interrupted.Load() != 0 {
		p.interruptWake()
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				if p.gate.Add(1) == 1 {
					p.raise = causeDie(r)
					p.hand.Add(1)
				}
			}
		}()
		p.cancel = reg.registerAsync(p.complete)
	}()
	if p.hand.Add(1) == 2 {
		// completion arrived during registration; continue inline
		v, s, raised := f.unpark(p)
		return v, s, raised, false
	}
	return nil, nil, nil, true
}

// unpark consumes a decided park and produces the next step results.
func (f *fiberCore) unpark(p *parkCell) (kont.Resumed, *kont.Suspension[kont.Resumed], *Cause) {
	f.parked.Store(nil)
	if p.intr {
		if p.cancel != nil {
			p.cancel()
		}
		p.susp.Discard()
		return nil, nil, causeInterrupt()
	}
	if p.raise != nil {
		p.susp.Discard()
		return nil, nil, p.raise
	}
	return resumeWith(p.susp, p.value)
}

// parkCell is the rendezvous for one async suspension. gate makes the
// resume one-shot among callback, interrupt wake, and registration
// defect; hand is the two-party handoff deciding who continues the
// fiber: whichever of {runloop finished parking, completion arrived}
// comes second.
type parkCell struct {
	fiber         *fiberCore
	susp          *kont.Suspension[kont.Resumed]
	interruptible bool
	gate          atomix.Uint32
	hand          atomix.Uint32
	value         kont.Resumed
	intr          bool
	raise         *Cause
	cancel        func()
}

// complete is the one-shot resume callback handed to register.
func (p *parkCell) complete(v kont.Resumed) {
	if p.gate.Add(1) != 1 {
		return
	}
	p.value = v
	if p.hand.Add(1) == 2 {
		p.resume()
	}
}

// interruptWake claims the park for interruption. When the callback
// already won, the request is simply delivered at the next boundary.
func (p *parkCell) interruptWake() {
	if p.gate.Add(1) != 1 {
		return
	}
	p.intr = true
	if p.hand.Add(1) == 2 {
		p.resume()
	}
}

// resume continues the fiber on the executor (completion side of the
// handoff).
func (p *parkCell) resume() {
	p.fiber.rt.exec.Submit(func() {
		v, s, raised := p.fiber.unpark(p)
		p.fiber.loop(v, s, raised)
	})
}

// advance runs one stepping call, converting panics raised by user code
// inside continuations into die causes.
func advance(fn func() (kont.Resumed, *kont.Suspension[kont.Resumed])) (v kont.Resumed, s *kont.Suspension[kont.Resumed], raised *Cause) {
	defer func() {
		if r := recover(); r != nil {
			v, s = nil, nil
			raised = causeDie(r)
		}
	}()
	v, s = fn()
	return
}

func resumeWith(s *kont.Suspension[kont.Resumed], v kont.Resumed) (kont.Resumed, *kont.Suspension[kont.Resumed], *Cause) {
	return advance(func() (kont.Resumed, *kont.Suspension[kont.Resumed]) {
		return s.Resume(v)
	})
}
