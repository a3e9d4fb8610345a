// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"math"
	"time"

	"code.hybscloud.com/kont"
)

// Schedule is a pure recurrence policy: an initial state plus a step
// function re-evaluated once per input. The state is private to the
// policy and opaque to the caller; composition pairs states without
// exposing them.
type Schedule[In, Out any] struct {
	initial any
	step    func(now time.Duration, in In, state any) Decision[Out]
}

// Decision is one policy step: whether to continue, how long to wait
// before the next recurrence, and the policy's output for this input.
type Decision[Out any] struct {
	Continue bool
	Delay    time.Duration
	Output   Out
	state    any
}

// NewSchedule builds a policy from a typed initial state and step
// function. step must be pure; it receives the monotonic now supplied by
// the driver's Clock.
func NewSchedule[S, In, Out any](initial S, step func(now time.Duration, in In, s S) (bool, time.Duration, S, Out)) Schedule[In, Out] {
	return Schedule[In, Out]{
		initial: initial,
		step: func(now time.Duration, in In, state any) Decision[Out] {
			cont, delay, next, out := step(now, in, state.(S))
			return Decision[Out]{Continue: cont, Delay: delay, Output: out, state: next}
		},
	}
}

// RunSchedule feeds inputs through the policy until it stops or the
// inputs run out, collecting every decision including the terminal one.
// Inputs after a terminal decision are ignored.
func RunSchedule[In, Out any](s Schedule[In, Out], clk Clock, inputs []In) []Decision[Out] {
	state := s.initial
	decisions := make([]Decision[Out], 0, len(inputs))
	for _, in := range inputs {
		d := s.step(clk.Now(), in, state)
		decisions = append(decisions, d)
		if !d.Continue {
			break
		}
		state = d.state
	}
	return decisions
}

// Recurs continues n times with no delay, then stops. The output counts
// recurrences so far.
func Recurs[In any](n int) Schedule[In, int] {
	return NewSchedule(0, func(_ time.Duration, _ In, i int) (bool, time.Duration, int, int) {
		i++
		return i <= n, 0, i, i
	})
}

// Forever continues unconditionally with no delay, counting recurrences.
func Forever[In any]() Schedule[In, int] {
	return NewSchedule(0, func(_ time.Duration, _ In, i int) (bool, time.Duration, int, int) {
		i++
		return true, 0, i, i
	})
}

// Identity continues unconditionally, emitting each input unchanged.
// Useful as a base for the input-gating modifiers.
func Identity[In any]() Schedule[In, In] {
	return NewSchedule(Unit{}, func(_ time.Duration, in In, s Unit) (bool, time.Duration, Unit, In) {
		return true, 0, s, in
	})
}

// Spaced continues forever with a fixed delay between steps.
func Spaced[In any](d time.Duration) Schedule[In, int] {
	return NewSchedule(0, func(_ time.Duration, _ In, i int) (bool, time.Duration, int, int) {
		i++
		return true, d, i, i
	})
}

// Exponential continues forever with delay base·factor^i, i counting
// from zero, emitting the delay.
func Exponential[In any](base time.Duration, factor float64) Schedule[In, time.Duration] {
	return NewSchedule(0, func(_ time.Duration, _ In, i int) (bool, time.Duration, int, time.Duration) {
		delay := time.Duration(float64(base) * math.Pow(factor, float64(i)))
		return true, delay, i + 1, delay
	})
}

type fibState struct {
	prev, cur time.Duration
}

// Fibonacci continues forever, each delay the sum of the previous two,
// starting from one, emitting the delay.
func Fibonacci[In any](one time.Duration) Schedule[In, time.Duration] {
	return NewSchedule(fibState{prev: 0, cur: one},
		func(_ time.Duration, _ In, s fibState) (bool, time.Duration, fibState, time.Duration) {
			return true, s.cur, fibState{prev: s.cur, cur: s.prev + s.cur}, s.cur
		})
}

type fixedState struct {
	started bool
	start   time.Duration
	ticks   int64
}

// Fixed continues forever on wall-clock-aligned ticks: the delay targets
// start+k·interval boundaries. An action that overruns does not make
// ticks pile up: missed boundaries are skipped and the policy realigns
// to the next future boundary. The output counts boundaries passed.
func Fixed[In any](interval time.Duration) Schedule[In, int64] {
	return NewSchedule(fixedState{},
		func(now time.Duration, _ In, s fixedState) (bool, time.Duration, fixedState, int64) {
			if interval <= 0 {
				s.ticks++
				return true, 0, s, s.ticks
			}
			if !s.started {
				next := fixedState{started: true, start: now, ticks: 1}
				return true, interval, next, 1
			}
			elapsed := now - s.start
			boundary := int64(elapsed/interval) + 1
			delay := s.start + time.Duration(boundary)*interval - now
			return true, delay, fixedState{started: true, start: s.start, ticks: boundary}, boundary
		})
}

type pairState struct {
	left, right any
}

// Both intersects two policies: the result continues iff both continue,
// waits for the slower of the two delays, and merges the outputs with
// combine.
func Both[In, A, B, C any](x Schedule[In, A], y Schedule[In, B], combine func(A, B) C) Schedule[In, C] {
	return Schedule[In, C]{
		initial: pairState{left: x.initial, right: y.initial},
		step: func(now time.Duration, in In, state any) Decision[C] {
			s := state.(pairState)
			dx := x.step(now, in, s.left)
			dy := y.step(now, in, s.right)
			return Decision[C]{
				Continue: dx.Continue && dy.Continue,
				Delay:    max(dx.Delay, dy.Delay),
				Output:   combine(dx.Output, dy.Output),
				state:    pairState{left: dx.state, right: dy.state},
			}
		},
	}
}

// EitherOf unions two policies: the result continues iff either
// continues, waits for the faster of the two delays, and merges the
// outputs with combine.
func EitherOf[In, A, B, C any](x Schedule[In, A], y Schedule[In, B], combine func(A, B) C) Schedule[In, C] {
	return Schedule[In, C]{
		initial: pairState{left: x.initial, right: y.initial},
		step: func(now time.Duration, in In, state any) Decision[C] {
			s := state.(pairState)
			dx := x.step(now, in, s.left)
			dy := y.step(now, in, s.right)
			return Decision[C]{
				Continue: dx.Continue || dy.Continue,
				Delay:    min(dx.Delay, dy.Delay),
				Output:   combine(dx.Output, dy.Output),
				state:    pairState{left: dx.state, right: dy.state},
			}
		},
	}
}

type andThenState struct {
	second bool
	state  any
}

// AndThen runs the first policy until its terminal decision, then
// switches permanently to the second, starting fresh. The input that
// terminated the first drives the second's first step; no state carries
// over.
func AndThen[In, Out any](first, second Schedule[In, Out]) Schedule[In, Out] {
	return Schedule[In, Out]{
		initial: andThenState{state: first.initial},
		step: func(now time.Duration, in In, state any) Decision[Out] {
			s := state.(andThenState)
			if !s.second {
				d := first.step(now, in, s.state)
				if d.Continue {
					d.state = andThenState{state: d.state}
					return d
				}
				d = second.step(now, in, second.initial)
				d.state = andThenState{second: true, state: d.state}
				return d
			}
			d := second.step(now, in, s.state)
			d.state = andThenState{second: true, state: d.state}
			return d
		},
	}
}

// MapOutput transforms the policy's outputs.
func MapOutput[In, A, B any](s Schedule[In, A], f func(A) B) Schedule[In, B] {
	return Schedule[In, B]{
		initial: s.initial,
		step: func(now time.Duration, in In, state any) Decision[B] {
			d := s.step(now, in, state)
			return Decision[B]{Continue: d.Continue, Delay: d.Delay, Output: f(d.Output), state: d.state}
		},
	}
}

// ContramapInput transforms the policy's inputs.
func ContramapInput[In2, In, Out any](s Schedule[In, Out], f func(In2) In) Schedule[In2, Out] {
	return Schedule[In2, Out]{
		initial: s.initial,
		step: func(now time.Duration, in In2, state any) Decision[Out] {
			return s.step(now, f(in), state)
		},
	}
}

// WhileOutput gates continuation on a predicate over the latest output,
// leaving delay and state untouched.
func WhileOutput[In, Out any](s Schedule[In, Out], pred func(Out) bool) Schedule[In, Out] {
	return Schedule[In, Out]{
		initial: s.initial,
		step: func(now time.Duration, in In, state any) Decision[Out] {
			d := s.step(now, in, state)
			d.Continue = d.Continue && pred(d.Output)
			return d
		},
	}
}

// UntilOutput continues until the predicate over the output holds.
func UntilOutput[In, Out any](s Schedule[In, Out], pred func(Out) bool) Schedule[In, Out] {
	return WhileOutput(s, func(out Out) bool { return !pred(out) })
}

// WhileInput gates continuation on a predicate over the latest input.
func WhileInput[In, Out any](s Schedule[In, Out], pred func(In) bool) Schedule[In, Out] {
	return Schedule[In, Out]{
		initial: s.initial,
		step: func(now time.Duration, in In, state any) Decision[Out] {
			d := s.step(now, in, state)
			d.Continue = d.Continue && pred(in)
			return d
		},
	}
}

// UntilInput continues until the predicate over the input holds.
func UntilInput[In, Out any](s Schedule[In, Out], pred func(In) bool) Schedule[In, Out] {
	return WhileInput(s, func(in In) bool { return !pred(in) })
}

// Jittered scales each delay by a factor sampled uniformly from
// [lo, hi), drawn from the randomness collaborator.
func Jittered[In, Out any](s Schedule[In, Out], lo, hi float64, rnd Rand) Schedule[In, Out] {
	return Schedule[In, Out]{
		initial: s.initial,
		step: func(now time.Duration, in In, state any) Decision[Out] {
			d := s.step(now, in, state)
			factor := lo + (hi-lo)*rnd.Float64()
			d.Delay = time.Duration(float64(d.Delay) * factor)
			return d
		},
	}
}

type foldState struct {
	state any
	acc   any
}

// Fold accumulates every output produced so far into a running value,
// which becomes the policy's output.
func Fold[In, Out, Z any](s Schedule[In, Out], zero Z, f func(Z, Out) Z) Schedule[In, Z] {
	return Schedule[In, Z]{
		initial: foldState{state: s.initial, acc: zero},
		step: func(now time.Duration, in In, state any) Decision[Z] {
			fs := state.(foldState)
			d := s.step(now, in, fs.state)
			acc := f(fs.acc.(Z), d.Output)
			return Decision[Z]{
				Continue: d.Continue,
				Delay:    d.Delay,
				Output:   acc,
				state:    foldState{state: d.state, acc: acc},
			}
		},
	}
}

// Repeat runs t, feeds its result to the policy, and repeats after the
// decided delay while the policy continues, producing the terminal
// decision's output.
func Repeat[A, Out any](t Task[A], s Schedule[A, Out], clk Clock) Task[Out] {
	return Loop(s.initial, func(state any) Task[kont.Either[any, Out]] {
		return kont.Bind(t, func(a A) Task[kont.Either[any, Out]] {
			d := s.step(clk.Now(), a, state)
			if !d.Continue {
				return Succeed(kont.Right[any](d.Output))
			}
			return kont.Then(Sleep(d.Delay), Succeed(kont.Left[any, Out](d.state)))
		})
	})
}

// Retry runs t, feeding typed failures to the policy and retrying after
// the decided delay while it continues. Defects and interruption are
// re-raised unchanged; when the policy stops, the last failure is
// re-raised.
func Retry[A, Out any](t Task[A], s Schedule[error, Out], clk Clock) Task[A] {
	return Loop(s.initial, func(state any) Task[kont.Either[any, A]] {
		return kont.Bind(Attempt(t), func(e Exit[A]) Task[kont.Either[any, A]] {
			if e.Cause == nil {
				return Succeed(kont.Right[any](e.Value))
			}
			err, ok := e.Cause.Failure()
			if !ok {
				return failCause[kont.Either[any, A]](e.Cause)
			}
			d := s.step(clk.Now(), err, state)
			if !d.Continue {
				return failCause[kont.Either[any, A]](e.Cause)
			}
			return kont.Then(Sleep(d.Delay), Succeed(kont.Left[any, A](d.state)))
		})
	})
}
