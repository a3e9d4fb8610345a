// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"fmt"

	"code.hybscloud.com/kont"
)

// Unit is the result type of effects that produce no value.
type Unit = struct{}

// Exit is the three-way outcome of a fiber or promise: success when Cause is
// nil, otherwise typed failure, defect, or interruption per the Cause.
type Exit[A any] struct {
	Value A
	Cause *Cause
}

// IsSuccess reports whether the exit carries a value.
func (e Exit[A]) IsSuccess() bool { return e.Cause == nil }

// IsInterrupted reports whether the exit is due to interruption.
func (e Exit[A]) IsInterrupted() bool { return e.Cause != nil && e.Cause.Interrupted() }

// Failure returns the typed error when the exit is a typed failure.
func (e Exit[A]) Failure() (error, bool) {
	if e.Cause == nil {
		return nil, false
	}
	return e.Cause.Failure()
}

// Defect returns the defect value when the exit is a defect.
func (e Exit[A]) Defect() (any, bool) {
	if e.Cause == nil {
		return nil, false
	}
	return e.Cause.Defect()
}

type causeKind uint8

const (
	kindFail causeKind = iota
	kindDie
	kindInterrupt
)

// Cause discriminates how a computation ended abnormally: a typed failure
// (recoverable domain error), a defect (programming error or recovered
// panic), or interruption. The three are never conflated.
type Cause struct {
	kind       causeKind
	err        error
	defect     any
	suppressed []*Cause
}

func causeFail(err error) *Cause { return &Cause{kind: kindFail, err: err} }

func causeDie(defect any) *Cause { return &Cause{kind: kindDie, defect: defect} }

func causeInterrupt() *Cause { return &Cause{kind: kindInterrupt} }

// Failure returns the typed error for a typed-failure cause.
func (c *Cause) Failure() (error, bool) {
	if c.kind != kindFail {
		return nil, false
	}
	return c.err, true
}

// Defect returns the defect value for a die cause.
func (c *Cause) Defect() (any, bool) {
	if c.kind != kindDie {
		return nil, false
	}
	return c.defect, true
}

// Interrupted reports whether the cause is interruption.
func (c *Cause) Interrupted() bool { return c.kind == kindInterrupt }

// Suppressed returns causes raised by finalizers while this cause was
// already unwinding. The original cause wins; later ones are attached here.
func (c *Cause) Suppressed() []*Cause { return c.suppressed }

func (c *Cause) suppress(other *Cause) { c.suppressed = append(c.suppressed, other) }

func (c *Cause) String() string {
	switch c.kind {
	case kindFail:
		return fmt.Sprintf("fail: %v", c.err)
	case kindDie:
		return fmt.Sprintf("die: %v", c.defect)
	default:
		return "interrupted"
	}
}

// exitCore is the type-erased exit stored in cells and fiber state.
// Concrete value types are recovered via assertions at API boundaries,
// following the kont Erased convention.
type exitCore struct {
	value kont.Resumed
	cause *Cause
}

func exitOf[A any](e exitCore) Exit[A] {
	if e.cause != nil {
		return Exit[A]{Cause: e.cause}
	}
	v, _ := e.value.(A)
	return Exit[A]{Value: v}
}

func coreOf[A any](e Exit[A]) exitCore {
	if e.Cause != nil {
		return exitCore{cause: e.Cause}
	}
	return exitCore{value: e.Value}
}
