// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"math/rand/v2"
	"time"
)

// Clock supplies monotonic time to the recurrence drivers. Policies only
// compare and subtract the values, so any fixed epoch works; tests
// substitute a manual clock.
type Clock interface {
	Now() time.Duration
}

// Rand supplies uniform samples in [0, 1) to [Jittered].
type Rand interface {
	Float64() float64
}

type systemClock struct {
	base time.Time
}

func (c systemClock) Now() time.Duration { return time.Since(c.base) }

// SystemClock returns a Clock backed by the monotonic wall clock,
// measured from the moment of the call.
func SystemClock() Clock { return systemClock{base: time.Now()} }

type systemRand struct{}

func (systemRand) Float64() float64 { return rand.Float64() }

// SystemRand returns a Rand backed by the process-wide generator.
func SystemRand() Rand { return systemRand{} }
