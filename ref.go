// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"sync/atomic"

	"code.hybscloud.com/iox"
)

// Ref is an atomically updated mutable cell. It is the sole mutation
// primitive behind Promise and Semaphore state: every transition is a
// single Modify call, so no lock is ever held across a suspension point.
type Ref[S any] struct {
	p atomic.Pointer[S]
}

// NewRef allocates a cell holding s.
func NewRef[S any](s S) *Ref[S] {
	r := &Ref[S]{}
	r.p.Store(&s)
	return r
}

func (r *Ref[S]) init(s S) { r.p.Store(&s) }

// Load returns the current value.
func (r *Ref[S]) Load() S { return *r.p.Load() }

// Store replaces the current value.
func (r *Ref[S]) Store(s S) { r.p.Store(&s) }

// Modify atomically applies f to the current state, installing the new
// state and returning the result. f must be pure: it may run more than
// once under contention. Retries back off adaptively (iox.Backoff).
func Modify[S, B any](r *Ref[S], f func(S) (B, S)) B {
	var bo iox.Backoff
	for {
		old := r.p.Load()
		b, next := f(*old)
		if r.p.CompareAndSwap(old, &next) {
			return b
		}
		bo.Wait()
	}
}

// MakeRef allocates a Ref as an effect. Allocation never fails.
func MakeRef[S any](s S) Task[*Ref[S]] {
	return Sync(func() *Ref[S] { return NewRef(s) })
}

// GetRef reads a Ref as an effect.
func GetRef[S any](r *Ref[S]) Task[S] {
	return Sync(func() S { return r.Load() })
}

// SetRef writes a Ref as an effect.
func SetRef[S any](r *Ref[S], s S) Task[Unit] {
	return Sync(func() Unit {
		r.Store(s)
		return Unit{}
	})
}

// ModifyRef applies Modify as an effect.
func ModifyRef[S, B any](r *Ref[S], f func(S) (B, S)) Task[B] {
	return Sync(func() B { return Modify(r, f) })
}
