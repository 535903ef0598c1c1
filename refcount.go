// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package ctfir

import "sync/atomic"

// refCount is the shared-ownership primitive every publicly-managed IR node
// embeds: a counted acquire/release pair with a per-object destructor. The
// counter is atomic so an object can be handed across threads by its owner
// without the core taking any internal lock (see the concurrency model).
type refCount struct {
	count   int64
	destroy func()
}

func newRefCount(destroy func()) *refCount {
	return &refCount{count: 1, destroy: destroy}
}

func (r *refCount) acquire() {
	atomic.AddInt64(&r.count, 1)
}

func (r *refCount) release() {
	if atomic.AddInt64(&r.count, -1) == 0 && r.destroy != nil {
		r.destroy()
	}
}

// refcounted is implemented by every node type that carries a refCount.
type refcounted interface {
	comparable
	Release()
}

// acquirable is a refcounted value that can also be acquired.
type acquirable interface {
	comparable
	Acquire() error
	Release()
}

// Acquire increments v's reference count. It fails with KindInvalidArgument
// when v is the zero value (nil pointer), matching the contract that acquire
// on null is an error while release on null is a no-op.
func Acquire[T acquirable](v T) error {
	var zero T
	if v == zero {
		return newErr(KindInvalidArgument, "acquire on nil reference")
	}
	return v.Acquire()
}

// MoveInto releases dst (if non-nil), assigns src into it, then clears src's
// caller-visible binding. Mirrors move_into(dst, src): release old dst,
// assign src, null src.
func MoveInto[T refcounted](dst, src *T) {
	var zero T
	if *dst != zero {
		(*dst).Release()
	}
	*dst = *src
	*src = zero
}

// PutAndNull releases v's current value (if any) and clears the binding.
func PutAndNull[T refcounted](v *T) {
	var zero T
	if *v != zero {
		(*v).Release()
	}
	*v = zero
}
