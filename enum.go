package mut

import (
	"errors"
	"fmt"

	"github.com/lightningnetwork/lnd/fn"
)

// ErrMutabilityMismatch is returned by TryRef when the runtime mode of a
// RefEnum is not the mode the caller instantiated it for.
var ErrMutabilityMismatch = errors.New("mutability mismatch")

// RefEnum is a reference whose mode is a runtime value instead of a type
// parameter. It trades Ref's zero-cost static dispatch for late binding:
// enums of both modes fit in one slice, cross one channel, and get told
// apart with ordinary control flow. Downcast turns the static form into
// this one; TryRef goes back.
//
// The aliasing contract of the wrapped mode travels with the value exactly
// as it does for Ref. The zero RefEnum references nothing and panics on
// use.
type RefEnum[T any] struct {
	mode Mode
	ptr  *T
}

// EnumPtr adopts an exclusive pointer directly into the runtime form, with
// FromPtr's obligation.
func EnumPtr[T any](p *T) RefEnum[T] {
	return RefEnum[T]{mode: ModeExclusive, ptr: p}
}

// EnumView adopts a read-only reference directly into the runtime form.
func EnumView[T any](v View[T]) RefEnum[T] {
	return RefEnum[T]{mode: ModeShared, ptr: v.p}
}

// Downcast resolves a handle's static mode into the runtime form. This is
// the generic way to look inside a Ref[M, T]: match on the result, or use
// the comma-ok accessors. Exactly one arm is inhabited per instantiation,
// the tag being the compile-time ModeOf[M], so mode-generic callers still
// execute only the matching arm.
func Downcast[M Mutability, T any](r Ref[M, T]) RefEnum[T] {
	return RefEnum[T]{mode: ModeOf[M](), ptr: r.ptr}
}

// Mode returns the runtime mode.
func (e RefEnum[T]) Mode() Mode {
	return e.mode
}

// Exclusive returns the target pointer and true iff the mode is
// exclusive.
func (e RefEnum[T]) Exclusive() (*T, bool) {
	if e.mode != ModeExclusive {
		return nil, false
	}

	return e.ptr, true
}

// Shared returns a read-only reference to the target and true iff the
// mode is shared.
func (e RefEnum[T]) Shared() (View[T], bool) {
	if e.mode != ModeShared {
		return View[T]{}, false
	}

	return View[T]{p: e.ptr}, true
}

// Get returns a copy of the referenced value; either mode can read.
func (e RefEnum[T]) Get() T {
	return *e.ptr
}

// Either splits the two arms into fn's sum type: the exclusive pointer on
// the left, the shared view on the right. Handy with WhenLeft/WhenRight
// when a callback reads better than a switch.
func (e RefEnum[T]) Either() fn.Either[*T, View[T]] {
	if e.mode == ModeExclusive {
		return fn.NewLeft[*T, View[T]](e.ptr)
	}

	return fn.NewRight[*T, View[T]](View[T]{p: e.ptr})
}

// String returns the mode and target address.
func (e RefEnum[T]) String() string {
	return fmt.Sprintf("%v ref(%p)", e.mode, e.ptr)
}

// TryRef re-adopts a runtime reference as a static handle of mode M. The
// runtime mode must equal M exactly or ErrMutabilityMismatch is returned:
//
//   - A shared enum never becomes an exclusive handle; that would mint
//     write access out of read access.
//   - An exclusive enum is refused as a shared handle too. That direction
//     would be sound, but silently shedding write access is usually a
//     bug, so the downgrade has to be spelled out with AsView or Borrow
//     before erasing.
func TryRef[M Mutability, T any](e RefEnum[T]) (Ref[M, T], error) {
	if want := ModeOf[M](); e.mode != want {
		return Ref[M, T]{}, fmt.Errorf("%w: have %v reference, "+
			"want %v", ErrMutabilityMismatch, e.mode, want)
	}

	return Ref[M, T]{ptr: e.ptr}, nil
}
