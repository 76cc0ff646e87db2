package mut

import (
	"fmt"
	"unsafe"
)

// Ref is a reference to a value of type T, generic over the access
// capability M. Ref[Shared, T] is a read-only handle like View[T];
// Ref[Exclusive, T] is a read-write handle like *T. Code written once
// against Ref[M, T] serves as both, picked per instantiation, with no
// runtime checks anywhere on the path: a Ref is a single pointer and every
// operation on it compiles down to a pointer copy.
//
// T is invariant, as every Go type parameter is. Ref[M, T] and Ref[M, U]
// are unrelated types even when T and U convert to each other, so a handle
// can never be laundered into a handle of a different target type.
//
// The capability is a contract on the holder, not a bit in the handle:
//
//   - An exclusive handle must be the only live reference to its target.
//     Passing it somewhere hands it over; the giver is done with it.
//     Copying one by plain struct assignment makes two "exclusive"
//     references and breaks the contract. Reborrow is the sanctioned
//     temporary hand-off, Clone deliberately does not compile for it.
//   - A shared handle may be copied freely and coexists with any number
//     of other readers, but never with a writer.
//
// Violations are not detected here. The checked package tracks borrows
// dynamically for tests and debug builds; the core stays free of the cost.
//
// The zero Ref references nothing and panics on use, like a nil pointer.
type Ref[M Mutability, T any] struct {
	ptr *T
}

// FromPtr adopts an exclusive pointer as an exclusive handle. The caller
// gives up its access for the handle's lifetime: *p must not be read or
// written through p or any other path while the handle is live.
func FromPtr[T any](p *T) Ref[Exclusive, T] {
	return Ref[Exclusive, T]{ptr: p}
}

// FromView adopts a read-only reference as a shared handle. Other readers
// of the same target stay legal, as they were for the View itself.
func FromView[T any](v View[T]) Ref[Shared, T] {
	return Ref[Shared, T]{ptr: v.p}
}

// Borrow adopts an exclusive pointer as a handle of whichever mode the
// context asks for, downgrading write access to read access when M is
// Shared. Exclusive access always contains shared access, so both
// instantiations are sound from the same starting point. This is the
// constructor for mode-generic code that owns its data; FromPtr and
// FromView are its mode-specific cousins.
func Borrow[M Mutability, T any](p *T) Ref[M, T] {
	return Ref[M, T]{ptr: p}
}

// ToPtr recovers the pointer from an exclusive handle, spending the
// handle. Only Ref[Exclusive, T] is accepted; there is no way to write
// this call for a shared handle, which is the whole point.
func ToPtr[T any](r Ref[Exclusive, T]) *T {
	return r.ptr
}

// ToView recovers a read-only reference from a shared handle.
func ToView[T any](r Ref[Shared, T]) View[T] {
	return View[T]{p: r.ptr}
}

// AsView downgrades a handle of either mode to a read-only reference,
// spending the handle. For an exclusive handle this is a deliberate loss:
// taking the write access back afterwards is not possible through the
// view.
func AsView[M Mutability, T any](r Ref[M, T]) View[T] {
	return View[T]{p: r.ptr}
}

// Reborrow derives a child handle of the same mode from a parent, passed
// by pointer the way a mutating method would take its receiver. The two
// modes differ in what remains of the parent:
//
//   - Shared: parent and child are both immediately usable; this is
//     Clone by another route.
//   - Exclusive: the child takes over the parent's access. The parent
//     must sit untouched until the child is dropped, then it is whole
//     again. The child must not outlive the parent's scope.
//
// The discipline is documented, not enforced; checked.Reborrow is the
// enforcing variant.
func Reborrow[M Mutability, T any](r *Ref[M, T]) Ref[M, T] {
	return Ref[M, T]{ptr: r.ptr}
}

// Clone duplicates a shared handle; one more reader is always sound. No
// Exclusive variant exists or could: duplicating an exclusive handle is
// exactly the contract violation the type is built to rule out.
func Clone[T any](r Ref[Shared, T]) Ref[Shared, T] {
	return r
}

// Dispatch eliminates a handle by mode: fx runs with the pointer for an
// exclusive handle, fv runs with the view for a shared one, and the
// chosen function's result is returned. ModeOf is constant per
// instantiation, so each instantiation contains one live arm. Downcast is
// the value-shaped sibling for callers that prefer matching to passing
// continuations.
func Dispatch[M Mutability, T, R any](r Ref[M, T], fx func(*T) R,
	fv func(View[T]) R) R {

	if ModeOf[M]() == ModeExclusive {
		return fx(r.ptr)
	}

	return fv(View[T]{p: r.ptr})
}

// Get returns a copy of the referenced value. Reading is the one access
// every mode grants.
func (r Ref[M, T]) Get() T {
	return *r.ptr
}

// Mode returns the runtime tag of M.
func (r Ref[M, T]) Mode() Mode {
	return ModeOf[M]()
}

// String returns the mode and target address.
func (r Ref[M, T]) String() string {
	return fmt.Sprintf("%v ref(%p)", ModeOf[M](), r.ptr)
}

// FromRaw adopts a raw pointer as a handle of any mode and target type,
// with none of the typed constructors' implicit guarantees. The caller
// alone guarantees that p points to a valid T and that the aliasing
// contract of M holds for the whole life of the handle and everything
// derived from it: no other access at all for Exclusive, no writes for
// Shared. Nothing is checked, now or later.
func FromRaw[M Mutability, T any](p unsafe.Pointer) Ref[M, T] {
	return Ref[M, T]{ptr: (*T)(p)}
}

// Raw returns the target address of a handle. The typed API's contracts
// do not follow the raw pointer: writing through the Raw of a shared
// handle, or keeping it past the handle's life, is on the caller.
func Raw[M Mutability, T any](r Ref[M, T]) unsafe.Pointer {
	return unsafe.Pointer(r.ptr)
}
