package mut

import "fmt"

// View is a read-only reference to a value of type T. Go has no pointer
// type that forbids writing, so View supplies the missing half: it is to
// Ref[Shared, T] what a plain *T is to Ref[Exclusive, T]. Copies of a View
// all read the same target.
//
// The zero View references nothing and panics on Get, the same way a nil
// pointer panics on dereference.
type View[T any] struct {
	p *T
}

// NewView returns a read-only reference to *p. The usual obligation stays
// with the caller: no write to *p may run concurrently with reads through
// the view, and none may happen at all while an exclusive handle to *p is
// live.
func NewView[T any](p *T) View[T] {
	return View[T]{p: p}
}

// Get returns a copy of the referenced value. Handing out a copy rather
// than the pointer is what keeps the reference read-only.
func (v View[T]) Get() T {
	return *v.p
}

// String returns the target address.
func (v View[T]) String() string {
	return fmt.Sprintf("view(%p)", v.p)
}
