package mut

// Project narrows a handle to a sub-reference of its target, keeping the
// mode: a struct field, an array element, whatever f can reach from the
// target pointer. f must only derive: no writes through its argument, even
// when the handle is exclusive, and no keeping the argument past the call.
// The handle is spent; the result carries its access from here on.
//
// The accessor is spelled per call site on purpose. Generating accessors
// per field is a job for code generation, not for this package.
func Project[M Mutability, T, U any](r Ref[M, T], f func(*T) *U) Ref[M, U] {
	return Ref[M, U]{ptr: f(r.ptr)}
}

// Split divides a handle into two disjoint sub-references, keeping the
// mode. On top of Project's contract, the two pointers f returns must not
// overlap: for an exclusive handle both results are exclusive, which two
// aliasing pointers cannot honor.
func Split[M Mutability, T, U, V any](r Ref[M, T],
	f func(*T) (*U, *V)) (Ref[M, U], Ref[M, V]) {

	u, v := f(r.ptr)

	return Ref[M, U]{ptr: u}, Ref[M, V]{ptr: v}
}

// Index narrows a slice handle to one element, keeping the mode. It
// panics when i is out of range, exactly as s[i] would.
func Index[M Mutability, E any](r Ref[M, []E], i int) Ref[M, E] {
	return Ref[M, E]{ptr: &(*r.ptr)[i]}
}
