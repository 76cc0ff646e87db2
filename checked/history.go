package checked

import (
	"fmt"

	"github.com/fzs111/mut"
)

// Operation names recorded in the history ring.
const (
	opAcquire  = "acquire"
	opReborrow = "reborrow"
	opRelease  = "release"
)

// event is one tracker-mediated borrow operation, retained for violation
// dumps.
type event struct {
	// op names the operation.
	op string

	// mode is the borrow mode the operation worked with.
	mode mut.Mode

	// addr is the target address.
	addr uintptr

	// gen is the generation of the borrow the operation created or
	// returned.
	gen uint64
}

// String renders the event the way it appears in dumps.
func (e event) String() string {
	return fmt.Sprintf("%s %v gen=%d addr=%#x", e.op, e.mode, e.gen,
		e.addr)
}

// ring retains the most recent items added to it, overwriting the oldest
// once full.
type ring[T any] struct {
	// total is the number of items ever added.
	total int

	// items is the backing array, sized once at construction.
	items []T
}

// newRing returns a ring retaining size items. size must be positive.
func newRing[T any](size int) *ring[T] {
	return &ring[T]{
		items: make([]T, size),
	}
}

// add stores item, overwriting the oldest once the ring is full.
func (r *ring[T]) add(item T) {
	r.items[r.total%len(r.items)] = item
	r.total++
}

// list returns the retained items, oldest first.
func (r *ring[T]) list() []T {
	size := len(r.items)
	index := r.total % size

	switch {
	case r.total == 0:
		return nil

	// Not yet wrapped: the oldest item sits at the start of the
	// backing array, not at the write index.
	case r.total < size:
		out := make([]T, r.total)
		copy(out, r.items[:index])
		return out
	}

	// Wrapped: the write index is the oldest item.
	out := make([]T, size)
	n := copy(out, r.items[index:])
	copy(out[n:], r.items[:index])

	return out
}
