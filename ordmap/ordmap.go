// Package ordmap is an ordered map whose lookup path is written once,
// generically over mutability: the same accessor serves read-only callers
// and in-place mutators, instantiated per mode. It exists as the container
// end of the mut package's handles; the tree itself is a plain B-tree.
package ordmap

import (
	"github.com/fzs111/mut"
	"github.com/google/btree"
	"github.com/lightningnetwork/lnd/fn"
	"golang.org/x/exp/constraints"
)

// defaultDegree is the B-tree branching factor.
const defaultDegree = 8

// entry is one key/value pair. The tree stores entries by pointer so that
// rebalancing moves pointers, never values: &e.val stays valid for as
// long as the entry is in the map, which is what makes reference-handing
// accessors sound.
type entry[K, V any] struct {
	key K
	val V
}

// Map is an ordered map from K to V whose accessors hand out references
// into the map instead of copies. The zero Map is not usable; construct
// with New or NewFunc. A Map is not safe for concurrent use.
type Map[K, V any] struct {
	tree *btree.BTreeG[*entry[K, V]]
}

// New returns an empty map ordered by the native ordering of K.
func New[K constraints.Ordered, V any]() *Map[K, V] {
	return NewFunc[K, V](func(a, b K) bool {
		return a < b
	})
}

// NewFunc returns an empty map ordered by less, for key types without a
// native ordering.
func NewFunc[K, V any](less func(a, b K) bool) *Map[K, V] {
	return &Map[K, V]{
		tree: btree.NewG(defaultDegree,
			func(a, b *entry[K, V]) bool {
				return less(a.key, b.key)
			}),
	}
}

// Insert stores v under k, replacing any previous value, and reports
// whether k was absent. Replacement swaps the whole entry: references
// handed out for a replaced key are orphaned and keep reading the value
// they were taken for.
func (m *Map[K, V]) Insert(k K, v V) bool {
	_, replaced := m.tree.ReplaceOrInsert(&entry[K, V]{key: k, val: v})
	return !replaced
}

// Delete removes k and reports whether it was present. References handed
// out for k before the delete are orphaned, like pointers into a deleted
// map entry anywhere else in Go.
func (m *Map[K, V]) Delete(k K) bool {
	_, removed := m.tree.Delete(&entry[K, V]{key: k})
	return removed
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.tree.Len()
}

// At looks up k and returns a handle of mode M to the value inside the
// map. This is the accessor written once; Get and GetMut are its two
// one-line instantiations. The handle follows the usual contracts: an
// Exclusive instantiation must be the only live reference to that value,
// and any handle is orphaned once k is deleted or replaced.
func At[M mut.Mutability, K, V any](m *Map[K, V],
	k K) fn.Option[mut.Ref[M, V]] {

	e, ok := m.tree.Get(&entry[K, V]{key: k})
	if !ok {
		return fn.None[mut.Ref[M, V]]()
	}

	return fn.Some(mut.Borrow[M](&e.val))
}

// Get returns a read-only reference to the value under k.
func (m *Map[K, V]) Get(k K) fn.Option[mut.View[V]] {
	return fn.MapOption(mut.ToView[V])(At[mut.Shared](m, k))
}

// GetMut returns a pointer to the value under k, for in-place updates.
func (m *Map[K, V]) GetMut(k K) fn.Option[*V] {
	return fn.MapOption(mut.ToPtr[V])(At[mut.Exclusive](m, k))
}

// Ascend walks the entries in key order, handing the visitor read-only
// references, until the visitor returns false.
func (m *Map[K, V]) Ascend(visit func(K, mut.View[V]) bool) {
	m.tree.Ascend(func(e *entry[K, V]) bool {
		return visit(e.key, mut.NewView(&e.val))
	})
}
