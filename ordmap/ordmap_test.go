package ordmap

import (
	"testing"

	"github.com/fzs111/mut"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slices"
	"pgregory.net/rapid"
)

// TestInsertGetDelete checks the basic map operations and their reports.
func TestInsertGetDelete(t *testing.T) {
	t.Parallel()

	m := New[string, int]()

	require.True(t, m.Insert("a", 1))
	require.True(t, m.Insert("b", 2))
	require.False(t, m.Insert("a", 3))
	require.Equal(t, 2, m.Len())

	var got int
	m.Get("a").WhenSome(func(v mut.View[int]) {
		got = v.Get()
	})
	require.Equal(t, 3, got)

	require.False(t, m.Get("missing").IsSome())
	require.False(t, m.GetMut("missing").IsSome())

	require.True(t, m.Delete("a"))
	require.False(t, m.Delete("a"))
	require.Equal(t, 1, m.Len())
	require.False(t, m.Get("a").IsSome())
}

// TestGetMutWritesInPlace checks that the exclusive accessor mutates the
// value inside the map, not a copy.
func TestGetMutWritesInPlace(t *testing.T) {
	t.Parallel()

	m := New[string, int]()
	m.Insert("counter", 5)

	opt := m.GetMut("counter")
	require.True(t, opt.IsSome())

	opt.WhenSome(func(p *int) {
		*p = 9
	})

	var got int
	m.Get("counter").WhenSome(func(v mut.View[int]) {
		got = v.Get()
	})
	require.Equal(t, 9, got)
}

// valueAt reads the value under k through a handle of mode M: a
// mode-generic caller of the accessor that is itself written once.
func valueAt[M mut.Mutability](t *testing.T, m *Map[string, int],
	k string) int {

	t.Helper()

	opt := At[M](m, k)
	require.True(t, opt.IsSome())

	var got int
	opt.WhenSome(func(r mut.Ref[M, int]) {
		got = r.Get()
	})

	return got
}

// TestAtServesBothModes checks the single generic accessor from both
// instantiations, including a write through the exclusive one.
func TestAtServesBothModes(t *testing.T) {
	t.Parallel()

	m := New[string, int]()
	m.Insert("k", 5)

	require.Equal(t, 5, valueAt[mut.Shared](t, m, "k"))
	require.Equal(t, 5, valueAt[mut.Exclusive](t, m, "k"))

	At[mut.Exclusive](m, "k").WhenSome(
		func(r mut.Ref[mut.Exclusive, int]) {
			*mut.ToPtr(r) = 9
		},
	)

	require.Equal(t, 9, valueAt[mut.Shared](t, m, "k"))
}

// TestAddressStability checks the boxed-entry guarantee: a pointer handed
// out before heavy growth still addresses the live value after the tree
// has rebalanced many times.
func TestAddressStability(t *testing.T) {
	t.Parallel()

	m := New[int, int]()
	m.Insert(0, 0)

	var early *int
	m.GetMut(0).WhenSome(func(p *int) {
		early = p
	})
	require.NotNil(t, early)

	// Enough inserts to split nodes all the way up repeatedly.
	for i := 1; i < 1024; i++ {
		require.True(t, m.Insert(i, i))
	}

	*early = 42

	var got int
	m.Get(0).WhenSome(func(v mut.View[int]) {
		got = v.Get()
	})
	require.Equal(t, 42, got)

	m.GetMut(0).WhenSome(func(p *int) {
		require.Same(t, early, p)
	})
}

// TestAscendOrder checks in-order traversal and the early-stop contract.
func TestAscendOrder(t *testing.T) {
	t.Parallel()

	m := New[int, string]()
	for _, k := range []int{5, 1, 4, 2, 3} {
		m.Insert(k, "v")
	}

	var keys []int
	m.Ascend(func(k int, _ mut.View[string]) bool {
		keys = append(keys, k)
		return true
	})
	require.Equal(t, []int{1, 2, 3, 4, 5}, keys)

	var visited int
	m.Ascend(func(int, mut.View[string]) bool {
		visited++
		return visited < 2
	})
	require.Equal(t, 2, visited)
}

// TestNewFunc checks ordering by a caller-supplied comparison.
func TestNewFunc(t *testing.T) {
	t.Parallel()

	m := NewFunc[int, int](func(a, b int) bool {
		return a > b
	})
	for _, k := range []int{1, 3, 2} {
		m.Insert(k, k)
	}

	var keys []int
	m.Ascend(func(k int, _ mut.View[int]) bool {
		keys = append(keys, k)
		return true
	})
	require.Equal(t, []int{3, 2, 1}, keys)
}

// testMapProperties is a rapid property holding the map against a plain
// Go map as the model.
func testMapProperties(t *rapid.T) {
	keys := rapid.SliceOfDistinct(
		rapid.IntRange(-1000, 1000),
		func(k int) int { return k },
	).Draw(t, "keys")

	m := New[int, int]()
	model := make(map[int]int)

	for _, k := range keys {
		require.True(t, m.Insert(k, k*7))
		model[k] = k * 7
	}

	if len(keys) > 0 {
		drop := rapid.SampledFrom(keys).Draw(t, "drop")
		require.True(t, m.Delete(drop))
		delete(model, drop)
	}

	require.Equal(t, len(model), m.Len())

	for _, k := range keys {
		opt := m.Get(k)

		_, kept := model[k]
		require.Equal(t, kept, opt.IsSome())

		opt.WhenSome(func(v mut.View[int]) {
			require.Equal(t, model[k], v.Get())
		})
	}

	var walked []int
	m.Ascend(func(k int, v mut.View[int]) bool {
		require.Equal(t, model[k], v.Get())
		walked = append(walked, k)
		return true
	})

	require.True(t, slices.IsSorted(walked))
	require.Len(t, walked, len(model))
}

// TestMapModel checks the rapid map property.
func TestMapModel(t *testing.T) {
	t.Parallel()

	rapid.Check(t, testMapProperties)
}

// FuzzMapModel checks the rapid map property under the rapid derived
// fuzzer.
func FuzzMapModel(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testMapProperties))
}
