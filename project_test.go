package mut

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type record struct {
	name  string
	count int
}

// countOf narrows any record handle to its count field. Written once, it
// serves the read-only and the mutating callers below.
func countOf[M Mutability](r Ref[M, record]) Ref[M, int] {
	return Project(r, func(rec *record) *int {
		return &rec.count
	})
}

// TestProjectField checks field projection through a single mode-generic
// accessor, instantiated for both modes.
func TestProjectField(t *testing.T) {
	t.Parallel()

	rec := record{name: "a", count: 5}

	shared := countOf(Borrow[Shared](&rec))
	require.Equal(t, ModeShared, shared.Mode())
	require.Equal(t, 5, shared.Get())

	exclusive := countOf(Borrow[Exclusive](&rec))
	*ToPtr(exclusive) = 9

	require.Equal(t, record{name: "a", count: 9}, rec)
}

// TestSplitFields checks that splitting yields two independently usable
// handles over disjoint parts of the target.
func TestSplitFields(t *testing.T) {
	t.Parallel()

	rec := record{name: "a", count: 5}

	name, count := Split(FromPtr(&rec), func(r *record) (*string, *int) {
		return &r.name, &r.count
	})

	*ToPtr(name) = "b"
	*ToPtr(count) = 9

	require.Equal(t, record{name: "b", count: 9}, rec)
}

// TestSplitShared checks the shared instantiation of a split: two
// readers over disjoint parts.
func TestSplitShared(t *testing.T) {
	t.Parallel()

	rec := record{name: "a", count: 5}

	name, count := Split(
		Borrow[Shared](&rec), func(r *record) (*string, *int) {
			return &r.name, &r.count
		},
	)

	require.Equal(t, "a", name.Get())
	require.Equal(t, 5, count.Get())
}

// TestIndexElement checks slice-element narrowing for both modes and the
// native out-of-range panic.
func TestIndexElement(t *testing.T) {
	t.Parallel()

	elems := []int{1, 5, 3}

	*ToPtr(Index(FromPtr(&elems), 1)) = 9
	require.Equal(t, []int{1, 9, 3}, elems)

	shared := Index(Borrow[Shared](&elems), 2)
	require.Equal(t, 3, shared.Get())

	require.Panics(t, func() {
		Index(Borrow[Shared](&elems), 3)
	})
}

// testIndexProperties is a rapid property: writing through an element
// handle updates exactly that element.
func testIndexProperties(t *rapid.T) {
	elems := rapid.SliceOfN(rapid.Int(), 1, 64).Draw(t, "elems")
	i := rapid.IntRange(0, len(elems)-1).Draw(t, "i")
	updated := rapid.Int().Draw(t, "updated")

	want := append([]int(nil), elems...)
	want[i] = updated

	*ToPtr(Index(FromPtr(&elems), i)) = updated
	require.Equal(t, want, elems)

	require.Equal(t, updated, Index(Borrow[Shared](&elems), i).Get())
}

// TestIndexWrites checks the rapid element property.
func TestIndexWrites(t *testing.T) {
	t.Parallel()

	rapid.Check(t, testIndexProperties)
}

// FuzzIndexWrites checks the rapid element property under the rapid
// derived fuzzer.
func FuzzIndexWrites(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testIndexProperties))
}
