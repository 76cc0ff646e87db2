// Package mut provides references that are generic over mutability.
//
// A Go accessor that should exist in a read-only and a mutating flavor
// gets written twice, because the two flavors have different types and the
// language offers nothing that abstracts over the difference. This package
// supplies that abstraction: Ref[M, T] is a reference to a T whose access
// capability M is a type parameter, either Shared or Exclusive. Write the
// accessor once against Ref[M, T]; instantiate with Shared where callers
// may only read, with Exclusive where they may write.
//
// The shape of the API:
//
//   - Shared and Exclusive are zero-sized capability markers behind the
//     sealed Mutability interface.
//   - View[T] is a read-only reference, the concrete shared counterpart of
//     a plain *T. Go has no such type; the package needs one for the
//     shared arm to mean anything.
//   - FromPtr, FromView and the mode-generic Borrow build handles; ToPtr,
//     ToView and the mode-generic AsView take them apart again. ToPtr only
//     accepts exclusive handles and ToView only shared ones, so a
//     mismatched downcast is a compile error, not a runtime one.
//   - Downcast and Dispatch let mode-generic code branch on the mode, with
//     exactly one arm live per instantiation.
//   - Project, Split and Index derive sub-references, keeping the mode.
//   - RefEnum[T] is the runtime-tagged escape hatch for code that must
//     decide late, and TryRef the checked way back to the static form.
//
// Everything on the Ref path is a constant-time pointer copy. There are no
// runtime mode checks, no allocation, no locks; a Ref[M, T] is one pointer
// wide regardless of M.
//
// What a borrow checker would enforce is here a documented contract: an
// exclusive handle is the only live reference to its target, shared
// handles never coexist with a writer, a reborrowed-from exclusive parent
// rests until its child is dropped. Plain struct assignment can duplicate
// an exclusive handle and nothing will stop it; that is the line Go draws.
// The checked subpackage tracks borrows dynamically for tests and debug
// builds, where the line is worth patrolling.
package mut
