package mut

import "fmt"

// Mode is the runtime tag of an access capability. There are exactly two
// modes, matching the two ways a value can be referenced: by any number of
// readers, or by a single writer.
type Mode uint8

const (
	// ModeShared tags read-only access. A shared reference may coexist
	// with any number of other shared references to the same target,
	// never with an exclusive one.
	ModeShared Mode = iota

	// ModeExclusive tags read-write access. An exclusive reference must
	// be the only live reference to its target, of either mode, for as
	// long as it is used.
	ModeExclusive
)

// String returns "shared" or "exclusive".
func (m Mode) String() string {
	switch m {
	case ModeShared:
		return "shared"
	case ModeExclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Mutability is the capability parameter of Ref: instantiate with Shared
// for a read-only handle or with Exclusive for a read-write one. The
// unexported method keeps the implementation set closed; no third mode can
// exist, which is what lets generic code treat the two Downcast arms as
// exhaustive.
type Mutability interface {
	// Mode returns the capability's runtime tag.
	Mode() Mode

	sealed()
}

// Shared is the capability of read-only references. It carries no state;
// its only job is to select the shared instantiation of generic code.
type Shared struct{}

// Exclusive is the capability of read-write references. Like Shared it is
// a zero-sized marker; exclusivity itself is a contract on the code
// holding the handle, not something stored in it.
type Exclusive struct{}

// Mode returns ModeShared.
func (Shared) Mode() Mode { return ModeShared }

// Mode returns ModeExclusive.
func (Exclusive) Mode() Mode { return ModeExclusive }

func (Shared) sealed()    {}
func (Exclusive) sealed() {}

// ModeOf resolves the tag of a capability type without a value in hand.
// The result is a compile-time constant of each instantiation, which is
// what makes Downcast and Dispatch branch-free per mode.
func ModeOf[M Mutability]() Mode {
	var m M
	return m.Mode()
}

// Tag is a zero-sized field for composite types that are themselves
// generic over mutability. Embedding it gives the composite a Mode method
// without storing anything:
//
//	type Cursor[M mut.Mutability] struct {
//		mut.Tag[M]
//		buf mut.Ref[M, []byte]
//	}
type Tag[M Mutability] struct{}

// Mode returns the tag of M.
func (Tag[M]) Mode() Mode {
	return ModeOf[M]()
}
