// Package checked is the dynamic companion of the mut package. The core
// handles carry their aliasing rules as documented contracts and cost
// nothing at runtime; a Tracker from this package records live borrows
// per target address and reports the operations that break those
// contracts. Nothing in the core consults it: code under test takes its
// handles from here instead of from mut directly, and production code
// keeps the zero-cost constructors.
//
// Violations are diagnosed, never gated: every call hands back a working
// handle, and the misuse is logged and recorded for Err, or panicked
// when the tracker was built WithPanics.
package checked

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/davecgh/go-spew/spew"
	"github.com/fzs111/mut"
	"github.com/jtolds/gls"
)

var (
	// ErrAliasedExclusive is reported when a borrow of either mode is
	// requested for a target that already has a live exclusive borrow.
	ErrAliasedExclusive = errors.New("target already exclusively " +
		"borrowed")

	// ErrExclusiveWhileShared is reported when an exclusive borrow is
	// requested for a target that has live shared borrows.
	ErrExclusiveWhileShared = errors.New("target has live shared " +
		"borrows")

	// ErrStaleParent is reported when a release token is returned while
	// a child borrow derived from that borrow is still live.
	ErrStaleParent = errors.New("borrow released before its children")

	// ErrDoubleRelease is reported when a release token is returned a
	// second time.
	ErrDoubleRelease = errors.New("borrow released twice")

	// ErrUntracked is reported when a reborrow is requested for a
	// target with no live exclusive borrow to derive from.
	ErrUntracked = errors.New("no live exclusive borrow for target")

	// ErrCrossGoroutine is reported, under WithGoroutineAffinity, when
	// an exclusive borrow is released or reborrowed from a goroutine
	// other than the one that took it.
	ErrCrossGoroutine = errors.New("exclusive borrow crossed goroutines")
)

// writer is one live exclusive borrow.
type writer struct {
	// gen is the borrow's generation, issued at registration.
	gen uint64

	// owner identifies the goroutine that took the borrow, when
	// affinity tracking is on.
	owner uint
}

// target is the live-borrow record of one address.
type target struct {
	// writers holds the live exclusive borrows, outermost first. Only
	// the innermost is releasable; the ones under it sit suspended
	// until their children return.
	writers []writer

	// readers holds the generations of the live shared borrows.
	readers map[uint64]struct{}
}

// Tracker records live borrows per target address and diagnoses aliasing
// contract violations. All methods are safe for concurrent use; the
// tracker itself is shared diagnostic state, unlike the handles it
// vouches for.
type Tracker struct {
	mtx sync.Mutex

	cfg config

	// gen is the source of borrow generations. Zero is never issued.
	gen uint64

	// targets maps addresses to their live-borrow records. Addresses
	// are bookkeeping keys only: the tracker holds no reference to the
	// target, so a target collected and its address reused can in
	// principle collide. Acceptable in a diagnostic.
	targets map[uintptr]*target

	// history retains the most recent operations for violation dumps.
	// Nil when disabled.
	history *ring[event]

	// errs accumulates the recorded violations.
	errs []error
}

// New returns a tracker with no live borrows.
func New(opts ...Option) *Tracker {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Tracker{
		cfg:     cfg,
		targets: make(map[uintptr]*target),
	}
	if cfg.histSize > 0 {
		t.history = newRing[event](cfg.histSize)
	}

	return t
}

// Exclusive registers an exclusive borrow of *p and returns the handle
// together with its release token. The token must be called exactly once,
// when the handle and everything derived from it are dropped; the target
// stays booked until then. Taking the borrow while any other borrow of
// *p is live is a violation.
func Exclusive[T any](t *Tracker, p *T) (mut.Ref[mut.Exclusive, T],
	func()) {

	addr := uintptr(unsafe.Pointer(p))
	gen := t.acquire(addr, mut.ModeExclusive)

	log.Debugf("Exclusive borrow gen=%d addr=%#x", gen, addr)

	return mut.FromPtr(p), t.releaseFunc(addr, mut.ModeExclusive, gen)
}

// Shared registers a shared borrow of *p and returns the handle together
// with its release token. Shared borrows coexist freely; only a live
// exclusive borrow of *p makes this a violation.
func Shared[T any](t *Tracker, p *T) (mut.Ref[mut.Shared, T], func()) {
	addr := uintptr(unsafe.Pointer(p))
	gen := t.acquire(addr, mut.ModeShared)

	log.Debugf("Shared borrow gen=%d addr=%#x", gen, addr)

	return mut.Borrow[mut.Shared](p), t.releaseFunc(addr, mut.ModeShared,
		gen)
}

// Reborrow registers a child borrow derived from r and returns it with
// its release token. For a shared handle this is one more reader. For an
// exclusive handle the child suspends its parent: returning the parent's
// token, or reborrowing the parent again, before the child's token comes
// back is a violation. Children may chain; tokens return innermost
// first.
func Reborrow[M mut.Mutability, T any](t *Tracker,
	r *mut.Ref[M, T]) (mut.Ref[M, T], func()) {

	addr := uintptr(mut.Raw(*r))
	mode := mut.ModeOf[M]()
	gen := t.reborrow(addr, mode)

	log.Debugf("Reborrowed %v gen=%d addr=%#x", mode, gen, addr)

	return mut.Reborrow(r), t.releaseFunc(addr, mode, gen)
}

// Go runs f on a goroutine with a persistent identity: every call of
// this package from inside f sees the same goroutine id, which is what
// the affinity diagnostics need. Everything except WithGoroutineAffinity
// behaves the same under plain go statements.
func Go(f func()) {
	go gls.EnsureGoroutineId(func(uint) {
		f()
	})
}

// Err returns all violations recorded so far, joined, or nil.
func (t *Tracker) Err() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	return errors.Join(t.errs...)
}

// LiveBorrows returns the number of borrows registered and not yet
// released, across all targets. Zero at the end of a test means every
// token came back.
func (t *Tracker) LiveBorrows() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	var n int
	for _, tgt := range t.targets {
		n += len(tgt.writers) + len(tgt.readers)
	}

	return n
}

// History returns the retained recent operations, oldest first, one
// formatted line per operation. Empty when history is disabled.
func (t *Tracker) History() []string {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.history == nil {
		return nil
	}

	events := t.history.list()
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.String()
	}

	return lines
}

// record notes a tracker-mediated operation in the history ring. Called
// with the mutex held.
func (t *Tracker) record(op string, mode mut.Mode, addr uintptr,
	gen uint64) {

	if t.history == nil {
		return
	}

	t.history.add(event{op: op, mode: mode, addr: addr, gen: gen})
}

// violation logs err and either records it for Err or hands it back for
// the caller to panic with once the mutex is dropped, per the configured
// policy. Called with the mutex held.
func (t *Tracker) violation(err error) error {
	log.Errorf("Borrow violation: %v", err)
	log.Tracef("Tracker state: %v", newLogClosure(func() string {
		return spew.Sdump(t.targets)
	}))

	if t.history != nil {
		log.Tracef("Recent operations: %v", newLogClosure(
			func() string {
				return spew.Sdump(t.history.list())
			},
		))
	}

	if t.cfg.panics {
		return err
	}

	t.errs = append(t.errs, err)

	return nil
}

// lookup returns the record for addr, creating it when absent. Called
// with the mutex held.
func (t *Tracker) lookup(addr uintptr) *target {
	tgt, ok := t.targets[addr]
	if !ok {
		tgt = &target{readers: make(map[uint64]struct{})}
		t.targets[addr] = tgt
	}

	return tgt
}

// ownerID identifies the calling goroutine when affinity tracking is on.
func (t *Tracker) ownerID() uint {
	if !t.cfg.affinity {
		return 0
	}

	return currentGoroutine()
}

// currentGoroutine returns the gls identity of the calling goroutine,
// tagging it for the duration of the lookup when it has none.
func currentGoroutine() uint {
	var gid uint
	gls.EnsureGoroutineId(func(id uint) {
		gid = id
	})

	return gid
}

// acquire books a fresh borrow of the given mode for addr and returns its
// generation.
func (t *Tracker) acquire(addr uintptr, mode mut.Mode) uint64 {
	t.mtx.Lock()

	tgt := t.lookup(addr)
	t.gen++
	gen := t.gen
	t.record(opAcquire, mode, addr, gen)

	var boom error
	switch mode {
	case mut.ModeExclusive:
		switch {
		case len(tgt.writers) > 0:
			boom = t.violation(fmt.Errorf("%w: addr=%#x gen=%d "+
				"requested while gen=%d is live",
				ErrAliasedExclusive, addr, gen,
				tgt.writers[len(tgt.writers)-1].gen))

		case len(tgt.readers) > 0:
			boom = t.violation(fmt.Errorf("%w: addr=%#x gen=%d "+
				"requested while %d readers are live",
				ErrExclusiveWhileShared, addr, gen,
				len(tgt.readers)))
		}

		// A panicking violation registers nothing: the caller never
		// receives the token, so there would be no way to settle the
		// entry.
		if boom == nil {
			tgt.writers = append(tgt.writers, writer{
				gen:   gen,
				owner: t.ownerID(),
			})
		}

	case mut.ModeShared:
		if len(tgt.writers) > 0 {
			boom = t.violation(fmt.Errorf("%w: addr=%#x shared "+
				"gen=%d requested while gen=%d is live",
				ErrAliasedExclusive, addr, gen,
				tgt.writers[len(tgt.writers)-1].gen))
		}

		if boom == nil {
			tgt.readers[gen] = struct{}{}
		}
	}

	t.mtx.Unlock()

	if boom != nil {
		panic(boom)
	}

	return gen
}

// reborrow books a child borrow of the given mode for addr and returns
// its generation.
func (t *Tracker) reborrow(addr uintptr, mode mut.Mode) uint64 {
	t.mtx.Lock()

	tgt := t.lookup(addr)
	t.gen++
	gen := t.gen
	t.record(opReborrow, mode, addr, gen)

	var boom error
	switch mode {
	case mut.ModeShared:
		// One more reader; only a live writer makes this unsound.
		if len(tgt.writers) > 0 {
			boom = t.violation(fmt.Errorf("%w: addr=%#x shared "+
				"reborrow gen=%d while gen=%d is live",
				ErrAliasedExclusive, addr, gen,
				tgt.writers[len(tgt.writers)-1].gen))
		}

		if boom == nil {
			tgt.readers[gen] = struct{}{}
		}

	case mut.ModeExclusive:
		if len(tgt.writers) == 0 {
			boom = t.violation(fmt.Errorf("%w: addr=%#x "+
				"exclusive reborrow gen=%d", ErrUntracked,
				addr, gen))
		} else if t.cfg.affinity {
			innermost := tgt.writers[len(tgt.writers)-1]
			if cur := currentGoroutine(); cur != innermost.owner {
				boom = t.violation(fmt.Errorf("%w: addr=%#x "+
					"gen=%d reborrowed on goroutine %d, "+
					"taken on %d", ErrCrossGoroutine,
					addr, innermost.gen, cur,
					innermost.owner))
			}
		}

		if boom == nil {
			tgt.writers = append(tgt.writers, writer{
				gen:   gen,
				owner: t.ownerID(),
			})
		}
	}

	if len(tgt.writers) == 0 && len(tgt.readers) == 0 {
		delete(t.targets, addr)
	}

	t.mtx.Unlock()

	if boom != nil {
		panic(boom)
	}

	return gen
}

// releaseFunc builds the release token for one registered borrow.
func (t *Tracker) releaseFunc(addr uintptr, mode mut.Mode,
	gen uint64) func() {

	return func() {
		t.release(addr, mode, gen)

		log.Debugf("Released %v borrow gen=%d addr=%#x", mode, gen,
			addr)
	}
}

// release returns a borrow. Out-of-order returns of exclusive tokens and
// second returns of any token are violations; the bookkeeping still
// settles so later diagnostics stay meaningful.
func (t *Tracker) release(addr uintptr, mode mut.Mode, gen uint64) {
	t.mtx.Lock()

	t.record(opRelease, mode, addr, gen)

	var boom error
	tgt, ok := t.targets[addr]
	if !ok {
		boom = t.violation(fmt.Errorf("%w: addr=%#x gen=%d",
			ErrDoubleRelease, addr, gen))

		t.mtx.Unlock()

		if boom != nil {
			panic(boom)
		}

		return
	}

	switch mode {
	case mut.ModeShared:
		if _, live := tgt.readers[gen]; !live {
			boom = t.violation(fmt.Errorf("%w: addr=%#x shared "+
				"gen=%d", ErrDoubleRelease, addr, gen))
			break
		}

		delete(tgt.readers, gen)

	case mut.ModeExclusive:
		idx := -1
		for i, w := range tgt.writers {
			if w.gen == gen {
				idx = i
				break
			}
		}

		switch {
		case idx < 0:
			boom = t.violation(fmt.Errorf("%w: addr=%#x "+
				"exclusive gen=%d", ErrDoubleRelease, addr,
				gen))

		case idx != len(tgt.writers)-1:
			boom = t.violation(fmt.Errorf("%w: addr=%#x gen=%d "+
				"released with %d live children",
				ErrStaleParent, addr, gen,
				len(tgt.writers)-1-idx))

			tgt.writers = append(tgt.writers[:idx],
				tgt.writers[idx+1:]...)

		default:
			w := tgt.writers[idx]
			if t.cfg.affinity {
				cur := currentGoroutine()
				if cur != w.owner {
					boom = t.violation(fmt.Errorf(
						"%w: addr=%#x gen=%d "+
							"released on "+
							"goroutine %d, taken "+
							"on %d",
						ErrCrossGoroutine, addr, gen,
						cur, w.owner))
				}
			}

			tgt.writers = tgt.writers[:idx]
		}
	}

	if len(tgt.writers) == 0 && len(tgt.readers) == 0 {
		delete(t.targets, addr)
	}

	t.mtx.Unlock()

	if boom != nil {
		panic(boom)
	}
}
