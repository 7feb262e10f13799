// Package constraints maintains, per named kind, an append-only list of
// inequality constraints lhs ⊑ rhs over the lattice expression algebra, and
// locks a kind's list when it is first solved.
package constraints

import (
	"fmt"

	"github.com/funvibe/infoflow/internal/kit"
	"github.com/funvibe/infoflow/internal/lattice"
)

// Reserved kind names, per spec.md §3.
const (
	KindDefault        = "default"
	KindDefaultSinks   = "default-sinks"
	KindImplicit       = "implicit"
	KindImplicitSinks  = "implicit-sinks"
)

// Constraint is an immutable pair (lhs, rhs) meaning lhs ⊑ rhs.
type Constraint struct {
	LHS lattice.Element
	RHS lattice.Element
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s ⊑ %s", c.LHS, c.RHS)
}

// KindStats tracks explicit ("default") vs implicit ("implicit") additions,
// per spec.md §4.B.
type KindStats struct {
	Explicit int
	Implicit int
}

type kindEntry struct {
	list   []Constraint
	locked bool
}

// Store is the append-only, kind-namespaced constraint collection.
type Store struct {
	algebra *lattice.Algebra
	kinds   map[string]*kindEntry
	stats   map[string]*KindStats
}

// New constructs an empty store bound to the given expression algebra (the
// algebra that minted the Vars/Joins this store will ever see).
func New(algebra *lattice.Algebra) *Store {
	return &Store{
		algebra: algebra,
		kinds:   make(map[string]*kindEntry),
		stats:   make(map[string]*KindStats),
	}
}

func (s *Store) entry(kind string) *kindEntry {
	e, ok := s.kinds[kind]
	if !ok {
		e = &kindEntry{}
		s.kinds[kind] = e
		s.stats[kind] = &KindStats{}
	}
	return e
}

// Add appends lhs ⊑ rhs to kind. If lhs is a Join, the call is expanded
// into one constraint per member (spec.md §4.B); rhs must never be a Join —
// passing one is a contract violation and panics.
//
// Adding to a locked kind panics (spec.md §4.B, §7: "adding a constraint to
// a kind after that kind has been solved is forbidden").
func (s *Store) Add(kind string, lhs, rhs lattice.Element) {
	if _, isJoin := rhs.(*lattice.Join); isJoin {
		kit.Fatalf(kit.ErrJoinAsRHS, "kind %q, rhs=%s", kind, rhs)
	}

	e := s.entry(kind)
	if e.locked {
		kit.Fatalf(kit.ErrKindLocked, "kind %q", kind)
	}

	stat := s.stats[kind]
	isImplicit := kind == KindImplicit || kind == KindImplicitSinks
	if j, ok := lhs.(*lattice.Join); ok {
		for _, m := range j.Members() {
			e.list = append(e.list, Constraint{LHS: m, RHS: rhs})
			s.bump(stat, isImplicit)
		}
		return
	}
	e.list = append(e.list, Constraint{LHS: lhs, RHS: rhs})
	s.bump(stat, isImplicit)
}

func (s *Store) bump(stat *KindStats, implicit bool) {
	if implicit {
		stat.Implicit++
	} else {
		stat.Explicit++
	}
}

// Locked reports whether kind has already been solved (and so can no longer
// accept new constraints).
func (s *Store) Locked(kind string) bool {
	e, ok := s.kinds[kind]
	return ok && e.locked
}

// Exists reports whether kind has ever had a constraint added or was
// otherwise created (e.g. via LockAndTake).
func (s *Store) Exists(kind string) bool {
	_, ok := s.kinds[kind]
	return ok
}

// LockAndTake returns the accumulated constraint list for kind and marks it
// immutable. Calling it twice on the same kind returns nil the second time
// (the list has already been taken away); callers that need to inspect a
// solved kind's constraints again should have retained the first result.
func (s *Store) LockAndTake(kind string) []Constraint {
	e := s.entry(kind)
	if e.locked {
		return nil
	}
	e.locked = true
	list := e.list
	e.list = nil
	return list
}

// Peek returns a read-only copy of kind's current constraint list without
// locking it. Used by diagnostics and tests.
func (s *Store) Peek(kind string) []Constraint {
	e, ok := s.kinds[kind]
	if !ok {
		return nil
	}
	out := make([]Constraint, len(e.list))
	copy(out, e.list)
	return out
}

// Stats returns the explicit/implicit counters for kind.
func (s *Store) Stats(kind string) KindStats {
	if st, ok := s.stats[kind]; ok {
		return *st
	}
	return KindStats{}
}

// Kinds returns the names of every kind the store has ever seen, in no
// particular order.
func (s *Store) Kinds() []string {
	out := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		out = append(out, k)
	}
	return out
}
