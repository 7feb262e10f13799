// Package lattice implements the two-point security lattice {L, H} and the
// polymorphic constraint-element algebra (constants, variables, joins) that
// the rest of the analysis is built over.
package lattice

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/funvibe/infoflow/internal/kit"
)

// Level is one of the two lattice constants.
type Level int

const (
	// L is untainted, the bottom of the lattice.
	L Level = iota
	// H is tainted, the top of the lattice.
	H
)

func (lv Level) String() string {
	if lv == H {
		return "H"
	}
	return "L"
}

// Leq reports whether a <= b under L <= H.
func Leq(a, b Level) bool {
	return a == L || b == H
}

// JoinLevels is the pointwise maximum.
func JoinLevels(a, b Level) Level {
	if a == H || b == H {
		return H
	}
	return L
}

// Element is a polymorphic constraint term: a Const, a Var, or a Join.
// It is implemented as a closed, tagged interface; the three concrete
// types below are the only permitted implementations.
type Element interface {
	isElement()
	String() string
}

// ID is a dense, small-integer identity assigned to every Var at creation
// time. It doubles as the index used by sparse-set based solvers.
type ID int

// Const is a lattice constant element.
type Const struct {
	Level Level
}

func (Const) isElement()        {}
func (c Const) String() string  { return c.Level.String() }

// Low returns the constant L element.
func Low() Element { return Const{Level: L} }

// High returns the constant H element.
func High() Element { return Const{Level: H} }

// Var is a fresh variable introduced for some analyzed entity. Identity is
// by pointer; two distinct Var values are never equal even with the same
// description.
type Var struct {
	id          ID
	description string
}

func (*Var) isElement() {}

func (v *Var) String() string {
	return fmt.Sprintf("v%d<%s>", v.id, v.description)
}

// ID returns the variable's dense integer identity, stable for the life of
// the Algebra that created it. Used by solvers that key sparse sets on it.
func (v *Var) ID() ID { return v.id }

// Description returns the human-readable tag the variable was created with.
func (v *Var) Description() string { return v.description }

// Join is the least upper bound of a non-empty set of elements. Joins are
// content-addressed: building a Join from the same member set (by identity,
// after flattening) returns the same interned *Join instance.
type Join struct {
	members []Element // sorted by a stable key, deduplicated
	key     string
}

func (*Join) isElement() {}

func (j *Join) String() string {
	parts := make([]string, len(j.members))
	for i, m := range j.members {
		parts[i] = m.String()
	}
	return "(" + strings.Join(parts, " ⊔ ") + ")"
}

// Members returns the flattened, deduplicated, interned member elements of
// the join in a stable order.
func (j *Join) Members() []Element {
	out := make([]Element, len(j.members))
	copy(out, j.members)
	return out
}

// Algebra owns variable and join identity for one analysis lifetime. All
// Var and Join values produced by a given Algebra are only meaningfully
// compared against each other (reference equality is only guaranteed within
// one Algebra's lifetime, per spec: "Identity of interned joins is stable
// within a solver lifetime").
type Algebra struct {
	mu       sync.Mutex
	nextID   ID
	joins    map[string]*Join
}

// NewAlgebra constructs an empty expression algebra.
func NewAlgebra() *Algebra {
	return &Algebra{joins: make(map[string]*Join)}
}

// NewVar allocates a fresh variable with the given description.
func (a *Algebra) NewVar(description string) *Var {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	a.nextID++
	return &Var{id: id, description: description}
}

// NumVars returns the number of variables allocated so far, i.e. one past
// the highest ID in use. Solvers use this to size dense/sparse sets.
func (a *Algebra) NumVars() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.nextID)
}

// elemKey produces a stable sort/identity key for an element. Const and Var
// sort by a type tag plus payload; Join members are pre-flattened so a
// Join's own key is built from its already-sorted, already-keyed members.
func elemKey(e Element) string {
	switch t := e.(type) {
	case Const:
		return "c:" + t.Level.String()
	case *Var:
		return fmt.Sprintf("v:%d", t.id)
	case *Join:
		return "j:" + t.key
	default:
		panic(fmt.Sprintf("lattice: unreachable element type %T", e))
	}
}

// Join builds the least upper bound of the given elements: flattens nested
// joins, deduplicates, and interns by member-set identity. Panics on an
// empty argument list (joining the empty set is a contract violation per
// spec.md §7).
func (a *Algebra) Join(elems ...Element) Element {
	return a.JoinMany(elems)
}

// JoinMany is the set form of Join.
func (a *Algebra) JoinMany(elems []Element) Element {
	if len(elems) == 0 {
		kit.Fatalf(kit.ErrEmptyJoin, "Algebra.JoinMany called with zero elements")
	}

	flat := make([]Element, 0, len(elems))
	var flatten func(Element)
	flatten = func(e Element) {
		if j, ok := e.(*Join); ok {
			for _, m := range j.members {
				flatten(m)
			}
			return
		}
		flat = append(flat, e)
	}
	for _, e := range elems {
		flatten(e)
	}

	if len(flat) == 1 {
		return flat[0]
	}

	seen := make(map[string]Element, len(flat))
	keys := make([]string, 0, len(flat))
	for _, e := range flat {
		k := elemKey(e)
		if _, ok := seen[k]; !ok {
			seen[k] = e
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		return seen[keys[0]]
	}

	members := make([]Element, len(keys))
	for i, k := range keys {
		members[i] = seen[k]
	}
	joinKey := strings.Join(keys, ",")

	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.joins[joinKey]; ok {
		return existing
	}
	j := &Join{members: members, key: joinKey}
	a.joins[joinKey] = j
	return j
}

// LeqElem reports e1 <= e2 for two *constant* elements; false whenever
// either side is a Var or a Join, per spec.md §4.A ("leq(a, b) false for
// variables vs. distinct things"). It is only meaningful once both sides
// have been substituted down to Const by a solver; it is exposed here
// because it is a pure property of the algebra, not the solver.
func LeqElem(e1, e2 Element) bool {
	c1, ok1 := e1.(Const)
	c2, ok2 := e2.(Const)
	if ok1 && ok2 {
		return Leq(c1.Level, c2.Level)
	}
	return false
}

// Equal reports whether two elements are the element-algebra notion of
// equal: Consts compare by level, Vars and Joins by pointer identity (joins
// are interned, so structurally-equal joins are the same pointer).
func Equal(a, b Element) bool {
	switch x := a.(type) {
	case Const:
		y, ok := b.(Const)
		return ok && x.Level == y.Level
	case *Var:
		y, ok := b.(*Var)
		return ok && x == y
	case *Join:
		y, ok := b.(*Join)
		return ok && x == y
	default:
		return false
	}
}
