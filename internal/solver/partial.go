package solver

import (
	"golang.org/x/tools/container/intsets"

	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/lattice"
)

// PartialSolution is the compact, chainable propagation-solver result of
// spec.md §4.C.2: a propagation map plus a changed set (VSet), with cheap
// copying and merging so a large baseline can be solved once and forked for
// many per-query variants.
type PartialSolution struct {
	sign  Sign
	prop  map[lattice.ID][]lattice.ID
	vset  intsets.Sparse
	chain []*PartialSolution
}

// BuildPartialSolution constructs a fresh, unchained partial solution for
// cs under sign: builds the propagation map, seeds the changed set from
// constant-only evidence, and runs the propagation fixed point.
func BuildPartialSolution(cs []constraints.Constraint, sign Sign) *PartialSolution {
	ps := &PartialSolution{sign: sign, prop: make(map[lattice.ID][]lattice.ID)}

	var emptyChanged intsets.Sparse
	subst := func(e lattice.Element) lattice.Level {
		return evalWithChanged(e, &emptyChanged, sign)
	}

	var worklist []lattice.ID
	seed := func(v *lattice.Var) {
		if ps.vset.Insert(int(v.ID())) {
			worklist = append(worklist, v.ID())
		}
	}

	for _, c := range cs {
		lhsVars := varsIn(c.LHS)
		rhsVar := singleVar(c.RHS)

		// Build the propagation edges. For Least: lhs-var -> rhs-var
		// ("if lhs becomes H, propagate H to rhs"). For Greatest, sides are
		// flipped: rhs-var -> lhs-var ("if rhs becomes L, propagate L to
		// lhs"), per spec.md §4.C.2's "Orientation" paragraph.
		if rhsVar != nil {
			if sign == Least {
				for _, lv := range lhsVars {
					ps.prop[lv.ID()] = append(ps.prop[lv.ID()], rhsVar.ID())
				}
			} else {
				for _, lv := range lhsVars {
					ps.prop[rhsVar.ID()] = append(ps.prop[rhsVar.ID()], lv.ID())
				}
			}
		}

		// Seed: using the all-default substitution, insert every target
		// variable whose immediate (constant-only) evidence forces the
		// non-default value.
		if !lattice.Leq(subst(c.LHS), subst(c.RHS)) {
			if sign == Least {
				if rhsVar != nil {
					seed(rhsVar)
				}
			} else {
				for _, lv := range lhsVars {
					seed(lv)
				}
			}
		}
	}

	ps.propagate(worklist)
	return ps
}

func (ps *PartialSolution) propagate(worklist []lattice.ID) {
	for len(worklist) > 0 {
		v := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, t := range ps.targets(v) {
			if ps.vset.Insert(int(t)) {
				worklist = append(worklist, t)
			}
		}
	}
}

// targets returns v's propagation targets in this solution's map and in the
// map of every solution chained into it.
func (ps *PartialSolution) targets(v lattice.ID) []lattice.ID {
	out := ps.prop[v]
	for _, c := range ps.chain {
		out = append(out[:len(out):len(out)], c.targets(v)...)
	}
	return out
}

// Has reports whether v holds the non-default level in this partial
// solution or any partial solution chained into it.
func (ps *PartialSolution) Has(id lattice.ID) bool {
	if ps.vset.Has(int(id)) {
		return true
	}
	for _, c := range ps.chain {
		if c.Has(id) {
			return true
		}
	}
	return false
}

// Value implements Solution.
func (ps *PartialSolution) Value(v *lattice.Var) lattice.Level {
	if ps.Has(v.ID()) {
		return ps.sign.changedLevel()
	}
	return ps.sign.defaultLevel()
}

// Eval implements Solution.
func (ps *PartialSolution) Eval(e lattice.Element) lattice.Level {
	return evalPartial(e, ps)
}

func evalPartial(e lattice.Element, ps *PartialSolution) lattice.Level {
	switch t := e.(type) {
	case lattice.Const:
		return t.Level
	case *lattice.Var:
		return ps.Value(t)
	case *lattice.Join:
		lvl := lattice.L
		for _, m := range t.Members() {
			lvl = lattice.JoinLevels(lvl, evalPartial(m, ps))
		}
		return lvl
	default:
		fatalf("unknown element type %T", e)
		return lattice.L
	}
}

// evalWithChanged is the shared immediate-substitution rule used while
// seeding: a var is non-default iff its id is in changed.
func evalWithChanged(e lattice.Element, changed *intsets.Sparse, sign Sign) lattice.Level {
	switch t := e.(type) {
	case lattice.Const:
		return t.Level
	case *lattice.Var:
		if changed.Has(int(t.ID())) {
			return sign.changedLevel()
		}
		return sign.defaultLevel()
	case *lattice.Join:
		lvl := lattice.L
		for _, m := range t.Members() {
			lvl = lattice.JoinLevels(lvl, evalWithChanged(m, changed, sign))
		}
		return lvl
	default:
		fatalf("unknown element type %T", e)
		return lattice.L
	}
}

// AllMembers returns the union, across this solution and every solution
// chained into it, of variable IDs holding the non-default level.
func (ps *PartialSolution) AllMembers() []lattice.ID {
	seen := make(map[lattice.ID]bool)
	var out []lattice.ID
	var visit func(*PartialSolution)
	visit = func(p *PartialSolution) {
		for _, x := range p.vset.AppendTo(nil) {
			id := lattice.ID(x)
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		for _, c := range p.chain {
			visit(c)
		}
	}
	visit(ps)
	return out
}

// Copy returns an independent partial solution sharing this one's
// propagation map (read-only and immutable after construction) but with its
// own VSet and chain list, safe to mutate (e.g. via MergeIn) without
// affecting the original. This is the "copy constructor" spec.md §4.C.3
// forks per-kind solutions from.
func (ps *PartialSolution) Copy() *PartialSolution {
	cp := &PartialSolution{
		sign:  ps.sign,
		prop:  ps.prop,
		chain: append([]*PartialSolution(nil), ps.chain...),
	}
	for _, x := range ps.vset.AppendTo(nil) {
		cp.vset.Insert(x)
	}
	return cp
}

// MergeIn appends other to this solution's chain and re-runs propagation
// seeded from this solution's members and other's (transitive) members, so
// that this solution's own VSet absorbs everything they reach through this
// solution's propagation map and those of every chained solution. Used to fork a large pre-solved baseline into many
// per-query variants cheaply (spec.md §4.C.2, "Chaining").
func (ps *PartialSolution) MergeIn(other *PartialSolution) {
	seeds := other.AllMembers()
	ps.chain = append(ps.chain, other)

	worklist := make([]lattice.ID, 0, len(seeds))
	for _, x := range ps.vset.AppendTo(nil) {
		worklist = append(worklist, lattice.ID(x))
	}
	for _, id := range seeds {
		if ps.vset.Insert(int(id)) {
			worklist = append(worklist, id)
		}
	}
	ps.propagate(worklist)
}
