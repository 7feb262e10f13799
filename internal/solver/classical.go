package solver

import (
	"golang.org/x/tools/container/intsets"

	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/lattice"
)

// ClassicalSolution is the worklist solver's result: a set of variable IDs
// holding the non-default level, per spec.md §4.C.1.
type ClassicalSolution struct {
	sign    Sign
	changed intsets.Sparse
}

func (s *ClassicalSolution) isChanged(v *lattice.Var) bool {
	return s.changed.Has(int(v.ID()))
}

// Value implements Solution.
func (s *ClassicalSolution) Value(v *lattice.Var) lattice.Level {
	if s.isChanged(v) {
		return s.sign.changedLevel()
	}
	return s.sign.defaultLevel()
}

// Eval implements Solution.
func (s *ClassicalSolution) Eval(e lattice.Element) lattice.Level {
	return s.eval(e)
}

func (s *ClassicalSolution) eval(e lattice.Element) lattice.Level {
	switch t := e.(type) {
	case lattice.Const:
		return t.Level
	case *lattice.Var:
		return s.Value(t)
	case *lattice.Join:
		lvl := lattice.L
		for _, m := range t.Members() {
			lvl = lattice.JoinLevels(lvl, s.eval(m))
		}
		return lvl
	default:
		fatalf("unknown element type %T", e)
		return lattice.L
	}
}

// SolveWorklist computes the fixed point of cs under sign using the
// classical FIFO-worklist algorithm described in spec.md §4.C.1. Termination
// is guaranteed: the changed set only grows and is bounded by the number of
// variables that appear in cs.
func SolveWorklist(cs []constraints.Constraint, sign Sign) *ClassicalSolution {
	sol := &ClassicalSolution{sign: sign}

	// Step 1: index constraints by the variable(s) whose change could
	// invalidate them. For Least that is every var in lhs (raising a var
	// that appears as an lhs source can newly violate constraints sourced
	// from it); for Greatest, dual, it is every var in rhs.
	index := make(map[lattice.ID][]int)
	for i, c := range cs {
		var keys []*lattice.Var
		if sign == Least {
			keys = varsIn(c.LHS)
		} else if v := singleVar(c.RHS); v != nil {
			keys = []*lattice.Var{v}
		}
		for _, v := range keys {
			index[v.ID()] = append(index[v.ID()], i)
		}
	}

	// Step 2: seed the FIFO with every constraint, deduplicated via a
	// side set so the same index is never queued twice concurrently.
	queue := make([]int, len(cs))
	for i := range cs {
		queue[i] = i
	}
	queued := make(map[int]bool, len(cs))
	for _, i := range queue {
		queued[i] = true
	}

	enqueue := func(i int) {
		if !queued[i] {
			queued[i] = true
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		queued[i] = false

		c := cs[i]
		lv := sol.eval(c.LHS)
		rv := sol.eval(c.RHS)
		if lattice.Leq(lv, rv) {
			continue
		}

		// Step 5 (and its Greatest dual): resolve the violation by moving
		// the movable side to its non-default level.
		if sign == Least {
			if v := singleVar(c.RHS); v != nil && !sol.isChanged(v) {
				sol.changed.Insert(int(v.ID()))
				for _, j := range index[v.ID()] {
					enqueue(j)
				}
			}
		} else {
			for _, v := range varsIn(c.LHS) {
				if sol.isChanged(v) {
					continue
				}
				sol.changed.Insert(int(v.ID()))
				for _, j := range index[v.ID()] {
					enqueue(j)
				}
			}
		}
	}

	return sol
}
