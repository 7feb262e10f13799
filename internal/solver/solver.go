// Package solver computes least and greatest fixed points over constraint
// kinds: a classical worklist solver (spec.md §4.C.1), a compact chainable
// "partial solution" propagation solver used for the parallel bulk mode
// (§4.C.2), and the bulk/combined entry points (§4.C.3, §4.C.4).
package solver

import (
	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/kit"
	"github.com/funvibe/infoflow/internal/lattice"
)

// Sign selects which fixed point is being computed.
type Sign int

const (
	// Least computes the least fixed point: unconstrained variables default
	// to L, lifted to H only when evidence forces it.
	Least Sign = iota
	// Greatest computes the greatest fixed point: unconstrained variables
	// default to H, lowered to L only when evidence forces it.
	Greatest
)

func (s Sign) String() string {
	if s == Greatest {
		return "greatest"
	}
	return "least"
}

func (s Sign) defaultLevel() lattice.Level {
	if s == Greatest {
		return lattice.H
	}
	return lattice.L
}

func (s Sign) changedLevel() lattice.Level {
	if s == Greatest {
		return lattice.L
	}
	return lattice.H
}

// Solution is the common query surface of both solver shapes.
type Solution interface {
	// Value returns the level this solution assigns to v.
	Value(v *lattice.Var) lattice.Level
	// Eval substitutes through an arbitrary element (recursing through
	// joins), per spec.md §4.C.1 step 3.
	Eval(e lattice.Element) lattice.Level
}

// varsIn collects the distinct *Var leaves reachable from e, recursing
// through Joins. Const elements contribute nothing.
func varsIn(e lattice.Element) []*lattice.Var {
	var out []*lattice.Var
	var walk func(lattice.Element)
	seen := make(map[*lattice.Var]bool)
	walk = func(e lattice.Element) {
		switch t := e.(type) {
		case *lattice.Var:
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		case *lattice.Join:
			for _, m := range t.Members() {
				walk(m)
			}
		}
	}
	walk(e)
	return out
}

// singleVar returns e as a *Var if it is exactly one, else nil. Used for
// the rhs side, which per the constraint-store contract is never a Join.
func singleVar(e lattice.Element) *lattice.Var {
	if v, ok := e.(*lattice.Var); ok {
		return v
	}
	return nil
}

func fatalf(format string, args ...interface{}) {
	kit.Fatalf(kit.ErrUnknownKind, format, args...)
}
