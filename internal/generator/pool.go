// Package generator lowers a function body, analyzed in one calling
// context, into lattice constraints: the per-instruction flow rules of
// spec.md §4.E.4, call handling (§4.E.5), and the drop_at_sinks kind
// partitioning of §4.E.3.
package generator

import (
	"fmt"

	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/lattice"
	"github.com/funvibe/infoflow/internal/signatures"
)

type valueKey struct {
	v   ir.Value
	ctx ir.ContextID
}

type locKey struct {
	loc ir.AbstractLoc
	ctx ir.ContextID
}

type fnKey struct {
	fn  *ir.Function
	ctx ir.ContextID
}

// Pool owns the constraint variables the analysis assigns to every SSA
// value, abstract location, and function varargs structure, each keyed by
// the calling context it was observed in (spec.md §4.E.2). It is the "maps
// from values/locations/functions to constraint variables" spec.md §4.E.7's
// InfoflowSolution bundles.
type Pool struct {
	algebra *lattice.Algebra

	values  map[valueKey]*lattice.Var
	direct  map[locKey]*lattice.Var
	reach   map[locKey]*lattice.Var
	varargs map[fnKey]*lattice.Var
}

// NewPool constructs an empty variable pool over algebra.
func NewPool(algebra *lattice.Algebra) *Pool {
	return &Pool{
		algebra: algebra,
		values:  make(map[valueKey]*lattice.Var),
		direct:  make(map[locKey]*lattice.Var),
		reach:   make(map[locKey]*lattice.Var),
		varargs: make(map[fnKey]*lattice.Var),
	}
}

// LookupValue returns v's summary variable in ctx without minting one, so
// callers can distinguish "never generated a constraint about this value"
// from "generated one and it happens to still be L" (spec.md §4.E.7's
// "policy on unmapped values").
func (p *Pool) LookupValue(v ir.Value, ctx ir.ContextID) (*lattice.Var, bool) {
	vr, ok := p.values[valueKey{v, ctx}]
	return vr, ok
}

// LookupDirect is LookupValue's counterpart for the direct-ptr pool.
func (p *Pool) LookupDirect(loc ir.AbstractLoc, ctx ir.ContextID) (*lattice.Var, bool) {
	vr, ok := p.direct[locKey{loc, ctx}]
	return vr, ok
}

// LookupReach is LookupValue's counterpart for the reachable-ptr pool.
func (p *Pool) LookupReach(loc ir.AbstractLoc, ctx ir.ContextID) (*lattice.Var, bool) {
	vr, ok := p.reach[locKey{loc, ctx}]
	return vr, ok
}

// LookupVarargs is LookupValue's counterpart for the varargs pool.
func (p *Pool) LookupVarargs(fn *ir.Function, ctx ir.ContextID) (*lattice.Var, bool) {
	vr, ok := p.varargs[fnKey{fn, ctx}]
	return vr, ok
}

// Value returns the summary variable for v in ctx, minting one on first use.
func (p *Pool) Value(v ir.Value, ctx ir.ContextID) *lattice.Var {
	k := valueKey{v, ctx}
	if vr, ok := p.values[k]; ok {
		return vr
	}
	vr := p.algebra.NewVar(fmt.Sprintf("%s@%d", v.Name, ctx))
	p.values[k] = vr
	return vr
}

// Direct returns the direct-points-to variable for loc in ctx.
func (p *Pool) Direct(loc ir.AbstractLoc, ctx ir.ContextID) *lattice.Var {
	k := locKey{loc, ctx}
	if vr, ok := p.direct[k]; ok {
		return vr
	}
	vr := p.algebra.NewVar(fmt.Sprintf("direct@%d", ctx))
	p.direct[k] = vr
	return vr
}

// Reach returns the reachable-points-to variable for loc in ctx.
func (p *Pool) Reach(loc ir.AbstractLoc, ctx ir.ContextID) *lattice.Var {
	k := locKey{loc, ctx}
	if vr, ok := p.reach[k]; ok {
		return vr
	}
	vr := p.algebra.NewVar(fmt.Sprintf("reach@%d", ctx))
	p.reach[k] = vr
	return vr
}

// Varargs returns fn's varargs-structure variable in ctx.
func (p *Pool) Varargs(fn *ir.Function, ctx ir.ContextID) *lattice.Var {
	k := fnKey{fn, ctx}
	if vr, ok := p.varargs[k]; ok {
		return vr
	}
	vr := p.algebra.NewVar(fmt.Sprintf("%s.varargs@%d", fn.Name, ctx))
	p.varargs[k] = vr
	return vr
}

// directSetElement returns the ⊔ of Direct(loc) over every loc in locs, or
// nil if locs is empty (spec.md §7's "Missing entity (degradation)":
// a value's points-to set can be empty and should silently contribute
// nothing).
func (p *Pool) directSetElement(locs ir.LocSet, ctx ir.ContextID) lattice.Element {
	return p.locSetElement(locs, ctx, p.Direct)
}

func (p *Pool) reachSetElement(locs ir.LocSet, ctx ir.ContextID) lattice.Element {
	return p.locSetElement(locs, ctx, p.Reach)
}

func (p *Pool) locSetElement(locs ir.LocSet, ctx ir.ContextID, pick func(ir.AbstractLoc, ir.ContextID) *lattice.Var) lattice.Element {
	if len(locs) == 0 {
		return nil
	}
	elems := make([]lattice.Element, 0, len(locs))
	for loc := range locs {
		elems = append(elems, pick(loc, ctx))
	}
	if len(elems) == 1 {
		return elems[0]
	}
	return p.algebra.JoinMany(elems)
}

// channelElement resolves one signatures.Channel into the element (Value,
// DirectPtr-set, ReachablePtr-set, or Varg variable) a flow record's source
// or sink channel denotes.
func (p *Pool) channelElement(ch signatures.Channel, ctx ir.ContextID, pts ir.PointsTo) lattice.Element {
	switch ch.Kind {
	case signatures.ChanValue:
		return p.Value(ch.Val, ctx)
	case signatures.ChanDirectPtr:
		if pts == nil {
			return nil
		}
		return p.directSetElement(pts.Direct(ch.Val), ctx)
	case signatures.ChanReachablePtr:
		if pts == nil {
			return nil
		}
		return p.reachSetElement(pts.Reach(ch.Val), ctx)
	case signatures.ChanVarg:
		return p.Varargs(ch.Fn, ctx)
	default:
		return nil
	}
}

// constraintKind picks the store kind a flow record's constraints belong
// in, per spec.md §4.E.3's "(implicit?, sink?)" rule.
func constraintKind(implicit, sink bool) string {
	switch {
	case implicit && sink:
		return constraints.KindImplicitSinks
	case implicit:
		return constraints.KindImplicit
	case sink:
		return constraints.KindDefaultSinks
	default:
		return constraints.KindDefault
	}
}
