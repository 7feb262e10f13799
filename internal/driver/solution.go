package driver

import (
	"github.com/funvibe/infoflow/internal/generator"
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/lattice"
	"github.com/funvibe/infoflow/internal/solver"
)

// InfoflowSolution bundles a solved solver.Solution with the variable
// pool needed to translate values/locations/functions into the variables
// that solution assigns levels to (spec.md §4.E.7). DefaultTainted governs
// the policy for values never seen by the pool: spec.md calls this
// "unmapped values... return defaultTainted".
type InfoflowSolution struct {
	sol            solver.Solution
	pool           *generator.Pool
	points         ir.PointsTo
	defaultTainted bool
}

// NewInfoflowSolution wraps sol with pool and points for query translation.
// defaultTainted is returned for any value/location/function this pool has
// never minted a variable for.
func NewInfoflowSolution(sol solver.Solution, pool *generator.Pool, points ir.PointsTo, defaultTainted bool) *InfoflowSolution {
	return &InfoflowSolution{sol: sol, pool: pool, points: points, defaultTainted: defaultTainted}
}

// IsTainted reports whether v's summary variable is H in ctx, falling back
// to the unmapped-value policy if v was never assigned a variable.
func (s *InfoflowSolution) IsTainted(v ir.Value, ctx ir.ContextID) bool {
	vr, ok := s.pool.LookupValue(v, ctx)
	if !ok {
		return s.defaultTainted
	}
	return s.sol.Value(vr) == lattice.H
}

// IsDirectPtrTainted reports whether any abstract location in v's direct
// points-to set evaluates to H.
func (s *InfoflowSolution) IsDirectPtrTainted(v ir.Value, ctx ir.ContextID) bool {
	if s.points == nil {
		return s.defaultTainted
	}
	locs := s.points.Direct(v)
	if len(locs) == 0 {
		return s.defaultTainted
	}
	for loc := range locs {
		vr, ok := s.pool.LookupDirect(loc, ctx)
		if ok && s.sol.Value(vr) == lattice.H {
			return true
		}
	}
	return false
}

// IsReachPtrTainted reports whether any abstract location in v's reachable
// points-to set evaluates to H.
func (s *InfoflowSolution) IsReachPtrTainted(v ir.Value, ctx ir.ContextID) bool {
	if s.points == nil {
		return s.defaultTainted
	}
	locs := s.points.Reach(v)
	if len(locs) == 0 {
		return s.defaultTainted
	}
	for loc := range locs {
		vr, ok := s.pool.LookupReach(loc, ctx)
		if ok && s.sol.Value(vr) == lattice.H {
			return true
		}
	}
	return false
}

// IsVargTainted reports whether fn's varargs variable is H in ctx.
func (s *InfoflowSolution) IsVargTainted(fn *ir.Function, ctx ir.ContextID) bool {
	vr, ok := s.pool.LookupVarargs(fn, ctx)
	if !ok {
		return s.defaultTainted
	}
	return s.sol.Value(vr) == lattice.H
}
