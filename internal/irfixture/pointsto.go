// Package irfixture provides trivial, in-memory implementations of the
// three external-collaborator contracts spec.md §6 declares but deliberately
// leaves unimplemented (points-to, call graph, post-dominators), plus a
// compact binary decoder for serialized test modules. None of this is meant
// to be a real points-to/call-graph/post-dominator analysis: it exists so
// internal/driver and internal/generator have something concrete to run
// against in tests and in small standalone analyses.
package irfixture

import "github.com/funvibe/infoflow/internal/ir"

// PointsTo is a map-backed ir.PointsTo: every value's direct/reachable set
// is whatever was registered for it, defaulting to empty.
type PointsTo struct {
	direct map[ir.Value]ir.LocSet
	reach  map[ir.Value]ir.LocSet
}

// NewPointsTo constructs an empty PointsTo.
func NewPointsTo() *PointsTo {
	return &PointsTo{direct: make(map[ir.Value]ir.LocSet), reach: make(map[ir.Value]ir.LocSet)}
}

// SetDirect registers v's direct points-to set.
func (p *PointsTo) SetDirect(v ir.Value, locs ir.LocSet) { p.direct[v] = locs }

// SetReach registers v's reachable points-to set.
func (p *PointsTo) SetReach(v ir.Value, locs ir.LocSet) { p.reach[v] = locs }

// Direct implements ir.PointsTo.
func (p *PointsTo) Direct(v ir.Value) ir.LocSet { return p.direct[v] }

// Reach implements ir.PointsTo.
func (p *PointsTo) Reach(v ir.Value) ir.LocSet { return p.reach[v] }
