// Package slicing builds value-level slices from a single FlowRecord
// (spec.md §4.E.8): Slice seeds source/sink constraints and solves the
// forward (least, from source) and backward (greatest, from sink)
// solutions; MultiSlice varies only the source across many queries via the
// bulk parallel solver.
package slicing

import (
	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/driver"
	"github.com/funvibe/infoflow/internal/generator"
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/lattice"
	"github.com/funvibe/infoflow/internal/signatures"
	"github.com/funvibe/infoflow/internal/solver"
)

// Slice answers "is v in the slice from record.Sources to record.Sinks":
// true iff v is tainted forward (reachable from a source) and not tainted
// backward (reaches a sink, so the greatest solution forces it to L) —
// spec.md §4.E.8's
// `forward ∧ ¬backward`.
type Slice struct {
	forward  solver.Solution
	backward solver.Solution
	pool     *generator.Pool
	points   ir.PointsTo
	record   signatures.FlowRecord
}

// Build seeds sourceKind/sinkKind from record's channels and solves both
// directions, merging each against the whole-program default/implicit
// solution engine already holds (or builds and caches now): a seed alone
// only ever proves the seeded value itself tainted or untainted, so the
// forward/backward solutions have to absorb the program's own flow edges —
// which live in KindDefault/KindImplicit, not in the fresh per-query
// kind — to reach anything beyond the seed. engine also owns the "lock a
// kind once" bookkeeping, so sourceKind/sinkKind/KindDefault/KindImplicit
// are never locked outside of it. sourceKind and sinkKind must not be the
// reserved kinds.
func Build(d *driver.Driver, engine *solver.Engine, record signatures.FlowRecord, sourceKind, sinkKind string, ctx ir.ContextID) *Slice {
	seedChannels(d, record.Sources, ctx, sourceKind, true)
	seedChannels(d, record.Sinks, ctx, sinkKind, false)

	forward := engine.PartialSolutionFor(sourceKind, solver.Least).Copy()
	forward.MergeIn(engine.LeastSolution([]string{constraints.KindDefault, constraints.KindImplicit}))

	backward := engine.PartialSolutionFor(sinkKind, solver.Greatest).Copy()
	backward.MergeIn(engine.GreatestSolution([]string{constraints.KindDefault, constraints.KindImplicit}))

	return &Slice{forward: forward, backward: backward, pool: d.Pool(), points: d.Points(), record: record}
}

// InSlice reports whether v (in ctx) belongs to the slice.
func (s *Slice) InSlice(v ir.Value, ctx ir.ContextID) bool {
	fwd := s.forward.Value(s.pool.Value(v, ctx)) == lattice.H
	bwd := s.backward.Value(s.pool.Value(v, ctx)) == lattice.H
	return fwd && !bwd
}

// seedChannels applies set_tainted (tainted=true) or set_untainted
// (tainted=false) for every channel, dispatching by ChannelKind to the
// matching variable pool, per spec.md §4.E.6's "variants for direct-ptr,
// reachable-ptr, and varargs".
func seedChannels(d *driver.Driver, chans []signatures.Channel, ctx ir.ContextID, kind string, tainted bool) {
	for _, ch := range chans {
		switch ch.Kind {
		case signatures.ChanValue:
			if tainted {
				d.SetTainted(kind, ch.Val, ctx)
			} else {
				d.SetUntainted(kind, ch.Val, ctx)
			}
		case signatures.ChanDirectPtr:
			seedLocs(d, d.Points(), ch.Val, ctx, kind, tainted, true)
		case signatures.ChanReachablePtr:
			seedLocs(d, d.Points(), ch.Val, ctx, kind, tainted, false)
		case signatures.ChanVarg:
			if tainted {
				d.SetVargTainted(kind, ch.Fn, ctx)
			} else {
				d.SetVargUntainted(kind, ch.Fn, ctx)
			}
		}
	}
}

func seedLocs(d *driver.Driver, points ir.PointsTo, v ir.Value, ctx ir.ContextID, kind string, tainted, direct bool) {
	if points == nil {
		return
	}
	var locs ir.LocSet
	if direct {
		locs = points.Direct(v)
	} else {
		locs = points.Reach(v)
	}
	for loc := range locs {
		if direct {
			if tainted {
				d.SetDirectPtrTainted(kind, loc, ctx)
			} else {
				d.SetDirectPtrUntainted(kind, loc, ctx)
			}
		} else {
			if tainted {
				d.SetReachPtrTainted(kind, loc, ctx)
			} else {
				d.SetReachPtrUntainted(kind, loc, ctx)
			}
		}
	}
}
