package slicing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/driver"
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/lattice"
	"github.com/funvibe/infoflow/internal/signatures"
	"github.com/funvibe/infoflow/internal/solver"
)

// MultiSlice varies only the source across many queries against a shared
// sink set: one source kind per candidate, solved together by the bulk
// parallel solver (spec.md §4.E.8, §4.C.3).
type MultiSlice struct {
	d         *driver.Driver
	engine    *solver.Engine
	forwards  []*solver.PartialSolution
	backward  solver.Solution
	sources   []signatures.Channel
	kindNames []string
}

// BuildMulti seeds one uniquely-numbered source kind per candidate in
// sources, seeds a shared sink kind from sinks, and solves both via
// engine, merging the sink kind's greatest solution against the
// whole-program default/implicit one as Build does. engine must already have the "default" (whole-program) least
// baseline cached — e.g. via a prior engine.PartialSolutionFor(KindDefault,
// solver.Least) call after the driver's Run.
func BuildMulti(ctx context.Context, d *driver.Driver, engine *solver.Engine, sources, sinks []signatures.Channel, ctxID ir.ContextID) (*MultiSlice, error) {
	sinkKind := "multislice-sinks-" + uuid.New().String()
	seedChannels(d, sinks, ctxID, sinkKind, false)
	backward := engine.PartialSolutionFor(sinkKind, solver.Greatest).Copy()
	backward.MergeIn(engine.GreatestSolution([]string{constraints.KindDefault, constraints.KindImplicit}))

	kindNames := make([]string, len(sources))
	for i, ch := range sources {
		k := "source-" + uuid.New().String()
		kindNames[i] = k
		seedChannels(d, []signatures.Channel{ch}, ctxID, k, true)
	}

	forwards, err := engine.SolveLeastMT(ctx, kindNames, false)
	if err != nil {
		return nil, fmt.Errorf("slicing: multislice bulk solve: %w", err)
	}

	return &MultiSlice{
		d: d, engine: engine, forwards: forwards,
		backward: backward, sources: sources, kindNames: kindNames,
	}, nil
}

// InSlice reports whether v (in ctx) is in the slice rooted at the
// sourceIdx'th candidate source.
func (m *MultiSlice) InSlice(sourceIdx int, v ir.Value, ctx ir.ContextID) bool {
	pool := m.d.Pool()
	fwd := m.forwards[sourceIdx].Value(pool.Value(v, ctx)) == lattice.H
	bwd := m.backward.Value(pool.Value(v, ctx)) == lattice.H
	return fwd && !bwd
}

// Sources returns the candidate source channels, in the order their
// indices are addressed by InSlice/Explain.
func (m *MultiSlice) Sources() []signatures.Channel {
	return append([]signatures.Channel(nil), m.sources...)
}

// Explain walks the generator's witness log backward from v, breadth-first
// through the ChanValue sources of each record found, for at most 64 levels
// (spec.md §5's supplemented MultiSlice.Explain). It returns every record
// met on the way, those found further from v first. sourceIdx is not
// consulted: the result is not restricted to the path from that source,
// and it is not a minimal chain.
func (m *MultiSlice) Explain(sourceIdx int, v ir.Value, ctx ir.ContextID) []signatures.FlowRecord {
	w := m.d.Witness()
	if w == nil {
		return nil
	}
	pool := m.d.Pool()

	var chain []signatures.FlowRecord
	seen := make(map[ir.Value]bool)
	frontier := []ir.Value{v}
	const maxDepth = 64

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []ir.Value
		for _, val := range frontier {
			vr, ok := pool.LookupValue(val, ctx)
			if !ok {
				continue
			}
			recs := w.For(vr.ID())
			for _, rec := range recs {
				chain = append([]signatures.FlowRecord{rec}, chain...)
				for _, ch := range rec.Sources {
					if ch.Kind == signatures.ChanValue && !seen[ch.Val] {
						seen[ch.Val] = true
						next = append(next, ch.Val)
					}
				}
			}
		}
		frontier = next
	}
	return chain
}
