// Package driver runs the context-sensitive interprocedural worklist of
// spec.md §4.E.1 over a module: it schedules (function, context) analysis
// units, feeds each one to internal/generator exactly once, and performs the
// second pass over unreached-but-defined functions. Cross-caller convergence
// is not done by re-visiting a unit when a new caller shows up: GenerateFunction
// emits the same constraints for (fn, ctx) regardless of how many callers
// request it, and internal/solver's global fixpoint over the accumulated
// constraint store is what actually joins every caller's contribution.
package driver

import (
	"log"

	"github.com/funvibe/infoflow/internal/config"
	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/generator"
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/lattice"
	"github.com/funvibe/infoflow/internal/signatures"

	"github.com/google/uuid"
)

// Stats is a snapshot of one Run's bookkeeping: explicit/implicit
// constraint counts per kind and the number of analysis units visited.
type Stats struct {
	RunID     string
	Units     int
	KindStats map[string]constraints.KindStats
}

// unitState tracks one (function, context) analysis unit's scheduling
// state: whether it has run yet.
type unitState struct {
	analyzed bool
}

// Driver owns the module, the shared algebra/store/pool, the context
// manager, and the worklist scheduling state for one analysis run.
type Driver struct {
	module *ir.Module
	flags  config.Flags
	logger *log.Logger

	algebra *lattice.Algebra
	store   *constraints.Store
	pool    *generator.Pool
	gen     *generator.Generator
	points  ir.PointsTo

	callerCtx   *ContextManager
	indirectCtx *ContextManager

	units map[generator.Unit]*unitState
	queue []generator.Unit

	runID string
}

// New constructs a Driver. logger defaults to log.Default() if nil.
func New(module *ir.Module, points ir.PointsTo, callgraph ir.CallGraph, postdom ir.PostDominators, sigs *signatures.Registry, sinks generator.SinkSet, flags config.Flags, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.Default()
	}
	algebra := lattice.NewAlgebra()
	store := constraints.New(algebra)
	pool := generator.NewPool(algebra)
	gen := generator.New(algebra, store, pool, points, callgraph, postdom, sigs, sinks, flags, logger).
		WithWitness(generator.NewWitnessLog())

	return &Driver{
		module:      module,
		flags:       flags,
		logger:      logger,
		algebra:     algebra,
		store:       store,
		pool:        pool,
		gen:         gen,
		points:      points,
		callerCtx:   NewContextManager(CallerContext),
		indirectCtx: NewContextManager(CallSiteContext),
		units:       make(map[generator.Unit]*unitState),
		runID:       uuid.New().String(),
	}
}

// Algebra returns the shared expression algebra.
func (d *Driver) Algebra() *lattice.Algebra { return d.algebra }

// Store returns the shared constraint store.
func (d *Driver) Store() *constraints.Store { return d.store }

// Pool returns the shared variable pool.
func (d *Driver) Pool() *generator.Pool { return d.pool }

// Points returns the points-to provider the driver was constructed with,
// which may be nil.
func (d *Driver) Points() ir.PointsTo { return d.points }

// Flags returns the configuration flags this driver was constructed with.
func (d *Driver) Flags() config.Flags { return d.flags }

// Witness returns the generator's witness log, used by
// internal/slicing.Explain.
func (d *Driver) Witness() *generator.WitnessLog { return d.gen.Witness() }

// ContextFor implements generator.Analyzer: it computes the context a
// callee is analyzed in for a call from callerCtx, applying
// collapse_external_context / collapse_indirect_context (spec.md §6, §4.E.2).
func (d *Driver) ContextFor(callerCtx ir.ContextID, site ir.CallSite, indirect bool) ir.ContextID {
	if indirect {
		return d.indirectCtx.UpdateIndirectContext(callerCtx, site, d.flags.CollapseIndirectContext)
	}
	if site.Instr != nil && site.Instr.ExternName != "" {
		if d.flags.CollapseExternalContext {
			return ir.ContextDefault
		}
	}
	return d.callerCtx.UpdateContext(callerCtx, site)
}

// Request implements generator.Analyzer: it enqueues (callee, ctx) the
// first time it is requested by any caller. from is unused beyond that:
// GenerateFunction's output for a unit never depends on which caller asked
// for it, so a unit is visited at most once per Run.
func (d *Driver) Request(callee *ir.Function, ctx ir.ContextID, from generator.Unit) {
	if callee == nil {
		return
	}
	u := generator.Unit{Fn: callee, Ctx: ctx}
	if _, ok := d.units[u]; !ok {
		d.units[u] = &unitState{}
		d.queue = append(d.queue, u)
	}
}

// Run drives the worklist to completion: seeds the initial units, drains
// the queue until every requested unit has been visited once, then performs
// the second pass over every defined-but-unreached function.
func (d *Driver) Run(global signatures.FlowRecord) Stats {
	d.seed(global)

	for len(d.queue) > 0 {
		u := d.queue[0]
		d.queue = d.queue[1:]
		d.visit(u)
	}

	d.secondPass()

	return d.snapshot()
}

func (d *Driver) seed(global signatures.FlowRecord) {
	d.gen.Seed(global, ir.ContextDefault)

	if main, ok := d.module.Main(); ok {
		d.Request(main, ir.ContextDefault, generator.Unit{})
		return
	}
	for _, fn := range d.module.Functions {
		if !fn.External {
			d.Request(fn, ir.ContextDefault, generator.Unit{})
		}
	}
}

func (d *Driver) visit(u generator.Unit) {
	st := d.units[u]
	if st == nil {
		st = &unitState{}
		d.units[u] = st
	}
	st.analyzed = true

	if u.Fn.External {
		return
	}
	d.gen.GenerateFunction(u, d)
}

// secondPass enqueues and drains every defined function that was never
// analyzed in any context, per spec.md §4.E.1's "ensures unreachable-but-
// defined functions are still constrained".
func (d *Driver) secondPass() {
	for _, fn := range d.module.Functions {
		if fn.External {
			continue
		}
		seen := false
		for u, st := range d.units {
			if u.Fn == fn && st.analyzed {
				seen = true
				break
			}
		}
		if !seen {
			d.Request(fn, ir.ContextDefault, generator.Unit{})
		}
	}
	for len(d.queue) > 0 {
		u := d.queue[0]
		d.queue = d.queue[1:]
		d.visit(u)
	}
}

func (d *Driver) snapshot() Stats {
	kinds := make(map[string]constraints.KindStats, len(d.store.Kinds()))
	for _, k := range d.store.Kinds() {
		kinds[k] = d.store.Stats(k)
	}
	return Stats{
		RunID:     d.runID,
		Units:     len(d.units),
		KindStats: kinds,
	}
}
