package driver

import (
	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/kit"
	"github.com/funvibe/infoflow/internal/lattice"
)

// assertTaintableKind enforces spec.md §4.E.6's "adding to 'default' or
// 'implicit' is forbidden" rule for the public taint/untaint API.
func assertTaintableKind(kind string) {
	if kind == constraints.KindDefault || kind == constraints.KindImplicit {
		kit.Fatalf(kit.ErrKindLocked, "set_tainted/set_untainted may not target reserved kind %q", kind)
	}
}

// SetTainted constrains H ⊑ summary_source_var(value) in kind: value is
// declared a source.
func (d *Driver) SetTainted(kind string, v ir.Value, ctx ir.ContextID) {
	assertTaintableKind(kind)
	d.store.Add(kind, lattice.High(), d.pool.Value(v, ctx))
}

// SetUntainted constrains summary_sink_var(value) ⊑ L in kind: value is
// declared a sink that must not be reached.
func (d *Driver) SetUntainted(kind string, v ir.Value, ctx ir.ContextID) {
	assertTaintableKind(kind)
	d.store.Add(kind, d.pool.Value(v, ctx), lattice.Low())
}

// SetDirectPtrTainted/SetDirectPtrUntainted target the direct-points-to
// variable pool instead of the plain value pool.
func (d *Driver) SetDirectPtrTainted(kind string, loc ir.AbstractLoc, ctx ir.ContextID) {
	assertTaintableKind(kind)
	d.store.Add(kind, lattice.High(), d.pool.Direct(loc, ctx))
}

func (d *Driver) SetDirectPtrUntainted(kind string, loc ir.AbstractLoc, ctx ir.ContextID) {
	assertTaintableKind(kind)
	d.store.Add(kind, d.pool.Direct(loc, ctx), lattice.Low())
}

// SetReachPtrTainted/SetReachPtrUntainted target the reachable-points-to
// variable pool.
func (d *Driver) SetReachPtrTainted(kind string, loc ir.AbstractLoc, ctx ir.ContextID) {
	assertTaintableKind(kind)
	d.store.Add(kind, lattice.High(), d.pool.Reach(loc, ctx))
}

func (d *Driver) SetReachPtrUntainted(kind string, loc ir.AbstractLoc, ctx ir.ContextID) {
	assertTaintableKind(kind)
	d.store.Add(kind, d.pool.Reach(loc, ctx), lattice.Low())
}

// SetVargTainted/SetVargUntainted target a function's varargs variable.
func (d *Driver) SetVargTainted(kind string, fn *ir.Function, ctx ir.ContextID) {
	assertTaintableKind(kind)
	d.store.Add(kind, lattice.High(), d.pool.Varargs(fn, ctx))
}

func (d *Driver) SetVargUntainted(kind string, fn *ir.Function, ctx ir.ContextID) {
	assertTaintableKind(kind)
	d.store.Add(kind, d.pool.Varargs(fn, ctx), lattice.Low())
}
