package generator

import (
	"log"

	"github.com/funvibe/infoflow/internal/config"
	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/kit"
	"github.com/funvibe/infoflow/internal/lattice"
	"github.com/funvibe/infoflow/internal/signatures"
)

// Generator lowers function bodies into constraints. One Generator is
// shared across every analysis unit the driver visits; it owns no
// per-unit state beyond the shared algebra/pool/store.
type Generator struct {
	algebra *lattice.Algebra
	store   *constraints.Store
	pool    *Pool

	points    ir.PointsTo
	callgraph ir.CallGraph
	postdom   ir.PostDominators
	sigs      *signatures.Registry
	sinks     SinkSet
	witness   *WitnessLog

	flags  config.Flags
	logger *log.Logger
}

// New constructs a Generator. logger defaults to log.Default() if nil.
func New(algebra *lattice.Algebra, store *constraints.Store, pool *Pool, points ir.PointsTo, callgraph ir.CallGraph, postdom ir.PostDominators, sigs *signatures.Registry, sinks SinkSet, flags config.Flags, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{
		algebra: algebra, store: store, pool: pool,
		points: points, callgraph: callgraph, postdom: postdom,
		sigs: sigs, sinks: sinks, flags: flags, logger: logger,
	}
}

// WithWitness attaches a WitnessLog that records which FlowRecord produced
// each constraint, for internal/slicing.Explain. Returns g for chaining.
func (g *Generator) WithWitness(w *WitnessLog) *Generator {
	g.witness = w
	return g
}

// Witness returns the generator's witness log, if any.
func (g *Generator) Witness() *WitnessLog { return g.witness }

// GenerateFunction emits every flow record a function body induces in the
// given context, lowering each into constraints. an supplies the
// interprocedural callbacks for call sites.
func (g *Generator) GenerateFunction(unit Unit, an Analyzer) {
	fn := unit.Fn
	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			g.generateInstruction(unit, b, instr, an)
		}
	}
}

func (g *Generator) generateInstruction(unit Unit, b *ir.Block, instr *ir.Instruction, an Analyzer) {
	switch instr.Op {
	case ir.OpCall, ir.OpInvoke, ir.OpIntrinsic:
		for _, rec := range g.callRecords(unit, instr, an) {
			g.emit(rec, unit.Ctx)
		}
		if instr.Op != ir.OpInvoke {
			return
		}
		fallthrough
	case ir.OpBranch, ir.OpSwitch, ir.OpIndirectBr:
		if instr.CondOrAddr == nil || len(instr.Successors) == 0 {
			return
		}
		sinkPCs := g.controlDependenceSinks(unit.Fn, b, instr.Successors)
		if len(sinkPCs) == 0 {
			return
		}
		sinks := make([]signatures.Channel, len(sinkPCs))
		for i, pc := range sinkPCs {
			sinks[i] = signatures.ValueChan(pc)
		}
		g.emit(signatures.FlowRecord{
			Implicit: true,
			Sources: []signatures.Channel{
				signatures.ValueChan(b.PC),
				signatures.ValueChan(*instr.CondOrAddr),
			},
			Sinks: sinks,
		}, unit.Ctx)

	default:
		for _, rec := range g.instructionRecords(unit.Fn, instr) {
			g.emit(rec, unit.Ctx)
		}
	}
}

// Seed lowers the module-level source/sink identification service's global
// FlowRecord (spec.md §6), using the given default context for every
// channel: each source channel is constrained to H in "default", and the
// record's source-to-sink flows are emitted like any other record.
func (g *Generator) Seed(global signatures.FlowRecord, ctx ir.ContextID) {
	for _, ch := range global.Sources {
		if el := g.pool.channelElement(ch, ctx, g.points); el != nil {
			g.addTo(constraints.KindDefault, lattice.High(), el, global)
		}
	}
	rec := global
	rec.SourceCtx, rec.SinkCtx = ctx, ctx
	g.emit(rec, ctx)
}

// emit lowers one FlowRecord into constraints, applying drop_at_sinks
// (spec.md §4.E.3) and the sink-kind partitioning.
func (g *Generator) emit(rec signatures.FlowRecord, defaultCtx ir.ContextID) {
	if rec.Empty() {
		return
	}
	srcCtx, sinkCtx := rec.SourceCtx, rec.SinkCtx
	if srcCtx == 0 && sinkCtx == 0 {
		srcCtx, sinkCtx = defaultCtx, defaultCtx
	}

	var normal, droppedAtSink []lattice.Element
	for _, ch := range rec.Sources {
		el := g.pool.channelElement(ch, srcCtx, g.points)
		if el == nil {
			// Missing entity: an empty points-to set for this channel.
			// Spec.md §7 calls this a tolerated degradation.
			continue
		}
		if g.flags.DropAtSinks && g.sinks.IsSinkChannel(ch) {
			droppedAtSink = append(droppedAtSink, el)
		} else {
			normal = append(normal, el)
		}
	}

	var src, srcSink lattice.Element
	if len(normal) > 0 {
		src = g.algebra.JoinMany(normal)
	}
	if len(droppedAtSink) > 0 {
		srcSink = g.algebra.JoinMany(droppedAtSink)
	}

	for _, ch := range rec.Sinks {
		sv := g.pool.channelElement(ch, sinkCtx, g.points)
		if sv == nil {
			continue
		}
		isSink := g.sinks.IsSinkChannel(ch)

		if src != nil {
			g.addTo(constraintKind(rec.Implicit, false), src, sv, rec)
			if isSink {
				g.addTo(constraintKind(rec.Implicit, true), src, sv, rec)
			}
		}
		if srcSink != nil {
			g.addTo(constraintKind(rec.Implicit, true), srcSink, sv, rec)
		}
	}
}

// addTo expands a possibly-Join rhs into one constraint per member, since
// the store's contract forbids a Join as rhs, and notes each resulting
// target variable in the witness log.
func (g *Generator) addTo(kind string, lhs, rhs lattice.Element, rec signatures.FlowRecord) {
	j, ok := rhs.(*lattice.Join)
	if !ok {
		g.store.Add(kind, lhs, rhs)
		if v, ok := rhs.(*lattice.Var); ok {
			g.witness.note(v.ID(), rec)
		}
		return
	}
	for _, m := range j.Members() {
		g.store.Add(kind, lhs, m)
		if v, ok := m.(*lattice.Var); ok {
			g.witness.note(v.ID(), rec)
		}
	}
}

// unsupportedOpcode is called by callers that enumerate the IR's closed
// opcode set exhaustively and hit a value outside it (spec.md §7:
// "Unsupported instruction (fatal)").
func unsupportedOpcode(op ir.Opcode) {
	kit.Fatalf(kit.ErrUnsupportedInstruction, "opcode %s", op)
}
