package generator

import (
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/signatures"
)

// Unit identifies one (function, context) analysis unit — the currency the
// driver's worklist operates in (spec.md §4.E.1).
type Unit struct {
	Fn  *ir.Function
	Ctx ir.ContextID
}

// Analyzer is the interprocedural callback surface the generator needs
// while generating one function body: computing the context a callee is
// analyzed in, and recording that the current unit depends on it (so the
// driver enqueues it if it hasn't been seen). The generator reads return
// flows directly off the callee's (static) IR, so Analyzer carries no
// summary data back — see DESIGN.md for why that is sufficient here.
type Analyzer interface {
	ContextFor(callerCtx ir.ContextID, site ir.CallSite, indirect bool) ir.ContextID
	Request(callee *ir.Function, calleeCtx ir.ContextID, from Unit)
}

// callRecords builds every flow record a call or invoke instruction
// induces (spec.md §4.E.5): PC flow, parameter flows, and return flows for
// each defined callee, plus signature-driven flows for external targets.
func (g *Generator) callRecords(unit Unit, instr *ir.Instruction, an Analyzer) []signatures.FlowRecord {
	site := ir.CallSite{Caller: unit.Fn, Instr: instr}

	if instr.Op == ir.OpIntrinsic {
		return g.intrinsicRecords(instr)
	}

	var recs []signatures.FlowRecord

	if !instr.IsIndirect {
		if instr.DirectCallee != nil {
			ctxF := an.ContextFor(unit.Ctx, site, false)
			an.Request(instr.DirectCallee, ctxF, unit)
			recs = append(recs, g.directCallRecords(unit, instr, instr.DirectCallee, ctxF, false)...)
		} else if instr.ExternName != "" {
			recs = append(recs, g.signatureRecords(site, instr.ExternName)...)
		}
		return recs
	}

	// Indirect call: enumerate candidate callees via the call graph.
	if g.callgraph == nil {
		return recs
	}
	for _, edge := range g.callgraph.Callees(site) {
		switch edge.Kind {
		case ir.CalleeDefined:
			if edge.Callee == nil || !arityCompatible(edge.Callee, instr) {
				continue
			}
			ctxF := an.ContextFor(unit.Ctx, site, true)
			an.Request(edge.Callee, ctxF, unit)
			recs = append(recs, g.directCallRecords(unit, instr, edge.Callee, ctxF, true)...)
		case ir.CalleeExternalNode:
			name := edge.ExternSymbol
			if name == "" {
				name = instr.ExternName
			}
			recs = append(recs, g.signatureRecords(site, name)...)
		}
	}
	return recs
}

func arityCompatible(callee *ir.Function, instr *ir.Instruction) bool {
	if callee.IsVarargs {
		return len(instr.Args) >= len(callee.Params)
	}
	return len(instr.Args) == len(callee.Params) || len(instr.Args) > len(callee.Params)
}

// directCallRecords builds the PC-flow, parameter-flow, and return-flow
// records for one defined callee analyzed at ctxF.
func (g *Generator) directCallRecords(unit Unit, instr *ir.Instruction, callee *ir.Function, ctxF ir.ContextID, indirect bool) []signatures.FlowRecord {
	var recs []signatures.FlowRecord

	if callee.Entry != nil && instr.Block != nil {
		pcSrcs := []signatures.Channel{signatures.ValueChan(instr.Block.PC)}
		if indirect && instr.CondOrAddr != nil {
			pcSrcs = append(pcSrcs, signatures.ValueChan(*instr.CondOrAddr))
		}
		recs = append(recs, signatures.FlowRecord{
			SourceCtx: unit.Ctx,
			SinkCtx:   ctxF,
			Implicit:  true,
			Sources:   pcSrcs,
			Sinks:     []signatures.Channel{signatures.ValueChan(callee.Entry.PC)},
		})
	}

	n := len(instr.Args)
	if len(callee.Params) < n {
		n = len(callee.Params)
	}
	for i := 0; i < n; i++ {
		recs = append(recs, signatures.FlowRecord{
			SourceCtx: unit.Ctx,
			SinkCtx:   ctxF,
			Sources:   []signatures.Channel{signatures.ValueChan(instr.Args[i])},
			Sinks:     []signatures.Channel{signatures.ValueChan(callee.Params[i])},
		})
	}
	if len(instr.Args) > len(callee.Params) {
		trailing := make([]signatures.Channel, 0, len(instr.Args)-len(callee.Params))
		for _, a := range instr.Args[len(callee.Params):] {
			trailing = append(trailing, signatures.ValueChan(a))
		}
		recs = append(recs, signatures.FlowRecord{
			SourceCtx: unit.Ctx,
			SinkCtx:   ctxF,
			Sources:   trailing,
			Sinks:     []signatures.Channel{signatures.VargChan(callee)},
		})
	}

	if instr.Result != nil {
		recs = append(recs, signatures.FlowRecord{
			SourceCtx: ctxF,
			SinkCtx:   unit.Ctx,
			Sources:   []signatures.Channel{signatures.ValueChan(callee.ReturnValue)},
			Sinks:     []signatures.Channel{signatures.ValueChan(*instr.Result)},
		})
	}

	return recs
}

// signatureRecords consults the signature registry for a call to an
// external symbol, returning its explicit record and, for OverflowChecks
// matches, the accompanying implicit one.
func (g *Generator) signatureRecords(site ir.CallSite, externName string) []signatures.FlowRecord {
	if g.sigs == nil {
		return nil
	}
	explicit, implicit := g.sigs.Resolve(site, externName)
	recs := []signatures.FlowRecord{explicit}
	if implicit != nil {
		recs = append(recs, *implicit)
	}
	return recs
}

// intrinsicRecords dispatches an OpIntrinsic instruction by name, per
// spec.md §4.E.5.
func (g *Generator) intrinsicRecords(instr *ir.Instruction) []signatures.FlowRecord {
	switch instr.IntrinsicName {
	case "llvm.memcpy", "llvm.memmove":
		return g.memcpyRecords(instr)
	case "llvm.memset":
		return g.memsetRecords(instr)
	case "llvm.vastart", "llvm.vaend", "llvm.vacopy":
		return nil
	case "llvm.sqrt", "llvm.pow", "llvm.sin", "llvm.cos", "llvm.fabs", "llvm.exp", "llvm.log":
		return operandPCToValue(instr)
	default:
		if g.logger != nil {
			g.logger.Printf("debug: generator: unknown intrinsic %q, emitting no constraints", instr.IntrinsicName)
		}
		return nil
	}
}

// memcpyRecords: explicit direct-ptr source at arg 1 -> direct-ptr sink at
// arg 0; implicit sources are args 1, 2 (length), 3 (align), sink the
// destination direct-ptr.
func (g *Generator) memcpyRecords(instr *ir.Instruction) []signatures.FlowRecord {
	if len(instr.Args) < 2 {
		return nil
	}
	dst, src := instr.Args[0], instr.Args[1]
	sink := []signatures.Channel{signatures.DirectPtrChan(dst)}
	recs := []signatures.FlowRecord{
		{Sources: []signatures.Channel{signatures.DirectPtrChan(src)}, Sinks: sink},
	}
	implSrcs := []signatures.Channel{signatures.ValueChan(src)}
	for _, extra := range instr.Args[2:] {
		implSrcs = append(implSrcs, signatures.ValueChan(extra))
	}
	recs = append(recs, signatures.FlowRecord{Implicit: true, Sources: implSrcs, Sinks: sink})
	return recs
}

// memsetRecords: explicit source = value byte; implicit sources = length,
// align; sink = destination direct-ptr.
func (g *Generator) memsetRecords(instr *ir.Instruction) []signatures.FlowRecord {
	if len(instr.Args) < 2 {
		return nil
	}
	dst, val := instr.Args[0], instr.Args[1]
	sink := []signatures.Channel{signatures.DirectPtrChan(dst)}
	recs := []signatures.FlowRecord{
		{Sources: []signatures.Channel{signatures.ValueChan(val)}, Sinks: sink},
	}
	if len(instr.Args) > 2 {
		implSrcs := make([]signatures.Channel, 0, len(instr.Args)-2)
		for _, extra := range instr.Args[2:] {
			implSrcs = append(implSrcs, signatures.ValueChan(extra))
		}
		recs = append(recs, signatures.FlowRecord{Implicit: true, Sources: implSrcs, Sinks: sink})
	}
	return recs
}
