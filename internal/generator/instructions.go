package generator

import (
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/signatures"
)

// instructionRecords builds the flow records spec.md §4.E.4 assigns to a
// single non-call, non-terminator instruction. Calls are handled
// separately (calls.go); Branch/Switch/IndirectBr/Invoke continuations need
// the post-dominator provider and are handled in generateInstruction with
// controlDependenceSinks.
func (g *Generator) instructionRecords(fn *ir.Function, instr *ir.Instruction) []signatures.FlowRecord {
	switch instr.Op {
	case ir.OpBinary, ir.OpCmp, ir.OpCast, ir.OpSelect, ir.OpPHI, ir.OpGetElementPtr,
		ir.OpAlloca, ir.OpInsertElement, ir.OpExtractElement, ir.OpShuffleVector,
		ir.OpInsertValue, ir.OpExtractValue, ir.OpLandingPad, ir.OpResume:
		return operandPCToValue(instr)

	case ir.OpReturn:
		return g.returnRecords(fn, instr)

	case ir.OpLoad:
		return g.loadRecords(instr)
	case ir.OpStore:
		return g.storeRecords(instr)
	case ir.OpAtomicRMW:
		return g.atomicRMWRecords(instr)
	case ir.OpAtomicCmpXchg:
		return g.atomicCmpXchgRecords(instr)
	case ir.OpVAArg:
		return g.vaArgRecords(fn, instr)

	case ir.OpUnreachable, ir.OpFence:
		return nil

	default:
		unsupportedOpcode(instr.Op)
		return nil
	}
}

// operandPCToValue is the general "operand/PC-to-value" rule: an implicit
// record from the enclosing block's PC into the instruction's value, and an
// explicit record from every operand value into it.
func operandPCToValue(instr *ir.Instruction) []signatures.FlowRecord {
	if instr.Result == nil {
		return nil
	}
	sink := []signatures.Channel{signatures.ValueChan(*instr.Result)}

	var recs []signatures.FlowRecord
	if len(instr.Operands) > 0 {
		srcs := make([]signatures.Channel, len(instr.Operands))
		for i, o := range instr.Operands {
			srcs[i] = signatures.ValueChan(o)
		}
		recs = append(recs, signatures.FlowRecord{Sources: srcs, Sinks: sink})
	}
	if instr.Block != nil {
		recs = append(recs, signatures.FlowRecord{
			Implicit: true,
			Sources:  []signatures.Channel{signatures.ValueChan(instr.Block.PC)},
			Sinks:    sink,
		})
	}
	return recs
}

// returnRecords flows a `return r` instruction's operand into the
// function's synthetic ReturnValue, the same operand/PC-to-value shape as
// the general rule but targeting ReturnValue instead of instr.Result (a
// Return instruction never defines one).
func (g *Generator) returnRecords(fn *ir.Function, instr *ir.Instruction) []signatures.FlowRecord {
	if len(instr.Operands) == 0 {
		return nil
	}
	sink := []signatures.Channel{signatures.ValueChan(fn.ReturnValue)}
	recs := []signatures.FlowRecord{{
		Sources: []signatures.Channel{signatures.ValueChan(instr.Operands[0])},
		Sinks:   sink,
	}}
	if instr.Block != nil {
		recs = append(recs, signatures.FlowRecord{
			Implicit: true,
			Sources:  []signatures.Channel{signatures.ValueChan(instr.Block.PC)},
			Sinks:    sink,
		})
	}
	return recs
}

// loadRecords: explicit source = direct-ptr of the pointer operand;
// implicit source = PC + pointer value; sink = the loaded value, in both
// records.
func (g *Generator) loadRecords(instr *ir.Instruction) []signatures.FlowRecord {
	if instr.Result == nil || len(instr.Operands) == 0 {
		return nil
	}
	ptr := instr.Operands[0]
	sink := []signatures.Channel{signatures.ValueChan(*instr.Result)}
	recs := []signatures.FlowRecord{
		{Sources: []signatures.Channel{signatures.DirectPtrChan(ptr)}, Sinks: sink},
	}
	if instr.Block != nil {
		recs = append(recs, signatures.FlowRecord{
			Implicit: true,
			Sources: []signatures.Channel{
				signatures.ValueChan(instr.Block.PC),
				signatures.ValueChan(ptr),
			},
			Sinks: sink,
		})
	}
	return recs
}

// storeRecords: explicit source = value operand; implicit source = PC +
// pointer value; sink (both records) = direct-ptr of the pointer operand.
// A Store has no result.
func (g *Generator) storeRecords(instr *ir.Instruction) []signatures.FlowRecord {
	if len(instr.Operands) < 2 {
		return nil
	}
	ptr, val := instr.Operands[0], instr.Operands[1]
	sink := []signatures.Channel{signatures.DirectPtrChan(ptr)}
	recs := []signatures.FlowRecord{
		{Sources: []signatures.Channel{signatures.ValueChan(val)}, Sinks: sink},
	}
	if instr.Block != nil {
		recs = append(recs, signatures.FlowRecord{
			Implicit: true,
			Sources: []signatures.Channel{
				signatures.ValueChan(instr.Block.PC),
				signatures.ValueChan(ptr),
			},
			Sinks: sink,
		})
	}
	return recs
}

// atomicRMWRecords: one combined implicit record storing PC + pointer +
// value into the direct pointee.
func (g *Generator) atomicRMWRecords(instr *ir.Instruction) []signatures.FlowRecord {
	if len(instr.Operands) < 2 {
		return nil
	}
	ptr, val := instr.Operands[0], instr.Operands[1]
	srcs := []signatures.Channel{signatures.ValueChan(val)}
	if instr.Block != nil {
		srcs = append(srcs, signatures.ValueChan(instr.Block.PC))
	}
	srcs = append(srcs, signatures.ValueChan(ptr))
	return []signatures.FlowRecord{{
		Implicit: true,
		Sources:  srcs,
		Sinks:    []signatures.Channel{signatures.DirectPtrChan(ptr)},
	}}
}

// atomicCmpXchgRecords: the conditional store of `new` (conditioned on PC,
// pointer, cmp, new) into the pointee, and, when there is a result, reading
// memory back into it as an explicit record plus an implicit PC record
// (three records in all).
func (g *Generator) atomicCmpXchgRecords(instr *ir.Instruction) []signatures.FlowRecord {
	if len(instr.Operands) < 3 {
		return nil
	}
	ptr, cmp, newVal := instr.Operands[0], instr.Operands[1], instr.Operands[2]

	storeSrcs := []signatures.Channel{signatures.ValueChan(cmp), signatures.ValueChan(newVal)}
	if instr.Block != nil {
		storeSrcs = append(storeSrcs, signatures.ValueChan(instr.Block.PC))
	}
	storeSrcs = append(storeSrcs, signatures.ValueChan(ptr))

	recs := []signatures.FlowRecord{{
		Implicit: true,
		Sources:  storeSrcs,
		Sinks:    []signatures.Channel{signatures.DirectPtrChan(ptr)},
	}}

	if instr.Result != nil {
		sink := []signatures.Channel{signatures.ValueChan(*instr.Result)}
		recs = append(recs, signatures.FlowRecord{
			Sources: []signatures.Channel{signatures.DirectPtrChan(ptr)},
			Sinks:   sink,
		})
		if instr.Block != nil {
			recs = append(recs, signatures.FlowRecord{
				Implicit: true,
				Sources: []signatures.Channel{
					signatures.ValueChan(instr.Block.PC),
					signatures.ValueChan(ptr),
				},
				Sinks: sink,
			})
		}
	}
	return recs
}

// vaArgRecords: explicit pointer->value and pointer->varargs(fn); implicit
// PC+pointer->value, pointer, and varargs(fn).
func (g *Generator) vaArgRecords(fn *ir.Function, instr *ir.Instruction) []signatures.FlowRecord {
	if len(instr.Operands) == 0 {
		return nil
	}
	ptr := instr.Operands[0]
	var explicitSinks []signatures.Channel
	if instr.Result != nil {
		explicitSinks = append(explicitSinks, signatures.ValueChan(*instr.Result))
	}
	explicitSinks = append(explicitSinks, signatures.VargChan(fn))

	recs := []signatures.FlowRecord{
		{Sources: []signatures.Channel{signatures.ValueChan(ptr)}, Sinks: explicitSinks},
	}
	if instr.Block != nil {
		implicitSinks := append(append([]signatures.Channel(nil), explicitSinks...), signatures.ValueChan(ptr))
		recs = append(recs, signatures.FlowRecord{
			Implicit: true,
			Sources: []signatures.Channel{
				signatures.ValueChan(instr.Block.PC),
				signatures.ValueChan(ptr),
			},
			Sinks: implicitSinks,
		})
	}
	return recs
}
