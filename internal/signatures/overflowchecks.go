package signatures

import (
	"strings"

	"github.com/funvibe/infoflow/internal/ir"
)

// overflowCheckPrefix is the name prefix spec.md §4.D.2 identifies compiler-
// inserted overflow check helpers by.
const overflowCheckPrefix = "____jf_check"

// OverflowChecks is the first signature consulted (spec.md §4.D): it accepts
// any callee whose name starts with overflowCheckPrefix and flows every
// argument value, plus the calling block's implicit PC, into the return
// value. It never touches memory channels.
type OverflowChecks struct{}

// Accepts reports whether externName names a compiler-inserted overflow
// check.
func (OverflowChecks) Accepts(site ir.CallSite, externName string) bool {
	return strings.HasPrefix(externName, overflowCheckPrefix)
}

// Record builds the explicit FlowRecord of the pair spec.md §4.D.2
// describes, flowing every argument value into the return; ImplicitRecord
// builds the implicit one, flowing the calling block's PC into the return.
func (OverflowChecks) Record(site ir.CallSite, externName string) (FlowRecord, bool) {
	instr := site.Instr
	if instr.Result == nil {
		return FlowRecord{}, true
	}

	sources := make([]Channel, 0, len(instr.Args))
	for _, a := range instr.Args {
		sources = append(sources, ValueChan(a))
	}

	rec := FlowRecord{
		SourceCtx: ir.ContextDefault,
		SinkCtx:   ir.ContextDefault,
		Implicit:  false,
		Sources:   sources,
		Sinks:     []Channel{ValueChan(*instr.Result)},
	}
	return rec, true
}

// ImplicitRecord builds the implicit companion record: the calling block's
// program-counter value flows, implicitly, into the return value. Callers
// (the generator) emit this alongside Record's explicit flows, per the
// two-record description in spec.md §4.D.2.
func (OverflowChecks) ImplicitRecord(site ir.CallSite) (FlowRecord, bool) {
	instr := site.Instr
	if instr.Result == nil || instr.Block == nil {
		return FlowRecord{}, false
	}
	rec := FlowRecord{
		SourceCtx: ir.ContextDefault,
		SinkCtx:   ir.ContextDefault,
		Implicit:  true,
		Sources:   []Channel{ValueChan(instr.Block.PC)},
		Sinks:     []Channel{ValueChan(*instr.Result)},
	}
	return rec, true
}
