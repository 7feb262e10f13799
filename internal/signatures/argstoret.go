package signatures

import "github.com/funvibe/infoflow/internal/ir"

// ArgsToRet is the catch-all fallback signature of spec.md §4.D.2: it
// accepts every call site and, if the callee returns a value, flows every
// argument value into the return. Registered last, so it only ever fires
// when OverflowChecks and StdLib both decline.
type ArgsToRet struct{}

// Accepts always returns true; this is the fallback of last resort.
func (ArgsToRet) Accepts(site ir.CallSite, externName string) bool { return true }

// Record flows every argument value into the return value, if any.
func (ArgsToRet) Record(site ir.CallSite, externName string) (FlowRecord, bool) {
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
		Sources:   sources,
		Sinks:     []Channel{ValueChan(*instr.Result)},
	}
	return rec, true
}
