package signatures

import (
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/kit"
)

// Signature is one entry of the first-match-wins registry spec.md §4.D
// describes: it decides whether it applies to a call site and, if so,
// produces the FlowRecord summarising the flows the call induces.
type Signature interface {
	Accepts(site ir.CallSite, externName string) bool
	Record(site ir.CallSite, externName string) (FlowRecord, bool)
}

// Registry holds an ordered, first-match-wins list of signatures.
type Registry struct {
	sigs []Signature
}

// NewRegistry builds the default registry in spec.md §4.D's registration
// order: OverflowChecks, then StdLib, then the ArgsToRet fallback.
func NewRegistry(stdlib *StdLib) *Registry {
	return &Registry{sigs: []Signature{
		OverflowChecks{},
		stdlib,
		ArgsToRet{},
	}}
}

// Resolve returns the FlowRecord of the first signature that accepts the
// call to externName, plus, for OverflowChecks matches, the implicit
// companion record (spec.md §4.D.2's "implicit" flow alongside the explicit
// one). ArgsToRet always matches, so Resolve never reports "no signature".
func (r *Registry) Resolve(site ir.CallSite, externName string) (explicit FlowRecord, implicit *FlowRecord) {
	for _, s := range r.sigs {
		if !s.Accepts(site, externName) {
			continue
		}
		rec, ok := s.Record(site, externName)
		if !ok {
			continue
		}
		if oc, isOverflow := s.(OverflowChecks); isOverflow {
			if impl, ok := oc.ImplicitRecord(site); ok {
				implicit = &impl
			}
		}
		return rec, implicit
	}
	// Unreachable: ArgsToRet accepts everything. Per spec.md's "Unknown
	// call (recoverable)" note, it is a fatal contract violation.
	kit.Fatalf(kit.ErrUnknownCall, "call to %q", externName)
	return FlowRecord{}, nil
}
