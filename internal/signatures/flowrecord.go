// Package signatures models external (non-analyzed) functions as flow
// records, per spec.md §4.D: a signature accepts or rejects a call site and,
// when accepting, emits the source/sink channels the external call induces.
package signatures

import "github.com/funvibe/infoflow/internal/ir"

// ChannelKind selects which of the four source/sink streams spec.md §4.D
// names a Channel belongs to.
type ChannelKind int

const (
	// ChanValue is the plain SSA value itself.
	ChanValue ChannelKind = iota
	// ChanDirectPtr is the direct points-to set of a pointer-typed value.
	ChanDirectPtr
	// ChanReachablePtr is the reachable points-to set of a pointer-typed
	// value.
	ChanReachablePtr
	// ChanVarg is a function's varargs structure variable.
	ChanVarg
)

// Channel is one source or sink endpoint of a FlowRecord.
type Channel struct {
	Kind ChannelKind
	Val  ir.Value
	Fn   *ir.Function
}

// ValueChan builds a ChanValue channel.
func ValueChan(v ir.Value) Channel { return Channel{Kind: ChanValue, Val: v} }

// DirectPtrChan builds a ChanDirectPtr channel.
func DirectPtrChan(v ir.Value) Channel { return Channel{Kind: ChanDirectPtr, Val: v} }

// ReachablePtrChan builds a ChanReachablePtr channel.
func ReachablePtrChan(v ir.Value) Channel { return Channel{Kind: ChanReachablePtr, Val: v} }

// VargChan builds a ChanVarg channel for fn's varargs variable.
func VargChan(fn *ir.Function) Channel { return Channel{Kind: ChanVarg, Fn: fn} }

// FlowRecord is a declarative bundle of source and sink channels, produced
// by an instruction rule or a signature, and later lowered into constraints
// by the generator (spec.md §4.E.3).
type FlowRecord struct {
	SourceCtx ir.ContextID
	SinkCtx   ir.ContextID
	Implicit  bool
	Sources   []Channel
	Sinks     []Channel
}

// Empty reports whether the record carries no flows at all (the "the table
// names a function but lists no sources" case of spec.md §4.D.2, or a
// signature that deliberately contributes nothing, e.g. __cxa_throw).
func (r FlowRecord) Empty() bool {
	return len(r.Sources) == 0 || len(r.Sinks) == 0
}
