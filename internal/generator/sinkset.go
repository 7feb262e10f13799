package generator

import (
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/signatures"
)

// SinkSet is the set of SSA values the source/sink identification service
// (spec.md §6) has named as sinks, keyed by raw Value identity. It backs
// drop_at_sinks (§4.E.3): a flow whose source channel names a value already
// in this set is a "source that is itself recognised as a sink".
type SinkSet map[ir.Value]bool

// NewSinkSet extracts the sink values from the module-level FlowRecord the
// source/sink identification service produces.
func NewSinkSet(global signatures.FlowRecord) SinkSet {
	s := make(SinkSet, len(global.Sinks))
	for _, ch := range global.Sinks {
		s[ch.Val] = true
	}
	return s
}

// IsSinkChannel reports whether ch names a value this set recognises as a
// sink.
func (s SinkSet) IsSinkChannel(ch signatures.Channel) bool {
	return s[ch.Val]
}
