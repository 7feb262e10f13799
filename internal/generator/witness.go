package generator

import (
	"sync"

	"github.com/funvibe/infoflow/internal/lattice"
	"github.com/funvibe/infoflow/internal/signatures"
)

// WitnessLog records, for every constraint variable a FlowRecord's sinks
// resolved to, the record that produced it. internal/slicing.Explain walks
// this backward from a value to collect the records behind it
// (spec.md §5's supplemented MultiSlice.Explain).
type WitnessLog struct {
	mu      sync.Mutex
	records map[lattice.ID][]signatures.FlowRecord
}

// NewWitnessLog constructs an empty log.
func NewWitnessLog() *WitnessLog {
	return &WitnessLog{records: make(map[lattice.ID][]signatures.FlowRecord)}
}

func (w *WitnessLog) note(id lattice.ID, rec signatures.FlowRecord) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records[id] = append(w.records[id], rec)
}

// For returns the records that produced a constraint targeting id, in
// emission order.
func (w *WitnessLog) For(id lattice.ID) []signatures.FlowRecord {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]signatures.FlowRecord(nil), w.records[id]...)
}
