package driver

import (
	"fmt"
	"strings"
	"sync"

	"github.com/funvibe/infoflow/internal/ir"
)

// ContextKind selects whether update_context appends the caller function or
// the call instruction's identity to a context sequence (spec.md §4.E.2).
type ContextKind int

const (
	// CallerContext appends the caller function's name.
	CallerContext ContextKind = iota
	// CallSiteContext appends the call instruction's identity.
	CallSiteContext
)

// K is the call-site sensitivity bound: contexts are truncated to at most
// this many frames.
const K = 1

// ContextManager interns context sequences into small, comparable
// ir.ContextID values, so equal sequences always share one ID (spec.md
// §4.E.2: "Contexts are interned via a canonicalising manager").
type ContextManager struct {
	kind ContextKind

	mu      sync.Mutex
	nextID  ir.ContextID
	ids     map[string]ir.ContextID
	seqs    map[ir.ContextID][]string
}

// NewContextManager constructs a manager. kind selects the per-frame label
// (caller function name vs. call-instruction identity); ContextDefault (0)
// is pre-registered as the empty sequence.
func NewContextManager(kind ContextKind) *ContextManager {
	m := &ContextManager{
		kind: kind,
		ids:  make(map[string]ir.ContextID),
		seqs: make(map[ir.ContextID][]string),
	}
	m.ids[""] = ir.ContextDefault
	m.seqs[ir.ContextDefault] = nil
	m.nextID = ir.ContextDefault + 1
	return m
}

func frameLabel(kind ContextKind, site ir.CallSite) string {
	if kind == CallSiteContext {
		return callSiteLabel(site)
	}
	if site.Caller != nil {
		return site.Caller.Name
	}
	return ""
}

func callSiteLabel(site ir.CallSite) string {
	if site.Instr == nil {
		return "?"
	}
	return fmt.Sprintf("%p", site.Instr)
}

// intern returns the ContextID for seq, minting one if this is the first
// time this exact sequence has been seen.
func (m *ContextManager) intern(seq []string) ir.ContextID {
	key := strings.Join(seq, "\x00")
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[key]; ok {
		return id
	}
	id := m.nextID
	m.nextID++
	m.ids[key] = id
	stored := append([]string(nil), seq...)
	m.seqs[id] = stored
	return id
}

// UpdateContext appends the current call site's frame label to old's
// sequence and truncates the front until length <= K (spec.md §4.E.2).
func (m *ContextManager) UpdateContext(old ir.ContextID, site ir.CallSite) ir.ContextID {
	m.mu.Lock()
	prev := m.seqs[old]
	m.mu.Unlock()

	seq := append(append([]string(nil), prev...), frameLabel(m.kind, site))
	if len(seq) > K {
		seq = seq[len(seq)-K:]
	}
	return m.intern(seq)
}

// UpdateIndirectContext returns ContextDefault when collapsing indirect
// contexts is enabled, else behaves exactly like UpdateContext.
func (m *ContextManager) UpdateIndirectContext(old ir.ContextID, site ir.CallSite, collapse bool) ir.ContextID {
	if collapse {
		return ir.ContextDefault
	}
	return m.UpdateContext(old, site)
}
