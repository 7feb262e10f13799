package irfixture

import "github.com/funvibe/infoflow/internal/ir"

// PostDominators is a map-backed ir.PostDominators: Dominates(fn, a, b) is
// true iff b was registered as post-dominated by a within fn. Unregistered
// pairs are not considered dominating, which is the conservative direction
// for internal/generator.controlDependenceSinks (an under-reported
// dominance relation only adds spurious control-dependence sinks, it never
// drops a real one).
type PostDominators struct {
	dominates map[*ir.Function]map[[2]*ir.Block]bool
}

// NewPostDominators constructs an empty provider.
func NewPostDominators() *PostDominators {
	return &PostDominators{dominates: make(map[*ir.Function]map[[2]*ir.Block]bool)}
}

// Set records that a post-dominates b within fn.
func (p *PostDominators) Set(fn *ir.Function, a, b *ir.Block) {
	m := p.dominates[fn]
	if m == nil {
		m = make(map[[2]*ir.Block]bool)
		p.dominates[fn] = m
	}
	m[[2]*ir.Block{a, b}] = true
}

// Dominates implements ir.PostDominators.
func (p *PostDominators) Dominates(fn *ir.Function, a, b *ir.Block) bool {
	m := p.dominates[fn]
	if m == nil {
		return false
	}
	return m[[2]*ir.Block{a, b}]
}
