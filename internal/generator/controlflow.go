package generator

import "github.com/funvibe/infoflow/internal/ir"

// controlDependenceSinks returns the sinks of the implicit record spec.md
// §4.E.4 specifies for Branch (conditional), Switch, IndirectBr, and
// Invoke's continuation: every basic block's PC in the immediate
// control-dependence region of the terminator's own block. The caller adds
// the sources (PC and the condition/address/function-pointer value).
func (g *Generator) controlDependenceSinks(fn *ir.Function, from *ir.Block, successors []*ir.Block) []ir.Value {
	if len(successors) == 0 {
		return nil
	}

	// Without a post-dominator provider, conservatively treat every
	// successor as control-dependent rather than silently dropping flows.
	if g.postdom == nil {
		out := make([]ir.Value, len(successors))
		for i, s := range successors {
			out[i] = s.PC
		}
		return out
	}

	visited := make(map[*ir.Block]bool, len(successors)+1)
	visited[from] = true

	queue := make([]*ir.Block, 0, len(successors))
	for _, s := range successors {
		if !visited[s] {
			visited[s] = true
			queue = append(queue, s)
		}
	}

	var sinks []ir.Value
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]

		if g.postdom.Dominates(fn, from, b) {
			// b is post-dominated by from: control converges here, so
			// neither b nor anything strictly beyond it (on this path) is
			// control-dependent on the terminator.
			continue
		}
		sinks = append(sinks, b.PC)

		if len(b.Instructions) == 0 {
			continue
		}
		term := b.Instructions[len(b.Instructions)-1]
		for _, succ := range term.Successors {
			// Checking !visited before enqueueing (rather than after
			// dequeueing) keeps a block that is reachable via more than one
			// path from being queued — and pruned, and re-explored — more
			// than once.
			if !visited[succ] {
				visited[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	return sinks
}
