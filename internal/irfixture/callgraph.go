package irfixture

import "github.com/funvibe/infoflow/internal/ir"

// CallGraph is a map-backed ir.CallGraph keyed by the call instruction
// identity: every site not registered resolves to no candidate callees.
type CallGraph struct {
	root    *ir.Function
	callees map[*ir.Instruction][]ir.CalleeEdge
}

// NewCallGraph constructs a CallGraph rooted at root, which may be nil.
func NewCallGraph(root *ir.Function) *CallGraph {
	return &CallGraph{root: root, callees: make(map[*ir.Instruction][]ir.CalleeEdge)}
}

// AddDirect registers a single defined-function candidate for site.
func (g *CallGraph) AddDirect(site *ir.Instruction, callee *ir.Function) {
	g.callees[site] = append(g.callees[site], ir.CalleeEdge{Callee: callee, Kind: ir.CalleeDefined})
}

// AddExternal registers a single "calls external node" candidate for site.
func (g *CallGraph) AddExternal(site *ir.Instruction, symbol string) {
	g.callees[site] = append(g.callees[site], ir.CalleeEdge{Kind: ir.CalleeExternalNode, ExternSymbol: symbol})
}

// Callees implements ir.CallGraph.
func (g *CallGraph) Callees(site ir.CallSite) []ir.CalleeEdge {
	return g.callees[site.Instr]
}

// Root implements ir.CallGraph.
func (g *CallGraph) Root() (*ir.Function, bool) { return g.root, g.root != nil }
