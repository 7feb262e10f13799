package generator

import (
	"testing"

	"github.com/funvibe/infoflow/internal/config"
	"github.com/funvibe/infoflow/internal/constraints"
	"github.com/funvibe/infoflow/internal/ir"
	"github.com/funvibe/infoflow/internal/irfixture"
	"github.com/funvibe/infoflow/internal/lattice"
	"github.com/funvibe/infoflow/internal/signatures"
)

func newTestGenerator(t *testing.T, callgraph ir.CallGraph, postdom ir.PostDominators) (*Generator, *lattice.Algebra, *constraints.Store, *Pool) {
	t.Helper()
	algebra := lattice.NewAlgebra()
	store := constraints.New(algebra)
	pool := NewPool(algebra)

	stdlib, err := signatures.NewStdLib()
	if err != nil {
		t.Fatalf("NewStdLib: %v", err)
	}
	t.Cleanup(func() { stdlib.Close() })
	sigs := signatures.NewRegistry(stdlib)

	g := New(algebra, store, pool, irfixture.NewPointsTo(), callgraph, postdom, sigs, NewSinkSet(signatures.FlowRecord{}), config.DefaultFlags(), nil)
	return g, algebra, store, pool
}

// nullAnalyzer never reports any enqueue interest; used by tests that only
// exercise a single generateInstruction call in isolation.
type nullAnalyzer struct{}

func (nullAnalyzer) ContextFor(callerCtx ir.ContextID, site ir.CallSite, indirect bool) ir.ContextID {
	return ir.ContextDefault
}
func (nullAnalyzer) Request(callee *ir.Function, calleeCtx ir.ContextID, from Unit) {}

func hasConstraintTo(cs []constraints.Constraint, rhs *lattice.Var) bool {
	for _, c := range cs {
		if v, ok := c.RHS.(*lattice.Var); ok && v == rhs {
			return true
		}
	}
	return false
}

func TestEmitRoutesExplicitConstraintsToDefaultKind(t *testing.T) {
	g, _, store, pool := newTestGenerator(t, nil, nil)

	src := ir.NewValue("src")
	sink := ir.NewValue("sink")
	g.emit(signatures.FlowRecord{
		Sources: []signatures.Channel{signatures.ValueChan(src)},
		Sinks:   []signatures.Channel{signatures.ValueChan(sink)},
	}, ir.ContextDefault)

	sinkVar := pool.Value(sink, ir.ContextDefault)
	if !hasConstraintTo(store.Peek(constraints.KindDefault), sinkVar) {
		t.Error("explicit, non-sink record should land a constraint in the default kind")
	}
	if len(store.Peek(constraints.KindImplicit)) != 0 {
		t.Error("explicit record should not touch the implicit kind")
	}
}

func TestEmitRoutesImplicitConstraintsToImplicitKind(t *testing.T) {
	g, _, store, pool := newTestGenerator(t, nil, nil)

	src := ir.NewValue("src")
	sink := ir.NewValue("sink")
	g.emit(signatures.FlowRecord{
		Implicit: true,
		Sources:  []signatures.Channel{signatures.ValueChan(src)},
		Sinks:    []signatures.Channel{signatures.ValueChan(sink)},
	}, ir.ContextDefault)

	sinkVar := pool.Value(sink, ir.ContextDefault)
	if !hasConstraintTo(store.Peek(constraints.KindImplicit), sinkVar) {
		t.Error("implicit record should land a constraint in the implicit kind")
	}
	if len(store.Peek(constraints.KindDefault)) != 0 {
		t.Error("implicit record should not touch the default kind")
	}
}

func TestEmitDropAtSinksRoutesSourceThatIsItselfASink(t *testing.T) {
	algebra := lattice.NewAlgebra()
	store := constraints.New(algebra)
	pool := NewPool(algebra)

	stdlib, err := signatures.NewStdLib()
	if err != nil {
		t.Fatalf("NewStdLib: %v", err)
	}
	t.Cleanup(func() { stdlib.Close() })
	sigs := signatures.NewRegistry(stdlib)

	recognizedSink := ir.NewValue("recognized-sink")
	sinks := NewSinkSet(signatures.FlowRecord{Sinks: []signatures.Channel{signatures.ValueChan(recognizedSink)}})

	flags := config.DefaultFlags()
	flags.DropAtSinks = true
	g := New(algebra, store, pool, irfixture.NewPointsTo(), nil, nil, sigs, sinks, flags, nil)

	finalSink := ir.NewValue("final-sink")
	g.emit(signatures.FlowRecord{
		Sources: []signatures.Channel{signatures.ValueChan(recognizedSink)},
		Sinks:   []signatures.Channel{signatures.ValueChan(finalSink)},
	}, ir.ContextDefault)

	finalVar := pool.Value(finalSink, ir.ContextDefault)
	if hasConstraintTo(store.Peek(constraints.KindDefault), finalVar) {
		t.Error("a source recognised as a sink should be dropped from the default kind under drop_at_sinks")
	}
	if !hasConstraintTo(store.Peek(constraints.KindDefaultSinks), finalVar) {
		t.Error("it should instead land in the default-sinks kind, since the record is explicit")
	}
}

func TestEmitSkipsEmptyPointsToChannelsWithoutPanicking(t *testing.T) {
	g, _, store, _ := newTestGenerator(t, nil, nil)

	ptr := ir.NewValue("ptr") // never registered with the points-to fixture: empty direct/reach sets
	sink := ir.NewValue("sink")
	g.emit(signatures.FlowRecord{
		Sources: []signatures.Channel{signatures.DirectPtrChan(ptr)},
		Sinks:   []signatures.Channel{signatures.ValueChan(sink)},
	}, ir.ContextDefault)

	if len(store.Peek(constraints.KindDefault)) != 0 {
		t.Error("a channel over an empty points-to set should contribute nothing, not mint a spurious constraint")
	}
}

func TestEmitNotesWitnessForGeneratedConstraints(t *testing.T) {
	g, _, _, pool := newTestGenerator(t, nil, nil)
	w := NewWitnessLog()
	g.WithWitness(w)

	src := ir.NewValue("src")
	sink := ir.NewValue("sink")
	rec := signatures.FlowRecord{
		Sources: []signatures.Channel{signatures.ValueChan(src)},
		Sinks:   []signatures.Channel{signatures.ValueChan(sink)},
	}
	g.emit(rec, ir.ContextDefault)

	sinkVar := pool.Value(sink, ir.ContextDefault)
	got := w.For(sinkVar.ID())
	if len(got) != 1 {
		t.Fatalf("expected exactly one witness record for the sink variable, got %d", len(got))
	}
}

func TestGenerateInstructionBinaryOpFlowsOperandsAndPC(t *testing.T) {
	g, _, store, pool := newTestGenerator(t, nil, nil)

	block := ir.NewBlock(0)
	a := ir.NewValue("a")
	b := ir.NewValue("b")
	result := ir.NewValue("r")
	instr := &ir.Instruction{Op: ir.OpBinary, Block: block, Result: &result, Operands: []ir.Value{a, b}}
	block.Instructions = []*ir.Instruction{instr}

	unit := Unit{Fn: ir.NewFunction("f"), Ctx: ir.ContextDefault}
	g.generateInstruction(unit, block, instr, nullAnalyzer{})

	rVar := pool.Value(result, ir.ContextDefault)
	if !hasConstraintTo(store.Peek(constraints.KindDefault), rVar) {
		t.Error("operand values should flow explicitly into the binary op's result")
	}
	if !hasConstraintTo(store.Peek(constraints.KindImplicit), rVar) {
		t.Error("the block PC should flow implicitly into the binary op's result")
	}
}

func TestGenerateInstructionUnsupportedOpcodePanics(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)

	block := ir.NewBlock(0)
	instr := &ir.Instruction{Op: ir.Opcode(999), Block: block}
	block.Instructions = []*ir.Instruction{instr}
	unit := Unit{Fn: ir.NewFunction("f"), Ctx: ir.ContextDefault}

	defer func() {
		if recover() == nil {
			t.Error("generating an opcode outside the closed set should panic")
		}
	}()
	g.generateInstruction(unit, block, instr, nullAnalyzer{})
}

func TestLoadRecordsFlowFromDirectPtrAndPC(t *testing.T) {
	g, _, store, pool := newTestGenerator(t, nil, nil)

	block := ir.NewBlock(0)
	ptr := ir.NewValue("ptr")
	result := ir.NewValue("loaded")
	instr := &ir.Instruction{Op: ir.OpLoad, Block: block, Result: &result, Operands: []ir.Value{ptr}}
	g.points.(*irfixture.PointsTo).SetDirect(ptr, ir.NewLocSet(ir.NewAbstractLoc()))

	recs := g.loadRecords(instr)
	if len(recs) != 2 {
		t.Fatalf("Load should produce an explicit and an implicit record, got %d", len(recs))
	}
	for _, rec := range recs {
		g.emit(rec, ir.ContextDefault)
	}

	resultVar := pool.Value(result, ir.ContextDefault)
	if !hasConstraintTo(store.Peek(constraints.KindDefault), resultVar) {
		t.Error("Load's explicit record should target the loaded value")
	}
	if !hasConstraintTo(store.Peek(constraints.KindImplicit), resultVar) {
		t.Error("Load's implicit record should also target the loaded value")
	}
}

func TestStoreRecordsFlowValueIntoDirectPtr(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)

	block := ir.NewBlock(0)
	ptr := ir.NewValue("ptr")
	val := ir.NewValue("val")
	instr := &ir.Instruction{Op: ir.OpStore, Block: block, Operands: []ir.Value{ptr, val}}

	recs := g.storeRecords(instr)
	if len(recs) != 2 {
		t.Fatalf("Store should produce an explicit and an implicit record, got %d", len(recs))
	}
	if recs[0].Sinks[0].Kind != signatures.ChanDirectPtr {
		t.Error("Store's sink should be the direct-ptr channel of the pointer operand")
	}
	if recs[0].Sources[0].Val != val {
		t.Error("Store's explicit source should be the stored value")
	}
}

func TestStoreRecordsMissingOperandsReturnsNil(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)
	instr := &ir.Instruction{Op: ir.OpStore, Operands: []ir.Value{ir.NewValue("only-one")}}
	if recs := g.storeRecords(instr); recs != nil {
		t.Error("a Store with fewer than two operands should produce no records")
	}
}

func TestAtomicCmpXchgRecordsStoreAndReadBack(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)

	block := ir.NewBlock(0)
	ptr, cmp, newVal := ir.NewValue("ptr"), ir.NewValue("cmp"), ir.NewValue("new")
	result := ir.NewValue("old")
	instr := &ir.Instruction{Op: ir.OpAtomicCmpXchg, Block: block, Result: &result, Operands: []ir.Value{ptr, cmp, newVal}}

	recs := g.atomicCmpXchgRecords(instr)
	if len(recs) != 3 {
		t.Fatalf("AtomicCmpXchg with a result should produce 3 records (store + explicit read-back + implicit read-back), got %d", len(recs))
	}
}

func TestVaArgRecordsFlowPointerAndVarargs(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)

	fn := ir.NewFunction("f")
	block := ir.NewBlock(0)
	ptr := ir.NewValue("ap")
	result := ir.NewValue("arg")
	instr := &ir.Instruction{Op: ir.OpVAArg, Block: block, Result: &result, Operands: []ir.Value{ptr}}

	recs := g.vaArgRecords(fn, instr)
	if len(recs) != 2 {
		t.Fatalf("VAArg should produce an explicit and an implicit record, got %d", len(recs))
	}
	if len(recs[0].Sinks) != 2 {
		t.Errorf("VAArg's explicit sinks should be result and varargs(fn) only, got %d", len(recs[0].Sinks))
	}
	if len(recs[1].Sinks) != 3 {
		t.Errorf("VAArg's implicit sinks should additionally cover the pointer, got %d", len(recs[1].Sinks))
	}
}

func TestReturnRecordsTargetFunctionReturnValue(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)

	fn := ir.NewFunction("f")
	block := ir.NewBlock(0)
	operand := ir.NewValue("r")
	instr := &ir.Instruction{Op: ir.OpReturn, Block: block, Operands: []ir.Value{operand}}

	recs := g.returnRecords(fn, instr)
	if len(recs) != 2 {
		t.Fatalf("Return should produce an explicit and an implicit record, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Sinks[0].Val != fn.ReturnValue {
			t.Error("every Return record should target the function's ReturnValue")
		}
	}
}

func TestReturnVoidProducesNoRecords(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)
	fn := ir.NewFunction("f")
	instr := &ir.Instruction{Op: ir.OpReturn}
	if recs := g.returnRecords(fn, instr); recs != nil {
		t.Error("a bare `return` with no operand should produce no records")
	}
}

func TestCallRecordsDirectCalleeFlowsArgsAndReturn(t *testing.T) {
	g, _, store, pool := newTestGenerator(t, nil, nil)

	callee := ir.NewFunction("callee")
	p0 := ir.NewValue("p0")
	callee.Params = []ir.Value{p0}
	callee.ReturnsVal = true
	callee.Entry = ir.NewBlock(0)
	callee.Blocks = []*ir.Block{callee.Entry}

	caller := ir.NewFunction("caller")
	block := ir.NewBlock(0)
	arg := ir.NewValue("arg")
	result := ir.NewValue("call-result")
	instr := &ir.Instruction{Op: ir.OpCall, Block: block, Result: &result, DirectCallee: callee, Args: []ir.Value{arg}}

	req := &recordingAnalyzer{}
	unit := Unit{Fn: caller, Ctx: ir.ContextDefault}
	recs := g.callRecords(unit, instr, req)
	for _, rec := range recs {
		g.emit(rec, ir.ContextDefault)
	}

	if len(req.requested) != 1 || req.requested[0] != callee {
		t.Error("a direct call should request analysis of its callee exactly once")
	}

	paramVar := pool.Value(p0, ir.ContextDefault)
	if !hasConstraintTo(store.Peek(constraints.KindDefault), paramVar) {
		t.Error("the argument should flow into the callee's parameter")
	}
	resultVar := pool.Value(result, ir.ContextDefault)
	if !hasConstraintTo(store.Peek(constraints.KindDefault), resultVar) {
		t.Error("the callee's return value should flow into the call's result")
	}
}

type recordingAnalyzer struct {
	requested []*ir.Function
}

func (r *recordingAnalyzer) ContextFor(callerCtx ir.ContextID, site ir.CallSite, indirect bool) ir.ContextID {
	return ir.ContextDefault
}
func (r *recordingAnalyzer) Request(callee *ir.Function, calleeCtx ir.ContextID, from Unit) {
	r.requested = append(r.requested, callee)
}

func TestCallRecordsExternalSignatureFallsThroughToArgsToRet(t *testing.T) {
	g, _, store, pool := newTestGenerator(t, nil, nil)

	caller := ir.NewFunction("caller")
	block := ir.NewBlock(0)
	arg := ir.NewValue("arg")
	result := ir.NewValue("call-result")
	instr := &ir.Instruction{Op: ir.OpCall, Block: block, Result: &result, ExternName: "some_unknown_external_fn", Args: []ir.Value{arg}}

	unit := Unit{Fn: caller, Ctx: ir.ContextDefault}
	recs := g.callRecords(unit, instr, nullAnalyzer{})
	for _, rec := range recs {
		g.emit(rec, ir.ContextDefault)
	}

	resultVar := pool.Value(result, ir.ContextDefault)
	if !hasConstraintTo(store.Peek(constraints.KindDefault), resultVar) {
		t.Error("an unrecognised external call should fall through to ArgsToRet, flowing args into the result")
	}
}

func TestCallRecordsIndirectEnumeratesCallGraphCandidates(t *testing.T) {
	cg := irfixture.NewCallGraph(nil)
	g, _, store, pool := newTestGenerator(t, cg, nil)

	callee := ir.NewFunction("callee")
	p0 := ir.NewValue("p0")
	callee.Params = []ir.Value{p0}

	caller := ir.NewFunction("caller")
	block := ir.NewBlock(0)
	arg := ir.NewValue("arg")
	instr := &ir.Instruction{Op: ir.OpCall, Block: block, IsIndirect: true, Args: []ir.Value{arg}}
	cg.AddDirect(instr, callee)

	unit := Unit{Fn: caller, Ctx: ir.ContextDefault}
	recs := g.callRecords(unit, instr, nullAnalyzer{})
	for _, rec := range recs {
		g.emit(rec, ir.ContextDefault)
	}

	paramVar := pool.Value(p0, ir.ContextDefault)
	if !hasConstraintTo(store.Peek(constraints.KindDefault), paramVar) {
		t.Error("an indirect call's call-graph candidate should still flow its argument into the callee's parameter")
	}
}

func TestIntrinsicMemcpyFlowsSourcePointeeIntoDestination(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)

	dst, src, length := ir.NewValue("dst"), ir.NewValue("src"), ir.NewValue("n")
	instr := &ir.Instruction{Op: ir.OpIntrinsic, IntrinsicName: "llvm.memcpy", Args: []ir.Value{dst, src, length}}

	recs := g.intrinsicRecords(instr)
	if len(recs) != 2 {
		t.Fatalf("memcpy should produce an explicit and an implicit record, got %d", len(recs))
	}
	if recs[0].Sources[0].Kind != signatures.ChanDirectPtr || recs[0].Sinks[0].Kind != signatures.ChanDirectPtr {
		t.Error("memcpy's explicit record should flow direct-ptr(src) into direct-ptr(dst)")
	}
}

func TestIntrinsicUnknownNameEmitsNothing(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)
	instr := &ir.Instruction{Op: ir.OpIntrinsic, IntrinsicName: "llvm.something.nobody.has.heard.of"}
	if recs := g.intrinsicRecords(instr); recs != nil {
		t.Error("an unrecognised intrinsic should emit no flow records, not panic")
	}
}

func TestControlDependenceSinksWithoutPostDomIsConservative(t *testing.T) {
	g, _, _, _ := newTestGenerator(t, nil, nil)

	fn := ir.NewFunction("f")
	from := ir.NewBlock(0)
	s1, s2 := ir.NewBlock(1), ir.NewBlock(2)

	sinks := g.controlDependenceSinks(fn, from, []*ir.Block{s1, s2})
	if len(sinks) != 2 {
		t.Fatalf("without a post-dominator provider, every successor should be treated as control-dependent, got %d", len(sinks))
	}
}

func TestControlDependenceSinksStopsAtConvergencePoint(t *testing.T) {
	postdom := irfixture.NewPostDominators()
	g, _, _, _ := newTestGenerator(t, nil, postdom)

	fn := ir.NewFunction("f")
	from := ir.NewBlock(0)
	thenBlk := ir.NewBlock(1)
	joinBlk := ir.NewBlock(2)
	thenBlk.Instructions = []*ir.Instruction{{Op: ir.OpBranch, Successors: []*ir.Block{joinBlk}}}

	postdom.Set(fn, from, joinBlk)

	sinks := g.controlDependenceSinks(fn, from, []*ir.Block{thenBlk, joinBlk})
	found := make(map[ir.Value]bool)
	for _, pc := range sinks {
		found[pc] = true
	}
	if !found[thenBlk.PC] {
		t.Error("thenBlk is not post-dominated by from, so it should be control-dependent")
	}
	if found[joinBlk.PC] {
		t.Error("joinBlk is post-dominated by from: control converges there, so it should not be a sink")
	}
}

func TestSinkSetIsSinkChannel(t *testing.T) {
	v := ir.NewValue("sink-value")
	s := NewSinkSet(signatures.FlowRecord{Sinks: []signatures.Channel{signatures.ValueChan(v)}})
	if !s.IsSinkChannel(signatures.ValueChan(v)) {
		t.Error("a value named in the global FlowRecord's sinks should be recognised as a sink channel")
	}
	other := ir.NewValue("not-a-sink")
	if s.IsSinkChannel(signatures.ValueChan(other)) {
		t.Error("an unrelated value should not be recognised as a sink channel")
	}
}
