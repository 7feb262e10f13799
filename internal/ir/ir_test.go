package ir

import "testing"

func TestNewValueIdentityIsUnique(t *testing.T) {
	v1 := NewValue("x")
	v2 := NewValue("x")
	if v1 == v2 {
		t.Fatal("two NewValue calls with the same name compared equal")
	}
	if v1.Name != "x" || v2.Name != "x" {
		t.Fatal("Name not preserved")
	}
}

func TestValueUsableAsMapKey(t *testing.T) {
	v1 := NewValue("a")
	v2 := NewValue("b")
	m := map[Value]int{v1: 1, v2: 2}
	if m[v1] != 1 || m[v2] != 2 {
		t.Fatal("Value does not behave correctly as a map key")
	}
}

func TestNewBlockAssignsDistinctPC(t *testing.T) {
	b0 := NewBlock(0)
	b1 := NewBlock(1)
	if b0.PC == b1.PC {
		t.Fatal("two blocks got the same PC value identity")
	}
	if b0.PC.Name != "bb0.pc" {
		t.Fatalf("PC name = %q, want bb0.pc", b0.PC.Name)
	}
}

func TestNewFunctionReturnValueNamed(t *testing.T) {
	fn := NewFunction("foo")
	if fn.ReturnValue.Name != "foo.ret" {
		t.Fatalf("ReturnValue.Name = %q, want foo.ret", fn.ReturnValue.Name)
	}
}

func TestModuleLookupAndMain(t *testing.T) {
	main := NewFunction("main")
	helper := NewFunction("helper")
	m := NewModule([]*Function{main, helper})

	if got, ok := m.Lookup("helper"); !ok || got != helper {
		t.Fatal("Lookup(\"helper\") failed")
	}
	if _, ok := m.Lookup("missing"); ok {
		t.Fatal("Lookup(\"missing\") unexpectedly succeeded")
	}
	if got, ok := m.Main(); !ok || got != main {
		t.Fatal("Main() did not return the function named main")
	}
}

func TestLocSetMembership(t *testing.T) {
	l1 := NewAbstractLoc()
	l2 := NewAbstractLoc()
	set := NewLocSet(l1)
	if _, ok := set[l1]; !ok {
		t.Fatal("NewLocSet did not include l1")
	}
	if _, ok := set[l2]; ok {
		t.Fatal("NewLocSet included l2 unexpectedly")
	}
}

func TestOpcodeStringCoversEveryConstant(t *testing.T) {
	ops := []Opcode{
		OpBinary, OpCmp, OpCast, OpSelect, OpPHI, OpGetElementPtr, OpAlloca,
		OpInsertElement, OpExtractElement, OpShuffleVector, OpInsertValue,
		OpExtractValue, OpLandingPad, OpResume, OpReturn, OpLoad, OpStore,
		OpAtomicRMW, OpAtomicCmpXchg, OpVAArg, OpBranch, OpSwitch,
		OpIndirectBr, OpInvoke, OpUnreachable, OpFence, OpCall, OpIntrinsic,
	}
	seen := make(map[string]bool)
	for _, op := range ops {
		s := op.String()
		if s == "Unknown" {
			t.Errorf("opcode %d stringified to Unknown", op)
		}
		if seen[s] {
			t.Errorf("opcode string %q produced by more than one constant", s)
		}
		seen[s] = true
	}
}

func TestInstructionHasResult(t *testing.T) {
	v := NewValue("r")
	withResult := &Instruction{Op: OpBinary, Result: &v}
	withoutResult := &Instruction{Op: OpStore}
	if !withResult.HasResult() {
		t.Error("HasResult() false for an instruction with a Result")
	}
	if withoutResult.HasResult() {
		t.Error("HasResult() true for an instruction with no Result")
	}
}
