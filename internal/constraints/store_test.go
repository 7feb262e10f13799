package constraints

import (
	"errors"
	"testing"

	"github.com/funvibe/infoflow/internal/kit"
	"github.com/funvibe/infoflow/internal/lattice"
)

func TestAddExpandsJoinLHS(t *testing.T) {
	alg := lattice.NewAlgebra()
	s := New(alg)
	v1, v2 := alg.NewVar("a"), alg.NewVar("b")
	joined := alg.Join(v1, v2)

	s.Add(KindDefault, joined, lattice.High())

	list := s.Peek(KindDefault)
	if len(list) != 2 {
		t.Fatalf("Add with a Join lhs produced %d constraints, want 2", len(list))
	}
	stats := s.Stats(KindDefault)
	if stats.Explicit != 2 {
		t.Fatalf("Stats.Explicit = %d, want 2", stats.Explicit)
	}
}

func TestAddJoinAsRHSPanics(t *testing.T) {
	alg := lattice.NewAlgebra()
	s := New(alg)
	v1, v2 := alg.NewVar("a"), alg.NewVar("b")
	joined := alg.Join(v1, v2)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Add with a Join rhs did not panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, kit.ErrJoinAsRHS) {
			t.Fatalf("panic does not wrap ErrJoinAsRHS: %v", r)
		}
	}()
	s.Add(KindDefault, lattice.Low(), joined)
}

func TestAddToLockedKindPanics(t *testing.T) {
	alg := lattice.NewAlgebra()
	s := New(alg)
	s.Add(KindDefault, lattice.Low(), lattice.High())
	s.LockAndTake(KindDefault)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Add to a locked kind did not panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, kit.ErrKindLocked) {
			t.Fatalf("panic does not wrap ErrKindLocked: %v", r)
		}
	}()
	s.Add(KindDefault, lattice.Low(), lattice.High())
}

func TestLockAndTakeIsOneShot(t *testing.T) {
	alg := lattice.NewAlgebra()
	s := New(alg)
	s.Add(KindDefault, lattice.Low(), lattice.High())

	first := s.LockAndTake(KindDefault)
	if len(first) != 1 {
		t.Fatalf("first LockAndTake returned %d constraints, want 1", len(first))
	}
	second := s.LockAndTake(KindDefault)
	if second != nil {
		t.Fatalf("second LockAndTake returned %v, want nil", second)
	}
	if !s.Locked(KindDefault) {
		t.Fatal("Locked() false after LockAndTake")
	}
}

func TestExplicitVsImplicitStats(t *testing.T) {
	alg := lattice.NewAlgebra()
	s := New(alg)
	s.Add(KindDefault, lattice.Low(), lattice.High())
	s.Add(KindImplicit, lattice.Low(), lattice.High())
	s.Add(KindImplicitSinks, lattice.Low(), lattice.High())

	if got := s.Stats(KindDefault); got.Explicit != 1 || got.Implicit != 0 {
		t.Fatalf("default stats = %+v, want {Explicit:1 Implicit:0}", got)
	}
	if got := s.Stats(KindImplicit); got.Explicit != 0 || got.Implicit != 1 {
		t.Fatalf("implicit stats = %+v, want {Explicit:0 Implicit:1}", got)
	}
	if got := s.Stats(KindImplicitSinks); got.Explicit != 0 || got.Implicit != 1 {
		t.Fatalf("implicit-sinks stats = %+v, want {Explicit:0 Implicit:1}", got)
	}
}

func TestKindsAndExists(t *testing.T) {
	alg := lattice.NewAlgebra()
	s := New(alg)
	if s.Exists(KindDefault) {
		t.Fatal("Exists true before any Add")
	}
	s.Add(KindDefault, lattice.Low(), lattice.High())
	if !s.Exists(KindDefault) {
		t.Fatal("Exists false after Add")
	}
	names := s.Kinds()
	if len(names) != 1 || names[0] != KindDefault {
		t.Fatalf("Kinds() = %v, want [%s]", names, KindDefault)
	}
}

func TestPeekDoesNotLock(t *testing.T) {
	alg := lattice.NewAlgebra()
	s := New(alg)
	s.Add(KindDefault, lattice.Low(), lattice.High())
	_ = s.Peek(KindDefault)
	if s.Locked(KindDefault) {
		t.Fatal("Peek locked the kind")
	}
	// still addable after Peek
	s.Add(KindDefault, lattice.Low(), lattice.High())
	if len(s.Peek(KindDefault)) != 2 {
		t.Fatal("Add after Peek did not append")
	}
}
