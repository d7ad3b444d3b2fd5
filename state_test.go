package sevm_test

import (
	"testing"

	"github.com/evmlab/sevm"
)

func newTestState(tb testing.TB) *sevm.ExecutionState {
	tb.Helper()
	contract, err := sevm.ParseContract("0x00")
	if err != nil {
		tb.Fatal(err)
	}
	return sevm.NewExecutionState(contract, sevm.NewEnvironment(), sevm.NewCalldata(64), sevm.NewStorage(), 16)
}

func TestExecutionState_Stack(t *testing.T) {
	t.Run("PushPop", func(t *testing.T) {
		s := newTestState(t)
		if !s.Push(sevm.NewConstantExpr(1, 256)) {
			t.Fatal("push failed")
		}
		value, ok := s.Pop()
		if !ok {
			t.Fatal("pop failed")
		} else if c := value.(*sevm.ConstantExpr); c.Uint64() != 1 {
			t.Fatalf("unexpected value: %s", value)
		}
	})

	t.Run("Underflow", func(t *testing.T) {
		s := newTestState(t)
		if _, ok := s.Pop(); ok {
			t.Fatal("expected underflow")
		}
		if s.Status != sevm.ExecutionStatusErrored {
			t.Fatalf("unexpected status: %s", s.Status)
		} else if s.Reason != sevm.ReasonStackUnderflow {
			t.Fatalf("unexpected reason: %s", s.Reason)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		s := newTestState(t)
		for i := 0; i < 16; i++ {
			if !s.Push(sevm.NewConstantExpr(uint64(i), 256)) {
				t.Fatal("push failed")
			}
		}
		if s.Push(sevm.NewConstantExpr(99, 256)) {
			t.Fatal("expected overflow")
		}
		if s.Reason != sevm.ReasonStackOverflow {
			t.Fatalf("unexpected reason: %s", s.Reason)
		}
	})

	t.Run("PopN", func(t *testing.T) {
		s := newTestState(t)
		s.Push(sevm.NewConstantExpr(1, 256))
		s.Push(sevm.NewConstantExpr(2, 256))
		values, ok := s.PopN(2)
		if !ok {
			t.Fatal("popn failed")
		}
		// Top of the stack comes first.
		if values[0].(*sevm.ConstantExpr).Uint64() != 2 {
			t.Fatalf("unexpected order: %v", values)
		} else if values[1].(*sevm.ConstantExpr).Uint64() != 1 {
			t.Fatalf("unexpected order: %v", values)
		}
	})

	t.Run("DupSwap", func(t *testing.T) {
		s := newTestState(t)
		s.Push(sevm.NewConstantExpr(1, 256))
		s.Push(sevm.NewConstantExpr(2, 256))
		if !s.Dup(2) {
			t.Fatal("dup failed")
		}
		if top, _ := s.Pop(); top.(*sevm.ConstantExpr).Uint64() != 1 {
			t.Fatalf("unexpected dup result: %s", top)
		}
		if !s.Swap(1) {
			t.Fatal("swap failed")
		}
		if top, _ := s.Pop(); top.(*sevm.ConstantExpr).Uint64() != 1 {
			t.Fatalf("unexpected swap result: %s", top)
		}
	})
}

func TestExecutionState_AddConstraint(t *testing.T) {
	t.Run("SplitsConjunction", func(t *testing.T) {
		s := newTestState(t)
		x := sevm.NewSymbolExpr("AC_X", 256)
		a := sevm.NewBinaryExpr(sevm.ULT, x, sevm.NewConstantExpr(10, 256))
		b := sevm.NewBinaryExpr(sevm.ULT, sevm.NewConstantExpr(1, 256), x)
		s.AddConstraint(sevm.NewBinaryExpr(sevm.AND, a, b))
		if len(s.Constraints) != 2 {
			t.Fatalf("unexpected constraint count: %d", len(s.Constraints))
		}
	})

	t.Run("DropsConstantTrue", func(t *testing.T) {
		s := newTestState(t)
		s.AddConstraint(sevm.NewBoolConstantExpr(true))
		if len(s.Constraints) != 0 {
			t.Fatalf("unexpected constraint count: %d", len(s.Constraints))
		}
	})
}

func TestExecutionState_Fork(t *testing.T) {
	s := newTestState(t)
	s.ID = 7
	s.Push(sevm.NewConstantExpr(1, 256))

	constraint := sevm.NewBinaryExpr(sevm.ULT, sevm.NewSymbolExpr("FORK_X", 256), sevm.NewConstantExpr(10, 256))
	child := s.Fork(constraint)

	if child.ParentID != 7 {
		t.Fatalf("unexpected parent id: %d", child.ParentID)
	} else if child.Depth != s.Depth+1 {
		t.Fatalf("unexpected depth: %d", child.Depth)
	} else if len(child.Constraints) != len(s.Constraints)+1 {
		t.Fatalf("unexpected constraint count: %d", len(child.Constraints))
	}

	// Mutating the child must not leak into the parent.
	child.Push(sevm.NewConstantExpr(2, 256))
	if len(s.Stack) != 1 {
		t.Fatalf("parent stack changed: %d", len(s.Stack))
	}
}

func TestExecutionState_Fingerprint(t *testing.T) {
	a := newTestState(t)
	b := newTestState(t)
	x := sevm.NewSymbolExpr("FP_X", 256)

	a.Push(x)
	b.Push(x)
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("expected equal fingerprints")
	}

	b.PC = 10
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("expected fingerprints to differ on pc")
	}

	b.PC = a.PC
	b.Push(x)
	if a.Fingerprint() == b.Fingerprint() {
		t.Fatal("expected fingerprints to differ on stack")
	}
}

func TestEnvironment_Symbol(t *testing.T) {
	env := sevm.NewEnvironment()
	a := env.Symbol("CALLER")
	b := env.Symbol("CALLER")
	if a != b {
		t.Fatal("expected memoized symbol")
	}
	if c := env.Symbol("ORIGIN"); c == a {
		t.Fatal("expected distinct symbols per name")
	}

	// Distinct environments never share symbols.
	if other := sevm.NewEnvironment().Symbol("CALLER"); other == a {
		t.Fatal("expected distinct symbols per environment")
	}
}
