package sevm_test

import (
	"testing"

	"github.com/evmlab/sevm"
)

func TestKeccak256(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		digest := sevm.Keccak256(nil)
		if got := digest.Hex(); got != "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470" {
			t.Fatalf("unexpected digest: %s", got)
		}
	})
	t.Run("ABC", func(t *testing.T) {
		digest := sevm.Keccak256([]byte("abc"))
		if got := digest.Hex(); got != "0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45" {
			t.Fatalf("unexpected digest: %s", got)
		}
	})
}

func TestConstantBytes(t *testing.T) {
	b := sevm.ConstantBytes(sevm.NewConstantExpr(0x1122, 16))
	if len(b) != 2 || b[0] != 0x11 || b[1] != 0x22 {
		t.Fatalf("unexpected bytes: %x", b)
	}
}

func TestSha3Axioms(t *testing.T) {
	a0 := sevm.NewSymbolExpr("AX_A0", 8)
	a1 := sevm.NewSymbolExpr("AX_A1", 8)
	b0 := sevm.NewSymbolExpr("AX_B0", 8)
	b1 := sevm.NewSymbolExpr("AX_B1", 8)

	t.Run("EqualWidth", func(t *testing.T) {
		x := sevm.NewSha3Expr([]sevm.Expr{a0, a1})
		y := sevm.NewSha3Expr([]sevm.Expr{b0, b1})
		cond := sevm.NewBinaryExpr(sevm.EQ, x, y)

		axioms := sevm.Sha3Axioms(cond)
		if len(axioms) != 1 {
			t.Fatalf("unexpected axiom count: %d", len(axioms))
		}
		// The axiom ties digest equality to source equality.
		if bin, ok := axioms[0].(*sevm.BinaryExpr); !ok || bin.Op != sevm.EQ {
			t.Fatalf("unexpected axiom shape: %s", axioms[0])
		}
	})

	t.Run("DifferentWidth", func(t *testing.T) {
		x := sevm.NewSha3Expr([]sevm.Expr{a0, a1})
		y := sevm.NewSha3Expr([]sevm.Expr{b0})
		cond := sevm.NewBinaryExpr(sevm.EQ, x, y)

		axioms := sevm.Sha3Axioms(cond)
		if len(axioms) != 1 {
			t.Fatalf("unexpected axiom count: %d", len(axioms))
		}
		// Different source widths can never collide.
		if _, ok := axioms[0].(*sevm.NotExpr); !ok {
			t.Fatalf("unexpected axiom shape: %s", axioms[0])
		}
	})

	t.Run("NoApplications", func(t *testing.T) {
		cond := sevm.NewBinaryExpr(sevm.ULT, sevm.NewSymbolExpr("AX_X", 256), sevm.NewConstantExpr(1, 256))
		if axioms := sevm.Sha3Axioms(cond); len(axioms) != 0 {
			t.Fatalf("unexpected axiom count: %d", len(axioms))
		}
	})
}
