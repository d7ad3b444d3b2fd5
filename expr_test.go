package sevm_test

import (
	"testing"

	"github.com/evmlab/sevm"
	"github.com/holiman/uint256"
)

func TestExprWidth(t *testing.T) {
	t.Run("ConstantExpr", func(t *testing.T) {
		if w := sevm.ExprWidth(sevm.NewConstantExpr(0, 8)); w != 8 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("SymbolExpr", func(t *testing.T) {
		if w := sevm.ExprWidth(sevm.NewSymbolExpr("X", 256)); w != 256 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("ConcatExpr", func(t *testing.T) {
		expr := sevm.NewConcatExpr(sevm.NewSymbolExpr("MSB8", 8), sevm.NewSymbolExpr("LSB16", 16))
		if w := sevm.ExprWidth(expr); w != 24 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("ExtractExpr", func(t *testing.T) {
		expr := sevm.NewExtractExpr(sevm.NewSymbolExpr("X32", 32), 8, 16)
		if w := sevm.ExprWidth(expr); w != 16 {
			t.Fatalf("unexpected width: %d", w)
		}
	})
	t.Run("BinaryExpr", func(t *testing.T) {
		t.Run("Bool", func(t *testing.T) {
			expr := sevm.NewBinaryExpr(sevm.EQ, sevm.NewSymbolExpr("A8", 8), sevm.NewSymbolExpr("B8", 8))
			if w := sevm.ExprWidth(expr); w != 1 {
				t.Fatalf("unexpected width: %d", w)
			}
		})
		t.Run("NonBool", func(t *testing.T) {
			expr := sevm.NewBinaryExpr(sevm.ADD, sevm.NewSymbolExpr("A8", 8), sevm.NewSymbolExpr("B8", 8))
			if w := sevm.ExprWidth(expr); w != 8 {
				t.Fatalf("unexpected width: %d", w)
			}
		})
	})
}

func TestBinaryOp_String(t *testing.T) {
	t.Run("Known", func(t *testing.T) {
		if s := sevm.ADD.String(); s != "add" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
	t.Run("Unknown", func(t *testing.T) {
		if s := sevm.BinaryOp(1000).String(); s != "BinaryOp<1000>" {
			t.Fatalf("unexpected string: %s", s)
		}
	})
}

func TestNewBinaryExpr_Fold(t *testing.T) {
	x := sevm.NewSymbolExpr("FOLD_X", 256)

	t.Run("ConstantAdd", func(t *testing.T) {
		expr := sevm.NewBinaryExpr(sevm.ADD, sevm.NewConstantExpr(3, 256), sevm.NewConstantExpr(4, 256))
		if c, ok := expr.(*sevm.ConstantExpr); !ok {
			t.Fatalf("unexpected type: %T", expr)
		} else if c.Uint64() != 7 {
			t.Fatalf("unexpected value: %d", c.Uint64())
		}
	})

	t.Run("AddWraps", func(t *testing.T) {
		max := sevm.NewWordConstant(new(uint256.Int).Not(uint256.NewInt(0)))
		expr := sevm.NewBinaryExpr(sevm.ADD, max, sevm.NewConstantExpr(1, 256))
		if c, ok := expr.(*sevm.ConstantExpr); !ok {
			t.Fatalf("unexpected type: %T", expr)
		} else if !c.Value.IsZero() {
			t.Fatalf("expected wraparound to zero, got %s", c)
		}
	})

	t.Run("SubWraps", func(t *testing.T) {
		expr := sevm.NewBinaryExpr(sevm.SUB, sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(1, 256))
		if c, ok := expr.(*sevm.ConstantExpr); !ok {
			t.Fatalf("unexpected type: %T", expr)
		} else if !c.IsAllOnes() {
			t.Fatalf("expected all ones, got %s", c)
		}
	})

	t.Run("AddIdentity", func(t *testing.T) {
		if expr := sevm.NewBinaryExpr(sevm.ADD, x, sevm.NewConstantExpr(0, 256)); expr != sevm.Expr(x) {
			t.Fatalf("expected identity fold, got %s", expr)
		}
	})

	t.Run("AddConstantMovesLeft", func(t *testing.T) {
		expr := sevm.NewBinaryExpr(sevm.ADD, x, sevm.NewConstantExpr(5, 256))
		bin, ok := expr.(*sevm.BinaryExpr)
		if !ok {
			t.Fatalf("unexpected type: %T", expr)
		} else if !sevm.IsConstantExpr(bin.LHS) {
			t.Fatalf("expected constant on lhs: %s", bin)
		}
	})

	t.Run("AddMergesNestedConstant", func(t *testing.T) {
		inner := sevm.NewBinaryExpr(sevm.ADD, sevm.NewConstantExpr(2, 256), x)
		expr := sevm.NewBinaryExpr(sevm.ADD, sevm.NewConstantExpr(3, 256), inner)
		bin, ok := expr.(*sevm.BinaryExpr)
		if !ok {
			t.Fatalf("unexpected type: %T", expr)
		} else if c, ok := bin.LHS.(*sevm.ConstantExpr); !ok || c.Uint64() != 5 {
			t.Fatalf("expected merged constant 5: %s", bin)
		}
	})

	t.Run("SubSelf", func(t *testing.T) {
		expr := sevm.NewBinaryExpr(sevm.SUB, x, x)
		if c, ok := expr.(*sevm.ConstantExpr); !ok || !c.Value.IsZero() {
			t.Fatalf("expected zero, got %s", expr)
		}
	})

	t.Run("MulByZero", func(t *testing.T) {
		expr := sevm.NewBinaryExpr(sevm.MUL, x, sevm.NewConstantExpr(0, 256))
		if c, ok := expr.(*sevm.ConstantExpr); !ok || !c.Value.IsZero() {
			t.Fatalf("expected zero, got %s", expr)
		}
	})

	t.Run("MulByOne", func(t *testing.T) {
		if expr := sevm.NewBinaryExpr(sevm.MUL, x, sevm.NewConstantExpr(1, 256)); expr != sevm.Expr(x) {
			t.Fatalf("expected identity fold, got %s", expr)
		}
	})

	t.Run("UDivByZero", func(t *testing.T) {
		expr := sevm.NewBinaryExpr(sevm.UDIV, sevm.NewConstantExpr(10, 256), sevm.NewConstantExpr(0, 256))
		if c, ok := expr.(*sevm.ConstantExpr); !ok || !c.Value.IsZero() {
			t.Fatalf("expected zero quotient, got %s", expr)
		}
	})

	t.Run("XorSelf", func(t *testing.T) {
		expr := sevm.NewBinaryExpr(sevm.XOR, x, x)
		if c, ok := expr.(*sevm.ConstantExpr); !ok || !c.Value.IsZero() {
			t.Fatalf("expected zero, got %s", expr)
		}
	})

	t.Run("AndAllOnes", func(t *testing.T) {
		ones := sevm.NewWordConstant(new(uint256.Int).Not(uint256.NewInt(0)))
		if expr := sevm.NewBinaryExpr(sevm.AND, x, ones); expr != sevm.Expr(x) {
			t.Fatalf("expected identity fold, got %s", expr)
		}
	})

	t.Run("OrZero", func(t *testing.T) {
		if expr := sevm.NewBinaryExpr(sevm.OR, x, sevm.NewConstantExpr(0, 256)); expr != sevm.Expr(x) {
			t.Fatalf("expected identity fold, got %s", expr)
		}
	})

	t.Run("ShiftByZero", func(t *testing.T) {
		if expr := sevm.NewBinaryExpr(sevm.SHL, x, sevm.NewConstantExpr(0, 256)); expr != sevm.Expr(x) {
			t.Fatalf("expected identity fold, got %s", expr)
		}
	})

	t.Run("ShiftOverflow", func(t *testing.T) {
		expr := sevm.NewBinaryExpr(sevm.SHL, sevm.NewConstantExpr(1, 256), sevm.NewConstantExpr(256, 256))
		if c, ok := expr.(*sevm.ConstantExpr); !ok || !c.Value.IsZero() {
			t.Fatalf("expected zero, got %s", expr)
		}
	})

	t.Run("EqSelf", func(t *testing.T) {
		if !sevm.IsConstantTrue(sevm.NewBinaryExpr(sevm.EQ, x, x)) {
			t.Fatal("expected constant true")
		}
	})

	t.Run("NeNormalizesToNot", func(t *testing.T) {
		y := sevm.NewSymbolExpr("FOLD_Y", 256)
		expr := sevm.NewBinaryExpr(sevm.NE, x, y)
		if _, ok := expr.(*sevm.NotExpr); !ok {
			t.Fatalf("unexpected type: %T", expr)
		}
	})

	t.Run("UgtReversesToUlt", func(t *testing.T) {
		y := sevm.NewSymbolExpr("FOLD_Y", 256)
		expr := sevm.NewBinaryExpr(sevm.UGT, x, y)
		bin, ok := expr.(*sevm.BinaryExpr)
		if !ok {
			t.Fatalf("unexpected type: %T", expr)
		} else if bin.Op != sevm.ULT {
			t.Fatalf("unexpected op: %s", bin.Op)
		} else if bin.LHS != sevm.Expr(y) || bin.RHS != sevm.Expr(x) {
			t.Fatalf("operands not reversed: %s", bin)
		}
	})

	t.Run("UltBelowZero", func(t *testing.T) {
		if !sevm.IsConstantFalse(sevm.NewBinaryExpr(sevm.ULT, x, sevm.NewConstantExpr(0, 256))) {
			t.Fatal("expected constant false")
		}
	})

	t.Run("SignedCompare", func(t *testing.T) {
		minusOne := sevm.NewWordConstant(new(uint256.Int).Not(uint256.NewInt(0)))
		if !sevm.IsConstantTrue(sevm.NewBinaryExpr(sevm.SLT, minusOne, sevm.NewConstantExpr(0, 256))) {
			t.Fatal("expected -1 < 0 signed")
		}
		if !sevm.IsConstantFalse(sevm.NewBinaryExpr(sevm.ULT, minusOne, sevm.NewConstantExpr(0, 256))) {
			t.Fatal("expected max >= 0 unsigned")
		}
	})
	t.Run("SignedCompareLimbBoundary", func(t *testing.T) {
		// Sign bit of a 64-bit operand sits at the top of the first limb.
		min64 := sevm.NewConstantExpr(0x8000000000000000, 64)
		if !sevm.IsConstantTrue(sevm.NewBinaryExpr(sevm.SLT, min64, sevm.NewConstantExpr(0, 64))) {
			t.Fatal("expected int64 min < 0 signed")
		}
	})
}

func TestExpr_Interning(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		a := sevm.NewConstantExpr(42, 256)
		b := sevm.NewConstantExpr(42, 256)
		if a != b {
			t.Fatal("expected identical constants to intern to the same pointer")
		}
	})
	t.Run("ConstantWidthDiffers", func(t *testing.T) {
		a := sevm.NewConstantExpr(42, 256)
		b := sevm.NewConstantExpr(42, 8)
		if sevm.Expr(a) == sevm.Expr(b) {
			t.Fatal("expected constants of different widths to differ")
		}
	})
	t.Run("Symbol", func(t *testing.T) {
		a := sevm.NewSymbolExpr("INTERN_S", 256)
		b := sevm.NewSymbolExpr("INTERN_S", 256)
		if a != b {
			t.Fatal("expected identical symbols to intern to the same pointer")
		}
	})
	t.Run("Binary", func(t *testing.T) {
		x := sevm.NewSymbolExpr("INTERN_X", 256)
		y := sevm.NewSymbolExpr("INTERN_Y", 256)
		a := sevm.NewBinaryExpr(sevm.ADD, x, y)
		b := sevm.NewBinaryExpr(sevm.ADD, x, y)
		if a != b {
			t.Fatal("expected identical expressions to intern to the same pointer")
		}
		if sevm.ExprID(a) != sevm.ExprID(b) {
			t.Fatal("expected identical expressions to share an id")
		}
	})
	t.Run("Sha3", func(t *testing.T) {
		b0 := sevm.NewSymbolExpr("INTERN_B0", 8)
		b1 := sevm.NewSymbolExpr("INTERN_B1", 8)
		a := sevm.NewSha3Expr([]sevm.Expr{b0, b1})
		b := sevm.NewSha3Expr([]sevm.Expr{b0, b1})
		if a != b {
			t.Fatal("expected identical sha3 expressions to intern to the same pointer")
		}

		// Determinism falls out of interning: equal applications fold to
		// a constant-true equality.
		if !sevm.IsConstantTrue(sevm.NewBinaryExpr(sevm.EQ, a, b)) {
			t.Fatal("expected equal digests to fold to true")
		}
	})
}

func TestNewNotExpr(t *testing.T) {
	t.Run("DoubleNegation", func(t *testing.T) {
		cond := sevm.NewBinaryExpr(sevm.ULT, sevm.NewSymbolExpr("NOT_X", 256), sevm.NewSymbolExpr("NOT_Y", 256))
		if expr := sevm.NewNotExpr(sevm.NewNotExpr(cond)); expr != cond {
			t.Fatalf("expected double negation to cancel, got %s", expr)
		}
	})
	t.Run("Constant", func(t *testing.T) {
		if !sevm.IsConstantFalse(sevm.NewNotExpr(sevm.NewBoolConstantExpr(true))) {
			t.Fatal("expected constant false")
		}
	})
}

func TestNewIsZeroExpr(t *testing.T) {
	if !sevm.IsConstantTrue(sevm.NewIsZeroExpr(sevm.NewConstantExpr(0, 256))) {
		t.Fatal("expected constant true")
	}
	if !sevm.IsConstantFalse(sevm.NewIsZeroExpr(sevm.NewConstantExpr(7, 256))) {
		t.Fatal("expected constant false")
	}
}

func TestNewCastExpr(t *testing.T) {
	t.Run("ZExtConstant", func(t *testing.T) {
		c := sevm.NewCastExpr(sevm.NewConstantExpr(0x80, 8), 256, false).(*sevm.ConstantExpr)
		if c.Uint64() != 0x80 || c.Width != 256 {
			t.Fatalf("unexpected cast result: %s", c)
		}
	})
	t.Run("SExtConstant", func(t *testing.T) {
		c := sevm.NewCastExpr(sevm.NewConstantExpr(0x80, 8), 16, true).(*sevm.ConstantExpr)
		if c.Uint64() != 0xff80 {
			t.Fatalf("unexpected cast result: %s", c)
		}
	})
	t.Run("SExtLimbBoundary", func(t *testing.T) {
		// Sign bit 63 is the last bit of the first limb.
		c := sevm.NewCastExpr(sevm.NewConstantExpr(0x8000000000000000, 64), 128, true).(*sevm.ConstantExpr)
		if want := uint256.MustFromHex("0xffffffffffffffff8000000000000000"); !c.Value.Eq(want) {
			t.Fatalf("unexpected cast result: %s", c)
		}
	})
	t.Run("SExtAboveLimb", func(t *testing.T) {
		// Sign bit 64 lives in the second limb.
		src := sevm.NewConcatExpr(sevm.NewConstantExpr(1, 1), sevm.NewConstantExpr(0, 64)).(*sevm.ConstantExpr)
		c := sevm.NewCastExpr(src, 128, true).(*sevm.ConstantExpr)
		if want := uint256.MustFromHex("0xffffffffffffffff0000000000000000"); !c.Value.Eq(want) {
			t.Fatalf("unexpected cast result: %s", c)
		}
	})
	t.Run("SameWidth", func(t *testing.T) {
		x := sevm.NewSymbolExpr("CAST_X", 256)
		if expr := sevm.NewCastExpr(x, 256, false); expr != sevm.Expr(x) {
			t.Fatalf("expected no-op cast, got %s", expr)
		}
	})
}

func TestNewExtractExpr(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		c := sevm.NewExtractExpr(sevm.NewConstantExpr(0xabcd, 16), 8, 8).(*sevm.ConstantExpr)
		if c.Uint64() != 0xab {
			t.Fatalf("unexpected extract result: %s", c)
		}
	})
	t.Run("FullWidth", func(t *testing.T) {
		x := sevm.NewSymbolExpr("EXT_X", 16)
		if expr := sevm.NewExtractExpr(x, 0, 16); expr != sevm.Expr(x) {
			t.Fatalf("expected identity extract, got %s", expr)
		}
	})
	t.Run("ConcatLSB", func(t *testing.T) {
		msb := sevm.NewSymbolExpr("EXT_MSB", 8)
		lsb := sevm.NewSymbolExpr("EXT_LSB", 8)
		expr := sevm.NewExtractExpr(sevm.NewConcatExpr(msb, lsb), 0, 8)
		if expr != sevm.Expr(lsb) {
			t.Fatalf("expected extract to reach through concat, got %s", expr)
		}
	})
}

func TestNewIteExpr(t *testing.T) {
	x := sevm.NewSymbolExpr("ITE_X", 256)
	y := sevm.NewSymbolExpr("ITE_Y", 256)
	cond := sevm.NewBinaryExpr(sevm.ULT, x, y)

	t.Run("ConstantCond", func(t *testing.T) {
		if expr := sevm.NewIteExpr(sevm.NewBoolConstantExpr(true), x, y); expr != sevm.Expr(x) {
			t.Fatalf("expected then arm, got %s", expr)
		}
		if expr := sevm.NewIteExpr(sevm.NewBoolConstantExpr(false), x, y); expr != sevm.Expr(y) {
			t.Fatalf("expected else arm, got %s", expr)
		}
	})
	t.Run("EqualArms", func(t *testing.T) {
		if expr := sevm.NewIteExpr(cond, x, x); expr != sevm.Expr(x) {
			t.Fatalf("expected arm fold, got %s", expr)
		}
	})
}

func TestCompareExpr(t *testing.T) {
	a := sevm.NewConstantExpr(1, 256)
	b := sevm.NewConstantExpr(2, 256)
	x := sevm.NewSymbolExpr("CMP_X", 256)

	t.Run("Equal", func(t *testing.T) {
		if cmp := sevm.CompareExpr(a, a); cmp != 0 {
			t.Fatalf("unexpected cmp: %d", cmp)
		}
	})
	t.Run("Antisymmetric", func(t *testing.T) {
		if sevm.CompareExpr(a, b) != -sevm.CompareExpr(b, a) {
			t.Fatal("expected antisymmetric comparison")
		}
		if sevm.CompareExpr(a, x) != -sevm.CompareExpr(x, a) {
			t.Fatal("expected antisymmetric comparison across kinds")
		}
	})
}

func TestFindSymbols(t *testing.T) {
	x := sevm.NewSymbolExpr("FIND_X", 256)
	y := sevm.NewSymbolExpr("FIND_Y", 256)
	expr := sevm.NewBinaryExpr(sevm.ADD, sevm.NewBinaryExpr(sevm.ADD, x, y), x)

	symbols := sevm.FindSymbols(expr)
	if len(symbols) != 2 {
		t.Fatalf("unexpected symbol count: %d", len(symbols))
	}
}
