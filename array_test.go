package sevm_test

import (
	"testing"

	"github.com/evmlab/sevm"
)

func TestArray_SelectStore(t *testing.T) {
	t.Run("ConcreteRoundtrip", func(t *testing.T) {
		a := sevm.NewZeroArray("TESTMEM", 0)
		a = a.Store(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(0x1122, 16))

		value := a.Select(sevm.NewConstantExpr(0, 256), 2)
		if c, ok := value.(*sevm.ConstantExpr); !ok {
			t.Fatalf("unexpected type: %T", value)
		} else if c.Uint64() != 0x1122 {
			t.Fatalf("unexpected value: %#x", c.Uint64())
		}
	})

	t.Run("BigEndian", func(t *testing.T) {
		a := sevm.NewZeroArray("TESTMEM", 0)
		a = a.Store(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(0x1122, 16))

		// The most significant byte is stored at the lowest offset.
		msb := a.Select(sevm.NewConstantExpr(0, 256), 1)
		if c, ok := msb.(*sevm.ConstantExpr); !ok || c.Uint64() != 0x11 {
			t.Fatalf("unexpected msb: %s", msb)
		}
		lsb := a.Select(sevm.NewConstantExpr(1, 256), 1)
		if c, ok := lsb.(*sevm.ConstantExpr); !ok || c.Uint64() != 0x22 {
			t.Fatalf("unexpected lsb: %s", lsb)
		}
	})

	t.Run("ZeroBaseReadsZero", func(t *testing.T) {
		a := sevm.NewZeroArray("TESTMEM", 0)
		value := a.Select(sevm.NewConstantExpr(100, 256), 1)
		if c, ok := value.(*sevm.ConstantExpr); !ok || !c.Value.IsZero() {
			t.Fatalf("expected zero byte, got %s", value)
		}
	})

	t.Run("SymbolicBaseReadsSelect", func(t *testing.T) {
		a := sevm.NewArray("TESTCD", 32)
		value := a.Select(sevm.NewConstantExpr(0, 256), 1)
		if _, ok := value.(*sevm.SelectExpr); !ok {
			t.Fatalf("unexpected type: %T", value)
		}
	})

	t.Run("NewestWriteWins", func(t *testing.T) {
		a := sevm.NewZeroArray("TESTMEM", 0)
		a = a.Store(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(0x11, 8))
		a = a.Store(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(0x22, 8))

		value := a.Select(sevm.NewConstantExpr(0, 256), 1)
		if c, ok := value.(*sevm.ConstantExpr); !ok || c.Uint64() != 0x22 {
			t.Fatalf("unexpected value: %s", value)
		}
	})

	t.Run("StoreDoesNotMutateReceiver", func(t *testing.T) {
		a := sevm.NewZeroArray("TESTMEM", 0)
		a = a.Store(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(0x11, 8))

		// A clone sharing the chain must keep observing the old value
		// after the original is overwritten.
		clone := a.Clone()
		a.Store(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(0x22, 8))

		value := clone.Select(sevm.NewConstantExpr(0, 256), 1)
		if c, ok := value.(*sevm.ConstantExpr); !ok || c.Uint64() != 0x11 {
			t.Fatalf("clone observed overwrite: %s", value)
		}
	})

	t.Run("SymbolicWriteStopsResolution", func(t *testing.T) {
		a := sevm.NewZeroArray("TESTMEM", 0)
		a = a.Store(sevm.NewSymbolExpr("IDX", 256), sevm.NewConstantExpr(0x11, 8))

		// A read below a symbolic write cannot resolve concretely.
		value := a.Select(sevm.NewConstantExpr(0, 256), 1)
		if _, ok := value.(*sevm.SelectExpr); !ok {
			t.Fatalf("unexpected type: %T", value)
		}
	})
}

func TestCompareArray(t *testing.T) {
	a := sevm.NewZeroArray("CMP_A", 0)
	b := sevm.NewZeroArray("CMP_B", 0)

	if cmp := sevm.CompareArray(a, a); cmp != 0 {
		t.Fatalf("unexpected cmp: %d", cmp)
	}
	if sevm.CompareArray(a, b) != -sevm.CompareArray(b, a) {
		t.Fatal("expected antisymmetric comparison")
	}

	// Same array, diverging update chains.
	c := a.Store(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(1, 8))
	if cmp := sevm.CompareArray(a, c); cmp == 0 {
		t.Fatal("expected updated array to differ")
	}
}
