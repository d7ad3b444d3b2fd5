package sevm_test

import (
	"testing"

	"github.com/evmlab/sevm"
)

func TestMemory(t *testing.T) {
	t.Run("ReadUnwritten", func(t *testing.T) {
		m := sevm.NewMemory()
		value := m.Read(sevm.NewConstantExpr(0, 256), 32)
		if c, ok := value.(*sevm.ConstantExpr); !ok || !c.Value.IsZero() {
			t.Fatalf("expected zero word, got %s", value)
		}
	})

	t.Run("WriteReadWord", func(t *testing.T) {
		m := sevm.NewMemory()
		m.Write(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(0xcafe, 256))
		value := m.Read(sevm.NewConstantExpr(0, 256), 32)
		if c, ok := value.(*sevm.ConstantExpr); !ok || c.Uint64() != 0xcafe {
			t.Fatalf("unexpected value: %s", value)
		}
	})

	t.Run("WriteByte", func(t *testing.T) {
		m := sevm.NewMemory()
		m.WriteByte(sevm.NewConstantExpr(31, 256), sevm.NewConstantExpr(0x1ff, 256))
		value := m.Read(sevm.NewConstantExpr(0, 256), 32)
		// Only the low byte of the value lands in memory.
		if c, ok := value.(*sevm.ConstantExpr); !ok || c.Uint64() != 0xff {
			t.Fatalf("unexpected value: %s", value)
		}
	})

	t.Run("CloneIsolation", func(t *testing.T) {
		m := sevm.NewMemory()
		m.Write(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(0x11, 256))
		clone := m.Clone()
		m.Write(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(0x22, 256))

		value := clone.Read(sevm.NewConstantExpr(0, 256), 32)
		if c, ok := value.(*sevm.ConstantExpr); !ok || c.Uint64() != 0x11 {
			t.Fatalf("clone observed overwrite: %s", value)
		}
	})

	t.Run("Size", func(t *testing.T) {
		m := sevm.NewMemory()
		if size := m.Size(); size != 0 {
			t.Fatalf("unexpected size: %d", size)
		}
		m.Write(sevm.NewConstantExpr(0, 256), sevm.NewConstantExpr(1, 256))
		if size := m.Size(); size != 32 {
			t.Fatalf("unexpected size: %d", size)
		}
		m.WriteByte(sevm.NewConstantExpr(32, 256), sevm.NewConstantExpr(1, 256))
		if size := m.Size(); size != 64 {
			t.Fatalf("unexpected size: %d", size)
		}
	})

	t.Run("SymbolicOffsetDoesNotTouch", func(t *testing.T) {
		m := sevm.NewMemory()
		m.Write(sevm.NewSymbolExpr("MEMOFF", 256), sevm.NewConstantExpr(1, 256))
		if size := m.Size(); size != 0 {
			t.Fatalf("unexpected size: %d", size)
		}
	})

	t.Run("InBounds", func(t *testing.T) {
		m := sevm.NewMemory()
		if !m.InBounds(sevm.NewConstantExpr(0, 256), 32, 1024) {
			t.Fatal("expected in bounds")
		}
		if m.InBounds(sevm.NewConstantExpr(1000, 256), 32, 1024) {
			t.Fatal("expected out of bounds")
		}
		if !m.InBounds(sevm.NewSymbolExpr("MEMOFF", 256), 32, 1024) {
			t.Fatal("expected symbolic offset to be optimistically in bounds")
		}
	})
}
