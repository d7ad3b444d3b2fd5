package sevm_test

import (
	"testing"

	"github.com/evmlab/sevm"
	"github.com/holiman/uint256"
)

// countingStateSource counts lookups that reach the backing source.
type countingStateSource struct {
	src      sevm.StateSource
	storageN int
	sizeN    int
	balanceN int
}

func (s *countingStateSource) StorageAt(slot *uint256.Int) (*uint256.Int, bool) {
	s.storageN++
	return s.src.StorageAt(slot)
}

func (s *countingStateSource) CodeSizeAt(addr *uint256.Int) (uint64, bool) {
	s.sizeN++
	return s.src.CodeSizeAt(addr)
}

func (s *countingStateSource) BalanceAt(addr *uint256.Int) (*uint256.Int, bool) {
	s.balanceN++
	return s.src.BalanceAt(addr)
}

func TestMapStateSource(t *testing.T) {
	src := sevm.NewMapStateSource()
	src.SetStorage(uint256.NewInt(1), uint256.NewInt(100))
	src.SetCodeSize(uint256.NewInt(0xabc), 42)
	src.SetBalance(uint256.NewInt(0xabc), uint256.NewInt(7))

	if v, ok := src.StorageAt(uint256.NewInt(1)); !ok || v.Uint64() != 100 {
		t.Fatalf("unexpected storage: %v %v", v, ok)
	}
	if _, ok := src.StorageAt(uint256.NewInt(2)); ok {
		t.Fatal("expected miss")
	}
	if n, ok := src.CodeSizeAt(uint256.NewInt(0xabc)); !ok || n != 42 {
		t.Fatalf("unexpected code size: %d %v", n, ok)
	}
	if v, ok := src.BalanceAt(uint256.NewInt(0xabc)); !ok || v.Uint64() != 7 {
		t.Fatalf("unexpected balance: %v %v", v, ok)
	}
}

func TestCachedStateSource(t *testing.T) {
	backing := sevm.NewMapStateSource()
	backing.SetStorage(uint256.NewInt(1), uint256.NewInt(100))

	counting := &countingStateSource{src: backing}
	src := sevm.NewCachedStateSource(counting)

	t.Run("Hit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			if v, ok := src.StorageAt(uint256.NewInt(1)); !ok || v.Uint64() != 100 {
				t.Fatalf("unexpected storage: %v %v", v, ok)
			}
		}
		if counting.storageN != 1 {
			t.Fatalf("unexpected backing lookups: %d", counting.storageN)
		}
	})

	t.Run("NegativeHit", func(t *testing.T) {
		// Misses are memoized too.
		for i := 0; i < 3; i++ {
			if _, ok := src.StorageAt(uint256.NewInt(9)); ok {
				t.Fatal("expected miss")
			}
		}
		if counting.storageN != 2 {
			t.Fatalf("unexpected backing lookups: %d", counting.storageN)
		}
	})

	t.Run("CodeSize", func(t *testing.T) {
		backing.SetCodeSize(uint256.NewInt(0xabc), 42)
		src.CodeSizeAt(uint256.NewInt(0xabc))
		src.CodeSizeAt(uint256.NewInt(0xabc))
		if counting.sizeN != 1 {
			t.Fatalf("unexpected backing lookups: %d", counting.sizeN)
		}
	})

	t.Run("Balance", func(t *testing.T) {
		backing.SetBalance(uint256.NewInt(0xabc), uint256.NewInt(7))
		src.BalanceAt(uint256.NewInt(0xabc))
		src.BalanceAt(uint256.NewInt(0xabc))
		if counting.balanceN != 1 {
			t.Fatalf("unexpected backing lookups: %d", counting.balanceN)
		}
	})
}
