package sevm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/immutable"
	"github.com/holiman/uint256"
)

var storageSeq uint64

// Storage represents the persistent key/value store of a contract as seen
// by one state: an ordered overlay of symbolic writes on top of a shared
// base of concrete slots and, optionally, a backing StateSource.
//
// Reads with concrete keys resolve through the overlay and base; unknown
// slots read as memoized fresh symbols so the same slot always reads the
// same unknown. Reads with symbolic keys produce an if-then-else chain
// over the overlay, newest write first.
type Storage struct {
	writes *storageWrite // overlay, newest first
	base   *storageBase  // shared across all forks of a run
}

// storageWrite is one SSTORE in the overlay chain.
type storageWrite struct {
	Key   Expr
	Value Expr
	Next  *storageWrite
}

// storageBase holds the fork-shared backing of a contract's storage.
type storageBase struct {
	id     uint64
	source StateSource

	mu       sync.Mutex
	concrete *immutable.SortedMap    // *uint256.Int -> Expr
	symbols  map[string]*SymbolExpr  // slot hex -> memoized unknown
}

// NewStorage returns empty storage with no backing: every slot reads as
// an unconstrained symbol.
func NewStorage() *Storage {
	return NewBackedStorage(nil)
}

// NewBackedStorage returns storage backed by source. A nil source behaves
// like NewStorage.
func NewBackedStorage(source StateSource) *Storage {
	return &Storage{
		base: &storageBase{
			id:       atomic.AddUint64(&storageSeq, 1),
			source:   source,
			concrete: immutable.NewSortedMap(&wordComparer{}),
			symbols:  make(map[string]*SymbolExpr),
		},
	}
}

// Source returns the backing state source, or nil.
func (s *Storage) Source() StateSource { return s.base.source }

// Clone returns a copy of the storage sharing the overlay and base.
func (s *Storage) Clone() *Storage {
	other := *s
	return &other
}

// SetSlot seeds a concrete slot value on the shared base. Must be called
// before exploration starts.
func (s *Storage) SetSlot(slot, value *uint256.Int) {
	s.base.mu.Lock()
	defer s.base.mu.Unlock()
	s.base.concrete = s.base.concrete.Set(new(uint256.Int).Set(slot), Expr(NewWordConstant(value)))
}

// Write returns a copy of the storage with value stored at key.
func (s *Storage) Write(key, value Expr) *Storage {
	other := s.Clone()
	other.writes = &storageWrite{
		Key:   newZExtExpr(key, WidthWord),
		Value: newZExtExpr(value, WidthWord),
		Next:  s.writes,
	}
	return other
}

// Read returns the word stored at key.
func (s *Storage) Read(key Expr) Expr {
	key = newZExtExpr(key, WidthWord)

	// Walk the overlay newest-first. A concrete mismatch skips the write;
	// the first symbolic comparison forces an ite chain over the rest.
	for w := s.writes; w != nil; w = w.Next {
		cond := NewBinaryExpr(EQ, key, w.Key)
		if c, ok := cond.(*ConstantExpr); ok {
			if c.IsTrue() {
				return w.Value
			}
			continue
		}
		return NewIteExpr(cond, w.Value, s.readOverlay(key, w.Next))
	}
	return s.readBase(key)
}

// readOverlay resolves key against the overlay starting at w.
func (s *Storage) readOverlay(key Expr, w *storageWrite) Expr {
	for ; w != nil; w = w.Next {
		cond := NewBinaryExpr(EQ, key, w.Key)
		if c, ok := cond.(*ConstantExpr); ok {
			if c.IsTrue() {
				return w.Value
			}
			continue
		}
		return NewIteExpr(cond, w.Value, s.readOverlay(key, w.Next))
	}
	return s.readBase(key)
}

// readBase resolves key against the shared concrete slots, the backing
// source, and finally a memoized fresh symbol.
func (s *Storage) readBase(key Expr) Expr {
	keyConst, ok := key.(*ConstantExpr)
	if !ok {
		// A symbolic key over the base reads a single unknown per
		// distinct key expression.
		return s.symbolFor(fmt.Sprintf("expr%d", ExprID(key)))
	}

	s.base.mu.Lock()
	if v, ok := s.base.concrete.Get(keyConst.Value); ok {
		s.base.mu.Unlock()
		return v.(Expr)
	}
	s.base.mu.Unlock()

	if s.base.source != nil {
		if v, ok := s.base.source.StorageAt(keyConst.Value); ok {
			expr := NewWordConstant(v)
			s.base.mu.Lock()
			s.base.concrete = s.base.concrete.Set(new(uint256.Int).Set(keyConst.Value), Expr(expr))
			s.base.mu.Unlock()
			return expr
		}
	}
	return s.symbolFor(keyConst.Value.Hex())
}

// symbolFor returns the memoized unknown-slot symbol for a key.
func (s *Storage) symbolFor(key string) Expr {
	s.base.mu.Lock()
	defer s.base.mu.Unlock()
	if sym, ok := s.base.symbols[key]; ok {
		return sym
	}
	sym := NewSymbolExpr(fmt.Sprintf("STORAGE_%d_%s", s.base.id, key), WidthWord)
	s.base.symbols[key] = sym
	return sym
}

// wordComparer compares two 256-bit words. Implements immutable.Comparer.
type wordComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b,
// and returns 0 if a is equal to b. Panic if a or b is not a *uint256.Int.
func (c *wordComparer) Compare(a, b interface{}) int {
	return a.(*uint256.Int).Cmp(b.(*uint256.Int))
}
