package sevm

import (
	"sync"

	"github.com/holiman/uint256"
)

// StateSource provides concrete chain state to back symbolic execution.
// Lookups return false when the source has no answer, in which case the
// engine falls back to its configured defaults or to fresh symbols.
//
// Implementations must be safe for concurrent use.
type StateSource interface {
	// StorageAt returns the value of a storage slot of the executing
	// contract.
	StorageAt(slot *uint256.Int) (*uint256.Int, bool)

	// CodeSizeAt returns the code size of an external account.
	CodeSizeAt(addr *uint256.Int) (uint64, bool)

	// BalanceAt returns the balance of an account.
	BalanceAt(addr *uint256.Int) (*uint256.Int, bool)
}

// MapStateSource is an in-memory StateSource backed by maps, keyed by the
// hex form of slots and addresses. Useful for tests and replaying fixed
// chain snapshots.
type MapStateSource struct {
	mu        sync.RWMutex
	storage   map[string]*uint256.Int
	codeSizes map[string]uint64
	balances  map[string]*uint256.Int
}

// NewMapStateSource returns a new empty MapStateSource.
func NewMapStateSource() *MapStateSource {
	return &MapStateSource{
		storage:   make(map[string]*uint256.Int),
		codeSizes: make(map[string]uint64),
		balances:  make(map[string]*uint256.Int),
	}
}

// SetStorage sets the value of a storage slot.
func (s *MapStateSource) SetStorage(slot, value *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage[slot.Hex()] = new(uint256.Int).Set(value)
}

// SetCodeSize sets the code size of an account.
func (s *MapStateSource) SetCodeSize(addr *uint256.Int, n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeSizes[addr.Hex()] = n
}

// SetBalance sets the balance of an account.
func (s *MapStateSource) SetBalance(addr, value *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr.Hex()] = new(uint256.Int).Set(value)
}

// StorageAt implements StateSource.
func (s *MapStateSource) StorageAt(slot *uint256.Int) (*uint256.Int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.storage[slot.Hex()]
	return v, ok
}

// CodeSizeAt implements StateSource.
func (s *MapStateSource) CodeSizeAt(addr *uint256.Int) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.codeSizes[addr.Hex()]
	return n, ok
}

// BalanceAt implements StateSource.
func (s *MapStateSource) BalanceAt(addr *uint256.Int) (*uint256.Int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.balances[addr.Hex()]
	return v, ok
}

// CachedStateSource memoizes lookups against a slower backing source,
// typically one that queries a remote node.
type CachedStateSource struct {
	src StateSource

	mu        sync.Mutex
	storage   map[string]cachedWord
	codeSizes map[string]cachedSize
	balances  map[string]cachedWord
}

type cachedWord struct {
	value *uint256.Int
	ok    bool
}

type cachedSize struct {
	value uint64
	ok    bool
}

// NewCachedStateSource returns a caching wrapper around src.
func NewCachedStateSource(src StateSource) *CachedStateSource {
	return &CachedStateSource{
		src:       src,
		storage:   make(map[string]cachedWord),
		codeSizes: make(map[string]cachedSize),
		balances:  make(map[string]cachedWord),
	}
}

// StorageAt implements StateSource.
func (s *CachedStateSource) StorageAt(slot *uint256.Int) (*uint256.Int, bool) {
	key := slot.Hex()
	s.mu.Lock()
	if c, ok := s.storage[key]; ok {
		s.mu.Unlock()
		return c.value, c.ok
	}
	s.mu.Unlock()

	v, ok := s.src.StorageAt(slot)
	s.mu.Lock()
	s.storage[key] = cachedWord{value: v, ok: ok}
	s.mu.Unlock()
	return v, ok
}

// CodeSizeAt implements StateSource.
func (s *CachedStateSource) CodeSizeAt(addr *uint256.Int) (uint64, bool) {
	key := addr.Hex()
	s.mu.Lock()
	if c, ok := s.codeSizes[key]; ok {
		s.mu.Unlock()
		return c.value, c.ok
	}
	s.mu.Unlock()

	n, ok := s.src.CodeSizeAt(addr)
	s.mu.Lock()
	s.codeSizes[key] = cachedSize{value: n, ok: ok}
	s.mu.Unlock()
	return n, ok
}

// BalanceAt implements StateSource.
func (s *CachedStateSource) BalanceAt(addr *uint256.Int) (*uint256.Int, bool) {
	key := addr.Hex()
	s.mu.Lock()
	if c, ok := s.balances[key]; ok {
		s.mu.Unlock()
		return c.value, c.ok
	}
	s.mu.Unlock()

	v, ok := s.src.BalanceAt(addr)
	s.mu.Lock()
	s.balances[key] = cachedWord{value: v, ok: ok}
	s.mu.Unlock()
	return v, ok
}
