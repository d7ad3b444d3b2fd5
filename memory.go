package sevm

import (
	"fmt"
	"sync/atomic"
)

var memorySeq uint64

// Memory represents the zero-initialized byte memory of a single state.
// Words are stored big-endian. The touched high-water mark backs MSIZE
// and is only advanced by concrete offsets; symbolic offsets leave it
// unchanged.
type Memory struct {
	arr       *Array
	watermark uint64 // one past the highest touched byte
}

// NewMemory returns a new empty Memory.
func NewMemory() *Memory {
	return &Memory{
		arr: NewZeroArray(fmt.Sprintf("MEM_%d", atomic.AddUint64(&memorySeq, 1)), 0),
	}
}

// Clone returns a copy of the memory sharing the underlying update chain.
func (m *Memory) Clone() *Memory {
	other := *m
	return &other
}

// Read returns width bytes at offset as a big-endian value.
func (m *Memory) Read(offset Expr, width uint) Expr {
	m.touch(offset, uint64(width))
	return m.arr.Select(offset, width)
}

// ReadBytes returns n individual byte expressions starting at offset.
func (m *Memory) ReadBytes(offset Expr, n uint64) []Expr {
	m.touch(offset, n)
	offset = newZExtExpr(offset, WidthWord)
	a := make([]Expr, n)
	for i := uint64(0); i < n; i++ {
		a[i] = m.arr.selectByte(NewBinaryExpr(ADD, offset, NewConstantExpr(i, WidthWord)))
	}
	return a
}

// Write stores value at offset as big-endian bytes.
func (m *Memory) Write(offset, value Expr) {
	m.touch(offset, uint64(ExprWidth(value))/8)
	m.arr = m.arr.Store(offset, value)
}

// WriteByte stores the low byte of value at offset.
func (m *Memory) WriteByte(offset, value Expr) {
	m.Write(offset, NewExtractExpr(value, 0, WidthByte))
}

// Size returns the MSIZE value: the touched extent rounded up to a
// 32-byte word boundary.
func (m *Memory) Size() uint64 {
	return (m.watermark + 31) / 32 * 32
}

// touch advances the high-water mark for a concrete access.
func (m *Memory) touch(offset Expr, n uint64) {
	if offset, ok := offset.(*ConstantExpr); ok && offset.Value.IsUint64() {
		if end := offset.Value.Uint64() + n; end > m.watermark {
			m.watermark = end
		}
	}
}

// InBounds reports whether an access of n bytes at offset stays under
// limit. Symbolic offsets are optimistically in bounds; the solver owns
// their feasibility.
func (m *Memory) InBounds(offset Expr, n, limit uint64) bool {
	offsetConst, ok := offset.(*ConstantExpr)
	if !ok {
		return true
	}
	if !offsetConst.Value.IsUint64() {
		return false
	}
	v := offsetConst.Value.Uint64()
	return v+n >= v && v+n <= limit
}
