package sevm

import (
	"fmt"
	"sync/atomic"
)

var arraySeq uint64

// Array represents an addressable buffer of symbolic or concrete bytes
// with 256-bit indices. Reads outside the update chain resolve to the
// array's base: zero bytes for zero-based arrays (memory), free symbolic
// bytes otherwise (calldata, call return data).
type Array struct {
	ID       uint64       // unique id
	Name     string       // solver-level base name, e.g. CALLDATA_1
	Size     uint64       // size hint in bytes; zero means unbounded
	ZeroBase bool         // unwritten bytes read as zero
	Updates  *ArrayUpdate // linked list of symbolic updates, newest first
}

// NewArray returns a new symbolically-based Array.
func NewArray(name string, size uint64) *Array {
	return &Array{
		ID:   atomic.AddUint64(&arraySeq, 1),
		Name: name,
		Size: size,
	}
}

// NewZeroArray returns a new Array whose unwritten bytes are zero.
func NewZeroArray(name string, size uint64) *Array {
	a := NewArray(name, size)
	a.ZeroBase = true
	return a
}

// String returns a string representation of the array.
func (a *Array) String() string {
	return fmt.Sprintf("(array %s #%d)", a.Name, a.ID)
}

// Clone returns a copy of the array sharing the update chain.
func (a *Array) Clone() *Array {
	other := *a
	return &other
}

// Select reads width bytes starting at offset as a single big-endian value.
func (a *Array) Select(offset Expr, width uint) Expr {
	assert(width > 0 && width <= 32, "select: invalid width: %d", width)

	offset = newZExtExpr(offset, WidthWord)
	if width == 1 {
		return a.selectByte(offset)
	}

	// Read byte-by-byte, most significant byte first.
	var result Expr
	for i := uint64(0); i < uint64(width); i++ {
		value := a.selectByte(NewBinaryExpr(ADD, offset, NewConstantExpr(i, WidthWord)))
		if result == nil {
			result = value
		} else {
			result = NewConcatExpr(result, value)
		}
	}
	return result
}

// selectByte reads a single byte from the array.
//
// Attempts to find a concrete value by traversing the array update history.
// Falls back to the array base, or a select expression if either the
// selected index or an update's index is symbolic.
func (a *Array) selectByte(index Expr) Expr {
	assert(ExprWidth(index) == WidthWord, "selectByte: invalid array index width: %d", ExprWidth(index))

	for upd := a.Updates; upd != nil; upd = upd.Next {
		cond, ok := NewBinaryExpr(EQ, index, upd.Index).(*ConstantExpr)
		if !ok {
			return NewSelectExpr(a, index) // symbolic index in chain
		} else if cond.IsTrue() {
			return upd.Value
		}
	}

	// No update matched. Zero-based arrays read zero; otherwise the byte
	// is a free symbolic value of the base array.
	if a.ZeroBase {
		if _, ok := index.(*ConstantExpr); ok {
			return NewConstantExpr(0, WidthByte)
		}
	}
	return NewSelectExpr(a, index)
}

// Store writes value at offset as big-endian bytes.
// Returns a new copy of the array; the receiver is unchanged.
func (a *Array) Store(offset, value Expr) *Array {
	other := a.Clone()

	offset = newZExtExpr(offset, WidthWord)

	width := ExprWidth(value)
	assert(width > 0 && width%8 == 0, "store: invalid width: %d", width)

	n := uint64(width) / 8
	for i := uint64(0); i < n; i++ {
		byteValue := NewExtractExpr(value, uint((n-i-1)*8), WidthByte)
		other.storeByte(NewBinaryExpr(ADD, offset, NewConstantExpr(i, WidthWord)), byteValue)
	}
	return other
}

// storeByte writes a single byte to the array in place.
func (a *Array) storeByte(index, value Expr) {
	assert(ExprWidth(index) == WidthWord, "storeByte: invalid array index width: %d", ExprWidth(index))
	assert(ExprWidth(value) == WidthByte, "storeByte: invalid value width: %d", ExprWidth(value))

	a.Updates = &ArrayUpdate{Index: index, Value: value, Next: a.Updates}

	// Drop a superseded update for the same concrete index. The tail of
	// the chain may be shared with clones, so rebuild the prefix instead
	// of rewiring nodes in place. Stop at the first symbolic index since
	// updates beyond it may still be observable.
	if index, ok := index.(*ConstantExpr); ok {
		for upd, i := a.Updates.Next, 0; upd != nil; upd, i = upd.Next, i+1 {
			updIndex, ok := upd.Index.(*ConstantExpr)
			if !ok {
				break
			}
			if updIndex.Value.Eq(index.Value) {
				a.Updates = removeUpdateAt(a.Updates, i+1)
				break
			}
		}
	}
}

// removeUpdateAt returns a chain equal to head with the i-th node removed,
// copying the nodes before it.
func removeUpdateAt(head *ArrayUpdate, i int) *ArrayUpdate {
	if i == 0 {
		return head.Next
	}
	clone := *head
	clone.Next = removeUpdateAt(head.Next, i-1)
	return &clone
}

// IsSymbolic returns true if any byte of the array can be symbolic.
func (a *Array) IsSymbolic() bool {
	if !a.ZeroBase {
		return true
	}
	for upd := a.Updates; upd != nil; upd = upd.Next {
		if !IsConstantExpr(upd.Index) || !IsConstantExpr(upd.Value) {
			return true
		}
	}
	return false
}

// CompareArray returns an integer comparing two arrays.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArray(a, b *Array) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if a.ID < b.ID {
		return -1
	} else if a.ID > b.ID {
		return 1
	}
	return CompareArrayUpdate(a.Updates, b.Updates)
}

// ArrayUpdate represents a single byte update to an array.
type ArrayUpdate struct {
	Index Expr // byte index of update, 256 bits
	Value Expr // byte value to update

	Next *ArrayUpdate // linked list of next update
}

// CompareArrayUpdate returns an integer comparing two array update chains.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareArrayUpdate(a, b *ArrayUpdate) int {
	for {
		if a == nil && b != nil {
			return -1
		} else if a != nil && b == nil {
			return 1
		} else if a == nil && b == nil {
			return 0
		} else if a == b {
			return 0
		}

		if cmp := CompareExpr(a.Index, b.Index); cmp != 0 {
			return cmp
		} else if cmp := CompareExpr(a.Value, b.Value); cmp != 0 {
			return cmp
		}
		a, b = a.Next, b.Next
	}
}
