package sevm

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
)

var calldataSeq uint64

// Calldata represents the input buffer of a transaction. Bytes may be
// fully symbolic, fully concrete, or a mix of a concrete prefix with
// symbolic holes. Reads past the (possibly symbolic) size yield zero,
// matching EVM semantics.
type Calldata struct {
	arr         *Array
	size        Expr
	constraints []Expr
}

// NewCalldata returns fully symbolic calldata whose size is a fresh
// symbol constrained to at most maxSize bytes.
func NewCalldata(maxSize uint64) *Calldata {
	n := atomic.AddUint64(&calldataSeq, 1)
	size := NewSymbolExpr(fmt.Sprintf("CALLDATASIZE_%d", n), WidthWord)
	return &Calldata{
		arr:  NewArray(fmt.Sprintf("CALLDATA_%d", n), maxSize),
		size: size,
		constraints: []Expr{
			NewBinaryExpr(ULE, size, NewConstantExpr(maxSize, WidthWord)),
		},
	}
}

// NewConcreteCalldata returns calldata with fixed contents and size.
func NewConcreteCalldata(data []byte) *Calldata {
	n := atomic.AddUint64(&calldataSeq, 1)
	arr := NewZeroArray(fmt.Sprintf("CALLDATA_%d", n), uint64(len(data)))
	for i, b := range data {
		arr.storeByte(NewConstantExpr(uint64(i), WidthWord), NewConstantExpr(uint64(b), WidthByte))
	}
	return &Calldata{
		arr:  arr,
		size: NewConstantExpr(uint64(len(data)), WidthWord),
	}
}

// ParseCalldata returns calldata from a hex template. Each "ss" byte pair
// marks a free symbolic byte; all other pairs are concrete. The size is
// symbolic, constrained to cover the template and stay under maxSize:
//
//	ParseCalldata("0x1546ss01", 256)
//
// yields bytes [0x15, 0x46, <symbolic>, 0x01] followed by symbolic bytes
// up to the size.
func ParseCalldata(template string, maxSize uint64) (*Calldata, error) {
	s := strings.TrimPrefix(strings.TrimSpace(strings.ToLower(template)), "0x")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("parse calldata: odd-length template")
	}
	prefixLen := uint64(len(s) / 2)
	if prefixLen > maxSize {
		return nil, fmt.Errorf("parse calldata: template longer than max size: %d > %d", prefixLen, maxSize)
	}

	cd := NewCalldata(maxSize)
	for i := uint64(0); i < prefixLen; i++ {
		pair := s[i*2 : i*2+2]
		if pair == "ss" {
			continue // free symbolic byte
		}
		b, err := hex.DecodeString(pair)
		if err != nil {
			return nil, fmt.Errorf("parse calldata: invalid byte %q at %d", pair, i)
		}
		cd.arr.storeByte(NewConstantExpr(i, WidthWord), NewConstantExpr(uint64(b[0]), WidthByte))
	}
	cd.constraints = append(cd.constraints, NewBinaryExpr(ULE, NewConstantExpr(prefixLen, WidthWord), cd.size))
	return cd, nil
}

// Clone returns a copy of the calldata sharing the underlying buffer.
func (c *Calldata) Clone() *Calldata {
	other := *c
	return &other
}

// Size returns the calldata size expression.
func (c *Calldata) Size() Expr { return c.size }

// Constraints returns the pre-constraints to seed onto the initial state.
func (c *Calldata) Constraints() []Expr { return c.constraints }

// Load returns the 32-byte big-endian word at offset. Each byte beyond
// the calldata size reads as zero.
func (c *Calldata) Load(offset Expr) Expr {
	offset = newZExtExpr(offset, WidthWord)

	var result Expr
	for i := uint64(0); i < 32; i++ {
		result = appendByte(result, c.ReadByte(NewBinaryExpr(ADD, offset, NewConstantExpr(i, WidthWord))))
	}
	return result
}

// ReadByte returns the byte at index, guarded by the size bound.
func (c *Calldata) ReadByte(index Expr) Expr {
	index = newZExtExpr(index, WidthWord)
	value := c.arr.selectByte(index)

	inBounds := NewBinaryExpr(ULT, index, c.size)
	if IsConstantTrue(inBounds) {
		return value
	} else if IsConstantFalse(inBounds) {
		return NewConstantExpr(0, WidthByte)
	}
	return NewIteExpr(inBounds, value, NewConstantExpr(0, WidthByte))
}

func appendByte(acc, b Expr) Expr {
	if acc == nil {
		return b
	}
	return NewConcatExpr(acc, b)
}
