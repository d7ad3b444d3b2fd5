package sevm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Expr represents a symbolic expression over EVM words.
//
// Expressions are immutable and interned: constructing a node twice from
// equal parts returns the same pointer, so pointer equality is structural
// equality. Semantic equivalence is a solver question.
type Expr interface {
	expr()
	String() string
}

func (*ConstantExpr) expr() {}
func (*SymbolExpr) expr()   {}
func (*BinaryExpr) expr()   {}
func (*NotExpr) expr()      {}
func (*CastExpr) expr()     {}
func (*ConcatExpr) expr()   {}
func (*ExtractExpr) expr()  {}
func (*SelectExpr) expr()   {}
func (*IteExpr) expr()      {}
func (*Sha3Expr) expr()     {}

// ExprWidth returns the bit width of the expression.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *SymbolExpr:
		return expr.Width
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return WidthBool
		}
		return ExprWidth(expr.LHS)
	case *NotExpr:
		return ExprWidth(expr.Expr)
	case *CastExpr:
		return expr.Width
	case *ConcatExpr:
		return ExprWidth(expr.MSB) + ExprWidth(expr.LSB)
	case *ExtractExpr:
		return expr.Width
	case *SelectExpr:
		return WidthByte
	case *IteExpr:
		return ExprWidth(expr.Then)
	case *Sha3Expr:
		return WidthWord
	default:
		panic("unreachable")
	}
}

// IsConstantExpr returns true if expr is a constant.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// IsConstantTrue returns true if expr is a constant true boolean.
func IsConstantTrue(expr Expr) bool {
	c, ok := expr.(*ConstantExpr)
	return ok && c.IsTrue()
}

// IsConstantFalse returns true if expr is a constant false boolean.
func IsConstantFalse(expr Expr) bool {
	c, ok := expr.(*ConstantExpr)
	return ok && c.Width == WidthBool && c.Value.IsZero()
}

// BinaryOp represents a binary expression operation.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	AND
	OR
	XOR
	SHL
	LSHR
	ASHR
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compare_op_end
)

var binaryOps = [...]string{
	ADD:  "add",
	SUB:  "sub",
	MUL:  "mul",
	UDIV: "udiv",
	SDIV: "sdiv",
	UREM: "urem",
	SREM: "srem",
	AND:  "and",
	OR:   "or",
	XOR:  "xor",
	SHL:  "shl",
	LSHR: "lshr",
	ASHR: "ashr",
	EQ:   "eq",
	NE:   "ne",
	ULT:  "ult",
	ULE:  "ule",
	UGT:  "ugt",
	UGE:  "uge",
	SLT:  "slt",
	SLE:  "sle",
	SGT:  "sgt",
	SGE:  "sge",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", int(op))
}

// IsArithmetic returns true if op is an arithmetic or bitwise operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// ConstantExpr represents a concrete value of up to 256 bits.
// The value is always masked to its width.
type ConstantExpr struct {
	Value *uint256.Int
	Width uint
}

// NewConstantExpr returns a constant with a 64-bit seed value.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	return newConstantExpr(uint256.NewInt(value), width)
}

// NewWordConstant returns a 256-bit constant for value.
func NewWordConstant(value *uint256.Int) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Set(value), WidthWord)
}

// NewBytesConstant returns a constant built from big-endian bytes.
// Panic if b is empty or longer than 32 bytes.
func NewBytesConstant(b []byte) *ConstantExpr {
	assert(len(b) > 0 && len(b) <= 32, "invalid bytes constant length: %d", len(b))
	return newConstantExpr(new(uint256.Int).SetBytes(b), uint(len(b))*8)
}

// NewBoolConstantExpr returns a width-1 constant for the given truth value.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return NewConstantExpr(1, WidthBool)
	}
	return NewConstantExpr(0, WidthBool)
}

func newConstantExpr(value *uint256.Int, width uint) *ConstantExpr {
	assert(width > 0 && width <= WidthWord, "invalid constant width: %d", width)
	truncate(value, width)
	return internConstantExpr(&ConstantExpr{Value: value, Width: width})
}

// truncate masks value to the given bit width in place.
func truncate(value *uint256.Int, width uint) {
	if width < WidthWord {
		value.And(value, widthMask(width))
	}
}

var maskCache [WidthWord + 1]*uint256.Int

func init() {
	for w := uint(1); w < WidthWord; w++ {
		m := new(uint256.Int).Lsh(uint256.NewInt(1), w)
		maskCache[w] = m.Sub(m, uint256.NewInt(1))
	}
	maskCache[WidthWord] = new(uint256.Int).Not(uint256.NewInt(0))
}

func widthMask(width uint) *uint256.Int { return maskCache[width] }

func newWord() *uint256.Int { return new(uint256.Int) }

// String returns the string representation of the constant.
func (e *ConstantExpr) String() string {
	if e.Width == WidthBool {
		if e.IsTrue() {
			return "true"
		}
		return "false"
	}
	return fmt.Sprintf("0x%x:%d", e.Value, e.Width)
}

// IsTrue returns true if the constant is a non-zero boolean.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && !e.Value.IsZero()
}

// IsAllOnes returns true if all bits in the constant are set.
func (e *ConstantExpr) IsAllOnes() bool {
	return e.Value.Eq(widthMask(e.Width))
}

// Uint64 returns the value as a uint64. Panic if it does not fit.
func (e *ConstantExpr) Uint64() uint64 {
	assert(e.Value.IsUint64(), "constant does not fit in uint64: %s", e.Value)
	return e.Value.Uint64()
}

func (e *ConstantExpr) Add(other *ConstantExpr) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Add(e.Value, other.Value), e.Width)
}

func (e *ConstantExpr) Sub(other *ConstantExpr) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Sub(e.Value, other.Value), e.Width)
}

func (e *ConstantExpr) Mul(other *ConstantExpr) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Mul(e.Value, other.Value), e.Width)
}

// UDiv returns the unsigned quotient. Division by zero yields zero,
// matching EVM semantics.
func (e *ConstantExpr) UDiv(other *ConstantExpr) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Div(e.Value, other.Value), e.Width)
}

func (e *ConstantExpr) SDiv(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == WidthWord, "signed division requires word width")
	return newConstantExpr(new(uint256.Int).SDiv(e.Value, other.Value), e.Width)
}

func (e *ConstantExpr) URem(other *ConstantExpr) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Mod(e.Value, other.Value), e.Width)
}

func (e *ConstantExpr) SRem(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == WidthWord, "signed remainder requires word width")
	return newConstantExpr(new(uint256.Int).SMod(e.Value, other.Value), e.Width)
}

func (e *ConstantExpr) And(other *ConstantExpr) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).And(e.Value, other.Value), e.Width)
}

func (e *ConstantExpr) Or(other *ConstantExpr) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Or(e.Value, other.Value), e.Width)
}

func (e *ConstantExpr) Xor(other *ConstantExpr) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Xor(e.Value, other.Value), e.Width)
}

func (e *ConstantExpr) Shl(other *ConstantExpr) *ConstantExpr {
	if !other.Value.LtUint64(uint64(e.Width)) {
		return NewConstantExpr(0, e.Width)
	}
	return newConstantExpr(new(uint256.Int).Lsh(e.Value, uint(other.Value.Uint64())), e.Width)
}

func (e *ConstantExpr) LShr(other *ConstantExpr) *ConstantExpr {
	if !other.Value.LtUint64(uint64(e.Width)) {
		return NewConstantExpr(0, e.Width)
	}
	return newConstantExpr(new(uint256.Int).Rsh(e.Value, uint(other.Value.Uint64())), e.Width)
}

func (e *ConstantExpr) AShr(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == WidthWord, "arithmetic shift requires word width")
	if !other.Value.LtUint64(WidthWord) {
		if e.Value.Sign() < 0 {
			return newConstantExpr(new(uint256.Int).Not(uint256.NewInt(0)), e.Width)
		}
		return NewConstantExpr(0, e.Width)
	}
	return newConstantExpr(new(uint256.Int).SRsh(e.Value, uint(other.Value.Uint64())), e.Width)
}

func (e *ConstantExpr) Eq(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Value.Eq(other.Value))
}

func (e *ConstantExpr) Ult(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.Value.Lt(other.Value))
}

func (e *ConstantExpr) Ule(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(!other.Value.Lt(e.Value))
}

func (e *ConstantExpr) Slt(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(e.signed().Slt(other.signed()))
}

func (e *ConstantExpr) Sle(other *ConstantExpr) *ConstantExpr {
	return NewBoolConstantExpr(!other.signed().Slt(e.signed()))
}

// bitAt returns bit i of v.
func bitAt(v *uint256.Int, i uint) uint64 {
	return (v[i/64] >> (i % 64)) & 1
}

// signed sign-extends the constant to a full word for signed comparison.
func (e *ConstantExpr) signed() *uint256.Int {
	if e.Width == WidthWord {
		return e.Value
	}
	v := new(uint256.Int).Set(e.Value)
	if bitAt(v, e.Width-1) == 1 {
		v.Or(v, new(uint256.Int).Xor(widthMask(WidthWord), widthMask(e.Width)))
	}
	return v
}

// ZExt zero-extends the constant to the given width.
func (e *ConstantExpr) ZExt(width uint) *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Set(e.Value), width)
}

// SExt sign-extends the constant to the given width.
func (e *ConstantExpr) SExt(width uint) *ConstantExpr {
	v := new(uint256.Int).Set(e.Value)
	if width > e.Width && bitAt(v, e.Width-1) == 1 {
		v.Or(v, new(uint256.Int).Xor(widthMask(width), widthMask(e.Width)))
	}
	return newConstantExpr(v, width)
}

// Extract returns bits [offset, offset+width) of the constant.
func (e *ConstantExpr) Extract(offset, width uint) *ConstantExpr {
	assert(offset+width <= e.Width, "extract out of range: [%d,%d) of %d", offset, offset+width, e.Width)
	return newConstantExpr(new(uint256.Int).Rsh(e.Value, offset), width)
}

// Not returns the bitwise complement of the constant.
func (e *ConstantExpr) Not() *ConstantExpr {
	return newConstantExpr(new(uint256.Int).Not(e.Value), e.Width)
}

// SymbolExpr represents a named free variable, e.g. CALLDATASIZE_1.
type SymbolExpr struct {
	Name  string
	Width uint
}

// NewSymbolExpr returns a symbol with the given name and width.
func NewSymbolExpr(name string, width uint) *SymbolExpr {
	assert(width > 0 && width <= WidthWord, "invalid symbol width: %d", width)
	return internExpr(&SymbolExpr{Name: name, Width: width}).(*SymbolExpr)
}

// String returns the symbol name.
func (e *SymbolExpr) String() string { return e.Name }

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns an expression for the given operation. Constant
// operands are folded eagerly and NE/UGT/UGE/SGT/SGE are normalized away
// so the solver adapter only ever sees the canonical comparison set.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) Expr {
	assert(ExprWidth(lhs) == ExprWidth(rhs), "binary expr width mismatch: op=%s %d != %d", op, ExprWidth(lhs), ExprWidth(rhs))

	switch op {
	case ADD:
		return newAddExpr(lhs, rhs)
	case SUB:
		return newSubExpr(lhs, rhs)
	case MUL:
		return newMulExpr(lhs, rhs)
	case UDIV, SDIV:
		return newDivExpr(op, lhs, rhs)
	case UREM, SREM:
		return newRemExpr(op, lhs, rhs)
	case AND:
		return newAndExpr(lhs, rhs)
	case OR:
		return newOrExpr(lhs, rhs)
	case XOR:
		return newXorExpr(lhs, rhs)
	case SHL, LSHR, ASHR:
		return newShiftExpr(op, lhs, rhs)

	case EQ:
		return newEqExpr(lhs, rhs)
	case NE:
		return NewNotExpr(newEqExpr(lhs, rhs))
	case ULT:
		return newUltExpr(lhs, rhs)
	case UGT:
		return newUltExpr(rhs, lhs) // reverse
	case ULE:
		return newUleExpr(lhs, rhs)
	case UGE:
		return newUleExpr(rhs, lhs) // reverse
	case SLT:
		return newSltExpr(lhs, rhs)
	case SGT:
		return newSltExpr(rhs, lhs) // reverse
	case SLE:
		return newSleExpr(lhs, rhs)
	case SGE:
		return newSleExpr(rhs, lhs) // reverse

	default:
		panic("unreachable")
	}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// newAddExpr returns the expression representing the sum of lhs & rhs.
func newAddExpr(lhs, rhs Expr) Expr {
	// Move constant expression to left hand side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value.IsZero() {
			return rhs
		} else if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Add(rhs)
		}
	}

	// Merge constant LHS with constant in RHS binary expression.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*BinaryExpr); ok {
			if rhs.Op == ADD && IsConstantExpr(rhs.LHS) { // X + (Y+z) == (X+Y) + z
				return NewBinaryExpr(ADD, NewBinaryExpr(ADD, lhs, rhs.LHS), rhs.RHS)
			} else if rhs.Op == SUB && IsConstantExpr(rhs.LHS) { // X + (Y-z) == (X+Y) - z
				return NewBinaryExpr(SUB, NewBinaryExpr(ADD, lhs, rhs.LHS), rhs.RHS)
			}
		}
	}

	return internExpr(&BinaryExpr{Op: ADD, LHS: lhs, RHS: rhs})
}

// newSubExpr returns an expression representing the difference of lhs & rhs.
func newSubExpr(lhs, rhs Expr) Expr {
	// Subtracting a value from itself is zero.
	if lhs == rhs {
		return NewConstantExpr(0, ExprWidth(lhs))
	}

	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Sub(rhs)
		}
	}

	// If constant is on right side, refactor to addition with negated constant.
	if rhs, ok := rhs.(*ConstantExpr); ok && !IsConstantExpr(lhs) {
		return NewBinaryExpr(ADD, NewConstantExpr(0, rhs.Width).Sub(rhs), lhs)
	}

	return internExpr(&BinaryExpr{Op: SUB, LHS: lhs, RHS: rhs})
}

// newMulExpr returns an expression that represents the product of lhs & rhs.
func newMulExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if IsConstantExpr(rhs) && !IsConstantExpr(lhs) {
		lhs, rhs = rhs, lhs
	}

	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Mul(rhs)
		}

		// Optimize for multiplication with a constant 1 or 0.
		if lhs.Value.IsZero() {
			return lhs
		} else if lhs.Value.Eq(uint256.NewInt(1)) {
			return rhs
		}
	}
	return internExpr(&BinaryExpr{Op: MUL, LHS: lhs, RHS: rhs})
}

// newDivExpr returns an expression that represents the division of lhs & rhs.
func newDivExpr(op BinaryOp, lhs, rhs Expr) Expr {
	assert(op == UDIV || op == SDIV, "invalid div op: %s", op)

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			if op == UDIV {
				return lhs.UDiv(rhs)
			}
			return lhs.SDiv(rhs)
		}
	}
	return internExpr(&BinaryExpr{Op: op, LHS: lhs, RHS: rhs})
}

// newRemExpr returns an expression that represents the remainder of lhs
// divided by rhs.
func newRemExpr(op BinaryOp, lhs, rhs Expr) Expr {
	assert(op == UREM || op == SREM, "invalid rem op: %s", op)

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			if op == UREM {
				return lhs.URem(rhs)
			}
			return lhs.SRem(rhs)
		}
	}
	return internExpr(&BinaryExpr{Op: op, LHS: lhs, RHS: rhs})
}

// newAndExpr returns an expression that represents the bitwise AND of lhs & rhs.
func newAndExpr(lhs, rhs Expr) Expr {
	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.And(rhs)
		}
	}

	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Optimize for if constant is all ones or zeros.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsAllOnes() {
			return lhs
		} else if rhs.Value.IsZero() {
			return rhs
		}
	}
	if lhs == rhs {
		return lhs
	}
	return internExpr(&BinaryExpr{Op: AND, LHS: lhs, RHS: rhs})
}

// newOrExpr returns an expression that represents the bitwise OR of lhs & rhs.
func newOrExpr(lhs, rhs Expr) Expr {
	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Or(rhs)
		}
	}

	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Optimize for if constant is all ones or zeros.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsAllOnes() {
			return rhs
		} else if rhs.Value.IsZero() {
			return lhs
		}
	}
	if lhs == rhs {
		return lhs
	}
	return internExpr(&BinaryExpr{Op: OR, LHS: lhs, RHS: rhs})
}

// newXorExpr returns an expression that represents the bitwise XOR of lhs & rhs.
func newXorExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value.IsZero() {
			return rhs
		} else if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Xor(rhs)
		}
	}

	if lhs == rhs {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	return internExpr(&BinaryExpr{Op: XOR, LHS: lhs, RHS: rhs})
}

// newShiftExpr returns an expression that represents lhs shifted by rhs bits.
func newShiftExpr(op BinaryOp, lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			switch op {
			case SHL:
				return lhs.Shl(rhs)
			case LSHR:
				return lhs.LShr(rhs)
			case ASHR:
				return lhs.AShr(rhs)
			}
		}
	}

	// Shifting by a constant zero is the identity.
	if rhs, ok := rhs.(*ConstantExpr); ok && rhs.Value.IsZero() {
		return lhs
	}
	return internExpr(&BinaryExpr{Op: op, LHS: lhs, RHS: rhs})
}

// newEqExpr returns an expression that represents the equality of lhs and rhs.
func newEqExpr(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Eq(rhs)
		}

		if lhs.Width == WidthBool {
			if rhs, ok := rhs.(*BinaryExpr); ok && rhs.Op == EQ {
				if lhs.IsTrue() {
					return rhs // T == (A == B) => A == B
				} else if IsConstantFalse(rhs.LHS) {
					return rhs.RHS // F == (F == A) => A
				}
			}
		}

		// X = Y + z => X - Y = z
		if rhs, ok := rhs.(*BinaryExpr); ok && rhs.Op == ADD && IsConstantExpr(rhs.LHS) {
			return NewBinaryExpr(EQ, NewBinaryExpr(SUB, lhs, rhs.LHS), rhs.RHS)
		}
	}

	if lhs == rhs {
		return NewBoolConstantExpr(true)
	}
	return internExpr(&BinaryExpr{Op: EQ, LHS: lhs, RHS: rhs})
}

// newUltExpr returns an expression that represents if lhs is less than rhs (unsigned).
func newUltExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Ult(rhs)
		}
	}

	// Nothing is below zero.
	if rhs, ok := rhs.(*ConstantExpr); ok && rhs.Value.IsZero() {
		return NewBoolConstantExpr(false)
	}
	if lhs == rhs {
		return NewBoolConstantExpr(false)
	}
	return internExpr(&BinaryExpr{Op: ULT, LHS: lhs, RHS: rhs})
}

// newUleExpr returns an expression that represents if lhs is less than or
// equal to rhs (unsigned).
func newUleExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Ule(rhs)
		}

		// Zero is below everything.
		if lhs.Value.IsZero() {
			return NewBoolConstantExpr(true)
		}
	}
	if lhs == rhs {
		return NewBoolConstantExpr(true)
	}
	return internExpr(&BinaryExpr{Op: ULE, LHS: lhs, RHS: rhs})
}

// newSltExpr returns an expression that represents if lhs is less than rhs (signed).
func newSltExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Slt(rhs)
		}
	}
	if lhs == rhs {
		return NewBoolConstantExpr(false)
	}
	return internExpr(&BinaryExpr{Op: SLT, LHS: lhs, RHS: rhs})
}

// newSleExpr returns an expression that represents if lhs is less than or
// equal to rhs (signed).
func newSleExpr(lhs, rhs Expr) Expr {
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Sle(rhs)
		}
	}
	if lhs == rhs {
		return NewBoolConstantExpr(true)
	}
	return internExpr(&BinaryExpr{Op: SLE, LHS: lhs, RHS: rhs})
}

// NotExpr represents the bitwise complement of an expression.
// At width 1 this is logical negation.
type NotExpr struct {
	Expr Expr
}

// NewNotExpr returns the complement of expr.
func NewNotExpr(expr Expr) Expr {
	if expr, ok := expr.(*ConstantExpr); ok {
		return expr.Not()
	}
	// Double negation cancels.
	if expr, ok := expr.(*NotExpr); ok {
		return expr.Expr
	}
	return internExpr(&NotExpr{Expr: expr})
}

// NewIsZeroExpr returns a boolean expression that is true if expr is zero.
func NewIsZeroExpr(expr Expr) Expr {
	return newEqExpr(NewConstantExpr(0, ExprWidth(expr)), expr)
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Expr)
}

// CastExpr represents a zero or sign extension to a wider width.
type CastExpr struct {
	Src    Expr
	Width  uint
	Signed bool
}

// NewCastExpr returns src extended to the given width.
// Returns src unchanged if it is already that width.
func NewCastExpr(src Expr, width uint, signed bool) Expr {
	srcWidth := ExprWidth(src)
	assert(width >= srcWidth, "cast cannot narrow: %d < %d", width, srcWidth)
	if width == srcWidth {
		return src
	}

	if src, ok := src.(*ConstantExpr); ok {
		if signed {
			return src.SExt(width)
		}
		return src.ZExt(width)
	}
	return internExpr(&CastExpr{Src: src, Width: width, Signed: signed})
}

func newZExtExpr(src Expr, width uint) Expr { return NewCastExpr(src, width, false) }

// String returns the string representation of the expression.
func (e *CastExpr) String() string {
	if e.Signed {
		return fmt.Sprintf("(sext %s %d)", e.Src, e.Width)
	}
	return fmt.Sprintf("(zext %s %d)", e.Src, e.Width)
}

// ConcatExpr represents the bit concatenation of two expressions.
type ConcatExpr struct {
	MSB Expr
	LSB Expr
}

// NewConcatExpr returns the concatenation of msb over lsb.
func NewConcatExpr(msb, lsb Expr) Expr {
	width := ExprWidth(msb) + ExprWidth(lsb)
	assert(width <= WidthWord, "concat too wide: %d", width)

	if msb, ok := msb.(*ConstantExpr); ok {
		if lsb, ok := lsb.(*ConstantExpr); ok {
			v := new(uint256.Int).Lsh(msb.Value, lsb.Width)
			v.Or(v, lsb.Value)
			return newConstantExpr(v, width)
		}

		// A zero MSB is a zero extension.
		if msb.Value.IsZero() {
			return newZExtExpr(lsb, width)
		}
	}
	return internExpr(&ConcatExpr{MSB: msb, LSB: lsb})
}

// String returns the string representation of the expression.
func (e *ConcatExpr) String() string {
	return fmt.Sprintf("(concat %s %s)", e.MSB, e.LSB)
}

// ExtractExpr represents bits [Offset, Offset+Width) of an expression,
// counting from the least significant bit.
type ExtractExpr struct {
	Expr   Expr
	Offset uint
	Width  uint
}

// NewExtractExpr returns the extraction of width bits at offset from expr.
func NewExtractExpr(expr Expr, offset, width uint) Expr {
	exprWidth := ExprWidth(expr)
	assert(offset+width <= exprWidth, "extract out of range: [%d,%d) of %d", offset, offset+width, exprWidth)

	if offset == 0 && width == exprWidth {
		return expr
	}
	if expr, ok := expr.(*ConstantExpr); ok {
		return expr.Extract(offset, width)
	}

	// Extract from one side of a concatenation if fully contained.
	if expr, ok := expr.(*ConcatExpr); ok {
		lsbWidth := ExprWidth(expr.LSB)
		if offset+width <= lsbWidth {
			return NewExtractExpr(expr.LSB, offset, width)
		} else if offset >= lsbWidth {
			return NewExtractExpr(expr.MSB, offset-lsbWidth, width)
		}
	}

	// Extracting from a zero extension reads the source or the zero bits.
	if expr, ok := expr.(*CastExpr); ok && !expr.Signed {
		srcWidth := ExprWidth(expr.Src)
		if offset+width <= srcWidth {
			return NewExtractExpr(expr.Src, offset, width)
		} else if offset >= srcWidth {
			return NewConstantExpr(0, width)
		}
	}

	return internExpr(&ExtractExpr{Expr: expr, Offset: offset, Width: width})
}

// String returns the string representation of the expression.
func (e *ExtractExpr) String() string {
	return fmt.Sprintf("(extract %s %d %d)", e.Expr, e.Offset, e.Width)
}

// SelectExpr represents a single byte read from a symbolic array.
type SelectExpr struct {
	Array *Array
	Index Expr
}

// NewSelectExpr returns a byte read of array at index.
func NewSelectExpr(array *Array, index Expr) Expr {
	return internExpr(&SelectExpr{Array: array, Index: newZExtExpr(index, WidthWord)})
}

// String returns the string representation of the expression.
func (e *SelectExpr) String() string {
	return fmt.Sprintf("(select %s %s)", e.Array, e.Index)
}

// IteExpr represents an if-then-else over expressions of equal width.
type IteExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// NewIteExpr returns an expression selecting then or els by cond.
func NewIteExpr(cond, then, els Expr) Expr {
	assert(ExprWidth(cond) == WidthBool, "ite condition must be boolean")
	assert(ExprWidth(then) == ExprWidth(els), "ite arm width mismatch: %d != %d", ExprWidth(then), ExprWidth(els))

	if cond, ok := cond.(*ConstantExpr); ok {
		if cond.IsTrue() {
			return then
		}
		return els
	}
	if then == els {
		return then
	}
	return internExpr(&IteExpr{Cond: cond, Then: then, Else: els})
}

// String returns the string representation of the expression.
func (e *IteExpr) String() string {
	return fmt.Sprintf("(ite %s %s %s)", e.Cond, e.Then, e.Else)
}

// Sha3Expr represents an uninterpreted Keccak-256 application over a
// sequence of byte expressions. The result is always 256 bits wide. Equal
// sources yield equal digests by function congruence; distinct sources
// yield distinct digests through axioms added at solve time.
//
// The source is a byte slice rather than a single expression because EVM
// code routinely hashes buffers longer than one word, e.g. the 64-byte
// preimages of mapping slots.
type Sha3Expr struct {
	Bytes []Expr
}

// NewSha3Expr returns a symbolic Keccak-256 application over the given
// bytes. Every element must be 8 bits wide.
func NewSha3Expr(bytes []Expr) Expr {
	assert(len(bytes) > 0, "sha3 requires a non-empty source")
	for i, b := range bytes {
		assert(ExprWidth(b) == WidthByte, "sha3 source byte %d has width %d", i, ExprWidth(b))
	}
	return internExpr(&Sha3Expr{Bytes: append([]Expr(nil), bytes...)})
}

// String returns the string representation of the expression.
func (e *Sha3Expr) String() string {
	return fmt.Sprintf("(sha3 %d bytes)", len(e.Bytes))
}

// CompareExpr returns an integer comparing two expressions structurally.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareExpr(a, b Expr) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	// Interned expressions share identity when structurally equal.
	if a == b {
		return 0
	}

	if ak, bk := exprKind(a), exprKind(b); ak != bk {
		if ak < bk {
			return -1
		}
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		return compareConstantExpr(a, b.(*ConstantExpr))
	case *SymbolExpr:
		return compareSymbolExpr(a, b.(*SymbolExpr))
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	case *NotExpr:
		return CompareExpr(a.Expr, b.(*NotExpr).Expr)
	case *CastExpr:
		return compareCastExpr(a, b.(*CastExpr))
	case *ConcatExpr:
		return compareConcatExpr(a, b.(*ConcatExpr))
	case *ExtractExpr:
		return compareExtractExpr(a, b.(*ExtractExpr))
	case *SelectExpr:
		return compareSelectExpr(a, b.(*SelectExpr))
	case *IteExpr:
		return compareIteExpr(a, b.(*IteExpr))
	case *Sha3Expr:
		return compareSha3Expr(a, b.(*Sha3Expr))
	default:
		panic("unreachable")
	}
}

func compareSha3Expr(a, b *Sha3Expr) int {
	if len(a.Bytes) < len(b.Bytes) {
		return -1
	} else if len(a.Bytes) > len(b.Bytes) {
		return 1
	}
	for i := range a.Bytes {
		if cmp := CompareExpr(a.Bytes[i], b.Bytes[i]); cmp != 0 {
			return cmp
		}
	}
	return 0
}

func compareConstantExpr(a, b *ConstantExpr) int {
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return a.Value.Cmp(b.Value)
}

func compareSymbolExpr(a, b *SymbolExpr) int {
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	if a.Name < b.Name {
		return -1
	} else if a.Name > b.Name {
		return 1
	}
	return 0
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.RHS, b.RHS)
}

func compareCastExpr(a, b *CastExpr) int {
	if a.Signed != b.Signed {
		if !a.Signed {
			return -1
		}
		return 1
	}
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return CompareExpr(a.Src, b.Src)
}

func compareConcatExpr(a, b *ConcatExpr) int {
	if cmp := CompareExpr(a.MSB, b.MSB); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.LSB, b.LSB)
}

func compareExtractExpr(a, b *ExtractExpr) int {
	if a.Offset < b.Offset {
		return -1
	} else if a.Offset > b.Offset {
		return 1
	}
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}
	return CompareExpr(a.Expr, b.Expr)
}

func compareSelectExpr(a, b *SelectExpr) int {
	if cmp := CompareExpr(a.Index, b.Index); cmp != 0 {
		return cmp
	}
	return CompareArray(a.Array, b.Array)
}

func compareIteExpr(a, b *IteExpr) int {
	if cmp := CompareExpr(a.Cond, b.Cond); cmp != 0 {
		return cmp
	}
	if cmp := CompareExpr(a.Then, b.Then); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.Else, b.Else)
}

// exprKind returns a numeric value for the type of expression.
// Only used internally for equality checks and sorting.
func exprKind(expr Expr) int {
	switch expr.(type) {
	case *ConstantExpr:
		return 1
	case *SymbolExpr:
		return 2
	case *BinaryExpr:
		return 3
	case *NotExpr:
		return 4
	case *CastExpr:
		return 5
	case *ConcatExpr:
		return 6
	case *ExtractExpr:
		return 7
	case *SelectExpr:
		return 8
	case *IteExpr:
		return 9
	case *Sha3Expr:
		return 10
	default:
		panic("unreachable")
	}
}

// WalkExpr visits every node of expr in depth-first order, including the
// update chains of any arrays referenced through select expressions.
func WalkExpr(expr Expr, fn func(Expr)) {
	fn(expr)
	switch expr := expr.(type) {
	case *ConstantExpr, *SymbolExpr:
		// leaf
	case *BinaryExpr:
		WalkExpr(expr.LHS, fn)
		WalkExpr(expr.RHS, fn)
	case *NotExpr:
		WalkExpr(expr.Expr, fn)
	case *CastExpr:
		WalkExpr(expr.Src, fn)
	case *ConcatExpr:
		WalkExpr(expr.MSB, fn)
		WalkExpr(expr.LSB, fn)
	case *ExtractExpr:
		WalkExpr(expr.Expr, fn)
	case *SelectExpr:
		WalkExpr(expr.Index, fn)
		for upd := expr.Array.Updates; upd != nil; upd = upd.Next {
			WalkExpr(upd.Index, fn)
			WalkExpr(upd.Value, fn)
		}
	case *IteExpr:
		WalkExpr(expr.Cond, fn)
		WalkExpr(expr.Then, fn)
		WalkExpr(expr.Else, fn)
	case *Sha3Expr:
		for _, b := range expr.Bytes {
			WalkExpr(b, fn)
		}
	default:
		panic("unreachable")
	}
}

// FindSymbols returns all distinct symbols referenced by the expressions,
// in first-seen order.
func FindSymbols(exprs ...Expr) []*SymbolExpr {
	var a []*SymbolExpr
	seen := make(map[*SymbolExpr]struct{})
	for _, expr := range exprs {
		WalkExpr(expr, func(e Expr) {
			if sym, ok := e.(*SymbolExpr); ok {
				if _, ok := seen[sym]; !ok {
					seen[sym] = struct{}{}
					a = append(a, sym)
				}
			}
		})
	}
	return a
}

// FindArrays returns all distinct arrays referenced by the expressions,
// in first-seen order.
func FindArrays(exprs ...Expr) []*Array {
	var a []*Array
	seen := make(map[uint64]struct{})
	for _, expr := range exprs {
		WalkExpr(expr, func(e Expr) {
			if sel, ok := e.(*SelectExpr); ok {
				if _, ok := seen[sel.Array.ID]; !ok {
					seen[sel.Array.ID] = struct{}{}
					a = append(a, sel.Array)
				}
			}
		})
	}
	return a
}

// FindSha3Exprs returns all distinct Keccak applications referenced by the
// expressions, in first-seen order.
func FindSha3Exprs(exprs ...Expr) []*Sha3Expr {
	var a []*Sha3Expr
	seen := make(map[*Sha3Expr]struct{})
	for _, expr := range exprs {
		WalkExpr(expr, func(e Expr) {
			if sha, ok := e.(*Sha3Expr); ok {
				if _, ok := seen[sha]; !ok {
					seen[sha] = struct{}{}
					a = append(a, sha)
				}
			}
		})
	}
	return a
}
