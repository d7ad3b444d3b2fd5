package sevm

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
)

// CheckStatus is the outcome of a satisfiability check.
type CheckStatus int

const (
	// CheckUnknown means the solver could not decide within its budget.
	// Unknown is never conflated with unsat: a timed-out check must not
	// prune a path.
	CheckUnknown = CheckStatus(iota)

	// CheckSat means a satisfying assignment exists.
	CheckSat

	// CheckUnsat means the constraint set is contradictory.
	CheckUnsat
)

// String returns the string representation of the status.
func (s CheckStatus) String() string {
	switch s {
	case CheckSat:
		return "sat"
	case CheckUnsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// CheckResult is the full outcome of a satisfiability check. Reason is
// only set for unknown results and is one of the solver sentinel errors.
type CheckResult struct {
	Status CheckStatus
	Reason error
}

// Solver produces sessions for satisfiability checking. Implementations
// must allow concurrent sessions; a single session is never shared across
// goroutines.
type Solver interface {
	NewSession() (Session, error)
}

// Session is a single-goroutine handle onto a solver. A session carries
// no constraint state between calls: every Check receives the complete
// constraint set for a path.
type Session interface {
	// Check decides satisfiability of the conjunction of constraints.
	// Timeouts and resource limits yield CheckUnknown, never an error;
	// the error return is reserved for broken sessions.
	Check(ctx context.Context, constraints []Expr) (CheckResult, error)

	// Model returns a satisfying assignment. Only valid immediately
	// after a Check that returned CheckSat.
	Model() (*Model, error)

	// Close releases the session.
	Close() error
}

// Model is a concrete assignment produced by a satisfiable check:
// values for symbols and bytes for symbolically-based arrays. Anything
// the solver left unassigned is unconstrained and evaluates to zero.
type Model struct {
	Values map[string]*uint256.Int
	Bytes  map[string]map[uint64]byte
}

// NewModel returns a new empty model.
func NewModel() *Model {
	return &Model{
		Values: make(map[string]*uint256.Int),
		Bytes:  make(map[string]map[uint64]byte),
	}
}

// Value returns the assignment for a symbol name, defaulting to zero.
func (m *Model) Value(name string) *uint256.Int {
	if v, ok := m.Values[name]; ok {
		return v
	}
	return uint256.NewInt(0)
}

// ByteAt returns the assignment for one byte of a named array.
func (m *Model) ByteAt(array string, index uint64) byte {
	return m.Bytes[array][index]
}

// Eval evaluates expr to a constant under the model. Every expression
// with a defined width can be evaluated; unassigned symbols and array
// bytes read as zero.
func (m *Model) Eval(expr Expr) (*ConstantExpr, error) {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr, nil

	case *SymbolExpr:
		return newConstantExpr(new(uint256.Int).Set(m.Value(expr.Name)), expr.Width), nil

	case *BinaryExpr:
		lhs, err := m.Eval(expr.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := m.Eval(expr.RHS)
		if err != nil {
			return nil, err
		}
		result, ok := NewBinaryExpr(expr.Op, lhs, rhs).(*ConstantExpr)
		if !ok {
			return nil, fmt.Errorf("eval: %s did not fold", expr.Op)
		}
		return result, nil

	case *NotExpr:
		src, err := m.Eval(expr.Expr)
		if err != nil {
			return nil, err
		}
		return src.Not(), nil

	case *CastExpr:
		src, err := m.Eval(expr.Src)
		if err != nil {
			return nil, err
		}
		if expr.Signed {
			return src.SExt(expr.Width), nil
		}
		return src.ZExt(expr.Width), nil

	case *ConcatExpr:
		msb, err := m.Eval(expr.MSB)
		if err != nil {
			return nil, err
		}
		lsb, err := m.Eval(expr.LSB)
		if err != nil {
			return nil, err
		}
		return NewConcatExpr(msb, lsb).(*ConstantExpr), nil

	case *ExtractExpr:
		src, err := m.Eval(expr.Expr)
		if err != nil {
			return nil, err
		}
		return src.Extract(expr.Offset, expr.Width), nil

	case *SelectExpr:
		return m.evalSelect(expr)

	case *IteExpr:
		cond, err := m.Eval(expr.Cond)
		if err != nil {
			return nil, err
		}
		if cond.IsTrue() {
			return m.Eval(expr.Then)
		}
		return m.Eval(expr.Else)

	case *Sha3Expr:
		buf := make([]byte, len(expr.Bytes))
		for i, b := range expr.Bytes {
			v, err := m.Eval(b)
			if err != nil {
				return nil, err
			}
			buf[i] = byte(v.Uint64())
		}
		return NewWordConstant(Keccak256(buf)), nil

	default:
		panic("unreachable")
	}
}

// evalSelect resolves a byte read through the array's update chain and
// finally the model's base-array assignment.
func (m *Model) evalSelect(expr *SelectExpr) (*ConstantExpr, error) {
	index, err := m.Eval(expr.Index)
	if err != nil {
		return nil, err
	}

	for upd := expr.Array.Updates; upd != nil; upd = upd.Next {
		updIndex, err := m.Eval(upd.Index)
		if err != nil {
			return nil, err
		}
		if updIndex.Value.Eq(index.Value) {
			return m.Eval(upd.Value)
		}
	}

	if expr.Array.ZeroBase {
		return NewConstantExpr(0, WidthByte), nil
	}
	if !index.Value.IsUint64() {
		return NewConstantExpr(0, WidthByte), nil
	}
	return NewConstantExpr(uint64(m.ByteAt(expr.Array.Name, index.Value.Uint64())), WidthByte), nil
}
