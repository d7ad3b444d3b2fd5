// Package z3 provides a sevm.Solver backed by the Z3 SMT solver via cgo.
package z3

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/evmlab/sevm"
	"github.com/holiman/uint256"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure solver implements interface.
var _ sevm.Solver = (*Solver)(nil)

// Solver represents a solver factory backed by Z3. Each session owns an
// independent Z3 context, so sessions may be used from different
// goroutines concurrently.
type Solver struct {
	// Timeout bounds each satisfiability check. Zero means no limit.
	Timeout time.Duration

	// Counters accumulated atomically; sessions run on worker goroutines.
	checkN      int64
	checkTimeNs int64
}

// NewSolver returns a new instance of Solver.
func NewSolver(timeout time.Duration) *Solver {
	return &Solver{Timeout: timeout}
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	return Stats{
		CheckN:    int(atomic.LoadInt64(&s.checkN)),
		CheckTime: time.Duration(atomic.LoadInt64(&s.checkTimeNs)),
	}
}

// NewSession returns a new session with its own Z3 context.
func (s *Solver) NewSession() (sevm.Session, error) {
	return &Session{
		solver: s,
		ctx:    NewContext(),
	}, nil
}

// Session is a single-goroutine Z3 handle.
type Session struct {
	solver *Solver
	ctx    *Context

	// State of the last satisfiable check, used to extract the model.
	lastModel   C.Z3_model
	lastSymbols map[string]uint
	lastArrays  map[string]*sevm.Array
}

// Close releases the session's Z3 context.
func (s *Session) Close() error {
	s.dropModel()
	return s.ctx.Close()
}

func (s *Session) dropModel() {
	if s.lastModel != nil {
		C.Z3_model_dec_ref(s.ctx.raw, s.lastModel)
		s.lastModel = nil
	}
}

// Check decides satisfiability of the conjunction of constraints.
// Timeouts and resource limits map to CheckUnknown with a sentinel
// reason; they are never reported as unsat.
func (s *Session) Check(ctx context.Context, constraints []sevm.Expr) (sevm.CheckResult, error) {
	t := time.Now()
	defer func() {
		atomic.AddInt64(&s.solver.checkN, 1)
		atomic.AddInt64(&s.solver.checkTimeNs, int64(time.Since(t)))
	}()

	s.dropModel()
	s.ctx.resetCollected()

	solver := C.Z3_mk_solver(s.ctx.raw)
	if err := s.ctx.err("Z3_mk_solver"); err != nil {
		return sevm.CheckResult{}, err
	}
	C.Z3_solver_inc_ref(s.ctx.raw, solver)
	defer C.Z3_solver_dec_ref(s.ctx.raw, solver)

	if err := s.setTimeout(ctx, solver); err != nil {
		return sevm.CheckResult{}, err
	}

	// Assert constraints.
	for _, constraint := range constraints {
		z3Constraint, err := s.ctx.toAST(constraint)
		if err != nil {
			return sevm.CheckResult{}, err
		}
		C.Z3_solver_assert(s.ctx.raw, solver, z3Constraint)
		if err := s.ctx.err("Z3_solver_assert"); err != nil {
			return sevm.CheckResult{}, err
		}
	}

	ret := C.Z3_solver_check(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return sevm.CheckResult{}, err
	}

	switch ret {
	case C.Z3_L_FALSE:
		return sevm.CheckResult{Status: sevm.CheckUnsat}, nil

	case C.Z3_L_UNDEF:
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, solver))
		result := sevm.CheckResult{Status: sevm.CheckUnknown}
		switch {
		case strings.Contains(reason, "timeout"):
			result.Reason = sevm.ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			result.Reason = sevm.ErrSolverCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			result.Reason = sevm.ErrSolverResourceLimit
		default:
			result.Reason = sevm.ErrSolverUnknown
		}
		return result, nil
	}

	// Satisfiable. Pin the model for a later Model call.
	model := C.Z3_solver_get_model(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return sevm.CheckResult{}, err
	}
	C.Z3_model_inc_ref(s.ctx.raw, model)
	s.lastModel = model
	s.lastSymbols = s.ctx.collectedSymbols
	s.lastArrays = s.ctx.collectedArrays
	return sevm.CheckResult{Status: sevm.CheckSat}, nil
}

// setTimeout applies the per-check timeout from the solver config and the
// context deadline, whichever is tighter.
func (s *Session) setTimeout(ctx context.Context, solver C.Z3_solver) error {
	timeout := s.solver.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil
	}

	params := C.Z3_mk_params(s.ctx.raw)
	if err := s.ctx.err("Z3_mk_params"); err != nil {
		return err
	}
	C.Z3_params_inc_ref(s.ctx.raw, params)
	defer C.Z3_params_dec_ref(s.ctx.raw, params)

	cname := C.CString("timeout")
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(s.ctx.raw, cname)
	C.Z3_params_set_uint(s.ctx.raw, params, sym, C.uint(timeout.Milliseconds()))
	if err := s.ctx.err("Z3_params_set_uint"); err != nil {
		return err
	}

	C.Z3_solver_set_params(s.ctx.raw, solver, params)
	return s.ctx.err("Z3_solver_set_params")
}

// Model extracts the satisfying assignment of the last Check: a value for
// every symbol and a byte image for every symbolically-based array the
// constraints mentioned.
func (s *Session) Model() (*sevm.Model, error) {
	if s.lastModel == nil {
		return nil, fmt.Errorf("z3: no model available")
	}

	model := sevm.NewModel()
	for name, width := range s.lastSymbols {
		value, err := s.ctx.evalSymbol(s.lastModel, name, width)
		if err != nil {
			return nil, err
		}
		model.Values[name] = value
	}
	for name, array := range s.lastArrays {
		if array.ZeroBase || array.Size == 0 {
			continue
		}
		bytes, err := s.ctx.evalArray(s.lastModel, array)
		if err != nil {
			return nil, err
		}
		model.Bytes[name] = bytes
	}
	return model, nil
}

// Context represents a Z3 context object that is used for constructing
// expressions.
type Context struct {
	raw C.Z3_context

	sha3Decls map[int]C.Z3_func_decl

	collectedSymbols map[string]uint
	collectedArrays  map[string]*sevm.Array
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{
		raw:              raw,
		sha3Decls:        make(map[int]C.Z3_func_decl),
		collectedSymbols: make(map[string]uint),
		collectedArrays:  make(map[string]*sevm.Array),
	}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

func (ctx *Context) resetCollected() {
	ctx.collectedSymbols = make(map[string]uint)
	ctx.collectedArrays = make(map[string]*sevm.Array)
}

// err returns the error for the last API call. Returns nil if last call
// was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// toAST returns a new instance of Z3_ast from a sevm expression.
func (ctx *Context) toAST(expr sevm.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *sevm.ConstantExpr:
		return ctx.toConstantAST(expr)
	case *sevm.SymbolExpr:
		return ctx.toSymbolAST(expr)
	case *sevm.SelectExpr:
		return ctx.toSelectAST(expr)
	case *sevm.ConcatExpr:
		return ctx.toConcatAST(expr)
	case *sevm.ExtractExpr:
		return ctx.toExtractAST(expr)
	case *sevm.CastExpr:
		return ctx.toCastAST(expr)
	case *sevm.NotExpr:
		return ctx.toNotAST(expr)
	case *sevm.IteExpr:
		return ctx.toIteAST(expr)
	case *sevm.Sha3Expr:
		return ctx.toSha3AST(expr)
	case *sevm.BinaryExpr:
		return ctx.toBinaryAST(expr)
	default:
		return nil, fmt.Errorf("z3.Context.toAST: invalid expression type: %T", expr)
	}
}

func (ctx *Context) toConstantAST(expr *sevm.ConstantExpr) (C.Z3_ast, error) {
	if expr.Width == 1 {
		if expr.IsTrue() {
			return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
		}
		return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
	}
	if expr.Width <= 64 {
		return ctx.makeUint64(expr.Width, expr.Value.Uint64())
	}
	return ctx.makeNumeral(expr.Width, expr.Value)
}

func (ctx *Context) toSymbolAST(expr *sevm.SymbolExpr) (C.Z3_ast, error) {
	ctx.collectedSymbols[expr.Name] = expr.Width

	sort, err := ctx.makeBVSort(expr.Width)
	if err != nil {
		return nil, err
	}
	cname := C.CString(expr.Name)
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(ctx.raw, cname)
	return C.Z3_mk_const(ctx.raw, sym, sort), ctx.err("Z3_mk_const")
}

func (ctx *Context) toSelectAST(expr *sevm.SelectExpr) (C.Z3_ast, error) {
	array, err := ctx.makeArrayWithUpdate(expr.Array, expr.Array.Updates)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toAST(expr.Index)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_select(ctx.raw, array, index), ctx.err("Z3_mk_select")
}

func (ctx *Context) toConcatAST(expr *sevm.ConcatExpr) (C.Z3_ast, error) {
	msb, err := ctx.toAST(expr.MSB)
	if err != nil {
		return nil, err
	}
	lsb, err := ctx.toAST(expr.LSB)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_concat(ctx.raw, msb, lsb), ctx.err("Z3_mk_concat")
}

func (ctx *Context) toExtractAST(expr *sevm.ExtractExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}

	// If extracting a single bit, use EQ to convert to the bool sort.
	if expr.Width == 1 {
		extractExpr := C.Z3_mk_extract(ctx.raw, C.uint(expr.Offset), C.uint(expr.Offset), src)
		if err := ctx.err("Z3_mk_extract[bool]"); err != nil {
			return nil, err
		}
		one, err := ctx.makeUint64(1, 1)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_eq(ctx.raw, extractExpr, one), ctx.err("Z3_mk_eq")
	}

	return C.Z3_mk_extract(ctx.raw, C.uint(expr.Offset+expr.Width-1), C.uint(expr.Offset), src), ctx.err("Z3_mk_extract")
}

func (ctx *Context) toCastAST(expr *sevm.CastExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Src)
	if err != nil {
		return nil, err
	}
	srcWidth := sevm.ExprWidth(expr.Src)

	// Convert boolean cast to an if-then-else expression.
	if srcWidth == 1 {
		whenTrue, err := ctx.makeUint64(expr.Width, 1)
		if err != nil {
			return nil, err
		}
		if expr.Signed {
			if whenTrue, err = ctx.makeNumeral(expr.Width, allOnes(expr.Width)); err != nil {
				return nil, err
			}
		}
		whenFalse, err := ctx.makeUint64(expr.Width, 0)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_ite(ctx.raw, src, whenTrue, whenFalse), ctx.err("Z3_mk_ite")
	}

	if expr.Signed {
		return C.Z3_mk_sign_ext(ctx.raw, C.uint(expr.Width-srcWidth), src), ctx.err("Z3_mk_sign_ext")
	}
	return C.Z3_mk_zero_ext(ctx.raw, C.uint(expr.Width-srcWidth), src), ctx.err("Z3_mk_zero_ext")
}

func allOnes(width uint) *uint256.Int {
	v := new(uint256.Int).Not(uint256.NewInt(0))
	if width < 256 {
		mask := new(uint256.Int).Lsh(uint256.NewInt(1), width)
		v.Sub(mask, uint256.NewInt(1))
	}
	return v
}

func (ctx *Context) toNotAST(expr *sevm.NotExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Expr)
	if err != nil {
		return nil, err
	}

	// If boolean, use the boolean NOT operation.
	if sevm.ExprWidth(expr.Expr) == 1 {
		return C.Z3_mk_not(ctx.raw, src), ctx.err("Z3_mk_not")
	}
	return C.Z3_mk_bvnot(ctx.raw, src), ctx.err("Z3_mk_bvnot")
}

func (ctx *Context) toIteAST(expr *sevm.IteExpr) (C.Z3_ast, error) {
	cond, err := ctx.toAST(expr.Cond)
	if err != nil {
		return nil, err
	}
	then, err := ctx.toAST(expr.Then)
	if err != nil {
		return nil, err
	}
	els, err := ctx.toAST(expr.Else)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, cond, then, els), ctx.err("Z3_mk_ite")
}

// toSha3AST lowers a Keccak application as an uninterpreted function per
// source length, mapping the source bytes to a 256-bit digest. Function
// congruence gives determinism for free; collision-freedom between
// different applications comes from the axioms asserted alongside the
// path constraints.
func (ctx *Context) toSha3AST(expr *sevm.Sha3Expr) (C.Z3_ast, error) {
	decl, err := ctx.sha3Decl(len(expr.Bytes))
	if err != nil {
		return nil, err
	}

	args := make([]C.Z3_ast, len(expr.Bytes))
	for i, b := range expr.Bytes {
		arg, err := ctx.toAST(b)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return C.Z3_mk_app(ctx.raw, decl, C.uint(len(args)), &args[0]), ctx.err("Z3_mk_app")
}

// sha3Decl returns the uninterpreted digest function for an n-byte source.
func (ctx *Context) sha3Decl(n int) (C.Z3_func_decl, error) {
	if decl, ok := ctx.sha3Decls[n]; ok {
		return decl, nil
	}

	byteSort, err := ctx.makeBVSort(8)
	if err != nil {
		return nil, err
	}
	wordSort, err := ctx.makeBVSort(256)
	if err != nil {
		return nil, err
	}

	domain := make([]C.Z3_sort, n)
	for i := range domain {
		domain[i] = byteSort
	}

	cname := C.CString(fmt.Sprintf("sha3_%d", n))
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(ctx.raw, cname)

	decl := C.Z3_mk_func_decl(ctx.raw, sym, C.uint(n), &domain[0], wordSort)
	if err := ctx.err("Z3_mk_func_decl"); err != nil {
		return nil, err
	}
	ctx.sha3Decls[n] = decl
	return decl, nil
}

func (ctx *Context) toBinaryAST(expr *sevm.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}
	boolOperands := sevm.ExprWidth(expr.LHS) == 1

	switch expr.Op {
	case sevm.ADD:
		return C.Z3_mk_bvadd(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvadd")
	case sevm.SUB:
		return C.Z3_mk_bvsub(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsub")
	case sevm.MUL:
		return C.Z3_mk_bvmul(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvmul")
	case sevm.UDIV:
		return C.Z3_mk_bvudiv(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvudiv")
	case sevm.SDIV:
		return C.Z3_mk_bvsdiv(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsdiv")
	case sevm.UREM:
		return C.Z3_mk_bvurem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvurem")
	case sevm.SREM:
		return C.Z3_mk_bvsrem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsrem")
	case sevm.AND:
		if boolOperands {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_and(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_and")
		}
		return C.Z3_mk_bvand(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvand")
	case sevm.OR:
		if boolOperands {
			args := [2]C.Z3_ast{lhs, rhs}
			return C.Z3_mk_or(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_or")
		}
		return C.Z3_mk_bvor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvor")
	case sevm.XOR:
		if boolOperands {
			return C.Z3_mk_xor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_xor")
		}
		return C.Z3_mk_bvxor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvxor")
	case sevm.SHL:
		return C.Z3_mk_bvshl(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvshl")
	case sevm.LSHR:
		return C.Z3_mk_bvlshr(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvlshr")
	case sevm.ASHR:
		return C.Z3_mk_bvashr(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvashr")
	case sevm.EQ:
		if boolOperands {
			return C.Z3_mk_iff(ctx.raw, lhs, rhs), ctx.err("Z3_mk_iff")
		}
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case sevm.ULT:
		return C.Z3_mk_bvult(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvult")
	case sevm.ULE:
		return C.Z3_mk_bvule(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvule")
	case sevm.SLT:
		return C.Z3_mk_bvslt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvslt")
	case sevm.SLE:
		return C.Z3_mk_bvsle(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsle")
	default:
		return nil, fmt.Errorf("z3.Context.toBinaryAST: unexpected operation: %s", expr.Op)
	}
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

// makeNumeral builds a wide bit-vector constant from its decimal form.
func (ctx *Context) makeNumeral(width uint, value *uint256.Int) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	cstr := C.CString(value.Dec())
	defer C.free(unsafe.Pointer(cstr))
	return C.Z3_mk_numeral(ctx.raw, cstr, t), ctx.err("Z3_mk_numeral")
}

// makeArrayConst returns the root constant array with no updates. Arrays
// with a zero base lower to a constant-zero array; others are free
// constants named after the array.
func (ctx *Context) makeArrayConst(array *sevm.Array) (C.Z3_ast, error) {
	ctx.collectedArrays[array.Name] = array

	domainSort, err := ctx.makeBVSort(sevm.WidthWord)
	if err != nil {
		return nil, err
	}
	rangeSort, err := ctx.makeBVSort(sevm.WidthByte)
	if err != nil {
		return nil, err
	}

	if array.ZeroBase {
		zero, err := ctx.makeUint64(sevm.WidthByte, 0)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_const_array(ctx.raw, domainSort, zero), ctx.err("Z3_mk_const_array")
	}

	arraySort := C.Z3_mk_array_sort(ctx.raw, domainSort, rangeSort)
	if err := ctx.err("Z3_mk_array_sort"); err != nil {
		return nil, err
	}

	cname := C.CString(array.Name)
	defer C.free(unsafe.Pointer(cname))
	nameSymbol := C.Z3_mk_string_symbol(ctx.raw, cname)
	return C.Z3_mk_const(ctx.raw, nameSymbol, arraySort), ctx.err("Z3_mk_const")
}

// makeArrayWithUpdate returns an array with updates recursively applied.
func (ctx *Context) makeArrayWithUpdate(root *sevm.Array, upd *sevm.ArrayUpdate) (C.Z3_ast, error) {
	if upd == nil {
		return ctx.makeArrayConst(root)
	}

	array, err := ctx.makeArrayWithUpdate(root, upd.Next)
	if err != nil {
		return nil, err
	}
	index, err := ctx.toAST(upd.Index)
	if err != nil {
		return nil, err
	}
	value, err := ctx.toAST(upd.Value)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_store(ctx.raw, array, index, value), ctx.err("Z3_mk_store")
}

// evalSymbol evaluates a named symbol against the model.
func (ctx *Context) evalSymbol(model C.Z3_model, name string, width uint) (*uint256.Int, error) {
	sort, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(ctx.raw, cname)
	konst := C.Z3_mk_const(ctx.raw, sym, sort)
	if err := ctx.err("Z3_mk_const"); err != nil {
		return nil, err
	}

	var evaluated C.Z3_ast
	C.Z3_model_eval(ctx.raw, model, konst, C.bool(true), &evaluated)
	if err := ctx.err("Z3_model_eval"); err != nil {
		return nil, err
	}

	dec := C.GoString(C.Z3_get_numeral_string(ctx.raw, evaluated))
	if err := ctx.err("Z3_get_numeral_string"); err != nil {
		return nil, err
	}
	value := new(uint256.Int)
	if err := value.SetFromDecimal(dec); err != nil {
		return nil, fmt.Errorf("z3: parse model value %q: %w", dec, err)
	}
	return value, nil
}

// evalArray evaluates a symbolically-based array into its byte image over
// its size hint.
func (ctx *Context) evalArray(model C.Z3_model, array *sevm.Array) (map[uint64]byte, error) {
	bytes := make(map[uint64]byte, array.Size)
	for offset := uint64(0); offset < array.Size; offset++ {
		z3Array, err := ctx.makeArrayConst(array)
		if err != nil {
			return nil, err
		}
		z3Offset, err := ctx.makeUint64(sevm.WidthWord, offset)
		if err != nil {
			return nil, err
		}

		z3Select := C.Z3_mk_select(ctx.raw, z3Array, z3Offset)
		if err := ctx.err("Z3_mk_select"); err != nil {
			return nil, err
		}

		var evaluated C.Z3_ast
		C.Z3_model_eval(ctx.raw, model, z3Select, C.bool(true), &evaluated)
		if err := ctx.err("Z3_model_eval"); err != nil {
			return nil, err
		}

		var b C.int
		C.Z3_get_numeral_int(ctx.raw, evaluated, &b)
		if err := ctx.err("Z3_get_numeral_int"); err != nil {
			return nil, err
		}
		bytes[offset] = byte(b)
	}
	return bytes, nil
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Stats holds counters accumulated across all sessions of a solver.
type Stats struct {
	CheckN    int
	CheckTime time.Duration
}
