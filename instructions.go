package sevm

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// step executes the instruction at state's program counter and returns
// the successor states. In the common case this is the same state with an
// advanced program counter; branch points return multiple forks and
// terminal instructions return the (now terminated) state itself.
//
// Invalid operations terminate the state with an errored status; they are
// never surfaced as Go errors. The error return is reserved for broken
// solver sessions.
func (e *Executor) step(ctx context.Context, session Session, state *ExecutionState) ([]*ExecutionState, error) {
	op := state.Contract.Opcode(state.PC)

	if fn := e.pcBreakpoints[state.PC]; fn != nil {
		fn(state)
	}
	if fn := e.opBreakpoints[op]; fn != nil {
		fn(state)
	}
	if e.Verbose {
		log.Printf("[exec] #%d %04x %s", state.ID, state.PC, op)
	}

	if !op.IsValid() {
		state.recordStep(op)
		state.Errored(ReasonInvalidOpcode)
		return one(state), nil
	}
	state.recordStep(op)

	switch {
	case op.IsPush():
		value := NewCastExpr(NewBytesConstant(state.Contract.PushData(state.PC)), WidthWord, false)
		state.Push(value)
		state.PC += uint64(op.PushSize()) + 1
		return one(state), nil

	case op.IsDup():
		state.Dup(int(op-DUP1) + 1)
		state.PC++
		return one(state), nil

	case op.IsSwap():
		state.Swap(int(op-SWAP1) + 1)
		state.PC++
		return one(state), nil

	case op.IsLog():
		// Topics and data are popped; log side effects are not modeled.
		if _, ok := state.PopN(op.Pops()); ok {
			state.PC++
		}
		return one(state), nil
	}

	switch op {
	case STOP:
		state.Halt("stop")
		return one(state), nil

	case OpADD, OpMUL, OpSUB, OpAND, OpOR, OpXOR:
		return one(e.execBinary(state, op)), nil

	case OpDIV, OpSDIV, OpMOD, OpSMOD:
		return one(e.execGuardedDiv(state, op)), nil

	case OpADDMOD, OpMULMOD:
		return one(e.execModArith(state, op)), nil

	case OpEXP:
		return e.execExp(ctx, session, state)

	case SIGNEXTEND:
		return one(e.execSignExtend(state)), nil

	case OpLT, OpGT, OpSLT, OpSGT, OpEQ:
		return one(e.execCompare(state, op)), nil

	case ISZERO:
		if x, ok := state.Pop(); ok {
			state.Push(boolToWord(NewIsZeroExpr(x)))
			state.PC++
		}
		return one(state), nil

	case OpNOT:
		if x, ok := state.Pop(); ok {
			state.Push(NewNotExpr(x))
			state.PC++
		}
		return one(state), nil

	case BYTE:
		return one(e.execByte(state)), nil

	case OpSHL, OpSHR, OpSAR:
		return one(e.execShift(state, op)), nil

	case SHA3:
		return e.execSha3(ctx, session, state)

	case ADDRESS, ORIGIN, CALLER, CALLVALUE, GASPRICE,
		COINBASE, TIMESTAMP, NUMBER, DIFFICULTY, GASLIMIT, CHAINID, BASEFEE,
		SELFBALANCE:
		state.Push(state.Env.Symbol(op.String()))
		state.PC++
		return one(state), nil

	case BALANCE:
		return one(e.execBalance(state)), nil

	case CALLDATALOAD:
		if offset, ok := state.Pop(); ok {
			state.Push(state.Calldata.Load(offset))
			state.PC++
		}
		return one(state), nil

	case CALLDATASIZE:
		state.Push(state.Calldata.Size())
		state.PC++
		return one(state), nil

	case CALLDATACOPY:
		return one(e.execCalldataCopy(ctx, session, state)), nil

	case CODESIZE:
		state.Push(NewConstantExpr(state.Contract.Len(), WidthWord))
		state.PC++
		return one(state), nil

	case CODECOPY:
		return one(e.execCodeCopy(ctx, session, state)), nil

	case EXTCODESIZE:
		return one(e.execExtcodesize(state)), nil

	case EXTCODECOPY:
		return one(e.execExtcodeCopy(ctx, session, state)), nil

	case EXTCODEHASH:
		if addr, ok := state.Pop(); ok {
			state.Push(state.Env.Symbol(fmt.Sprintf("EXTCODEHASH_%d", ExprID(addr))))
			state.PC++
		}
		return one(state), nil

	case RETURNDATASIZE:
		if state.CallReturnSize != nil {
			state.Push(state.CallReturnSize)
		} else {
			state.Push(NewConstantExpr(0, WidthWord))
		}
		state.PC++
		return one(state), nil

	case RETURNDATACOPY:
		return one(e.execReturndataCopy(ctx, session, state)), nil

	case BLOCKHASH:
		if n, ok := state.Pop(); ok {
			state.Push(state.Env.Symbol(fmt.Sprintf("BLOCKHASH_%d", ExprID(n))))
			state.PC++
		}
		return one(state), nil

	case POP:
		if _, ok := state.Pop(); ok {
			state.PC++
		}
		return one(state), nil

	case MLOAD:
		return one(e.execMload(state)), nil

	case MSTORE, MSTORE8:
		return one(e.execMstore(state, op)), nil

	case MSIZE:
		state.Push(NewConstantExpr(state.Memory.Size(), WidthWord))
		state.PC++
		return one(state), nil

	case SLOAD:
		if key, ok := state.Pop(); ok {
			state.Push(state.Storage.Read(key))
			state.PC++
		}
		return one(state), nil

	case SSTORE:
		if args, ok := state.PopN(2); ok {
			state.Storage = state.Storage.Write(args[0], args[1])
			state.PC++
		}
		return one(state), nil

	case JUMP:
		return e.execJump(ctx, session, state)

	case JUMPI:
		return e.execJumpi(ctx, session, state)

	case PC:
		state.Push(NewConstantExpr(state.PC, WidthWord))
		state.PC++
		return one(state), nil

	case GAS:
		// Gas accounting is not modeled; each read is an independent
		// unknown.
		state.Push(e.freshSymbol("GAS", WidthWord))
		state.PC++
		return one(state), nil

	case JUMPDEST:
		state.PC++
		return one(state), nil

	case CREATE, CREATE2:
		if _, ok := state.PopN(op.Pops()); ok {
			state.Push(NewWordConstant(e.Config.DefaultCreateAddress))
			state.PC++
		}
		return one(state), nil

	case CALL, CALLCODE, DELEGATECALL, STATICCALL:
		return e.execCall(state, op)

	case RETURN:
		if e.execReturnData(state) {
			state.Halt("return")
		}
		return one(state), nil

	case REVERT:
		if e.execReturnData(state) {
			state.Revert()
		}
		return one(state), nil

	case INVALID:
		state.Errored(ReasonInvalidOpcode)
		return one(state), nil

	case SELFDESTRUCT:
		if _, ok := state.Pop(); ok {
			state.Halt("selfdestruct")
		}
		return one(state), nil

	default:
		state.Errored(ReasonInvalidOpcode)
		return one(state), nil
	}
}

func one(state *ExecutionState) []*ExecutionState {
	return []*ExecutionState{state}
}

// boolToWord widens a boolean expression to a 0/1 word.
func boolToWord(cond Expr) Expr {
	return NewIteExpr(cond, NewConstantExpr(1, WidthWord), NewConstantExpr(0, WidthWord))
}

// wordTruth returns the boolean "x is non-zero".
func wordTruth(x Expr) Expr {
	return NewNotExpr(NewIsZeroExpr(x))
}

var binaryOpcodeOps = map[Opcode]BinaryOp{
	OpADD: ADD,
	OpMUL: MUL,
	OpSUB: SUB,
	OpAND: AND,
	OpOR:  OR,
	OpXOR: XOR,
	OpLT:  ULT,
	OpGT:  UGT,
	OpSLT: SLT,
	OpSGT: SGT,
	OpEQ:  EQ,
}

func (e *Executor) execBinary(state *ExecutionState, op Opcode) *ExecutionState {
	args, ok := state.PopN(2)
	if !ok {
		return state
	}
	state.Push(NewBinaryExpr(binaryOpcodeOps[op], args[0], args[1]))
	state.PC++
	return state
}

func (e *Executor) execCompare(state *ExecutionState, op Opcode) *ExecutionState {
	args, ok := state.PopN(2)
	if !ok {
		return state
	}
	state.Push(boolToWord(NewBinaryExpr(binaryOpcodeOps[op], args[0], args[1])))
	state.PC++
	return state
}

// execGuardedDiv handles DIV, SDIV, MOD and SMOD. The EVM defines
// division and modulo by zero as zero, so a symbolic divisor is guarded
// with an if-then-else rather than left to the solver's division rules.
func (e *Executor) execGuardedDiv(state *ExecutionState, op Opcode) *ExecutionState {
	args, ok := state.PopN(2)
	if !ok {
		return state
	}
	x, y := args[0], args[1]

	var binOp BinaryOp
	switch op {
	case OpDIV:
		binOp = UDIV
	case OpSDIV:
		binOp = SDIV
	case OpMOD:
		binOp = UREM
	case OpSMOD:
		binOp = SREM
	}

	var result Expr
	if y, ok := y.(*ConstantExpr); ok {
		if y.Value.IsZero() {
			result = NewConstantExpr(0, WidthWord)
		} else {
			result = NewBinaryExpr(binOp, x, y)
		}
	} else {
		result = NewIteExpr(NewIsZeroExpr(y),
			NewConstantExpr(0, WidthWord),
			NewBinaryExpr(binOp, x, y))
	}
	state.Push(result)
	state.PC++
	return state
}

// execModArith handles ADDMOD and MULMOD. Fully concrete operands use the
// exact wide intermediate; symbolic operands approximate with wrapped
// arithmetic before the modulo.
func (e *Executor) execModArith(state *ExecutionState, op Opcode) *ExecutionState {
	args, ok := state.PopN(3)
	if !ok {
		return state
	}
	x, y, m := args[0], args[1], args[2]

	if xc, ok := x.(*ConstantExpr); ok {
		if yc, ok := y.(*ConstantExpr); ok {
			if mc, ok := m.(*ConstantExpr); ok {
				result := NewConstantExpr(0, WidthWord)
				if !mc.Value.IsZero() {
					if op == OpADDMOD {
						result = NewWordConstant(newWord().AddMod(xc.Value, yc.Value, mc.Value))
					} else {
						result = NewWordConstant(newWord().MulMod(xc.Value, yc.Value, mc.Value))
					}
				}
				state.Push(result)
				state.PC++
				return state
			}
		}
	}

	binOp := ADD
	if op == OpMULMOD {
		binOp = MUL
	}
	inner := NewBinaryExpr(binOp, x, y)
	result := NewIteExpr(NewIsZeroExpr(m),
		NewConstantExpr(0, WidthWord),
		NewBinaryExpr(UREM, inner, m))
	state.Push(result)
	state.PC++
	return state
}

// execExp handles EXP. A concrete exponent within the nesting budget
// expands to a multiplication chain; otherwise the exponent is
// concretized, forking per candidate value.
func (e *Executor) execExp(ctx context.Context, session Session, state *ExecutionState) ([]*ExecutionState, error) {
	args, ok := state.PopN(2)
	if !ok {
		return one(state), nil
	}
	base, exponent := args[0], args[1]

	if exponent, ok := exponent.(*ConstantExpr); ok {
		if result, ok := e.expandExp(base, exponent); ok {
			state.Push(result)
			state.PC++
			return one(state), nil
		}
	}

	candidates, err := e.concretize(ctx, session, state, exponent)
	if err != nil {
		return e.concretizeFailed(state, err)
	}

	if len(candidates) == 1 {
		exponentConst := candidates[0]
		state.AddConstraint(NewBinaryExpr(EQ, exponent, Expr(exponentConst)))
		result, ok := e.expandExp(base, exponentConst)
		if !ok {
			// Exponent too large even after concretization; the result
			// is an unconstrained word.
			result = e.freshSymbol("EXP", WidthWord)
		}
		state.Push(result)
		state.PC++
		return one(state), nil
	}

	var successors []*ExecutionState
	for _, exponentConst := range candidates {
		child := e.forkState(state, NewBinaryExpr(EQ, exponent, Expr(exponentConst)))
		result, ok := e.expandExp(base, exponentConst)
		if !ok {
			result = e.freshSymbol("EXP", WidthWord)
		}
		child.Push(result)
		child.PC++
		successors = append(successors, child)
	}
	return successors, nil
}

// expandExp folds constant bases directly and falls back to the squaring
// chain for symbolic bases.
func (e *Executor) expandExp(base Expr, exponent *ConstantExpr) (Expr, bool) {
	if base, ok := base.(*ConstantExpr); ok {
		return NewWordConstant(newWord().Exp(base.Value, exponent.Value)), true
	}
	return ExpandExp(base, exponent, e.Config.MaxExpNest)
}

func (e *Executor) execSignExtend(state *ExecutionState) *ExecutionState {
	args, ok := state.PopN(2)
	if !ok {
		return state
	}
	k, x := args[0], args[1]

	// Build the if-then-else ladder over the 31 meaningful byte indexes.
	// A concrete k folds the ladder down to a single arm.
	result := x
	for i := 30; i >= 0; i-- {
		width := uint((i + 1) * 8)
		ext := NewCastExpr(NewExtractExpr(x, 0, width), WidthWord, true)
		result = NewIteExpr(NewBinaryExpr(EQ, k, NewConstantExpr(uint64(i), WidthWord)), ext, result)
	}
	state.Push(result)
	state.PC++
	return state
}

func (e *Executor) execByte(state *ExecutionState) *ExecutionState {
	args, ok := state.PopN(2)
	if !ok {
		return state
	}
	i, x := args[0], args[1]

	// Byte 0 is the most significant byte.
	result := Expr(NewConstantExpr(0, WidthWord))
	for b := 31; b >= 0; b-- {
		value := newZExtExpr(NewExtractExpr(x, uint((31-b)*8), WidthByte), WidthWord)
		result = NewIteExpr(NewBinaryExpr(EQ, i, NewConstantExpr(uint64(b), WidthWord)), value, result)
	}
	state.Push(result)
	state.PC++
	return state
}

func (e *Executor) execShift(state *ExecutionState, op Opcode) *ExecutionState {
	args, ok := state.PopN(2)
	if !ok {
		return state
	}
	shift, value := args[0], args[1]

	var binOp BinaryOp
	switch op {
	case OpSHL:
		binOp = SHL
	case OpSHR:
		binOp = LSHR
	case OpSAR:
		binOp = ASHR
	}
	state.Push(NewBinaryExpr(binOp, value, shift))
	state.PC++
	return state
}

// execSha3 handles SHA3. The size operand is concretized if symbolic. A
// fully concrete buffer hashes greedily under the default policy; any
// symbolic byte produces an uninterpreted application.
func (e *Executor) execSha3(ctx context.Context, session Session, state *ExecutionState) ([]*ExecutionState, error) {
	args, ok := state.PopN(2)
	if !ok {
		return one(state), nil
	}
	offset, size := args[0], args[1]

	sizeConst, ok := size.(*ConstantExpr)
	if !ok {
		candidates, err := e.concretize(ctx, session, state, size)
		if err != nil {
			return e.concretizeFailed(state, err)
		}
		sizeConst = candidates[0]
		state.AddConstraint(NewBinaryExpr(EQ, size, Expr(sizeConst)))
	}

	if !sizeConst.Value.IsUint64() || sizeConst.Value.Uint64() > e.Config.MaxSha3Size {
		state.Errored(ReasonOutOfBounds)
		return one(state), nil
	}
	n := sizeConst.Value.Uint64()

	if n == 0 {
		state.Push(NewWordConstant(Keccak256(nil)))
		state.PC++
		return one(state), nil
	}
	if !state.Memory.InBounds(offset, n, e.Config.MaxMemoryIndex) {
		state.Errored(ReasonOutOfBounds)
		return one(state), nil
	}

	bytes := state.Memory.ReadBytes(offset, n)

	if e.Config.GreedySha3 {
		if buf, ok := constantBuffer(bytes); ok {
			state.Push(NewWordConstant(Keccak256(buf)))
			state.PC++
			return one(state), nil
		}
	}
	state.Push(NewSha3Expr(bytes))
	state.PC++
	return one(state), nil
}

// constantBuffer converts byte expressions to raw bytes if all are concrete.
func constantBuffer(bytes []Expr) ([]byte, bool) {
	buf := make([]byte, len(bytes))
	for i, b := range bytes {
		c, ok := b.(*ConstantExpr)
		if !ok {
			return nil, false
		}
		buf[i] = byte(c.Uint64())
	}
	return buf, true
}

func (e *Executor) execBalance(state *ExecutionState) *ExecutionState {
	addr, ok := state.Pop()
	if !ok {
		return state
	}
	if addrConst, ok := addr.(*ConstantExpr); ok {
		if src := state.Storage.Source(); src != nil {
			if v, ok := src.BalanceAt(addrConst.Value); ok {
				state.Push(NewWordConstant(v))
				state.PC++
				return state
			}
		}
	}
	state.Push(state.Env.Symbol(fmt.Sprintf("BALANCE_%d", ExprID(addr))))
	state.PC++
	return state
}

func (e *Executor) execExtcodesize(state *ExecutionState) *ExecutionState {
	addr, ok := state.Pop()
	if !ok {
		return state
	}
	if addrConst, ok := addr.(*ConstantExpr); ok {
		if src := state.Storage.Source(); src != nil {
			if n, ok := src.CodeSizeAt(addrConst.Value); ok {
				state.Push(NewConstantExpr(n, WidthWord))
				state.PC++
				return state
			}
		}
	}
	state.Push(NewConstantExpr(e.Config.DefaultExtcodesize, WidthWord))
	state.PC++
	return state
}

// concreteLength resolves a copy length operand, constraining a symbolic
// length to a single satisfiable value.
func (e *Executor) concreteLength(ctx context.Context, session Session, state *ExecutionState, length Expr) (uint64, error) {
	lengthConst, ok := length.(*ConstantExpr)
	if !ok {
		candidates, err := e.concretize(ctx, session, state, length)
		if err != nil {
			return 0, err
		}
		lengthConst = candidates[0]
		state.AddConstraint(NewBinaryExpr(EQ, length, Expr(lengthConst)))
	}
	if !lengthConst.Value.IsUint64() {
		return 0, errOutOfBounds
	}
	return lengthConst.Value.Uint64(), nil
}

var errOutOfBounds = errors.New("out of bounds")

// concretizeFailed contains a concretization failure inside the state.
func (e *Executor) concretizeFailed(state *ExecutionState, err error) ([]*ExecutionState, error) {
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		e.discardUnsat(state)
		return nil, nil
	case errors.Is(err, ErrBoundedUnknown), errors.Is(err, errOutOfBounds):
		state.Errored(ReasonSolverFailure)
		return one(state), nil
	default:
		return nil, err
	}
}

func (e *Executor) execCalldataCopy(ctx context.Context, session Session, state *ExecutionState) *ExecutionState {
	args, ok := state.PopN(3)
	if !ok {
		return state
	}
	dest, offset, length := args[0], args[1], args[2]

	n, err := e.concreteLength(ctx, session, state, length)
	if err != nil {
		state.Errored(ReasonSolverFailure)
		return state
	}
	if !state.Memory.InBounds(dest, n, e.Config.MaxMemoryIndex) {
		state.Errored(ReasonOutOfBounds)
		return state
	}

	for i := uint64(0); i < n; i++ {
		index := NewBinaryExpr(ADD, offset, NewConstantExpr(i, WidthWord))
		state.Memory.Write(NewBinaryExpr(ADD, dest, NewConstantExpr(i, WidthWord)), state.Calldata.ReadByte(index))
	}
	state.PC++
	return state
}

func (e *Executor) execCodeCopy(ctx context.Context, session Session, state *ExecutionState) *ExecutionState {
	args, ok := state.PopN(3)
	if !ok {
		return state
	}
	dest, offset, length := args[0], args[1], args[2]

	n, err := e.concreteLength(ctx, session, state, length)
	if err != nil {
		state.Errored(ReasonSolverFailure)
		return state
	}
	offsetConst, ok := offset.(*ConstantExpr)
	if !ok || !offsetConst.Value.IsUint64() {
		state.Errored(ReasonOutOfBounds)
		return state
	}
	if !state.Memory.InBounds(dest, n, e.Config.MaxMemoryIndex) {
		state.Errored(ReasonOutOfBounds)
		return state
	}

	// Bytes past the end of code copy as zero.
	for i := uint64(0); i < n; i++ {
		b := state.Contract.Byte(offsetConst.Value.Uint64() + i)
		state.Memory.Write(NewBinaryExpr(ADD, dest, NewConstantExpr(i, WidthWord)), NewConstantExpr(uint64(b), WidthByte))
	}
	state.PC++
	return state
}

func (e *Executor) execExtcodeCopy(ctx context.Context, session Session, state *ExecutionState) *ExecutionState {
	args, ok := state.PopN(4)
	if !ok {
		return state
	}
	dest, length := args[1], args[3]

	n, err := e.concreteLength(ctx, session, state, length)
	if err != nil {
		state.Errored(ReasonSolverFailure)
		return state
	}
	if !state.Memory.InBounds(dest, n, e.Config.MaxMemoryIndex) {
		state.Errored(ReasonOutOfBounds)
		return state
	}

	// External code is not modeled; the copy reads as zeros.
	for i := uint64(0); i < n; i++ {
		state.Memory.Write(NewBinaryExpr(ADD, dest, NewConstantExpr(i, WidthWord)), NewConstantExpr(0, WidthByte))
	}
	state.PC++
	return state
}

func (e *Executor) execReturndataCopy(ctx context.Context, session Session, state *ExecutionState) *ExecutionState {
	args, ok := state.PopN(3)
	if !ok {
		return state
	}
	dest, offset, length := args[0], args[1], args[2]

	n, err := e.concreteLength(ctx, session, state, length)
	if err != nil {
		state.Errored(ReasonSolverFailure)
		return state
	}
	if !state.Memory.InBounds(dest, n, e.Config.MaxMemoryIndex) {
		state.Errored(ReasonOutOfBounds)
		return state
	}

	for i := uint64(0); i < n; i++ {
		var b Expr
		if state.CallReturn != nil {
			b = state.CallReturn.selectByte(newZExtExpr(NewBinaryExpr(ADD, offset, NewConstantExpr(i, WidthWord)), WidthWord))
		} else {
			b = NewConstantExpr(0, WidthByte)
		}
		state.Memory.Write(NewBinaryExpr(ADD, dest, NewConstantExpr(i, WidthWord)), b)
	}
	state.PC++
	return state
}

func (e *Executor) execMload(state *ExecutionState) *ExecutionState {
	offset, ok := state.Pop()
	if !ok {
		return state
	}
	if !state.Memory.InBounds(offset, 32, e.Config.MaxMemoryIndex) {
		state.Errored(ReasonOutOfBounds)
		return state
	}
	state.Push(state.Memory.Read(offset, 32))
	state.PC++
	return state
}

func (e *Executor) execMstore(state *ExecutionState, op Opcode) *ExecutionState {
	args, ok := state.PopN(2)
	if !ok {
		return state
	}
	offset, value := args[0], args[1]

	n := uint64(32)
	if op == MSTORE8 {
		n = 1
	}
	if !state.Memory.InBounds(offset, n, e.Config.MaxMemoryIndex) {
		state.Errored(ReasonOutOfBounds)
		return state
	}
	if op == MSTORE8 {
		state.Memory.WriteByte(offset, value)
	} else {
		state.Memory.Write(offset, value)
	}
	state.PC++
	return state
}

// execJump handles JUMP. A concrete target is validated against the
// JUMPDEST set; a symbolic target is concretized over that set, forking
// per candidate destination.
func (e *Executor) execJump(ctx context.Context, session Session, state *ExecutionState) ([]*ExecutionState, error) {
	target, ok := state.Pop()
	if !ok {
		return one(state), nil
	}
	return e.jumpTo(ctx, session, state, target)
}

func (e *Executor) jumpTo(ctx context.Context, session Session, state *ExecutionState, target Expr) ([]*ExecutionState, error) {
	if targetConst, ok := target.(*ConstantExpr); ok {
		if !targetConst.Value.IsUint64() || !state.Contract.IsJumpdest(targetConst.Value.Uint64()) {
			state.Errored(ReasonInvalidJump)
			return one(state), nil
		}
		state.PC = targetConst.Value.Uint64()
		return one(state), nil
	}

	// Restrict candidates to the valid destination set up front; any
	// other value of the target is an invalid jump.
	dests := state.Contract.Jumpdests()
	if len(dests) == 0 {
		state.Errored(ReasonInvalidJump)
		return one(state), nil
	}
	valid := Expr(NewBoolConstantExpr(false))
	for _, dest := range dests {
		valid = NewBinaryExpr(OR, valid, NewBinaryExpr(EQ, target, NewConstantExpr(dest, WidthWord)))
	}

	candidates, err := e.concretize(ctx, session, state, target, valid)
	if err != nil {
		if errors.Is(err, ErrUnsatisfiable) {
			// No feasible valid destination.
			state.Errored(ReasonInvalidJump)
			return one(state), nil
		}
		return e.concretizeFailed(state, err)
	}

	if len(candidates) == 1 {
		state.AddConstraint(NewBinaryExpr(EQ, target, Expr(candidates[0])))
		state.PC = candidates[0].Uint64()
		return one(state), nil
	}

	var successors []*ExecutionState
	for _, targetConst := range candidates {
		child := e.forkState(state, NewBinaryExpr(EQ, target, Expr(targetConst)))
		child.PC = targetConst.Uint64()
		successors = append(successors, child)
	}
	return successors, nil
}

// execJumpi handles JUMPI, the engine's main branch point. A concrete
// condition follows a single successor. A symbolic condition forks into
// two mutually exclusive successors carrying cond and !cond; under eager
// solving each side is checked and infeasible sides are discarded, under
// lazy solving both sides are kept unchecked.
func (e *Executor) execJumpi(ctx context.Context, session Session, state *ExecutionState) ([]*ExecutionState, error) {
	args, ok := state.PopN(2)
	if !ok {
		return one(state), nil
	}
	target, cond := args[0], args[1]

	taken := wordTruth(cond)
	if takenConst, ok := taken.(*ConstantExpr); ok {
		if takenConst.IsTrue() {
			return e.jumpTo(ctx, session, state, target)
		}
		state.PC++
		return one(state), nil
	}

	notTaken := NewNotExpr(taken)
	var successors []*ExecutionState

	// Fall-through side.
	if keep, err := e.branchFeasible(ctx, session, state, notTaken); err != nil {
		return nil, err
	} else if keep {
		child := e.forkState(state, notTaken)
		child.PC++
		successors = append(successors, child)
	}

	// Taken side.
	if keep, err := e.branchFeasible(ctx, session, state, taken); err != nil {
		return nil, err
	} else if keep {
		child := e.forkState(state, taken)
		forks, err := e.jumpTo(ctx, session, child, target)
		if err != nil {
			return nil, err
		}
		successors = append(successors, forks...)
	}

	if len(successors) == 0 {
		// Both sides are infeasible, so the path itself is contradictory.
		e.discardUnsat(state)
		return nil, nil
	}
	return successors, nil
}

// branchFeasible decides whether a branch constraint keeps its side
// alive. Lazy mode keeps everything; eager mode drops proven-unsat sides
// and keeps unknowns.
func (e *Executor) branchFeasible(ctx context.Context, session Session, state *ExecutionState, constraint Expr) (bool, error) {
	if e.Config.LazySolves {
		return true, nil
	}
	constraints := append(state.Constraints[0:len(state.Constraints):len(state.Constraints)], constraint)
	result, err := e.checkSat(ctx, session, constraints)
	if err != nil {
		return false, err
	}
	return result.Status != CheckUnsat, nil
}

// execCall handles the CALL family. The callee is not executed: its
// return buffer is fresh symbolic data and its status either defaults
// optimistically or forks into success and failure.
func (e *Executor) execCall(state *ExecutionState, op Opcode) ([]*ExecutionState, error) {
	args, ok := state.PopN(op.Pops())
	if !ok {
		return one(state), nil
	}
	retOffset, retSize := args[len(args)-2], args[len(args)-1]

	// Fresh return data for RETURNDATASIZE / RETURNDATACOPY.
	retData := NewArray(fmt.Sprintf("RETDATA_%d_%d", e.env.id, state.ID), 0)
	retSizeSym := e.freshSymbol("RETURNDATASIZE", WidthWord)
	state.CallReturn = retData
	state.CallReturnSize = retSizeSym

	// The caller-visible slice of return data lands in memory.
	if retSizeConst, ok := retSize.(*ConstantExpr); ok && retSizeConst.Value.IsUint64() {
		n := retSizeConst.Value.Uint64()
		if !state.Memory.InBounds(retOffset, n, e.Config.MaxMemoryIndex) {
			state.Errored(ReasonOutOfBounds)
			return one(state), nil
		}
		for i := uint64(0); i < n; i++ {
			b := retData.selectByte(NewConstantExpr(i, WidthWord))
			state.Memory.Write(NewBinaryExpr(ADD, retOffset, NewConstantExpr(i, WidthWord)), b)
		}
	}

	if e.Config.OptimisticCallResults {
		state.Push(NewConstantExpr(e.Config.DefaultCallResult, WidthWord))
		state.PC++
		return one(state), nil
	}

	// Fork on the unknown call outcome.
	status := e.freshSymbol("CALLRESULT", WidthWord)

	success := e.forkState(state, NewBinaryExpr(EQ, Expr(status), NewConstantExpr(1, WidthWord)))
	success.Push(NewConstantExpr(1, WidthWord))
	success.PC++

	failure := e.forkState(state, NewBinaryExpr(EQ, Expr(status), NewConstantExpr(0, WidthWord)))
	failure.Push(NewConstantExpr(0, WidthWord))
	failure.PC++

	return []*ExecutionState{success, failure}, nil
}

// execReturnData pops the return buffer operands and records the buffer
// when it is concretely sized. Reports whether the operands were popped;
// false means the state already errored on stack underflow.
func (e *Executor) execReturnData(state *ExecutionState) bool {
	args, ok := state.PopN(2)
	if !ok {
		return false
	}
	offset, size := args[0], args[1]

	sizeConst, ok := size.(*ConstantExpr)
	if !ok || !sizeConst.Value.IsUint64() {
		return true // symbolic size: leave the buffer unrecorded
	}
	n := sizeConst.Value.Uint64()
	if n == 0 || !state.Memory.InBounds(offset, n, e.Config.MaxMemoryIndex) {
		return true
	}

	arr := NewZeroArray(fmt.Sprintf("RETVAL_%d_%d", e.env.id, state.ID), n)
	for i, b := range state.Memory.ReadBytes(offset, n) {
		arr.storeByte(NewConstantExpr(uint64(i), WidthWord), b)
	}
	state.ReturnData = arr
	return true
}

// concretize enumerates candidate values for expr under the state's path
// condition plus any extra constraints, with Keccak axioms applied.
func (e *Executor) concretize(ctx context.Context, session Session, state *ExecutionState, expr Expr, extra ...Expr) ([]*ConstantExpr, error) {
	cons := append(state.Constraints[0:len(state.Constraints):len(state.Constraints)], extra...)
	if axioms := Sha3Axioms(append(cons, expr)...); len(axioms) > 0 {
		cons = append(cons, axioms...)
	}
	return NewConcretizer(session, e.Config.MaxConcretize).Concretize(ctx, cons, expr)
}
