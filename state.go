package sevm

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// ExecutionStatus represents the lifecycle state of an execution state.
type ExecutionStatus string

const (
	// ExecutionStatusRunning occurs while the state can still step.
	ExecutionStatusRunning = ExecutionStatus("running")

	// ExecutionStatusHalted occurs after STOP, RETURN or SELFDESTRUCT.
	ExecutionStatusHalted = ExecutionStatus("halted")

	// ExecutionStatusReverted occurs after REVERT.
	ExecutionStatusReverted = ExecutionStatus("reverted")

	// ExecutionStatusErrored occurs when the state performed an invalid
	// operation: stack misuse, invalid opcode, invalid jump, or an
	// out-of-bounds access. Errored states are terminal and contained;
	// they never abort the exploration.
	ExecutionStatusErrored = ExecutionStatus("errored")
)

// Execution error reasons stored on errored states.
const (
	ReasonStackUnderflow = "stack underflow"
	ReasonStackOverflow  = "stack overflow"
	ReasonInvalidOpcode  = "invalid opcode"
	ReasonInvalidJump    = "invalid jump destination"
	ReasonOutOfBounds    = "out of bounds access"
	ReasonSolverFailure  = "solver failure"
)

// TraceEntry records one executed instruction.
type TraceEntry struct {
	PC uint64
	Op Opcode
}

// String returns the string representation of the entry.
func (e TraceEntry) String() string {
	return fmt.Sprintf("%04x:%s", e.PC, e.Op)
}

// ExecutionState represents a single path through a contract: a program
// counter, machine state, and the accumulated path constraints.
type ExecutionState struct {
	ID       uint64 // unique per executor
	ParentID uint64 // id of the state this was forked from, 0 for roots

	Contract *Contract
	Env      *Environment

	PC       uint64
	Stack    []Expr
	Memory   *Memory
	Storage  *Storage
	Calldata *Calldata

	// ReturnData holds the buffer passed to RETURN or REVERT, if any.
	ReturnData *Array

	// CallReturn holds the symbolic return buffer of the most recent
	// CALL-family instruction, backing RETURNDATASIZE and
	// RETURNDATACOPY. Nil before the first call.
	CallReturn     *Array
	CallReturnSize Expr

	Constraints []Expr
	Trace       []TraceEntry

	Depth  int    // number of forks above this state
	Steps  uint64 // instructions executed by this state and its ancestors
	Status ExecutionStatus
	Reason string // halt/revert/error detail

	maxStackSize int
}

// NewExecutionState returns a root state for contract with empty machine
// state. Callers normally obtain states from an Executor instead.
func NewExecutionState(contract *Contract, env *Environment, calldata *Calldata, storage *Storage, maxStackSize int) *ExecutionState {
	return &ExecutionState{
		Contract:     contract,
		Env:          env,
		Memory:       NewMemory(),
		Storage:      storage,
		Calldata:     calldata,
		Status:       ExecutionStatusRunning,
		maxStackSize: maxStackSize,
	}
}

// String returns a short description of the state.
func (s *ExecutionState) String() string {
	return fmt.Sprintf("state<#%d pc=%04x status=%s depth=%d>", s.ID, s.PC, s.Status, s.Depth)
}

// Terminated returns true if the state can no longer step.
func (s *ExecutionState) Terminated() bool {
	return s.Status != ExecutionStatusRunning
}

// Clone returns a copy of the state. The copy shares immutable structure
// with the original; stack and constraint slices are copied or capped so
// appends never alias.
func (s *ExecutionState) Clone() *ExecutionState {
	other := *s
	other.Stack = make([]Expr, len(s.Stack))
	copy(other.Stack, s.Stack)
	other.Memory = s.Memory.Clone()
	other.Storage = s.Storage.Clone()
	other.Calldata = s.Calldata.Clone()
	other.Constraints = s.Constraints[0:len(s.Constraints):len(s.Constraints)]
	other.Trace = s.Trace[0:len(s.Trace):len(s.Trace)]
	return &other
}

// Fork returns a clone of the state with constraint added and depth
// incremented. The receiver is unchanged.
func (s *ExecutionState) Fork(constraint Expr) *ExecutionState {
	other := s.Clone()
	other.ParentID = s.ID
	other.Depth++
	other.AddConstraint(constraint)
	return other
}

// AddConstraint appends a boolean constraint to the path condition.
// Conjunctions are split into their conjuncts; constant-true constraints
// are dropped.
func (s *ExecutionState) AddConstraint(constraint Expr) {
	assert(ExprWidth(constraint) == WidthBool, "constraint must be boolean: %s", constraint)

	if bin, ok := constraint.(*BinaryExpr); ok && bin.Op == AND {
		s.AddConstraint(bin.LHS)
		s.AddConstraint(bin.RHS)
		return
	}
	if IsConstantTrue(constraint) {
		return
	}
	s.Constraints = append(s.Constraints, constraint)
}

// Halt marks the state halted with the given reason.
func (s *ExecutionState) Halt(reason string) {
	s.Status = ExecutionStatusHalted
	s.Reason = reason
}

// Revert marks the state reverted.
func (s *ExecutionState) Revert() {
	s.Status = ExecutionStatusReverted
	s.Reason = "revert"
}

// Errored marks the state errored with the given reason. The error is
// contained within the state; exploration continues elsewhere.
func (s *ExecutionState) Errored(reason string) {
	s.Status = ExecutionStatusErrored
	s.Reason = reason
}

// Push pushes expr onto the stack. Returns false on overflow, in which
// case the state has been errored.
func (s *ExecutionState) Push(expr Expr) bool {
	if len(s.Stack) >= s.maxStackSize {
		s.Errored(ReasonStackOverflow)
		return false
	}
	s.Stack = append(s.Stack, expr)
	return true
}

// Pop removes and returns the top of the stack. Returns false on
// underflow, in which case the state has been errored.
func (s *ExecutionState) Pop() (Expr, bool) {
	if len(s.Stack) == 0 {
		s.Errored(ReasonStackUnderflow)
		return nil, false
	}
	expr := s.Stack[len(s.Stack)-1]
	s.Stack = s.Stack[:len(s.Stack)-1]
	return expr, true
}

// PopN removes and returns the top n stack values, top first.
func (s *ExecutionState) PopN(n int) ([]Expr, bool) {
	if len(s.Stack) < n {
		s.Errored(ReasonStackUnderflow)
		return nil, false
	}
	a := make([]Expr, n)
	for i := 0; i < n; i++ {
		a[i] = s.Stack[len(s.Stack)-1-i]
	}
	s.Stack = s.Stack[:len(s.Stack)-n]
	return a, true
}

// Dup duplicates the n-th stack value from the top (1-based).
func (s *ExecutionState) Dup(n int) bool {
	if len(s.Stack) < n {
		s.Errored(ReasonStackUnderflow)
		return false
	}
	return s.Push(s.Stack[len(s.Stack)-n])
}

// Swap exchanges the top of the stack with the n-th value below it.
func (s *ExecutionState) Swap(n int) bool {
	if len(s.Stack) < n+1 {
		s.Errored(ReasonStackUnderflow)
		return false
	}
	top := len(s.Stack) - 1
	s.Stack[top], s.Stack[top-n] = s.Stack[top-n], s.Stack[top]
	return true
}

// Fingerprint returns a hash identifying the state for deduplication.
// Two states with equal fingerprints have the same program counter, the
// same stack contents, and the same constraint sequence.
func (s *ExecutionState) Fingerprint() uint64 {
	h := fnv.New64a()
	writeUint64 := func(v uint64) {
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}

	writeUint64(s.PC)
	writeUint64(uint64(len(s.Stack)))
	for _, expr := range s.Stack {
		writeUint64(ExprID(expr))
	}
	for _, constraint := range s.Constraints {
		writeUint64(ExprID(constraint))
	}
	return h.Sum64()
}

// recordStep appends the instruction at the current pc to the trace.
func (s *ExecutionState) recordStep(op Opcode) {
	s.Trace = append(s.Trace, TraceEntry{PC: s.PC, Op: op})
	s.Steps++
}

// Environment holds the transaction and block context symbols shared by
// all states of a run: caller, origin, callvalue, block fields. Symbols
// are created lazily and memoized so every state observes the same
// unknowns.
type Environment struct {
	mu      sync.Mutex
	id      uint64
	symbols map[string]*SymbolExpr
}

var environmentSeq uint64

// NewEnvironment returns a new instance of Environment.
func NewEnvironment() *Environment {
	return &Environment{
		id:      atomic.AddUint64(&environmentSeq, 1),
		symbols: make(map[string]*SymbolExpr),
	}
}

// Symbol returns the memoized word-width symbol for the given context
// field, e.g. "CALLER" or "TIMESTAMP".
func (e *Environment) Symbol(name string) *SymbolExpr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sym, ok := e.symbols[name]; ok {
		return sym
	}
	sym := NewSymbolExpr(fmt.Sprintf("%s_%d", name, e.id), WidthWord)
	e.symbols[name] = sym
	return sym
}
