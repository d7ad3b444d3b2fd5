package sevm

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Stash names the buckets states are sorted into as exploration proceeds.
type Stash string

const (
	// StashActive holds states still waiting to step. Active states live
	// inside the searcher; the stash name exists for counting.
	StashActive = Stash("active")

	// StashDeferred holds states parked for exceeding the depth budget.
	StashDeferred = Stash("deferred")

	// StashHalted holds states that reached STOP, RETURN or SELFDESTRUCT.
	StashHalted = Stash("halted")

	// StashReverted holds states that reached REVERT.
	StashReverted = Stash("reverted")

	// StashErrored holds states terminated by an invalid operation.
	StashErrored = Stash("errored")

	// StashPruned holds states dropped by deduplication or by the prune
	// predicate.
	StashPruned = Stash("pruned")

	// StashUnsat holds states whose path condition proved contradictory.
	StashUnsat = Stash("unsat")

	// StashFound holds states matched by the find predicate.
	StashFound = Stash("found")
)

// EventListener receives notifications about state lifecycle transitions.
// All methods are called synchronously from the exploring goroutine.
type EventListener interface {
	StateForked(parent, child *ExecutionState)
	StatePruned(state *ExecutionState, reason string)
	StatesMerged(kept uint64, dropped *ExecutionState)
	StateTerminated(state *ExecutionState)
}

// StatePredicate classifies states, e.g. for find/prune rules.
type StatePredicate func(*ExecutionState) bool

// Breakpoint is invoked before an instruction executes.
type Breakpoint func(*ExecutionState)

// Executor explores the paths of a contract. Fields may be set after
// NewExecutor and before the first call to Run, RunParallel or
// ExecuteNextState.
type Executor struct {
	Config   Config
	Solver   Solver
	Searcher Searcher
	Listener EventListener

	// Calldata and Storage seed the root state. Defaults are fully
	// symbolic calldata and unbacked storage.
	Calldata *Calldata
	Storage  *Storage

	// FindPredicate moves matching states to the found stash and stops
	// exploring them. PrunePredicate drops matching states.
	FindPredicate  StatePredicate
	PrunePredicate StatePredicate

	// ConstraintHook observes every constraint added at a fork point.
	ConstraintHook func(*ExecutionState, Expr)

	// Verbose enables step-by-step logging.
	Verbose bool

	contract *Contract
	env      *Environment
	root     *ExecutionState

	mu           sync.Mutex
	cond         *sync.Cond
	session      Session
	initialized  bool
	stateIDSeq   uint64
	stepCount    uint64
	stateCount   int
	symbolSeq    uint64
	fingerprints map[uint64]uint64
	stashes      map[Stash][]*ExecutionState

	pcBreakpoints map[uint64]Breakpoint
	opBreakpoints map[Opcode]Breakpoint
}

// NewExecutor returns an executor for contract with the default
// configuration and a depth-first searcher. A Solver must be assigned
// before running.
func NewExecutor(contract *Contract) *Executor {
	e := &Executor{
		Config:   DefaultConfig(),
		Searcher: NewDFSSearcher(),

		contract:      contract,
		env:           NewEnvironment(),
		fingerprints:  make(map[uint64]uint64),
		stashes:       make(map[Stash][]*ExecutionState),
		pcBreakpoints: make(map[uint64]Breakpoint),
		opBreakpoints: make(map[Opcode]Breakpoint),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Contract returns the contract under exploration.
func (e *Executor) Contract() *Contract { return e.contract }

// Env returns the shared environment symbols of the run.
func (e *Executor) Env() *Environment { return e.env }

// RootState returns the initial state, or nil before the first run.
func (e *Executor) RootState() *ExecutionState { return e.root }

// Close releases the executor's solver resources.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		err := e.session.Close()
		e.session = nil
		return err
	}
	return nil
}

// BreakAtPC registers a breakpoint invoked whenever any state is about to
// execute the instruction at pc.
func (e *Executor) BreakAtPC(pc uint64, fn Breakpoint) {
	e.pcBreakpoints[pc] = fn
}

// BreakAtOpcode registers a breakpoint invoked whenever any state is
// about to execute op.
func (e *Executor) BreakAtOpcode(op Opcode, fn Breakpoint) {
	e.opBreakpoints[op] = fn
}

// init validates the configuration and builds the root state.
func (e *Executor) init() error {
	if e.initialized {
		return nil
	}
	if err := e.Config.Validate(); err != nil {
		return err
	}
	if e.Solver == nil {
		return fmt.Errorf("executor requires a solver")
	}

	session, err := e.Solver.NewSession()
	if err != nil {
		return fmt.Errorf("open solver session: %w", err)
	}
	e.session = session

	if e.Calldata == nil {
		e.Calldata = NewCalldata(e.Config.MaxCalldataSize)
	}
	if e.Storage == nil {
		e.Storage = NewStorage()
	}

	root := NewExecutionState(e.contract, e.env, e.Calldata, e.Storage, e.Config.MaxStackSize)
	root.ID = e.nextStateID()
	for _, constraint := range e.Calldata.Constraints() {
		root.AddConstraint(constraint)
	}

	// The post-transaction balance is the starting balance plus the
	// transferred value.
	root.AddConstraint(NewBinaryExpr(EQ,
		Expr(e.env.Symbol("SELFBALANCE")),
		NewBinaryExpr(ADD, Expr(e.env.Symbol("STARTBALANCE")), Expr(e.env.Symbol("CALLVALUE")))))

	e.root = root
	e.stateCount = 1
	e.Searcher.AddState(root)
	e.initialized = true
	return nil
}

// nextStateID returns the next autoincrementing state ID.
func (e *Executor) nextStateID() uint64 {
	e.stateIDSeq++
	return e.stateIDSeq
}

// freshSymbol returns a run-unique symbol with the given prefix. Called
// from step paths, which parallel workers execute without holding e.mu.
func (e *Executor) freshSymbol(prefix string, width uint) *SymbolExpr {
	n := atomic.AddUint64(&e.symbolSeq, 1)
	return NewSymbolExpr(fmt.Sprintf("%s_%d_%d", prefix, e.env.id, n), width)
}

// Stash returns the states collected in the given stash. The active stash
// is not materialized; use StashLen for its size.
func (e *Executor) Stash(stash Stash) []*ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*ExecutionState(nil), e.stashes[stash]...)
}

// StashLen returns the number of states in the given stash.
func (e *Executor) StashLen(stash Stash) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if stash == StashActive {
		return e.Searcher.Len()
	}
	return len(e.stashes[stash])
}

// Steps returns the total number of instructions executed so far.
func (e *Executor) Steps() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepCount
}

// TerminalStates returns halted, reverted and found states, the ones a
// report covers.
func (e *Executor) TerminalStates() []*ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	var a []*ExecutionState
	a = append(a, e.stashes[StashFound]...)
	a = append(a, e.stashes[StashHalted]...)
	a = append(a, e.stashes[StashReverted]...)
	return a
}

// moveToStash records a state in a terminal stash and fires events.
// Caller must hold e.mu.
func (e *Executor) moveToStash(state *ExecutionState, stash Stash) {
	e.stashes[stash] = append(e.stashes[stash], state)
	if e.Verbose {
		log.Printf("[state] %s -> %s", state, stash)
	}
	if e.Listener == nil {
		return
	}
	switch stash {
	case StashPruned, StashUnsat:
		e.Listener.StatePruned(state, string(stash)+": "+state.Reason)
	case StashHalted, StashReverted, StashErrored, StashFound:
		e.Listener.StateTerminated(state)
	}
}

// classify sorts a terminated state into its stash. Caller must hold e.mu.
func (e *Executor) classify(state *ExecutionState) {
	if e.FindPredicate != nil && e.FindPredicate(state) {
		e.moveToStash(state, StashFound)
		return
	}
	switch state.Status {
	case ExecutionStatusHalted:
		e.moveToStash(state, StashHalted)
	case ExecutionStatusReverted:
		e.moveToStash(state, StashReverted)
	case ExecutionStatusErrored:
		e.moveToStash(state, StashErrored)
	default:
		panic(fmt.Sprintf("classify: state not terminated: %s", state))
	}
}

// admit adds a running successor to the searcher, applying dedup, the
// prune predicate and the depth budget. Caller must hold e.mu.
func (e *Executor) admit(state *ExecutionState) {
	if e.PrunePredicate != nil && e.PrunePredicate(state) {
		state.Reason = "prune predicate"
		e.moveToStash(state, StashPruned)
		return
	}

	fp := state.Fingerprint()
	if keptID, ok := e.fingerprints[fp]; ok {
		state.Reason = "duplicate"
		e.stashes[StashPruned] = append(e.stashes[StashPruned], state)
		if e.Verbose {
			log.Printf("[state] merged %s into #%d", state, keptID)
		}
		if e.Listener != nil {
			e.Listener.StatesMerged(keptID, state)
		}
		return
	}
	e.fingerprints[fp] = state.ID

	if e.Config.MaxDepth > 0 && state.Depth > e.Config.MaxDepth {
		e.moveToStash(state, StashDeferred)
		return
	}
	e.Searcher.AddState(state)
	e.cond.Broadcast()
}

// budgetExceeded reports whether a global budget stops the run.
// Caller must hold e.mu.
func (e *Executor) budgetExceeded() bool {
	if e.Config.MaxSteps > 0 && e.stepCount >= e.Config.MaxSteps {
		return true
	}
	if e.Config.MaxStates > 0 && e.stateCount >= e.Config.MaxStates {
		return true
	}
	return false
}

// ExecuteNextState selects one state and steps it until it forks,
// terminates, or the run budget is exhausted. Returns the state that was
// stepped. Returns ErrNoStateAvailable when the frontier is empty.
func (e *Executor) ExecuteNextState(ctx context.Context) (*ExecutionState, error) {
	if err := e.init(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	state := e.Searcher.SelectState()
	e.mu.Unlock()
	if state == nil {
		return nil, ErrNoStateAvailable
	}

	if e.Verbose {
		log.Printf("[state] begin: %s", state)
	}
	return state, e.stepUntilFork(ctx, e.session, state)
}

// stepUntilFork drives a single state forward, keeping locality until it
// terminates or produces siblings.
func (e *Executor) stepUntilFork(ctx context.Context, session Session, state *ExecutionState) error {
	for {
		if err := ctx.Err(); err != nil {
			// Clean stop: put the state back for a later run.
			e.mu.Lock()
			e.Searcher.AddState(state)
			e.mu.Unlock()
			return err
		}

		e.mu.Lock()
		if e.budgetExceeded() {
			e.Searcher.AddState(state)
			e.mu.Unlock()
			return nil
		}
		e.stepCount++
		e.mu.Unlock()

		successors, err := e.step(ctx, session, state)
		if err != nil {
			return err
		}

		// Common case: the same state keeps running.
		if len(successors) == 1 && successors[0] == state && !state.Terminated() {
			continue
		}

		e.mu.Lock()
		for _, successor := range successors {
			if successor.Terminated() {
				e.classify(successor)
			} else {
				e.admit(successor)
			}
		}
		e.mu.Unlock()
		return nil
	}
}

// Run explores until the frontier is empty, the budget is exhausted, or
// ctx is canceled. Everything reached so far stays available through the
// stashes and Findings.
func (e *Executor) Run(ctx context.Context) error {
	if err := e.init(); err != nil {
		return err
	}
	for {
		e.mu.Lock()
		done := e.budgetExceeded()
		e.mu.Unlock()
		if done {
			return nil
		}

		if _, err := e.ExecuteNextState(ctx); err == ErrNoStateAvailable {
			return nil
		} else if err == context.Canceled || err == context.DeadlineExceeded {
			return nil
		} else if err != nil {
			return err
		}
	}
}

// RunParallel explores with n worker goroutines sharing the searcher.
// Each worker holds its own solver session; the searcher and stashes are
// guarded by the executor's mutex.
func (e *Executor) RunParallel(ctx context.Context, n int) error {
	assert(n > 0, "worker count must be positive: %d", n)
	if err := e.init(); err != nil {
		return err
	}

	var inflight int
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			session, err := e.Solver.NewSession()
			if err != nil {
				return fmt.Errorf("open worker session: %w", err)
			}
			defer session.Close()

			for {
				e.mu.Lock()
				for {
					if ctx.Err() != nil || e.budgetExceeded() {
						e.mu.Unlock()
						return nil
					}
					if state := e.Searcher.SelectState(); state != nil {
						inflight++
						e.mu.Unlock()

						err := e.stepUntilFork(ctx, session, state)

						e.mu.Lock()
						inflight--
						e.cond.Broadcast()
						e.mu.Unlock()
						if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
							return err
						}
						break
					}
					if inflight == 0 {
						// Frontier is empty and nobody can refill it.
						e.cond.Broadcast()
						e.mu.Unlock()
						return nil
					}
					e.cond.Wait()
				}
			}
		})
	}
	return g.Wait()
}

// checkSat decides satisfiability of constraints augmented with the
// Keccak injectivity axioms they imply.
func (e *Executor) checkSat(ctx context.Context, session Session, constraints []Expr) (CheckResult, error) {
	if axioms := Sha3Axioms(constraints...); len(axioms) > 0 {
		constraints = append(constraints[0:len(constraints):len(constraints)], axioms...)
	}
	return session.Check(ctx, constraints)
}

// forkState clones parent with constraint, registers the child and fires
// the fork event.
func (e *Executor) forkState(parent *ExecutionState, constraint Expr) *ExecutionState {
	child := parent.Fork(constraint)

	e.mu.Lock()
	child.ID = e.nextStateID()
	e.stateCount++
	e.mu.Unlock()

	if e.ConstraintHook != nil {
		e.ConstraintHook(child, constraint)
	}
	if e.Verbose {
		log.Printf("[fork] %s + %s", child, constraint)
	}
	if e.Listener != nil {
		e.Listener.StateForked(parent, child)
	}
	return child
}

// discardUnsat stashes a state whose path condition proved contradictory.
func (e *Executor) discardUnsat(state *ExecutionState) {
	state.Reason = "unsatisfiable"
	e.mu.Lock()
	e.moveToStash(state, StashUnsat)
	e.mu.Unlock()
}
