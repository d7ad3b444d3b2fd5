package sevm

import (
	"context"
	"fmt"
)

// Finding is one reportable terminal state: the path that reached it and
// a concrete witness model when satisfiability was established.
type Finding struct {
	State *ExecutionState
	Check CheckResult

	// Model is a satisfying assignment for the path. Nil when the check
	// came back unknown.
	Model *Model
}

// String returns a short description of the finding.
func (f *Finding) String() string {
	return fmt.Sprintf("finding<#%d %s pc=%04x %s>", f.State.ID, f.State.Status, f.State.PC, f.Check.Status)
}

// CalldataBytes returns the concrete calldata witnessed by the model,
// truncated to the modeled size.
func (f *Finding) CalldataBytes() ([]byte, error) {
	if f.Model == nil {
		return nil, fmt.Errorf("finding has no model")
	}
	size, err := f.Model.Eval(f.State.Calldata.Size())
	if err != nil {
		return nil, err
	}
	if !size.Value.IsUint64() {
		return nil, fmt.Errorf("modeled calldata size out of range: %s", size.Value)
	}

	n := size.Value.Uint64()
	buf := make([]byte, n)
	for i := uint64(0); i < n; i++ {
		b, err := f.Model.Eval(f.State.Calldata.ReadByte(NewConstantExpr(i, WidthWord)))
		if err != nil {
			return nil, err
		}
		buf[i] = byte(b.Uint64())
	}
	return buf, nil
}

// EvalStack returns the model's value for the i-th stack entry from the
// top of the finding's state.
func (f *Finding) EvalStack(i int) (*ConstantExpr, error) {
	if f.Model == nil {
		return nil, fmt.Errorf("finding has no model")
	}
	if i >= len(f.State.Stack) {
		return nil, fmt.Errorf("stack index out of range: %d", i)
	}
	return f.Model.Eval(f.State.Stack[len(f.State.Stack)-1-i])
}

// Findings checks every terminal state of interest and returns one
// finding per feasible path, with a satisfying model. Under lazy solving
// this is where path conditions meet the solver for the first time:
// contradictory paths are moved to the unsat stash here instead of being
// reported.
//
// States whose check comes back unknown are reported without a model; an
// unknown never silently drops a path.
func (e *Executor) Findings(ctx context.Context) ([]*Finding, error) {
	if err := e.init(); err != nil {
		return nil, err
	}

	var findings []*Finding
	for _, stash := range []Stash{StashFound, StashHalted, StashReverted} {
		e.mu.Lock()
		states := append([]*ExecutionState(nil), e.stashes[stash]...)
		e.mu.Unlock()

		var kept []*ExecutionState
		for _, state := range states {
			result, err := e.checkSat(ctx, e.session, state.Constraints)
			if err != nil {
				return nil, err
			}

			if result.Status == CheckUnsat {
				state.Reason = "unsatisfiable"
				e.mu.Lock()
				e.moveToStash(state, StashUnsat)
				e.mu.Unlock()
				continue
			}
			kept = append(kept, state)

			finding := &Finding{State: state, Check: result}
			if result.Status == CheckSat {
				model, err := e.session.Model()
				if err != nil {
					return nil, err
				}
				finding.Model = model
			}
			findings = append(findings, finding)
		}

		e.mu.Lock()
		e.stashes[stash] = kept
		e.mu.Unlock()
	}
	return findings, nil
}

// ResumeDeferred moves every depth-deferred state back onto the frontier,
// e.g. after raising the depth budget between runs.
func (e *Executor) ResumeDeferred() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	deferred := e.stashes[StashDeferred]
	e.stashes[StashDeferred] = nil
	for _, state := range deferred {
		state.Depth = 0
		e.Searcher.AddState(state)
	}
	e.cond.Broadcast()
	return len(deferred)
}
