// Package sevm implements symbolic execution of EVM bytecode.
//
// The engine steps symbolic machine states through EVM semantics, forking
// at branch points with mutually exclusive path conditions, and uses a
// pluggable SMT solver to prune infeasible paths and produce concrete
// models for the paths it reports.
package sevm

import (
	"errors"
	"fmt"
)

// Standard widths, in bits.
const (
	WidthBool = 1
	WidthByte = 8
	WidthWord = 256
)

var (
	ErrSolverTimeout       = errors.New("solver timeout")
	ErrSolverCanceled      = errors.New("solver canceled")
	ErrSolverResourceLimit = errors.New("solver resource limit")
	ErrSolverUnknown       = errors.New("solver unknown error")

	// ErrBoundedUnknown is returned by the concretizer when it cannot
	// enumerate candidates within its solver budget. The caller must widen
	// its window or treat the value as unconstrained.
	ErrBoundedUnknown = errors.New("concretization bounded unknown")

	ErrUnsatisfiable = errors.New("unsatisfiable constraint set")

	ErrNoStateAvailable = errors.New("sevm: no state available")
)

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
