package sevm

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// Default configuration values.
const (
	DefaultSolverTimeout   = 30 * time.Second
	DefaultMaxCalldataSize = 256
	DefaultMaxStackSize    = 1024
	DefaultMaxMemoryIndex  = 1 << 20
	DefaultMaxSha3Size     = 512
	DefaultMaxExpNest      = 8
	DefaultMaxConcretize   = 16
)

// Config holds the policy knobs for an exploration run. A Config is
// validated once before exploration starts and treated as immutable
// afterwards; all states of a run observe the same snapshot.
type Config struct {
	// SolverTimeout bounds each individual satisfiability check.
	// A check that exceeds it reports unknown, never unsat.
	SolverTimeout time.Duration

	// LazySolves defers satisfiability checking from fork points to
	// terminal states. Both JUMPI successors are kept without a check;
	// infeasible paths are discarded when they try to report.
	LazySolves bool

	// GreedySha3 replaces SHA3 of a fully concrete buffer with its
	// computed digest. Symbolic buffers always produce an uninterpreted
	// application.
	GreedySha3 bool

	// MaxSha3Size bounds, in bytes, the buffer length a symbolic SHA3
	// application may cover. Larger reads error the state.
	MaxSha3Size uint64

	// MaxExpNest bounds the number of squarings used to expand EXP with
	// a concrete exponent. Exponents needing more fall back to
	// concretization.
	MaxExpNest uint

	// MaxConcretize is the fan-out cutoff for concretization: when an
	// expression admits more candidate values than this, a single
	// arbitrary model is used instead of enumerating.
	MaxConcretize int

	// MaxCalldataSize bounds the symbolic CALLDATASIZE. The engine
	// pre-constrains size <= MaxCalldataSize on every initial state.
	MaxCalldataSize uint64

	// MaxStackSize is the EVM stack depth limit.
	MaxStackSize int

	// MaxMemoryIndex bounds concrete memory offsets. Accesses beyond it
	// error the state instead of allocating unbounded chains.
	MaxMemoryIndex uint64

	// MaxDepth bounds the fork depth of any single state. Zero means
	// unbounded.
	MaxDepth int

	// MaxSteps bounds the total instructions executed across all states.
	// Zero means unbounded.
	MaxSteps uint64

	// MaxStates bounds the total number of states ever created.
	// Zero means unbounded.
	MaxStates int

	// DefaultExtcodesize is pushed for EXTCODESIZE of an unknown
	// address when no chain backing is configured.
	DefaultExtcodesize uint64

	// DefaultCreateAddress is the concrete address produced by CREATE
	// and CREATE2 when address derivation is not modeled.
	DefaultCreateAddress *uint256.Int

	// OptimisticCallResults makes CALL-family opcodes produce a single
	// successor with DefaultCallResult instead of forking on
	// success/failure.
	OptimisticCallResults bool

	// DefaultCallResult is the call status pushed under
	// OptimisticCallResults. Must be 0 or 1.
	DefaultCallResult uint64
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		SolverTimeout:        DefaultSolverTimeout,
		GreedySha3:           true,
		MaxSha3Size:          DefaultMaxSha3Size,
		MaxExpNest:           DefaultMaxExpNest,
		MaxConcretize:        DefaultMaxConcretize,
		MaxCalldataSize:      DefaultMaxCalldataSize,
		MaxStackSize:         DefaultMaxStackSize,
		MaxMemoryIndex:       DefaultMaxMemoryIndex,
		DefaultExtcodesize:   0,
		DefaultCreateAddress: uint256.NewInt(0xdeadbeef),
		DefaultCallResult:    1,
	}
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if c.SolverTimeout <= 0 {
		return fmt.Errorf("config: solver timeout must be positive: %s", c.SolverTimeout)
	}
	if c.GreedySha3 && c.MaxSha3Size == 0 {
		return fmt.Errorf("config: greedy sha3 requires a non-zero max sha3 size")
	}
	if c.MaxConcretize < 1 {
		return fmt.Errorf("config: max concretize must be at least 1: %d", c.MaxConcretize)
	}
	if c.MaxCalldataSize == 0 {
		return fmt.Errorf("config: max calldata size must be non-zero")
	}
	if c.MaxStackSize < 1 || c.MaxStackSize > DefaultMaxStackSize {
		return fmt.Errorf("config: max stack size out of range: %d", c.MaxStackSize)
	}
	if c.MaxMemoryIndex == 0 {
		return fmt.Errorf("config: max memory index must be non-zero")
	}
	if c.DefaultCallResult > 1 {
		return fmt.Errorf("config: default call result must be 0 or 1: %d", c.DefaultCallResult)
	}
	if c.DefaultCreateAddress == nil {
		return fmt.Errorf("config: default create address required")
	}
	return nil
}
