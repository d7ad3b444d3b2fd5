package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/evmlab/sevm"
	"github.com/evmlab/sevm/z3"
)

// RunCommand represents a command for symbolically executing a contract.
type RunCommand struct{}

// NewRunCommand returns a new instance of RunCommand.
func NewRunCommand() *RunCommand {
	return &RunCommand{}
}

// Run executes the "run" subcommand.
func (cmd *RunCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sevm-run", flag.ContinueOnError)
	calldata := fs.String("calldata", "", "calldata template, \"ss\" marks a symbolic byte")
	calldataSize := fs.Uint64("calldata-size", sevm.DefaultMaxCalldataSize, "maximum symbolic calldata size")
	timeout := fs.Duration("timeout", sevm.DefaultSolverTimeout, "per-check solver timeout")
	lazy := fs.Bool("lazy", false, "defer satisfiability checks to terminal states")
	optimistic := fs.Bool("optimistic-calls", false, "assume external calls succeed without forking")
	maxDepth := fs.Int("max-depth", 0, "maximum fork depth, 0 for unbounded")
	maxStates := fs.Int("max-states", 0, "maximum number of states, 0 for unbounded")
	workers := fs.Int("workers", 1, "number of exploration workers")
	dump := fs.Bool("dump", false, "dump terminal states")
	verbose := fs.Bool("v", false, "verbose")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("bytecode required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many arguments specified")
	}

	log.SetFlags(0)
	if !*verbose {
		log.SetOutput(ioutil.Discard)
	}

	contract, err := loadContract(fs.Arg(0))
	if err != nil {
		return err
	}

	e := sevm.NewExecutor(contract)
	e.Solver = z3.NewSolver(*timeout)
	e.Verbose = *verbose
	e.Config.SolverTimeout = *timeout
	e.Config.LazySolves = *lazy
	e.Config.OptimisticCallResults = *optimistic
	e.Config.MaxDepth = *maxDepth
	e.Config.MaxStates = *maxStates
	e.Config.MaxCalldataSize = *calldataSize
	defer e.Close()

	if *calldata != "" {
		cd, err := sevm.ParseCalldata(*calldata, *calldataSize)
		if err != nil {
			return err
		}
		e.Calldata = cd
	}

	if *workers > 1 {
		err = e.RunParallel(ctx, *workers)
	} else {
		err = e.Run(ctx)
	}
	if err != nil {
		return err
	}

	findings, err := e.Findings(ctx)
	if err != nil {
		return err
	}

	for _, finding := range findings {
		fmt.Printf("%s\n", finding)
		if finding.Model != nil {
			if buf, err := finding.CalldataBytes(); err == nil {
				fmt.Printf("  calldata: 0x%x\n", buf)
			}
		}
		if *dump {
			spew.Fdump(os.Stdout, finding.State)
		}
	}

	fmt.Printf("\nsteps=%d halted=%d reverted=%d errored=%d pruned=%d unsat=%d\n",
		e.Steps(),
		e.StashLen(sevm.StashHalted),
		e.StashLen(sevm.StashReverted),
		e.StashLen(sevm.StashErrored),
		e.StashLen(sevm.StashPruned),
		e.StashLen(sevm.StashUnsat),
	)
	return nil
}

// loadContract reads bytecode from a file, or parses the argument as hex
// if no such file exists.
func loadContract(arg string) (*sevm.Contract, error) {
	if buf, err := ioutil.ReadFile(arg); err == nil {
		return sevm.ParseContract(strings.TrimSpace(string(buf)))
	}
	return sevm.ParseContract(arg)
}

func (cmd *RunCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: sevm run [arguments] <bytecode>

Executes contract bytecode over symbolic calldata and reports one
finding per feasible terminal state. Bytecode is given as a hex string
or a path to a file containing one.

Arguments:

	-calldata template
	    Calldata template. Hex digits are concrete; "ss" marks a
	    symbolic byte.

	-calldata-size n
	    Maximum symbolic calldata size in bytes.

	-timeout duration
	    Per-check solver timeout.

	-lazy
	    Defer satisfiability checks to terminal states.

	-optimistic-calls
	    Assume external calls succeed without forking.

	-max-depth n
	    Maximum fork depth. Zero means unbounded.

	-max-states n
	    Maximum number of states. Zero means unbounded.

	-workers n
	    Number of exploration workers.

	-dump
	    Dump terminal states.

	-v
	    Enable verbose logging.
`[1:])
}
