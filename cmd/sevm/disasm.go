package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

// DisasmCommand represents a command for disassembling a contract.
type DisasmCommand struct{}

// NewDisasmCommand returns a new instance of DisasmCommand.
func NewDisasmCommand() *DisasmCommand {
	return &DisasmCommand{}
}

// Run executes the "disasm" subcommand.
func (cmd *DisasmCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sevm-disasm", flag.ContinueOnError)
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("bytecode required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many arguments specified")
	}

	contract, err := loadContract(fs.Arg(0))
	if err != nil {
		return err
	}

	for pc := uint64(0); pc < contract.Len(); {
		op := contract.Opcode(pc)
		if op.IsPush() {
			fmt.Printf("%04x: %s 0x%x\n", pc, op, contract.PushData(pc))
			pc += 1 + uint64(op.PushSize())
			continue
		}
		fmt.Printf("%04x: %s\n", pc, op)
		pc++
	}
	return nil
}

func (cmd *DisasmCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: sevm disasm <bytecode>

Prints one instruction per line with its program counter. Bytecode is
given as a hex string or a path to a file containing one.
`[1:])
}
