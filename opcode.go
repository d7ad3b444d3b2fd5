package sevm

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Opcode represents a single EVM instruction opcode.
type Opcode byte

// 0x0 range - arithmetic ops.
const (
	STOP       Opcode = 0x00
	OpADD      Opcode = 0x01
	OpMUL      Opcode = 0x02
	OpSUB      Opcode = 0x03
	OpDIV      Opcode = 0x04
	OpSDIV     Opcode = 0x05
	OpMOD      Opcode = 0x06
	OpSMOD     Opcode = 0x07
	OpADDMOD   Opcode = 0x08
	OpMULMOD   Opcode = 0x09
	OpEXP      Opcode = 0x0a
	SIGNEXTEND Opcode = 0x0b
)

// 0x10 range - comparison ops.
const (
	OpLT     Opcode = 0x10
	OpGT     Opcode = 0x11
	OpSLT    Opcode = 0x12
	OpSGT    Opcode = 0x13
	OpEQ     Opcode = 0x14
	ISZERO   Opcode = 0x15
	OpAND    Opcode = 0x16
	OpOR     Opcode = 0x17
	OpXOR    Opcode = 0x18
	OpNOT    Opcode = 0x19
	BYTE     Opcode = 0x1a
	OpSHL    Opcode = 0x1b
	OpSHR    Opcode = 0x1c
	OpSAR    Opcode = 0x1d
	SHA3     Opcode = 0x20
)

// 0x30 range - closure state.
const (
	ADDRESS        Opcode = 0x30
	BALANCE        Opcode = 0x31
	ORIGIN         Opcode = 0x32
	CALLER         Opcode = 0x33
	CALLVALUE      Opcode = 0x34
	CALLDATALOAD   Opcode = 0x35
	CALLDATASIZE   Opcode = 0x36
	CALLDATACOPY   Opcode = 0x37
	CODESIZE       Opcode = 0x38
	CODECOPY       Opcode = 0x39
	GASPRICE       Opcode = 0x3a
	EXTCODESIZE    Opcode = 0x3b
	EXTCODECOPY    Opcode = 0x3c
	RETURNDATASIZE Opcode = 0x3d
	RETURNDATACOPY Opcode = 0x3e
	EXTCODEHASH    Opcode = 0x3f
)

// 0x40 range - block operations.
const (
	BLOCKHASH   Opcode = 0x40
	COINBASE    Opcode = 0x41
	TIMESTAMP   Opcode = 0x42
	NUMBER      Opcode = 0x43
	DIFFICULTY  Opcode = 0x44
	GASLIMIT    Opcode = 0x45
	CHAINID     Opcode = 0x46
	SELFBALANCE Opcode = 0x47
	BASEFEE     Opcode = 0x48
)

// 0x50 range - 'storage' and execution.
const (
	POP      Opcode = 0x50
	MLOAD    Opcode = 0x51
	MSTORE   Opcode = 0x52
	MSTORE8  Opcode = 0x53
	SLOAD    Opcode = 0x54
	SSTORE   Opcode = 0x55
	JUMP     Opcode = 0x56
	JUMPI    Opcode = 0x57
	PC       Opcode = 0x58
	MSIZE    Opcode = 0x59
	GAS      Opcode = 0x5a
	JUMPDEST Opcode = 0x5b
)

// 0x60 through 0x9f range - pushes, dups, swaps.
const (
	PUSH1  Opcode = 0x60
	PUSH32 Opcode = 0x7f
	DUP1   Opcode = 0x80
	DUP16  Opcode = 0x8f
	SWAP1  Opcode = 0x90
	SWAP16 Opcode = 0x9f
)

// 0xa0 range - logging ops.
const (
	LOG0 Opcode = 0xa0
	LOG4 Opcode = 0xa4
)

// 0xf0 range - closures.
const (
	CREATE       Opcode = 0xf0
	CALL         Opcode = 0xf1
	CALLCODE     Opcode = 0xf2
	RETURN       Opcode = 0xf3
	DELEGATECALL Opcode = 0xf4
	CREATE2      Opcode = 0xf5
	STATICCALL   Opcode = 0xfa
	REVERT       Opcode = 0xfd
	INVALID      Opcode = 0xfe
	SELFDESTRUCT Opcode = 0xff
)

// IsPush returns true for the PUSH1 through PUSH32 range.
func (op Opcode) IsPush() bool { return op >= PUSH1 && op <= PUSH32 }

// IsDup returns true for the DUP1 through DUP16 range.
func (op Opcode) IsDup() bool { return op >= DUP1 && op <= DUP16 }

// IsSwap returns true for the SWAP1 through SWAP16 range.
func (op Opcode) IsSwap() bool { return op >= SWAP1 && op <= SWAP16 }

// IsLog returns true for the LOG0 through LOG4 range.
func (op Opcode) IsLog() bool { return op >= LOG0 && op <= LOG4 }

// PushSize returns the number of immediate bytes following a push opcode.
func (op Opcode) PushSize() int {
	assert(op.IsPush(), "not a push opcode: %s", op)
	return int(op-PUSH1) + 1
}

// opcodeInfo holds static metadata for a single opcode.
type opcodeInfo struct {
	name   string
	pops   int
	pushes int
}

var opcodeTable = map[Opcode]opcodeInfo{
	STOP:       {"STOP", 0, 0},
	OpADD:      {"ADD", 2, 1},
	OpMUL:      {"MUL", 2, 1},
	OpSUB:      {"SUB", 2, 1},
	OpDIV:      {"DIV", 2, 1},
	OpSDIV:     {"SDIV", 2, 1},
	OpMOD:      {"MOD", 2, 1},
	OpSMOD:     {"SMOD", 2, 1},
	OpADDMOD:   {"ADDMOD", 3, 1},
	OpMULMOD:   {"MULMOD", 3, 1},
	OpEXP:      {"EXP", 2, 1},
	SIGNEXTEND: {"SIGNEXTEND", 2, 1},

	OpLT:   {"LT", 2, 1},
	OpGT:   {"GT", 2, 1},
	OpSLT:  {"SLT", 2, 1},
	OpSGT:  {"SGT", 2, 1},
	OpEQ:   {"EQ", 2, 1},
	ISZERO: {"ISZERO", 1, 1},
	OpAND:  {"AND", 2, 1},
	OpOR:   {"OR", 2, 1},
	OpXOR:  {"XOR", 2, 1},
	OpNOT:  {"NOT", 1, 1},
	BYTE:   {"BYTE", 2, 1},
	OpSHL:  {"SHL", 2, 1},
	OpSHR:  {"SHR", 2, 1},
	OpSAR:  {"SAR", 2, 1},
	SHA3:   {"SHA3", 2, 1},

	ADDRESS:        {"ADDRESS", 0, 1},
	BALANCE:        {"BALANCE", 1, 1},
	ORIGIN:         {"ORIGIN", 0, 1},
	CALLER:         {"CALLER", 0, 1},
	CALLVALUE:      {"CALLVALUE", 0, 1},
	CALLDATALOAD:   {"CALLDATALOAD", 1, 1},
	CALLDATASIZE:   {"CALLDATASIZE", 0, 1},
	CALLDATACOPY:   {"CALLDATACOPY", 3, 0},
	CODESIZE:       {"CODESIZE", 0, 1},
	CODECOPY:       {"CODECOPY", 3, 0},
	GASPRICE:       {"GASPRICE", 0, 1},
	EXTCODESIZE:    {"EXTCODESIZE", 1, 1},
	EXTCODECOPY:    {"EXTCODECOPY", 4, 0},
	RETURNDATASIZE: {"RETURNDATASIZE", 0, 1},
	RETURNDATACOPY: {"RETURNDATACOPY", 3, 0},
	EXTCODEHASH:    {"EXTCODEHASH", 1, 1},

	BLOCKHASH:   {"BLOCKHASH", 1, 1},
	COINBASE:    {"COINBASE", 0, 1},
	TIMESTAMP:   {"TIMESTAMP", 0, 1},
	NUMBER:      {"NUMBER", 0, 1},
	DIFFICULTY:  {"DIFFICULTY", 0, 1},
	GASLIMIT:    {"GASLIMIT", 0, 1},
	CHAINID:     {"CHAINID", 0, 1},
	SELFBALANCE: {"SELFBALANCE", 0, 1},
	BASEFEE:     {"BASEFEE", 0, 1},

	POP:      {"POP", 1, 0},
	MLOAD:    {"MLOAD", 1, 1},
	MSTORE:   {"MSTORE", 2, 0},
	MSTORE8:  {"MSTORE8", 2, 0},
	SLOAD:    {"SLOAD", 1, 1},
	SSTORE:   {"SSTORE", 2, 0},
	JUMP:     {"JUMP", 1, 0},
	JUMPI:    {"JUMPI", 2, 0},
	PC:       {"PC", 0, 1},
	MSIZE:    {"MSIZE", 0, 1},
	GAS:      {"GAS", 0, 1},
	JUMPDEST: {"JUMPDEST", 0, 0},

	CREATE:       {"CREATE", 3, 1},
	CALL:         {"CALL", 7, 1},
	CALLCODE:     {"CALLCODE", 7, 1},
	RETURN:       {"RETURN", 2, 0},
	DELEGATECALL: {"DELEGATECALL", 6, 1},
	CREATE2:      {"CREATE2", 4, 1},
	STATICCALL:   {"STATICCALL", 6, 1},
	REVERT:       {"REVERT", 2, 0},
	INVALID:      {"INVALID", 0, 0},
	SELFDESTRUCT: {"SELFDESTRUCT", 1, 0},
}

// IsValid returns true if op is a defined opcode.
func (op Opcode) IsValid() bool {
	if op.IsPush() || op.IsDup() || op.IsSwap() || op.IsLog() {
		return true
	}
	_, ok := opcodeTable[op]
	return ok
}

// Pops returns the number of stack operands consumed by op.
func (op Opcode) Pops() int {
	switch {
	case op.IsPush():
		return 0
	case op.IsDup():
		return int(op-DUP1) + 1
	case op.IsSwap():
		return int(op-SWAP1) + 2
	case op.IsLog():
		return int(op-LOG0) + 2
	}
	return opcodeTable[op].pops
}

// Pushes returns the number of stack operands produced by op.
func (op Opcode) Pushes() int {
	switch {
	case op.IsPush():
		return 1
	case op.IsDup():
		return int(op-DUP1) + 2
	case op.IsSwap():
		return int(op-SWAP1) + 2
	case op.IsLog():
		return 0
	}
	return opcodeTable[op].pushes
}

// String returns the mnemonic for the opcode.
func (op Opcode) String() string {
	switch {
	case op.IsPush():
		return fmt.Sprintf("PUSH%d", op.PushSize())
	case op.IsDup():
		return fmt.Sprintf("DUP%d", int(op-DUP1)+1)
	case op.IsSwap():
		return fmt.Sprintf("SWAP%d", int(op-SWAP1)+1)
	case op.IsLog():
		return fmt.Sprintf("LOG%d", int(op-LOG0))
	}
	if info, ok := opcodeTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("opcode(0x%02x)", byte(op))
}

// Contract represents an immutable EVM bytecode image together with its
// valid jump destinations.
type Contract struct {
	code      []byte
	jumpdests bitmap
}

// NewContract returns a Contract for the given bytecode. The valid jump
// destination set is computed once, skipping over push immediates.
func NewContract(code []byte) *Contract {
	c := &Contract{
		code:      append([]byte(nil), code...),
		jumpdests: newBitmap(uint64(len(code))),
	}
	for pc := 0; pc < len(code); pc++ {
		op := Opcode(code[pc])
		if op == JUMPDEST {
			c.jumpdests.set(uint64(pc))
		} else if op.IsPush() {
			pc += op.PushSize()
		}
	}
	return c
}

// ParseContract returns a Contract parsed from a hex string,
// with or without a "0x" prefix.
func ParseContract(s string) (*Contract, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	code, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse contract code: %w", err)
	}
	return NewContract(code), nil
}

// Len returns the bytecode length in bytes.
func (c *Contract) Len() uint64 { return uint64(len(c.code)) }

// Opcode returns the opcode at pc. Past-the-end reads return STOP,
// matching EVM semantics.
func (c *Contract) Opcode(pc uint64) Opcode {
	if pc >= uint64(len(c.code)) {
		return STOP
	}
	return Opcode(c.code[pc])
}

// Byte returns the raw code byte at pc, or zero past the end.
func (c *Contract) Byte(pc uint64) byte {
	if pc >= uint64(len(c.code)) {
		return 0
	}
	return c.code[pc]
}

// PushData returns the (zero-padded) immediate operand of a push at pc.
func (c *Contract) PushData(pc uint64) []byte {
	op := c.Opcode(pc)
	n := op.PushSize()
	data := make([]byte, n)
	for i := 0; i < n; i++ {
		data[i] = c.Byte(pc + 1 + uint64(i))
	}
	return data
}

// IsJumpdest returns true if pc is a valid JUMPDEST (not push data).
func (c *Contract) IsJumpdest(pc uint64) bool {
	if pc >= uint64(len(c.code)) {
		return false
	}
	return c.jumpdests.isSet(pc)
}

// Jumpdests returns all valid jump destinations in ascending order.
func (c *Contract) Jumpdests() []uint64 {
	var a []uint64
	for pc := uint64(0); pc < uint64(len(c.code)); pc++ {
		if c.jumpdests.isSet(pc) {
			a = append(a, pc)
		}
	}
	return a
}

// bitmap is a simple bit vector indexed by program counter.
type bitmap []byte

func newBitmap(n uint64) bitmap { return make(bitmap, (n+7)/8) }

func (b bitmap) set(i uint64)        { b[i/8] |= 1 << (i % 8) }
func (b bitmap) isSet(i uint64) bool { return b[i/8]&(1<<(i%8)) != 0 }
