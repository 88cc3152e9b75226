package cpu

import (
	"fmt"
	"strings"

	"github.com/ezrec/um/bitfield"
)

// Opcode is the operation selected by the top four bits of a Code.
type Opcode int

//go:generate go tool stringer -linecomment -type=Opcode
const (
	OP_CMOV  = Opcode(0)  // cmov
	OP_LOAD  = Opcode(1)  // load
	OP_STORE = Opcode(2)  // store
	OP_ADD   = Opcode(3)  // add
	OP_MUL   = Opcode(4)  // mul
	OP_DIV   = Opcode(5)  // div
	OP_NAND  = Opcode(6)  // nand
	OP_HALT  = Opcode(7)  // halt
	OP_MAP   = Opcode(8)  // map
	OP_UNMAP = Opcode(9)  // unmap
	OP_OUT   = Opcode(10) // out
	OP_IN    = Opcode(11) // in
	OP_LOADP = Opcode(12) // loadp
	OP_IMM   = Opcode(13) // imm
)

// Instruction field layout.
const (
	OPCODE_WIDTH = 4
	OPCODE_LSB   = 28
	REG_WIDTH    = 3
	REG_A_LSB    = 6
	REG_B_LSB    = 3
	REG_C_LSB    = 0
	IMM_REG_LSB  = 25
	IMM_WIDTH    = 25
	IMM_LSB      = 0

	IMM_MAX = uint32(1<<IMM_WIDTH) - 1 // Largest load-immediate value.
)

// operands lists the register fields used by each three-register opcode.
var operands = [...]string{
	OP_CMOV:  "abc",
	OP_LOAD:  "abc",
	OP_STORE: "abc",
	OP_ADD:   "abc",
	OP_MUL:   "abc",
	OP_DIV:   "abc",
	OP_NAND:  "abc",
	OP_HALT:  "",
	OP_MAP:   "bc",
	OP_UNMAP: "c",
	OP_OUT:   "c",
	OP_IN:    "c",
	OP_LOADP: "bc",
	OP_IMM:   "",
}

// Valid returns true if the opcode is executable.
func (op Opcode) Valid() bool {
	return op >= OP_CMOV && op <= OP_IMM
}

// Code is a single 32-bit instruction word.
type Code uint32

// MakeCode creates a three-register instruction.
func MakeCode(op Opcode, a, b, c uint32) Code {
	word := bitfield.Newu(0, OPCODE_WIDTH, OPCODE_LSB, uint32(op))
	word = bitfield.Newu(word, REG_WIDTH, REG_A_LSB, a)
	word = bitfield.Newu(word, REG_WIDTH, REG_B_LSB, b)
	word = bitfield.Newu(word, REG_WIDTH, REG_C_LSB, c)
	return Code(word)
}

// MakeCodeImm creates a load-immediate instruction. Bits of value above
// IMM_MAX are discarded.
func MakeCodeImm(a, value uint32) Code {
	word := bitfield.Newu(0, OPCODE_WIDTH, OPCODE_LSB, uint32(OP_IMM))
	word = bitfield.Newu(word, REG_WIDTH, IMM_REG_LSB, a)
	word = bitfield.Newu(word, IMM_WIDTH, IMM_LSB, value)
	return Code(word)
}

// MakeCodeHalt creates a halt instruction.
func MakeCodeHalt() Code {
	return MakeCode(OP_HALT, 0, 0, 0)
}

// Opcode returns the operation of the instruction word.
func (code Code) Opcode() Opcode {
	return Opcode(bitfield.Getu(uint32(code), OPCODE_WIDTH, OPCODE_LSB))
}

// Registers decodes the three-register form.
func (code Code) Registers() (a, b, c uint32) {
	word := uint32(code)
	a = bitfield.Getu(word, REG_WIDTH, REG_A_LSB)
	b = bitfield.Getu(word, REG_WIDTH, REG_B_LSB)
	c = bitfield.Getu(word, REG_WIDTH, REG_C_LSB)
	return
}

// Immediate decodes the load-immediate form.
func (code Code) Immediate() (a, value uint32) {
	word := uint32(code)
	a = bitfield.Getu(word, REG_WIDTH, IMM_REG_LSB)
	value = bitfield.Getu(word, IMM_WIDTH, IMM_LSB)
	return
}

// String returns the assembly language representation of this instruction.
// Words that do not decode are shown as data.
func (code Code) String() string {
	op := code.Opcode()

	switch {
	case !op.Valid():
		return fmt.Sprintf(".word 0x%08x", uint32(code))
	case op == OP_IMM:
		a, value := code.Immediate()
		return fmt.Sprintf("imm r%d 0x%x", a, value)
	}

	a, b, c := code.Registers()
	reg := [3]uint32{a, b, c}

	words := []string{op.String()}
	for _, field := range operands[op] {
		words = append(words, fmt.Sprintf("r%d", reg[field-'a']))
	}

	return strings.Join(words, " ")
}
