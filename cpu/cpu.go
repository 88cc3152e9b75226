// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"fmt"
	stdio "io"
	"iter"
	"log"
	"maps"
	"slices"

	"github.com/ezrec/um/io"
	"github.com/ezrec/um/memory"
)

// Channel is an I/O channel interface.
type Channel io.Channel

// REGISTERS is the size of the register bank.
const REGISTERS = 8

// EOF is the value the input instruction stores at end of input.
const EOF = ^uint32(0)

var _cpu_defines = map[string]string{
	"EOF":         fmt.Sprintf("%#x", EOF),
	"IMM_MAX":     fmt.Sprintf("%#x", IMM_MAX),
	"SEG_PROGRAM": "0",
}

// Cpu is the simulation context for the machine.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Memory  *memory.Memory // Segmented address space; segment 0 is executed.
	Console Channel        // Console for the input and output instructions.

	Pc       uint32            // Offset of the next instruction in segment 0.
	Register [REGISTERS]uint32 // Register bank.

	Ticks int // Instructions executed since reset.
	Swaps int // Program replacements since reset.
}

// NewCpu creates a CPU with an empty program and no console.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{
		Memory:  memory.NewMemory(nil),
		Console: &io.Console{},
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Close releases the address space.
func (cpu *Cpu) Close() (err error) {
	cpu.Memory.Release()

	return
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	text += fmt.Sprintf("% 5s: %04X_%04X\n", "pc", cpu.Pc>>16, cpu.Pc&0xffff)
	for n, val := range cpu.Register {
		text += fmt.Sprintf("% 5s: %04X_%04X\n", fmt.Sprintf("r%d", n), val>>16, val&0xffff)
	}
	text += fmt.Sprintf("% 5s: %d\n", "segs", cpu.Memory.Mapped())
	text += fmt.Sprintf("% 5s: %d\n", "ticks", cpu.Ticks)
	text += fmt.Sprintf("% 5s: %d\n", "swaps", cpu.Swaps)

	return
}

// Reset the CPU state.
// - Clears the registers, pc and tick counter.
// - Installs program as segment 0, discarding all other segments.
//
// The CPU takes ownership of program.
func (cpu *Cpu) Reset(program []uint32) {
	if cpu.Verbose {
		log.Printf("cpu: reset, %d words", len(program))
	}

	clear(cpu.Register[:])
	cpu.Pc = 0
	cpu.Ticks = 0
	cpu.Swaps = 0

	cpu.Memory.Verbose = cpu.Verbose
	cpu.Memory.Reset(program)
}

// FetchCode fetches the instruction at the pc.
func (cpu *Cpu) FetchCode() (code Code, err error) {
	program := cpu.Memory.Program()
	if uint64(cpu.Pc) >= uint64(len(program)) {
		err = ErrPcRange
		return
	}

	code = Code(program[cpu.Pc])
	return
}

// Tick executes a single CPU instruction cycle.
func (cpu *Cpu) Tick() (err error) {
	cpu.Memory.Verbose = cpu.Verbose

	code, err := cpu.FetchCode()
	if err != nil {
		return
	}

	err = cpu.Execute(code)
	return
}

// Execute executes a single decoded instruction.
// The halt instruction returns ErrHalt, leaving the pc on the halt.
func (cpu *Cpu) Execute(code Code) (err error) {
	defer func() {
		if err != nil && err != ErrHalt {
			err = errors.Join(ErrOpcode(code), err)
		}
	}()
	if cpu.Verbose {
		log.Printf("%08x: %v", cpu.Pc, code)
	}

	mem := cpu.Memory
	reg := &cpu.Register

	next_pc := cpu.Pc + 1

	op := code.Opcode()

	var a, b, c uint32
	if op != OP_IMM {
		a, b, c = code.Registers()
	}

	cpu.Ticks++

	switch op {
	case OP_CMOV:
		if reg[c] != 0 {
			reg[a] = reg[b]
		}
	case OP_LOAD:
		var value uint32
		value, err = mem.Load(reg[b], reg[c])
		if err != nil {
			return
		}
		reg[a] = value
	case OP_STORE:
		err = mem.Store(reg[a], reg[b], reg[c])
		if err != nil {
			return
		}
	case OP_ADD:
		reg[a] = reg[b] + reg[c]
	case OP_MUL:
		reg[a] = reg[b] * reg[c]
	case OP_DIV:
		if reg[c] == 0 {
			err = ErrDivideByZero
			return
		}
		reg[a] = reg[b] / reg[c]
	case OP_NAND:
		reg[a] = ^(reg[b] & reg[c])
	case OP_HALT:
		err = ErrHalt
		return
	case OP_MAP:
		var id uint32
		id, err = mem.Map(reg[c])
		if err != nil {
			return
		}
		reg[b] = id
	case OP_UNMAP:
		err = mem.Unmap(reg[c])
		if err != nil {
			return
		}
	case OP_OUT:
		if reg[c] > io.CHAR_MAX {
			err = ErrOutputRange
			return
		}
		err = cpu.Console.Send(byte(reg[c]))
		if err != nil {
			err = errors.Join(ErrOutput, err)
			return
		}
	case OP_IN:
		var value byte
		value, err = cpu.Console.Receive()
		switch {
		case err == nil:
			reg[c] = uint32(value)
		case errors.Is(err, stdio.EOF):
			err = nil
			reg[c] = EOF
		default:
			err = errors.Join(ErrInput, err)
			return
		}
	case OP_LOADP:
		if reg[b] != 0 {
			var seg memory.Segment
			seg, err = mem.Segment(reg[b])
			if err != nil {
				return
			}
			// The source stays mapped and may change later.
			mem.Replace(slices.Clone(seg))
			cpu.Swaps++
		}
		next_pc = reg[c]
	case OP_IMM:
		a, value := code.Immediate()
		reg[a] = value
	default:
		err = ErrOpcodeInvalid
		return
	}

	cpu.Pc = next_pc

	return
}
