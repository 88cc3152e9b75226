// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"

	"github.com/ezrec/um/cpu"
	"github.com/ezrec/um/internal"
	"github.com/ezrec/um/io"
)

var _emulator_defines = map[string]string{
	"REGISTERS": fmt.Sprintf("%v", cpu.REGISTERS),
}

// Emulator state. CPU + memory + console.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the program loaded by Reset.

	Console io.Console // Console channel.
	Status  Status     // Run state.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{},
	}

	emu.Cpu.Console = &emu.Console

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.Concat2(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
		emu.Console.Defines(),
	)
}

// Assembler returns an assembler primed with the emulator defines.
func (emu *Emulator) Assembler() (asm *cpu.Assembler) {
	asm = &cpu.Assembler{Verbose: emu.Verbose}
	for equ, value := range emu.Defines() {
		asm.Predefine(equ, value)
	}

	return
}

// Close the emulator, releasing memory and flushing output.
func (emu *Emulator) Close() (err error) {
	emu.Cpu.Close()

	return emu.Console.Flush()
}

// Reset loads Program as segment 0 and clears the CPU.
func (emu *Emulator) Reset() (err error) {
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Reset(emu.Program.Binary())
	emu.Status = STATUS_RUNNING

	return
}

// Ticks returns the total ticks since a reset.
func (emu *Emulator) Ticks() int {
	return emu.Cpu.Ticks
}

// Pc returns the current program counter.
func (emu *Emulator) Pc() uint32 {
	return emu.Cpu.Pc
}

// LineNo returns the source line for the instruction at the pc, or 0 if
// it is unknown.
func (emu *Emulator) LineNo() int {
	return emu.lineNo(emu.Cpu.Pc)
}

func (emu *Emulator) lineNo(pc uint32) int {
	// The listing no longer describes segment 0 once it is replaced.
	if emu.Cpu.Swaps != 0 {
		return 0
	}

	stmt := emu.Program.Debug(pc)
	if stmt == nil {
		return 0
	}

	return stmt.LineNo
}

// ExitCode returns the process exit status for the run.
func (emu *Emulator) ExitCode() int {
	if emu.Status == STATUS_HALTED {
		return 0
	}
	return 1
}

// Tick performs a single tick of the emulator.
// Any terminal outcome releases the machine memory and flushes output.
func (emu *Emulator) Tick() (done bool, err error) {
	if emu.Status.Done() {
		done = true
		return
	}

	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	pc := emu.Cpu.Pc
	err = emu.Cpu.Tick()
	switch {
	case err == nil:
		return
	case errors.Is(err, cpu.ErrHalt):
		err = nil
		emu.Status = STATUS_HALTED
	case errors.Is(err, cpu.ErrPcRange):
		err = nil
		emu.Status = STATUS_EXHAUSTED
	default:
		err = &ErrRuntime{Pc: pc, LineNo: emu.lineNo(pc), Err: err}
		emu.Status = STATUS_FAULTED
	}

	done = true

	if emu.Verbose {
		log.Printf("emulator: %v after %d ticks", emu.Status, emu.Cpu.Ticks)
	}

	flush_err := emu.Close()
	if err == nil {
		err = flush_err
	}

	return
}

// Run ticks the emulator until it terminates.
func (emu *Emulator) Run() (err error) {
	for done := false; !done; {
		done, err = emu.Tick()
	}

	return
}
