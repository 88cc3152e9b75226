package cpu

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"os"

	"github.com/ezrec/um/bitfield"
	"github.com/ezrec/um/translate"
)

// Statement is one instruction word of a program, with its source
// location when the program came from the assembler.
type Statement struct {
	LineNo    int      // Source line, 0 for binary programs.
	Pc        int      // Offset in segment 0.
	Words     []string // Source words after expansion.
	Code      Code     // Instruction word.
	LinkLabel string   // Label to resolve into the word.
}

// Program is an ordered list of instruction words.
type Program struct {
	Statements []Statement
}

// NewProgram creates a program from raw instruction words.
func NewProgram(words []uint32) (prog *Program) {
	prog = &Program{
		Statements: make([]Statement, len(words)),
	}
	for n, word := range words {
		prog.Statements[n] = Statement{Pc: n, Code: Code(word)}
	}

	return
}

// Debug returns the statement at pc, or nil if there is none.
func (prog *Program) Debug(pc uint32) *Statement {
	if uint64(pc) >= uint64(len(prog.Statements)) {
		return nil
	}

	return &prog.Statements[pc]
}

// Binary returns a fresh copy of the program words.
func (prog *Program) Binary() (bins []uint32) {
	bins = make([]uint32, 0, len(prog.Statements))
	for _, code := range prog.Codes() {
		bins = append(bins, uint32(code))
	}

	return
}

// Codes iterates over the program by pc.
func (prog *Program) Codes() iter.Seq2[uint32, Code] {
	return func(yield func(pc uint32, code Code) bool) {
		for n, stmt := range prog.Statements {
			if !yield(uint32(n), stmt.Code) {
				return
			}
		}
	}
}

// Unmarshal replaces the program with the big-endian words read from
// input. The input length must be a multiple of 4 bytes.
func (prog *Program) Unmarshal(input io.Reader) (err error) {
	in := bufio.NewReader(input)

	var words []uint32
	var quad [4]byte
	for {
		_, err = io.ReadFull(in, quad[:])
		if errors.Is(err, io.EOF) {
			err = nil
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrProgramAlign
			return
		}
		if err != nil {
			return
		}

		var word uint32
		for n, octet := range quad {
			word = bitfield.Newu(word, 8, uint(24-8*n), uint32(octet))
		}
		words = append(words, word)
	}

	*prog = *NewProgram(words)
	return
}

// Marshal writes the program as big-endian words.
func (prog *Program) Marshal(output io.Writer) (err error) {
	out := bufio.NewWriter(output)

	for _, code := range prog.Codes() {
		word := uint32(code)
		var quad [4]byte
		for n := range quad {
			quad[n] = byte(bitfield.Getu(word, 8, uint(24-8*n)))
		}
		_, err = out.Write(quad[:])
		if err != nil {
			return
		}
	}

	err = out.Flush()
	return
}

// LoadProgram reads a program file. The file size must be a multiple of
// 4 bytes.
func LoadProgram(name string) (prog *Program, err error) {
	info, err := os.Stat(name)
	if err != nil {
		return
	}

	if !info.Mode().IsRegular() {
		err = translate.Errorf("%v: not a regular file", name)
		return
	}

	if info.Size()%4 != 0 {
		err = translate.Errorf("%v: %v", name, ErrProgramAlign)
		return
	}

	inf, err := os.Open(name)
	if err != nil {
		return
	}
	defer inf.Close()

	prog = &Program{}
	err = prog.Unmarshal(inf)
	if err != nil {
		prog = nil
		err = translate.Errorf("%v: %v", name, err)
		return
	}

	return
}
