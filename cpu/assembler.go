// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/um/bitfield"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is a single pass macro assembler for the machine.
//
// Each statement assembles to exactly one instruction word, so labels
// name the pc of the statement that follows them.
type Assembler struct {
	Verbose   bool        // If set, verbosely logs the assembler actions.
	Statement []Statement // List of generated statements.

	predefine map[string]string   // Predefines
	Label     map[string]int      // Map of jump labels to pc.
	Equate    map[string]string   // Map of equates.
	Macro     map[string](*Macro) // Map of macros.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// opMap maps mnemonics to opcodes.
var opMap = func() map[string]Opcode {
	ops := make(map[string]Opcode, len(operands))
	for op := OP_CMOV; op.Valid(); op++ {
		ops[op.String()] = op
	}
	return ops
}()

// regMap maps register names to register indices.
var regMap = map[string]uint32{
	"r0": 0,
	"r1": 1,
	"r2": 2,
	"r3": 3,
	"r4": 4,
	"r5": 5,
	"r6": 6,
	"r7": 7,
}

var (
	reCharacter  = regexp.MustCompile(`'\\?[^']'`)
	reExpression = regexp.MustCompile(`\$\([^\$]*\)`)
	reSymbol     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value uint32, err error) {
	invert := false
	if strings.HasPrefix(word, "~") {
		invert = true
		word = word[1:]
	}

	v64, err := strconv.ParseInt(word, 0, 33)
	if err != nil || v64 < -int64(0x80000000) {
		err = ErrParseNumber(word)
		return
	}

	value = uint32(v64)
	if invert {
		value = ^value
	}

	return
}

// register returns the register index named by word.
func (asm *Assembler) register(word string) (reg uint32, err error) {
	reg, ok := regMap[word]
	if !ok {
		err = ErrRegisterInvalid
	}
	return
}

// valueOrLabel returns the value of a word, or the label to link it to
// if the label is not yet defined.
func (asm *Assembler) valueOrLabel(word string) (value uint32, link string, err error) {
	value, err = asm.valueOf(word)
	if err == nil || !reSymbol.MatchString(word) {
		return
	}

	err = nil
	if pc, ok := asm.Label[word]; ok {
		value = uint32(pc)
		return
	}

	link = word
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint32, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var value32 uint32
		value32, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeUint(uint(value32))
	}
	err = nil
	for key, pc := range asm.Label {
		pred[key] = starlark.MakeInt(pc)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_int, ok := dict["rc"].(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = uint32(st_int64)
	return
}

// escapes maps character literal escapes to their byte.
var escapes = map[string]byte{
	`\\`: '\\',
	`\n`: '\n',
	`\r`: '\r',
	`\t`: '\t',
	`\e`: 0x1b,
}

// character replaces a 'c' literal with its decimal value.
func character(literal string) string {
	body := literal[1 : len(literal)-1]
	if len(body) == 1 {
		return strconv.Itoa(int(body[0]))
	}
	if ch, ok := escapes[body]; ok {
		return strconv.Itoa(int(ch))
	}
	return literal
}

// substitute rewrites literals and $(...) expressions in a line.
func (asm *Assembler) substitute(line string) (out string, err error) {
	out = reCharacter.ReplaceAllStringFunc(line, character)
	out = reExpression.ReplaceAllStringFunc(out, func(str string) string {
		value, eval_err := asm.parenEval(str[2 : len(str)-1])
		if eval_err != nil && err == nil {
			err = eval_err
		}
		return fmt.Sprintf("%#x", value)
	})
	return
}

// equ handles '.equ NAME VALUE'.
func (asm *Assembler) equ(words []string) (err error) {
	if len(words) != 3 {
		return ErrEquateSyntax
	}
	if _, dup := asm.Equate[words[1]]; dup {
		return ErrEquateDuplicate
	}
	asm.Equate[words[1]] = words[2]
	return
}

// labels defines every leading 'name:' at the current pc, returning the
// remaining words.
func (asm *Assembler) labels(words []string) (rest []string, err error) {
	rest = words
	for len(rest) > 0 && strings.HasSuffix(rest[0], ":") {
		label := strings.TrimSuffix(rest[0], ":")
		if _, dup := asm.Label[label]; dup {
			err = ErrLabelDuplicate
			return
		}
		asm.Label[label] = asm.currentPc()
		rest = rest[1:]
	}
	return
}

// expand assembles the body of a macro invoked on line lineno.
func (asm *Assembler) expand(name string, macro *Macro, args []string, lineno int) (err error) {
	if len(args) != len(macro.Args) {
		return ErrMacroSyntax
	}

	saved := maps.Clone(asm.Equate)
	defer func() { asm.Equate = saved }()
	for n, arg := range macro.Args {
		asm.Equate[arg] = args[n]
	}

	// '@' names are local to this expansion.
	local := fmt.Sprintf("%v_%v_", name, lineno)

	for n, text := range macro.Lines {
		body_lineno := macro.LineNo + n

		var words []string
		words, err = asm.parseLine(strings.ReplaceAll(text, "@", local), body_lineno)
		if err == nil {
			err = asm.parseWords(words, body_lineno)
		}
		if err != nil {
			return &ErrMacro{Macro: name, Line: body_lineno, Err: err}
		}
	}

	return
}

// parseLine turns a source line into the words of one statement. Equates,
// labels and macro invocations are handled here and yield no words.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	asm.Equate["LINENO"] = strconv.Itoa(lineno)

	line, err = asm.substitute(line)
	if err != nil {
		return
	}

	words = strings.Fields(line)
	if len(words) > 0 && words[0] == ".equ" {
		return nil, asm.equ(words)
	}

	for n, word := range words {
		if equate, ok := asm.Equate[word]; ok {
			words[n] = equate
		}
	}

	words, err = asm.labels(words)
	if err != nil || len(words) == 0 {
		return
	}

	if macro, ok := asm.Macro[words[0]]; ok {
		return nil, asm.expand(words[0], macro, words[1:], lineno)
	}

	return
}

// parseWords assembles a single statement.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	if len(words) == 0 {
		return
	}

	stmt := Statement{
		LineNo: lineno,
		Pc:     asm.currentPc(),
		Words:  words,
	}

	name, args := words[0], words[1:]

	var value uint32
	switch op, ok := opMap[name]; {
	case name == ".word":
		if len(args) != 1 {
			err = argCountError(1, len(args))
			return
		}
		value, stmt.LinkLabel, err = asm.valueOrLabel(args[0])
		if err != nil {
			return
		}
		stmt.Code = Code(value)
	case !ok:
		err = ErrOpcodeUnknown
		return
	case op == OP_IMM:
		if len(args) != 2 {
			err = argCountError(2, len(args))
			return
		}
		var a uint32
		a, err = asm.register(args[0])
		if err != nil {
			return
		}
		value, stmt.LinkLabel, err = asm.valueOrLabel(args[1])
		if err != nil {
			return
		}
		if !bitfield.Fitsu(IMM_WIDTH, value) {
			err = ErrImmediateRange
			return
		}
		stmt.Code = MakeCodeImm(a, value)
	default:
		fields := operands[op]
		if len(args) != len(fields) {
			err = argCountError(len(fields), len(args))
			return
		}
		var reg [3]uint32
		for n, field := range fields {
			reg[field-'a'], err = asm.register(args[n])
			if err != nil {
				return
			}
		}
		stmt.Code = MakeCode(op, reg[0], reg[1], reg[2])
	}

	if asm.Verbose {
		log.Printf("%08x: %v", stmt.Pc, stmt.Code)
	}

	asm.Statement = append(asm.Statement, stmt)

	return
}

// argCountError selects the error for a wrong operand count.
func argCountError(want, have int) error {
	if have > want {
		return ErrOpcodeExtraArgs
	}
	return ErrOpcodeValueMissing
}

// currentPc gets the pc of the next statement.
func (asm *Assembler) currentPc() int {
	return len(asm.Statement)
}

// link resolves a label reference in a statement.
func (asm *Assembler) link(stmt *Statement) (err error) {
	pc, ok := asm.Label[stmt.LinkLabel]
	if !ok {
		err = ErrLabelMissing(stmt.LinkLabel)
		return
	}

	if stmt.Words[0] == ".word" {
		stmt.Code = Code(pc)
		return
	}

	if !bitfield.Fitsu(IMM_WIDTH, uint32(pc)) {
		err = ErrImmediateRange
		return
	}
	stmt.Code = Code(bitfield.Newu(uint32(stmt.Code), IMM_WIDTH, IMM_LSB, uint32(pc)))

	return
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = make(map[string]int, 16)
	asm.Statement = asm.Statement[:0]
	asm.Macro = make(map[string](*Macro))
	asm.Equate = maps.Clone(sysEquate)
	maps.Copy(asm.Equate, _cpu_defines)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
				Args:   words[2:],
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of labels.
	for n := range asm.Statement {
		stmt := &asm.Statement[n]

		if len(stmt.LinkLabel) == 0 {
			continue
		}

		err = asm.link(stmt)
		if err != nil {
			lineno = stmt.LineNo
			line = strings.Join(stmt.Words, " ")
			return
		}
	}

	prog = &Program{
		Statements: slices.Clone(asm.Statement),
	}

	return
}
