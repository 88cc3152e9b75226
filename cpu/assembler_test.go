package cpu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assemble(t *testing.T, program ...string) (prog *Program, err error) {
	asm := &Assembler{}
	return asm.Parse(strings.NewReader(strings.Join(program, "\n")))
}

func TestAssembler(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}

	prog, err := asm.Parse(strings.NewReader(""))
	assert.NoError(err)
	assert.Equal(0, len(prog.Statements))

	assert.Equal("0", asm.Equate["LINENO"])
	assert.Equal("0xffffffff", asm.Equate["EOF"])
	assert.Equal("0x1ffffff", asm.Equate["IMM_MAX"])
}

func TestAssemblerHello(t *testing.T) {
	assert := assert.New(t)

	prog, err := assemble(t,
		"; prints H",
		"imm r0 72",
		"",
		"out r0",
		"halt",
	)
	assert.NoError(err)
	if err != nil {
		t.Fatal(err)
	}

	expected := []Statement{
		{2, 0, []string{"imm", "r0", "72"}, MakeCodeImm(0, 72), ""},
		{4, 1, []string{"out", "r0"}, MakeCode(OP_OUT, 0, 0, 0), ""},
		{5, 2, []string{"halt"}, MakeCodeHalt(), ""},
	}
	assert.Equal(expected, prog.Statements)
	assert.Equal([]uint32{0xd000_0048, 0xa000_0000, 0x7000_0000}, prog.Binary())
}

func TestAssemblerOpcodes(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		line string
		code Code
	}){
		{"cmov r1 r2 r3", MakeCode(OP_CMOV, 1, 2, 3)},
		{"load r4 r5 r6", MakeCode(OP_LOAD, 4, 5, 6)},
		{"store r7 r0 r1", MakeCode(OP_STORE, 7, 0, 1)},
		{"add r1 r1 r2", MakeCode(OP_ADD, 1, 1, 2)},
		{"mul r2 r3 r4", MakeCode(OP_MUL, 2, 3, 4)},
		{"div r3 r4 r5", MakeCode(OP_DIV, 3, 4, 5)},
		{"nand r4 r5 r6", MakeCode(OP_NAND, 4, 5, 6)},
		{"halt", MakeCodeHalt()},
		{"map r1 r2", MakeCode(OP_MAP, 0, 1, 2)},
		{"unmap r3", MakeCode(OP_UNMAP, 0, 0, 3)},
		{"out r4", MakeCode(OP_OUT, 0, 0, 4)},
		{"in r5", MakeCode(OP_IN, 0, 0, 5)},
		{"loadp r6 r7", MakeCode(OP_LOADP, 0, 6, 7)},
		{"imm r7 0x1ffffff", MakeCodeImm(7, IMM_MAX)},
		{"imm r1 'A'", MakeCodeImm(1, 'A')},
		{"imm r1 '\\n'", MakeCodeImm(1, '\n')},
		{"imm r1 ' '", MakeCodeImm(1, ' ')},
		{"imm r1 '\\\\'", MakeCodeImm(1, '\\')},
		{"imm r1 '\\e'", MakeCodeImm(1, 0x1b)},
		{".word 0xe0000000", Code(0xe000_0000)},
		{".word -1", Code(0xffff_ffff)},
		{".word ~0x0f", Code(0xffff_fff0)},
		{"\timm\tr2\t0b101", MakeCodeImm(2, 5)},
	}

	for _, entry := range table {
		prog, err := assemble(t, entry.line)
		assert.NoError(err, entry.line)
		if err != nil {
			continue
		}
		assert.Equal(1, len(prog.Statements), entry.line)
		assert.Equal(entry.code, prog.Statements[0].Code, entry.line)
	}
}

func TestAssemblerDisassemble(t *testing.T) {
	assert := assert.New(t)

	for op := OP_CMOV; op.Valid(); op++ {
		code := MakeCode(op, 1, 2, 3)
		if op == OP_IMM {
			code = MakeCodeImm(4, 0x1234)
		}

		prog, err := assemble(t, code.String())
		assert.NoError(err, code.String())
		if err != nil {
			continue
		}

		// Fields unused by the opcode are dropped by the disassembly.
		again := prog.Statements[0].Code
		assert.Equal(code.String(), again.String())
		assert.Equal(op, again.Opcode())
	}
}

func TestAssemblerEqu(t *testing.T) {
	assert := assert.New(t)

	prog, err := assemble(t,
		".equ CONST_10 0x10",
		".equ ACC r3",
		"imm ACC CONST_10",
		"imm r1 $(CONST_10 + CONST_10)",
		".equ CONST_30 $(2 * CONST_10 + CONST_10)",
		"imm r2 CONST_30",
		"imm r4 $(LINENO * 8 + 0x10)",
		"imm r5 $(IMM_MAX >> 20)",
		"add ACC ACC r1",
	)
	assert.NoError(err)
	if err != nil {
		t.Fatal(err)
	}

	expected := []Code{
		MakeCodeImm(3, 0x10),
		MakeCodeImm(1, 0x20),
		MakeCodeImm(2, 0x30),
		MakeCodeImm(4, 7*8+0x10),
		MakeCodeImm(5, 0x1f),
		MakeCode(OP_ADD, 3, 3, 1),
	}
	for n, code := range expected {
		assert.Equal(code, prog.Statements[n].Code, n)
	}
}

func TestAssemblerLabel(t *testing.T) {
	assert := assert.New(t)

	prog, err := assemble(t,
		"imm r1 Start",
		"loadp r0 r1",
		"Data: .word End",
		"Start: Again:",
		"imm r2 Data",
		"imm r3 $(Data + 1)",
		"End: halt",
	)
	assert.NoError(err)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(MakeCodeImm(1, 3), prog.Statements[0].Code)
	assert.Equal("Start", prog.Statements[0].LinkLabel)
	assert.Equal(Code(5), prog.Statements[2].Code)
	assert.Equal(MakeCodeImm(2, 2), prog.Statements[3].Code)
	assert.Equal(MakeCodeImm(3, 3), prog.Statements[4].Code)
	assert.Equal(MakeCodeHalt(), prog.Statements[5].Code)
}

func TestAssemblerMacro(t *testing.T) {
	assert := assert.New(t)

	prog, err := assemble(t,
		".macro PUTC rn ch",
		"imm rn ch",
		"out rn",
		".endm",
		".macro SKIP",
		"imm r7 @next",
		"loadp r0 r7",
		"@next:",
		".endm",
		"PUTC r1 'O'",
		"SKIP",
		"PUTC r1 'K'",
		"SKIP",
	)
	assert.NoError(err)
	if err != nil {
		t.Fatal(err)
	}

	expected := []Code{
		MakeCodeImm(1, 'O'),
		MakeCode(OP_OUT, 0, 0, 1),
		MakeCodeImm(7, 4),
		MakeCode(OP_LOADP, 0, 0, 7),
		MakeCodeImm(1, 'K'),
		MakeCode(OP_OUT, 0, 0, 1),
		MakeCodeImm(7, 8),
		MakeCode(OP_LOADP, 0, 0, 7),
	}
	assert.Equal(len(expected), len(prog.Statements))
	for n, code := range expected {
		assert.Equal(code, prog.Statements[n].Code, n)
	}
}

func TestAssemblerPredefine(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	asm.Predefine("BANNER", "'!'")
	asm.Predefine("COUNT", "3")
	asm.Predefine("COUNT", "4")

	prog, err := asm.Parse(strings.NewReader("imm r0 COUNT\nimm r1 $(COUNT * 2)"))
	assert.NoError(err)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(MakeCodeImm(0, 4), prog.Statements[0].Code)
	assert.Equal(MakeCodeImm(1, 8), prog.Statements[1].Code)
}

func TestAssemblerErrors(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name    string
		program []string
		lineno  int
		err     error
	}){
		{"unknown", []string{"halt", "jump r1"}, 2, ErrOpcodeUnknown},
		{"register", []string{"out r8"}, 1, ErrRegisterInvalid},
		{"missing", []string{"add r1 r2"}, 1, ErrOpcodeValueMissing},
		{"extra", []string{"halt r1"}, 1, ErrOpcodeExtraArgs},
		{"imm_range", []string{"imm r0 0x2000000"}, 1, ErrImmediateRange},
		{"imm_missing", []string{"imm r0"}, 1, ErrOpcodeValueMissing},
		{"word_missing", []string{".word"}, 1, ErrOpcodeValueMissing},
		{"equ_syntax", []string{".equ A"}, 1, ErrEquateSyntax},
		{"equ_dup", []string{".equ A 1", ".equ A 2"}, 2, ErrEquateDuplicate},
		{"label_dup", []string{"A: halt", "A: halt"}, 2, ErrLabelDuplicate},
		{"label_missing", []string{"halt", "imm r0 Nowhere"}, 2, ErrLabelMissing("Nowhere")},
		{"macro_nest", []string{".macro A", ".macro B"}, 2, ErrMacroNesting},
		{"macro_dup", []string{".macro A", ".endm", ".macro A"}, 3, ErrMacroDuplicate},
		{"macro_lonely", []string{".macro A", "halt"}, 2, ErrMacroLonely},
		{"endm_lonely", []string{".endm"}, 1, ErrMacroLonelyEndm},
		{"macro_args", []string{".macro A x", ".endm", "A"}, 3, ErrMacroSyntax},
		{"macro_body", []string{".macro A", "bad", ".endm", "A"}, 4, ErrOpcodeUnknown},
		{"number", []string{"imm r0 12zz"}, 1, ErrParseNumber("12zz")},
		{"escape", []string{"imm r0 '\\q'"}, 1, ErrParseNumber("'\\q'")},
		{"expression", []string{"imm r0 $(\"x\")"}, 1, ErrParseExpression("\"x\"")},
	}

	for _, entry := range table {
		_, err := assemble(t, entry.program...)
		assert.True(errors.Is(err, entry.err), "%v: %v", entry.name, err)

		var syntax *ErrSyntax
		if assert.True(errors.As(err, &syntax), entry.name) {
			assert.Equal(entry.lineno, syntax.LineNo, entry.name)
		}
	}
}
