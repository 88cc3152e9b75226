package cpu

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/um/io"
)

func FuzzCpu(f *testing.F) {
	for op := range Opcode(16) {
		f.Add(uint32(MakeCode(op, 1, 2, 3)), uint32(0), uint32(1), uint32(2), uint8(0))
		f.Add(uint32(op)<<OPCODE_LSB|0x0fff_ffff, uint32(0xffffffff), uint32(0x80000000), uint32(7), uint8(3))
	}

	f.Fuzz(func(t *testing.T, word uint32, r1 uint32, r2 uint32, r3 uint32, inputs uint8) {
		assert := assert.New(t)

		code := Code(word)

		output := &bytes.Buffer{}
		input := bytes.Repeat([]byte{'x'}, int(inputs&0x3))

		cpu := NewCpu()
		cpu.Console = &io.Console{Input: bytes.NewReader(input), Output: output}
		cpu.Reset([]uint32{word, uint32(MakeCodeHalt())})
		_, err := cpu.Memory.Map(4)
		assert.NoError(err)

		for n := range REGISTERS {
			cpu.Register[n] = 0x1000_0000 + uint32(n)
		}
		cpu.Register[1] = r1
		cpu.Register[2] = r2
		cpu.Register[3] = r3

		pre := cpu.Register
		a, b, c := code.Registers()

		err = cpu.Execute(code)

		code_str := fmt.Sprintf("0x%08x (%v)\ncpu:%v", word, code, cpu.String())

		if err != nil {
			assert.Equal(1, cpu.Ticks, code_str)
			switch {
			case err == ErrHalt:
				assert.Equal(OP_HALT, code.Opcode(), code_str)
				assert.Equal(uint32(0), cpu.Pc, code_str)
			case errors.Is(err, ErrOpcode(0)):
				// Faults leave the registers alone.
				assert.Equal(pre, cpu.Register, code_str)
				assert.Equal(uint32(0), cpu.Pc, code_str)
			default:
				assert.NoError(err, code_str)
			}
			return
		}

		expected := pre
		next_pc := uint32(1)

		switch code.Opcode() {
		case OP_CMOV:
			if pre[c] != 0 {
				expected[a] = pre[b]
			}
		case OP_ADD:
			expected[a] = pre[b] + pre[c]
		case OP_MUL:
			expected[a] = pre[b] * pre[c]
		case OP_DIV:
			expected[a] = pre[b] / pre[c]
		case OP_NAND:
			expected[a] = ^(pre[b] & pre[c])
		case OP_IMM:
			reg, value := code.Immediate()
			expected[reg] = value
		case OP_OUT:
			assert.Equal([]byte{byte(pre[c])}, output.Bytes(), code_str)
		case OP_IN:
			if len(input) == 0 {
				expected[c] = EOF
			} else {
				expected[c] = 'x'
			}
		case OP_LOADP:
			next_pc = pre[c]
		default:
			// Memory operations depend on the mapping; only the pc is checked.
			expected = cpu.Register
		}

		assert.Equal(expected, cpu.Register, code_str)
		assert.Equal(next_pc, cpu.Pc, code_str)
		assert.Equal(1, cpu.Ticks, code_str)
	})
}
