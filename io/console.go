package io

import (
	"io"
	"iter"
	"maps"
)

const (
	CHAR_MAX = 255 // Largest value the console can transfer.
)

// Console provides byte I/O over an io.Reader for input and an io.Writer
// for output. A nil Input is always at end of file; a nil Output discards.
type Console struct {
	Input  io.Reader
	Output io.Writer
}

var _ Channel = (*Console)(nil)

// Defines returns an iter of defines for the channel.
func (con *Console) Defines() iter.Seq2[string, string] {
	return maps.All(map[string]string{
		"CHAR_MAX": "255",
	})
}

// Receive reads one byte from Input. Pending output is flushed first.
func (con *Console) Receive() (value byte, err error) {
	err = con.Flush()
	if err != nil {
		return
	}

	if con.Input == nil {
		err = io.EOF
		return
	}

	if br, ok := con.Input.(io.ByteReader); ok {
		return br.ReadByte()
	}

	var one [1]byte
	_, err = io.ReadFull(con.Input, one[:])
	if err != nil {
		return
	}

	value = one[0]
	return
}

// Send writes one byte to Output.
func (con *Console) Send(value byte) (err error) {
	if con.Output == nil {
		return
	}

	if bw, ok := con.Output.(io.ByteWriter); ok {
		return bw.WriteByte(value)
	}

	n, err := con.Output.Write([]byte{value})
	if err == nil && n != 1 {
		err = ErrConsoleShort
	}
	return
}

// Flush pushes buffered output, if Output supports it.
func (con *Console) Flush() (err error) {
	if fl, ok := con.Output.(interface{ Flush() error }); ok {
		err = fl.Flush()
	}
	return
}
