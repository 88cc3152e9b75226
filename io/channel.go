// Package io provides the console streams of the machine.
package io

// Channel is a byte oriented stream attached to the CPU.
type Channel interface {
	// Receive reads the next byte. It returns io.EOF at end of input.
	Receive() (value byte, err error)
	// Send writes a single byte.
	Send(value byte) error
}
