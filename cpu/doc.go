// Package cpu implements the processor and assembler for the universal machine.
//
// The CPU consists of a program counter (PC) into segment 0, eight 32-bit
// general-purpose registers (r0-r7), and fourteen instructions operating on
// a segmented address space and a byte-wide console.
//
// The assembler provides a small assembly language for the instruction set,
// supporting macros, labels, equates, and compile-time expression evaluation.
package cpu
