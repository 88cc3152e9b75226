// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package bitfield packs and unpacks unsigned fields of a 32-bit word.
//
// A field is described by its width in bits and the offset of its least
// significant bit. Fields must lie entirely within the word; violating
// that is a programming error and panics.
package bitfield

// mask returns a right-aligned mask of width bits.
func mask(width uint) uint32 {
	return uint32((uint64(1) << width) - 1)
}

func check(width, lsb uint) {
	if width > 32 || lsb+width > 32 {
		panic("bitfield: field exceeds 32 bits")
	}
}

// Getu extracts the width-bit unsigned field starting at bit lsb.
func Getu(word uint32, width, lsb uint) uint32 {
	check(width, lsb)
	if width == 0 {
		return 0
	}

	return (word >> lsb) & mask(width)
}

// Newu returns word with the width-bit field at lsb replaced by value.
// Bits of value above width are discarded.
func Newu(word uint32, width, lsb uint, value uint32) uint32 {
	check(width, lsb)
	if width == 0 {
		return word
	}

	m := mask(width) << lsb
	return (word &^ m) | ((value << lsb) & m)
}

// Fitsu reports whether value can be stored in width bits.
func Fitsu(width uint, value uint32) bool {
	if width >= 32 {
		return true
	}

	return value <= mask(width)
}
