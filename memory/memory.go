// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package memory implements the segmented address space of the machine.
//
// Segments are fixed length arrays of 32-bit words, named by a segment
// identifier. Identifier 0 always holds the running program. Identifiers
// released by Unmap are handed out again by Map, most recently released
// first.
package memory

import (
	"log"
	"math"
)

// Segment is a fixed length run of words.
type Segment []uint32

// Memory is the address space: a table of segments indexed by identifier,
// plus the stack of identifiers free for reuse. A nil table slot is free.
type Memory struct {
	Verbose bool // If set, logs segment map and unmap.

	segment []Segment
	free    []uint32
}

// NewMemory creates an address space with program as segment 0.
func NewMemory(program []uint32) (mem *Memory) {
	mem = &Memory{}
	mem.Reset(program)
	return
}

// Reset discards all segments and installs program as segment 0.
// Memory takes ownership of program.
func (mem *Memory) Reset(program []uint32) {
	clear(mem.segment)
	mem.segment = mem.segment[:0]
	mem.free = mem.free[:0]

	mem.segment = append(mem.segment, toSegment(program))
}

// Release drops every segment, including segment 0.
func (mem *Memory) Release() {
	if mem.Verbose {
		log.Printf("memory: release %d segments", mem.Mapped())
	}

	mem.segment = nil
	mem.free = nil
}

// toSegment converts program into a mapped (non-nil) segment.
func toSegment(program []uint32) Segment {
	if program == nil {
		return Segment{}
	}
	return Segment(program)
}

// Mapped returns the number of active segments.
func (mem *Memory) Mapped() (count int) {
	for _, seg := range mem.segment {
		if seg != nil {
			count++
		}
	}
	return
}

// Program returns segment 0, or nil after Release.
func (mem *Memory) Program() Segment {
	if len(mem.segment) == 0 {
		return nil
	}
	return mem.segment[0]
}

// Segment returns the contents of a mapped segment. The returned slice
// aliases the segment storage.
func (mem *Memory) Segment(id uint32) (seg Segment, err error) {
	if uint64(id) >= uint64(len(mem.segment)) || mem.segment[id] == nil {
		err = &ErrAddress{Id: id, Err: ErrSegmentUnmapped}
		return
	}

	seg = mem.segment[id]
	return
}

// SEGMENT_MAX is the largest segment Map will create, in words (1 GiB).
const SEGMENT_MAX = 1 << 28

// Map creates a zero filled segment of length words and returns its
// identifier. The most recently unmapped identifier is reused first.
func (mem *Memory) Map(length uint32) (id uint32, err error) {
	if length > SEGMENT_MAX {
		err = ErrSegmentSize
		return
	}

	seg := make(Segment, length)

	if n := len(mem.free); n > 0 {
		id = mem.free[n-1]
		mem.free = mem.free[:n-1]
		mem.segment[id] = seg
	} else {
		if uint64(len(mem.segment)) > math.MaxUint32 {
			err = ErrSegmentLimit
			return
		}
		id = uint32(len(mem.segment))
		mem.segment = append(mem.segment, seg)
	}

	if mem.Verbose {
		log.Printf("memory: map 0x%x [%d]", id, length)
	}

	return
}

// Unmap releases a mapped segment, making its identifier available to Map.
func (mem *Memory) Unmap(id uint32) (err error) {
	if id == 0 {
		err = &ErrAddress{Id: id, Err: ErrSegmentZero}
		return
	}

	_, err = mem.Segment(id)
	if err != nil {
		return
	}

	mem.segment[id] = nil
	mem.free = append(mem.free, id)

	if mem.Verbose {
		log.Printf("memory: unmap 0x%x", id)
	}

	return
}

// word validates an address, returning the segment holding it.
func (mem *Memory) word(id, offset uint32) (seg Segment, err error) {
	seg, err = mem.Segment(id)
	if err != nil {
		err = &ErrAddress{Id: id, Offset: offset, Err: ErrSegmentUnmapped}
		return
	}

	if uint64(offset) >= uint64(len(seg)) {
		err = &ErrAddress{Id: id, Offset: offset, Err: ErrOffsetRange}
		return
	}

	return
}

// Load reads the word at offset in segment id.
func (mem *Memory) Load(id, offset uint32) (value uint32, err error) {
	seg, err := mem.word(id, offset)
	if err != nil {
		return
	}

	value = seg[offset]
	return
}

// Store writes value to offset in segment id.
func (mem *Memory) Store(id, offset, value uint32) (err error) {
	seg, err := mem.word(id, offset)
	if err != nil {
		return
	}

	seg[offset] = value
	return
}

// Replace discards segment 0 and installs program in its place.
// Memory takes ownership of program; callers copying from another
// segment must pass a clone.
func (mem *Memory) Replace(program []uint32) {
	if len(mem.segment) == 0 {
		mem.segment = append(mem.segment, toSegment(program))
		return
	}

	mem.segment[0] = toSegment(program)
}
