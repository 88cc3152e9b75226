package memory

import (
	"errors"

	"github.com/ezrec/um/translate"
)

var f = translate.From

var (
	ErrSegmentUnmapped = errors.New(f("segment unmapped"))
	ErrSegmentZero     = errors.New(f("segment zero cannot be unmapped"))
	ErrSegmentLimit    = errors.New(f("segment identifiers exhausted"))
	ErrSegmentSize     = errors.New(f("segment too large"))
	ErrOffsetRange     = errors.New(f("offset out of range"))
)

// ErrAddress records the segment address of a failed access.
type ErrAddress struct {
	Id     uint32
	Offset uint32
	Err    error
}

func (err *ErrAddress) Error() string {
	return f("segment 0x%x offset 0x%x: %v", err.Id, err.Offset, err.Err)
}

func (err *ErrAddress) Unwrap() error {
	return err.Err
}
