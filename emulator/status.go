package emulator

// Status is the run state of the emulator.
type Status int

//go:generate go tool stringer -linecomment -type=Status
const (
	STATUS_RUNNING   = Status(0) // running
	STATUS_HALTED    = Status(1) // halted
	STATUS_EXHAUSTED = Status(2) // exhausted
	STATUS_FAULTED   = Status(3) // faulted
)

// Done returns true once the run has terminated.
func (st Status) Done() bool {
	return st != STATUS_RUNNING
}
