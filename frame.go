package tmf8821

import "fmt"

const (
	// frameOverhead counts the command, size and checksum bytes of a frame
	frameOverhead = 3
	// MaxPayloadSize is the largest payload a single frame can carry
	MaxPayloadSize = 255 - frameOverhead
	// statusDone is the third byte of the bootloader status once the last
	// command completed
	statusDone = 0xFF
)

// Frame is a bootloader command frame.  It is built right before it is
// written to the CMD_STAT register and never kept.
type Frame struct {
	Command  uint8
	Payload  []byte
	Checksum uint8
}

// Checksum returns the one's complement of the low byte of the sum of
// command, size and payload bytes.
func Checksum(cmd, size uint8, payload []byte) uint8 {

	sum := uint32(cmd) + uint32(size)

	for _, b := range payload {
		sum += uint32(b)
	}

	return ^uint8(sum)
}

// BuildFrame returns a checksummed frame for cmd.  The payload is referenced,
// not copied.
func BuildFrame(cmd uint8, payload []byte) (Frame, error) {

	if len(payload) > MaxPayloadSize {
		return Frame{}, fmt.Errorf("command 0x%02X with %d byte payload: %w",
			cmd, len(payload), ErrInvalidPayloadSize)
	}

	return Frame{
		Command:  cmd,
		Payload:  payload,
		Checksum: Checksum(cmd, uint8(len(payload)), payload),
	}, nil
}

// Bytes returns the wire encoding: command, size, payload and checksum
func (f Frame) Bytes() []byte {

	buf := make([]byte, 0, len(f.Payload)+frameOverhead)
	buf = append(buf, f.Command, uint8(len(f.Payload)))
	buf = append(buf, f.Payload...)

	return append(buf, f.Checksum)
}

// Valid reports whether the checksum matches the frame contents
func (f Frame) Valid() bool {
	return len(f.Payload) <= MaxPayloadSize &&
		Checksum(f.Command, uint8(len(f.Payload)), f.Payload) == f.Checksum
}

// BootStatus is the status code reported by the bootloader in CMD_STAT.
type BootStatus uint8

const (
	BootReady      BootStatus = 0x00
	BootErrSize    BootStatus = 0x01
	BootErrCsum    BootStatus = 0x02
	BootErrRes     BootStatus = 0x03
	BootErrApp     BootStatus = 0x04
	BootErrTimeout BootStatus = 0x05
	BootErrLock    BootStatus = 0x06
	BootErrRange   BootStatus = 0x07
	BootErrMore    BootStatus = 0x08
)

// String implement Stringer interface for BootStatus
func (s BootStatus) String() string {
	switch s {
	case BootReady:
		return "ready"
	case BootErrSize:
		return "invalid size"
	case BootErrCsum:
		return "checksum mismatch"
	case BootErrRes:
		return "resource error"
	case BootErrApp:
		return "application error"
	case BootErrTimeout:
		return "timeout"
	case BootErrLock:
		return "locked"
	case BootErrRange:
		return "address out of range"
	case BootErrMore:
		return "more data expected"
	default:
		return "unknown status"
	}
}

// StatusKind classifies a 3 byte read of the CMD_STAT register.
type StatusKind int

const (
	// StatusBusy means the bootloader has not finished the last command
	StatusBusy StatusKind = iota
	// StatusDone is the completion marker
	StatusDone
	// StatusFailed is a checksummed error status
	StatusFailed
)

// ParseStatus classifies the status bytes read back from CMD_STAT after a
// bootloader command.  The status is itself a zero payload frame, so an
// error code is only trusted when its checksum matches.
func ParseStatus(b []byte) (StatusKind, BootStatus, error) {

	if len(b) < 3 {
		return StatusBusy, 0, fmt.Errorf("ParseStatus: insufficient data")
	}

	if b[2] == statusDone {
		return StatusDone, BootReady, nil
	}

	code := BootStatus(b[0])

	if b[1] == 0 && code != BootReady && code <= 0x0F && b[2] == Checksum(b[0], 0, nil) {
		return StatusFailed, code, nil
	}

	return StatusBusy, code, nil
}
