package tmf8821

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPayloadSize is returned when a frame payload does not fit
	// into a single command frame
	ErrInvalidPayloadSize = errors.New("invalid payload size")

	// ErrDeviceNotResponding is returned when power negotiation never reaches
	// the ready state
	ErrDeviceNotResponding = errors.New("device not responding")

	// ErrDownloadFailed is returned when a firmware download frame is not
	// acknowledged.  The download has to be restarted from DOWNLOAD_INIT
	ErrDownloadFailed = errors.New("firmware download failed")

	// ErrConfigVerificationFailed is returned when the config page signature
	// does not match
	ErrConfigVerificationFailed = errors.New("config verification failed")

	// ErrUnexpectedResultID is returned when a completion signal did not
	// carry a measurement record.  It is not fatal
	ErrUnexpectedResultID = errors.New("unexpected result id")

	// ErrTransport is matched by every bus error
	ErrTransport = errors.New("transport error")

	// ErrImageLength is returned when the firmware image does not match the
	// configured length or chunking does not cover it exactly
	ErrImageLength = errors.New("firmware image length mismatch")

	// ErrNotMeasuring is returned by result retrieval outside of a running
	// measurement
	ErrNotMeasuring = errors.New("measurement not running")

	// ErrCommandTimeout is returned when an application command never
	// reports its completion status
	ErrCommandTimeout = errors.New("command timeout")
)

// TransportError wraps an error returned by the I2C bus.
type TransportError struct {
	Op  string
	Reg uint8
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("i2c %s at register 0x%02X: %v", e.Op, e.Reg, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// PowerStateError reports a failed power negotiation.
type PowerStateError struct {
	State    PowerState
	Value    uint8
	Attempts int
}

func (e *PowerStateError) Error() string {
	return fmt.Sprintf("device not responding: power state %s (ENABLE 0x%02X) after %d polls",
		e.State, e.Value, e.Attempts)
}

func (e *PowerStateError) Is(target error) bool { return target == ErrDeviceNotResponding }

// DownloadError indicates that a bootloader command was not acknowledged
// within the retry budget.
type DownloadError struct {
	Command uint8
	Offset  int
	Status  [3]byte
	Reason  string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("firmware download failed: command 0x%02X at offset %d: %s (status % X)",
		e.Command, e.Offset, e.Reason, e.Status[:])
}

func (e *DownloadError) Is(target error) bool { return target == ErrDownloadFailed }

// StatusError is a well formed error status returned by the bootloader.
type StatusError struct {
	Command uint8
	Code    BootStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bootloader rejected command 0x%02X: %s (0x%02X)",
		e.Command, e.Code, uint8(e.Code))
}

func (e *StatusError) Is(target error) bool { return target == ErrDownloadFailed }

// SignatureError indicates the config page signature never matched.
type SignatureError struct {
	Got [4]byte
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("config verification failed: signature % X", e.Got[:])
}

func (e *SignatureError) Is(target error) bool { return target == ErrConfigVerificationFailed }

// ResultIDError indicates a completion signal whose result id is not a
// measurement record.
type ResultIDError struct {
	ID   uint8
	Want uint8
}

func (e *ResultIDError) Error() string {
	return fmt.Sprintf("unexpected result id 0x%02X, want 0x%02X", e.ID, e.Want)
}

func (e *ResultIDError) Is(target error) bool { return target == ErrUnexpectedResultID }
