package tmf8821

import "errors"

// PowerState is the CPU power state decoded from the ENABLE register.
type PowerState uint8

const (
	Unknown PowerState = iota
	Initializing
	Standby
	StandbyTimed
	Ready
	Error
)

// ENABLE register bit patterns
const (
	enableReadyMask   = 0x41
	enableReady       = 0x41
	enableInit        = 0x01
	enableStandbyMask = 0x06
	enableStandby     = 0x02
	enableStandbyT    = 0x06
	// enableKeepMask preserves the power configuration bits on wake up
	enableKeepMask = 0x30
	// enablePON is the power on request bit
	enablePON = 0x01
)

// String implement Stringer interface for PowerState
func (s PowerState) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Initializing:
		return "initializing"
	case Standby:
		return "standby"
	case StandbyTimed:
		return "standby timed"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "invalid"
	}
}

// DecodePowerState maps an ENABLE register value onto a PowerState
func DecodePowerState(v uint8) PowerState {
	switch {
	case v&enableReadyMask == enableReady:
		return Ready
	case v&enableReadyMask == enableInit:
		return Initializing
	case v&enableStandbyMask == enableStandby:
		return Standby
	case v&enableStandbyMask == enableStandbyT:
		return StandbyTimed
	default:
		return Error
	}
}

// wakeValue returns the ENABLE value that wakes the CPU from v
func wakeValue(v uint8) uint8 {
	return (v & enableKeepMask) | enablePON
}

// PowerOn sets the power on request bit, done once after the enable pin is
// raised
func (d *TMF8821) PowerOn() error {
	return d.writeReg(d.regs.Enable, enablePON)
}

// Negotiate polls the ENABLE register until the CPU is ready to accept
// commands, waking it from standby when needed.  It returns Ready, or Error
// together with an error matching ErrDeviceNotResponding.
func (d *TMF8821) Negotiate() (PowerState, error) {

	var (
		value uint8
		state = Unknown
	)

	interval, _, maxAttempts := d.polling()

	attempts, err := poll(interval, maxAttempts, func() (bool, error) {

		v, err := d.readReg(d.regs.Enable)

		if err != nil {
			return false, err
		}

		value = v
		state = DecodePowerState(v)

		switch state {
		case Ready:
			d.log.Printf("Device ready, ENABLE 0x%02X", v)
			return true, nil

		case Initializing:
			d.log.Printf("CPU initializing, polling until ready")
			return false, nil

		case Standby, StandbyTimed:
			d.log.Printf("Device in %s, waking up", state)
			return false, d.writeReg(d.regs.Enable, wakeValue(v))

		default:
			return false, errPowerError
		}
	})

	switch {
	case err == nil:
		return Ready, nil

	case errors.Is(err, errPowerError), errors.Is(err, errRetryExhausted):
		d.log.Printf("Unexpected ENABLE register value: 0x%02X", value)
		return Error, &PowerStateError{State: state, Value: value, Attempts: attempts}

	default:
		return Error, err
	}
}

// errPowerError stops negotiation on an unknown ENABLE pattern
var errPowerError = errors.New("power state error")
