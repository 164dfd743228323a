package tmf8821

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

func TestDecodePowerState(t *testing.T) {

	tests := []struct {
		in   uint8
		want PowerState
	}{
		{0x41, Ready},
		{0x71, Ready},
		{0x01, Initializing},
		{0x31, Initializing},
		{0x02, Standby},
		{0x32, Standby},
		{0x06, StandbyTimed},
		{0x36, StandbyTimed},
		{0x00, Error},
		{0x40, Error},
		{0x04, Error},
	}

	for _, tt := range tests {
		qt.New(t).Assert(DecodePowerState(tt.in), qt.Equals, tt.want, qt.Commentf("ENABLE 0x%02X", tt.in))
	}
}

func TestNegotiateScripts(t *testing.T) {

	tests := []struct {
		name  string
		ops   []i2ctest.IO
		polls int
	}{
		{
			name:  "ready",
			ops:   []i2ctest.IO{rd(0xE0, 0x41)},
			polls: 1,
		},
		{
			name:  "initializing",
			ops:   []i2ctest.IO{rd(0xE0, 0x01), rd(0xE0, 0x01), rd(0xE0, 0x41)},
			polls: 3,
		},
		{
			name:  "standby",
			ops:   []i2ctest.IO{rd(0xE0, 0x02), wr(0xE0, 0x01), rd(0xE0, 0x41)},
			polls: 2,
		},
		{
			name:  "standby-timed",
			ops:   []i2ctest.IO{rd(0xE0, 0x06), wr(0xE0, 0x01), rd(0xE0, 0x41)},
			polls: 2,
		},
		{
			name:  "standby-keeps-power-bits",
			ops:   []i2ctest.IO{rd(0xE0, 0x36), wr(0xE0, 0x31), rd(0xE0, 0x01), rd(0xE0, 0x41)},
			polls: 3,
		},
		{
			name: "standby-twice",
			ops: []i2ctest.IO{
				rd(0xE0, 0x02), wr(0xE0, 0x01),
				rd(0xE0, 0x22), wr(0xE0, 0x21),
				rd(0xE0, 0x41),
			},
			polls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)

			bus := playback(tt.ops...)
			d := newTestSensor(c, bus, testConfig())

			state, err := d.Negotiate()
			c.Assert(err, qt.IsNil)
			c.Assert(state, qt.Equals, Ready)

			// every scripted transaction happened, nothing else did
			c.Assert(bus.Close(), qt.IsNil)

			reads := 0
			for _, op := range tt.ops {
				if op.R != nil {
					reads++
				}
			}
			c.Assert(reads, qt.Equals, tt.polls)
		})
	}
}

func TestNegotiateOneWakePerStandbyRead(t *testing.T) {
	c := qt.New(t)

	bus := newFakeBus()
	bus.queue(0xE0, []byte{0x02}, []byte{0x06}, []byte{0x02}, []byte{0x01}, []byte{0x41})

	d := newTestSensor(c, bus, testConfig())

	state, err := d.Negotiate()
	c.Assert(err, qt.IsNil)
	c.Assert(state, qt.Equals, Ready)
	c.Assert(bus.writes(0xE0), qt.DeepEquals, [][]byte{{0x01}, {0x01}, {0x01}})
}

func TestNegotiateErrorPattern(t *testing.T) {
	c := qt.New(t)

	bus := playback(rd(0xE0, 0x00))
	d := newTestSensor(c, bus, testConfig())

	state, err := d.Negotiate()
	c.Assert(state, qt.Equals, Error)
	c.Assert(errors.Is(err, ErrDeviceNotResponding), qt.IsTrue)

	var perr *PowerStateError
	c.Assert(errors.As(err, &perr), qt.IsTrue)
	c.Assert(perr.State, qt.Equals, Error)
	c.Assert(perr.Value, qt.Equals, uint8(0x00))
	c.Assert(perr.Attempts, qt.Equals, 1)

	// no wake was attempted
	c.Assert(bus.Close(), qt.IsNil)
}

func TestNegotiateRetriesExhausted(t *testing.T) {
	c := qt.New(t)

	cfg := testConfig()
	cfg.MaxAttempts = 3

	bus := playback(rd(0xE0, 0x01), rd(0xE0, 0x01), rd(0xE0, 0x01))
	d := newTestSensor(c, bus, cfg)

	state, err := d.Negotiate()
	c.Assert(state, qt.Equals, Error)
	c.Assert(errors.Is(err, ErrDeviceNotResponding), qt.IsTrue)

	var perr *PowerStateError
	c.Assert(errors.As(err, &perr), qt.IsTrue)
	c.Assert(perr.State, qt.Equals, Initializing)
	c.Assert(perr.Attempts, qt.Equals, 3)
	c.Assert(bus.Close(), qt.IsNil)
}

func TestNegotiateTransportError(t *testing.T) {
	c := qt.New(t)

	bus := newFakeBus()
	bus.err = errors.New("remote I/O error")

	d := newTestSensor(c, bus, testConfig())

	state, err := d.Negotiate()
	c.Assert(state, qt.Equals, Error)
	c.Assert(errors.Is(err, ErrTransport), qt.IsTrue)
	c.Assert(errors.Is(err, ErrDeviceNotResponding), qt.IsFalse)
	c.Assert(errors.Is(err, bus.err), qt.IsTrue)
}

func TestPowerOn(t *testing.T) {
	c := qt.New(t)

	bus := playback(wr(0xE0, 0x01))
	d := newTestSensor(c, bus, testConfig())

	c.Assert(d.PowerOn(), qt.IsNil)
	c.Assert(bus.Close(), qt.IsNil)
}
