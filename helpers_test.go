package tmf8821

import (
	"sync"
	"time"

	qt "github.com/frankban/quicktest"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"tinygo.org/x/drivers"
)

// fakeBus is a scripted register file.  Reads are served from queued replies
// first and from regs otherwise.  Writes land in regs before hook runs, so a
// hook can override what the device reports back.
type fakeBus struct {
	mu    sync.Mutex
	regs  [256]byte
	reads map[uint8][][]byte
	hook  func(f *fakeBus, w []byte)
	ops   []i2ctest.IO
	err   error
}

func newFakeBus() *fakeBus {
	return &fakeBus{reads: map[uint8][][]byte{}}
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	op := i2ctest.IO{Addr: addr, W: append([]byte(nil), w...)}

	switch {
	case len(r) > 0:
		reg := w[0]

		if q := f.reads[reg]; len(q) > 0 {
			copy(r, q[0])
			f.reads[reg] = q[1:]
		} else {
			copy(r, f.regs[reg:])
		}

		op.R = append([]byte(nil), r...)

	case len(w) > 1:
		copy(f.regs[w[0]:], w[1:])

		if f.hook != nil {
			f.hook(f, w)
		}
	}

	f.ops = append(f.ops, op)

	return nil
}

// queue adds replies for reads at reg
func (f *fakeBus) queue(reg uint8, replies ...[]byte) {

	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads[reg] = append(f.reads[reg], replies...)
}

// writes returns the write transactions starting at reg, without the
// register byte
func (f *fakeBus) writes(reg uint8) [][]byte {

	f.mu.Lock()
	defer f.mu.Unlock()

	var out [][]byte

	for _, op := range f.ops {
		if op.R == nil && len(op.W) > 1 && op.W[0] == reg {
			out = append(out, op.W[1:])
		}
	}

	return out
}

// frames returns the bootloader frames written to CMD_STAT
func (f *fakeBus) frames() [][]byte {

	var out [][]byte

	for _, w := range f.writes(0x08) {
		if len(w) >= frameOverhead {
			out = append(out, w)
		}
	}

	return out
}

// appCommands returns the application commands written to CMD_STAT
func (f *fakeBus) appCommands() []byte {

	var out []byte

	for _, w := range f.writes(0x08) {
		if len(w) == 1 {
			out = append(out, w[0])
		}
	}

	return out
}

// readCount returns how many read transactions started at reg
func (f *fakeBus) readCount(reg uint8) int {

	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0

	for _, op := range f.ops {
		if op.R != nil && op.W[0] == reg {
			n++
		}
	}

	return n
}

// newSensorBus returns a fake behaving like a TMF8821 that accepts every
// command: the bootloader completes frames, the remap starts the measurement
// application and the application acknowledges its commands.
func newSensorBus() *fakeBus {

	f := newFakeBus()
	f.regs[0x00] = AppIDBootloader
	f.regs[0xE0] = 0x02
	f.hook = simulateSensor

	return f
}

func simulateSensor(f *fakeBus, w []byte) {

	switch w[0] {
	case 0xE0:
		if w[1]&enablePON != 0 {
			f.regs[0xE0] = 0x41
		}

	case 0x08:
		if len(w) > frameOverhead {
			copy(f.regs[0x08:], []byte{0x00, 0x00, statusDone})

			if w[1] == 0x11 {
				f.regs[0x00] = AppIDMeasurement
			}

			return
		}

		switch w[1] {
		case 0x16:
			f.regs[0x08] = 0x00
			copy(f.regs[0x20:], []byte{0x16, 0x01, 0xBC, 0x00})
		case 0x15, 0x11:
			f.regs[0x08] = 0x00
		case 0x10:
			f.regs[0x08] = 0x01
		}
	}
}

// testConfig shortens every delay so scripted sequences run quickly
func testConfig() Config {

	cfg := DefaultConfig()
	cfg.PollInterval = time.Microsecond
	cfg.FramePollInterval = time.Microsecond
	cfg.RemapSettle = time.Microsecond
	cfg.MaxAttempts = 5

	return cfg
}

func newTestSensor(c *qt.C, bus drivers.I2C, cfg Config) *TMF8821 {

	d, err := New(bus, cfg)
	c.Assert(err, qt.IsNil)

	return d
}

// playback returns a non panicking i2ctest.Playback at the sensor address
func playback(ops ...i2ctest.IO) *i2ctest.Playback {

	for i := range ops {
		ops[i].Addr = uint16(Address)
	}

	return &i2ctest.Playback{Ops: ops, DontPanic: true}
}

func rd(reg uint8, r ...byte) i2ctest.IO {
	return i2ctest.IO{W: []byte{reg}, R: r}
}

func wr(w ...byte) i2ctest.IO {
	return i2ctest.IO{W: w}
}

func testImage(n int) []byte {

	img := make([]byte, n)

	for i := range img {
		img[i] = byte(i*7 + 3)
	}

	return img
}
