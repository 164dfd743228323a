// Package i2cbus opens Linux I2C buses as drivers.I2C for the TMF8821 driver.
package i2cbus

import (
	"fmt"
	"sync"

	"github.com/swdee/go-i2c"
	periphi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

// handle is the subset of *i2c.Options used by GoI2C
type handle interface {
	WriteBytes(buf []byte) (int, error)
	ReadBytes(buf []byte) (int, error)
	GetAddr() uint8
	GetDev() string
	Close() error
}

// GoI2C is a drivers.I2C over an i2c-dev handle bound to a single device
// address.  A Tx is a write followed by a separate read.
type GoI2C struct {
	mu  sync.Mutex
	dev handle
}

// OpenGoI2C opens the i2c-dev node dev (eg: /dev/i2c-1) for the device at
// addr
func OpenGoI2C(dev string, addr uint8) (*GoI2C, error) {

	opts, err := i2c.New(addr, dev)

	if err != nil {
		return nil, fmt.Errorf("open %s at 0x%02X: %w", dev, addr, err)
	}

	return &GoI2C{dev: opts}, nil
}

// Addr returns the device address the handle is bound to
func (b *GoI2C) Addr() uint8 {
	return b.dev.GetAddr()
}

// Tx implements drivers.I2C
func (b *GoI2C) Tx(addr uint16, w, r []byte) error {

	b.mu.Lock()
	defer b.mu.Unlock()

	if addr != uint16(b.dev.GetAddr()) {
		return fmt.Errorf("%s is bound to 0x%02X, not 0x%02X",
			b.dev.GetDev(), b.dev.GetAddr(), addr)
	}

	if len(w) > 0 {
		if _, err := b.dev.WriteBytes(w); err != nil {
			return err
		}
	}

	if len(r) == 0 {
		return nil
	}

	n, err := b.dev.ReadBytes(r)

	if err != nil {
		return err
	}

	if n != len(r) {
		return fmt.Errorf("short read: got %d of %d bytes", n, len(r))
	}

	return nil
}

// Close closes the i2c-dev handle
func (b *GoI2C) Close() error {
	return b.dev.Close()
}

// OpenPeriph initializes the periph host drivers and opens the named bus.
// An empty name opens the first bus found.  The returned bus already
// satisfies drivers.I2C.
func OpenPeriph(name string) (periphi2c.BusCloser, error) {

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	bus, err := i2creg.Open(name)

	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}

	return bus, nil
}

var (
	_ drivers.I2C = (*GoI2C)(nil)
	_ drivers.I2C = (periphi2c.Bus)(nil)
)
