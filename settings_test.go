package tmf8821

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"tinygo.org/x/drivers/tester"
)

func TestMatchSignature(t *testing.T) {
	c := qt.New(t)

	d := newTestSensor(c, newFakeBus(), testConfig())

	good := []byte{0x16, 0x00, 0xBC, 0x00}
	c.Assert(d.MatchSignature(good), qt.IsTrue)

	// the second byte is not part of the signature
	for _, v := range []byte{0x01, 0x7F, 0xFF} {
		sig := append([]byte(nil), good...)
		sig[1] = v
		c.Assert(d.MatchSignature(sig), qt.IsTrue)
	}

	// any single byte deviation in the triple is rejected
	for _, pos := range []int{0, 2, 3} {
		for _, delta := range []byte{0x01, 0x80, 0xFF} {
			sig := append([]byte(nil), good...)
			sig[pos] ^= delta
			c.Assert(d.MatchSignature(sig), qt.IsFalse, qt.Commentf("signature % X", sig))
		}
	}

	c.Assert(d.MatchSignature(good[:3]), qt.IsFalse)
}

func TestConfigRegisters(t *testing.T) {
	c := qt.New(t)

	bus := tester.NewI2CBus(c)
	dev := bus.NewDevice(Address)

	d := newTestSensor(c, bus, testConfig())

	c.Assert(d.SetPeriod(0x00C8), qt.IsNil)
	c.Assert(dev.Registers[0x24], qt.Equals, uint8(0xC8))
	c.Assert(dev.Registers[0x25], qt.Equals, uint8(0x00))

	c.Assert(d.SetPeriod(0x1234), qt.IsNil)
	period, err := d.GetPeriod()
	c.Assert(err, qt.IsNil)
	c.Assert(period, qt.Equals, uint16(0x1234))
	c.Assert(dev.Registers[0x24], qt.Equals, uint8(0x34))

	c.Assert(d.SetSPADMap(SPADMap4x4Normal), qt.IsNil)
	c.Assert(dev.Registers[0x34], qt.Equals, uint8(7))

	spad, err := d.GetSPADMap()
	c.Assert(err, qt.IsNil)
	c.Assert(spad, qt.Equals, SPADMap4x4Normal)

	c.Assert(d.SetAux(AuxDefault), qt.IsNil)
	c.Assert(dev.Registers[0x31], qt.Equals, uint8(0x03))

	dev.Registers[0x07] = 0x5A
	factory, err := d.FactoryStatus()
	c.Assert(err, qt.IsNil)
	c.Assert(factory, qt.Equals, uint8(0x5A))

	dev.Registers[0x00] = AppIDMeasurement
	appID, err := d.AppID()
	c.Assert(err, qt.IsNil)
	c.Assert(appID, qt.Equals, AppIDMeasurement)
}

func TestSPADMapValidate(t *testing.T) {
	c := qt.New(t)

	c.Assert(SPADMap(0).Validate(), qt.IsNotNil)
	c.Assert(SPADMap(16).Validate(), qt.IsNotNil)
	c.Assert(SPADMap3x3Normal.Validate(), qt.IsNil)
	c.Assert(SPADMap(15).Validate(), qt.IsNil)
	c.Assert(SPADMap(10).Validate(), qt.IsNil)
	c.Assert(SPADMap(8).Validate(), qt.ErrorMatches, "SPAD map id 8 is not a predefined map")
	c.Assert(SPADMap(9).Validate(), qt.IsNotNil)

	bus := newFakeBus()
	d := newTestSensor(c, bus, testConfig())

	c.Assert(d.SetSPADMap(0), qt.ErrorMatches, "SPAD map id 0 out of range 1-15")
	c.Assert(bus.ops, qt.HasLen, 0)
}

func TestVerifyConfig(t *testing.T) {
	c := qt.New(t)

	bus := tester.NewI2CBus(c)
	dev := bus.NewDevice(Address)
	copy(dev.Registers[0x20:], []byte{0x16, 0x00, 0xBC, 0x00})

	d := newTestSensor(c, bus, testConfig())
	c.Assert(d.VerifyConfig(), qt.IsNil)

	dev.Registers[0x22] = 0xBD

	err := d.VerifyConfig()
	c.Assert(errors.Is(err, ErrConfigVerificationFailed), qt.IsTrue)

	var serr *SignatureError
	c.Assert(errors.As(err, &serr), qt.IsTrue)
	c.Assert(serr.Got, qt.Equals, [4]byte{0x16, 0x00, 0xBD, 0x00})
}

func TestVerifyConfigSettles(t *testing.T) {
	c := qt.New(t)

	bus := newFakeBus()
	bus.queue(0x20, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x16, 0x00, 0x00, 0x00})
	copy(bus.regs[0x20:], []byte{0x16, 0x00, 0xBC, 0x00})

	d := newTestSensor(c, bus, testConfig())

	c.Assert(d.VerifyConfig(), qt.IsNil)
	c.Assert(bus.readCount(0x20), qt.Equals, 3)
}

func TestConfigure(t *testing.T) {
	c := qt.New(t)

	bus := newSensorBus()
	d := newTestSensor(c, bus, testConfig())

	page := ConfigPage{PeriodMS: 0x00C8, SPADMap: SPADMap3x3Normal, Aux: AuxDefault}
	c.Assert(d.Configure(page), qt.IsNil)

	c.Assert(bus.appCommands(), qt.DeepEquals, []byte{0x16, 0x15})
	c.Assert(bus.regs[0x24], qt.Equals, uint8(0xC8))
	c.Assert(bus.regs[0x25], qt.Equals, uint8(0x00))
	c.Assert(bus.regs[0x34], qt.Equals, uint8(SPADMap3x3Normal))
	c.Assert(bus.regs[0x31], qt.Equals, uint8(0x03))
	c.Assert(bus.readCount(0x07), qt.Equals, 1)
	c.Assert(d.Config().Page, qt.Equals, page)

	// field writes happen between load and write of the page
	var order []uint8
	for _, op := range bus.ops {
		if op.R == nil && len(op.W) == 2 {
			order = append(order, op.W[0])
		}
	}
	c.Assert(order, qt.DeepEquals, []uint8{0x08, 0x24, 0x25, 0x34, 0x31, 0x08})
}

func TestConfigureWrongPage(t *testing.T) {
	c := qt.New(t)

	bus := newSensorBus()
	bus.hook = func(f *fakeBus, w []byte) {

		simulateSensor(f, w)

		// a page other than the common page was loaded
		if w[0] == 0x08 && len(w) == 2 && w[1] == 0x16 {
			f.regs[0x20] = 0x17
		}
	}

	d := newTestSensor(c, bus, testConfig())

	err := d.Configure(DefaultConfigPage())
	c.Assert(errors.Is(err, ErrConfigVerificationFailed), qt.IsTrue)

	// the page is never written back
	c.Assert(bus.appCommands(), qt.DeepEquals, []byte{0x16})
	c.Assert(bus.writes(0x24), qt.HasLen, 0)
}

func TestConfigureCommandTimeout(t *testing.T) {
	c := qt.New(t)

	bus := newSensorBus()
	bus.hook = func(f *fakeBus, w []byte) {
		simulateSensor(f, w)

		// the application never reports the load as done
		if w[0] == 0x08 && len(w) == 2 && w[1] == 0x16 {
			f.regs[0x08] = 0x16
		}
	}

	d := newTestSensor(c, bus, testConfig())

	err := d.Configure(DefaultConfigPage())
	c.Assert(errors.Is(err, ErrCommandTimeout), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, "load common config: command 0x16: CMD_STAT 0x16, want 0x00: command timeout")
}
