package tmf8821

import "fmt"

// RegisterMap describes the TMF8821 registers and command codes used by the
// driver.  It is built once and shared by every stage so the addresses cannot
// drift between them.
type RegisterMap struct {
	// Basic registers
	AppID   uint8
	CmdStat uint8
	Enable  uint8

	// Interrupt registers
	IntStatus uint8
	IntEnable uint8

	// Config page and result registers.  ConfigResult holds the page id of
	// the loaded config page or the result id of a measurement record
	ConfigResult  uint8
	PeriodLSB     uint8
	PeriodMSB     uint8
	SPADMap       uint8
	Aux           uint8
	FactoryStatus uint8

	// Bootloader commands
	CmdDownloadInit uint8
	CmdSetAddr      uint8
	CmdWriteRAM     uint8
	CmdRemapReset   uint8

	// DownloadInitSeed is the single payload byte of DOWNLOAD_INIT
	DownloadInitSeed uint8

	// Application commands
	CmdLoadCommonConfig uint8
	CmdWriteConfig      uint8
	CmdMeasure          uint8
	CmdStop             uint8

	// Application status values read back from CmdStat
	StatOK       uint8
	StatAccepted uint8

	// Config page signature
	CommonPageID    uint8
	PageMarker      uint8
	IntResultEnable uint8
}

// DefaultRegisterMap returns the register map of the TMF8821 measurement
// application
func DefaultRegisterMap() *RegisterMap {
	return &RegisterMap{
		AppID:   0x00,
		CmdStat: 0x08,
		Enable:  0xE0,

		IntStatus: 0xE1,
		IntEnable: 0xE2,

		ConfigResult:  0x20,
		PeriodLSB:     0x24,
		PeriodMSB:     0x25,
		SPADMap:       0x34,
		Aux:           0x31,
		FactoryStatus: 0x07,

		CmdDownloadInit: 0x14,
		CmdSetAddr:      0x43,
		CmdWriteRAM:     0x41,
		CmdRemapReset:   0x11,

		DownloadInitSeed: 0x29,

		CmdLoadCommonConfig: 0x16,
		CmdWriteConfig:      0x15,
		CmdMeasure:          0x10,
		CmdStop:             0x11,

		StatOK:       0x00,
		StatAccepted: 0x01,

		CommonPageID:    0x16,
		PageMarker:      0xBC,
		IntResultEnable: 0x02,
	}
}

// tx performs a single bus transaction while holding the bus lock
func (d *TMF8821) tx(op string, reg uint8, w, r []byte) error {

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.txLocked(op, reg, w, r)
}

// txLocked performs a bus transaction, the caller must hold d.mu
func (d *TMF8821) txLocked(op string, reg uint8, w, r []byte) error {

	if err := d.bus.Tx(d.addr, w, r); err != nil {
		return &TransportError{Op: op, Reg: reg, Err: err}
	}

	return nil
}

// writeReg writes a 8 bit value to the register
func (d *TMF8821) writeReg(reg uint8, value uint8) error {
	return d.tx("write", reg, []byte{reg, value}, nil)
}

// writeRegs writes buf to consecutive registers starting at reg
func (d *TMF8821) writeRegs(reg uint8, buf []byte) error {

	w := make([]byte, 0, len(buf)+1)
	w = append(w, reg)
	w = append(w, buf...)

	return d.tx("write", reg, w, nil)
}

// readReg reads an 8-bit value from a register.
func (d *TMF8821) readReg(reg uint8) (uint8, error) {

	buf := make([]byte, 1)

	if err := d.tx("read", reg, []byte{reg}, buf); err != nil {
		return 0, err
	}

	return buf[0], nil
}

// readRegs reads n consecutive registers starting at reg.
func (d *TMF8821) readRegs(reg uint8, n int) ([]byte, error) {

	if n <= 0 || int(reg)+n > 0x100 {
		return nil, fmt.Errorf("readRegs: invalid length %d at 0x%02X", n, reg)
	}

	buf := make([]byte, n)

	if err := d.tx("read", reg, []byte{reg}, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// writeReg16LE writes a 16 bit value as two 8 bit registers, low byte first
func (d *TMF8821) writeReg16LE(lsb, msb uint8, value uint16) error {

	if err := d.writeReg(lsb, uint8(value)); err != nil {
		return err
	}

	return d.writeReg(msb, uint8(value>>8))
}

// readReg16LE reads a 16 bit value stored low byte first in two registers
func (d *TMF8821) readReg16LE(lsb, msb uint8) (uint16, error) {

	lo, err := d.readReg(lsb)

	if err != nil {
		return 0, err
	}

	hi, err := d.readReg(msb)

	if err != nil {
		return 0, err
	}

	return uint16(hi)<<8 | uint16(lo), nil
}
