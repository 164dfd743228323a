package tmf8821

import (
	"errors"
	"fmt"
)

const (
	// PeriodDefault is the measurement period in milliseconds written by Init
	// unless configured otherwise
	PeriodDefault uint16 = 0x50
	// AuxDefault is the value written to the auxiliary config register
	AuxDefault uint8 = 0x03
)

// ConfigPage holds the common configuration fields the driver changes.
type ConfigPage struct {
	// PeriodMS is the measurement period in milliseconds
	PeriodMS uint16
	// SPADMap selects the predefined SPAD map
	SPADMap SPADMap
	// Aux is written to the auxiliary factory register
	Aux uint8
}

// DefaultConfigPage returns the page written by Init by default
func DefaultConfigPage() ConfigPage {
	return ConfigPage{
		PeriodMS: PeriodDefault,
		SPADMap:  SPADMap3x3Wide,
		Aux:      AuxDefault,
	}
}

// appCommand writes an application command to CMD_STAT and polls the
// register until it reads back want
func (d *TMF8821) appCommand(cmd, want uint8) error {

	if err := d.writeReg(d.regs.CmdStat, cmd); err != nil {
		return err
	}

	var last uint8

	interval, _, attempts := d.polling()

	_, err := poll(interval, attempts, func() (bool, error) {

		v, err := d.readReg(d.regs.CmdStat)

		if err != nil {
			return false, err
		}

		last = v

		return v == want, nil
	})

	if errors.Is(err, errRetryExhausted) {
		return fmt.Errorf("command 0x%02X: CMD_STAT 0x%02X, want 0x%02X: %w",
			cmd, last, want, ErrCommandTimeout)
	}

	return err
}

// LoadCommonConfig loads the common configuration page into the config
// register window
func (d *TMF8821) LoadCommonConfig() error {

	if err := d.appCommand(d.regs.CmdLoadCommonConfig, d.regs.StatOK); err != nil {
		return err
	}

	d.log.Printf("Common configuration page loaded")

	return nil
}

// WriteCommonConfig writes the config register window back to the device
func (d *TMF8821) WriteCommonConfig() error {

	if err := d.appCommand(d.regs.CmdWriteConfig, d.regs.StatOK); err != nil {
		return err
	}

	d.log.Printf("Common configuration page written")

	return nil
}

// MatchSignature reports whether sig is the signature of a loaded common
// config page
func (d *TMF8821) MatchSignature(sig []byte) bool {
	return len(sig) >= 4 &&
		sig[0] == d.regs.CommonPageID &&
		sig[2] == d.regs.PageMarker &&
		sig[3] == 0x00
}

// VerifyConfig re-reads the page signature until it matches or the retry
// budget is used up
func (d *TMF8821) VerifyConfig() error {

	var last [4]byte

	_, interval, attempts := d.polling()

	_, err := poll(interval, attempts, func() (bool, error) {

		sig, err := d.readRegs(d.regs.ConfigResult, 4)

		if err != nil {
			return false, err
		}

		copy(last[:], sig)

		return d.MatchSignature(sig), nil
	})

	if errors.Is(err, errRetryExhausted) {
		d.log.Printf("Config signature mismatch: % X", last[:])
		return &SignatureError{Got: last}
	}

	return err
}

// GetPeriod returns the measurement period of the loaded config page
func (d *TMF8821) GetPeriod() (uint16, error) {
	return d.readReg16LE(d.regs.PeriodLSB, d.regs.PeriodMSB)
}

// SetPeriod sets the measurement period in milliseconds in the loaded config
// page.  It takes effect with WriteCommonConfig.
func (d *TMF8821) SetPeriod(ms uint16) error {

	if err := d.writeReg16LE(d.regs.PeriodLSB, d.regs.PeriodMSB, ms); err != nil {
		return err
	}

	d.log.Printf("Measurement period set to %dms", ms)

	return nil
}

// SetAux writes the auxiliary factory register of the loaded config page
func (d *TMF8821) SetAux(v uint8) error {
	return d.writeReg(d.regs.Aux, v)
}

// FactoryStatus reads the factory status register
func (d *TMF8821) FactoryStatus() (uint8, error) {
	return d.readReg(d.regs.FactoryStatus)
}

// Configure runs the full common configuration sequence: load the page,
// check it is the common page, change the fields, write it back and verify
// the signature again.  Running it again with other values reloads the page
// first.
func (d *TMF8821) Configure(page ConfigPage) error {

	if err := page.SPADMap.Validate(); err != nil {
		return err
	}

	if err := d.LoadCommonConfig(); err != nil {
		return fmt.Errorf("load common config: %w", err)
	}

	if err := d.VerifyConfig(); err != nil {
		return fmt.Errorf("verify loaded page: %w", err)
	}

	if err := d.SetPeriod(page.PeriodMS); err != nil {
		return err
	}

	if err := d.SetSPADMap(page.SPADMap); err != nil {
		return err
	}

	if err := d.SetAux(page.Aux); err != nil {
		return err
	}

	if err := d.WriteCommonConfig(); err != nil {
		return fmt.Errorf("write common config: %w", err)
	}

	if err := d.VerifyConfig(); err != nil {
		return fmt.Errorf("verify written page: %w", err)
	}

	factory, err := d.FactoryStatus()

	if err != nil {
		return err
	}

	d.log.Printf("Factory register value: 0x%02X", factory)

	d.mu.Lock()
	d.cfg.Page = page
	d.mu.Unlock()

	return nil
}
