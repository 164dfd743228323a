package tmf8821

import "fmt"

// SPADMap selects one of the predefined SPAD maps of the measurement
// application.  The map decides how the SPAD array is grouped into zones
// and therefore the field of view of every zone.
type SPADMap uint8

const (
	// SPADMap3x3Normal is the 3x3 zone map with the normal field of view
	SPADMap3x3Normal SPADMap = 1
	// SPADMap3x3Wide is the 3x3 zone map with the wide field of view
	SPADMap3x3Wide SPADMap = 6
	// SPADMap4x4Normal is the time multiplexed 4x4 zone map
	SPADMap4x4Normal SPADMap = 7

	spadMapMin SPADMap = 1
	spadMapMax SPADMap = 15
)

// Validate reports an error for ids outside the predefined range
func (m SPADMap) Validate() error {

	if m < spadMapMin || m > spadMapMax {
		return fmt.Errorf("SPAD map id %d out of range %d-%d", m, spadMapMin, spadMapMax)
	}

	// ids 8 and 9 are not assigned
	if m == 8 || m == 9 {
		return fmt.Errorf("SPAD map id %d is not a predefined map", m)
	}

	return nil
}

// SetSPADMap selects the SPAD map in the loaded config page.  It takes effect
// with WriteCommonConfig.
func (d *TMF8821) SetSPADMap(m SPADMap) error {

	if err := m.Validate(); err != nil {
		return err
	}

	if err := d.writeReg(d.regs.SPADMap, uint8(m)); err != nil {
		return err
	}

	d.log.Printf("SPAD map set to %d", m)

	return nil
}

// GetSPADMap returns the SPAD map id of the loaded config page
func (d *TMF8821) GetSPADMap() (SPADMap, error) {

	v, err := d.readReg(d.regs.SPADMap)

	if err != nil {
		return 0, err
	}

	return SPADMap(v), nil
}
