package tmf8821

import "fmt"

// Init brings the sensor from power-up to a configured measurement
// application: power on, negotiate the power state, download image to RAM
// at addr, write the common config page and enable the result interrupt.
// Each stage only runs when the previous one succeeded.
func (d *TMF8821) Init(image []byte, addr uint16) error {

	d.log.Printf("Starting Init()")

	if err := d.PowerOn(); err != nil {
		return fmt.Errorf("Error on PowerOn(), %w", err)
	}

	if _, err := d.Negotiate(); err != nil {
		return fmt.Errorf("Error on Negotiate(), %w", err)
	}

	appID, err := d.AppID()

	if err != nil {
		return fmt.Errorf("Error reading APPID, %w", err)
	}

	d.log.Printf("APPID before download: 0x%02X", appID)

	if err := d.LoadFirmware(image, addr); err != nil {
		return fmt.Errorf("Error on LoadFirmware(), %w", err)
	}

	if err := d.Configure(d.cfg.Page); err != nil {
		return fmt.Errorf("Error on Configure(), %w", err)
	}

	if err := d.EnableInterrupts(); err != nil {
		return fmt.Errorf("Error enabling interrupts, %w", err)
	}

	if err := d.ClearInterrupts(); err != nil {
		return fmt.Errorf("Error clearing interrupts, %w", err)
	}

	d.log.Printf("Device Init()'d")

	return nil
}
