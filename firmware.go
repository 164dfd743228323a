package tmf8821

import (
	"errors"
	"fmt"
	"time"
)

// Chunk is one W_RAM frame worth of the firmware image.
type Chunk struct {
	Offset int
	Length int
}

// Chunks partitions an image of length bytes into size byte chunks, the last
// chunk holding the remainder.
func Chunks(length, size int) ([]Chunk, error) {

	if length <= 0 {
		return nil, fmt.Errorf("empty image: %w", ErrImageLength)
	}

	if size <= 0 || size > MaxPayloadSize {
		return nil, fmt.Errorf("chunk size %d: %w", size, ErrInvalidPayloadSize)
	}

	chunks := make([]Chunk, 0, (length+size-1)/size)

	for off := 0; off < length; off += size {
		n := size

		if length-off < n {
			n = length - off
		}

		chunks = append(chunks, Chunk{Offset: off, Length: n})
	}

	return chunks, nil
}

// sendFrame builds a frame and writes it to CMD_STAT
func (d *TMF8821) sendFrame(cmd uint8, payload []byte) error {

	f, err := BuildFrame(cmd, payload)

	if err != nil {
		return err
	}

	return d.writeRegs(d.regs.CmdStat, f.Bytes())
}

// waitFrame polls the 3 byte bootloader status until the completion marker
// shows up
func (d *TMF8821) waitFrame(cmd uint8, offset int) error {

	var last [3]byte

	_, interval, attempts := d.polling()

	_, err := poll(interval, attempts, func() (bool, error) {

		// the bootloader needs a moment before CMD_STAT is valid again
		time.Sleep(time.Millisecond)

		buf, err := d.readRegs(d.regs.CmdStat, 3)

		if err != nil {
			return false, err
		}

		copy(last[:], buf)

		kind, code, err := ParseStatus(buf)

		if err != nil {
			return false, err
		}

		switch kind {
		case StatusDone:
			return true, nil
		case StatusFailed:
			return false, &StatusError{Command: cmd, Code: code}
		default:
			return false, nil
		}
	})

	if errors.Is(err, errRetryExhausted) {
		return &DownloadError{
			Command: cmd,
			Offset:  offset,
			Status:  last,
			Reason:  "completion marker not observed",
		}
	}

	return err
}

// command sends one bootloader frame and waits for its completion
func (d *TMF8821) command(cmd uint8, payload []byte, offset int) error {

	if err := d.sendFrame(cmd, payload); err != nil {
		return err
	}

	return d.waitFrame(cmd, offset)
}

// DownloadInit puts the bootloader into download mode
func (d *TMF8821) DownloadInit() error {

	if err := d.command(d.regs.CmdDownloadInit, []byte{d.regs.DownloadInitSeed}, 0); err != nil {
		return err
	}

	d.log.Printf("DOWNLOAD_INIT command sent")

	return nil
}

// SetAddress sets the RAM write cursor.  The address is sent big-endian.
func (d *TMF8821) SetAddress(addr uint16) error {

	if err := d.command(d.regs.CmdSetAddr, []byte{byte(addr >> 8), byte(addr)}, 0); err != nil {
		return err
	}

	d.log.Printf("SET_ADDR command sent for address 0x%04X", addr)

	return nil
}

// WriteRAM writes one chunk at the current RAM cursor, the device advances
// the cursor itself
func (d *TMF8821) WriteRAM(data []byte) error {
	return d.writeRAM(data, 0)
}

func (d *TMF8821) writeRAM(data []byte, offset int) error {

	if len(data) == 0 || len(data) > MaxPayloadSize {
		return fmt.Errorf("W_RAM with %d bytes: %w", len(data), ErrInvalidPayloadSize)
	}

	return d.command(d.regs.CmdWriteRAM, data, offset)
}

// RemapReset makes the CPU jump to the downloaded image and reboot.  The
// APPID register is not valid until the settle delay has elapsed.
func (d *TMF8821) RemapReset() error {

	if err := d.sendFrame(d.regs.CmdRemapReset, nil); err != nil {
		return err
	}

	d.log.Printf("RAMREMAP_RESET command sent")

	time.Sleep(d.cfg.RemapSettle)

	return nil
}

// LoadFirmware downloads image to RAM at addr and starts it.  The image is
// read in place.  Any failure leaves the bootloader mid-stream, the whole
// sequence has to be restarted.
func (d *TMF8821) LoadFirmware(image []byte, addr uint16) error {

	if d.cfg.ExpectedLength != 0 && len(image) != d.cfg.ExpectedLength {
		return fmt.Errorf("image is %d bytes, expected %d: %w",
			len(image), d.cfg.ExpectedLength, ErrImageLength)
	}

	chunks, err := Chunks(len(image), d.cfg.ChunkSize)

	if err != nil {
		return err
	}

	start := time.Now()

	if err := d.DownloadInit(); err != nil {
		return fmt.Errorf("download init: %w", err)
	}

	if err := d.SetAddress(addr); err != nil {
		return fmt.Errorf("set address: %w", err)
	}

	offset := 0

	for _, c := range chunks {

		if c.Offset != offset {
			return fmt.Errorf("chunk at %d, cursor at %d: %w", c.Offset, offset, ErrImageLength)
		}

		if err := d.writeRAM(image[c.Offset:c.Offset+c.Length], c.Offset); err != nil {
			return fmt.Errorf("write ram at offset %d: %w", c.Offset, err)
		}

		offset += c.Length

		if d.cfg.Progress != nil {
			d.cfg.Progress(Progress{
				Offset:  offset,
				Total:   len(image),
				Elapsed: time.Since(start),
			})
		}
	}

	if offset != len(image) {
		return fmt.Errorf("wrote %d of %d bytes: %w", offset, len(image), ErrImageLength)
	}

	d.log.Printf("Wrote %d bytes in %d chunks", offset, len(chunks))

	if err := d.RemapReset(); err != nil {
		return fmt.Errorf("remap reset: %w", err)
	}

	appID, err := d.AppID()

	if err != nil {
		return fmt.Errorf("read appid: %w", err)
	}

	d.log.Printf("APPID: 0x%02X", appID)

	if !d.cfg.SkipAppIDCheck && appID != d.cfg.AppID {
		return &DownloadError{
			Command: d.regs.CmdRemapReset,
			Offset:  offset,
			Status:  [3]byte{appID},
			Reason:  fmt.Sprintf("application id 0x%02X, want 0x%02X", appID, d.cfg.AppID),
		}
	}

	return nil
}
