package tmf8821

import (
	"encoding/binary"
	"fmt"
	"time"

	"tinygo.org/x/drivers"
)

// MeasureState is the state of the measurement controller.
type MeasureState uint8

const (
	Idle MeasureState = iota
	Measuring
)

// String implement Stringer interface for MeasureState
func (s MeasureState) String() string {
	if s == Measuring {
		return "measuring"
	}
	return "idle"
}

// ResultWindow describes where a measurement record is read from.
type ResultWindow struct {
	// IDRegister holds the result id once a record is available
	IDRegister uint8
	// ID is the result id of a measurement record
	ID uint8
	// Base is the first register of the result window
	Base uint8
	// Length is the number of bytes read from Base
	Length int
	// DistanceOffset is the offset of a little-endian 16 bit distance in the
	// window, negative when the layout carries none
	DistanceOffset int
}

var (
	// ZoneWindow is the 27 byte window of the multi-zone record
	ZoneWindow = ResultWindow{IDRegister: 0x20, ID: 0x10, Base: 0x38, Length: 27, DistanceOffset: -1}
	// DistanceWindow reads only a single 16 bit distance value
	DistanceWindow = ResultWindow{IDRegister: 0x20, ID: 0x10, Base: 0x3C, Length: 2, DistanceOffset: 0}
)

// validate checks the window fits the register space
func (w ResultWindow) validate() error {

	if w.Length <= 0 || int(w.Base)+w.Length > 0x100 {
		return fmt.Errorf("result window 0x%02X+%d out of register range", w.Base, w.Length)
	}

	if w.DistanceOffset >= 0 && w.DistanceOffset+2 > w.Length {
		return fmt.Errorf("distance offset %d outside %d byte window", w.DistanceOffset, w.Length)
	}

	return nil
}

// Result is one measurement record.  Data is owned by the caller.
type Result struct {
	ID   uint8
	Data []byte
	Time time.Time

	distanceOffset int
}

// Distance returns the 16 bit distance in millimeters when the window
// layout carries one
func (r Result) Distance() (uint16, bool) {

	if r.distanceOffset < 0 || r.distanceOffset+2 > len(r.Data) {
		return 0, false
	}

	return binary.LittleEndian.Uint16(r.Data[r.distanceOffset:]), true
}

// State returns the measurement controller state
func (d *TMF8821) State() MeasureState {

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

func (d *TMF8821) setState(s MeasureState) {

	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// EnableInterrupts enables the result interrupt
func (d *TMF8821) EnableInterrupts() error {

	if err := d.writeReg(d.regs.IntEnable, d.regs.IntResultEnable); err != nil {
		return err
	}

	d.log.Printf("Result interrupts enabled")

	return nil
}

// ClearInterrupts clears every pending interrupt
func (d *TMF8821) ClearInterrupts() error {

	if err := d.writeReg(d.regs.IntStatus, 0xFF); err != nil {
		return err
	}

	d.log.Printf("Interrupts cleared")

	return nil
}

// Start begins periodic measurement
func (d *TMF8821) Start() error {

	d.log.Print("Start measurement")

	if err := d.appCommand(d.regs.CmdMeasure, d.regs.StatAccepted); err != nil {
		return fmt.Errorf("start measurement: %w", err)
	}

	d.setState(Measuring)

	return nil
}

// Stop ends periodic measurement
func (d *TMF8821) Stop() error {

	d.log.Print("Stop measurement")

	if err := d.appCommand(d.regs.CmdStop, d.regs.StatOK); err != nil {
		return fmt.Errorf("stop measurement: %w", err)
	}

	d.setState(Idle)

	return nil
}

// ResultPending reports whether the result interrupt bit is set
func (d *TMF8821) ResultPending() (bool, error) {

	v, err := d.readReg(d.regs.IntStatus)

	if err != nil {
		return false, err
	}

	return v&d.regs.IntResultEnable != 0, nil
}

// OnResultReady handles one completion signal: it acknowledges the
// interrupt, checks the result id and reads the result window.  It does not
// poll and holds the bus for the whole exchange, so it may run from the
// signal path while the main sequence is between transactions.
func (d *TMF8821) OnResultReady() (Result, error) {

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != Measuring {
		return Result{}, ErrNotMeasuring
	}

	regs := d.regs
	w := d.cfg.Window

	// acknowledge by writing back the pending bits, otherwise no further
	// interrupt is raised
	status := make([]byte, 1)

	if err := d.txLocked("read", regs.IntStatus, []byte{regs.IntStatus}, status); err != nil {
		return Result{}, err
	}

	if err := d.txLocked("write", regs.IntStatus, []byte{regs.IntStatus, status[0]}, nil); err != nil {
		return Result{}, err
	}

	id := make([]byte, 1)

	if err := d.txLocked("read", w.IDRegister, []byte{w.IDRegister}, id); err != nil {
		return Result{}, err
	}

	if id[0] != w.ID {
		d.log.Printf("Unexpected result ID: 0x%02X", id[0])
		return Result{ID: id[0]}, &ResultIDError{ID: id[0], Want: w.ID}
	}

	data := make([]byte, w.Length)

	if err := d.txLocked("read", w.Base, []byte{w.Base}, data); err != nil {
		return Result{}, err
	}

	res := Result{
		ID:             id[0],
		Data:           data,
		Time:           time.Now(),
		distanceOffset: w.DistanceOffset,
	}

	if dist, ok := res.Distance(); ok {
		d.distance = int32(dist)
	}

	return res, nil
}

// Read returns a measurement record. If blocking is true, this function
// will poll the interrupt status until a record is pending.  If blocking is
// false it retrieves whatever record the device currently holds.
func (d *TMF8821) Read(blocking bool) (Result, error) {

	if blocking {

		interval, _, attempts := d.polling()

		_, err := poll(interval, attempts, d.ResultPending)

		if err == errRetryExhausted {
			return Result{}, fmt.Errorf("timeout waiting for result: %w", ErrCommandTimeout)
		}

		if err != nil {
			return Result{}, err
		}
	}

	return d.OnResultReady()
}

// Update implements drivers.Sensor.  Only drivers.Distance is supported and
// requires a window layout carrying a distance.
func (d *TMF8821) Update(which drivers.Measurement) error {

	if which&drivers.Distance == 0 {
		return nil
	}

	res, err := d.Read(true)

	if err != nil {
		return err
	}

	if _, ok := res.Distance(); !ok {
		return fmt.Errorf("result window has no distance field")
	}

	return nil
}

// Distance returns the last distance in millimeters extracted from a
// result, or -1 when none has been read yet
func (d *TMF8821) Distance() int32 {

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.distance
}
