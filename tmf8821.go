// go-tmf8821 is an I2C driver for the ams TMF8821 multi-zone time-of-flight
// sensor.
//
// The sensor boots into a bootloader and has to be handed its measurement
// application as a RAM image at every power-up.  Bring-up therefore runs
// power negotiation, firmware download, common configuration and finally
// interrupt driven result retrieval.
package tmf8821

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

const (
	// Address is the default address of the sensor on I2C bus
	Address uint8 = 0x41
	// AppIDMeasurement is the APPID reported once the measurement application
	// is running
	AppIDMeasurement uint8 = 0x03
	// AppIDBootloader is the APPID reported by the bootloader
	AppIDBootloader uint8 = 0x80
	// DefaultChunkSize is the number of image bytes sent per W_RAM frame
	DefaultChunkSize = 20
)

// ProgressFunc is called after every firmware chunk has been acknowledged.
// Implementations should return quickly.
type ProgressFunc func(Progress)

// Progress describes the state of a firmware download.
type Progress struct {
	// Offset is the number of image bytes written so far
	Offset int
	// Total is the image length
	Total int
	// Elapsed is the time since DOWNLOAD_INIT was sent
	Elapsed time.Duration
}

// Config controls bring-up and polling behaviour.  Zero fields are replaced
// by defaults in New.
type Config struct {
	// Address of the sensor, defaults to 0x41
	Address uint8
	// Registers describes the register map, defaults to DefaultRegisterMap()
	Registers *RegisterMap
	// PollInterval is the wait between power state and application command
	// polls. Default 10ms
	PollInterval time.Duration
	// FramePollInterval is the wait between bootloader status polls.
	// Default 2ms
	FramePollInterval time.Duration
	// MaxAttempts bounds every polling loop. Default 200
	MaxAttempts int
	// RemapSettle is the delay after RAMREMAP_RESET before the APPID register
	// is read. Default 3ms
	RemapSettle time.Duration
	// ChunkSize is the W_RAM payload size. Default 20
	ChunkSize int
	// ExpectedLength, when non zero, is the firmware image length the
	// download must cover exactly
	ExpectedLength int
	// AppID expected after the remap. Default AppIDMeasurement
	AppID uint8
	// SkipAppIDCheck disables the APPID check after the remap
	SkipAppIDCheck bool
	// Page holds the common configuration written during Init
	Page ConfigPage
	// Window is the result window layout, defaults to ZoneWindow
	Window ResultWindow
	// Progress is called during firmware download (optional)
	Progress ProgressFunc
}

// DefaultConfig returns the configuration used when New is given a zero
// Config.
func DefaultConfig() Config {
	return Config{
		Address:           Address,
		Registers:         DefaultRegisterMap(),
		PollInterval:      10 * time.Millisecond,
		FramePollInterval: 2 * time.Millisecond,
		MaxAttempts:       200,
		RemapSettle:       3 * time.Millisecond,
		ChunkSize:         DefaultChunkSize,
		AppID:             AppIDMeasurement,
		Page:              DefaultConfigPage(),
		Window:            ZoneWindow,
	}
}

// withDefaults fills zero fields of c from DefaultConfig
func (c Config) withDefaults() Config {

	def := DefaultConfig()

	if c.Address == 0 {
		c.Address = def.Address
	}

	if c.Registers == nil {
		c.Registers = def.Registers
	}

	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}

	if c.FramePollInterval <= 0 {
		c.FramePollInterval = def.FramePollInterval
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}

	if c.RemapSettle <= 0 {
		c.RemapSettle = def.RemapSettle
	}

	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}

	if c.AppID == 0 {
		c.AppID = def.AppID
	}

	if c.Page == (ConfigPage{}) {
		c.Page = def.Page
	}

	if c.Window.Length == 0 {
		c.Window = def.Window
	}

	return c
}

// TMF8821 represents a single TMF8821 sensor instance.
type TMF8821 struct {
	// bus is the I2C interface, every transaction on it holds mu
	bus drivers.I2C
	mu  sync.Mutex

	addr uint16
	regs *RegisterMap
	cfg  Config

	// state is guarded by mu
	state MeasureState
	// distance is the last value extracted by Update, guarded by mu
	distance int32

	// log logger for debugging
	log *log.Logger
}

// New returns a new TMF8821 sensor instance on the given bus.  It does not
// touch the device, call Init to bring it up.
func New(bus drivers.I2C, cfg Config) (*TMF8821, error) {

	d, err := new(bus, cfg)

	if err != nil {
		return nil, err
	}

	// create null logger
	d.log = log.New(io.Discard, "", log.LstdFlags)

	return d, nil
}

// NewWithLog creates sensor instance with logger to be used for debugging
func NewWithLog(bus drivers.I2C, cfg Config, log *log.Logger) (*TMF8821, error) {

	d, err := new(bus, cfg)

	if err != nil {
		return nil, err
	}

	// set logger
	d.log = log

	return d, nil
}

// new returns a new TMF8821 sensor instance
func new(bus drivers.I2C, cfg Config) (*TMF8821, error) {

	if bus == nil {
		return nil, fmt.Errorf("I2C bus is not initiated")
	}

	cfg = cfg.withDefaults()

	if cfg.ChunkSize > MaxPayloadSize {
		return nil, fmt.Errorf("chunk size %d: %w", cfg.ChunkSize, ErrInvalidPayloadSize)
	}

	if err := cfg.Window.validate(); err != nil {
		return nil, err
	}

	d := &TMF8821{
		bus:      bus,
		addr:     uint16(cfg.Address),
		regs:     cfg.Registers,
		cfg:      cfg,
		state:    Idle,
		distance: -1,
	}

	return d, nil
}

// Config returns the effective configuration of the sensor
func (d *TMF8821) Config() Config {

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cfg
}

// AppID reads the application identifier register
func (d *TMF8821) AppID() (uint8, error) {
	return d.readReg(d.regs.AppID)
}
