// Command tmf8821 brings up a TMF8821 sensor and prints measurement records.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/swdee/go-tmf8821"
	"github.com/swdee/go-tmf8821/firmware"
	"github.com/swdee/go-tmf8821/i2cbus"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

type options struct {
	bus     string
	backend string
	fw      string
	addr    int
	length  int
	period  uint
	spad    uint
	irq     string
	n       int
	verbose bool
}

func main() {

	var o options

	flag.StringVar(&o.bus, "b", "/dev/i2c-1", "I2C bus to use (i2c-dev path, or periph bus name)")
	flag.StringVar(&o.backend, "backend", "goi2c", "I2C backend: goi2c or periph")
	flag.StringVar(&o.fw, "fw", "tmf8821_image.hex", "firmware image, .hex or raw binary")
	flag.IntVar(&o.addr, "addr", -1, "RAM load address override")
	flag.IntVar(&o.length, "len", 0, "expected firmware length in bytes (0 accepts any)")
	flag.UintVar(&o.period, "period", uint(tmf8821.PeriodDefault), "measurement period in ms")
	flag.UintVar(&o.spad, "spad", uint(tmf8821.SPADMap3x3Wide), "predefined SPAD map id")
	flag.StringVar(&o.irq, "irq", "", "GPIO name of the INT line, polls the device when empty")
	flag.IntVar(&o.n, "n", 10, "number of records to print")
	flag.BoolVar(&o.verbose, "v", false, "enable driver logging")
	flag.Parse()

	log.SetPrefix("tmf8821: ")
	log.SetFlags(0)

	if err := run(o); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(o options) error {

	bus, closer, err := openBus(o)

	if err != nil {
		return err
	}
	defer closer.Close()

	img, err := firmware.Open(o.fw)

	if err != nil {
		return err
	}
	defer img.Close()

	addr := img.Address

	if o.addr >= 0 {
		addr = uint16(o.addr)
	}

	cfg := tmf8821.DefaultConfig()
	cfg.ExpectedLength = o.length
	cfg.Page.PeriodMS = uint16(o.period)
	cfg.Page.SPADMap = tmf8821.SPADMap(o.spad)

	logger := log.New(io.Discard, "", 0)

	if o.verbose {
		logger = log.New(os.Stderr, "tmf8821: ", log.Lmicroseconds)

		cfg.Progress = func(p tmf8821.Progress) {
			if p.Offset == p.Total || p.Offset%(cfg.ChunkSize*32) == 0 {
				logger.Printf("download %d/%d bytes (%v)", p.Offset, p.Total, p.Elapsed)
			}
		}
	}

	sensor, err := tmf8821.NewWithLog(bus, cfg, logger)

	if err != nil {
		return err
	}

	if err := sensor.Init(img.Bytes(), addr); err != nil {
		return fmt.Errorf("could not bring up sensor: %w", err)
	}

	sig, err := completionSignal(o.irq, sensor)

	if err != nil {
		return err
	}

	if err := sensor.Start(); err != nil {
		return err
	}

	err = stream(sensor, sig, o.n)

	if serr := sensor.Stop(); serr != nil && err == nil {
		err = serr
	}

	return err
}

// openBus opens the I2C bus with the selected backend
func openBus(o options) (drivers.I2C, io.Closer, error) {

	switch o.backend {
	case "goi2c":
		bus, err := i2cbus.OpenGoI2C(o.bus, tmf8821.Address)

		if err != nil {
			return nil, nil, err
		}

		return bus, bus, nil

	case "periph":
		bus, err := i2cbus.OpenPeriph(o.bus)

		if err != nil {
			return nil, nil, err
		}

		return bus, bus, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", o.backend)
	}
}

// completionSignal returns the INT line signal when a pin is named,
// otherwise a polled signal
func completionSignal(name string, sensor *tmf8821.TMF8821) (tmf8821.Signal, error) {

	if name == "" {
		return tmf8821.NewPollSignal(sensor, 0), nil
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	pin := gpioreg.ByName(name)

	if pin == nil {
		return nil, fmt.Errorf("unknown GPIO %q", name)
	}

	return tmf8821.NewInterruptSignal(pin)
}

// stream prints n records, or until interrupted
func stream(sensor *tmf8821.TMF8821, sig tmf8821.Signal, n int) error {

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	grp, ctx := errgroup.WithContext(ctx)
	results := make(chan tmf8821.Result)

	grp.Go(func() error {

		err := sensor.Watch(ctx, sig, func(res tmf8821.Result, err error) {

			if err != nil {
				log.Printf("result error: %v", err)
				return
			}

			select {
			case results <- res:
			case <-ctx.Done():
			}
		})

		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	})

	grp.Go(func() error {

		defer cancel()

		for i := 0; i < n; i++ {
			select {
			case res := <-results:
				printResult(i, res)

			case <-stop:
				log.Printf("interrupted")
				return nil

			case <-ctx.Done():
				return nil
			}
		}

		return nil
	})

	return grp.Wait()
}

func printResult(i int, res tmf8821.Result) {

	if dist, ok := res.Distance(); ok {
		fmt.Printf("%4d %s distance: %d mm\n", i, res.Time.Format(time.StampMilli), dist)
		return
	}

	fmt.Printf("%4d %s id 0x%02X: % X\n", i, res.Time.Format(time.StampMilli), res.ID, res.Data)
}
