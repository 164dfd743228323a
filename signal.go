package tmf8821

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Signal delivers the measurement completion event.
type Signal interface {
	// Wait blocks until the event fired or timeout elapsed.  It reports
	// whether the event fired.
	Wait(timeout time.Duration) (bool, error)
}

// InterruptSignal is the completion signal on the sensor's INT line.  The
// line is active low and open drain.
type InterruptSignal struct {
	pin gpio.PinIn
}

// NewInterruptSignal configures pin as a pulled up input with falling edge
// detection.
func NewInterruptSignal(pin gpio.PinIn) (*InterruptSignal, error) {

	if pin == nil {
		return nil, fmt.Errorf("interrupt pin is not initiated")
	}

	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("configure interrupt pin %s: %w", pin, err)
	}

	return &InterruptSignal{pin: pin}, nil
}

// Wait implements Signal
func (s *InterruptSignal) Wait(timeout time.Duration) (bool, error) {
	return s.pin.WaitForEdge(timeout), nil
}

// PollSignal is the fallback completion signal reading the result bit of
// the interrupt status register.
type PollSignal struct {
	dev      *TMF8821
	interval time.Duration
}

// NewPollSignal returns a polled signal checking the device every interval
func NewPollSignal(dev *TMF8821, interval time.Duration) *PollSignal {

	if interval <= 0 {
		interval, _, _ = dev.polling()
	}

	return &PollSignal{dev: dev, interval: interval}
}

// Wait implements Signal
func (s *PollSignal) Wait(timeout time.Duration) (bool, error) {

	deadline := time.Now().Add(timeout)

	for {
		pending, err := s.dev.ResultPending()

		if err != nil {
			return false, err
		}

		if pending {
			return true, nil
		}

		if timeout >= 0 && time.Now().After(deadline) {
			return false, nil
		}

		time.Sleep(s.interval)
	}
}

// ResultHandler receives every retrieved record, or the error of a single
// failed retrieval.
type ResultHandler func(Result, error)

// Watch waits for completion signals until ctx is done and retrieves one
// record per signal through OnResultReady.  Errors of a single retrieval are
// passed to handle and do not stop the loop; only a failing signal source
// ends it.
func (d *TMF8821) Watch(ctx context.Context, sig Signal, handle ResultHandler) error {

	// wake up regularly to notice cancellation
	const slice = 100 * time.Millisecond

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fired, err := sig.Wait(slice)

		if err != nil {
			return fmt.Errorf("completion signal: %w", err)
		}

		if !fired {
			continue
		}

		res, err := d.OnResultReady()

		if errors.Is(err, ErrNotMeasuring) {
			// a pending bit outside a measurement stays set, back off for a
			// slice instead of polling it again right away
			select {
			case <-ctx.Done():
			case <-time.After(slice):
			}

			continue
		}

		handle(res, err)
	}
}
