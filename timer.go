package tmf8821

import (
	"errors"
	"time"
)

// errRetryExhausted is returned by poll when the predicate never succeeded
var errRetryExhausted = errors.New("retry budget exhausted")

// poll calls probe up to attempts times, sleeping interval after every
// unsuccessful call.  It returns the number of calls made.  A probe error
// stops polling immediately.
func poll(interval time.Duration, attempts int, probe func() (bool, error)) (int, error) {

	for i := 1; i <= attempts; i++ {

		done, err := probe()

		if err != nil {
			return i, err
		}

		if done {
			return i, nil
		}

		if i < attempts {
			time.Sleep(interval)
		}
	}

	return attempts, errRetryExhausted
}

// SetPolling changes the poll interval and attempt budget used by the
// application command and power negotiation loops
func (d *TMF8821) SetPolling(interval time.Duration, attempts int) {

	d.mu.Lock()
	defer d.mu.Unlock()

	if interval > 0 {
		d.cfg.PollInterval = interval
	}

	if attempts > 0 {
		d.cfg.MaxAttempts = attempts
	}
}

// polling returns the poll interval, bootloader status interval and attempt
// budget currently in effect
func (d *TMF8821) polling() (interval, frameInterval time.Duration, attempts int) {

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cfg.PollInterval, d.cfg.FramePollInterval, d.cfg.MaxAttempts
}
