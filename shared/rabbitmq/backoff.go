package rabbitmq

import (
	"context"
	"time"
)

// backoff spaces out attempts, multiplying the delay after each failure
type backoff struct {
	attempts int
	delay    time.Duration
	factor   float64
}

func newBackoff(attempts int, delay time.Duration, factor float64) backoff {
	if attempts <= 0 {
		attempts = 1
	}
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	switch {
	case factor <= 0:
		factor = 2
	case factor < 1:
		factor = 1
	}
	return backoff{attempts: attempts, delay: delay, factor: factor}
}

// run calls fn until it succeeds, the attempts run out or ctx ends.
// onRetry sees every failure that is followed by another attempt.
func (b backoff) run(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, wait time.Duration, err error)) error {
	wait := b.delay
	var err error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == b.attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = time.Duration(float64(wait) * b.factor)
	}
	return err
}
