package database

import (
	"context"
	"fmt"
	"time"
)

type backoff struct {
	maxRetries int
	delay      time.Duration
	maxDelay   time.Duration
}

var defaultBackoff = backoff{
	maxRetries: 5,
	delay:      500 * time.Millisecond,
	maxDelay:   5 * time.Second,
}

func (b backoff) nextDelay(attempt int) time.Duration {
	d := b.delay << attempt
	if d > b.maxDelay {
		return b.maxDelay
	}
	return d
}

// retry runs fn until it succeeds, the retries run out or ctx is done.
func (b backoff) retry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= b.maxRetries {
			return fmt.Errorf("failed after %d retries: %w", attempt, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("canceled: %w", ctx.Err())
		case <-time.After(b.nextDelay(attempt)):
		}
	}
}
