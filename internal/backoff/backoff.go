// Package backoff provides a bounded retry executor with exponential delay
// and jitter. It is the single retry path shared by every network-backed
// store; exhaustion is reported, never raised.
package backoff

import (
	"context"
	"log"
	"math/rand"
	"time"
)

// Skip is a sentinel task result meaning "stop retrying without success".
// A task returns Skip when the operation turned out to be a no-op.
var Skip = new(struct{})

// Config bounds a retry loop.
type Config struct {
	// MaxAttempts is the total number of tries. Values <= 0 mean exactly one.
	MaxAttempts int
	// BaseDelay seeds the exponential schedule; defaults to 1s.
	BaseDelay time.Duration
	// MaxDelay caps each computed delay; defaults to 30s.
	MaxDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// Task produces one attempt's result.
type Task func() (any, error)

// Accept judges one attempt. Returning true ends the loop as a success
// unless the result is Skip.
type Accept func(result any, err error) bool

// Delay returns the sleep before retry number attempt (0-based):
// min(2^attempt * base + jitter(0,1s), max).
func (c Config) Delay(attempt int) time.Duration {
	c = c.withDefaults()
	d := c.BaseDelay << uint(attempt)
	if d <= 0 || d > c.MaxDelay {
		// Shift overflow or past the cap; the jitter below still applies.
		d = c.MaxDelay
	}
	d += time.Duration(rand.Int63n(int64(time.Second)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do runs task until accept approves the result, the task returns Skip, the
// context is done, or attempts run out. It returns the last result and error
// seen; running out of attempts is not an error in itself, the caller
// decides whether the missing success matters.
func Do(ctx context.Context, name string, cfg Config, task Task, accept Accept) (any, error) {
	cfg = cfg.withDefaults()

	var (
		result any
		err    error
	)
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err = task()
		if result == Skip {
			return result, err
		}
		if accept(result, err) {
			return result, err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}
		delay := cfg.Delay(attempt)
		log.Printf("backoff: %s attempt %d/%d failed (%v), retrying in %v",
			name, attempt+1, cfg.MaxAttempts, err, delay)
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	log.Printf("backoff: %s gave up after %d attempts (%v)", name, cfg.MaxAttempts, err)
	return result, err
}
