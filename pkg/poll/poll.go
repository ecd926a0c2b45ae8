// Package poll provides a cancellable fixed-interval polling primitive.
// Callers get a bounded sequence of attempts driven by one loop; cancelling
// the context stops future attempts instead of leaking a timer.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBudgetExhausted is returned when every attempt ran without the
// condition being met.
var ErrBudgetExhausted = errors.New("poll budget exhausted")

// Config bounds a polling loop.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Interval)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("poll max attempts must be positive, got %d", c.MaxAttempts)
	}
	return nil
}

// Budget returns the total wall-clock budget of the loop.
func (c Config) Budget() time.Duration {
	return time.Duration(c.MaxAttempts) * c.Interval
}

// Attempt is one poll attempt. Returning done=true stops the loop
// successfully. A non-nil error also stops the loop; transient conditions
// should be swallowed by the attempt and reported as not-done.
type Attempt func(ctx context.Context) (done bool, err error)

// Result carries the outcome of a polling run.
type Result struct {
	Attempts int
	Elapsed  time.Duration
}

// Run drives attempt at the configured interval until it reports done, the
// attempt budget is exhausted (ErrBudgetExhausted), or ctx is cancelled
// (ctx.Err()). The first attempt waits one full interval, matching the
// behavior of a ticker-driven loop.
func Run(ctx context.Context, cfg Config, attempt Attempt) (Result, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	res := Result{}
	for res.Attempts < cfg.MaxAttempts {
		select {
		case <-ctx.Done():
			res.Elapsed = time.Since(start)
			return res, ctx.Err()
		case <-ticker.C:
		}

		res.Attempts++
		done, err := attempt(ctx)
		if err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		if done {
			res.Elapsed = time.Since(start)
			return res, nil
		}
	}

	res.Elapsed = time.Since(start)
	return res, ErrBudgetExhausted
}
