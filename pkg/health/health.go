package health

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP   CheckType = "http"
	CheckTypeTCP    CheckType = "tcp"
	CheckTypeRemote CheckType = "remote"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// Config bounds a WaitFor poll
type Config struct {
	// Interval is the time between checks
	Interval time.Duration

	// Timeout is the overall deadline of the wait
	Timeout time.Duration

	// Successes is the number of consecutive healthy results required
	Successes int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Second,
		Timeout:   5 * time.Minute,
		Successes: 1,
	}
}

// Status tracks consecutive outcomes of a polled check
type Status struct {
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	Checks               int
	LastResult           Result
}

// Update records a new result
func (s *Status) Update(result Result) {
	s.Checks++
	s.LastResult = result
	if result.Healthy {
		s.ConsecutiveSuccesses++
		s.ConsecutiveFailures = 0
	} else {
		s.ConsecutiveFailures++
		s.ConsecutiveSuccesses = 0
	}
}

// WaitFor polls checker until it reports healthy cfg.Successes times in a
// row. It fails with a TIMEOUT error carrying the last result once
// cfg.Timeout elapses, or with the context error if ctx ends first.
func WaitFor(ctx context.Context, checker Checker, cfg Config) (*Status, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Successes <= 0 {
		cfg.Successes = 1
	}

	waitCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	status := &Status{}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		status.Update(checker.Check(waitCtx))
		if status.ConsecutiveSuccesses >= cfg.Successes {
			return status, nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return status, ctx.Err()
			}
			return status, errors.Timeout(
				fmt.Sprintf("%s check", checker.Type()),
				fmt.Errorf("last result after %d checks: %s", status.Checks, status.LastResult.Message),
			)
		}
	}
}
