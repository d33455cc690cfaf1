// Package fetcher obtains one balance reading with bounded, fixed-delay retries.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 5 * time.Second
)

var (
	// ErrRetryExhausted is matched by every *RetryExhaustedError.
	ErrRetryExhausted = errors.New("retries exhausted")

	// ErrNegativeBalance rejects a reading below zero.
	ErrNegativeBalance = errors.New("negative balance reading")
)

// RetryExhaustedError is returned after the last attempt fails.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetryExhausted, e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last attempt's error.
func (e *RetryExhaustedError) Unwrap() []error { return []error{ErrRetryExhausted, e.Last} }

// Session is the subset of session.Manager the executor drives.
type Session interface {
	EnsureReady(ctx context.Context, descriptor string) error
	FetchOnce(ctx context.Context, descriptor string) (decimal.Decimal, error)
}

// Options tunes an Executor.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
}

// Executor performs EnsureReady + FetchOnce until one succeeds or the attempt
// budget is spent. It never notifies.
type Executor struct {
	session Session
	opts    Options
	logger  *slog.Logger
}

// NewExecutor creates an Executor. A non-positive MaxRetries takes the default.
func NewExecutor(s Session, opts Options, logger *slog.Logger) *Executor {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Executor{session: s, opts: opts, logger: logger}
}

// PerformFetch returns the balance and the number of attempts used.
func (e *Executor) PerformFetch(ctx context.Context, descriptor string) (decimal.Decimal, int, error) {
	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxRetries; attempt++ {
		balance, err := e.attempt(ctx, descriptor)
		if err == nil {
			if attempt > 1 {
				e.logger.Info("fetch succeeded after retry", "attempt", attempt)
			}
			return balance, attempt, nil
		}
		lastErr = err
		e.logger.Warn("fetch attempt failed",
			"attempt", attempt,
			"max_retries", e.opts.MaxRetries,
			"error", err,
		)

		if attempt == e.opts.MaxRetries {
			break
		}
		if err := sleep(ctx, e.opts.RetryDelay); err != nil {
			return decimal.Zero, attempt, &RetryExhaustedError{Attempts: attempt, Last: err}
		}
	}

	e.logger.Error("all fetch attempts failed", "attempts", e.opts.MaxRetries, "error", lastErr)
	return decimal.Zero, e.opts.MaxRetries, &RetryExhaustedError{Attempts: e.opts.MaxRetries, Last: lastErr}
}

func (e *Executor) attempt(ctx context.Context, descriptor string) (decimal.Decimal, error) {
	if err := e.session.EnsureReady(ctx, descriptor); err != nil {
		return decimal.Zero, err
	}
	balance, err := e.session.FetchOnce(ctx, descriptor)
	if err != nil {
		return decimal.Zero, err
	}
	if balance.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeBalance, balance)
	}
	return balance, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
