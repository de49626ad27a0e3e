package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	BackoffFactor float64
	ShouldRetry   func(error) bool
	Logger        *zap.Logger
	// Name labels the operation in retry log lines.
	Name string
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		MaxAttempts:   3,
		BaseDelay:     time.Second,
		BackoffFactor: 2,
		ShouldRetry:   func(error) bool { return true },
		Logger:        zap.NewNop(),
	}
}

func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

func WithBaseDelay(d time.Duration) Option {
	return func(o *Options) { o.BaseDelay = d }
}

func WithBackoffFactor(f float64) Option {
	return func(o *Options) { o.BackoffFactor = f }
}

func WithShouldRetry(fn func(error) bool) Option {
	return func(o *Options) { o.ShouldRetry = fn }
}

func WithLogger(log *zap.Logger, name string) Option {
	return func(o *Options) {
		o.Logger = log
		o.Name = name
	}
}

// Delay returns the wait before the attempt following the given (1-based) failed attempt.
func (o Options) Delay(attempt int) time.Duration {
	return time.Duration(float64(o.BaseDelay) * math.Pow(o.BackoffFactor, float64(attempt-1)))
}

// Do calls op until it succeeds, attempts run out, or ShouldRetry rejects the error.
// The last error is returned. A cancelled context stops the wait between attempts.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), opts ...Option) (T, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 1
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = func(error) bool { return true }
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	var zero T
	for attempt := 1; ; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if attempt >= o.MaxAttempts || !o.ShouldRetry(err) {
			return zero, err
		}

		delay := o.Delay(attempt)
		o.Logger.Warn("retrying operation",
			zap.String("operation", o.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", o.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}
