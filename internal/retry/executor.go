// Package retry wraps single outbound calls with bounded retries and a delay
// that depends on why the previous attempt failed.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultMaxAttempts is the number of attempts made before giving up
	DefaultMaxAttempts = 3
	// DefaultRateLimitDelay is the wait after a throttled attempt
	DefaultRateLimitDelay = 5 * time.Second
	// DefaultTransientDelay is the wait after any other failed attempt
	DefaultTransientDelay = time.Second
	// DefaultInterCallDelay is the pause after every successful call
	DefaultInterCallDelay = 200 * time.Millisecond
)

// Config holds the executor's attempt budget and delays
type Config struct {
	MaxAttempts    int
	RateLimitDelay time.Duration
	TransientDelay time.Duration
	InterCallDelay time.Duration
}

// DefaultConfig returns the executor defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		RateLimitDelay: DefaultRateLimitDelay,
		TransientDelay: DefaultTransientDelay,
		InterCallDelay: DefaultInterCallDelay,
	}
}

// Event describes a failed attempt that is about to be retried
type Event struct {
	Op      string
	Attempt int
	Kind    Kind
	Delay   time.Duration
	Err     error
}

// Option configures an Executor
type Option func(*Executor)

// WithNotify registers a callback invoked before every retry wait
func WithNotify(fn func(Event)) Option {
	return func(e *Executor) {
		e.notify = fn
	}
}

// Executor runs calls with the configured retry policy. It is safe for
// concurrent use; each call gets its own backoff state.
type Executor struct {
	cfg    Config
	notify func(Event)
}

// NewExecutor creates an executor. A non-positive MaxAttempts and negative
// delays are replaced by the defaults; zero delays are kept.
func NewExecutor(cfg Config, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RateLimitDelay < 0 {
		cfg.RateLimitDelay = def.RateLimitDelay
	}
	if cfg.TransientDelay < 0 {
		cfg.TransientDelay = def.TransientDelay
	}
	if cfg.InterCallDelay < 0 {
		cfg.InterCallDelay = 0
	}

	e := &Executor{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration
func (e *Executor) Config() Config {
	return e.cfg
}

// kindBackOff is a backoff.BackOff whose next delay is chosen by the kind of
// the most recent failure.
type kindBackOff struct {
	rateLimitDelay time.Duration
	transientDelay time.Duration
	last           Kind
}

func (b *kindBackOff) NextBackOff() time.Duration {
	if b.last == KindRateLimited {
		return b.rateLimitDelay
	}
	return b.transientDelay
}

func (b *kindBackOff) Reset() {
	b.last = KindTransient
}

// Execute runs call until it succeeds or the attempt budget is spent. On
// exhaustion it returns an *Error of KindExhausted wrapping the last failure.
// Context cancellation is returned as is and never retried.
func Execute[T any](ctx context.Context, e *Executor, op string, call func(context.Context) (T, error)) (T, error) {
	b := &kindBackOff{
		rateLimitDelay: e.cfg.RateLimitDelay,
		transientDelay: e.cfg.TransientDelay,
	}
	attempts := 0

	operation := func() (T, error) {
		attempts++
		res, err := call(ctx)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, backoff.Permanent(err)
		}
		b.last = classify(err)
		return res, err
	}

	notify := func(err error, delay time.Duration) {
		slog.WarnContext(ctx, "Call failed, retrying",
			"op", op,
			"attempt", attempts,
			"kind", b.last.String(),
			"delay", delay,
			"error", err)
		if e.notify != nil {
			e.notify(Event{Op: op, Attempt: attempts, Kind: b.last, Delay: delay, Err: err})
		}
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(e.cfg.MaxAttempts)), //nolint:gosec // validated positive in NewExecutor
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var zero T
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		return zero, &Error{Kind: KindExhausted, Op: op, Attempts: attempts, Err: err}
	}

	if e.cfg.InterCallDelay > 0 {
		timer := time.NewTimer(e.cfg.InterCallDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	return res, nil
}
