// Package retry runs fallible operations under a bounded, fixed-delay
// retry policy. Only errors marked with one of the policy's retriable kinds
// are retried; everything else returns on the first failure.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scoutbot/pkg/logx"
)

// ErrExhausted is wrapped into the error returned once every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

const (
	DefaultMaxAttempts = 10
	DefaultDelay       = time.Second
)

// Policy describes how often and on which failures an operation is retried.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Retriable   []Kind
}

// Default returns the 10 attempts / 1s policy retrying kinds.
func Default(kinds ...Kind) Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay, Retriable: kinds}
}

// WithKinds returns a copy of p retrying kinds instead.
func (p Policy) WithKinds(kinds ...Kind) Policy {
	p.Retriable = kinds
	return p
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	return p
}

// Do calls fn until it succeeds, fails with a non-retriable error, or
// MaxAttempts is reached. Every failed attempt is logged under op.
//
// On exhaustion the zero T is returned together with an error that matches
// both ErrExhausted and the last failure.
func Do[T any](ctx context.Context, p Policy, log logx.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !Is(err, p.Retriable...) {
			log.Warn("attempt failed (not retriable)",
				logx.String("op", op),
				logx.Int("attempt", attempt),
				logx.Err(err),
			)
			return zero, err
		}

		lvl := log.Warn
		if KindOf(err) == KindPending {
			lvl = log.Debug
		}
		lvl("attempt failed",
			logx.String("op", op),
			logx.Int("attempt", attempt),
			logx.Int("max", p.MaxAttempts),
			logx.Err(err),
		)

		if attempt == p.MaxAttempts {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%s: %w after %d attempts: %w", op, ErrExhausted, p.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
