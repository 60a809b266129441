package enrich

import (
	"context"
	"time"
)

// Policy bounds a single provider call. Every attempt gets its own Timeout;
// only timeout and unavailable failures are retried, at most MaxAttempts
// calls in total.
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs fn under the policy and returns a classified error for op.
func (p Policy) Do(ctx context.Context, op Op, fn func(ctx context.Context) error) error {
	var last *Error

	for attempt := 1; attempt <= p.attempts(); attempt++ {
		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}

		last = AsError(op, err)
		if ctx.Err() != nil {
			return newError(op, KindCanceled, ctx.Err())
		}
		if !last.Retryable() || attempt == p.attempts() {
			break
		}

		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return newError(op, KindCanceled, ctx.Err())
			case <-timer.C:
			}
		}
	}

	return last
}

func (p Policy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	return fn(attemptCtx)
}
