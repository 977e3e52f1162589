package inference

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRejected marks a response that arrived but could not be accepted.
// A rejection consumes an attempt like any other failure.
var ErrRejected = errors.New("oracle response rejected")

// Policy bounds one oracle interaction.
type Policy struct {
	Attempts int
	Timeout  time.Duration // per attempt; zero means no limit
	Backoff  time.Duration // delay after the first failure, doubled after each subsequent one
}

// Outcome is the result of a bounded interaction: either Value or the last error.
type Outcome[T any] struct {
	Value    T
	Attempts int
	Err      error
}

func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

type result[T any] struct {
	value T
	err   error
}

// Attempt calls fn until it succeeds, the attempt budget is spent or ctx is
// done. Each call gets its own deadline; a call that ignores its context is
// abandoned once the deadline passes.
func Attempt[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) Outcome[T] {
	attempts := max(policy.Attempts, 1)
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return Outcome[T]{Attempts: i - 1, Err: err}
		}
		value, err := once(ctx, policy.Timeout, fn)
		if err == nil {
			return Outcome[T]{Value: value, Attempts: i}
		}
		lastErr = fmt.Errorf("attempt %d: %w", i, err)
		if i == attempts {
			break
		}
		delay := policy.Backoff << (i - 1)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Outcome[T]{Attempts: i, Err: fmt.Errorf("%w (last: %v)", ctx.Err(), lastErr)}
		case <-timer.C:
		}
	}
	return Outcome[T]{Attempts: attempts, Err: fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)}
}

func once[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(callCtx)
		done <- result[T]{value: v, err: err}
	}()
	select {
	case r := <-done:
		return r.value, r.err
	case <-callCtx.Done():
		var zero T
		return zero, callCtx.Err()
	}
}
