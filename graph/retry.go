package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BackoffStrategy defines different backoff strategies
type BackoffStrategy int

const (
	FixedBackoff BackoffStrategy = iota
	ExponentialBackoff
	LinearBackoff
)

// RetryPolicy defines how to handle node failures
type RetryPolicy struct {
	MaxRetries      int
	BackoffStrategy BackoffStrategy
	// RetryableErrors lists substrings; only errors whose message contains
	// one of them are retried.
	RetryableErrors []string
	// BaseDelay is the backoff unit, one second when zero.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff when positive.
	MaxDelay time.Duration
}

// IsRetryable reports whether err matches one of the retryable patterns.
// Interrupts and context errors are never retried.
func (p *RetryPolicy) IsRetryable(err error) bool {
	if p == nil || err == nil {
		return false
	}
	var nodeInterrupt *NodeInterrupt
	if errors.As(err, &nodeInterrupt) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errorStr := err.Error()
	for _, pattern := range p.RetryableErrors {
		if strings.Contains(errorStr, pattern) {
			return true
		}
	}
	return false
}

// Delay calculates the delay before retry number attempt+1.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if p == nil {
		return 0
	}

	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var delay time.Duration
	switch p.BackoffStrategy {
	case ExponentialBackoff:
		// 1x, 2x, 4x, 8x, ...
		delay = baseDelay * time.Duration(1<<attempt)
	case LinearBackoff:
		// 1x, 2x, 3x, 4x, ...
		delay = baseDelay * time.Duration(attempt+1)
	default:
		delay = baseDelay
	}

	if p.MaxDelay > 0 {
		delay = min(delay, p.MaxDelay)
	}
	return delay
}

// Retry calls fn until it succeeds, returns a non-retryable error, or the
// policy's retries are exhausted. A nil policy calls fn once.
func Retry[T any](ctx context.Context, policy *RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	attempts := 1
	if policy != nil {
		attempts += max(policy.MaxRetries, 0)
	}

	var lastErr error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts-1 || !policy.IsRetryable(err) {
			break
		}

		if delay := policy.Delay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return zero, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
			}
		}
	}

	return zero, lastErr
}

// WithTimeout bounds each call of fn by timeout.
func WithTimeout[S any](name string, fn NodeFunc[S], timeout time.Duration) NodeFunc[S] {
	return func(ctx context.Context, state S) (S, error) {
		timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type result struct {
			value S
			err   error
		}
		resultChan := make(chan result, 1)

		go func() {
			value, err := fn(timeoutCtx, state)
			resultChan <- result{value: value, err: err}
		}()

		select {
		case res := <-resultChan:
			return res.value, res.err
		case <-timeoutCtx.Done():
			var zero S
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, fmt.Errorf("node %s timed out after %v: %w", name, timeout, context.DeadlineExceeded)
		}
	}
}
