// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 Uptention Authors

package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrRetriesExhausted is returned by RetryPolicy.Do when every attempt
// finished without the condition being met.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds a polling loop.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts, at least 1
	Delay       time.Duration // Wait before the second attempt
	Backoff     float64       // Delay multiplier per attempt; <= 1 keeps the delay fixed
	MaxDelay    time.Duration // Upper bound for the grown delay (0 = unbounded)
}

// DefaultConfirmPolicy polls for about 30 seconds, enough for "confirmed"
// on a healthy cluster.
func DefaultConfirmPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 30, Delay: time.Second, Backoff: 1}
}

// DefaultRefreshPolicy re-polls balances a handful of times after a transfer.
func DefaultRefreshPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Delay: 2 * time.Second, Backoff: 1.5, MaxDelay: 10 * time.Second}
}

// delay returns the wait after the given zero-based attempt.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Delay
	if p.Backoff > 1 {
		for i := 0; i < attempt; i++ {
			d = time.Duration(float64(d) * p.Backoff)
			if p.MaxDelay > 0 && d >= p.MaxDelay {
				return p.MaxDelay
			}
		}
	}
	return d
}

// Do calls fn until it reports done, returns an error, the attempts run
// out (ErrRetriesExhausted) or ctx ends.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) (done bool, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		done, err := fn(attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(p.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ErrRetriesExhausted
}
