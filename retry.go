package xsock

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy is a bounded retry schedule used while waiting for a peer.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// InitialDelay is the wait after the first failed attempt.
	InitialDelay time.Duration
	// MaxDelay caps the wait (0 = uncapped).
	MaxDelay time.Duration
	// Multiplier grows the delay per attempt (values < 1 mean fixed delay).
	Multiplier float64
	// Jitter adds up to [0, Jitter] random delay.
	Jitter time.Duration
}

// DefaultRetryPolicy is used for subscriber connects and publisher send backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  10,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
	}
}

// Delay returns the wait after failed attempt n (1-based), without jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, attempts run out or ctx ends.
// It returns nil on success and a *RetryError otherwise.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 1; i <= attempts; i++ {
		if last = fn(i); last == nil {
			return nil
		}
		if i == attempts {
			break
		}
		wait := p.Delay(i)
		if p.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(p.Jitter)))
		}
		if err := sleep(ctx, wait); err != nil {
			return &RetryError{Attempts: i, Last: last, Cause: err}
		}
	}
	return &RetryError{Attempts: attempts, Last: last}
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
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
