package xsock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 800*time.Millisecond, p.Delay(4))
	assert.Equal(t, time.Second, p.Delay(10))

	fixed := RetryPolicy{InitialDelay: 50 * time.Millisecond}
	assert.Equal(t, 50*time.Millisecond, fixed.Delay(5))
}

func TestRetryPolicy_DoSucceedsEventually(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond}
	var seen []int
	err := p.Do(context.Background(), func(attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRetryPolicy_DoExhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond}
	refused := errors.New("connection refused")
	err := p.Do(context.Background(), func(int) error { return refused })

	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 3, re.Attempts)
	assert.ErrorIs(t, err, refused)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Nil(t, re.Cause)
}

func TestRetryPolicy_DoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 100, InitialDelay: time.Hour}

	calls := 0
	err := p.Do(ctx, func(int) error {
		calls++
		cancel()
		return errors.New("down")
	})
	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualError(t, err, "xsock: stopped after 1 attempts (context canceled): down")
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = RetryPolicy{}.Do(context.Background(), func(int) error { calls++; return errors.New("x") })
	assert.Equal(t, 1, calls)
}
