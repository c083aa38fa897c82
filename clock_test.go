package xsock

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock has a wall reading fixed at calibration and a monotonic reading
// that tests advance; wall jumps do not affect Since.
type fakeClock struct {
	wall    time.Time
	elapsed time.Duration
}

func (c *fakeClock) Now() time.Time                { return c.wall }
func (c *fakeClock) Since(time.Time) time.Duration { return c.elapsed }

func TestCalibrate_Offset(t *testing.T) {
	c := &fakeClock{wall: time.Unix(1, 0)}
	cal := Calibrate(c)

	assert.False(t, cal.IsZero())
	assert.Equal(t, int64(1_000_000_000), cal.Offset())
	assert.Equal(t, int64(1_000_000_000), cal.NowNs())
	assert.Equal(t, "1000000000", cal.Timestamp())
}

func TestCalibration_MonotonicDespiteWallJump(t *testing.T) {
	c := &fakeClock{wall: time.Unix(1000, 0)}
	cal := Calibrate(c)

	c.elapsed = 10 * time.Millisecond
	first := cal.NowNs()

	// wall clock stepped back an hour; timestamps keep moving forward
	c.wall = c.wall.Add(-time.Hour)
	c.elapsed = 20 * time.Millisecond
	second := cal.NowNs()

	assert.Greater(t, second, first)
	assert.Equal(t, int64(10*time.Millisecond), second-first)
}

func TestCalibration_RealClock(t *testing.T) {
	cal := Calibrate(nil)
	prev := cal.NowNs()
	for i := 0; i < 1000; i++ {
		now := cal.NowNs()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
	assert.InDelta(t, time.Now().UnixNano(), cal.NowNs(), float64(time.Second))
}

func TestCalibration_Zero(t *testing.T) {
	var cal Calibration
	assert.True(t, cal.IsZero())
	assert.Zero(t, cal.Monotonic())
}

func TestLatencyMicros(t *testing.T) {
	assert.Equal(t, 500.0, LatencyMicros(1_000_000_000, 1_000_500_000))
	assert.Equal(t, -1.0, LatencyMicros(1_000_001_000, 1_000_000_000))
	assert.Equal(t, 0.25, LatencyMicros(0, 250))
}

func TestLatencyFromTimestamp(t *testing.T) {
	us, err := LatencyFromTimestamp("1000000000", 1_000_500_000)
	require.NoError(t, err)
	assert.Equal(t, 500.0, us)

	// beyond int64: the difference is still computed exactly before scaling
	us, err = LatencyFromTimestamp("-99999999999999999999999", 0)
	require.NoError(t, err)
	assert.InEpsilon(t, 99999999999999999999.999, us, 1e-12)
	assert.False(t, math.IsInf(us, 0))

	_, err = LatencyFromTimestamp("1e9", 0)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}
