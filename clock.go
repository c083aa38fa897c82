package xsock

import (
	"math/big"
	"strconv"
	"time"

	"github.com/trickstertwo/xclock"
)

// Clock is the time source used for calibration. xclock.Clock satisfies it.
// Now must carry a monotonic reading (time.Now does) for Since to be monotonic.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultClock returns the process clock from xclock.
func DefaultClock() Clock { return xclock.Default() }

// Calibration anchors a monotonic clock to wall-clock epoch time.
//
// One time.Time reading carries both a wall and a monotonic component, so the
// anchor samples both clocks at the same instant. Afterwards timestamps are
// offset + monotonic elapsed; wall-clock adjustments mid-run do not move them.
type Calibration struct {
	clock  Clock
	anchor time.Time
	offset int64
}

// Calibrate samples clock once and returns the calibration. Call it once per
// process and thread the result through every timestamp producer and consumer;
// calibrating again makes earlier timestamps inconsistent with later ones.
func Calibrate(clock Clock) Calibration {
	if clock == nil {
		clock = DefaultClock()
	}
	anchor := clock.Now()
	return Calibration{
		clock:  clock,
		anchor: anchor,
		offset: anchor.UnixNano(),
	}
}

// IsZero reports whether c was never calibrated.
func (c Calibration) IsZero() bool { return c.clock == nil }

// Offset is epoch_ns - monotonic_ns at calibration, with the monotonic clock
// measured from the calibration anchor.
func (c Calibration) Offset() int64 { return c.offset }

// Monotonic returns nanoseconds elapsed on the monotonic clock since calibration.
func (c Calibration) Monotonic() int64 {
	if c.clock == nil {
		return 0
	}
	return c.clock.Since(c.anchor).Nanoseconds()
}

// NowNs returns monotonic-derived epoch nanoseconds.
func (c Calibration) NowNs() int64 { return c.offset + c.Monotonic() }

// Timestamp returns NowNs as a decimal string for the wire.
func (c Calibration) Timestamp() string { return strconv.FormatInt(c.NowNs(), 10) }

// LatencyMicros returns (receiveNs - sendNs) / 1000. Negative values expose
// cross-process clock skew and are returned as is.
func LatencyMicros(sendNs, receiveNs int64) float64 {
	return float64(receiveNs-sendNs) / 1000
}

// LatencyFromTimestamp computes latency from a wire timestamp of any magnitude.
func LatencyFromTimestamp(stamp string, receiveNs int64) (float64, error) {
	sent, err := ParseTimestamp(stamp)
	if err != nil {
		return 0, err
	}
	diff := new(big.Int).Sub(big.NewInt(receiveNs), sent)
	if diff.IsInt64() {
		return LatencyMicros(0, diff.Int64()), nil
	}
	us, _ := new(big.Float).Quo(new(big.Float).SetInt(diff), big.NewFloat(1000)).Float64()
	return us, nil
}
