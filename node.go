package xsock

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xlog"
)

const (
	// DefaultMaxFrameSize bounds a single received frame.
	DefaultMaxFrameSize = 64 * 1024
	// DefaultReceiveTimeout lets receive loops observe cancellation.
	DefaultReceiveTimeout = 250 * time.Millisecond
)

// Node is the central Facade owning one Backend (the transport context), the
// clock calibration, codec and framer. Publishers and subscribers are opened
// from it; Close releases their sockets before terminating the back end.
type Node struct {
	backend        Backend
	codec          Codec
	framer         Framer
	calibration    Calibration
	logger         *xlog.Logger
	middlewares    []Middleware
	retry          RetryPolicy
	maxFrameSize   int
	receiveTimeout time.Duration
	observerPool   *ObserverPool
	observersMu    sync.RWMutex
	observers      []Observer
	metrics        *nodeMetrics

	socketsMu sync.Mutex
	sockets   map[*trackedSocket]struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

// nodeMetrics uses lock-free atomics for telemetry.
type nodeMetrics struct {
	published     atomic.Uint64
	received      atomic.Uint64
	sendErrors    atomic.Uint64
	framingErrors atomic.Uint64
	decodeErrors  atomic.Uint64
	filtered      atomic.Uint64
	handlerErrors atomic.Uint64
	latencyBits   atomic.Uint64 // NaN until the first sample
}

func newNodeMetrics() *nodeMetrics {
	m := &nodeMetrics{}
	m.latencyBits.Store(math.Float64bits(math.NaN()))
	return m
}

// Backend returns the configured back end.
func (n *Node) Backend() Backend { return n.backend }

// Codec returns the configured codec (Strategy).
func (n *Node) Codec() Codec { return n.codec }

// Framer returns the configured framing convention.
func (n *Node) Framer() Framer { return n.framer }

// Calibration returns the clock calibration shared by every socket of the node.
func (n *Node) Calibration() Calibration { return n.calibration }

// Logger returns the node logger.
func (n *Node) Logger() *xlog.Logger { return n.logger }

// Open creates a socket tracked by the node. Closing the node closes it.
func (n *Node) Open(role Role) (Socket, error) {
	if n.closed.Load() {
		return nil, ErrNodeClosed
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	s, err := n.backend.Open(role)
	if err != nil {
		n.notify(Event{Type: Error, Backend: n.backend.Name(), Role: role, Err: err})
		return nil, err
	}
	ts := &trackedSocket{Socket: s, node: n}
	n.socketsMu.Lock()
	n.sockets[ts] = struct{}{}
	n.socketsMu.Unlock()
	n.notify(Event{Type: SocketOpen, Backend: n.backend.Name(), Role: role})
	return ts, nil
}

// trackedSocket removes itself from the node when closed.
type trackedSocket struct {
	Socket
	node *Node
}

func (t *trackedSocket) Close() error {
	t.node.socketsMu.Lock()
	_, open := t.node.sockets[t]
	delete(t.node.sockets, t)
	t.node.socketsMu.Unlock()

	err := t.Socket.Close()
	if open {
		t.node.notify(Event{Type: SocketClose, Backend: t.node.backend.Name(), Role: t.Role(), Err: err})
	}
	return err
}

// GetMetrics returns current node metrics.
func (n *Node) GetMetrics() Metrics {
	m := Metrics{
		Published:     n.metrics.published.Load(),
		Received:      n.metrics.received.Load(),
		SendErrors:    n.metrics.sendErrors.Load(),
		FramingErrors: n.metrics.framingErrors.Load(),
		DecodeErrors:  n.metrics.decodeErrors.Load(),
		Filtered:      n.metrics.filtered.Load(),
		HandlerErrors: n.metrics.handlerErrors.Load(),
	}
	if n.observerPool != nil {
		m.EventsDropped = n.observerPool.Stats().Dropped
	}
	if avg := math.Float64frombits(n.metrics.latencyBits.Load()); !math.IsNaN(avg) {
		m.AvgLatencyMicros = avg
	}
	n.socketsMu.Lock()
	m.OpenSockets = len(n.sockets)
	n.socketsMu.Unlock()
	return m
}

// ObserverPoolStats reports the async observer pool; ok is false when events
// are dispatched inline.
func (n *Node) ObserverPoolStats() (stats PoolStats, ok bool) {
	if n.observerPool == nil {
		return PoolStats{}, false
	}
	return n.observerPool.Stats(), true
}

// Health checks node health. Implements HealthChecker.
func (n *Node) Health(_ context.Context) HealthStatus {
	if n.closed.Load() {
		return HealthStatus{
			Status:    "unhealthy",
			Timestamp: time.Now(),
			Message:   "node is closed",
		}
	}

	metrics := n.GetMetrics()
	status := "healthy"

	// Degraded if error rate > 5%
	errs := metrics.SendErrors + metrics.FramingErrors + metrics.DecodeErrors
	total := metrics.Published + metrics.Received + errs
	if errs > 0 && total > 0 && float64(errs)/float64(total) > 0.05 {
		status = "degraded"
	}

	return HealthStatus{
		Status:    status,
		Metrics:   metrics,
		Timestamp: time.Now(),
	}
}

// Close closes every socket still open, then terminates the back end.
// Sockets must not be in use by a running loop when Close is called.
func (n *Node) Close(_ context.Context) error {
	var closeErr error

	n.closeOnce.Do(func() {
		n.closed.Store(true)

		n.socketsMu.Lock()
		open := make([]*trackedSocket, 0, len(n.sockets))
		for s := range n.sockets {
			open = append(open, s)
		}
		n.socketsMu.Unlock()

		for _, s := range open {
			if err := s.Close(); err != nil {
				n.logger.Warn().Err(err).Msg("xsock: socket close failed")
				closeErr = errors.Join(closeErr, err)
			}
		}

		if err := n.backend.Terminate(); err != nil {
			n.logger.Error().Err(err).Msg("xsock: backend terminate failed")
			closeErr = errors.Join(closeErr, err)
		}

		if n.observerPool != nil {
			if err := n.observerPool.Close(5 * time.Second); err != nil {
				n.logger.Warn().Err(err).Msg("xsock: observer pool shutdown timeout")
				closeErr = errors.Join(closeErr, err)
			}
		}
	})

	return closeErr
}

// AddObserver registers an observer (thread-safe).
func (n *Node) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	n.observersMu.Lock()
	n.observers = append(n.observers, obs)
	n.observersMu.Unlock()
}

// RemoveObserver removes an observer. obs must be comparable; an ObserverFunc
// cannot be removed.
func (n *Node) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	if _, ok := obs.(ObserverFunc); ok {
		return
	}
	n.observersMu.Lock()
	defer n.observersMu.Unlock()

	for i, o := range n.observers {
		if o == obs {
			n.observers = append(n.observers[:i], n.observers[i+1:]...)
			break
		}
	}
}

// notify dispatches through the pool when configured, inline otherwise.
func (n *Node) notify(e Event) {
	n.observersMu.RLock()
	if len(n.observers) == 0 {
		n.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, len(n.observers))
	copy(observers, n.observers)
	n.observersMu.RUnlock()

	if n.observerPool != nil {
		n.observerPool.Notify(e, observers)
		return
	}
	for _, o := range observers {
		dispatch(o, e)
	}
}

// recordLatency keeps an exponential moving average of delivery latency.
// Concurrent subscribers on one node update it without losing samples.
func (n *Node) recordLatency(us float64) {
	const alpha = 0.2 // 20% weight to new sample
	for {
		old := n.metrics.latencyBits.Load()
		next := us
		if current := math.Float64frombits(old); !math.IsNaN(current) {
			next = us*alpha + current*(1-alpha)
		}
		if n.metrics.latencyBits.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }
