package memory

import (
	"bytes"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/trickstertwo/xsock"
)

const BackendName = "memory"

func init() {
	if err := xsock.RegisterBackend(BackendName, func(cfg map[string]any) (xsock.Backend, error) {
		return New(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("xsock/memory: failed to register backend: %w", err))
	}
}

// Config controls memory back end behavior.
type Config struct {
	// BufferSize is the per-subscriber queue size in messages (default: 1024).
	// A full queue drops new messages, like a publisher hitting its high-water mark.
	BufferSize int
}

// Defaults returns the default Config.
func Defaults() Config {
	return Config{BufferSize: 1024}
}

func ConfigFromMap(cfg map[string]any) Config {
	getInt := func(k string, d int) int {
		switch v := cfg[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		case string:
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			return d
		default:
			return d
		}
	}

	return Config{
		BufferSize: max(1, getInt("buffer_size", 1024)),
	}
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"buffer_size": c.BufferSize,
	}
}

// Backend implements xsock.Backend with in-process channels (dev/testing).
// Endpoints are plain names scoped to one Backend: a publisher binds a name
// and subscribers connect to the same name. Messages sent before a
// subscriber connects are not seen by it.
type Backend struct {
	cfg Config

	mu         sync.Mutex
	endpoints  map[string]*endpoint
	terminated bool

	metrics *backendMetrics
}

type backendMetrics struct {
	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

var _ xsock.Backend = (*Backend)(nil)

// New creates a memory back end.
func New(cfg Config) *Backend {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1024
	}
	return &Backend{
		cfg:       cfg,
		endpoints: make(map[string]*endpoint),
		metrics:   &backendMetrics{},
	}
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) Capabilities() xsock.Capabilities {
	return xsock.Capabilities{Context: true, Multipart: true}
}

func (b *Backend) Open(role xsock.Role) (xsock.Socket, error) {
	if !role.Valid() {
		return nil, xsock.ErrInvalidRole
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminated {
		return nil, xsock.ErrBackendTerminated
	}
	s := &socket{
		backend: b,
		role:    role,
		done:    make(chan struct{}),
		timeout: -1,
	}
	if role == xsock.RoleSubscriber {
		s.queue = make(chan [][]byte, b.cfg.BufferSize)
	}
	return s, nil
}

// Terminate refuses new sockets and forgets every endpoint. Calling it again is a no-op.
func (b *Backend) Terminate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminated {
		return nil
	}
	b.terminated = true
	b.endpoints = make(map[string]*endpoint)
	return nil
}

// Stats returns back end telemetry.
type Stats struct {
	Published uint64
	Delivered uint64
	Dropped   uint64
}

// Stats returns current back end metrics.
func (b *Backend) Stats() Stats {
	return Stats{
		Published: b.metrics.published.Load(),
		Delivered: b.metrics.delivered.Load(),
		Dropped:   b.metrics.dropped.Load(),
	}
}

// endpoint links one bound publisher to its connected subscribers.
type endpoint struct {
	mu    sync.RWMutex
	bound bool
	subs  map[*socket]struct{}
}

func (b *Backend) ensureEndpoint(name string) (*endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminated {
		return nil, xsock.ErrBackendTerminated
	}
	if ep, ok := b.endpoints[name]; ok {
		return ep, nil
	}
	ep := &endpoint{subs: make(map[*socket]struct{})}
	b.endpoints[name] = ep
	return ep, nil
}

func (b *Backend) bind(name string) (*endpoint, error) {
	ep, err := b.ensureEndpoint(name)
	if err != nil {
		return nil, err
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.bound {
		return nil, &xsock.TransportError{
			Op:      "bind",
			Code:    int(syscall.EADDRINUSE),
			Message: syscall.EADDRINUSE.Error(),
		}
	}
	ep.bound = true
	return ep, nil
}

func (b *Backend) connect(name string, s *socket) (*endpoint, error) {
	ep, err := b.ensureEndpoint(name)
	if err != nil {
		return nil, err
	}
	ep.mu.Lock()
	ep.subs[s] = struct{}{}
	ep.mu.Unlock()
	return ep, nil
}

// deliver fans msg out to every subscriber whose subscriptions match its
// first frame. Each subscriber gets its own copy of the frames. Full queues
// drop the message for that subscriber.
func (ep *endpoint) deliver(m *backendMetrics, msg [][]byte) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()
	for s := range ep.subs {
		if !s.matches(msg[0]) {
			continue
		}
		select {
		case s.queue <- cloneFrames(msg):
			m.delivered.Add(1)
		default:
			m.dropped.Add(1)
		}
	}
}

func cloneFrames(msg [][]byte) [][]byte {
	out := make([][]byte, len(msg))
	for i, f := range msg {
		out[i] = bytes.Clone(f)
	}
	return out
}

func (ep *endpoint) release(s *socket) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if s.role == xsock.RolePublisher {
		ep.bound = false
		return
	}
	delete(ep.subs, s)
}

func timeoutError() error {
	return &xsock.TransportError{
		Op:      "recv",
		Code:    int(syscall.EAGAIN),
		Message: syscall.EAGAIN.Error(),
		Timeout: true,
	}
}
