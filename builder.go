package xsock

import (
	"context"
	"fmt"
	"time"

	"github.com/trickstertwo/xlog"
)

// NodeBuilder constructs Node instances (Builder pattern).
type NodeBuilder struct {
	backendName string
	backendCfg  map[string]any
	backendInst Backend

	codecName string
	codecInst Codec

	framingName string
	framerInst  Framer

	middlewares    []Middleware
	observers      []Observer
	logger         *xlog.Logger
	clock          Clock
	calibration    *Calibration
	retry          RetryPolicy
	maxFrameSize   int
	receiveTimeout time.Duration

	poolWorkers int
	poolBuffer  int
}

// NewNodeBuilder returns a new builder with sensible defaults.
func NewNodeBuilder() *NodeBuilder {
	return &NodeBuilder{
		codecName:      "json",
		framingName:    FramingDelimited,
		retry:          DefaultRetryPolicy(),
		maxFrameSize:   DefaultMaxFrameSize,
		receiveTimeout: DefaultReceiveTimeout,
	}
}

func (nb *NodeBuilder) WithBackend(name string, cfg map[string]any) *NodeBuilder {
	nb.backendName = name
	nb.backendCfg = cfg
	return nb
}

// WithBackendInstance accepts a ready Backend instance (e.g., from adapter New()).
func (nb *NodeBuilder) WithBackendInstance(b Backend) *NodeBuilder {
	nb.backendInst = b
	return nb
}

func (nb *NodeBuilder) WithCodec(name string) *NodeBuilder {
	nb.codecName = name
	return nb
}

// WithCodecInstance accepts a ready Codec instance.
func (nb *NodeBuilder) WithCodecInstance(c Codec) *NodeBuilder {
	nb.codecInst = c
	return nb
}

// WithFraming selects a registered framing convention ("delimited" or "multipart").
func (nb *NodeBuilder) WithFraming(name string) *NodeBuilder {
	nb.framingName = name
	return nb
}

// WithFramer accepts a ready Framer instance.
func (nb *NodeBuilder) WithFramer(f Framer) *NodeBuilder {
	nb.framerInst = f
	return nb
}

func (nb *NodeBuilder) WithMiddleware(mw ...Middleware) *NodeBuilder {
	nb.middlewares = append(nb.middlewares, mw...)
	return nb
}

func (nb *NodeBuilder) WithObserver(obs ...Observer) *NodeBuilder {
	for _, o := range obs {
		if o != nil {
			nb.observers = append(nb.observers, o)
		}
	}
	return nb
}

// WithObserverPool dispatches observer events asynchronously.
func (nb *NodeBuilder) WithObserverPool(workers, bufferSize int) *NodeBuilder {
	nb.poolWorkers = workers
	nb.poolBuffer = bufferSize
	return nb
}

func (nb *NodeBuilder) WithLogger(l *xlog.Logger) *NodeBuilder {
	nb.logger = l
	return nb
}

// WithClock sets the clock calibrated by Build. Ignored when WithCalibration is used.
func (nb *NodeBuilder) WithClock(c Clock) *NodeBuilder {
	nb.clock = c
	return nb
}

// WithCalibration reuses a calibration taken once at process start.
func (nb *NodeBuilder) WithCalibration(c Calibration) *NodeBuilder {
	nb.calibration = &c
	return nb
}

// WithRetry sets the policy for subscriber connects and publisher send backoff.
func (nb *NodeBuilder) WithRetry(p RetryPolicy) *NodeBuilder {
	nb.retry = p
	return nb
}

func (nb *NodeBuilder) WithMaxFrameSize(n int) *NodeBuilder {
	if n > 0 {
		nb.maxFrameSize = n
	}
	return nb
}

// WithReceiveTimeout bounds each blocking receive; a negative value blocks forever.
func (nb *NodeBuilder) WithReceiveTimeout(d time.Duration) *NodeBuilder {
	if d != 0 {
		nb.receiveTimeout = d
	}
	return nb
}

func (nb *NodeBuilder) Build() (*Node, error) {
	var err error

	var cd Codec
	if nb.codecInst != nil {
		cd = nb.codecInst
	} else if cd, err = NewCodec(nb.codecName); err != nil {
		return nil, err
	}

	var fr Framer
	if nb.framerInst != nil {
		fr = nb.framerInst
	} else if fr, err = NewFramer(nb.framingName); err != nil {
		return nil, err
	}

	var be Backend
	switch {
	case nb.backendInst != nil:
		be = nb.backendInst
	case nb.backendName != "":
		if be, err = NewBackend(nb.backendName, nb.backendCfg); err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoBackendConfigured
	}

	if fr.Name() == FramingMultipart && !be.Capabilities().Multipart {
		// the back end was created here or handed over; either way nothing else owns it yet
		_ = be.Terminate()
		return nil, fmt.Errorf("%w: %s over %s", ErrFramingUnsupported, fr.Name(), be.Name())
	}

	var cal Calibration
	if nb.calibration != nil && !nb.calibration.IsZero() {
		cal = *nb.calibration
	} else {
		cal = Calibrate(nb.clock)
	}

	lg := nb.logger
	if lg == nil {
		lg = xlog.Default()
	}

	n := &Node{
		backend:        be,
		codec:          cd,
		framer:         fr,
		calibration:    cal,
		logger:         lg,
		middlewares:    nb.middlewares,
		retry:          nb.retry,
		maxFrameSize:   nb.maxFrameSize,
		receiveTimeout: nb.receiveTimeout,
		metrics:        newNodeMetrics(),
		sockets:        make(map[*trackedSocket]struct{}),
	}
	if nb.poolWorkers > 0 || nb.poolBuffer > 0 {
		n.observerPool = NewObserverPool(nb.poolWorkers, nb.poolBuffer)
	}

	// Attach logging observer first unless already supplied externally.
	hasLoggingObserver := false
	for _, o := range nb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		n.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range nb.observers {
		n.AddObserver(o)
	}

	return n, nil
}

// New constructs a Node via Builder and returns a close func for convenience.
func New(init func(b *NodeBuilder)) (*Node, func() error, error) {
	b := NewNodeBuilder()
	if init != nil {
		init(b)
	}
	n, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return n.Close(context.Background()) }
	return n, closeFn, nil
}
