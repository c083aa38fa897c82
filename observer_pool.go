package xsock

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultPoolWorkers = 1
	defaultPoolBuffer  = 1024
)

// queuedEvent pairs an event with the observers registered when it was raised.
type queuedEvent struct {
	event     Event
	observers []Observer
}

// ObserverPool moves observer callbacks off the send and receive loops.
//
// Per-message events (Publish, Receive, Drop) are dropped when the queue is
// full. Socket lifecycle and Error events are delivered inline instead, so
// gauges such as the open socket count never drift.
type ObserverPool struct {
	queue   chan queuedEvent
	stop    chan struct{}
	workers int
	wg      sync.WaitGroup
	closed  atomic.Bool

	processed atomic.Uint64
	inline    atomic.Uint64
	dropped   atomic.Uint64

	dropMu      sync.Mutex
	droppedType map[EventType]uint64
}

// NewObserverPool starts workers goroutines draining a queue of bufferSize events.
func NewObserverPool(workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = defaultPoolWorkers
	}
	if bufferSize < 1 {
		bufferSize = defaultPoolBuffer
	}

	op := &ObserverPool{
		queue:       make(chan queuedEvent, bufferSize),
		stop:        make(chan struct{}),
		workers:     workers,
		droppedType: make(map[EventType]uint64),
	}
	op.wg.Add(workers)
	for range workers {
		go op.run()
	}
	return op
}

// mustDeliver reports whether e is too important to drop under load.
func mustDeliver(t EventType) bool {
	switch t {
	case SocketOpen, SocketClose, Error:
		return true
	}
	return false
}

// Notify queues e for observers without blocking the caller, except for
// lifecycle events raised while the queue is full.
func (op *ObserverPool) Notify(e Event, observers []Observer) {
	if len(observers) == 0 {
		return
	}
	if op.closed.Load() {
		if mustDeliver(e.Type) {
			op.deliverInline(e, observers)
		}
		return
	}

	select {
	case op.queue <- queuedEvent{event: e, observers: observers}:
		return
	default:
	}

	if mustDeliver(e.Type) {
		op.deliverInline(e, observers)
		return
	}
	op.dropped.Add(1)
	op.dropMu.Lock()
	op.droppedType[e.Type]++
	op.dropMu.Unlock()
}

func (op *ObserverPool) deliverInline(e Event, observers []Observer) {
	op.inline.Add(1)
	for _, o := range observers {
		dispatch(o, e)
	}
}

func (op *ObserverPool) run() {
	defer op.wg.Done()
	for {
		select {
		case q := <-op.queue:
			op.handle(q)
		case <-op.stop:
			for {
				select {
				case q := <-op.queue:
					op.handle(q)
				default:
					return
				}
			}
		}
	}
}

func (op *ObserverPool) handle(q queuedEvent) {
	for _, o := range q.observers {
		dispatch(o, q.event)
	}
	op.processed.Add(1)
}

// dispatch calls one observer, swallowing its panic.
func dispatch(obs Observer, e Event) {
	if obs == nil {
		return
	}
	defer func() { _ = recover() }()
	obs.OnEvent(e)
}

// Close stops accepting events and waits up to timeout for the queue to drain.
func (op *ObserverPool) Close(timeout time.Duration) error {
	if op.closed.Swap(true) {
		return nil
	}
	close(op.stop)

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return ErrObserverPoolTimeout
	}
}

// Stats returns current pool statistics.
func (op *ObserverPool) Stats() PoolStats {
	op.dropMu.Lock()
	byType := make(map[EventType]uint64, len(op.droppedType))
	for k, v := range op.droppedType {
		byType[k] = v
	}
	op.dropMu.Unlock()

	return PoolStats{
		Dropped:       op.dropped.Load(),
		DroppedByType: byType,
		Processed:     op.processed.Load(),
		Inline:        op.inline.Load(),
		Queued:        len(op.queue),
		Workers:       op.workers,
		BufferSize:    cap(op.queue),
	}
}
