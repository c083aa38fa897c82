package xsock

import (
	"errors"
	"sync"
)

// Lifecycle tracks ownership of one native handle. Back ends embed it in their
// sockets so that the handle is released exactly once, is attached (bound or
// connected) at most once, and is never touched after release.
type Lifecycle struct {
	mu       sync.Mutex
	closed   bool
	attached bool
}

// Guard returns ErrSocketClosed once the handle has been released.
func (l *Lifecycle) Guard() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrSocketClosed
	}
	return nil
}

// Closed reports whether Release has run.
func (l *Lifecycle) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Attach runs fn (a native bind or connect) if the handle is open and not yet
// attached. A failed fn leaves the handle unattached so the caller may retry.
func (l *Lifecycle) Attach(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrSocketClosed
	}
	if l.attached {
		return ErrAlreadyAttached
	}
	if err := fn(); err != nil {
		return err
	}
	l.attached = true
	return nil
}

// Release runs fn the first time it is called and is a no-op afterwards.
func (l *Lifecycle) Release(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if fn == nil {
		return nil
	}
	return fn()
}

// Scoped runs fn with s and closes s on every exit path, including panics.
// A close error is joined with fn's error.
func Scoped(s Socket, fn func(Socket) error) (err error) {
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(s)
}

// SubscriptionTopic converts an OptSubscribe/OptUnsubscribe value to raw bytes.
func SubscriptionTopic(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return nil, nil
	}
	return nil, ErrInvalidOption
}
