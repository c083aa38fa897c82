package xsock

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSocketClosed         = errors.New("xsock: socket closed")
	ErrBackendTerminated    = errors.New("xsock: backend terminated")
	ErrNodeClosed           = errors.New("xsock: node closed")
	ErrInvalidRole          = errors.New("xsock: invalid socket role")
	ErrWrongRole            = errors.New("xsock: operation not valid for socket role")
	ErrAlreadyAttached      = errors.New("xsock: socket already bound or connected")
	ErrInvalidEndpoint      = errors.New("xsock: invalid endpoint")
	ErrInvalidOption        = errors.New("xsock: invalid socket option")
	ErrInvalidTopic         = errors.New("xsock: invalid topic")
	ErrInvalidTimestamp     = errors.New("xsock: timestamp is not a decimal integer")
	ErrDecode               = errors.New("xsock: decode payload")
	ErrFrameTooLarge        = errors.New("xsock: frame exceeds maximum size")
	ErrMultipartUnsupported = errors.New("xsock: backend does not support multipart frames")
	ErrFramingUnsupported   = errors.New("xsock: framing not supported by backend")
	ErrTimeout              = errors.New("xsock: receive timed out")
	ErrNoBackendConfigured  = errors.New("xsock: no backend configured")
	ErrObserverPoolTimeout  = errors.New("xsock: observer pool shutdown timed out")
	ErrHandlerPanic         = errors.New("xsock: handler panic")
	ErrTopicFiltered        = errors.New("xsock: topic not subscribed")
)

type ErrUnknownBackend struct{ name string }

func (e ErrUnknownBackend) Error() string { return fmt.Sprintf("unknown backend: %s", e.name) }

// TransportError reports a failed native call.
type TransportError struct {
	Op      string // native operation, e.g. "zmq_bind"
	Code    int    // native error code
	Message string // native error string
	// Timeout is set when Code means "no message available before the receive timeout".
	Timeout bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("xsock: %s failed: %s (code %d)", e.Op, e.Message, e.Code)
}

// Is lets errors.Is(err, ErrTimeout) match timed-out receives.
func (e *TransportError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout
}

// LibraryLoadError reports that no candidate native library could be loaded.
// It is fatal: the process cannot proceed without the library.
type LibraryLoadError struct {
	Library  string
	Attempts []string
	Err      error
}

func (e *LibraryLoadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "xsock: load %s library", e.Library)
	if len(e.Attempts) > 0 {
		fmt.Fprintf(&b, " (tried %s)", strings.Join(e.Attempts, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *LibraryLoadError) Unwrap() error { return e.Err }

// FramingError reports a received message that does not match the framing convention.
// The offending message is discarded; the receive loop continues.
type FramingError struct {
	Framing string
	Frames  int
	Reason  string
}

func (e *FramingError) Error() string {
	if e.Frames > 0 {
		return fmt.Sprintf("xsock: %s framing: %s (%d frames)", e.Framing, e.Reason, e.Frames)
	}
	return fmt.Sprintf("xsock: %s framing: %s", e.Framing, e.Reason)
}

// RetryError is returned when a RetryPolicy gives up. Cause is the context
// error when the wait was cut short, nil when attempts ran out.
type RetryError struct {
	Attempts int
	Last     error
	Cause    error
}

func (e *RetryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("xsock: stopped after %d attempts (%v): %v", e.Attempts, e.Cause, e.Last)
	}
	return fmt.Sprintf("xsock: gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Last}
	}
	return []error{e.Last, e.Cause}
}
