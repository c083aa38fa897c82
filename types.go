package xsock

import (
	"fmt"
	"time"
)

// Role is the declared kind of a socket. It never changes after Open.
type Role int

const (
	RolePublisher Role = iota + 1
	RoleSubscriber
)

func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool { return r == RolePublisher || r == RoleSubscriber }

// ParseRole maps the process argument ("pub" or "sub") to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "pub", "publisher":
		return RolePublisher, nil
	case "sub", "subscriber":
		return RoleSubscriber, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// SocketOption names a settable socket option.
//
//	OptSubscribe, OptUnsubscribe: []byte or string, raw topic bytes with no terminator
//	OptReceiveTimeout, OptLinger: time.Duration (negative means infinite)
type SocketOption int

const (
	OptSubscribe SocketOption = iota + 1
	OptUnsubscribe
	OptReceiveTimeout
	OptLinger
)

func (o SocketOption) String() string {
	switch o {
	case OptSubscribe:
		return "subscribe"
	case OptUnsubscribe:
		return "unsubscribe"
	case OptReceiveTimeout:
		return "receive_timeout"
	case OptLinger:
		return "linger"
	default:
		return fmt.Sprintf("option(%d)", int(o))
	}
}

// Capabilities describes what a Backend supports.
type Capabilities struct {
	// Context is true when the back end owns a process-wide native context.
	Context bool
	// Multipart is true when Send(more=true) and More() are supported.
	Multipart bool
}

// Message is the unit published on a topic.
type Message struct {
	ID        uint64    `json:"id"`
	Timestamp string    `json:"timestamp"` // decimal epoch nanoseconds
	Content   string    `json:"content"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Metadata is optional descriptive data attached to a Message.
type Metadata struct {
	Source   string   `json:"source"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

// Delivery is a decoded message handed to a subscriber Handler.
type Delivery struct {
	Topic         string
	Message       *Message
	ReceivedNs    int64
	LatencyMicros float64
}

// EventType enumerates internal lifecycle events for Observer pattern.
type EventType string

const (
	SocketOpen  EventType = "socket_open"
	SocketClose EventType = "socket_close"
	Publish     EventType = "publish"
	Receive     EventType = "receive"
	Drop        EventType = "drop"
	Error       EventType = "error"
)

// Event carries telemetry for observers.
type Event struct {
	Type          EventType
	Backend       string
	Role          Role
	Endpoint      string
	Topic         string
	MessageID     uint64
	Bytes         int
	Duration      time.Duration
	LatencyMicros float64
	Err           error
}

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped       uint64               // events dropped because the queue was full
	DroppedByType map[EventType]uint64 // Dropped split by event type
	Processed     uint64               // events dispatched by workers
	Inline        uint64               // lifecycle events delivered on the caller's goroutine
	Queued        int
	Workers       int
	BufferSize    int
}

// Metrics defines observable telemetry for a node.
type Metrics struct {
	Published        uint64
	Received         uint64
	SendErrors       uint64
	FramingErrors    uint64
	DecodeErrors     uint64
	Filtered         uint64
	HandlerErrors    uint64
	EventsDropped    uint64
	OpenSockets      int
	AvgLatencyMicros float64
}

// HealthStatus indicates node health for liveness checks.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
