package xsock

import (
	"context"
)

// Handler processes a single received message.
type Handler func(ctx context.Context, d *Delivery) error

// Middleware composes processing concerns around a Handler.
type Middleware func(next Handler) Handler

// Backend is the Strategy interface for native messaging libraries.
// It plays the role of the transport context: sockets are opened from it and
// must all be closed before Terminate is called.
type Backend interface {
	// Name identifies the back end (e.g. "zmq", "nanomsg").
	Name() string
	// Capabilities reports what the back end supports.
	Capabilities() Capabilities
	// Open creates a socket for the given role.
	Open(role Role) (Socket, error)
	// Terminate releases the context. Calling it again is a no-op.
	// Terminating while sockets remain open is a caller error.
	Terminate() error
}

// Socket is an owned native socket handle with an immutable role.
// A Socket is driven by exactly one goroutine.
type Socket interface {
	Role() Role
	// Bind listens on endpoint. Bind or Connect may be called once per socket.
	Bind(endpoint string) error
	// Connect dials endpoint. Bind or Connect may be called once per socket.
	Connect(endpoint string) error
	// SetOption sets a socket option; see SocketOption for value types.
	SetOption(opt SocketOption, value any) error
	// Send transmits one frame. more signals that another frame of the same
	// message follows. Returns the number of bytes sent.
	Send(frame []byte, more bool) (int, error)
	// Receive blocks until a frame arrives or the receive timeout elapses.
	// Frames longer than maxSize fail with ErrFrameTooLarge.
	Receive(maxSize int) ([]byte, error)
	// More reports whether the last received frame is followed by another.
	More() (bool, error)
	// Close releases the native socket. Calling it again is a no-op.
	Close() error
}

// Framer combines a topic and payload for the wire and splits them back apart.
type Framer interface {
	Name() string
	WriteMessage(s Socket, topic string, payload []byte) error
	ReadMessage(s Socket, maxSize int) (topic string, payload []byte, err error)
}

// Codec is the Strategy for encoding/decoding payloads on the wire.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Observer receives node lifecycle events. Implementations should be non-blocking.
type Observer interface {
	OnEvent(e Event)
}

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

var _ HealthChecker = (*Node)(nil)
