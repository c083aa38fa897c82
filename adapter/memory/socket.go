package memory

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/trickstertwo/xsock"
)

type socket struct {
	xsock.Lifecycle
	backend *Backend
	role    xsock.Role
	ep      *endpoint
	done    chan struct{}

	// publisher: frames of the message being assembled
	outgoing [][]byte

	// subscriber
	queue   chan [][]byte
	pending [][]byte
	timeout time.Duration

	subMu         sync.RWMutex
	subscriptions [][]byte
}

var _ xsock.Socket = (*socket)(nil)

func (s *socket) Role() xsock.Role { return s.role }

func (s *socket) Bind(endpoint string) error {
	if endpoint == "" {
		return xsock.ErrInvalidEndpoint
	}
	if s.role != xsock.RolePublisher {
		return fmt.Errorf("%w: bind on %s", xsock.ErrWrongRole, s.role)
	}
	return s.Attach(func() error {
		ep, err := s.backend.bind(endpoint)
		if err != nil {
			return err
		}
		s.ep = ep
		return nil
	})
}

func (s *socket) Connect(endpoint string) error {
	if endpoint == "" {
		return xsock.ErrInvalidEndpoint
	}
	if s.role != xsock.RoleSubscriber {
		return fmt.Errorf("%w: connect on %s", xsock.ErrWrongRole, s.role)
	}
	return s.Attach(func() error {
		ep, err := s.backend.connect(endpoint, s)
		if err != nil {
			return err
		}
		s.ep = ep
		return nil
	})
}

func (s *socket) SetOption(opt xsock.SocketOption, value any) error {
	if err := s.Guard(); err != nil {
		return err
	}
	switch opt {
	case xsock.OptSubscribe, xsock.OptUnsubscribe:
		if s.role != xsock.RoleSubscriber {
			return fmt.Errorf("%w: %s on %s", xsock.ErrWrongRole, opt, s.role)
		}
		topic, err := xsock.SubscriptionTopic(value)
		if err != nil {
			return err
		}
		if opt == xsock.OptSubscribe {
			s.subscribe(topic)
		} else {
			s.unsubscribe(topic)
		}
		return nil
	case xsock.OptReceiveTimeout:
		d, ok := value.(time.Duration)
		if !ok {
			return fmt.Errorf("%w: want time.Duration, got %T", xsock.ErrInvalidOption, value)
		}
		s.timeout = d
		return nil
	case xsock.OptLinger:
		if _, ok := value.(time.Duration); !ok {
			return fmt.Errorf("%w: want time.Duration, got %T", xsock.ErrInvalidOption, value)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", xsock.ErrInvalidOption, opt)
}

func (s *socket) subscribe(topic []byte) {
	s.subMu.Lock()
	s.subscriptions = append(s.subscriptions, bytes.Clone(topic))
	s.subMu.Unlock()
}

// unsubscribe removes one matching subscription, like libzmq's counted filters.
func (s *socket) unsubscribe(topic []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, t := range s.subscriptions {
		if bytes.Equal(t, topic) {
			s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
			return
		}
	}
}

// matches applies prefix filtering to the first frame of a message.
func (s *socket) matches(first []byte) bool {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, t := range s.subscriptions {
		if bytes.HasPrefix(first, t) {
			return true
		}
	}
	return false
}

// Send buffers frames flagged more and publishes the message on the last one.
// Without a bound endpoint the message is silently dropped, as a PUB socket
// without peers would.
func (s *socket) Send(frame []byte, more bool) (int, error) {
	if err := s.Guard(); err != nil {
		return 0, err
	}
	if s.role != xsock.RolePublisher {
		return 0, fmt.Errorf("%w: send on %s", xsock.ErrWrongRole, s.role)
	}
	s.outgoing = append(s.outgoing, bytes.Clone(frame))
	if more {
		return len(frame), nil
	}
	msg := s.outgoing
	s.outgoing = nil
	s.backend.metrics.published.Add(1)
	if s.ep != nil {
		s.ep.deliver(s.backend.metrics, msg)
	}
	return len(frame), nil
}

// Receive returns the next frame of the current message or waits for a new
// message until the receive timeout. A negative timeout waits forever.
func (s *socket) Receive(maxSize int) ([]byte, error) {
	if err := s.Guard(); err != nil {
		return nil, err
	}
	if s.role != xsock.RoleSubscriber {
		return nil, fmt.Errorf("%w: receive on %s", xsock.ErrWrongRole, s.role)
	}
	if maxSize <= 0 {
		maxSize = xsock.DefaultMaxFrameSize
	}

	if len(s.pending) == 0 {
		msg, err := s.wait()
		if err != nil {
			return nil, err
		}
		s.pending = msg
	}

	frame := s.pending[0]
	s.pending = s.pending[1:]
	if len(frame) > maxSize {
		s.pending = nil
		return nil, fmt.Errorf("%w: %d > %d bytes", xsock.ErrFrameTooLarge, len(frame), maxSize)
	}
	return frame, nil
}

func (s *socket) wait() ([][]byte, error) {
	switch {
	case s.timeout < 0:
		select {
		case msg := <-s.queue:
			return msg, nil
		case <-s.done:
			return nil, xsock.ErrSocketClosed
		}
	case s.timeout == 0:
		select {
		case msg := <-s.queue:
			return msg, nil
		default:
			return nil, timeoutError()
		}
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case msg := <-s.queue:
		return msg, nil
	case <-s.done:
		return nil, xsock.ErrSocketClosed
	case <-timer.C:
		return nil, timeoutError()
	}
}

func (s *socket) More() (bool, error) {
	if err := s.Guard(); err != nil {
		return false, err
	}
	return len(s.pending) > 0, nil
}

// Close detaches the socket from its endpoint and wakes a blocked Receive.
func (s *socket) Close() error {
	return s.Release(func() error {
		close(s.done)
		if s.ep != nil {
			s.ep.release(s)
		}
		return nil
	})
}
