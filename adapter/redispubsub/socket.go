package redispubsub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xsock"
)

// minWait stands in for a zero receive timeout; go-redis treats 0 as "no deadline".
const minWait = time.Millisecond

type socket struct {
	xsock.Lifecycle
	client *redis.Client
	role   xsock.Role
	ctx    context.Context
	cancel context.CancelFunc

	// publisher
	channel  string
	outgoing [][]byte

	// subscriber
	ps      *redis.PubSub
	pending [][]byte
	timeout time.Duration

	subMu         sync.RWMutex
	subscriptions [][]byte
}

var _ xsock.Socket = (*socket)(nil)

func (s *socket) Role() xsock.Role { return s.role }

// Bind records the channel to publish on; Redis needs no listener.
func (s *socket) Bind(endpoint string) error {
	if endpoint == "" {
		return xsock.ErrInvalidEndpoint
	}
	if s.role != xsock.RolePublisher {
		return fmt.Errorf("%w: bind on %s", xsock.ErrWrongRole, s.role)
	}
	return s.Attach(func() error {
		s.channel = endpoint
		return nil
	})
}

// Connect subscribes to the channel and waits for the server confirmation.
func (s *socket) Connect(endpoint string) error {
	if endpoint == "" {
		return xsock.ErrInvalidEndpoint
	}
	if s.role != xsock.RoleSubscriber {
		return fmt.Errorf("%w: connect on %s", xsock.ErrWrongRole, s.role)
	}
	return s.Attach(func() error {
		ps := s.client.Subscribe(s.ctx, endpoint)
		if _, err := ps.Receive(s.ctx); err != nil {
			_ = ps.Close()
			return transportError("redis subscribe", err)
		}
		s.ps = ps
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
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if opt == xsock.OptSubscribe {
			s.subscriptions = append(s.subscriptions, bytes.Clone(topic))
			return nil
		}
		for i, t := range s.subscriptions {
			if bytes.Equal(t, topic) {
				s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
				break
			}
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

// Send buffers frames flagged more and PUBLISHes the packed message on the
// last one. Nothing is published before Bind.
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
	msg := packFrames(s.outgoing)
	s.outgoing = nil
	if s.channel == "" {
		return len(frame), nil
	}
	if err := s.client.Publish(s.ctx, s.channel, msg).Err(); err != nil {
		return 0, transportError("redis publish", err)
	}
	return len(frame), nil
}

// Receive returns the next frame of the current message, or waits for the
// next message on the channel that matches a subscription.
func (s *socket) Receive(maxSize int) ([]byte, error) {
	if err := s.Guard(); err != nil {
		return nil, err
	}
	if s.role != xsock.RoleSubscriber {
		return nil, fmt.Errorf("%w: receive on %s", xsock.ErrWrongRole, s.role)
	}
	if s.ps == nil {
		return nil, timeoutError()
	}
	if maxSize <= 0 {
		maxSize = xsock.DefaultMaxFrameSize
	}

	if len(s.pending) == 0 {
		frames, err := s.next()
		if err != nil {
			return nil, err
		}
		s.pending = frames
	}

	frame := s.pending[0]
	s.pending = s.pending[1:]
	if len(frame) > maxSize {
		s.pending = nil
		return nil, fmt.Errorf("%w: %d > %d bytes", xsock.ErrFrameTooLarge, len(frame), maxSize)
	}
	return frame, nil
}

func (s *socket) next() ([][]byte, error) {
	var deadline time.Time
	if s.timeout >= 0 {
		deadline = time.Now().Add(max(s.timeout, minWait))
	}
	for {
		var (
			raw any
			err error
		)
		if deadline.IsZero() {
			raw, err = s.ps.Receive(s.ctx)
		} else {
			wait := time.Until(deadline)
			if wait <= 0 {
				return nil, timeoutError()
			}
			raw, err = s.ps.ReceiveTimeout(s.ctx, wait)
		}
		if err != nil {
			if s.Closed() || errors.Is(err, context.Canceled) {
				return nil, xsock.ErrSocketClosed
			}
			return nil, transportError("redis receive", err)
		}

		msg, ok := raw.(*redis.Message)
		if !ok {
			// subscription confirmations and pongs
			continue
		}
		frames, err := unpackFrames([]byte(msg.Payload))
		if err != nil {
			return nil, err
		}
		if s.matches(frames[0]) {
			return frames, nil
		}
	}
}

func (s *socket) More() (bool, error) {
	if err := s.Guard(); err != nil {
		return false, err
	}
	return len(s.pending) > 0, nil
}

// Close unsubscribes and wakes a blocked Receive.
func (s *socket) Close() error {
	return s.Release(func() error {
		s.cancel()
		if s.ps != nil {
			return s.ps.Close()
		}
		return nil
	})
}

func transportError(op string, err error) error {
	return &xsock.TransportError{Op: op, Message: err.Error(), Timeout: isTimeout(err)}
}

func timeoutError() error {
	return &xsock.TransportError{Op: "redis receive", Message: "no message before timeout", Timeout: true}
}
