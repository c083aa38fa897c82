package nanomsg

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/trickstertwo/xsock"
)

type socket struct {
	xsock.Lifecycle
	api  *api
	fd   int32
	role xsock.Role
}

var _ xsock.Socket = (*socket)(nil)

func (s *socket) Role() xsock.Role { return s.role }

// Bind and Connect return an endpoint id on success, -1 on failure.
func (s *socket) Bind(endpoint string) error {
	if endpoint == "" {
		return xsock.ErrInvalidEndpoint
	}
	return s.Attach(func() error {
		if s.api.bind(s.fd, endpoint) < 0 {
			return s.api.fail("nn_bind")
		}
		return nil
	})
}

func (s *socket) Connect(endpoint string) error {
	if endpoint == "" {
		return xsock.ErrInvalidEndpoint
	}
	return s.Attach(func() error {
		if s.api.connect(s.fd, endpoint) < 0 {
			return s.api.fail("nn_connect")
		}
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
		code := int32(nnSubSubscribe)
		if opt == xsock.OptUnsubscribe {
			code = nnSubUnsubscribe
		}
		return s.api.setBytes(s.fd, nnSub, code, topic)
	case xsock.OptReceiveTimeout:
		ms, err := millis(value)
		if err != nil {
			return err
		}
		return s.api.setInt(s.fd, nnSolSocket, nnRcvTimeo, ms)
	case xsock.OptLinger:
		ms, err := millis(value)
		if err != nil {
			return err
		}
		return s.api.setInt(s.fd, nnSolSocket, nnLinger, ms)
	}
	return fmt.Errorf("%w: %s", xsock.ErrInvalidOption, opt)
}

func (s *socket) Send(frame []byte, more bool) (int, error) {
	if err := s.Guard(); err != nil {
		return 0, err
	}
	if more {
		return 0, xsock.ErrMultipartUnsupported
	}
	if s.role != xsock.RolePublisher {
		return 0, fmt.Errorf("%w: send on %s", xsock.ErrWrongRole, s.role)
	}
	rc := s.api.send(s.fd, bufPtr(frame), uintptr(len(frame)), 0)
	if rc < 0 {
		return 0, s.api.fail("nn_send")
	}
	return int(rc), nil
}

// Receive reads one message into a buffer one byte larger than maxSize;
// nn_recv reports the full message length even when it truncates.
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
	buf := make([]byte, maxSize+1)
	rc := s.api.recv(s.fd, unsafe.Pointer(&buf[0]), uintptr(len(buf)), 0)
	if rc < 0 {
		return nil, s.api.fail("nn_recv")
	}
	n := int(rc)
	if n > maxSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", xsock.ErrFrameTooLarge, n, maxSize)
	}
	return buf[:n], nil
}

// More always reports false: every nanomsg message is a single frame.
func (s *socket) More() (bool, error) {
	if err := s.Guard(); err != nil {
		return false, err
	}
	return false, nil
}

func (s *socket) Close() error {
	return s.Release(func() error {
		if s.api.close(s.fd) != 0 {
			return s.api.fail("nn_close")
		}
		return nil
	})
}

func millis(value any) (int32, error) {
	d, ok := value.(time.Duration)
	if !ok {
		return 0, fmt.Errorf("%w: want time.Duration, got %T", xsock.ErrInvalidOption, value)
	}
	switch {
	case d < 0:
		return -1, nil
	case d > maxMillis:
		return 0, fmt.Errorf("%w: %v exceeds %v", xsock.ErrInvalidOption, d, maxMillis)
	}
	return int32(d / time.Millisecond), nil
}
