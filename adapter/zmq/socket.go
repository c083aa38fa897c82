package zmq

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/trickstertwo/xsock"
)

type socket struct {
	xsock.Lifecycle
	api    *api
	handle uintptr
	role   xsock.Role
}

var _ xsock.Socket = (*socket)(nil)

func (s *socket) Role() xsock.Role { return s.role }

func (s *socket) Bind(endpoint string) error {
	if endpoint == "" {
		return xsock.ErrInvalidEndpoint
	}
	return s.Attach(func() error {
		if s.api.bind(s.handle, endpoint) != 0 {
			return s.api.fail("zmq_bind")
		}
		return nil
	})
}

func (s *socket) Connect(endpoint string) error {
	if endpoint == "" {
		return xsock.ErrInvalidEndpoint
	}
	return s.Attach(func() error {
		if s.api.connect(s.handle, endpoint) != 0 {
			return s.api.fail("zmq_connect")
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
		code := int32(zmqSubscribe)
		if opt == xsock.OptUnsubscribe {
			code = zmqUnsubscribe
		}
		return s.api.setBytes(s.handle, code, topic)
	case xsock.OptReceiveTimeout:
		ms, err := millis(value)
		if err != nil {
			return err
		}
		return s.api.setInt(s.handle, zmqRcvTimeo, ms)
	case xsock.OptLinger:
		ms, err := millis(value)
		if err != nil {
			return err
		}
		return s.api.setInt(s.handle, zmqLinger, ms)
	}
	return fmt.Errorf("%w: %s", xsock.ErrInvalidOption, opt)
}

func (s *socket) Send(frame []byte, more bool) (int, error) {
	if err := s.Guard(); err != nil {
		return 0, err
	}
	if s.role != xsock.RolePublisher {
		return 0, fmt.Errorf("%w: send on %s", xsock.ErrWrongRole, s.role)
	}
	var flags int32
	if more {
		flags |= zmqSndMore
	}
	rc := s.api.send(s.handle, bufPtr(frame), uintptr(len(frame)), flags)
	if rc < 0 {
		return 0, s.api.fail("zmq_send")
	}
	return int(rc), nil
}

// Receive reads one frame into a buffer one byte larger than maxSize so that
// truncation by zmq_recv is detected. An oversized frame discards the rest of
// its message to keep message boundaries intact.
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
	rc := s.api.recv(s.handle, unsafe.Pointer(&buf[0]), uintptr(len(buf)), 0)
	if rc < 0 {
		return nil, s.api.fail("zmq_recv")
	}
	n := int(rc)
	if n > maxSize {
		s.discardRest(buf)
		return nil, fmt.Errorf("%w: %d > %d bytes", xsock.ErrFrameTooLarge, n, maxSize)
	}
	return buf[:n], nil
}

func (s *socket) discardRest(buf []byte) {
	for {
		more, err := s.api.getInt(s.handle, zmqRcvMore)
		if err != nil || more == 0 {
			return
		}
		if s.api.recv(s.handle, unsafe.Pointer(&buf[0]), uintptr(len(buf)), 0) < 0 {
			return
		}
	}
}

func (s *socket) More() (bool, error) {
	if err := s.Guard(); err != nil {
		return false, err
	}
	v, err := s.api.getInt(s.handle, zmqRcvMore)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (s *socket) Close() error {
	return s.Release(func() error {
		if s.api.close(s.handle) != 0 {
			return s.api.fail("zmq_close")
		}
		return nil
	})
}

// millis converts a duration option to whole milliseconds; negative means infinite.
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
