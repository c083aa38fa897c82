package nanomsg

import (
	"syscall"
	"unsafe"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xsock"
	"github.com/trickstertwo/xsock/internal/native"
)

// EnvLibrary names the environment variable holding an explicit libnanomsg path.
const EnvLibrary = "XSOCK_NANOMSG_LIBRARY"

var librarySpec = native.Spec{
	Name:   "nanomsg",
	EnvVar: EnvLibrary,
	Platform: map[string][]string{
		"linux":   {"libnanomsg.so.5"},
		"freebsd": {"libnanomsg.so.5"},
		"netbsd":  {"libnanomsg.so.5"},
		"darwin":  {"libnanomsg.5.dylib", "/opt/homebrew/lib/libnanomsg.dylib", "/usr/local/lib/libnanomsg.dylib"},
		"windows": {"nanomsg.dll"},
	},
	Generic: []string{"libnanomsg.so", "libnanomsg"},
}

var libraries native.Cache

var empty byte

// api is the subset of nanomsg used here. Sockets are small integers; 0 is a
// valid socket and -1 signals failure.
type api struct {
	socket     func(domain, protocol int32) int32
	close      func(s int32) int32
	bind       func(s int32, addr string) int32
	connect    func(s int32, addr string) int32
	setsockopt func(s, level, option int32, val unsafe.Pointer, size uintptr) int32
	send       func(s int32, buf unsafe.Pointer, n uintptr, flags int32) int32
	recv       func(s int32, buf unsafe.Pointer, n uintptr, flags int32) int32
	errno      func() int32
	strerror   func(code int32) string
}

func loadAPI(cfg Config, logger *xlog.Logger) (*api, error) {
	lib, err := libraries.Load(librarySpec, native.WithPath(cfg.LibraryPath), native.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	a := &api{}
	err = lib.Symbols(map[string]any{
		"nn_socket":     &a.socket,
		"nn_close":      &a.close,
		"nn_bind":       &a.bind,
		"nn_connect":    &a.connect,
		"nn_setsockopt": &a.setsockopt,
		"nn_send":       &a.send,
		"nn_recv":       &a.recv,
		"nn_errno":      &a.errno,
		"nn_strerror":   &a.strerror,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// fail converts the current nn_errno into a TransportError for op.
// A blocking receive that hits NN_RCVTIMEO reports ETIMEDOUT; a non-blocking
// one reports EAGAIN.
func (a *api) fail(op string) error {
	code := a.errno()
	errno := syscall.Errno(code)
	return &xsock.TransportError{
		Op:      op,
		Code:    int(code),
		Message: a.strerror(code),
		Timeout: errno == syscall.ETIMEDOUT || errno == syscall.EAGAIN,
	}
}

func (a *api) setInt(s, level, opt, v int32) error {
	if a.setsockopt(s, level, opt, unsafe.Pointer(&v), unsafe.Sizeof(v)) != 0 {
		return a.fail("nn_setsockopt")
	}
	return nil
}

func (a *api) setBytes(s, level, opt int32, v []byte) error {
	ptr := bufPtr(v)
	if ptr == nil {
		// subscribe-all is a zero-length value, but nanomsg wants a real pointer
		ptr = unsafe.Pointer(&empty)
	}
	if a.setsockopt(s, level, opt, ptr, uintptr(len(v))) != 0 {
		return a.fail("nn_setsockopt")
	}
	return nil
}

func bufPtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
