package zmq

import (
	"syscall"
	"unsafe"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xsock"
	"github.com/trickstertwo/xsock/internal/native"
)

// EnvLibrary names the environment variable holding an explicit libzmq path.
const EnvLibrary = "XSOCK_ZMQ_LIBRARY"

var librarySpec = native.Spec{
	Name:   "zmq",
	EnvVar: EnvLibrary,
	Platform: map[string][]string{
		"linux":   {"libzmq.so.5"},
		"freebsd": {"libzmq.so.5"},
		"netbsd":  {"libzmq.so.5"},
		"darwin":  {"libzmq.5.dylib", "/opt/homebrew/lib/libzmq.5.dylib", "/usr/local/lib/libzmq.5.dylib"},
		"windows": {"libzmq.dll", "libzmq-v143-mt-4_3_5.dll"},
	},
	Generic: []string{"libzmq.so", "libzmq"},
}

var libraries native.Cache

// api is the minimal set of libzmq entry points. Handles are opaque C pointers.
// Every int-returning call uses -1 for failure; pointer-returning calls use 0.
type api struct {
	ctxNew     func() uintptr
	ctxTerm    func(ctx uintptr) int32
	socket     func(ctx uintptr, typ int32) uintptr
	close      func(s uintptr) int32
	bind       func(s uintptr, endpoint string) int32
	connect    func(s uintptr, endpoint string) int32
	setsockopt func(s uintptr, opt int32, val unsafe.Pointer, size uintptr) int32
	getsockopt func(s uintptr, opt int32, val unsafe.Pointer, size *uintptr) int32
	send       func(s uintptr, buf unsafe.Pointer, n uintptr, flags int32) int32
	recv       func(s uintptr, buf unsafe.Pointer, n uintptr, flags int32) int32
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
		"zmq_ctx_new":    &a.ctxNew,
		"zmq_ctx_term":   &a.ctxTerm,
		"zmq_socket":     &a.socket,
		"zmq_close":      &a.close,
		"zmq_bind":       &a.bind,
		"zmq_connect":    &a.connect,
		"zmq_setsockopt": &a.setsockopt,
		"zmq_getsockopt": &a.getsockopt,
		"zmq_send":       &a.send,
		"zmq_recv":       &a.recv,
		"zmq_errno":      &a.errno,
		"zmq_strerror":   &a.strerror,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// fail converts the current zmq_errno into a TransportError for op.
func (a *api) fail(op string) error {
	code := a.errno()
	return &xsock.TransportError{
		Op:      op,
		Code:    int(code),
		Message: a.strerror(code),
		Timeout: syscall.Errno(code) == syscall.EAGAIN,
	}
}

func (a *api) setInt(s uintptr, opt int32, v int32) error {
	if a.setsockopt(s, opt, unsafe.Pointer(&v), unsafe.Sizeof(v)) != 0 {
		return a.fail("zmq_setsockopt")
	}
	return nil
}

func (a *api) setBytes(s uintptr, opt int32, v []byte) error {
	if a.setsockopt(s, opt, bufPtr(v), uintptr(len(v))) != 0 {
		return a.fail("zmq_setsockopt")
	}
	return nil
}

func (a *api) getInt(s uintptr, opt int32) (int32, error) {
	var v int32
	size := unsafe.Sizeof(v)
	if a.getsockopt(s, opt, unsafe.Pointer(&v), &size) != 0 {
		return 0, a.fail("zmq_getsockopt")
	}
	return v, nil
}

func bufPtr(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
