package zmq

import (
	"sync"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xsock"
)

// Backend owns one libzmq context.
type Backend struct {
	api *api
	cfg Config

	mu         sync.Mutex
	ctx        uintptr
	terminated bool
}

var _ xsock.Backend = (*Backend)(nil)

// New loads libzmq (once per process) and creates a context.
// A *xsock.LibraryLoadError means the library could not be found and is fatal.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := loadAPI(cfg, xlog.Default())
	if err != nil {
		return nil, err
	}
	return newBackend(a, cfg)
}

func newBackend(a *api, cfg Config) (*Backend, error) {
	ctx := a.ctxNew()
	if ctx == 0 {
		return nil, a.fail("zmq_ctx_new")
	}
	return &Backend{api: a, cfg: cfg, ctx: ctx}, nil
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) Capabilities() xsock.Capabilities {
	return xsock.Capabilities{Context: true, Multipart: true}
}

// Open creates a ZMQ_PUB or ZMQ_SUB socket in the context.
func (b *Backend) Open(role xsock.Role) (xsock.Socket, error) {
	var typ int32
	switch role {
	case xsock.RolePublisher:
		typ = zmqPub
	case xsock.RoleSubscriber:
		typ = zmqSub
	default:
		return nil, xsock.ErrInvalidRole
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminated {
		return nil, xsock.ErrBackendTerminated
	}
	h := b.api.socket(b.ctx, typ)
	if h == 0 {
		return nil, b.api.fail("zmq_socket")
	}
	s := &socket{api: b.api, handle: h, role: role}
	if err := s.SetOption(xsock.OptLinger, b.cfg.Linger); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Terminate destroys the context. It blocks inside libzmq while sockets of the
// context remain open, so close them first.
func (b *Backend) Terminate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminated {
		return nil
	}
	b.terminated = true
	ctx := b.ctx
	b.ctx = 0
	if b.api.ctxTerm(ctx) != 0 {
		return b.api.fail("zmq_ctx_term")
	}
	return nil
}
