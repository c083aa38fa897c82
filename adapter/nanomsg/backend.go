package nanomsg

import (
	"sync"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xsock"
)

// Backend opens nanomsg sockets. It holds no native context.
type Backend struct {
	api *api
	cfg Config

	mu         sync.Mutex
	terminated bool
}

var _ xsock.Backend = (*Backend)(nil)

// New loads libnanomsg (once per process).
// A *xsock.LibraryLoadError means the library could not be found and is fatal.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := loadAPI(cfg, xlog.Default())
	if err != nil {
		return nil, err
	}
	return &Backend{api: a, cfg: cfg}, nil
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) Capabilities() xsock.Capabilities {
	return xsock.Capabilities{}
}

// Open creates an NN_PUB or NN_SUB socket in the AF_SP domain.
func (b *Backend) Open(role xsock.Role) (xsock.Socket, error) {
	var proto int32
	switch role {
	case xsock.RolePublisher:
		proto = nnPub
	case xsock.RoleSubscriber:
		proto = nnSub
	default:
		return nil, xsock.ErrInvalidRole
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminated {
		return nil, xsock.ErrBackendTerminated
	}
	fd := b.api.socket(afSP, proto)
	if fd < 0 {
		return nil, b.api.fail("nn_socket")
	}
	s := &socket{api: b.api, fd: fd, role: role}
	if err := s.SetOption(xsock.OptLinger, b.cfg.Linger); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Terminate refuses further Open calls. nn_term is process-wide and is not
// called, so other users of the library in the process are unaffected.
func (b *Backend) Terminate() error {
	b.mu.Lock()
	b.terminated = true
	b.mu.Unlock()
	return nil
}
