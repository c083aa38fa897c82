package zmq

import (
	"fmt"

	"github.com/trickstertwo/xsock"
)

const BackendName = "zmq"

func init() {
	if err := xsock.RegisterBackend(BackendName, func(cfg map[string]any) (xsock.Backend, error) {
		return New(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xsock: failed to register backend %q: %w", BackendName, err))
	}
}

// Use builds a Node on libzmq. init may adjust the builder (framing, logger,
// observers) before Build.
func Use(cfg Config, init func(b *xsock.NodeBuilder)) (*xsock.Node, error) {
	nb := xsock.NewNodeBuilder().
		WithBackend(BackendName, cfg.toMap())
	if init != nil {
		init(nb)
	}
	n, err := nb.Build()
	if err != nil {
		return nil, fmt.Errorf("zmq.Use: %w", err)
	}
	return n, nil
}
