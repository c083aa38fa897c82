package nanomsg

import (
	"fmt"

	"github.com/trickstertwo/xsock"
)

const BackendName = "nanomsg"

func init() {
	if err := xsock.RegisterBackend(BackendName, func(cfg map[string]any) (xsock.Backend, error) {
		return New(ConfigFromMap(cfg))
	}); err != nil {
		panic(fmt.Errorf("xsock: failed to register backend %q: %w", BackendName, err))
	}
}

// Use builds a Node on nanomsg. init may adjust the builder (logger,
// observers) before Build; selecting multipart framing fails.
func Use(cfg Config, init func(b *xsock.NodeBuilder)) (*xsock.Node, error) {
	nb := xsock.NewNodeBuilder().
		WithBackend(BackendName, cfg.toMap())
	if init != nil {
		init(nb)
	}
	n, err := nb.Build()
	if err != nil {
		return nil, fmt.Errorf("nanomsg.Use: %w", err)
	}
	return n, nil
}
