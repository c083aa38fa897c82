package memory

import (
	"fmt"

	"github.com/trickstertwo/xsock"
)

// Use builds a Node on the in-memory back end. Publishers and subscribers
// must be opened from the same Node to see each other.
//
// Example:
//
//	node, err := memory.Use(memory.Config{BufferSize: 4096}, func(b *xsock.NodeBuilder) {
//	    b.WithLogger(logger).WithFraming(xsock.FramingMultipart)
//	})
func Use(cfg Config, init func(b *xsock.NodeBuilder)) (*xsock.Node, error) {
	nb := xsock.NewNodeBuilder().
		WithBackend(BackendName, cfg.toMap())
	if init != nil {
		init(nb)
	}
	n, err := nb.Build()
	if err != nil {
		return nil, fmt.Errorf("memory.Use: %w", err)
	}
	return n, nil
}
