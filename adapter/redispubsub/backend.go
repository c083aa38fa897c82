package redispubsub

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xsock"
)

// Backend shares one Redis client between all of its sockets.
type Backend struct {
	cfg    Config
	client *redis.Client

	mu         sync.Mutex
	terminated bool
}

var _ xsock.Backend = (*Backend)(nil)

// New connects to Redis and verifies the connection with PING.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 1,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}

	client := redis.NewClient(opts)
	if err := ping(client, cfg.DialTimeout); err != nil {
		_ = client.Close()
		return nil, &xsock.TransportError{Op: "redis ping", Message: err.Error(), Timeout: isTimeout(err)}
	}
	return &Backend{cfg: cfg, client: client}, nil
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) Capabilities() xsock.Capabilities {
	return xsock.Capabilities{Context: true, Multipart: true}
}

func (b *Backend) Open(role xsock.Role) (xsock.Socket, error) {
	if !role.Valid() {
		return nil, xsock.ErrInvalidRole
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminated {
		return nil, xsock.ErrBackendTerminated
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &socket{
		client:  b.client,
		role:    role,
		ctx:     ctx,
		cancel:  cancel,
		timeout: -1,
	}, nil
}

// Terminate closes the Redis client. Calling it again is a no-op.
func (b *Backend) Terminate() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminated {
		return nil
	}
	b.terminated = true
	return b.client.Close()
}

func ping(c *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}

	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}

	return nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
