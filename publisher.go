package xsock

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultPublishInterval is the pause between messages in Publisher.Run.
const DefaultPublishInterval = time.Second

// MessageFactory produces the content and metadata for message id.
type MessageFactory func(id uint64) (content string, meta *Metadata)

// DefaultMessageFactory builds "Message N" with source/priority/tags metadata.
func DefaultMessageFactory(source, backend string) MessageFactory {
	return func(id uint64) (string, *Metadata) {
		return fmt.Sprintf("Message %d", id), &Metadata{
			Source:   source,
			Priority: int(id % 10),
			Tags:     []string{"test", backend, fmt.Sprintf("msg-%d", id)},
		}
	}
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithInterval sets the pause between messages in Run.
func WithInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMessageFactory replaces the default content generator.
func WithMessageFactory(f MessageFactory) PublisherOption {
	return func(p *Publisher) {
		if f != nil {
			p.factory = f
		}
	}
}

// Publisher sends timestamped messages on one topic from a bound socket.
// It is driven by a single goroutine.
type Publisher struct {
	node     *Node
	sock     Socket
	endpoint string
	topic    string
	interval time.Duration
	factory  MessageFactory
	seq      atomic.Uint64
}

// NewPublisher opens a publisher socket and binds it to endpoint.
func (n *Node) NewPublisher(endpoint, topic string, opts ...PublisherOption) (*Publisher, error) {
	if endpoint == "" {
		return nil, ErrInvalidEndpoint
	}
	if n.framer.Name() == FramingDelimited {
		if err := ValidateDelimitedTopic(topic); err != nil {
			return nil, err
		}
	}

	p := &Publisher{
		node:     n,
		endpoint: endpoint,
		topic:    topic,
		interval: DefaultPublishInterval,
		factory:  DefaultMessageFactory("publisher", n.backend.Name()),
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}

	sock, err := n.Open(RolePublisher)
	if err != nil {
		return nil, err
	}
	if err := sock.Bind(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("xsock: bind %s: %w", endpoint, err)
	}
	p.sock = sock

	n.logger.Info().
		Str("backend", n.backend.Name()).
		Str("endpoint", endpoint).
		Str("topic", topic).
		Str("framing", n.framer.Name()).
		Msg("xsock: publisher bound")
	return p, nil
}

// Topic returns the topic this publisher sends on.
func (p *Publisher) Topic() string { return p.topic }

// Socket exposes the underlying socket.
func (p *Publisher) Socket() Socket { return p.sock }

// Publish stamps, encodes and sends one message. Every call consumes an id.
func (p *Publisher) Publish(ctx context.Context, content string, meta *Metadata) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := &Message{
		ID:        p.seq.Add(1) - 1,
		Timestamp: p.node.calibration.Timestamp(),
		Content:   content,
		Metadata:  meta,
	}

	payload, err := EncodeMessage(p.node.codec, msg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = p.node.framer.WriteMessage(p.sock, p.topic, payload)
	dur := time.Since(start)
	if err != nil {
		p.node.metrics.sendErrors.Add(1)
		p.node.notify(Event{Type: Error, Backend: p.node.backend.Name(), Role: RolePublisher, Topic: p.topic, MessageID: msg.ID, Err: err})
		return nil, err
	}

	p.node.metrics.published.Add(1)
	p.node.notify(Event{
		Type:      Publish,
		Backend:   p.node.backend.Name(),
		Role:      RolePublisher,
		Topic:     p.topic,
		MessageID: msg.ID,
		Bytes:     len(payload),
		Duration:  dur,
	})
	return msg, nil
}

// PublishNext publishes the next message produced by the factory.
func (p *Publisher) PublishNext(ctx context.Context) (*Message, error) {
	content, meta := p.factory(p.seq.Load())
	return p.Publish(ctx, content, meta)
}

// Run publishes every interval until ctx ends. Send failures are logged and
// retried after the node's backoff; only a closed socket stops the loop.
func (p *Publisher) Run(ctx context.Context) error {
	failures := 0
	for {
		msg, err := p.PublishNext(ctx)
		wait := p.interval
		switch {
		case err == nil:
			failures = 0
			p.node.logger.Info().
				Str("topic", p.topic).
				Str("id", formatID(msg.ID)).
				Str("timestamp", msg.Timestamp).
				Msg("published")
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrSocketClosed), errors.Is(err, ErrBackendTerminated):
			return err
		default:
			failures++
			if d := p.node.retry.Delay(failures); d > 0 {
				wait = d
			}
			p.node.logger.Warn().
				Err(err).
				Str("topic", p.topic).
				Dur("backoff", wait).
				Msg("publish failed")
		}
		if sleep(ctx, wait) != nil {
			return nil
		}
	}
}

// Close releases the publisher socket. Calling it again is a no-op.
func (p *Publisher) Close() error {
	if p.sock == nil {
		return nil
	}
	return p.sock.Close()
}
