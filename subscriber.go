package xsock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Subscriber receives messages on a connected subscriber socket.
// It is driven by a single goroutine.
type Subscriber struct {
	node     *Node
	sock     Socket
	endpoint string
	topics   map[string]struct{}
}

// NewSubscriber opens a subscriber socket, registers topic interest and then
// connects to endpoint through the node's retry policy. An empty topic list
// subscribes to everything.
func (n *Node) NewSubscriber(ctx context.Context, endpoint string, topics ...string) (*Subscriber, error) {
	if endpoint == "" {
		return nil, ErrInvalidEndpoint
	}
	s := &Subscriber{
		node:     n,
		endpoint: endpoint,
		topics:   make(map[string]struct{}, len(topics)),
	}
	for _, t := range topics {
		if n.framer.Name() == FramingDelimited {
			if err := ValidateDelimitedTopic(t); err != nil {
				return nil, err
			}
		}
		s.topics[t] = struct{}{}
	}

	sock, err := n.Open(RoleSubscriber)
	if err != nil {
		return nil, err
	}
	if err := s.setup(ctx, sock, topics); err != nil {
		_ = sock.Close()
		return nil, err
	}
	s.sock = sock

	n.logger.Info().
		Str("backend", n.backend.Name()).
		Str("endpoint", endpoint).
		Str("framing", n.framer.Name()).
		Msg("xsock: subscriber connected")
	return s, nil
}

func (s *Subscriber) setup(ctx context.Context, sock Socket, topics []string) error {
	if s.node.receiveTimeout != 0 {
		if err := sock.SetOption(OptReceiveTimeout, s.node.receiveTimeout); err != nil {
			return err
		}
	}
	if len(topics) == 0 {
		if err := sock.SetOption(OptSubscribe, []byte{}); err != nil {
			return err
		}
	}
	for _, t := range topics {
		if err := sock.SetOption(OptSubscribe, []byte(t)); err != nil {
			return fmt.Errorf("xsock: subscribe %q: %w", t, err)
		}
	}

	err := s.node.retry.Do(ctx, func(attempt int) error {
		err := sock.Connect(s.endpoint)
		if err != nil {
			s.node.logger.Warn().
				Err(err).
				Str("endpoint", s.endpoint).
				Str("attempt", strconv.Itoa(attempt)).
				Msg("xsock: connect failed, retrying")
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("xsock: connect %s: %w", s.endpoint, err)
	}
	return nil
}

// Socket exposes the underlying socket.
func (s *Subscriber) Socket() Socket { return s.sock }

// accepts reports whether topic was subscribed to exactly. The transport
// filters by prefix; this rejects longer topics sharing a prefix.
func (s *Subscriber) accepts(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Receive reads, splits, filters and decodes one message and computes its latency.
// Framing, filter and decode failures are counted and returned; the socket stays usable.
func (s *Subscriber) Receive(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := s.node
	topic, payload, err := n.framer.ReadMessage(s.sock, n.maxFrameSize)
	receivedNs := n.calibration.NowNs()
	if err != nil {
		var fe *FramingError
		if errors.As(err, &fe) {
			n.metrics.framingErrors.Add(1)
			n.notify(Event{Type: Drop, Backend: n.backend.Name(), Role: RoleSubscriber, Err: err})
		}
		return nil, err
	}

	if !s.accepts(topic) {
		n.metrics.filtered.Add(1)
		err := fmt.Errorf("%w: %q", ErrTopicFiltered, topic)
		n.notify(Event{Type: Drop, Backend: n.backend.Name(), Role: RoleSubscriber, Topic: topic, Err: err})
		return nil, err
	}

	msg, err := DecodeMessage(n.codec, payload)
	if err != nil {
		n.metrics.decodeErrors.Add(1)
		n.notify(Event{Type: Drop, Backend: n.backend.Name(), Role: RoleSubscriber, Topic: topic, Err: err})
		return nil, err
	}

	latency, err := LatencyFromTimestamp(msg.Timestamp, receivedNs)
	if err != nil {
		n.metrics.decodeErrors.Add(1)
		return nil, err
	}

	n.metrics.received.Add(1)
	n.recordLatency(latency)
	n.notify(Event{
		Type:          Receive,
		Backend:       n.backend.Name(),
		Role:          RoleSubscriber,
		Topic:         topic,
		MessageID:     msg.ID,
		Bytes:         len(payload),
		LatencyMicros: latency,
	})

	return &Delivery{
		Topic:         topic,
		Message:       msg,
		ReceivedNs:    receivedNs,
		LatencyMicros: latency,
	}, nil
}

// Run receives until ctx ends or the socket is closed. A bad message is logged
// and skipped; it never stops the loop. Handler errors are logged.
func (s *Subscriber) Run(ctx context.Context, handler Handler) error {
	n := s.node
	h := Chain(RecoveryMiddleware()(handler), n.middlewares...)

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		d, err := s.Receive(ctx)
		if err != nil {
			var fe *FramingError
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, ErrTimeout):
				continue
			case errors.Is(err, ErrSocketClosed), errors.Is(err, ErrBackendTerminated):
				return err
			case errors.As(err, &fe), errors.Is(err, ErrTopicFiltered),
				errors.Is(err, ErrDecode), errors.Is(err, ErrInvalidTimestamp),
				errors.Is(err, ErrFrameTooLarge):
				n.logger.Warn().Err(err).Msg("xsock: message discarded")
				continue
			}

			// transport error: log, back off if it keeps happening
			failures++
			n.logger.Warn().Err(err).Msg("xsock: receive failed")
			if failures > 1 {
				if sleep(ctx, n.retry.Delay(failures-1)) != nil {
					return nil
				}
			}
			continue
		}
		failures = 0

		if err := h(ctx, d); err != nil {
			n.metrics.handlerErrors.Add(1)
			n.logger.Warn().
				Err(err).
				Str("topic", d.Topic).
				Str("id", formatID(d.Message.ID)).
				Msg("xsock: handler failed")
		}
	}
}

// ReceiveTimeout returns the per-receive timeout configured on the node.
func (s *Subscriber) ReceiveTimeout() time.Duration { return s.node.receiveTimeout }

// Close releases the subscriber socket. Calling it again is a no-op.
func (s *Subscriber) Close() error {
	if s.sock == nil {
		return nil
	}
	return s.sock.Close()
}
