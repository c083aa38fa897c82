package xsock_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xsock"
	"github.com/trickstertwo/xsock/adapter/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []xsock.Event
}

func (r *recorder) OnEvent(e xsock.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(t xsock.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newNode(t *testing.T, framing string, obs ...xsock.Observer) *xsock.Node {
	t.Helper()
	node, closeNode, err := xsock.New(func(b *xsock.NodeBuilder) {
		b.WithBackendInstance(memory.New(memory.Defaults())).
			WithFraming(framing).
			WithReceiveTimeout(20 * time.Millisecond).
			WithRetry(xsock.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond}).
			WithObserver(obs...)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeNode() })
	return node
}

func TestPublishReceive_Scenario(t *testing.T) {
	for _, framing := range []string{xsock.FramingDelimited, xsock.FramingMultipart} {
		t.Run(framing, func(t *testing.T) {
			ctx := context.Background()
			node := newNode(t, framing)

			sub, err := node.NewSubscriber(ctx, "inproc://updates", "UPDATES")
			require.NoError(t, err)
			pub, err := node.NewPublisher("inproc://updates", "UPDATES")
			require.NoError(t, err)

			meta := &xsock.Metadata{Source: "publisher", Priority: 0, Tags: []string{"test", "zeromq", "msg-0"}}
			sent, err := pub.Publish(ctx, "Message 0", meta)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), sent.ID)

			d, err := sub.Receive(ctx)
			require.NoError(t, err)
			assert.Equal(t, "UPDATES", d.Topic)
			assert.Equal(t, sent, d.Message)
			assert.GreaterOrEqual(t, d.LatencyMicros, 0.0)

			m := node.GetMetrics()
			assert.Equal(t, uint64(1), m.Published)
			assert.Equal(t, uint64(1), m.Received)
			assert.Equal(t, 2, m.OpenSockets)
		})
	}
}

func TestPublisher_IDsIncrease(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, xsock.FramingDelimited)
	pub, err := node.NewPublisher("inproc://ids", "UPDATES")
	require.NoError(t, err)

	var last *big.Int
	for i := 0; i < 5; i++ {
		m, err := pub.PublishNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), m.ID)
		assert.Equal(t, fmt.Sprintf("Message %d", i), m.Content)
		assert.Equal(t, []string{"test", memory.BackendName, fmt.Sprintf("msg-%d", i)}, m.Metadata.Tags)

		ts, err := xsock.ParseTimestamp(m.Timestamp)
		require.NoError(t, err)
		if last != nil {
			assert.GreaterOrEqual(t, ts.Cmp(last), 0)
		}
		last = ts
	}
}

func TestSubscriber_OtherTopicNotDelivered(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, xsock.FramingDelimited)

	sub, err := node.NewSubscriber(ctx, "inproc://filter", "UPDATES")
	require.NoError(t, err)
	other, err := node.NewPublisher("inproc://filter", "OTHER")
	require.NoError(t, err)

	_, err = other.Publish(ctx, "nope", nil)
	require.NoError(t, err)

	_, err = sub.Receive(ctx)
	assert.ErrorIs(t, err, xsock.ErrTimeout)
	assert.Zero(t, node.GetMetrics().Received)
}

func TestSubscriber_LongerTopicWithSamePrefixFiltered(t *testing.T) {
	ctx := context.Background()
	node := newNode(t, xsock.FramingDelimited)

	sub, err := node.NewSubscriber(ctx, "inproc://prefix", "UPDATES")
	require.NoError(t, err)
	pub, err := node.NewPublisher("inproc://prefix", "UPDATES-EXTRA")
	require.NoError(t, err)

	_, err = pub.Publish(ctx, "close but no", nil)
	require.NoError(t, err)

	_, err = sub.Receive(ctx)
	assert.ErrorIs(t, err, xsock.ErrTopicFiltered)
	assert.Equal(t, uint64(1), node.GetMetrics().Filtered)
}

func TestSubscriber_RunSurvivesMalformedFrames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &recorder{}
	node := newNode(t, xsock.FramingDelimited, rec)

	sub, err := node.NewSubscriber(ctx, "inproc://malformed", "UPDATES")
	require.NoError(t, err)

	raw, err := node.Open(xsock.RolePublisher)
	require.NoError(t, err)
	require.NoError(t, raw.Bind("inproc://malformed"))

	// missing delimiter, then a bad payload, then a valid message
	_, err = raw.Send([]byte("UPDATES without delimiter"), false)
	require.NoError(t, err)
	_, err = raw.Send([]byte(`UPDATES|{"id":1,"timestamp":"soon"}`), false)
	require.NoError(t, err)
	payload, err := xsock.EncodeMessage(node.Codec(), &xsock.Message{
		ID:        2,
		Timestamp: node.Calibration().Timestamp(),
		Content:   "valid",
	})
	require.NoError(t, err)
	require.NoError(t, node.Framer().WriteMessage(raw, "UPDATES", payload))

	var got []*xsock.Delivery
	err = sub.Run(ctx, func(_ context.Context, d *xsock.Delivery) error {
		got = append(got, d)
		cancel()
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "valid", got[0].Message.Content)

	m := node.GetMetrics()
	assert.Equal(t, uint64(1), m.FramingErrors)
	assert.Equal(t, uint64(1), m.DecodeErrors)
	assert.Equal(t, 2, rec.count(xsock.Drop))
}

func TestSubscriber_HandlerPanicDoesNotStopRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	node := newNode(t, xsock.FramingMultipart)

	sub, err := node.NewSubscriber(ctx, "inproc://panic")
	require.NoError(t, err)
	pub, err := node.NewPublisher("inproc://panic", "ANY")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = pub.PublishNext(ctx)
		require.NoError(t, err)
	}

	calls := 0
	err = sub.Run(ctx, func(context.Context, *xsock.Delivery) error {
		calls++
		if calls == 1 {
			panic("first message")
		}
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(1), node.GetMetrics().HandlerErrors)
}

func TestPublisher_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	node := newNode(t, xsock.FramingDelimited)

	sub, err := node.NewSubscriber(ctx, "inproc://run", "UPDATES")
	require.NoError(t, err)
	pub, err := node.NewPublisher("inproc://run", "UPDATES", xsock.WithInterval(5*time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for i := 0; i < 3; {
		d, err := sub.Receive(ctx)
		if errors.Is(err, xsock.ErrTimeout) && time.Now().Before(deadline) {
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, uint64(i), d.Message.ID)
		i++
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
}

// flakyBackend wraps the memory back end with sockets whose first sends
// and connects fail.
type flakyBackend struct {
	xsock.Backend
	sendFailures    atomic.Int32
	connectFailures atomic.Int32
	onConnectFail   func()
}

func busy(op string) error {
	return &xsock.TransportError{Op: op, Code: 11, Message: "resource temporarily unavailable"}
}

func (b *flakyBackend) Open(role xsock.Role) (xsock.Socket, error) {
	s, err := b.Backend.Open(role)
	if err != nil {
		return nil, err
	}
	return &flakySocket{Socket: s, backend: b}, nil
}

type flakySocket struct {
	xsock.Socket
	backend *flakyBackend
}

func (s *flakySocket) Send(frame []byte, more bool) (int, error) {
	if s.backend.sendFailures.Add(-1) >= 0 {
		return 0, busy("send")
	}
	return s.Socket.Send(frame, more)
}

func (s *flakySocket) Connect(endpoint string) error {
	if s.backend.connectFailures.Add(-1) >= 0 {
		if s.backend.onConnectFail != nil {
			s.backend.onConnectFail()
		}
		return busy("connect")
	}
	return s.Socket.Connect(endpoint)
}

func newFlakyNode(t *testing.T, fb *flakyBackend) *xsock.Node {
	t.Helper()
	fb.Backend = memory.New(memory.Defaults())
	node, closeNode, err := xsock.New(func(b *xsock.NodeBuilder) {
		b.WithBackendInstance(fb).
			WithReceiveTimeout(20 * time.Millisecond).
			WithRetry(xsock.RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond})
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeNode() })
	return node
}

func TestPublisher_RunContinuesAfterSendFailures(t *testing.T) {
	fb := &flakyBackend{}
	fb.sendFailures.Store(2)
	node := newFlakyNode(t, fb)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := node.NewSubscriber(ctx, "inproc://flaky", "UPDATES")
	require.NoError(t, err)
	pub, err := node.NewPublisher("inproc://flaky", "UPDATES", xsock.WithInterval(time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	var first *xsock.Delivery
	for first == nil {
		d, err := sub.Receive(ctx)
		if errors.Is(err, xsock.ErrTimeout) && time.Now().Before(deadline) {
			continue
		}
		require.NoError(t, err)
		first = d
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}

	m := node.GetMetrics()
	assert.Equal(t, uint64(2), m.SendErrors)
	assert.Positive(t, m.Published)
	// failed sends still consume ids
	assert.Equal(t, uint64(2), first.Message.ID)
}

func TestNode_SubscriberConnectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fb := &flakyBackend{onConnectFail: cancel}
	fb.connectFailures.Store(100)
	node := newFlakyNode(t, fb)

	_, err := node.NewSubscriber(ctx, "inproc://never", "UPDATES")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	var te *xsock.TransportError
	assert.ErrorAs(t, err, &te)
	assert.Zero(t, node.GetMetrics().OpenSockets)
}

func TestNode_InvalidDelimitedTopic(t *testing.T) {
	node := newNode(t, xsock.FramingDelimited)
	_, err := node.NewPublisher("inproc://bad", "A|B")
	assert.ErrorIs(t, err, xsock.ErrInvalidTopic)

	_, err = node.NewSubscriber(context.Background(), "inproc://bad", "")
	assert.ErrorIs(t, err, xsock.ErrInvalidTopic)

	assert.Zero(t, node.GetMetrics().OpenSockets)
}

func TestNode_CloseReleasesSockets(t *testing.T) {
	rec := &recorder{}
	node, closeNode, err := xsock.New(func(b *xsock.NodeBuilder) {
		b.WithBackend(memory.BackendName, nil).WithObserver(rec)
	})
	require.NoError(t, err)

	pub, err := node.NewPublisher("inproc://close", "UPDATES")
	require.NoError(t, err)
	_, err = node.NewSubscriber(context.Background(), "inproc://close", "UPDATES")
	require.NoError(t, err)
	assert.Equal(t, 2, node.GetMetrics().OpenSockets)

	require.NoError(t, closeNode())
	require.NoError(t, closeNode())

	assert.Zero(t, node.GetMetrics().OpenSockets)
	assert.Equal(t, 2, rec.count(xsock.SocketClose))

	_, err = pub.Publish(context.Background(), "late", nil)
	assert.ErrorIs(t, err, xsock.ErrSocketClosed)
	assert.NoError(t, pub.Close())

	_, err = node.Open(xsock.RoleSubscriber)
	assert.ErrorIs(t, err, xsock.ErrNodeClosed)
	assert.Equal(t, "unhealthy", node.Health(context.Background()).Status)
}

func TestBuild_Errors(t *testing.T) {
	_, err := xsock.NewNodeBuilder().Build()
	assert.ErrorIs(t, err, xsock.ErrNoBackendConfigured)

	_, err = xsock.NewNodeBuilder().WithBackend("carrier-pigeon", nil).Build()
	var unknown xsock.ErrUnknownBackend
	assert.ErrorAs(t, err, &unknown)

	_, err = xsock.NewNodeBuilder().WithBackend(memory.BackendName, nil).WithCodec("xml").Build()
	assert.Error(t, err)
}

func TestNode_Health(t *testing.T) {
	node := newNode(t, xsock.FramingDelimited)
	h := node.Health(context.Background())
	assert.Equal(t, "healthy", h.Status)
}

func TestNode_ObserverPool(t *testing.T) {
	rec := &recorder{}
	node, closeNode, err := xsock.New(func(b *xsock.NodeBuilder) {
		b.WithBackend(memory.BackendName, map[string]any{"buffer_size": 8}).
			WithObserverPool(2, 64).
			WithObserver(rec)
	})
	require.NoError(t, err)

	pub, err := node.NewPublisher("inproc://pool", "UPDATES")
	require.NoError(t, err)
	_, err = pub.PublishNext(context.Background())
	require.NoError(t, err)

	require.NoError(t, closeNode())
	assert.Equal(t, 1, rec.count(xsock.Publish))
	assert.Equal(t, 1, rec.count(xsock.SocketOpen))
}
