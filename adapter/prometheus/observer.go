// Package prometheus exports xsock node events as Prometheus metrics.
//
// Example:
//
//	obs := prometheus.New(prometheus.Config{Namespace: "xsock"})
//	node, _ := xsock.New(func(b *xsock.NodeBuilder) {
//	    b.WithBackend("zmq", nil).WithObserver(obs)
//	})
//	http.Handle("/metrics", obs.Handler())
package prometheus

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trickstertwo/xsock"
)

// Config controls metric naming.
type Config struct {
	// Namespace prefixes every metric (default "xsock").
	Namespace string
	// LatencyBuckets are histogram buckets in microseconds.
	LatencyBuckets []float64
}

// Observer implements xsock.Observer on a private registry.
type Observer struct {
	registry *prom.Registry

	events      *prom.CounterVec
	bytes       *prom.CounterVec
	drops       *prom.CounterVec
	errors      *prom.CounterVec
	openSockets *prom.GaugeVec
	latency     *prom.HistogramVec
	sendSeconds *prom.HistogramVec
}

var _ xsock.Observer = (*Observer)(nil)

// New creates an Observer and registers its collectors.
func New(cfg Config) *Observer {
	ns := cfg.Namespace
	if ns == "" {
		ns = "xsock"
	}
	buckets := cfg.LatencyBuckets
	if len(buckets) == 0 {
		// 10us .. ~10s
		buckets = prom.ExponentialBuckets(10, 4, 11)
	}

	o := &Observer{
		registry: prom.NewRegistry(),
		events: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: ns,
				Name:      "events_total",
				Help:      "Node events by type",
			},
			[]string{"backend", "type"},
		),
		bytes: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: ns,
				Name:      "payload_bytes_total",
				Help:      "Payload bytes published or received",
			},
			[]string{"backend", "role"},
		),
		drops: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: ns,
				Name:      "dropped_messages_total",
				Help:      "Received messages discarded (framing, filter or decode failures)",
			},
			[]string{"backend"},
		),
		errors: prom.NewCounterVec(
			prom.CounterOpts{
				Namespace: ns,
				Name:      "errors_total",
				Help:      "Socket and send failures",
			},
			[]string{"backend", "role"},
		),
		openSockets: prom.NewGaugeVec(
			prom.GaugeOpts{
				Namespace: ns,
				Name:      "open_sockets",
				Help:      "Sockets currently open",
			},
			[]string{"backend", "role"},
		),
		latency: prom.NewHistogramVec(
			prom.HistogramOpts{
				Namespace: ns,
				Name:      "delivery_latency_microseconds",
				Help:      "Publish to receive latency in microseconds",
				Buckets:   buckets,
			},
			[]string{"backend", "topic"},
		),
		sendSeconds: prom.NewHistogramVec(
			prom.HistogramOpts{
				Namespace: ns,
				Name:      "send_duration_seconds",
				Help:      "Time spent writing one message to the socket",
				Buckets:   prom.DefBuckets,
			},
			[]string{"backend"},
		),
	}

	o.registry.MustRegister(o.events, o.bytes, o.drops, o.errors, o.openSockets, o.latency, o.sendSeconds)
	return o
}

// OnEvent updates the metrics for e.
func (o *Observer) OnEvent(e xsock.Event) {
	o.events.WithLabelValues(e.Backend, string(e.Type)).Inc()

	switch e.Type {
	case xsock.SocketOpen:
		o.openSockets.WithLabelValues(e.Backend, e.Role.String()).Inc()
	case xsock.SocketClose:
		o.openSockets.WithLabelValues(e.Backend, e.Role.String()).Dec()
	case xsock.Publish:
		o.bytes.WithLabelValues(e.Backend, e.Role.String()).Add(float64(e.Bytes))
		o.sendSeconds.WithLabelValues(e.Backend).Observe(e.Duration.Seconds())
	case xsock.Receive:
		o.bytes.WithLabelValues(e.Backend, e.Role.String()).Add(float64(e.Bytes))
		// negative latency comes from clock skew between hosts and is not observed
		if e.LatencyMicros >= 0 {
			o.latency.WithLabelValues(e.Backend, e.Topic).Observe(e.LatencyMicros)
		}
	case xsock.Drop:
		o.drops.WithLabelValues(e.Backend).Inc()
	case xsock.Error:
		o.errors.WithLabelValues(e.Backend, e.Role.String()).Inc()
	}
}

// Registry exposes the private registry.
func (o *Observer) Registry() *prom.Registry { return o.registry }

// Handler serves the metrics in the Prometheus text format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}
