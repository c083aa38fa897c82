package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xsock"
)

func TestObserver_Counts(t *testing.T) {
	o := New(Config{})

	o.OnEvent(xsock.Event{Type: xsock.SocketOpen, Backend: "memory", Role: xsock.RoleSubscriber})
	o.OnEvent(xsock.Event{Type: xsock.Receive, Backend: "memory", Role: xsock.RoleSubscriber, Topic: "UPDATES", Bytes: 10, LatencyMicros: 500})
	o.OnEvent(xsock.Event{Type: xsock.Receive, Backend: "memory", Role: xsock.RoleSubscriber, Topic: "UPDATES", Bytes: 5, LatencyMicros: -1})
	o.OnEvent(xsock.Event{Type: xsock.Publish, Backend: "memory", Role: xsock.RolePublisher, Bytes: 7, Duration: time.Millisecond})
	o.OnEvent(xsock.Event{Type: xsock.Drop, Backend: "memory", Role: xsock.RoleSubscriber})
	o.OnEvent(xsock.Event{Type: xsock.Error, Backend: "memory", Role: xsock.RolePublisher, Err: errors.New("boom")})

	assert.Equal(t, 2.0, testutil.ToFloat64(o.events.WithLabelValues("memory", string(xsock.Receive))))
	assert.Equal(t, 15.0, testutil.ToFloat64(o.bytes.WithLabelValues("memory", "subscriber")))
	assert.Equal(t, 7.0, testutil.ToFloat64(o.bytes.WithLabelValues("memory", "publisher")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.drops.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.errors.WithLabelValues("memory", "publisher")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.openSockets.WithLabelValues("memory", "subscriber")))

	o.OnEvent(xsock.Event{Type: xsock.SocketClose, Backend: "memory", Role: xsock.RoleSubscriber})
	assert.Equal(t, 0.0, testutil.ToFloat64(o.openSockets.WithLabelValues("memory", "subscriber")))

	// only the non-negative latency sample is observed
	mfs, err := o.Registry().Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range mfs {
		if mf.GetName() == "xsock_delivery_latency_microseconds" {
			for _, m := range mf.GetMetric() {
				samples += m.GetHistogram().GetSampleCount()
			}
		}
	}
	assert.Equal(t, uint64(1), samples)
}

func TestObserver_Handler(t *testing.T) {
	o := New(Config{Namespace: "test"})
	o.OnEvent(xsock.Event{Type: xsock.Publish, Backend: "zmq", Role: xsock.RolePublisher, Bytes: 3})

	rec := httptest.NewRecorder()
	o.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `test_events_total{backend="zmq",type="publish"} 1`))
}
