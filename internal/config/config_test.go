package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xsock"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "zmq", cfg.Backend)
	assert.Equal(t, xsock.FramingDelimited, cfg.Framing)
	assert.Equal(t, "tcp://*:5555", cfg.Publisher.Endpoint)
	assert.Equal(t, "tcp://localhost:5555", cfg.Subscriber.Endpoint)
	assert.Equal(t, "UPDATES", cfg.Publisher.Topic)
	assert.Equal(t, []string{"UPDATES"}, cfg.Subscriber.Topics)
	assert.Equal(t, time.Second, cfg.Publisher.Interval)
	assert.Equal(t, xsock.DefaultRetryPolicy(), cfg.RetryPolicy())
	assert.Empty(t, cfg.Metrics.Addr)
	assert.NotNil(t, cfg.BackendOptions())
	assert.Equal(t, ObserversConfig{PoolWorkers: 1, PoolBuffer: 1024}, cfg.Observers)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeFile(t, "xsock.yaml", `
backend: memory
framing: multipart
publisher:
  endpoint: inproc://bench
  topic: PRICES
  interval: 250ms
subscriber:
  endpoint: inproc://bench
  topics: [PRICES, TRADES]
options:
  buffer_size: 64
metrics:
  addr: ":9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, xsock.FramingMultipart, cfg.Framing)
	assert.Equal(t, 250*time.Millisecond, cfg.Publisher.Interval)
	assert.Equal(t, []string{"PRICES", "TRADES"}, cfg.Subscriber.Topics)
	assert.Equal(t, 64, cfg.BackendOptions()["buffer_size"])
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("XSOCK_BACKEND", "nanomsg")
	t.Setenv("XSOCK_PUBLISHER_TOPIC", "ALERTS")
	t.Setenv("XSOCK_RECEIVE_TIMEOUT", "1s")
	t.Setenv("XSOCK_OBSERVERS_POOL_WORKERS", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "nanomsg", cfg.Backend)
	assert.Equal(t, "ALERTS", cfg.Publisher.Topic)
	assert.Equal(t, time.Second, cfg.ReceiveTimeout)
	assert.Zero(t, cfg.Observers.PoolWorkers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Framing = "xml"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Publisher.Topic = "A|B"
	assert.ErrorIs(t, bad.Validate(), xsock.ErrInvalidTopic)

	bad = *cfg
	bad.Framing = xsock.FramingMultipart
	bad.Publisher.Topic = "A|B"
	assert.NoError(t, bad.Validate())

	bad = *cfg
	bad.Publisher.Interval = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Observers.PoolBuffer = -1
	assert.Error(t, bad.Validate())
}
