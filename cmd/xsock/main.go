// Command xsock runs one side of a timestamped pub/sub pair.
//
//	xsock [-config file] pub    bind and publish a message every interval
//	xsock [-config file] sub    connect, receive and report latency
//
// Settings come from the optional config file and XSOCK_* environment
// variables (see internal/config).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"

	"github.com/trickstertwo/xsock"
	_ "github.com/trickstertwo/xsock/adapter/memory"
	_ "github.com/trickstertwo/xsock/adapter/nanomsg"
	"github.com/trickstertwo/xsock/adapter/prometheus"
	_ "github.com/trickstertwo/xsock/adapter/redispubsub"
	_ "github.com/trickstertwo/xsock/adapter/zmq"
	"github.com/trickstertwo/xsock/internal/config"
)

const (
	exitOK    = 0
	exitSetup = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("xsock", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file (yaml, json or toml)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: xsock [-config file] pub|sub")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	role, err := xsock.ParseRole(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "xsock: %v\n", err)
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "xsock: %v\n", err)
		return exitSetup
	}

	logger := newLogger(cfg.Log)

	// Calibrate once, before any socket exists; every timestamp derives from it.
	cal := xsock.Calibrate(xclock.Default())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var observers []xsock.Observer
	if cfg.Metrics.Addr != "" {
		obs := prometheus.New(prometheus.Config{})
		observers = append(observers, obs)
		srv := serveMetrics(cfg.Metrics, obs, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	node, closeNode, err := xsock.New(func(b *xsock.NodeBuilder) {
		if cfg.Observers.PoolWorkers > 0 {
			b.WithObserverPool(cfg.Observers.PoolWorkers, cfg.Observers.PoolBuffer)
		}
		b.WithBackend(cfg.Backend, cfg.BackendOptions()).
			WithFraming(cfg.Framing).
			WithLogger(logger).
			WithCalibration(cal).
			WithRetry(cfg.RetryPolicy()).
			WithMaxFrameSize(cfg.MaxFrameSize).
			WithReceiveTimeout(cfg.ReceiveTimeout).
			WithObserver(observers...)
	})
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.Backend).Msg("xsock: setup failed")
		return exitSetup
	}
	// sockets are closed by their runners first; closeNode then terminates the back end
	defer func() {
		if err := closeNode(); err != nil {
			logger.Warn().Err(err).Msg("xsock: shutdown")
		}
		if st, ok := node.ObserverPoolStats(); ok && st.Dropped > 0 {
			logger.Warn().
				Str("dropped", fmt.Sprint(st.Dropped)).
				Str("processed", fmt.Sprint(st.Processed)).
				Msg("xsock: observer events dropped")
		}
	}()

	switch role {
	case xsock.RolePublisher:
		err = runPublisher(ctx, node, cfg)
	case xsock.RoleSubscriber:
		err = runSubscriber(ctx, node, cfg)
	}
	if err != nil {
		logger.Error().Err(err).Str("role", role.String()).Msg("xsock: stopped")
		return exitSetup
	}
	logger.Info().Msg("shutdown complete")
	return exitOK
}

func runPublisher(ctx context.Context, node *xsock.Node, cfg *config.Config) error {
	pub, err := node.NewPublisher(cfg.Publisher.Endpoint, cfg.Publisher.Topic,
		xsock.WithInterval(cfg.Publisher.Interval),
		xsock.WithMessageFactory(xsock.DefaultMessageFactory(cfg.Publisher.Source, node.Backend().Name())),
	)
	if err != nil {
		return err
	}
	defer pub.Close()
	return pub.Run(ctx)
}

func runSubscriber(ctx context.Context, node *xsock.Node, cfg *config.Config) error {
	sub, err := node.NewSubscriber(ctx, cfg.Subscriber.Endpoint, cfg.Subscriber.Topics...)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	defer sub.Close()

	logger := node.Logger()
	return sub.Run(ctx, func(_ context.Context, d *xsock.Delivery) error {
		logger.Info().
			Str("topic", d.Topic).
			Str("id", fmt.Sprint(d.Message.ID)).
			Str("content", d.Message.Content).
			Float64("latency_us", d.LatencyMicros).
			Msg("received")
		return nil
	})
}

func newLogger(c config.LogConfig) *xlog.Logger {
	zc := zerolog.Config{
		MinLevel:          xlog.LevelInfo,
		Console:           c.Console,
		ConsoleTimeFormat: time.RFC3339Nano,
	}
	if strings.EqualFold(c.Level, "debug") {
		zc.MinLevel = xlog.LevelDebug
	}
	return zerolog.Use(zc)
}

func serveMetrics(c config.MetricsConfig, obs *prometheus.Observer, logger *xlog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(c.Path, obs.Handler())
	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", c.Addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", c.Addr).Str("path", c.Path).Msg("metrics enabled")
	return srv
}
