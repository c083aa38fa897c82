package xsock

import (
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver is an Adapter that emits node events via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	switch e.Type {
	case Error, Drop:
		o.Logger.Warn().
			Str("type", string(e.Type)).
			Str("backend", e.Backend).
			Str("topic", e.Topic).
			Err(e.Err).
			Msg("xsock event")
	case Receive:
		o.Logger.Debug().
			Str("type", string(e.Type)).
			Str("topic", e.Topic).
			Str("message_id", formatID(e.MessageID)).
			Float64("latency_us", e.LatencyMicros).
			Msg("xsock event")
	case Publish:
		o.Logger.Debug().
			Str("type", string(e.Type)).
			Str("topic", e.Topic).
			Str("message_id", formatID(e.MessageID)).
			Dur("duration", e.Duration).
			Msg("xsock event")
	default:
		o.Logger.Debug().
			Str("type", string(e.Type)).
			Str("backend", e.Backend).
			Str("role", e.Role.String()).
			Str("endpoint", e.Endpoint).
			Msg("xsock event")
	}
}
