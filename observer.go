package xsinger

import (
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver is an Adapter that emits writer and reader events via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("event", string(e.Type)),
		xlog.Str("message_type", string(e.MessageType)),
	)
	if e.Stream != "" {
		ev = ev.With(xlog.Str("stream", e.Stream))
	}
	switch e.Type {
	case EventWriteFailed, EventReadFailed:
		ev.Warn().Err(e.Err).Msg("xsinger event")
	default:
		if e.Duration > 0 {
			ev = ev.With(xlog.Dur("duration", e.Duration))
		}
		ev.Debug().Msg("xsinger event")
	}
}

// observers is a copy-on-notify observer list shared by Writer and Reader.
type observers []Observer

func (obs observers) notify(e Event) {
	for _, o := range obs {
		if o == nil {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			o.OnEvent(e)
		}()
	}
}
