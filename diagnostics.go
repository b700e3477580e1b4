package xsinger

import (
	"github.com/trickstertwo/xlog"
)

// DiagnosticsFunc adapts a plain function to Diagnostics.
type DiagnosticsFunc func(msg string, err error)

func (f DiagnosticsFunc) Warn(msg string, err error) { f(msg, err) }

// LogDiagnostics reports warnings through xlog.
type LogDiagnostics struct {
	Logger *xlog.Logger
}

func (d LogDiagnostics) Warn(msg string, err error) {
	if d.Logger == nil {
		return
	}
	d.Logger.Warn().Err(err).Msg("xsinger: " + msg)
}

func defaultDiagnostics() Diagnostics {
	return LogDiagnostics{Logger: xlog.Default()}
}
