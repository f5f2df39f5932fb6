package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wudi/blackout/observability"
)

// newLogger writes timestamped entries ("14:32:01.45") at level and above.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext falls back to log.Default when no logger is attached.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// charmLogger lets the library packages log through a charm logger.
type charmLogger struct{ l *log.Logger }

func adaptLogger(l *log.Logger) observability.Logger { return charmLogger{l: l} }

func (c charmLogger) Debug(msg string, fields ...observability.Field) {
	c.l.Debug(msg, observability.KeyVals(fields)...)
}

func (c charmLogger) Info(msg string, fields ...observability.Field) {
	c.l.Info(msg, observability.KeyVals(fields)...)
}

func (c charmLogger) Warn(msg string, fields ...observability.Field) {
	c.l.Warn(msg, observability.KeyVals(fields)...)
}

func (c charmLogger) Error(msg string, fields ...observability.Field) {
	c.l.Error(msg, observability.KeyVals(fields)...)
}

func (c charmLogger) With(fields ...observability.Field) observability.Logger {
	return charmLogger{l: c.l.With(observability.KeyVals(fields)...)}
}

// elapsed measures an operation for the completion line.
type elapsed struct{ start time.Time }

func startTimer() elapsed { return elapsed{start: time.Now()} }

func (e elapsed) String() string { return time.Since(e.start).Round(time.Millisecond).String() }
