package logger

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

var log = New("info")

// New builds a JSON logrus logger writing to stdout. Unknown levels fall back to info.
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stdout
	l.Formatter = &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
	if parsed, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(parsed)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// Init replaces the process logger.
func Init(level string) *logrus.Logger {
	log = New(level)
	return log
}

func Get() *logrus.Logger {
	return log
}

// WithTraceID returns a context whose log entries carry trace_id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, log.WithField("trace_id", traceID))
}

// FromContext returns the entry stored by WithTraceID, or a bare entry.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return logrus.NewEntry(log)
}

// TraceID extracts the trace id set by WithTraceID.
func TraceID(ctx context.Context) string {
	entry := FromContext(ctx)
	if id, ok := entry.Data["trace_id"].(string); ok {
		return id
	}
	return ""
}
