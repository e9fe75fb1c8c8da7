// Package obslog provides structured logging with trace ID propagation,
// wrapping logrus the way the rest of this corpus does.
package obslog

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/threatcore/analysis-core/internal/version"
)

// ContextKey is the type for context keys used to carry log fields.
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
	AnalysisIDKey ContextKey = "analysis_id"
	ServiceKey ContextKey = "service"
)

// Logger wraps logrus.Logger with a fixed service field.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for service, at the given level ("debug", "info",
// ...) and format ("json" or "text").
func New(service, level, format string) *Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}
	l.SetOutput(os.Stdout)

	logger := &Logger{Logger: l, service: service}
	logger.WithFields(nil).Info(version.String())
	return logger
}

// NewFromEnv builds a Logger from LOG_LEVEL / LOG_FORMAT, defaulting to
// info/json.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext returns an entry annotated with the trace/analysis IDs
// found in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if v := ctx.Value(TraceIDKey); v != nil {
		entry = entry.WithField("trace_id", v)
	}
	if v := ctx.Value(AnalysisIDKey); v != nil {
		entry = entry.WithField("analysis_id", v)
	}
	return entry
}

// WithFields returns an entry with the given fields plus the service
// field.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// WithError returns an entry annotated with err.Error().
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{"service": l.service, "error": err.Error()})
}

// NewTraceID generates a fresh trace ID.
func NewTraceID() string {
	return uuid.New().String()
}

// ContextWithTraceID returns a child context carrying traceID.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// ContextWithAnalysisID returns a child context carrying analysisID.
func ContextWithAnalysisID(ctx context.Context, analysisID string) context.Context {
	return context.WithValue(ctx, AnalysisIDKey, analysisID)
}
