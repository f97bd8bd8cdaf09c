package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/tenant"
	"github.com/sirupsen/logrus"
)

// Logger interface for structured logging
type Logger interface {
	Info(ctx context.Context, message string, fields map[string]interface{})
	Error(ctx context.Context, message string, err error, fields map[string]interface{})
	Warn(ctx context.Context, message string, fields map[string]interface{})
	Debug(ctx context.Context, message string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
}

// Config configures the logger
type Config struct {
	Level       string
	Format      string // json, text
	ServiceName string
	Output      io.Writer
}

type structuredLogger struct {
	logger *logrus.Logger
	fields map[string]interface{}
}

type correlationKey struct{}

// WithCorrelationID stores the request correlation id on the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id stored on the context
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// New creates a logrus backed Logger
func New(config Config) Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339Nano, FullTimestamp: true})
	}

	if config.Output != nil {
		l.SetOutput(config.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	return &structuredLogger{
		logger: l,
		fields: map[string]interface{}{"service": config.ServiceName},
	}
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	return New(Config{Level: "panic", Output: io.Discard})
}

func (l *structuredLogger) Info(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, nil, fields).Info(message)
}

func (l *structuredLogger) Error(ctx context.Context, message string, err error, fields map[string]interface{}) {
	l.entry(ctx, err, fields).Error(message)
}

func (l *structuredLogger) Warn(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, nil, fields).Warn(message)
}

func (l *structuredLogger) Debug(ctx context.Context, message string, fields map[string]interface{}) {
	l.entry(ctx, nil, fields).Debug(message)
}

// WithFields returns a logger carrying additional fields
func (l *structuredLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &structuredLogger{logger: l.logger, fields: merged}
}

func (l *structuredLogger) entry(ctx context.Context, err error, fields map[string]interface{}) *logrus.Entry {
	out := logrus.Fields{}
	for k, v := range l.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}

	if ctx != nil {
		if id := CorrelationID(ctx); id != "" {
			out["correlation_id"] = id
		}
		if orgID, ok := tenant.OrgFromContext(ctx); ok {
			out["org_id"] = orgID
		}
		if p, ok := tenant.PrincipalFromContext(ctx); ok {
			out["user_id"] = p.UserID
		}
	}

	if err != nil {
		out["error"] = err.Error()
	}

	if pc, file, line, ok := runtime.Caller(2); ok {
		out["caller"] = fmt.Sprintf("%s:%d %s", file, line, runtime.FuncForPC(pc).Name())
	}

	return l.logger.WithFields(out)
}

// LogPermissionFault records a denied write with everything needed to debug the access rules
func LogPermissionFault(ctx context.Context, log Logger, fault domain.PermissionFault) {
	log.Error(ctx, "Permission denied on write", fault, map[string]interface{}{
		"event_type":  "permission_fault",
		"path":        fault.Path,
		"operation":   fault.Operation,
		"denied_path": fault.DeniedPath,
		"reason":      fault.Reason,
		"data":        fault.RequestData,
	})
}

// LogPerformance records how long an operation took
func LogPerformance(ctx context.Context, log Logger, operation string, duration time.Duration, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["event_type"] = "performance"
	fields["operation"] = operation
	fields["duration_ms"] = duration.Milliseconds()

	if duration > time.Second {
		log.Warn(ctx, fmt.Sprintf("Slow operation: %s", operation), fields)
		return
	}
	log.Debug(ctx, fmt.Sprintf("Operation completed: %s", operation), fields)
}
