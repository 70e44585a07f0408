package core

import (
	"context"
	"log/slog"
	"time"
)

// Logger captures the subset of structured logging used by the service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewNoopLogger returns a logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }

type slogLogger struct {
	inner *slog.Logger
}

// NewSlogLogger adapts a *slog.Logger to the service Logger interface.
// A nil logger falls back to slog.Default().
func NewSlogLogger(inner *slog.Logger) Logger {
	if inner == nil {
		inner = slog.Default()
	}
	return slogLogger{inner: inner}
}

func (l slogLogger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l slogLogger) Info(msg string, args ...any)  { l.inner.Info(msg, args...) }
func (l slogLogger) Warn(msg string, args ...any)  { l.inner.Warn(msg, args...) }
func (l slogLogger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// MetricsRecorder observes service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan terminates a started trace.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}
