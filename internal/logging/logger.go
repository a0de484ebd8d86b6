// Package logging provides context-aware structured logging over slog.
// Stage invocations stamp the triggering object reference into the
// context so every log line of an invocation carries it.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{}

// WithRef returns a context carrying the storage reference of the
// object being processed.
func WithRef(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ref)
}

// RefFrom extracts the storage reference from ctx, if any.
func RefFrom(ctx context.Context) string {
	if ref, ok := ctx.Value(ctxKey{}).(string); ok {
		return ref
	}
	return ""
}

// Logger wraps slog.Logger with context-aware helpers.
type Logger struct {
	*slog.Logger
}

// New creates a Logger at the given level. format can be "json" or
// "text" (default json).
func New(level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelError,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a Logger over slog.Default.
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// WithContext returns an slog.Logger that includes the object
// reference stored in ctx.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	if ref := RefFrom(ctx); ref != "" {
		return l.Logger.With(slog.String("ref", ref))
	}
	return l.Logger
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).InfoContext(ctx, msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).WarnContext(ctx, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).ErrorContext(ctx, msg, args...)
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).DebugContext(ctx, msg, args...)
}

// With returns a new Logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ParseLevel converts a string level to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault installs l as the process-wide default logger.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
