package bloomchain

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with bloomchain-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogReserve logs a chain reservation.
func (l *Logger) LogReserve(ctx context.Context, key []byte, capacity uint32, errorRate float64, expansion uint16, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reserve failed",
			"key", string(key),
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "chain reserved",
			"key", string(key),
			"capacity", capacity,
			"error_rate", errorRate,
			"expansion", expansion,
		)
	}
}

// LogAdd logs an add/madd operation.
func (l *Logger) LogAdd(ctx context.Context, key []byte, items int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"key", string(key),
			"items", items,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "add completed",
			"key", string(key),
			"items", items,
		)
	}
}

// LogExists logs an exists/mexists operation.
func (l *Logger) LogExists(ctx context.Context, key []byte, items int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "exists failed",
			"key", string(key),
			"items", items,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "exists completed",
			"key", string(key),
			"items", items,
		)
	}
}

// LogGrow logs a chain growth event.
func (l *Logger) LogGrow(ctx context.Context, key []byte, nFilters uint16, filterBytes uint32) {
	l.InfoContext(ctx, "chain grown",
		"key", string(key),
		"n_filters", nFilters,
		"filter_bytes", filterBytes,
	)
}
