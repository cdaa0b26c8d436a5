package anngo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with consistent field names for index operations.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogConstruct logs an index construction.
func (l *Logger) LogConstruct(ctx context.Context, indexType string, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "construct failed",
			"index_type", indexType,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index constructed",
			"index_type", indexType,
			"dimension", dimension,
		)
	}
}

// LogBuild logs a build batch.
func (l *Logger) LogBuild(ctx context.Context, count, failed int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "build failed",
			"count", count,
			"error", err,
		)
	case failed > 0:
		l.WarnContext(ctx, "build completed with rejected items",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	default:
		l.InfoContext(ctx, "build completed",
			"count", count,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogDump logs a dump operation. dest is a file path or blob name.
func (l *Logger) LogDump(ctx context.Context, dest string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "dump failed",
			"dest", dest,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "dump saved",
			"dest", dest,
		)
	}
}

// LogLoad logs a load operation. source is a file path or blob name.
func (l *Logger) LogLoad(ctx context.Context, source string, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"source", source,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "load completed",
			"source", source,
			"count", count,
		)
	}
}
