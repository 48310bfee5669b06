package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

var log *slog.Logger

// Init sets up the global logger.
// env: "development" or anything else for production JSON output
func Init(env string) {
	InitWithWriter(env, os.Stdout)
}

// InitWithWriter is Init with an explicit output, used by tests.
func InitWithWriter(env string, w io.Writer) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	}

	if env == "development" {
		// Development: readable text
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		// Production: JSON for the log pipeline
		handler = slog.NewJSONHandler(w, opts)
	}

	log = slog.New(handler)
	slog.SetDefault(log)
}

// GetLogger returns the global logger
func GetLogger() *slog.Logger {
	if log == nil {
		Init("development")
	}
	return log
}

// Handler exposes the underlying handler for adapters (cron, std log).
func Handler() slog.Handler {
	return GetLogger().Handler()
}

// ============================================
// Convenience functions
// ============================================

func Debug(msg string, args ...any) {
	GetLogger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	GetLogger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	GetLogger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	GetLogger().Error(msg, args...)
}

// Fatal logs and exits the process
func Fatal(msg string, args ...any) {
	GetLogger().Error(msg, args...)
	os.Exit(1)
}

// ============================================
// Loggers with extra fields
// ============================================

// With returns a child logger.
// Example: logger.With("trans_id", txID).Info("payment reconciled")
func With(args ...any) *slog.Logger {
	return GetLogger().With(args...)
}

// WithError returns a child logger with an error field
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}

// ============================================
// Specialised loggers
// ============================================

// HTTPLog logs a finished HTTP request with the request-scoped fields of ctx
func HTTPLog(ctx context.Context, method, path string, status int, duration time.Duration, size int, args ...any) {
	fields := append([]any{
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", duration.Milliseconds(),
		"size_bytes", size,
	}, args...)

	l := FromContext(ctx)
	switch {
	case status >= 500:
		l.Error("HTTP Server Error", fields...)
	case status >= 400:
		l.Warn("HTTP Client Error", fields...)
	default:
		l.Info("HTTP Request", fields...)
	}
}

// WorkerLog logs a background job run
func WorkerLog(worker, operation string, err error, args ...any) {
	fields := append([]any{
		"worker", worker,
		"operation", operation,
	}, args...)

	if err != nil {
		fields = append(fields, "error", err.Error())
		GetLogger().Error("worker operation failed", fields...)
	} else {
		GetLogger().Info("worker operation completed", fields...)
	}
}
