package http

import (
	"context"
	"log/slog"
	"net/http"
)

func requestLogger(ctx context.Context) *slog.Logger {
	logger := slog.Default().With(
		"module", "adapters.http",
		"layer", "adapter",
	)
	if id := requestIDFromContext(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	return logger
}

func statusLevel(statusCode int) slog.Level {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return slog.LevelError
	case statusCode >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		// probes are polled constantly
		return slog.LevelDebug
	}
}

// logRejected records an operation that ended in an error response.
func logRejected(ctx context.Context, operation string, statusCode int, code string, err error) {
	attrs := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
	}
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	requestLogger(ctx).Log(ctx, statusLevel(statusCode), "request rejected", attrs...)
}
