package events

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Heartbeater is implemented by the lifecycle service.
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// HeartbeatWorker refreshes the registry entry of this instance on a fixed interval.
type HeartbeatWorker struct {
	logger   *slog.Logger
	target   Heartbeater
	interval time.Duration
}

func NewHeartbeatWorker(logger *slog.Logger, target Heartbeater, interval time.Duration) *HeartbeatWorker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HeartbeatWorker{logger: logger, target: target, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := w.target.Heartbeat(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.WarnContext(ctx, "heartbeat failed",
				"module", "events.heartbeat_worker",
				"layer", "adapter",
				"operation", "heartbeat",
				"outcome", "failure",
				"error", err,
			)
		}
	}
}
