package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingHeartbeater struct {
	calls atomic.Int32
	err   error
}

func (c *countingHeartbeater) Heartbeat(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestHeartbeatWorkerTicksUntilCancelled(t *testing.T) {
	t.Parallel()

	target := &countingHeartbeater{err: errors.New("registry unavailable")}
	worker := NewHeartbeatWorker(slog.New(slog.NewTextHandler(io.Discard, nil)), target, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for target.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 heartbeats, got %d", target.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}

func TestKafkaPublisherTopicMapping(t *testing.T) {
	t.Parallel()

	if _, err := NewKafkaPublisher(nil, "lifecycle", nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "compliance.gateway.lifecycle", map[string]string{
		"gateway.instance_stopped": "compliance.gateway.audit",
	})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	if got := p.topicFor("gateway.instance_ready"); got != "compliance.gateway.lifecycle" {
		t.Fatalf("unexpected default topic %s", got)
	}
	if got := p.topicFor("gateway.instance_stopped"); got != "compliance.gateway.audit" {
		t.Fatalf("unexpected mapped topic %s", got)
	}
}

func TestKafkaPublisherFlushesEachEvent(t *testing.T) {
	t.Parallel()

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "compliance.gateway.lifecycle", nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	if p.writer.BatchSize != 1 {
		t.Fatalf("lifecycle events must not wait for a batch, got batch size %d", p.writer.BatchSize)
	}
	if p.writer.BatchTimeout <= 0 || p.writer.BatchTimeout > 10*time.Millisecond {
		t.Fatalf("expected batch timeout of at most 10ms, got %s", p.writer.BatchTimeout)
	}
}
