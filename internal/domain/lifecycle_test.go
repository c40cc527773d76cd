package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCanTransitionMatchesStateMachine(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to State
		want     bool
	}{
		{StateUninitialized, StateInitializing, true},
		{StateInitializing, StateReady, true},
		{StateInitializing, StateStopped, true},
		{StateReady, StateShuttingDown, true},
		{StateShuttingDown, StateStopped, true},
		{StateUninitialized, StateReady, false},
		{StateReady, StateStopped, false},
		{StateReady, StateInitializing, false},
		{StateStopped, StateInitializing, false},
		{StateStopped, StateReady, false},
		{StateShuttingDown, StateReady, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestLifecycleHappyPathRecordsTimestamps(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	l := NewLifecycle(id, "svc", "test", 2)
	now := time.Date(2025, 7, 7, 10, 0, 0, 0, time.UTC)

	for i, to := range []State{StateInitializing, StateReady, StateShuttingDown, StateStopped} {
		ev, err := l.Transition(to, "step", now.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("transition to %s failed: %v", to, err)
		}
		if ev.To != to || ev.InstanceID != id {
			t.Fatalf("unexpected event %+v", ev)
		}
	}

	snap := l.Snapshot()
	if snap.State != StateStopped || !snap.State.IsTerminal() {
		t.Fatalf("expected terminal stopped state, got %s", snap.State)
	}
	if !snap.StartedAt.Equal(now) {
		t.Fatalf("unexpected started_at %v", snap.StartedAt)
	}
	if snap.ReadyAt == nil || !snap.ReadyAt.Equal(now.Add(time.Second)) {
		t.Fatalf("unexpected ready_at %v", snap.ReadyAt)
	}
	if snap.StoppedAt == nil || !snap.StoppedAt.Equal(now.Add(3*time.Second)) {
		t.Fatalf("unexpected stopped_at %v", snap.StoppedAt)
	}
	if snap.ArgCount != 2 || snap.Profile != "test" {
		t.Fatalf("unexpected snapshot identity %+v", snap)
	}
}

func TestLifecycleRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	l := NewLifecycle(uuid.New(), "svc", "default", 0)
	if _, err := l.Transition(StateReady, "skip", time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if l.State() != StateUninitialized {
		t.Fatalf("state must not change on rejected transition, got %s", l.State())
	}
}

func TestSnapshotIsDetachedCopy(t *testing.T) {
	t.Parallel()

	l := NewLifecycle(uuid.New(), "svc", "default", 0)
	now := time.Now().UTC()
	_, _ = l.Transition(StateInitializing, "", now)
	_, _ = l.Transition(StateReady, "", now)

	snap := l.Snapshot()
	*snap.ReadyAt = now.Add(time.Hour)
	if l.Snapshot().ReadyAt.Equal(*snap.ReadyAt) {
		t.Fatalf("snapshot mutation leaked into lifecycle")
	}
}
