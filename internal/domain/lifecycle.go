package domain

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a point in the process lifecycle.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInitializing  State = "INITIALIZING"
	StateReady         State = "READY"
	StateShuttingDown  State = "SHUTTING_DOWN"
	StateStopped       State = "STOPPED"
)

var allowedTransitions = map[State][]State{
	StateUninitialized: {StateInitializing},
	StateInitializing:  {StateReady, StateStopped},
	StateReady:         {StateShuttingDown},
	StateShuttingDown:  {StateStopped},
}

// CanTransition reports whether from -> to is an edge of the lifecycle state machine.
func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// Instance is the snapshot of one running gateway process.
type Instance struct {
	ID        uuid.UUID
	ServiceID string
	Profile   string
	ArgCount  int
	State     State
	StartedAt time.Time
	ReadyAt   *time.Time
	StoppedAt *time.Time
}

// LifecycleEvent records a single state transition of an instance.
type LifecycleEvent struct {
	EventID    uuid.UUID
	InstanceID uuid.UUID
	ServiceID  string
	Profile    string
	From       State
	To         State
	Reason     string
	OccurredAt time.Time
}

// Lifecycle guards the state of one instance. Readers such as health probes
// may call State concurrently with transitions.
type Lifecycle struct {
	mu       sync.RWMutex
	instance Instance
}

func NewLifecycle(id uuid.UUID, serviceID, profile string, argCount int) *Lifecycle {
	return &Lifecycle{instance: Instance{
		ID:        id,
		ServiceID: serviceID,
		Profile:   profile,
		ArgCount:  argCount,
		State:     StateUninitialized,
	}}
}

// Bind attaches the resolved service identity once configuration is known.
func (l *Lifecycle) Bind(serviceID, profile string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.instance.ServiceID = serviceID
	l.instance.Profile = profile
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.instance.State
}

// Snapshot returns a copy of the instance that is safe to hand to other goroutines.
func (l *Lifecycle) Snapshot() Instance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := l.instance
	if out.ReadyAt != nil {
		t := *out.ReadyAt
		out.ReadyAt = &t
	}
	if out.StoppedAt != nil {
		t := *out.StoppedAt
		out.StoppedAt = &t
	}
	return out
}

// Transition moves the instance to the next state and returns the event describing the move.
func (l *Lifecycle) Transition(to State, reason string, now time.Time) (LifecycleEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	from := l.instance.State
	if !CanTransition(from, to) {
		return LifecycleEvent{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	l.instance.State = to
	switch to {
	case StateInitializing:
		l.instance.StartedAt = now
	case StateReady:
		t := now
		l.instance.ReadyAt = &t
	case StateStopped:
		t := now
		l.instance.StoppedAt = &t
	}
	return LifecycleEvent{
		EventID:    uuid.New(),
		InstanceID: l.instance.ID,
		ServiceID:  l.instance.ServiceID,
		Profile:    l.instance.Profile,
		From:       from,
		To:         to,
		Reason:     reason,
		OccurredAt: now,
	}, nil
}
