package application

import (
	"time"

	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

const (
	EventInstanceReady        = "gateway.instance_ready"
	EventInstanceShuttingDown = "gateway.instance_shutting_down"
	EventInstanceStopped      = "gateway.instance_stopped"
)

// Config holds the lifecycle settings the service needs from bootstrap.
type Config struct {
	RegistryTTL time.Duration
}

// InstanceView is the externally visible snapshot of this process.
type InstanceView struct {
	InstanceID string     `json:"instance_id"`
	ServiceID  string     `json:"service_id"`
	Profile    string     `json:"profile"`
	State      string     `json:"state"`
	Ready      bool       `json:"ready"`
	ArgCount   int        `json:"arg_count"`
	StartedAt  time.Time  `json:"started_at"`
	ReadyAt    *time.Time `json:"ready_at,omitempty"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
}

type lifecycleEventPayload struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	InstanceID string    `json:"instance_id"`
	ServiceID  string    `json:"service_id"`
	Profile    string    `json:"profile"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func toView(in domain.Instance) InstanceView {
	return InstanceView{
		InstanceID: in.ID.String(),
		ServiceID:  in.ServiceID,
		Profile:    in.Profile,
		State:      string(in.State),
		Ready:      in.State == domain.StateReady,
		ArgCount:   in.ArgCount,
		StartedAt:  in.StartedAt,
		ReadyAt:    in.ReadyAt,
		StoppedAt:  in.StoppedAt,
	}
}

func eventTypeFor(to domain.State) string {
	switch to {
	case domain.StateReady:
		return EventInstanceReady
	case domain.StateShuttingDown:
		return EventInstanceShuttingDown
	case domain.StateStopped:
		return EventInstanceStopped
	default:
		return "gateway.instance_" + string(to)
	}
}
