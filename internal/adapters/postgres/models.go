package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

type instanceModel struct {
	InstanceID uuid.UUID  `gorm:"column:instance_id;type:uuid;primaryKey"`
	ServiceID  string     `gorm:"column:service_id"`
	Profile    string     `gorm:"column:profile"`
	ArgCount   int        `gorm:"column:arg_count"`
	State      string     `gorm:"column:state"`
	StartedAt  time.Time  `gorm:"column:started_at"`
	ReadyAt    *time.Time `gorm:"column:ready_at"`
	StoppedAt  *time.Time `gorm:"column:stopped_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at"`
}

func (instanceModel) TableName() string { return "gateway_instances" }

type lifecycleEventModel struct {
	EventID    uuid.UUID `gorm:"column:event_id;type:uuid;primaryKey"`
	InstanceID uuid.UUID `gorm:"column:instance_id;type:uuid"`
	ServiceID  string    `gorm:"column:service_id"`
	Profile    string    `gorm:"column:profile"`
	FromState  string    `gorm:"column:from_state"`
	ToState    string    `gorm:"column:to_state"`
	Reason     string    `gorm:"column:reason"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
}

func (lifecycleEventModel) TableName() string { return "gateway_lifecycle_events" }

func toInstanceModel(in domain.Instance, now time.Time) instanceModel {
	return instanceModel{
		InstanceID: in.ID,
		ServiceID:  in.ServiceID,
		Profile:    in.Profile,
		ArgCount:   in.ArgCount,
		State:      string(in.State),
		StartedAt:  in.StartedAt,
		ReadyAt:    in.ReadyAt,
		StoppedAt:  in.StoppedAt,
		UpdatedAt:  now,
	}
}

func toEventModel(ev domain.LifecycleEvent) lifecycleEventModel {
	return lifecycleEventModel{
		EventID:    ev.EventID,
		InstanceID: ev.InstanceID,
		ServiceID:  ev.ServiceID,
		Profile:    ev.Profile,
		FromState:  string(ev.From),
		ToState:    string(ev.To),
		Reason:     ev.Reason,
		OccurredAt: ev.OccurredAt,
	}
}

func fromEventModel(m lifecycleEventModel) domain.LifecycleEvent {
	return domain.LifecycleEvent{
		EventID:    m.EventID,
		InstanceID: m.InstanceID,
		ServiceID:  m.ServiceID,
		Profile:    m.Profile,
		From:       domain.State(m.FromState),
		To:         domain.State(m.ToState),
		Reason:     m.Reason,
		OccurredAt: m.OccurredAt.UTC(),
	}
}
