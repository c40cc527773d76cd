package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

type LifecycleRepository struct {
	db *gorm.DB
}

func NewLifecycleRepository(db *gorm.DB) *LifecycleRepository {
	return &LifecycleRepository{db: db}
}

// SaveInstance upserts the latest snapshot of an instance.
func (r *LifecycleRepository) SaveInstance(ctx context.Context, instance domain.Instance) error {
	row := toInstanceModel(instance, time.Now().UTC())
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "ready_at", "stopped_at", "updated_at"}),
	}).Create(&row).Error
}

func (r *LifecycleRepository) AppendEvent(ctx context.Context, event domain.LifecycleEvent) error {
	row := toEventModel(event)
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *LifecycleRepository) ListEvents(ctx context.Context, instanceID uuid.UUID) ([]domain.LifecycleEvent, error) {
	var rows []lifecycleEventModel
	if err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LifecycleEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromEventModel(row))
	}
	return out, nil
}
