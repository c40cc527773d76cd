package postgres

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

// MemoryLifecycleRepository keeps lifecycle history in process when no database is configured.
type MemoryLifecycleRepository struct {
	mu        sync.Mutex
	instances map[uuid.UUID]domain.Instance
	events    []domain.LifecycleEvent
}

func NewMemoryLifecycleRepository() *MemoryLifecycleRepository {
	return &MemoryLifecycleRepository{
		instances: map[uuid.UUID]domain.Instance{},
		events:    make([]domain.LifecycleEvent, 0, 8),
	}
}

func (r *MemoryLifecycleRepository) SaveInstance(_ context.Context, instance domain.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[instance.ID] = instance
	return nil
}

func (r *MemoryLifecycleRepository) AppendEvent(_ context.Context, event domain.LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryLifecycleRepository) ListEvents(_ context.Context, instanceID uuid.UUID) ([]domain.LifecycleEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LifecycleEvent, 0, len(r.events))
	for _, ev := range r.events {
		if ev.InstanceID == instanceID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

// Instance returns the last saved snapshot.
func (r *MemoryLifecycleRepository) Instance(instanceID uuid.UUID) (domain.Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.instances[instanceID]
	return in, ok
}
