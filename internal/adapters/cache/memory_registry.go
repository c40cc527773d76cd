package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

type memoryEntry struct {
	instance  domain.Instance
	expiresAt time.Time
}

// MemoryInstanceRegistry is the single-process registry used when Redis is not configured.
type MemoryInstanceRegistry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	nowFn   func() time.Time
}

func NewMemoryInstanceRegistry() *MemoryInstanceRegistry {
	return &MemoryInstanceRegistry{
		entries: map[uuid.UUID]memoryEntry{},
		nowFn:   time.Now,
	}
}

func (r *MemoryInstanceRegistry) Register(_ context.Context, instance domain.Instance, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[instance.ID] = memoryEntry{instance: instance, expiresAt: r.nowFn().Add(ttl)}
	return nil
}

func (r *MemoryInstanceRegistry) Refresh(_ context.Context, instanceID uuid.UUID, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[instanceID]
	now := r.nowFn()
	if !ok || now.After(entry.expiresAt) {
		delete(r.entries, instanceID)
		return domain.ErrNotRegistered
	}
	entry.expiresAt = now.Add(ttl)
	r.entries[instanceID] = entry
	return nil
}

func (r *MemoryInstanceRegistry) Deregister(_ context.Context, instanceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, instanceID)
	return nil
}

// Live returns the instances whose entries have not expired.
func (r *MemoryInstanceRegistry) Live() []domain.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFn()
	out := make([]domain.Instance, 0, len(r.entries))
	for id, entry := range r.entries {
		if now.After(entry.expiresAt) {
			delete(r.entries, id)
			continue
		}
		out = append(out, entry.instance)
	}
	return out
}
