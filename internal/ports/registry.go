package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

// InstanceRegistry advertises live instances to peers. Entries expire unless refreshed.
type InstanceRegistry interface {
	Register(ctx context.Context, instance domain.Instance, ttl time.Duration) error
	Refresh(ctx context.Context, instanceID uuid.UUID, ttl time.Duration) error
	Deregister(ctx context.Context, instanceID uuid.UUID) error
}
