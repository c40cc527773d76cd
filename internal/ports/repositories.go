package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

// LifecycleRepository stores the transition history and latest snapshot of gateway instances.
type LifecycleRepository interface {
	SaveInstance(ctx context.Context, instance domain.Instance) error
	AppendEvent(ctx context.Context, event domain.LifecycleEvent) error
	ListEvents(ctx context.Context, instanceID uuid.UUID) ([]domain.LifecycleEvent, error)
}
