package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/ports"
)

// Service owns the instance lifecycle once infrastructure is wired.
// Transitions are recorded to the repository, registry and publisher on a best-effort basis.
type Service struct {
	cfg         Config
	lifecycle   *domain.Lifecycle
	repository  ports.LifecycleRepository
	registry    ports.InstanceRegistry
	publisher   ports.EventPublisher
	adminTokens ports.AdminTokenVerifier
	logger      *slog.Logger
	nowFn       func() time.Time

	shutdownOnce sync.Once
	shutdownCh   chan string
}

type Dependencies struct {
	Config      Config
	Lifecycle   *domain.Lifecycle
	Repository  ports.LifecycleRepository
	Registry    ports.InstanceRegistry
	Publisher   ports.EventPublisher
	AdminTokens ports.AdminTokenVerifier
	Logger      *slog.Logger
	Clock       func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	if deps.Config.RegistryTTL <= 0 {
		deps.Config.RegistryTTL = 30 * time.Second
	}
	return &Service{
		cfg:         deps.Config,
		lifecycle:   deps.Lifecycle,
		repository:  deps.Repository,
		registry:    deps.Registry,
		publisher:   deps.Publisher,
		adminTokens: deps.AdminTokens,
		logger: logger.With(
			"module", "application.lifecycle",
			"layer", "application",
		),
		nowFn:      nowFn,
		shutdownCh: make(chan string, 1),
	}
}

func (s *Service) Instance() InstanceView {
	return toView(s.lifecycle.Snapshot())
}

func (s *Service) State() domain.State {
	return s.lifecycle.State()
}

func (s *Service) Ready() bool {
	return s.lifecycle.State() == domain.StateReady
}

// AdminEnabled reports whether management-plane requests can be authenticated at all.
func (s *Service) AdminEnabled() bool {
	return s.adminTokens != nil
}

// MarkReady completes initialization. Only a failure of the transition itself is returned.
func (s *Service) MarkReady(ctx context.Context) error {
	ev, err := s.lifecycle.Transition(domain.StateReady, "initialization completed", s.nowFn())
	if err != nil {
		return err
	}
	instance := s.lifecycle.Snapshot()
	if s.registry != nil {
		if regErr := s.registry.Register(ctx, instance, s.cfg.RegistryTTL); regErr != nil {
			s.logFailure(ctx, "register_instance", regErr)
		}
	}
	s.record(ctx, instance, ev)
	return nil
}

// BeginShutdown moves a ready instance into draining.
func (s *Service) BeginShutdown(ctx context.Context, reason string) error {
	ev, err := s.lifecycle.Transition(domain.StateShuttingDown, reason, s.nowFn())
	if err != nil {
		return err
	}
	s.record(ctx, s.lifecycle.Snapshot(), ev)
	return nil
}

// MarkStopped records the terminal state and withdraws the registry entry.
func (s *Service) MarkStopped(ctx context.Context, reason string) error {
	ev, err := s.lifecycle.Transition(domain.StateStopped, reason, s.nowFn())
	if err != nil {
		return err
	}
	instance := s.lifecycle.Snapshot()
	s.record(ctx, instance, ev)
	if s.registry != nil {
		if regErr := s.registry.Deregister(ctx, instance.ID); regErr != nil {
			s.logFailure(ctx, "deregister_instance", regErr)
		}
	}
	return nil
}

// Heartbeat keeps the registry entry alive while the instance is ready. An entry that
// was never written or has lapsed is registered again from the current snapshot.
func (s *Service) Heartbeat(ctx context.Context) error {
	if !s.Ready() {
		return domain.ErrNotReady
	}
	if s.registry == nil {
		return nil
	}
	instance := s.lifecycle.Snapshot()
	err := s.registry.Refresh(ctx, instance.ID, s.cfg.RegistryTTL)
	if !errors.Is(err, domain.ErrNotRegistered) {
		return err
	}
	if err := s.registry.Register(ctx, instance, s.cfg.RegistryTTL); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "instance re-registered",
		"operation", "register_instance",
		"outcome", "recovered",
		"instance_id", instance.ID.String(),
	)
	return nil
}

// RequestShutdown authenticates a management request and signals the runtime to stop.
func (s *Service) RequestShutdown(ctx context.Context, token, reason string) (InstanceView, error) {
	if s.adminTokens == nil {
		return InstanceView{}, domain.ErrAdminDisabled
	}
	claims, err := s.adminTokens.Verify(token)
	if err != nil {
		return InstanceView{}, domain.ErrUnauthorized
	}
	if claims.Role != "admin" {
		return InstanceView{}, domain.ErrUnauthorized
	}
	switch s.lifecycle.State() {
	case domain.StateReady:
	case domain.StateShuttingDown, domain.StateStopped:
		return InstanceView{}, domain.ErrShutdownInProgress
	default:
		return InstanceView{}, domain.ErrNotReady
	}

	if reason == "" {
		reason = "management shutdown requested by " + claims.Subject
	}
	accepted := false
	s.shutdownOnce.Do(func() {
		s.shutdownCh <- reason
		accepted = true
	})
	if !accepted {
		return InstanceView{}, domain.ErrShutdownInProgress
	}
	s.logger.InfoContext(ctx, "shutdown requested",
		"operation", "request_shutdown",
		"outcome", "success",
		"subject", claims.Subject,
	)
	return s.Instance(), nil
}

// ShutdownRequested delivers the reason of an accepted management shutdown.
func (s *Service) ShutdownRequested() <-chan string {
	return s.shutdownCh
}

func (s *Service) record(ctx context.Context, instance domain.Instance, ev domain.LifecycleEvent) {
	if s.repository != nil {
		if err := s.repository.SaveInstance(ctx, instance); err != nil {
			s.logFailure(ctx, "save_instance", err)
		}
		if err := s.repository.AppendEvent(ctx, ev); err != nil {
			s.logFailure(ctx, "append_event", err)
		}
	}
	if s.publisher != nil {
		eventType := eventTypeFor(ev.To)
		payload, err := json.Marshal(lifecycleEventPayload{
			EventID:    ev.EventID.String(),
			EventType:  eventType,
			InstanceID: ev.InstanceID.String(),
			ServiceID:  ev.ServiceID,
			Profile:    ev.Profile,
			From:       string(ev.From),
			To:         string(ev.To),
			Reason:     ev.Reason,
			OccurredAt: ev.OccurredAt,
		})
		if err != nil {
			s.logFailure(ctx, "marshal_event", err)
		} else if err := s.publisher.Publish(ctx, eventType, payload, ev.InstanceID.String()); err != nil {
			s.logFailure(ctx, "publish_event", err)
		}
	}
	s.logger.InfoContext(ctx, "lifecycle transition",
		"operation", "transition",
		"outcome", "success",
		"instance_id", ev.InstanceID.String(),
		"from", string(ev.From),
		"to", string(ev.To),
		"reason", ev.Reason,
	)
}

func (s *Service) logFailure(ctx context.Context, operation string, err error) {
	s.logger.WarnContext(ctx, "lifecycle side effect failed",
		"operation", operation,
		"outcome", "failure",
		"error", err,
	)
}
