package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

// Application is one instance of the gateway process. Constructing it has no side
// effects; wiring happens in Start.
type Application struct {
	args      []string
	lifecycle *domain.Lifecycle
	getenv    func(string) string

	mu      sync.Mutex
	runtime *Runtime
}

// NewApplication builds the entry point from the unmodified startup arguments.
func NewApplication(args []string) *Application {
	copied := make([]string, len(args))
	copy(copied, args)
	return &Application{
		args:      copied,
		lifecycle: domain.NewLifecycle(uuid.New(), "", "", len(copied)),
		getenv:    os.Getenv,
	}
}

// Run is the process-level bootstrap: it starts the application, serves until
// shutdown is requested and releases everything it wired.
func Run(ctx context.Context, args []string) error {
	return NewApplication(args).Run(ctx)
}

func (a *Application) Args() []string {
	out := make([]string, len(a.args))
	copy(out, a.args)
	return out
}

func (a *Application) InstanceID() uuid.UUID {
	return a.lifecycle.Snapshot().ID
}

func (a *Application) State() domain.State {
	return a.lifecycle.State()
}

// Ready reports whether initialization completed and shutdown has not begun.
func (a *Application) Ready() bool {
	return a.lifecycle.State() == domain.StateReady
}

// Runtime returns the wired components, or nil before a successful Start.
func (a *Application) Runtime() *Runtime {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runtime
}

// Start resolves configuration and wires every component. It either leaves the
// application Ready or returns an *InitializationError with the application Stopped.
// An application can be started only once.
func (a *Application) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.lifecycle.Transition(domain.StateInitializing, "start requested", time.Now().UTC()); err != nil {
		return newInitializationError("lifecycle", fmt.Errorf("application cannot start from %s: %w", a.lifecycle.State(), err))
	}

	cfg, err := loadConfig(a.args, a.getenv)
	if err != nil {
		return a.abort(newInitializationError("config", err))
	}
	a.lifecycle.Bind(cfg.ServiceID, cfg.Profile)

	rt, err := NewRuntime(ctx, cfg, a.lifecycle)
	if err != nil {
		return a.abort(newInitializationError("runtime", err))
	}
	if err := ctx.Err(); err != nil {
		_ = rt.Shutdown(ctx, "startup interrupted")
		return a.abort(newInitializationError("runtime", fmt.Errorf("startup interrupted: %w", err)))
	}
	if err := rt.start(ctx); err != nil {
		_ = rt.Shutdown(ctx, "startup failed")
		return a.abort(newInitializationError("lifecycle", err))
	}
	a.runtime = rt
	return nil
}

// abort moves an initializing application to Stopped.
func (a *Application) abort(err *InitializationError) error {
	if a.lifecycle.State() == domain.StateInitializing {
		_, _ = a.lifecycle.Transition(domain.StateStopped, err.Error(), time.Now().UTC())
	}
	return err
}

// Run starts the application and blocks until ctx is cancelled, a termination
// signal arrives, Shutdown is called, a management shutdown is accepted or a server
// fails. With no server component enabled it shuts down right after becoming ready.
// Signals are observed from the start, so one arriving during wiring aborts Start
// and releases whatever was already built.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	rt := a.Runtime()

	reason := "no server components enabled"
	var runErr error
	if rt.HasServers() {
		reason, runErr = rt.Wait(ctx)
	}
	if err := rt.Shutdown(context.WithoutCancel(ctx), reason); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops a started application. It is safe to call more than once and is a
// no-op when Start never succeeded.
func (a *Application) Shutdown(ctx context.Context) error {
	rt := a.Runtime()
	if rt == nil {
		return nil
	}
	return rt.Shutdown(ctx, "shutdown requested")
}
