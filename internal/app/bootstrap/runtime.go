package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/adapters/cache"
	eventadapter "github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/adapters/http"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/adapters/security"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/application"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/ports"
)

const terminalRecordTimeout = 3 * time.Second

type namedCloser struct {
	name  string
	close func() error
}

// Runtime holds every wired component of one gateway process.
type Runtime struct {
	cfg     Config
	logger  *slog.Logger
	service *application.Service

	httpServer *http.Server
	httpLis    net.Listener
	grpcServer *grpc.Server
	grpcLis    net.Listener
	health     *health.Server

	heartbeat    *eventadapter.HeartbeatWorker
	workerCancel context.CancelFunc
	workerDone   chan struct{}

	serveErr chan error
	stopping chan struct{}
	closers  []namedCloser

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewRuntime is the composition root. Components are constructed in dependency order;
// if any of them fails, those already built are closed in reverse order and an
// *InitializationError naming the failed component is returned.
func NewRuntime(ctx context.Context, cfg Config, lifecycle *domain.Lifecycle) (*Runtime, error) {
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.InfoContext(ctx, "bootstrapping compliance gateway",
		"http_enabled", cfg.HTTPEnabled,
		"http_port", cfg.HTTPPort,
		"grpc_enabled", cfg.GRPCEnabled,
		"grpc_port", cfg.GRPCPort,
	)

	rt := &Runtime{
		cfg:      cfg,
		logger:   logger,
		serveErr: make(chan error, 2),
		stopping: make(chan struct{}),
	}
	fail := func(component string, err error) (*Runtime, error) {
		rt.closeAll()
		logger.ErrorContext(ctx, "bootstrap failed",
			"operation", "bootstrap",
			"outcome", "failure",
			"component", component,
			"error", err,
		)
		return nil, newInitializationError(component, err)
	}

	var repository ports.LifecycleRepository = postgres.NewMemoryLifecycleRepository()
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return fail(DependencyPostgres, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fail(DependencyPostgres, fmt.Errorf("gorm sql db: %w", err))
		}
		rt.addCloser(DependencyPostgres, sqlDB.Close)
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return fail(DependencyPostgres, fmt.Errorf("run migrations: %w", err))
		}
		repository = postgres.NewLifecycleRepository(db)
	}

	var registry ports.InstanceRegistry = cacheadapter.NewMemoryInstanceRegistry()
	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fail(DependencyRedis, err)
		}
		rt.addCloser(DependencyRedis, redisClient.Close)
		registry = cacheadapter.NewRedisInstanceRegistry(redisClient)
	}

	var publisher ports.EventPublisher = eventadapter.NewLoggingPublisher(logger)
	if len(cfg.KafkaBrokers) > 0 {
		if err := eventadapter.Ping(ctx, cfg.KafkaBrokers); err != nil {
			return fail(DependencyKafka, err)
		}
		kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaLifecycleTopic, cfg.KafkaTopicByEvent)
		if err != nil {
			return fail(DependencyKafka, err)
		}
		rt.addCloser(DependencyKafka, kafkaPublisher.Close)
		publisher = kafkaPublisher
	}

	var adminTokens ports.AdminTokenVerifier
	if cfg.AdminJWTSecret != "" {
		verifier, err := security.NewHMACVerifier(cfg.AdminJWTSecret, cfg.AdminJWTIssuer)
		if err != nil {
			return fail("admin", err)
		}
		adminTokens = verifier
	} else {
		logger.InfoContext(ctx, "admin endpoints disabled, ADMIN_JWT_SECRET not set")
	}

	rt.service = application.NewService(application.Dependencies{
		Config:      application.Config{RegistryTTL: cfg.RegistryTTL},
		Lifecycle:   lifecycle,
		Repository:  repository,
		Registry:    registry,
		Publisher:   publisher,
		AdminTokens: adminTokens,
		Logger:      logger,
	})

	if cfg.HTTPEnabled {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
		if err != nil {
			return fail("http", fmt.Errorf("listen http: %w", err))
		}
		rt.httpLis = lis
		rt.addCloser("http", func() error { return ignoreClosed(lis.Close()) })
		rt.httpServer = &http.Server{
			Handler:           httpadapter.NewRouter(httpadapter.NewHandler(rt.service)),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	if cfg.GRPCEnabled {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			return fail("grpc", fmt.Errorf("listen gRPC: %w", err))
		}
		rt.grpcLis = lis
		rt.addCloser("grpc", func() error { return ignoreClosed(lis.Close()) })
		rt.grpcServer = grpc.NewServer()
		rt.health = health.NewServer()
		healthpb.RegisterHealthServer(rt.grpcServer, rt.health)
		grpcadapter.SetReadiness(rt.health, false)
		grpcadapter.Register(rt.grpcServer, grpcadapter.NewLifecycleServer(rt.service))
	}

	rt.heartbeat = eventadapter.NewHeartbeatWorker(logger, rt.service, cfg.HeartbeatInterval)
	return rt, nil
}

// start launches servers and workers, then declares the instance ready.
func (r *Runtime) start(ctx context.Context) error {
	if r.httpServer != nil {
		go func() {
			r.logger.Info("http server started", "addr", r.httpLis.Addr().String())
			if err := r.httpServer.Serve(r.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.serveErr <- fmt.Errorf("http server: %w", err)
			}
		}()
	}
	if r.grpcServer != nil {
		go func() {
			r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
			if err := r.grpcServer.Serve(r.grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				r.serveErr <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	r.workerCancel = cancel
	r.workerDone = make(chan struct{})
	go func() {
		defer close(r.workerDone)
		_ = r.heartbeat.Run(workerCtx)
	}()

	if err := r.service.MarkReady(ctx); err != nil {
		return err
	}
	if r.health != nil {
		grpcadapter.SetReadiness(r.health, true)
	}
	r.logger.InfoContext(ctx, "compliance gateway ready", "instance_id", r.service.Instance().InstanceID)
	return nil
}

// Wait blocks until the process should stop and returns the reason. A non-nil
// error means a server failed while serving.
func (r *Runtime) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
		return "shutdown signal received", nil
	case <-r.stopping:
		return "shutdown requested", nil
	case reason := <-r.service.ShutdownRequested():
		return reason, nil
	case err := <-r.serveErr:
		r.logger.Error("server failure", "error", err)
		return "server failure", err
	}
}

// Shutdown drains servers, stops workers, records the terminal state and releases
// infrastructure. It runs once; later calls return the first result.
func (r *Runtime) Shutdown(ctx context.Context, reason string) error {
	r.shutdownOnce.Do(func() {
		r.shutdownErr = r.shutdown(ctx, reason)
	})
	return r.shutdownErr
}

func (r *Runtime) shutdown(ctx context.Context, reason string) error {
	close(r.stopping)
	var errs []error
	if r.service.State() == domain.StateReady {
		if err := r.service.BeginShutdown(ctx, reason); err != nil {
			errs = append(errs, err)
		}
	}
	if r.health != nil {
		grpcadapter.SetReadiness(r.health, false)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.ShutdownTimeout)
	defer cancel()

	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if r.grpcServer != nil {
		done := make(chan struct{})
		go func() {
			r.grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			r.grpcServer.Stop()
			<-done
		}
	}
	if r.workerCancel != nil {
		r.workerCancel()
		<-r.workerDone
	}

	recordCtx, cancelRecord := terminalRecordContext(ctx)
	defer cancelRecord()
	if err := r.service.MarkStopped(recordCtx, reason); err != nil {
		errs = append(errs, err)
	}
	r.closeAll()
	r.logger.Info("compliance gateway stopped", "reason", reason)
	return errors.Join(errs...)
}

// HasServers reports whether Wait should block after startup.
func (r *Runtime) HasServers() bool {
	return r.httpServer != nil || r.grpcServer != nil
}

func (r *Runtime) Service() *application.Service {
	return r.service
}

func (r *Runtime) HTTPAddr() string {
	if r.httpLis == nil {
		return ""
	}
	return r.httpLis.Addr().String()
}

func (r *Runtime) GRPCAddr() string {
	if r.grpcLis == nil {
		return ""
	}
	return r.grpcLis.Addr().String()
}

func (r *Runtime) addCloser(name string, fn func() error) {
	r.closers = append(r.closers, namedCloser{name: name, close: fn})
}

func (r *Runtime) closeAll() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.close(); err != nil {
			r.logger.Warn("close component failed", "component", c.name, "error", err)
		}
	}
	r.closers = nil
}

// terminalRecordContext bounds the final lifecycle writes independently of the drain
// deadline, which may already be spent.
func terminalRecordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), terminalRecordTimeout)
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func newLogger(cfg Config) *slog.Logger {
	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		"service", cfg.ServiceID,
		"profile", cfg.Profile,
	)
}
