package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/adapters/security"
	"github.com/viralforge/mesh/services/trust-compliance/M99-compliance-gateway/internal/domain"
)

const testAdminSecret = "test-admin-secret-with-32-bytes-min!"

func newTestApplication(args []string, env map[string]string) *Application {
	merged := map[string]string{
		"GATEWAY_PROFILE":    "test",
		"GATEWAY_CONFIG_DIR": repoConfigDir,
	}
	for k, v := range env {
		merged[k] = v
	}
	app := NewApplication(args)
	app.getenv = envMap(merged)
	return app
}

func localURL(t *testing.T, addr, path string) string {
	t.Helper()
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split listener address %q: %v", addr, err)
	}
	return fmt.Sprintf("http://127.0.0.1:%s%s", port, path)
}

func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := lis.Addr().(*net.TCPAddr).Port
	_ = lis.Close()
	return port
}

func waitReady(t *testing.T, app *Application) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if app.Ready() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("application did not become ready, state=%s", app.State())
}

func TestContextLoadsUnderTestProfile(t *testing.T) {
	app := newTestApplication(nil, nil)
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if app.State() != domain.StateReady || !app.Ready() {
		t.Fatalf("expected ready state, got %s", app.State())
	}

	rt := app.Runtime()
	if rt == nil || rt.HTTPAddr() == "" || rt.GRPCAddr() == "" {
		t.Fatalf("expected wired http and grpc listeners")
	}
	if view := rt.Service().Instance(); view.Profile != "test" || view.ServiceID != "M99-Compliance-Gateway" {
		t.Fatalf("unexpected instance view %+v", view)
	}

	resp, err := http.Get(localURL(t, rt.HTTPAddr(), "/readyz"))
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected readyz 200, got %d", resp.StatusCode)
	}

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if app.State() != domain.StateStopped {
		t.Fatalf("expected stopped after shutdown, got %s", app.State())
	}
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown must be a no-op, got %v", err)
	}
}

func TestConstructEntryPointNeverFails(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		app := NewApplication(nil)
		if app == nil {
			t.Fatalf("construction %d returned nil", i)
		}
		if app.State() != domain.StateUninitialized {
			t.Fatalf("expected uninitialized, got %s", app.State())
		}
		if len(app.Args()) != 0 || app.Runtime() != nil {
			t.Fatalf("constructed application must hold no args and no runtime")
		}
		if err := app.Shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown before start must be a no-op, got %v", err)
		}
		seen[app.InstanceID().String()] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected distinct instance ids, got %d", len(seen))
	}
}

func TestNewApplicationCopiesArguments(t *testing.T) {
	t.Parallel()

	args := []string{"--profile=test", "serve"}
	app := NewApplication(args)
	args[0] = "--profile=production"
	if got := app.Args(); got[0] != "--profile=test" || len(got) != 2 {
		t.Fatalf("arguments must be copied on construction, got %v", got)
	}
}

func TestStartFailsOnMissingRequiredConfiguration(t *testing.T) {
	t.Parallel()

	app := newTestApplication(nil, map[string]string{"REQUIRED_DEPENDENCIES": "postgres"})
	err := app.Start(context.Background())

	var initErr *InitializationError
	if !errors.As(err, &initErr) {
		t.Fatalf("expected InitializationError, got %v", err)
	}
	if initErr.Component != "config" || !errors.Is(err, domain.ErrMissingConfiguration) {
		t.Fatalf("unexpected initialization error %+v", initErr)
	}
	if app.State() != domain.StateStopped || app.Ready() || app.Runtime() != nil {
		t.Fatalf("failed start must end stopped without runtime, got %s", app.State())
	}
	if ExitCode(err) != ExitInitializationError {
		t.Fatalf("expected exit code %d, got %d", ExitInitializationError, ExitCode(err))
	}
}

func TestStartRejectsUnknownProperty(t *testing.T) {
	t.Parallel()

	app := newTestApplication([]string{"--server.port=8080"}, nil)
	err := app.Start(context.Background())

	var initErr *InitializationError
	if !errors.As(err, &initErr) || initErr.Component != "config" {
		t.Fatalf("expected config InitializationError, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestStartFailsWhenHTTPPortIsTaken(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("occupy port: %v", err)
	}
	defer lis.Close()
	port := lis.Addr().(*net.TCPAddr).Port

	app := newTestApplication([]string{"--http.port=" + strconv.Itoa(port)}, nil)
	err = app.Start(context.Background())

	var initErr *InitializationError
	if !errors.As(err, &initErr) || initErr.Component != "http" {
		t.Fatalf("expected http InitializationError, got %v", err)
	}
	if app.State() != domain.StateStopped {
		t.Fatalf("expected stopped, got %s", app.State())
	}
}

func TestNewRuntimeReleasesComponentsOnFailure(t *testing.T) {
	t.Parallel()

	occupied, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("occupy port: %v", err)
	}
	defer occupied.Close()

	cfg := defaultConfig()
	cfg.Profile = "test"
	cfg.LogLevel = "error"
	cfg.HTTPPort = freePort(t)
	cfg.GRPCPort = occupied.Addr().(*net.TCPAddr).Port

	lifecycle := domain.NewLifecycle(uuid.New(), cfg.ServiceID, cfg.Profile, 0)
	_, err = NewRuntime(context.Background(), cfg, lifecycle)

	var initErr *InitializationError
	if !errors.As(err, &initErr) || initErr.Component != "grpc" {
		t.Fatalf("expected grpc InitializationError, got %v", err)
	}

	released, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		t.Fatalf("http listener must be released after failed wiring: %v", err)
	}
	_ = released.Close()
}

func TestStartTwiceFails(t *testing.T) {
	app := newTestApplication(nil, nil)
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer app.Shutdown(context.Background())

	err := app.Start(context.Background())
	var initErr *InitializationError
	if !errors.As(err, &initErr) || initErr.Component != "lifecycle" {
		t.Fatalf("expected lifecycle InitializationError, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if app.State() != domain.StateReady {
		t.Fatalf("second start must not disturb a ready instance, got %s", app.State())
	}
}

func TestRunWithoutServersStopsCleanly(t *testing.T) {
	t.Parallel()

	app := newTestApplication([]string{"--http.enabled=false", "--grpc.enabled=false"}, nil)
	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run without servers did not return")
	}
	if app.State() != domain.StateStopped {
		t.Fatalf("expected stopped, got %s", app.State())
	}
	if ExitCode(nil) != ExitOK {
		t.Fatalf("clean shutdown must map to exit code 0")
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	app := newTestApplication(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	waitReady(t, app)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return after cancellation")
	}
	if app.State() != domain.StateStopped {
		t.Fatalf("expected stopped, got %s", app.State())
	}
}

func waitRun(t *testing.T, done <-chan error, cause string) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return after %s", cause)
	}
}

func TestRunReturnsAfterShutdown(t *testing.T) {
	app := newTestApplication(nil, nil)
	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()
	waitReady(t, app)

	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if app.State() != domain.StateStopped {
		t.Fatalf("expected stopped after shutdown, got %s", app.State())
	}
	waitRun(t, done, "Shutdown")
}

func TestRunStopsOnTerminationSignal(t *testing.T) {
	app := newTestApplication(nil, nil)
	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()
	waitReady(t, app)

	if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("send SIGTERM: %v", err)
	}
	waitRun(t, done, "SIGTERM")
	if app.State() != domain.StateStopped {
		t.Fatalf("expected stopped, got %s", app.State())
	}
}

func TestStartAbortsWhenInterruptedDuringWiring(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := newTestApplication(nil, nil)
	err := app.Start(ctx)

	var initErr *InitializationError
	if !errors.As(err, &initErr) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected InitializationError wrapping context.Canceled, got %v", err)
	}
	if app.State() != domain.StateStopped || app.Runtime() != nil {
		t.Fatalf("interrupted start must end stopped without runtime, got %s", app.State())
	}
}

func TestTerminalRecordContextOutlivesDrainDeadline(t *testing.T) {
	t.Parallel()

	drainCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-drainCtx.Done()

	recordCtx, cancelRecord := terminalRecordContext(drainCtx)
	defer cancelRecord()
	if err := recordCtx.Err(); err != nil {
		t.Fatalf("terminal recording must not inherit the spent drain deadline: %v", err)
	}
	deadline, ok := recordCtx.Deadline()
	if !ok || time.Until(deadline) > terminalRecordTimeout {
		t.Fatalf("terminal recording must have its own bounded deadline, got %v (%v)", deadline, ok)
	}
}

func TestRunStopsOnManagementShutdown(t *testing.T) {
	app := newTestApplication(nil, map[string]string{"ADMIN_JWT_SECRET": testAdminSecret})
	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()
	waitReady(t, app)

	signer, err := security.NewHMACVerifier(testAdminSecret, "m99-compliance-gateway")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	token, err := signer.Sign("ops-oncall", "admin", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, localURL(t, app.Runtime().HTTPAddr(), "/admin/v1/shutdown"), strings.NewReader(`{"reason":"maintenance window"}`))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("shutdown request: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return after management shutdown")
	}
	if app.State() != domain.StateStopped {
		t.Fatalf("expected stopped, got %s", app.State())
	}
}

func TestStartEndsReadyOrStopped(t *testing.T) {
	t.Parallel()

	cases := [][]string{
		{"--grpc.enabled=false"},
		{"--http.enabled=false"},
		{"--log.level=loud"},
		{"--profile=missing"},
		{"--registry.ttl=1s", "--heartbeat.interval=2s"},
	}
	for _, args := range cases {
		app := newTestApplication(args, nil)
		err := app.Start(context.Background())
		switch {
		case err == nil && app.State() == domain.StateReady:
			_ = app.Shutdown(context.Background())
		case err != nil && app.State() == domain.StateStopped:
			var initErr *InitializationError
			if !errors.As(err, &initErr) {
				t.Fatalf("%v: expected InitializationError, got %v", args, err)
			}
		default:
			t.Fatalf("%v: start left state %s with err %v", args, app.State(), err)
		}
	}
}

func TestRunEntryPoint(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), []string{
		"--profile=test",
		"--config.dir=" + repoConfigDir,
		"--http.enabled=false",
		"--grpc.enabled=false",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}
