package bgservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

// The test binary re-execs itself as the supervised "subprocess" under
// the BGSERVICE_HELPER_ADDR env var, serving a health endpoint until it
// receives SIGTERM. This is the standard way to exercise exec.Command
// lifecycle code without shipping a real companion binary (the same
// pattern os/exec's own tests use for their helper process).
func TestMain(m *testing.M) {
	if addr := os.Getenv("BGSERVICE_HELPER_ADDR"); addr != "" {
		runHelper(addr)
		return
	}
	os.Exit(m.Run())
}

func runHelper(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	os.Exit(0)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func helperOptions(t *testing.T, addr string) Options {
	t.Helper()
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("find test binary: %v", err)
	}
	return Options{
		BinaryPath:         self,
		HealthURL:          fmt.Sprintf("http://%s/health", addr),
		PIDFilePath:        filepath.Join(t.TempDir(), "helper.pid"),
		StartupTimeout:     3 * time.Second,
		HealthPollInterval: 20 * time.Millisecond,
		IdleTimeout:        150 * time.Millisecond,
		IdleCheckInterval:  20 * time.Millisecond,
		ShutdownGrace:      time.Second,
	}
}

// withHelperEnv sets the env var the re-exec'd helper process reads for
// its listen address; exec.Command inherits the parent's environment, so
// t.Setenv for the duration of fn is enough to reach the child.
func withHelperEnv(t *testing.T, addr string, fn func()) {
	t.Helper()
	t.Setenv("BGSERVICE_HELPER_ADDR", addr)
	fn()
}

func TestStartWaitsForHealthAndStop(t *testing.T) {
	addr := freeAddr(t)
	opts := helperOptions(t, addr)
	svc := New(opts)

	withHelperEnv(t, addr, func() {
		if err := svc.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
	})
	defer svc.Stop()

	if !svc.Running() {
		t.Fatalf("expected service to be running after start")
	}

	if _, err := os.Stat(opts.PIDFilePath); err != nil {
		t.Fatalf("expected pid file to be written: %v", err)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if svc.Running() {
		t.Fatalf("expected service to report stopped")
	}
	if _, err := os.Stat(opts.PIDFilePath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file to be removed after stop")
	}
}

func TestStartFailsWhenHealthNeverAnswers(t *testing.T) {
	addr := freeAddr(t) // nothing ever listens here
	opts := helperOptions(t, addr)
	opts.StartupTimeout = 150 * time.Millisecond
	opts.BinaryPath = "sleep"
	opts.Args = []string{"5"}

	svc := New(opts)
	if err := svc.Start(context.Background()); err == nil {
		svc.Stop()
		t.Fatalf("expected start to fail when health endpoint never answers")
	}
}

func TestIdleTimeoutStopsService(t *testing.T) {
	addr := freeAddr(t)
	opts := helperOptions(t, addr)
	svc := New(opts)

	withHelperEnv(t, addr, func() {
		if err := svc.Start(context.Background()); err != nil {
			t.Fatalf("start: %v", err)
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !svc.Running() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected idle timeout to stop the service")
}

func TestReapOrphanRemovesStalePIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "stale.pid")
	if err := writePIDFile(pidFile, 999999); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	if err := ReapOrphan(pidFile, 100*time.Millisecond); err != nil {
		t.Fatalf("reap orphan: %v", err)
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Fatalf("expected pid file to be removed")
	}
}

func TestReapOrphanNoFileIsNoop(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "missing.pid")
	if err := ReapOrphan(pidFile, 100*time.Millisecond); err != nil {
		t.Fatalf("expected no error for missing pid file, got %v", err)
	}
}
