// Package bgservice manages the one long-running helper process the
// pipeline cannot invoke inline: the ML extractor's subprocess
// (spec.md §4.8). It is not a general plugin host — one Service value
// per helper binary, a startup handshake poll against a local HTTP
// health endpoint, idle-timeout shutdown, and PID-file orphan reaping on
// application start. Grounded on the teacher's exec.CommandContext
// subprocess-invocation shape (internal/ffmpeg/probe.go, worker.go) and
// its os/signal graceful-shutdown idiom in cmd/shrinkray/main.go,
// generalized from a one-shot child process to a supervised long-lived
// one.
package bgservice

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/nightfoxfilms/ingestcore/internal/logger"
)

// Options configures a Service.
type Options struct {
	BinaryPath   string
	Args         []string
	HealthURL    string // polled with GET until it returns 200
	PIDFilePath  string

	StartupTimeout     time.Duration
	HealthPollInterval time.Duration
	IdleTimeout        time.Duration
	IdleCheckInterval  time.Duration
	ShutdownGrace      time.Duration
}

func (o Options) withDefaults() Options {
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = 30 * time.Second
	}
	if o.HealthPollInterval <= 0 {
		o.HealthPollInterval = 200 * time.Millisecond
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 5 * time.Minute
	}
	if o.IdleCheckInterval <= 0 {
		o.IdleCheckInterval = o.IdleTimeout / 4
		if o.IdleCheckInterval <= 0 {
			o.IdleCheckInterval = time.Second
		}
	}
	if o.ShutdownGrace <= 0 {
		o.ShutdownGrace = 5 * time.Second
	}
	return o
}

// Service supervises one subprocess instance, starting it lazily and
// stopping it after a period of inactivity.
type Service struct {
	opts Options

	mu       sync.Mutex
	cmd      *exec.Cmd
	lastUsed time.Time
	stopIdle chan struct{}
	running  bool
}

// New builds a Service. The process is not started until Start is
// called.
func New(opts Options) *Service {
	return &Service{opts: opts.withDefaults()}
}

// Start launches the subprocess if it is not already running, writes its
// PID file, and blocks until the health endpoint answers or
// StartupTimeout elapses.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	cmd := exec.Command(s.opts.BinaryPath, s.opts.Args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("bgservice: start %s: %w", s.opts.BinaryPath, err)
	}

	if s.opts.PIDFilePath != "" {
		if err := writePIDFile(s.opts.PIDFilePath, cmd.Process.Pid); err != nil {
			logger.Warn("bgservice: write pid file failed", "path", s.opts.PIDFilePath, "error", err)
		}
	}

	if err := s.waitHealthy(ctx); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("bgservice: %s did not become healthy: %w", s.opts.BinaryPath, err)
	}

	s.cmd = cmd
	s.lastUsed = time.Now()
	s.running = true
	s.stopIdle = make(chan struct{})
	go s.watchIdle(s.stopIdle)

	logger.Info("bgservice: started", "binary", s.opts.BinaryPath, "pid", cmd.Process.Pid)
	return nil
}

func (s *Service) waitHealthy(ctx context.Context) error {
	deadline := time.Now().Add(s.opts.StartupTimeout)
	client := &http.Client{Timeout: s.opts.HealthPollInterval}

	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.HealthURL, nil)
		if err == nil {
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.HealthPollInterval):
		}
	}
	return fmt.Errorf("timed out after %s", s.opts.StartupTimeout)
}

// Touch records that the caller is about to hand the service work,
// resetting the idle-timeout clock.
func (s *Service) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
}

func (s *Service) watchIdle(stop chan struct{}) {
	ticker := time.NewTicker(s.opts.IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			idleFor := time.Since(s.lastUsed)
			shouldStop := s.running && idleFor >= s.opts.IdleTimeout
			s.mu.Unlock()
			if shouldStop {
				logger.Info("bgservice: idle timeout reached, stopping", "binary", s.opts.BinaryPath, "idle_for", idleFor)
				_ = s.Stop()
				return
			}
		}
	}
}

// Stop signals the running subprocess to terminate and waits up to
// ShutdownGrace before giving up. It is safe to call when the service is
// already stopped.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	if s.stopIdle != nil {
		close(s.stopIdle)
		s.stopIdle = nil
	}

	err := terminate(s.cmd.Process, s.opts.ShutdownGrace)
	s.running = false
	s.cmd = nil
	if s.opts.PIDFilePath != "" {
		removePIDFile(s.opts.PIDFilePath)
	}
	return err
}

// Running reports whether the subprocess is currently supervised.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ReapOrphan reads the PID file at pidFilePath left behind by a previous run. If the
// recorded process is still alive it is signalled to terminate; the PID
// file is removed either way. Call this once at application start before
// any Service for the same binary is constructed.
func ReapOrphan(pidFilePath string, grace time.Duration) error {
	pid, ok, err := readPIDFile(pidFilePath)
	if err != nil {
		return fmt.Errorf("bgservice: read pid file: %w", err)
	}
	if !ok {
		return nil
	}
	defer removePIDFile(pidFilePath)

	if !processAlive(pid) {
		return nil
	}

	logger.Warn("bgservice: reaping orphaned process from previous run", "pid", pid, "pid_file", pidFilePath)
	return terminateByPID(pid, grace)
}
