// Package preview manages the local preview server of a builder project.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"goa.design/clue/log"
	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of the preview process.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

const (
	// DefaultStopGrace bounds the wait between interrupt and kill.
	DefaultStopGrace = 5 * time.Second

	// DefaultReadyTimeout bounds the wait for the preview URL to answer.
	DefaultReadyTimeout = 30 * time.Second
)

var (
	// ErrNoCommand indicates a manager configured without a command.
	ErrNoCommand = errors.New("preview: no command configured")

	// ErrNotReady indicates the preview URL did not answer in time.
	ErrNotReady = errors.New("preview: server not ready")
)

// Status describes the preview process.
type Status struct {
	State     State     `json:"state"`
	URL       string    `json:"url,omitempty"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	LastError string    `json:"last_error,omitempty"`
}

// Options configures a Manager.
type Options struct {
	// Command is the program and its arguments, e.g. ["npm", "run", "dev"].
	Command []string
	Dir     string
	Env     []string

	// URL is polled until it answers before the preview counts as running.
	// Empty means running as soon as the process starts.
	URL          string
	ReadyTimeout time.Duration
	StopGrace    time.Duration
}

// Manager owns at most one preview process.
type Manager struct {
	opts  Options
	group singleflight.Group

	mu     sync.Mutex
	status Status
	cmd    *exec.Cmd
	exited chan struct{}
}

// NewManager returns an idle manager.
func NewManager(opts Options) *Manager {
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	return &Manager{opts: opts, status: Status{State: StateIdle}}
}

// Status returns the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Start launches the preview process unless one is already running.
// Concurrent calls share one launch and its outcome.
func (m *Manager) Start(ctx context.Context) (Status, error) {
	ch := m.group.DoChan("start", func() (any, error) {
		return m.start(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return m.Status(), res.Err
		}
		return res.Val.(Status), nil
	case <-ctx.Done():
		return m.Status(), ctx.Err()
	}
}

func (m *Manager) start(ctx context.Context) (Status, error) {
	m.mu.Lock()
	switch m.status.State {
	case StateRunning:
		s := m.status
		m.mu.Unlock()
		return s, nil
	case StateStopping:
		m.mu.Unlock()
		return m.Status(), fmt.Errorf("preview: stop in progress")
	}
	if len(m.opts.Command) == 0 {
		m.mu.Unlock()
		return m.Status(), ErrNoCommand
	}

	cmd := exec.Command(m.opts.Command[0], m.opts.Command[1:]...)
	cmd.Dir = m.opts.Dir
	cmd.Env = append(os.Environ(), m.opts.Env...)
	m.status = Status{State: StateStarting, URL: m.opts.URL}
	if err := cmd.Start(); err != nil {
		m.status = Status{State: StateIdle, LastError: err.Error()}
		m.mu.Unlock()
		return m.Status(), fmt.Errorf("preview: start %s: %w", m.opts.Command[0], err)
	}
	exited := make(chan struct{})
	m.cmd = cmd
	m.exited = exited
	m.status.PID = cmd.Process.Pid
	m.mu.Unlock()

	go m.wait(ctx, cmd, exited)

	log.Info(ctx, log.KV{K: "msg", V: "preview starting"},
		log.KV{K: "pid", V: cmd.Process.Pid},
		log.KV{K: "command", V: m.opts.Command[0]})

	if err := m.awaitReady(ctx, exited); err != nil {
		_, _ = m.Stop(ctx)
		m.mu.Lock()
		m.status.LastError = err.Error()
		m.mu.Unlock()
		return m.Status(), err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != cmd {
		return m.status, fmt.Errorf("preview: process exited during start")
	}
	m.status.State = StateRunning
	m.status.StartedAt = time.Now()
	return m.status, nil
}

// wait reaps the process and returns the manager to idle.
func (m *Manager) wait(ctx context.Context, cmd *exec.Cmd, exited chan struct{}) {
	err := cmd.Wait()
	defer close(exited)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != cmd {
		return
	}
	m.cmd = nil
	m.exited = nil
	last := ""
	if err != nil && m.status.State != StateStopping {
		last = err.Error()
	}
	m.status = Status{State: StateIdle, LastError: last}
	log.Info(ctx, log.KV{K: "msg", V: "preview exited"}, log.KV{K: "pid", V: cmd.Process.Pid})
}

func (m *Manager) awaitReady(ctx context.Context, exited <-chan struct{}) error {
	if m.opts.URL == "" {
		select {
		case <-exited:
			return fmt.Errorf("preview: process exited during start")
		default:
			return nil
		}
	}

	deadline := time.NewTimer(m.opts.ReadyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	client := &http.Client{Timeout: time.Second}
	for {
		resp, err := client.Get(m.opts.URL)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		select {
		case <-exited:
			return fmt.Errorf("preview: process exited during start")
		case <-deadline.C:
			return fmt.Errorf("%w: %s after %s", ErrNotReady, m.opts.URL, m.opts.ReadyTimeout)
		case <-tick.C:
		}
	}
}

// Stop interrupts the preview process and kills it if it has not exited
// within the grace period. Stopping an idle manager is a no-op.
func (m *Manager) Stop(ctx context.Context) (Status, error) {
	m.mu.Lock()
	cmd, exited := m.cmd, m.exited
	if cmd == nil {
		s := m.status
		m.mu.Unlock()
		return s, nil
	}
	m.status.State = StateStopping
	m.mu.Unlock()

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}
	grace := time.NewTimer(m.opts.StopGrace)
	defer grace.Stop()
	select {
	case <-exited:
	case <-grace.C:
		log.Warn(ctx, log.KV{K: "msg", V: "preview ignored interrupt, killing"},
			log.KV{K: "pid", V: cmd.Process.Pid})
		_ = cmd.Process.Kill()
		<-exited
	}
	return m.Status(), nil
}
