package agent

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/talos/pkg/logger"
)

// State is the lifecycle state of a supervised worker
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateErrored  State = "errored"
)

// Worker is a long-running loop managed by a Supervisor.
// Run must observe ctx cancellation within one loop iteration and treat
// it as a normal exit.
type Worker interface {
	Name() string
	Symbols() []string
	Run(ctx context.Context) error
}

const defaultStopTimeout = 5 * time.Second

// Supervisor wraps a worker with a uniform start/stop lifecycle
// ⭐ SSOT: 워커 상태 전이는 슈퍼바이저에서만
//
// A crash (returned error or panic) transitions the worker to the
// terminal Errored state and never propagates to the caller.
type Supervisor struct {
	worker      Worker
	logger      *logger.Logger
	stopTimeout time.Duration

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor wraps a worker with lifecycle management
func NewSupervisor(worker Worker, log *logger.Logger) *Supervisor {
	if log == nil {
		log = logger.Nop()
	}
	return &Supervisor{
		worker:      worker,
		logger:      log,
		stopTimeout: defaultStopTimeout,
		state:       StateIdle,
	}
}

// State returns the current lifecycle state
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the worker loop. No-op if already running.
// An Errored worker may be restarted explicitly.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning || s.state == StateStopping {
		s.logger.WithField("agent", s.worker.Name()).Info("Agent already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateRunning

	go s.runLoop(ctx)

	s.logger.WithFields(map[string]interface{}{
		"agent":   s.worker.Name(),
		"symbols": s.worker.Symbols(),
	}).Info("Agent started")
}

// Stop signals cancellation and waits up to the stop timeout for a
// graceful exit. On timeout the loop is abandoned with a warning.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		s.logger.WithField("agent", s.worker.Name()).Warn("Agent did not stop within timeout, abandoning")
	}

	s.mu.Lock()
	if s.state == StateStopping {
		s.state = StateIdle
	}
	s.mu.Unlock()

	s.logger.WithField("agent", s.worker.Name()).Info("Agent stopped")
}

// runLoop executes the worker, converting crashes into the Errored state
func (s *Supervisor) runLoop(ctx context.Context) {
	defer close(s.done)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithFields(map[string]interface{}{
					"agent": s.worker.Name(),
					"panic": r,
				}).Error("Agent panicked")
				s.setState(StateErrored)
			}
		}()
		err = s.worker.Run(ctx)
	}()

	if err != nil && ctx.Err() == nil {
		s.logger.WithError(err).WithField("agent", s.worker.Name()).Error("Agent crashed")
		s.setState(StateErrored)
		return
	}

	// loop exited on its own or via cancellation
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

func (s *Supervisor) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
