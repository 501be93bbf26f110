package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/talos/pkg/logger"
)

// scriptedWorker runs a caller-provided loop
type scriptedWorker struct {
	name string
	run  func(ctx context.Context) error
}

func (w *scriptedWorker) Name() string      { return w.name }
func (w *scriptedWorker) Symbols() []string { return []string{"BTC/CAD"} }
func (w *scriptedWorker) Run(ctx context.Context) error {
	return w.run(ctx)
}

func blockingWorker(name string) *scriptedWorker {
	return &scriptedWorker{name: name, run: func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}}
}

func TestSupervisorStartStop(t *testing.T) {
	sup := NewSupervisor(blockingWorker("w"), logger.Nop())
	assert.Equal(t, StateIdle, sup.State())

	sup.Start()
	assert.Equal(t, StateRunning, sup.State())

	sup.Stop()
	assert.Equal(t, StateIdle, sup.State())
}

func TestSupervisorStartIsIdempotent(t *testing.T) {
	started := make(chan struct{}, 4)
	w := &scriptedWorker{name: "w", run: func(ctx context.Context) error {
		started <- struct{}{}
		<-ctx.Done()
		return nil
	}}

	sup := NewSupervisor(w, logger.Nop())
	sup.Start()
	sup.Start()
	sup.Start()

	<-started
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, started, 0, "loop must be spawned exactly once")

	sup.Stop()
}

func TestSupervisorCrashTransitionsToErrored(t *testing.T) {
	w := &scriptedWorker{name: "w", run: func(ctx context.Context) error {
		return errors.New("boom")
	}}

	sup := NewSupervisor(w, logger.Nop())
	sup.Start()

	require.Eventually(t, func() bool {
		return sup.State() == StateErrored
	}, time.Second, 5*time.Millisecond)

	// Stop on an errored worker is a no-op
	sup.Stop()
	assert.Equal(t, StateErrored, sup.State())
}

func TestSupervisorPanicTransitionsToErrored(t *testing.T) {
	w := &scriptedWorker{name: "w", run: func(ctx context.Context) error {
		panic("bad")
	}}

	sup := NewSupervisor(w, logger.Nop())
	sup.Start()

	require.Eventually(t, func() bool {
		return sup.State() == StateErrored
	}, time.Second, 5*time.Millisecond)
}

func TestSupervisorSelfExitReturnsToIdle(t *testing.T) {
	w := &scriptedWorker{name: "w", run: func(ctx context.Context) error {
		return nil
	}}

	sup := NewSupervisor(w, logger.Nop())
	sup.Start()

	require.Eventually(t, func() bool {
		return sup.State() == StateIdle
	}, time.Second, 5*time.Millisecond)
}

func TestSupervisorStopTimeout(t *testing.T) {
	// worker ignores cancellation
	release := make(chan struct{})
	w := &scriptedWorker{name: "w", run: func(ctx context.Context) error {
		<-release
		return nil
	}}

	sup := NewSupervisor(w, logger.Nop())
	sup.stopTimeout = 50 * time.Millisecond
	sup.Start()

	done := make(chan struct{})
	go func() {
		sup.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after timeout")
	}
	assert.Equal(t, StateIdle, sup.State())
	close(release)
}

func TestSupervisorErroredCanRestart(t *testing.T) {
	calls := 0
	w := &scriptedWorker{name: "w", run: func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("boom")
		}
		<-ctx.Done()
		return nil
	}}

	sup := NewSupervisor(w, logger.Nop())
	sup.Start()
	require.Eventually(t, func() bool {
		return sup.State() == StateErrored
	}, time.Second, 5*time.Millisecond)

	sup.Start()
	assert.Equal(t, StateRunning, sup.State())
	sup.Stop()
}
