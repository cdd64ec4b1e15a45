package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spec-kit/ticketbot/internal/service"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(context.Context) (service.CleanupReport, error) {
	r.calls.Add(1)
	return service.CleanupReport{FailedTenantIDs: []string{"g1"}}, r.err
}

func TestCleanupWorkerSweepsRepeatedly(t *testing.T) {
	runner := &countingRunner{err: errors.New("tenant g1 failed")}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	NewCleanupWorker(runner, 5*time.Millisecond, nil).Start(ctx)

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 sweeps, got %d", runner.calls.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
}

func TestCleanupWorkerDisabled(t *testing.T) {
	runner := &countingRunner{}
	NewCleanupWorker(runner, 0, nil).Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	if got := runner.calls.Load(); got != 0 {
		t.Fatalf("disabled worker ran %d sweeps", got)
	}
}
