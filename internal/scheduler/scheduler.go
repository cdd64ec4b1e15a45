// Package scheduler runs delayed, channel-keyed callbacks for the close
// request timeout and fire-and-forget channel removals.
package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketbot/internal/clock"
)

// TaskID identifies one armed callback.
type TaskID string

// Func is a scheduled callback. The context is cancelled when the scheduler
// stops.
type Func func(ctx context.Context)

// Scheduler keeps at most one armed task per key. Scheduling a key again
// supersedes the previous task.
type Scheduler struct {
	clock  clock.Clock
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	tasks map[string]*task
}

type task struct {
	id     TaskID
	fireAt time.Time
	timer  clock.Timer
}

// New creates a scheduler driven by clk.
func New(clk clock.Clock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:  clk,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*task),
	}
}

// Schedule arms fn to run after delay under key, replacing any task already
// armed for key.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn Func) TaskID {
	t := &task{id: TaskID(uuid.NewString()), fireAt: s.clock.Now().Add(delay)}

	s.mu.Lock()
	if prev, ok := s.tasks[key]; ok {
		if prev.timer != nil {
			prev.timer.Stop()
		}
		s.logger.Debug("superseding scheduled task", zap.String("key", key), zap.String("task_id", string(prev.id)))
	}
	s.tasks[key] = t
	s.mu.Unlock()

	timer := s.clock.AfterFunc(delay, func() { s.fire(key, t, fn) })

	s.mu.Lock()
	if s.tasks[key] == t {
		t.timer = timer
	}
	s.mu.Unlock()
	return t.id
}

// Cancel disarms the task for key. It reports whether a task was armed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	delete(s.tasks, key)
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// Pending returns the armed task for key, if any.
func (s *Scheduler) Pending(key string) (TaskID, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return "", time.Time{}, false
	}
	return t.id, t.fireAt, true
}

// Len returns the number of armed keyed tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Defer runs fn once after delay. There is no way to cancel it.
func (s *Scheduler) Defer(delay time.Duration, fn Func) {
	s.clock.AfterFunc(delay, func() { s.run("deferred", fn) })
}

// Stop disarms every keyed task and cancels the callback context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for key, t := range s.tasks {
		if t.timer != nil {
			t.timer.Stop()
		}
		delete(s.tasks, key)
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Scheduler) fire(key string, t *task, fn Func) {
	s.mu.Lock()
	if s.tasks[key] != t {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, key)
	s.mu.Unlock()

	s.run(key, fn)
}

func (s *Scheduler) run(key string, fn Func) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked",
				zap.String("key", key),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn(s.ctx)
}
