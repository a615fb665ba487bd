package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// TaskFunc is a scheduled unit of work. It returns the number of items it
// processed.
type TaskFunc func(ctx context.Context) (int, error)

// TaskResult describes one execution of a scheduled task.
type TaskResult struct {
	StartedAt time.Time
	EndedAt   time.Time
	Items     int
	Err       error
}

// Scheduler runs one task on a fixed interval, for example a full re-sync
// alongside a filesystem watch. Runs never overlap.
type Scheduler struct {
	name     string
	interval time.Duration
	task     TaskFunc

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	last    *TaskResult
	runs    int
}

// NewScheduler creates a scheduler. The first run happens one interval
// after Start.
func NewScheduler(name string, interval time.Duration, task TaskFunc) *Scheduler {
	return &Scheduler{name: name, interval: interval, task: task}
}

// Start runs the task every interval. It blocks until ctx is done or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler %s: interval must be positive, got %s", s.name, s.interval)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runTask(ctx)
		}
	}
}

// Stop ends a running Start loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
}

// LastResult returns the most recent run, or nil before the first.
func (s *Scheduler) LastResult() *TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	r := *s.last
	return &r
}

// Runs returns how many times the task has run.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) runTask(ctx context.Context) {
	result := &TaskResult{StartedAt: time.Now()}
	result.Items, result.Err = s.task(ctx)
	result.EndedAt = time.Now()

	switch {
	case result.Err == nil:
		logger.Debug("Scheduled %s: %d items in %s", s.name, result.Items, result.EndedAt.Sub(result.StartedAt))
	case errors.Is(result.Err, context.Canceled):
	default:
		logger.Warn("Scheduled %s failed: %v", s.name, result.Err)
	}

	s.mu.Lock()
	s.last = result
	s.runs++
	s.mu.Unlock()
}
