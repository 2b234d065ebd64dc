package tasksvc

import (
	"context"
	"sync"
	"time"

	"github.com/acadamier/backend/core"
)

type schedule struct {
	every time.Duration
	task  func() core.Task
}

// Scheduler periodically enqueues tasks.
type Scheduler struct {
	queue     core.TaskQueue
	schedules []schedule
	wg        sync.WaitGroup
}

func NewScheduler(queue core.TaskQueue) *Scheduler {
	return &Scheduler{queue: queue}
}

// Every registers a task to enqueue each time `every` elapses. Must be called before Start.
func (s *Scheduler) Every(every time.Duration, task func() core.Task) {
	s.schedules = append(s.schedules, schedule{every: every, task: task})
}

// Start enqueues the scheduled tasks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	for _, sch := range s.schedules {
		if sch.every <= 0 {
			continue
		}
		s.wg.Add(1)
		go func(sch schedule) {
			defer s.wg.Done()
			ticker := time.NewTicker(sch.every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.queue.Enqueue(sch.task())
				}
			}
		}(sch)
	}
}

// Wait blocks until every schedule stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
