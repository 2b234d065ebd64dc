package tasksvc

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/acadamier/backend/core"
)

// TaskResult is the outcome of a task run by a SyncQueue.
type TaskResult struct {
	Name     string
	Attempts int
	Err      error
}

// SyncQueue runs tasks as soon as they are enqueued, in the caller's goroutine, retrying without delay.
// Tasks enqueued by a running task run after it. Meant for tests.
type SyncQueue struct {
	mu      sync.Mutex
	running bool
	pending []core.Task
	results []TaskResult
}

var _ core.TaskQueue = (*SyncQueue)(nil)

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) Enqueue(task core.Task) {
	q.mu.Lock()
	q.pending = append(q.pending, task)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		attempts, err := runWithRetries(context.Background(), next, &backoff.ZeroBackOff{})

		q.mu.Lock()
		q.results = append(q.results, TaskResult{Name: next.Name, Attempts: attempts, Err: err})
		q.mu.Unlock()
	}
}

// Results returns the outcome of every task run so far, in order.
func (q *SyncQueue) Results() []TaskResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	res := make([]TaskResult, len(q.results))
	copy(res, q.results)
	return res
}

// Ran returns the names of the tasks run so far, in order.
func (q *SyncQueue) Ran() []string {
	results := q.Results()
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	return names
}

func (q *SyncQueue) Reset() {
	q.mu.Lock()
	q.results = nil
	q.mu.Unlock()
}
