package tasksvc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadamier/backend/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestPool(workers, queueSize int) *Pool {
	conf := &core.Config{Tasks: core.TasksConfig{Workers: workers, QueueSize: queueSize}}
	p := NewPool(conf, nopLogger{})
	p.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return p
}

func TestPoolRunsTasks(t *testing.T) {
	p := newTestPool(2, 8)
	p.Start()

	var count int32
	for i := 0; i < 20; i++ {
		p.Enqueue(core.Task{Name: "count", Run: func(context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		}})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, int32(20), atomic.LoadInt32(&count))

	p.Enqueue(core.Task{Name: "late", Run: func(context.Context) error {
		atomic.AddInt32(&count, 1)
		return nil
	}})
	assert.Equal(t, int32(20), atomic.LoadInt32(&count), "tasks enqueued after Stop are dropped")
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := newTestPool(2, 16)
	p.Start()

	var running, maxRunning int32
	for i := 0; i < 10; i++ {
		p.Enqueue(core.Task{Name: "slow", Run: func(context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				m := atomic.LoadInt32(&maxRunning)
				if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}})
	}

	require.NoError(t, p.Stop(context.Background()))
	assert.LessOrEqual(t, atomic.LoadInt32(&maxRunning), int32(2))
}

func TestRunWithRetries(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name         string
		maxRetries   uint64
		failures     int
		panics       bool
		wantAttempts int
		wantErr      bool
	}{
		{name: "success", maxRetries: 3, failures: 0, wantAttempts: 1},
		{name: "success after retries", maxRetries: 3, failures: 2, wantAttempts: 3},
		{name: "retries exhausted", maxRetries: 2, failures: 5, wantAttempts: 3, wantErr: true},
		{name: "no retries", maxRetries: 0, failures: 1, wantAttempts: 1, wantErr: true},
		{name: "panic is not retried", maxRetries: 3, panics: true, wantAttempts: 1, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int
			task := core.Task{
				Name:       tc.name,
				MaxRetries: tc.maxRetries,
				Run: func(context.Context) error {
					calls++
					if tc.panics {
						panic("oops")
					}
					if calls <= tc.failures {
						return errBoom
					}
					return nil
				},
			}

			attempts, err := runWithRetries(context.Background(), task, &backoff.ZeroBackOff{})
			assert.Equal(t, tc.wantAttempts, attempts)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSyncQueue(t *testing.T) {
	q := NewSyncQueue()
	var order []string

	q.Enqueue(core.Task{Name: "parent", Run: func(context.Context) error {
		q.Enqueue(core.Task{Name: "child", Run: func(context.Context) error {
			order = append(order, "child")
			return nil
		}})
		order = append(order, "parent")
		return nil
	}})

	assert.Equal(t, []string{"parent", "child"}, order, "nested tasks run after their parent")
	assert.Equal(t, []string{"parent", "child"}, q.Ran())

	q.Enqueue(core.Task{Name: "failing", MaxRetries: 2, Run: func(context.Context) error {
		return errors.New("nope")
	}})
	res := q.Results()
	require.Len(t, res, 3)
	assert.Equal(t, 3, res[2].Attempts)
	assert.Error(t, res[2].Err)
}

func TestScheduler(t *testing.T) {
	q := NewSyncQueue()
	s := NewScheduler(q)
	var ticks int32
	s.Every(5*time.Millisecond, func() core.Task {
		return core.Task{Name: "tick", Run: func(context.Context) error {
			atomic.AddInt32(&ticks, 1)
			return nil
		}}
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 2 }, time.Second, time.Millisecond)
	cancel()
	s.Wait()
}
