package tasksvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/remeh/sizedwaitgroup"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
)

// Pool runs enqueued tasks in the background, with at most `workers` tasks running at once.
// A failing task is retried with an exponential backoff, up to its MaxRetries.
type Pool struct {
	queue      chan core.Task
	swg        sizedwaitgroup.SizedWaitGroup
	overflow   sync.WaitGroup
	logger     core.Logger
	tracer     trace.Tracer
	newBackOff func() backoff.BackOff

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

var _ core.TaskQueue = (*Pool)(nil)

func NewPool(conf *core.Config, logger core.Logger) *Pool {
	workers := conf.Tasks.Workers
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:  make(chan core.Task, conf.Tasks.QueueSize),
		swg:    sizedwaitgroup.New(workers),
		logger: logger,
		tracer: otel.Tracer("tasks/pool"),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start dispatches queued tasks to workers until the pool is stopped.
func (p *Pool) Start() {
	go func() {
		defer close(p.done)
		for task := range p.queue {
			p.swg.Add()
			go func(task core.Task) {
				defer p.swg.Done()
				p.run(task)
			}(task)
		}
		p.swg.Wait()
		p.overflow.Wait()
	}()
}

// Enqueue never blocks: when the queue is full, the task runs in its own goroutine, outside of the worker bound.
// Tasks enqueued after Stop are dropped.
func (p *Pool) Enqueue(task core.Task) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn(fmt.Sprintf("tasks.Enqueue: pool stopped, dropping %q", task.Name))
		return
	}

	select {
	case p.queue <- task:
	default:
		p.logger.Warn(fmt.Sprintf("tasks.Enqueue: queue full, running %q immediately", task.Name))
		p.overflow.Add(1)
		go func() {
			defer p.overflow.Done()
			p.run(task)
		}()
	}
}

// Stop stops accepting tasks and waits for the queued ones to complete, or for ctx to be done.
// Running tasks get their context cancelled when ctx is done first.
func (p *Pool) Stop(ctx context.Context) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})

	select {
	case <-p.done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) run(task core.Task) {
	ctx, span := p.tracer.Start(p.ctx, "task "+task.Name)
	defer span.End()

	start := time.Now()
	attempts, err := runWithRetries(ctx, task, p.newBackOff())
	span.SetAttributes(attribute.Int("task.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		p.logger.Error(
			fmt.Sprintf("tasks.run: %s failed after %d attempt(s): %v", task.Name, attempts, err),
			err,
			map[string]interface{}{"task": task.Name, "attempts": attempts},
		)
		return
	}
	p.logger.Debug(fmt.Sprintf("tasks.run: %s done in %v", task.Name, time.Since(start)))
}

// runWithRetries runs the task until it succeeds, and returns the number of attempts made.
func runWithRetries(ctx context.Context, task core.Task, bo backoff.BackOff) (int, error) {
	var attempts int
	op := func() (err error) {
		attempts++
		defer func() {
			if r := recover(); r != nil {
				err = backoff.Permanent(fmt.Errorf("panic: %v", r))
			}
		}()
		return task.Run(ctx)
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, task.MaxRetries), ctx))
	return attempts, err
}
