package core

import "context"

type (
	// Task is a unit of background work. Run is retried up to MaxRetries times on error.
	Task struct {
		Name       string
		MaxRetries uint64
		Run        func(ctx context.Context) error
	}

	// TaskQueue is any service that can run tasks in the background.
	TaskQueue interface {
		Enqueue(task Task)
	}
)
