package executor

import "context"

// Task is a unit of work run by a WorkerPool.
type Task interface {
	Execute(ctx context.Context) error
	Name() string
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

func (f TaskFunc) Name() string {
	return "TaskFunc"
}

// NamedTask is a TaskFunc carrying a name for logging.
type NamedTask struct {
	name string
	task TaskFunc
}

func NewNamedTask(name string, task TaskFunc) *NamedTask {
	return &NamedTask{
		name: name,
		task: task,
	}
}

func (nt *NamedTask) Execute(ctx context.Context) error {
	return nt.task(ctx)
}

func (nt *NamedTask) Name() string {
	return nt.name
}
