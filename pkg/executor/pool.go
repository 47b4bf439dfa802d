// Package executor provides the bounded worker pool that performs segment writes
// off the caller's goroutine.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/downfa11-org/segmentlog/util"
)

var (
	ErrPoolClosed  = errors.New("worker pool is not running")
	ErrPoolFull    = errors.New("worker pool queue is full")
	ErrNilTask     = errors.New("task cannot be nil")
	ErrPoolRunning = errors.New("worker pool is already running")
)

// WorkerPool runs submitted tasks on a fixed set of goroutines.
// Every accepted task runs to completion, including tasks still queued when Stop
// is called. Submit never blocks and reports rejection instead; SubmitWait
// blocks until a worker or queue slot takes the task.
type WorkerPool interface {
	Start() error
	Stop(ctx context.Context) error
	Submit(task Task) error
	SubmitWait(ctx context.Context, task Task) error
	Workers() int
	IsRunning() bool
}

type Config struct {
	Workers int
	// QueueSize 0 makes Submit a hand-off: a task is accepted only when a worker is idle.
	QueueSize int
}

func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 1024,
	}
}

type pool struct {
	name    string
	workers int
	queue   int

	mu      sync.RWMutex // running, tasks
	running bool
	stopped bool
	tasks   chan Task
	quit    chan struct{} // closed by Stop to release blocked SubmitWait callers
	once    sync.Once

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewWorkerPool(name string, cfg Config) WorkerPool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &pool{
		name:    name,
		workers: cfg.Workers,
		queue:   cfg.QueueSize,
	}
}

func (p *pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrPoolRunning
	}
	if p.stopped {
		return fmt.Errorf("%w: %s was stopped", ErrPoolClosed, p.name)
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.tasks = make(chan Task, p.queue)
	p.quit = make(chan struct{})
	p.running = true
	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker(i, p.tasks)
	}
	util.Debug("pool %s started with %d workers (queue=%d)", p.name, p.workers, p.queue)
	return nil
}

func (p *pool) worker(id int, tasks <-chan Task) {
	defer p.wg.Done()

	for task := range tasks {
		if err := task.Execute(p.ctx); err != nil {
			util.Debug("pool %s worker %d: task %s failed: %v", p.name, id, task.Name(), err)
		}
	}
}

// Stop rejects new tasks, lets the workers drain the queue and waits for them
// until ctx expires. The pool's context is cancelled only after the drain.
func (p *pool) Stop(ctx context.Context) error {
	p.mu.RLock()
	running, quit := p.running, p.quit
	p.mu.RUnlock()
	if !running {
		return nil
	}
	p.once.Do(func() { close(quit) })

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.cancel()
		close(done)
	}()

	select {
	case <-done:
		util.Debug("pool %s stopped", p.name)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop %s timeout: %w", p.name, ctx.Err())
	}
}

func (p *pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait hands task to the pool, waiting for room while the queue is full.
// It gives up with ErrPoolFull once ctx is done and with ErrPoolClosed when
// the pool stops.
func (p *pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
	}
	select {
	case p.tasks <- task:
		return nil
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrPoolFull, ctx.Err())
	}
}

func (p *pool) Workers() int {
	return p.workers
}

func (p *pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}
