package parallel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Pool manages a fixed set of worker goroutines used to fan health checks
// out across targets.
type Pool struct {
	// Number of worker goroutines
	workers int

	// Size of task channel buffer
	bufferSize int

	// Task channel
	tasks chan task

	// Wait group for workers
	wg sync.WaitGroup

	// State
	running bool
	mu      sync.RWMutex

	// Stats
	totalTasks     int64
	completedTasks int64
	failedTasks    int64
}

// task is a unit of work submitted to the pool.
type task struct {
	fn     func(context.Context) error
	ctx    context.Context
	result chan<- error
}

// NewPool creates a new worker pool
func NewPool(workers, bufferSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	if bufferSize <= 0 {
		bufferSize = 10
	}

	return &Pool{
		workers:    workers,
		bufferSize: bufferSize,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.tasks = make(chan task, p.bufferSize)

	p.wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go p.worker(i)
	}

	log.Debug().
		Int("workers", p.workers).
		Int("buffer_size", p.bufferSize).
		Msg("Started parallel execution pool")
}

// Stop stops the worker pool and waits for in-flight tasks
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.tasks)
	p.wg.Wait()
	p.running = false

	log.Debug().
		Int64("total_tasks", p.totalTasks).
		Int64("completed_tasks", p.completedTasks).
		Int64("failed_tasks", p.failedTasks).
		Msg("Stopped parallel execution pool")
}

// Execute submits a task to the pool and waits for it to complete
func (p *Pool) Execute(ctx context.Context, fn func(context.Context) error) error {
	p.ensureRunning()

	resultCh := make(chan error, 1)

	atomic.AddInt64(&p.totalTasks, 1)

	select {
	case p.tasks <- task{fn: fn, ctx: ctx, result: resultCh}:
	case <-ctx.Done():
		atomic.AddInt64(&p.failedTasks, 1)
		return ctx.Err()
	}

	select {
	case err := <-resultCh:
		if err != nil {
			atomic.AddInt64(&p.failedTasks, 1)
		} else {
			atomic.AddInt64(&p.completedTasks, 1)
		}
		return err
	case <-ctx.Done():
		atomic.AddInt64(&p.failedTasks, 1)
		return ctx.Err()
	}
}

// ExecuteAll submits all functions and waits for every one of them. Unlike a
// fail-fast group, a failing task does not cancel its siblings: each target
// gets checked even when another one is already known to be unhealthy. The
// returned slice holds each task's error at the matching index.
func (p *Pool) ExecuteAll(ctx context.Context, fns []func(context.Context) error) []error {
	p.ensureRunning()

	var wg sync.WaitGroup
	errs := make([]error, len(fns))

	for i, fn := range fns {
		wg.Add(1)
		go func(index int, taskFn func(context.Context) error) {
			defer wg.Done()
			errs[index] = p.Execute(ctx, taskFn)
		}(i, fn)
	}

	wg.Wait()
	return errs
}

func (p *Pool) ensureRunning() {
	p.mu.RLock()
	running := p.running
	p.mu.RUnlock()

	if !running {
		p.Start()
	}
}

// worker is a goroutine that processes tasks from the pool
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := log.With().Int("worker_id", id).Logger()
	logger.Debug().Msg("Worker started")

	for t := range p.tasks {
		p.runTask(t)
	}

	logger.Debug().Msg("Worker stopped")
}

// runTask executes one task, converting panics into errors so a misbehaving
// check cannot take the whole pool down.
func (p *Pool) runTask(t task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("task execution panicked")

			select {
			case t.result <- fmt.Errorf("task panicked: %v", r):
			default:
			}
		}
	}()

	if t.ctx.Err() != nil {
		t.result <- t.ctx.Err()
		return
	}

	t.result <- t.fn(t.ctx)
}

// GetStats returns statistics about the pool
func (p *Pool) GetStats() (totalTasks, completedTasks, failedTasks int64) {
	return atomic.LoadInt64(&p.totalTasks),
		atomic.LoadInt64(&p.completedTasks),
		atomic.LoadInt64(&p.failedTasks)
}

// IsRunning returns true if the pool is running
func (p *Pool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}
