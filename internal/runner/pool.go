// Package runner executes claimed job actions on a bounded in-process worker
// pool. Deployments that scale out run the standalone polling worker instead;
// the pool is the single-binary setup.
package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"shortform/internal/domain"
)

// ErrQueueFull is returned when the dispatch queue cannot take another task.
var ErrQueueFull = errors.New("runner: queue full")

// Task is one claimed action ready for execution.
type Task struct {
	JobID  string
	Action domain.Action
	Stage  string
}

// Executor runs a single task to completion. A task error is an execution
// infrastructure failure; pipeline failures land on the job record instead.
type Executor interface {
	ExecuteAction(ctx context.Context, task Task) error
}

// Pool distributes tasks over a fixed number of workers.
type Pool struct {
	exec    Executor
	logger  zerolog.Logger
	tasks   chan Task
	workers int

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool builds a pool with the given worker count and queue capacity.
func NewPool(exec Executor, workers, queueSize int, logger zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		exec:    exec,
		logger:  logger,
		tasks:   make(chan Task, queueSize),
		workers: workers,
	}
}

// Start launches the workers. Calling Start twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info().Int("workers", p.workers).Msg("runner: pool started")
}

// Enqueue hands a task to the pool without blocking.
func (p *Pool) Enqueue(task Task) error {
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains in-flight work and shuts the pool down. Queued tasks that have
// not started are dropped; their pending actions were already cleared, so the
// caller re-dispatches them on next boot if needed.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info().Msg("runner: pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			logger := p.logger.With().Int("worker", id).Str("job_id", task.JobID).Str("action", string(task.Action)).Logger()
			logger.Info().Msg("runner: task start")
			if err := p.exec.ExecuteAction(ctx, task); err != nil {
				logger.Error().Err(err).Msg("runner: task failed")
				continue
			}
			logger.Info().Msg("runner: task done")
		}
	}
}
