package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"planscape-backend/internal/apperrors"
)

// Task is one queued run request.
type Task struct {
	ProjectID int64
	Options   RunOptions
}

// WorkerPool executes runs asynchronously. Multiple projects process
// concurrently; per-project exclusivity is enforced by the state machine's
// run lock.
type WorkerPool struct {
	sm     *StateMachine
	logger *zap.Logger
	tasks  chan Task
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewWorkerPool(sm *StateMachine, queueSize int, logger *zap.Logger) *WorkerPool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &WorkerPool{
		sm:     sm,
		logger: logger,
		tasks:  make(chan Task, queueSize),
	}
}

// Start launches workers consuming the queue until ctx is done and the queue
// is drained.
func (p *WorkerPool) Start(ctx context.Context, workers int) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.tasks {
				p.runTask(ctx, id, task)
			}
		}(i)
	}

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		if !p.closed {
			p.closed = true
			close(p.tasks)
		}
		p.mu.Unlock()
	}()
}

func (p *WorkerPool) runTask(ctx context.Context, worker int, task Task) {
	err := p.sm.Run(ctx, task.ProjectID, task.Options)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrAlreadyRunning),
		errors.Is(err, apperrors.ErrIllegalTransition),
		errors.Is(err, apperrors.ErrNotFound):
		p.logger.Warn("run rejected",
			zap.Int("worker", worker),
			zap.Int64("project_id", task.ProjectID),
			zap.Error(err))
	default:
		p.logger.Error("run aborted",
			zap.Int("worker", worker),
			zap.Int64("project_id", task.ProjectID),
			zap.Error(err))
	}
}

// Enqueue adds a task without blocking. A full queue is reported to the
// caller so the request surface can push back.
func (p *WorkerPool) Enqueue(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("worker pool is shut down")
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return fmt.Errorf("processing queue is full")
	}
}

// Wait blocks until all workers have drained the queue after shutdown.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
