package engine

import (
	"context"
	"log/slog"
	"sync"
)

// workerPool is the bounded execution pool shared across runs.
type workerPool struct {
	tasks  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

func newWorkerPool(workers int, logger *slog.Logger) *workerPool {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := &workerPool{
		tasks:  make(chan func()),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "worker_pool"),
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.processWork()
	}

	pool.logger.Debug("worker pool started", "workers", workers)
	return pool
}

func (p *workerPool) processWork() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			task()
		}
	}
}

// Submit blocks until a worker accepts the task; returns false once the
// pool is shutting down.
func (p *workerPool) Submit(task func()) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.tasks <- task:
		return true
	}
}

func (p *workerPool) Close() {
	p.cancel()
	p.wg.Wait()
	p.logger.Debug("worker pool stopped")
}
