package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/jobcopilot/internal/metrics"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("async: pool is shutting down")

// Task is a unit of work run by the pool under its own timeout.
type Task func(ctx context.Context)

type queued struct {
	name string
	task Task
}

// Pool is a fixed set of workers fed by a bounded queue. When the queue is full
// Submit runs the task on the calling goroutine instead of dropping it.
type Pool struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan queued
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan queued, n)
		}
	}
}

func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan queued, 16),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("worker started", "worker", workerID)
				for q := range p.ch {
					metrics.PoolQueueDepth.Set(float64(len(p.ch)))
					p.run(q)
				}
				p.logger.Debug("worker stopped", "worker", workerID)
			}(i + 1)
		}
	})
}

func (p *Pool) run(q queued) {
	metrics.PoolActiveWorkers.Inc()
	defer metrics.PoolActiveWorkers.Dec()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "task", q.name, "panic", r)
		}
	}()
	q.task(ctx)
}

// Remaining reports free queue slots.
func (p *Pool) Remaining() int {
	return cap(p.ch) - len(p.ch)
}

// Submit queues task, or runs it before returning when the queue is saturated.
func (p *Pool) Submit(name string, task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("cannot submit: pool is shutting down", "task", name)
		return ErrPoolClosed
	}
	select {
	case p.ch <- queued{name: name, task: task}:
		p.mu.Unlock()
		metrics.PoolQueueDepth.Set(float64(len(p.ch)))
		p.logger.Debug("task queued", "task", name)
		return nil
	default:
	}
	p.mu.Unlock()

	metrics.CallerRunsTotal.Inc()
	p.logger.Warn("queue full, running task on caller", "task", name)
	p.run(queued{name: name, task: task})
	return nil
}

// Shutdown stops accepting tasks and waits for queued ones to finish or ctx to end.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("shutdown interrupted by context")
	case <-done:
		p.logger.Info("pool drained, shutdown complete")
	}
}
