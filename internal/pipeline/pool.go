package pipeline

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolClosed is returned when work is submitted after Close.
var ErrPoolClosed = errors.New("pipeline: pool closed")

// Pool bounds how many parallel stage invocations run at once. One pool may
// be shared by several pipelines so they are capacity-limited together.
type Pool struct {
	size int
	sem  *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool with size slots (minimum 1).
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Acquire blocks until a slot is free, ctx is done, or the pool is closed.
func (p *Pool) Acquire(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return err
	}
	return nil
}

// Release frees a slot taken by Acquire.
func (p *Pool) Release() {
	p.sem.Release(1)
	p.wg.Done()
}

// Close rejects new work and waits for in-flight work to finish. It is safe
// to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
