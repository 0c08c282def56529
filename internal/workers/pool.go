// Package workers runs fire-and-forget tasks on a fixed set of goroutines.
// Submit never blocks: when every worker is busy and the queue is full the
// task is rejected instead.
package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matt0x6f/garybot/internal/logger"
)

var (
	ErrPoolSaturated = errors.New("worker pool saturated")
	ErrPoolClosed    = errors.New("worker pool closed")
)

// Task is one unit of work. A returned error or a panic is reported to the
// pool's fault handler and goes no further.
type Task func(ctx context.Context) error

// FaultHandler receives task failures. It must not panic.
type FaultHandler func(name string, err error)

type job struct {
	name string
	run  Task
}

// Pool is a bounded worker pool.
type Pool struct {
	ctx     context.Context
	queue   chan job
	group   *errgroup.Group
	onFault FaultHandler
	size    int

	mu     sync.RWMutex
	closed bool
}

// NewPool starts size workers sharing a queue of queueSize pending tasks.
// ctx is handed to every task; cancelling it does not stop the workers.
func NewPool(ctx context.Context, size, queueSize int, onFault FaultHandler) *Pool {
	if size < 1 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if onFault == nil {
		onFault = func(name string, err error) {
			logger.Log.Error().Err(err).Str("task", name).Msg("Task failed")
		}
	}

	p := &Pool{
		ctx:     ctx,
		queue:   make(chan job, queueSize),
		group:   &errgroup.Group{},
		onFault: onFault,
		size:    size,
	}
	for i := 0; i < size; i++ {
		p.group.Go(func() error {
			for j := range p.queue {
				p.run(j)
			}
			return nil
		})
	}
	return p
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Submit queues t without blocking.
func (p *Pool) Submit(name string, t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- job{name: name, run: t}:
		return nil
	default:
		return ErrPoolSaturated
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.onFault(j.name, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()

	start := time.Now()
	if err := j.run(p.ctx); err != nil {
		p.onFault(j.name, err)
		return
	}
	logger.Log.Debug().Str("task", j.name).Dur("took", time.Since(start)).Msg("Task finished")
}

// Close stops accepting tasks and waits for queued and running tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	_ = p.group.Wait()
}

// Drain closes the pool and waits at most until ctx is done. Tasks still
// running after that are abandoned.
func (p *Pool) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		logger.Log.Warn().Msg("Timeout waiting for in-flight tasks, abandoning them")
		return ctx.Err()
	}
}
