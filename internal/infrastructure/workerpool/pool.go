package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/parlance-ai/parlance/internal/observability/telemetry"
)

// DefaultWorkers is the pool size for background audio relays.
const DefaultWorkers = 8

// maxThrottle caps the quadratic backpressure delay.
const maxThrottle = 2 * time.Second

var ErrClosed = errors.New("worker pool closed")

// Pool is a fixed-size worker pool for fire-and-forget background tasks.
// Overscheduling throttles the submitter quadratically in the backlog so a
// burst of detached work slows its producer instead of starving request
// handling.
type Pool struct {
	tasks   chan func()
	workers int
	backlog atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	log    *zap.Logger
}

func New(workers int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Pool{
		tasks:   make(chan func(), workers*4),
		workers: workers,
		log:     log,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	log.Info("Worker pool started", zap.Int("workers", workers))
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for task := range p.tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("Background task panicked", zap.Any("panic", r))
				}
				telemetry.WorkerPoolBacklog.Set(float64(p.backlog.Add(-1)))
			}()
			task()
		}()
	}
}

// throttleDelay grows with the square of the overschedule beyond the
// worker count.
func (p *Pool) throttleDelay() time.Duration {
	over := p.backlog.Load() - int64(p.workers)
	if over <= 0 {
		return 0
	}
	delay := time.Duration(over*over) * 10 * time.Millisecond
	if delay > maxThrottle {
		delay = maxThrottle
	}
	return delay
}

// Submit enqueues task, applying backpressure when the pool is
// overscheduled. Returns once the task is queued.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	if delay := p.throttleDelay(); delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	// The read lock spans the send so Close cannot close the channel
	// under an in-flight submit.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	telemetry.WorkerPoolBacklog.Set(float64(p.backlog.Add(1)))

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		p.backlog.Add(-1)
		return ctx.Err()
	}
}

// Backlog reports queued plus running tasks, for metrics.
func (p *Pool) Backlog() int {
	return int(p.backlog.Load())
}

// Close stops accepting work and waits for in-flight tasks.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
