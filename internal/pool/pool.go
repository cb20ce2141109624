// Package pool implements a bounded, FIFO worker pool: a fixed number of
// goroutines draining a buffered channel of jobs. It backs the request
// executor (§5) and the index manager's scan/delete pools (§4.4).
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/dreamware/redisd/internal/matrix"
)

// Job is a unit of work submitted to a Pool.
type Job func(ctx context.Context)

// queuedJob pairs a Job with the time it was submitted, so the worker that
// dequeues it can report how long it waited (QueueTime) separately from how
// long it ran (ExecuteTime).
type queuedJob struct {
	fn       Job
	enqueued time.Time
}

// Pool is a fixed-size goroutine pool draining a bounded FIFO queue.
// Submit blocks once the queue is full, providing natural backpressure
// instead of unbounded goroutine growth.
//
// Example:
//
//	p := pool.New(4, 256, counters)
//	p.Start()
//	p.Submit(func(ctx context.Context) { handle(req) })
//	p.Stop() // drains in-flight jobs, then returns
type Pool struct {
	jobs    chan queuedJob
	workers int
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	counters *matrix.Pool
}

// New builds a Pool with the given worker count and queue capacity.
// counters may be nil to skip instrumentation.
func New(workers, queueCapacity int, counters *matrix.Pool) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:     make(chan queuedJob, queueCapacity),
		workers:  workers,
		ctx:      ctx,
		cancel:   cancel,
		counters: counters,
	}
}

// Start spawns the pool's worker goroutines. It does not guard against a
// second call: calling Start twice spawns a second set of workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case qj, ok := <-p.jobs:
			if !ok {
				return
			}
			if p.counters != nil {
				p.counters.QueueTime.Add(uint64(time.Since(qj.enqueued).Nanoseconds()))
				p.counters.Executed.Add(1)
			}
			execStart := time.Now()
			qj.fn(p.ctx)
			if p.counters != nil {
				p.counters.ExecuteTime.Add(uint64(time.Since(execStart).Nanoseconds()))
			}
		}
	}
}

// Submit enqueues job, blocking if the queue is full. It returns false
// without enqueueing if the pool has been stopped.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	if p.counters != nil {
		p.counters.InQueue.Add(1)
	}
	qj := queuedJob{fn: job, enqueued: time.Now()}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobs <- qj:
		return true
	}
}

// TrySubmit enqueues job only if the queue has room, returning false
// immediately otherwise. The index manager's per-tick scheduling uses this
// so a full queue sheds load instead of blocking the scheduler loop.
func (p *Pool) TrySubmit(job Job) bool {
	qj := queuedJob{fn: job, enqueued: time.Now()}
	select {
	case p.jobs <- qj:
		if p.counters != nil {
			p.counters.InQueue.Add(1)
		}
		return true
	default:
		return false
	}
}

// Stop signals all workers to exit after finishing their current job and
// waits for them to return. Queued-but-not-started jobs are dropped.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}
