package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	p := New(2, 8, nil)
	p.Start()
	defer p.Stop()

	var count atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		p.Submit(func(ctx context.Context) {
			defer wg.Done()
			count.Add(1)
		})
	}
	wg.Wait()

	if count.Load() != 10 {
		t.Errorf("expected 10 jobs run, got %d", count.Load())
	}
}

func TestPoolTrySubmitShedsWhenFull(t *testing.T) {
	p := New(1, 1, nil)
	// Don't Start the pool: the single worker never drains, so the queue
	// fills after one successful TrySubmit.
	block := make(chan struct{})
	if !p.TrySubmit(func(ctx context.Context) { <-block }) {
		t.Fatalf("expected first TrySubmit to succeed")
	}
	if p.TrySubmit(func(ctx context.Context) {}) {
		t.Errorf("expected TrySubmit to fail once queue is full")
	}
	close(block)
}

func TestPoolStopWaitsForWorkers(t *testing.T) {
	p := New(1, 1, nil)
	p.Start()

	started := make(chan struct{})
	finished := make(chan struct{})
	p.Submit(func(ctx context.Context) {
		close(started)
		time.Sleep(10 * time.Millisecond)
		close(finished)
	})

	<-started
	p.Stop()

	select {
	case <-finished:
	default:
		t.Errorf("expected Stop to wait for in-flight job to finish")
	}
}
