package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/baharkarakas/paycore/internal/metrics"
)

var ErrStopped = errors.New("worker pool stopped")

type task func()

// Pool runs submitted work on a fixed number of goroutines. Its size bounds
// how many settlement items are processed at once across all requests.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan task

	mu      sync.RWMutex
	stopped bool
}

func NewPool(n, queue int) *Pool {
	if n <= 0 {
		n = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{jobs: make(chan task, queue)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Dec()
				job()
			}
		}()
	}
	return p
}

// Submit queues f, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, f func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	metrics.WorkerQueueDepth.Inc()
	select {
	case p.jobs <- f:
		return nil
	case <-ctx.Done():
		metrics.WorkerQueueDepth.Dec()
		return ctx.Err()
	}
}

// Stop waits for queued work to drain. Later submits fail with ErrStopped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

type Result[T any] struct {
	Key   string
	Value T
	Err   error
}

// Run applies fn to every key on the pool and returns one result per key in
// input order. Keys that could not be queued carry the submit error.
func Run[T any](ctx context.Context, p *Pool, keys []string, fn func(ctx context.Context, key string) (T, error)) []Result[T] {
	results := make([]Result[T], len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		results[i].Key = key
		wg.Add(1)
		err := p.Submit(ctx, func() {
			defer wg.Done()
			results[i].Value, results[i].Err = fn(ctx, key)
		})
		if err != nil {
			wg.Done()
			results[i].Err = err
		}
	}
	wg.Wait()
	return results
}
