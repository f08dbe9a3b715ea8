package worker

import (
	"context"
	"sync"
)

// Job is a unit of work producing an R
type Job[R any] interface {
	Execute(ctx context.Context) R
}

// JobFunc adapts a function to Job
type JobFunc[R any] func(ctx context.Context) R

// Execute calls f
func (f JobFunc[R]) Execute(ctx context.Context) R { return f(ctx) }

// Pool runs jobs on a fixed number of goroutines. Results are drained as
// they complete, so Submit never waits on a reader.
type Pool[R any] struct {
	workers int
	queue   chan Job[R]
	results chan R
	ctx     context.Context
	cancel  context.CancelFunc

	running   sync.WaitGroup
	collected chan []R
	closeOnce sync.Once
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops the workers
// after their current job.
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Pool[R]{
		workers:   workers,
		queue:     make(chan Job[R], workers),
		results:   make(chan R, workers),
		ctx:       ctx,
		cancel:    cancel,
		collected: make(chan []R, 1),
	}
}

// Start launches the workers and the result collector
func (p *Pool[R]) Start() {
	go func() {
		var out []R
		for r := range p.results {
			out = append(out, r)
		}
		p.collected <- out
	}()

	for i := 0; i < p.workers; i++ {
		p.running.Add(1)
		go p.work()
	}
}

func (p *Pool[R]) work() {
	defer p.running.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit queues a job. It reports false once the pool is cancelled. Submit
// must not be called after Wait.
func (p *Pool[R]) Submit(job Job[R]) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- job:
		return true
	}
}

// Wait stops accepting jobs, waits for the queued ones and returns every
// result in completion order. Jobs still queued when the pool is cancelled
// produce no result.
func (p *Pool[R]) Wait() []R {
	p.finish()
	out := <-p.collected
	p.cancel()
	return out
}

func (p *Pool[R]) finish() {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.running.Wait()
		close(p.results)
	})
}
