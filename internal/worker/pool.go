package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers. Results are collected as
// they arrive, so submitting never waits on a reader.
type Pool struct {
	workers   int
	jobQueue  chan Job
	results   chan Result
	collected []Result
	collector chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeJobs sync.Once
	closeRes  sync.Once
}

// NewPool creates a pool whose jobs run under ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &Pool{
		workers:   workers,
		jobQueue:  make(chan Job, workers*2),
		results:   make(chan Result, workers*2),
		collector: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go func() {
		defer close(p.collector)
		for r := range p.results {
			p.collected = append(p.collected, r)
		}
	}()
	return p
}

// Start starts the workers
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
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit queues a job. It returns false once the pool's context is done.
// Once Wait returns, Submit refuses every job.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Wait waits for all submitted jobs and returns their results in
// completion order. Jobs still queued on a pool that was never started are
// dropped.
func (p *Pool) Wait() []Result {
	p.closeJobs.Do(func() { close(p.jobQueue) })
	p.wg.Wait()
	p.closeRes.Do(func() { close(p.results) })
	<-p.collector
	p.cancel()
	return p.collected
}
