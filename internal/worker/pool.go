package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the outcome of a job
type Result interface {
	Err() error
}

// Pool runs jobs on a fixed number of goroutines. Results arrive in
// completion order, not submission order.
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	jobsOnce   sync.Once
	resOnce    sync.Once
}

// NewPool creates a pool bound to ctx. Cancelling ctx stops the workers.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers
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
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It returns the context error once the pool is
// cancelled instead of blocking.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
	}
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.jobQueue <- job:
		return nil
	}
}

// Close signals that no more jobs will be submitted
func (p *Pool) Close() {
	p.jobsOnce.Do(func() { close(p.jobQueue) })
}

// Wait closes the queue and collects every remaining result. Results must be
// drained while jobs are still being submitted when the job count exceeds the
// queue capacity; use Run for that.
func (p *Pool) Wait() []Result {
	p.Close()
	return p.drain()
}

func (p *Pool) drain() []Result {
	go func() {
		p.wg.Wait()
		p.closeResults()
	}()

	var results []Result
	for result := range p.results {
		results = append(results, result)
	}
	return results
}

// Shutdown stops the pool immediately
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.resOnce.Do(func() {
		close(p.results)
	})
}

// Run executes jobs on a new pool of the given size and returns all results.
// Jobs that never ran because ctx was cancelled produce no result.
func Run(ctx context.Context, workers int, jobs []Job) []Result {
	p := NewPool(ctx, workers)
	defer p.cancelFunc()
	p.Start()

	go func() {
		defer p.Close()
		for _, job := range jobs {
			if p.Submit(job) != nil {
				return
			}
		}
	}()

	return p.drain()
}

// FirstError returns the first non-nil error among results
func FirstError(results []Result) error {
	for _, r := range results {
		if err := r.Err(); err != nil {
			return err
		}
	}
	return nil
}
