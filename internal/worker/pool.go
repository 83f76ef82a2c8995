// Package worker provides bounded-concurrency execution for feed
// fetching. The hosting environment has hard memory and time ceilings,
// so the worker count is a hard cap, and a failing job never aborts
// the run: every job settles and reports its own result.
package worker

import (
	"context"
	"sync"
)

// Job is a unit of work.
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of one job.
type Result interface {
	GetError() error
}

// Pool runs jobs with at most `workers` in flight.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given concurrency cap.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes all jobs and returns one result per job, in input
// order. Settle-all: a job returning an error does not stop the
// others. Context cancellation stops dispatching new jobs; jobs
// already running observe ctx themselves.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, job := range jobs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return results
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = job.Execute(ctx)
		}(i, job)
	}

	wg.Wait()
	return results
}
