package worker

import (
	"context"

	"github.com/oseghale/riskradar/internal/feed"
	"github.com/oseghale/riskradar/internal/model"
)

// FeedFetcher fetches one source.
type FeedFetcher interface {
	Fetch(ctx context.Context, source model.Source) (*feed.Result, error)
}

// FetchJob fetches one source under the per-domain limiter.
type FetchJob struct {
	Source  model.Source
	Fetcher FeedFetcher
	Limiter *Limiter
}

// FetchResult is one source's settled outcome.
type FetchResult struct {
	Source     model.Source
	Items      []model.FeedItem
	StatusCode int
	Error      error
}

// GetError returns the fetch error, if any.
func (r *FetchResult) GetError() error { return r.Error }

// Execute fetches the job's source.
func (j *FetchJob) Execute(ctx context.Context) Result {
	out := &FetchResult{Source: j.Source}

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Source.URL); err != nil {
			out.Error = err
			return out
		}
	}

	result, err := j.Fetcher.Fetch(ctx, j.Source)
	if err != nil {
		out.Error = err
		if fe, ok := err.(*feed.FetchError); ok {
			out.StatusCode = fe.StatusCode
		}
		return out
	}

	out.Items = result.Items
	out.StatusCode = result.StatusCode
	return out
}

// FetchAll fetches every source with bounded concurrency and returns
// one settled result per source, in input order.
func FetchAll(ctx context.Context, fetcher FeedFetcher, limiter *Limiter, sources []model.Source, workers int) []*FetchResult {
	jobs := make([]Job, len(sources))
	for i, src := range sources {
		jobs[i] = &FetchJob{Source: src, Fetcher: fetcher, Limiter: limiter}
	}

	results := NewPool(workers).Run(ctx, jobs)

	out := make([]*FetchResult, len(results))
	for i, r := range results {
		if r == nil {
			out[i] = &FetchResult{Source: sources[i], Error: ctx.Err()}
			continue
		}
		out[i] = r.(*FetchResult)
	}
	return out
}
