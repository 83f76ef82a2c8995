package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type testResult struct {
	value int
	err   error
}

func (r *testResult) GetError() error { return r.err }

type testJob struct {
	value    int
	err      error
	delay    time.Duration
	inFlight *atomic.Int32
	maxSeen  *atomic.Int32
}

func (j *testJob) Execute(ctx context.Context) Result {
	if j.inFlight != nil {
		cur := j.inFlight.Add(1)
		for {
			seen := j.maxSeen.Load()
			if cur <= seen || j.maxSeen.CompareAndSwap(seen, cur) {
				break
			}
		}
		defer j.inFlight.Add(-1)
	}
	if j.delay > 0 {
		time.Sleep(j.delay)
	}
	return &testResult{value: j.value, err: j.err}
}

func TestPool_ResultsInInputOrder(t *testing.T) {
	jobs := make([]Job, 10)
	for i := range jobs {
		// Later jobs finish first; order must still hold.
		jobs[i] = &testJob{value: i, delay: time.Duration(10-i) * time.Millisecond}
	}

	results := NewPool(4).Run(context.Background(), jobs)
	if len(results) != len(jobs) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(jobs))
	}
	for i, r := range results {
		if r.(*testResult).value != i {
			t.Errorf("results[%d].value = %d, want %d", i, r.(*testResult).value, i)
		}
	}
}

func TestPool_ConcurrencyCap(t *testing.T) {
	var inFlight, maxSeen atomic.Int32

	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = &testJob{value: i, delay: 5 * time.Millisecond, inFlight: &inFlight, maxSeen: &maxSeen}
	}

	NewPool(3).Run(context.Background(), jobs)
	if got := maxSeen.Load(); got > 3 {
		t.Errorf("max in-flight = %d, want <= 3", got)
	}
}

func TestPool_SettleAll(t *testing.T) {
	jobs := []Job{
		&testJob{value: 0},
		&testJob{value: 1, err: errors.New("boom")},
		&testJob{value: 2},
	}

	results := NewPool(2).Run(context.Background(), jobs)
	if results[1].GetError() == nil {
		t.Error("failing job's error lost")
	}
	if results[0].GetError() != nil || results[2].GetError() != nil {
		t.Error("failure leaked into sibling results")
	}
}

func TestPool_CancelStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := make([]Job, 50)
	for i := range jobs {
		jobs[i] = &testJob{value: i, delay: 10 * time.Millisecond}
	}

	// With a cancelled context and a full semaphore path, most jobs
	// never dispatch; their result slots stay nil.
	results := NewPool(1).Run(ctx, jobs)
	if len(results) != len(jobs) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(jobs))
	}
	ran := 0
	for _, r := range results {
		if r != nil {
			ran++
		}
	}
	if ran > 1 {
		t.Errorf("%d jobs ran after cancellation, want at most 1", ran)
	}
}

func TestPool_ZeroWorkersClampsToOne(t *testing.T) {
	results := NewPool(0).Run(context.Background(), []Job{&testJob{value: 7}})
	if len(results) != 1 || results[0].(*testResult).value != 7 {
		t.Errorf("unexpected results: %v", results)
	}
}
