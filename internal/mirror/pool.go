package mirror

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RetryPolicy bounds how often a job is tried. Attempts counts every try,
// the first one included.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Delay returns the wait before try number attempt+1. It doubles from
// BaseDelay and is capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ErrSkip is returned by a job that found nothing left to do. The pool
// counts it as skipped and does not retry it.
var ErrSkip = errors.New("skipped")

// Job is one unit of pool work.
type Job struct {
	Key string
	Do  func(ctx context.Context) error
}

// Failure records a job that never succeeded.
type Failure struct {
	Key      string
	Attempts int
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v (after %d attempt(s))", f.Key, f.Err, f.Attempts)
}

func (f Failure) Unwrap() error { return f.Err }

// Report aggregates the outcome of a pool run.
type Report struct {
	Succeeded int
	Skipped   int
	Failures  []Failure
}

func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Err joins every failure, or returns nil when all jobs succeeded.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Pool runs jobs on a fixed number of workers sharing one queue.
type Pool struct {
	Workers int
	Retry   RetryPolicy
	// OnRetry is called before each retry wait.
	OnRetry func(key string, attempt int, err error)
}

// Run blocks until every job has succeeded or exhausted its attempts. Jobs
// still queued when ctx is cancelled are reported as failures.
func (p Pool) Run(ctx context.Context, jobs []Job) Report {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan Job, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	var (
		mu     sync.Mutex
		report Report
		wg     sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				attempts, err := p.attempt(ctx, job)
				mu.Lock()
				switch {
				case errors.Is(err, ErrSkip):
					report.Skipped++
				case err != nil:
					report.Failures = append(report.Failures, Failure{Key: job.Key, Attempts: attempts, Err: err})
				default:
					report.Succeeded++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return report
}

func (p Pool) attempt(ctx context.Context, job Job) (int, error) {
	limit := p.Retry.Attempts
	if limit <= 0 {
		limit = 1
	}

	var err error
	tries := 0
	for tries < limit {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return tries, err
		}
		tries++
		if err = job.Do(ctx); err == nil || errors.Is(err, ErrSkip) {
			return tries, err
		}
		if tries == limit {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(job.Key, tries, err)
		}
		if waitErr := sleep(ctx, p.Retry.Delay(tries)); waitErr != nil {
			return tries, err
		}
	}
	return tries, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
