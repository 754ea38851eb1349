// Package server runs the process's jobs under one context and stops them on
// SIGINT or SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/observability"
)

// Job is a unit of work that runs until it finishes or its context ends.
type Job interface {
	Run(ctx context.Context) error
}

// FuncJob adapts a function into the Job interface.
type FuncJob func(ctx context.Context) error

// Run calls f.
func (f FuncJob) Run(ctx context.Context) error { return f(ctx) }

// Lifecycle runs named jobs concurrently and cancels the rest when one fails.
type Lifecycle struct {
	logger *zap.Logger
	jobs   []namedJob
	mu     sync.Mutex
}

type namedJob struct {
	name string
	job  Job
}

// NewLifecycle creates a Lifecycle. A nil logger discards output.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: observability.OrNop(logger)}
}

// Add registers a named job.
//
// Precondition: name must be non-empty; job must be non-nil.
func (l *Lifecycle) Add(name string, job Job) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs = append(l.jobs, namedJob{name: name, job: job})
}

// Run starts every job and blocks until all have returned. A termination
// signal or the cancellation of ctx cancels the jobs' shared context.
//
// Postcondition: returns the first job error, or nil when every job finished
// cleanly or stopped because it was cancelled.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	jobs := append([]namedJob(nil), l.jobs...)
	l.mu.Unlock()

	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	for _, nj := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.logger.Info("starting job", zap.String("job", nj.name))
			jobStart := time.Now()
			err := nj.job.Run(ctx)
			switch {
			case err == nil:
				l.logger.Info("job finished", zap.String("job", nj.name), zap.Duration("elapsed", time.Since(jobStart)))
			case errors.Is(err, context.Canceled):
				l.logger.Info("job cancelled", zap.String("job", nj.name), zap.Duration("elapsed", time.Since(jobStart)))
			default:
				l.logger.Error("job failed", zap.String("job", nj.name), zap.Error(err), zap.Duration("elapsed", time.Since(jobStart)))
				once.Do(func() { first = fmt.Errorf("job %s: %w", nj.name, err) })
				cancel()
			}
		}()
	}
	wg.Wait()

	l.logger.Info("shutdown complete",
		zap.Int("jobs", len(jobs)),
		zap.Duration("total_uptime", time.Since(start)),
	)
	return first
}
