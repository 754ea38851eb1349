package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestLifecycleRunsJobsToCompletion(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	var ran atomic.Int32
	for _, name := range []string{"a", "b"} {
		lc.Add(name, FuncJob(func(context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	assert.NoError(t, lc.Run(context.Background()))
	assert.Equal(t, int32(2), ran.Load())
}

func TestLifecycleCancelsOnFailure(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))

	var cancelled atomic.Bool
	lc.Add("waiter", FuncJob(func(ctx context.Context) error {
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}))
	lc.Add("failer", FuncJob(func(context.Context) error {
		return errors.New("boom")
	}))

	err := lc.Run(context.Background())
	assert.ErrorContains(t, err, "job failer: boom")
	assert.True(t, cancelled.Load())
}

func TestLifecycleStopsWhenContextCancelled(t *testing.T) {
	lc := NewLifecycle(nil)
	lc.Add("waiter", FuncJob(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
}

func TestFuncJob(t *testing.T) {
	called := false
	job := FuncJob(func(context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, job.Run(context.Background()))
	assert.True(t, called)
}
