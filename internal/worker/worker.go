// Package worker runs CPU-bound alignment work either on the calling
// goroutine or on a bounded pool. Both executors produce the same results.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kahncode1/narrasync/timing"
)

// Task is one unit of work.
type Task func(ctx context.Context) error

// Executor runs tasks.
type Executor interface {
	// Run executes task and waits for it to finish.
	Run(ctx context.Context, task Task) error
	// RunAll executes tasks and returns the first error.
	RunAll(ctx context.Context, tasks ...Task) error
	// Size is the number of tasks that may run at once.
	Size() int
}

// New returns a pool of the given size, or Inline when size is 0.
// Negative sizes use one worker per CPU.
func New(size int) Executor {
	if size == 0 {
		return Inline{}
	}
	return NewPool(size)
}

// Inline runs every task on the calling goroutine, one after another.
type Inline struct{}

// Run implements Executor.
func (Inline) Run(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(timing.ErrCanceled, err)
	}
	return safely(ctx, task)
}

// RunAll implements Executor. Tasks after a failing one are not started.
func (in Inline) RunAll(ctx context.Context, tasks ...Task) error {
	for _, t := range tasks {
		if err := in.Run(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Size implements Executor.
func (Inline) Size() int { return 1 }

// Pool bounds the number of tasks running at once across all callers.
type Pool struct {
	size int
	sem  *semaphore.Weighted
}

// NewPool creates a pool running at most size tasks concurrently.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Run implements Executor. It blocks until a slot is free, so a caller
// waiting on a busy pool can still be canceled.
func (p *Pool) Run(ctx context.Context, task Task) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return errors.Join(timing.ErrCanceled, err)
	}
	defer p.sem.Release(1)

	if err := ctx.Err(); err != nil {
		return errors.Join(timing.ErrCanceled, err)
	}
	return safely(ctx, task)
}

// RunAll implements Executor. The first failure cancels the context seen
// by the remaining tasks.
func (p *Pool) RunAll(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for _, t := range tasks {
		t := t
		g.Go(func() error {
			return p.Run(gctx, t)
		})
	}
	return g.Wait()
}

// Size implements Executor.
func (p *Pool) Size() int { return p.size }

// safely turns a panicking task into an error so one bad document does not
// take the process down.
func safely(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker task panicked: %v", r)
		}
	}()
	return task(ctx)
}
