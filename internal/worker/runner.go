// Package worker runs a function repeatedly on its own goroutine until stopped.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNoTarget is returned by New when no function is supplied.
	ErrNoTarget = errors.New("worker: no target function")

	// ErrInvalidInterval is returned by New for a non-positive interval.
	ErrInvalidInterval = errors.New("worker: interval must be positive")
)

// Runner calls a function, sleeps for an interval, and repeats.
//
// Stopping is cooperative: the stop signal interrupts the sleep, never the
// function. Join waits for an in-flight iteration to finish.
type Runner struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	// Shutdown coordination (stopOnce prevents double-close panics)
	done      chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	wg        sync.WaitGroup

	iterations atomic.Uint64
}

// New returns a Runner for fn. It does not start it.
func New(name string, interval time.Duration, fn func(ctx context.Context)) (*Runner, error) {
	if fn == nil {
		return nil, ErrNoTarget
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return &Runner{
		name:     name,
		interval: interval,
		fn:       fn,
		done:     make(chan struct{}),
	}, nil
}

// Name returns the runner's name.
func (r *Runner) Name() string {
	return r.name
}

// Start launches the loop. The first iteration runs immediately.
// Cancelling ctx stops the loop like Stop does; later calls are no-ops.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.loop(ctx)
	})
}

// Stop signals the loop to exit after the current iteration.
// It does not wait and is safe to call from any goroutine, any number of times.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

// Join stops the loop and waits for it to exit.
func (r *Runner) Join() {
	r.Stop()
	r.wg.Wait()
}

// Stopped reports whether Stop has been called.
func (r *Runner) Stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Iterations returns how many times the function has completed.
func (r *Runner) Iterations() uint64 {
	return r.iterations.Load()
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// A stop requested while the timer fired wins over another iteration.
		if r.Stopped() {
			return
		}

		r.fn(context.WithoutCancel(ctx))
		r.iterations.Add(1)
		timer.Reset(r.interval)
	}
}
