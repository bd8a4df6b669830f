package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New("x", time.Second, nil); !errors.Is(err, ErrNoTarget) {
		t.Errorf("New(nil fn) error = %v, want ErrNoTarget", err)
	}
	if _, err := New("x", 0, func(context.Context) {}); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("New(0 interval) error = %v, want ErrInvalidInterval", err)
	}
}

func TestRunner_RepeatsUntilStopped(t *testing.T) {
	calls := make(chan struct{}, 16)
	r, err := New("poll", time.Millisecond, func(context.Context) {
		select {
		case calls <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r.Start(context.Background())
	for i := 0; i < 3; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatalf("iteration %d did not run", i+1)
		}
	}
	r.Join()

	n := r.Iterations()
	time.Sleep(10 * time.Millisecond)
	if r.Iterations() != n {
		t.Errorf("Iterations() grew after Join: %d -> %d", n, r.Iterations())
	}
}

func TestRunner_StopInterruptsSleep(t *testing.T) {
	r, _ := New("slow", time.Hour, func(context.Context) {})
	r.Start(context.Background())

	// Wait for the first iteration so the loop is sleeping.
	deadline := time.Now().Add(time.Second)
	for r.Iterations() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		r.Join()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Join() did not interrupt the sleep")
	}
}

func TestRunner_JoinWaitsForInFlightIteration(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished bool
	var mu sync.Mutex

	r, _ := New("busy", time.Hour, func(ctx context.Context) {
		close(started)
		<-release
		if ctx.Err() != nil {
			t.Error("iteration context was cancelled by Stop")
		}
		mu.Lock()
		finished = true
		mu.Unlock()
	})
	r.Start(context.Background())
	<-started

	joined := make(chan struct{})
	go func() {
		r.Join()
		close(joined)
	}()

	select {
	case <-joined:
		t.Fatal("Join() returned while iteration was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-joined

	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Error("iteration did not finish before Join returned")
	}
}

func TestRunner_StopIdempotent(t *testing.T) {
	r, _ := New("x", time.Millisecond, func(context.Context) {})
	r.Start(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Stop()
		}()
	}
	wg.Wait()
	r.Join()
	r.Join()

	if !r.Stopped() {
		t.Error("Stopped() = false after Stop")
	}
}

func TestRunner_StopBeforeStart(t *testing.T) {
	var ran bool
	r, _ := New("x", time.Millisecond, func(context.Context) { ran = true })
	r.Stop()
	r.Start(context.Background())
	r.Join()

	if ran {
		t.Error("function ran after Stop")
	}
}

func TestRunner_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, _ := New("x", time.Hour, func(context.Context) {})
	r.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancel")
	}
}
