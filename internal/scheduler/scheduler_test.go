package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/jobalerts/internal/service"
)

type countingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
	panics  bool
}

func (r *countingRunner) RunCycle(ctx context.Context) *service.CycleStats {
	r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.panics {
		panic("boom")
	}
	return &service.CycleStats{EmailsSent: 1}
}

func TestStartRunsImmediately(t *testing.T) {
	r := &countingRunner{}
	s := New(r, time.Hour, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()

	if got := r.calls.Load(); got != 1 {
		t.Errorf("RunCycle called %d times, want 1", got)
	}
}

func TestRunNowRejectsOverlap(t *testing.T) {
	r := &countingRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := New(r, time.Hour, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background())
		done <- err
	}()
	<-r.started

	if _, err := s.RunNow(context.Background()); !errors.Is(err, ErrCycleRunning) {
		t.Errorf("overlapping RunNow() error = %v, want ErrCycleRunning", err)
	}

	close(r.release)
	if err := <-done; err != nil {
		t.Errorf("first RunNow() error = %v", err)
	}

	stats, err := s.RunNow(context.Background())
	if err != nil || stats.EmailsSent != 1 {
		t.Errorf("RunNow() after release = %+v, %v", stats, err)
	}
}

func TestRunNowRecoversPanic(t *testing.T) {
	s := New(&countingRunner{panics: true}, time.Hour, nil)
	if _, err := s.RunNow(context.Background()); err == nil {
		t.Fatal("RunNow() should report the panic")
	}
	// lock released after the panic
	s.runner = &countingRunner{}
	if _, err := s.RunNow(context.Background()); err != nil {
		t.Errorf("RunNow() after panic error = %v", err)
	}
}

func TestStartSkipsCancelledContext(t *testing.T) {
	r := &countingRunner{}
	s := New(r, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if got := r.calls.Load(); got != 0 {
		t.Errorf("RunCycle called %d times with cancelled context", got)
	}
}
