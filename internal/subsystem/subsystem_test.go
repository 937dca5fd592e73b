package subsystem

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shaiso/Climatica/internal/orchestrator"
	"github.com/shaiso/Climatica/internal/scheduler"
)

type countingRunner struct {
	calls int
	err   error
	ran   chan struct{}
}

func (r *countingRunner) Run(context.Context) (*orchestrator.Result, error) {
	r.calls++
	if r.ran != nil {
		r.ran <- struct{}{}
	}
	return &orchestrator.Result{}, r.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Execute Tests ---

func TestExecute_Once(t *testing.T) {
	r := &countingRunner{err: orchestrator.ErrNoModules}

	err := Execute(context.Background(), r, "", discard())
	if !errors.Is(err, orchestrator.ErrNoModules) {
		t.Errorf("expected ErrNoModules, got %v", err)
	}
	if r.calls != 1 {
		t.Errorf("expected 1 run, got %d", r.calls)
	}
}

func TestExecute_InvalidSchedule(t *testing.T) {
	r := &countingRunner{}

	err := Execute(context.Background(), r, "every monday", discard())
	if !errors.Is(err, scheduler.ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule, got %v", err)
	}
	if r.calls != 0 {
		t.Errorf("expected no runs, got %d", r.calls)
	}
}

func TestExecute_ScheduledUntilCancel(t *testing.T) {
	r := &countingRunner{err: errors.New("upstream down"), ran: make(chan struct{}, 10)}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Execute(ctx, r, "@every 1s", discard()) }()

	select {
	case <-r.ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled run did not happen")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("failed runs must not stop the schedule, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("execute did not return after cancel")
	}
}
