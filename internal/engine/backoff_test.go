package engine

import (
	"testing"
	"time"

	"github.com/shaiso/Climatica/internal/domain"
)

// --- NextBackoff Tests ---

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		name    string
		current domain.TimeSpan
		cap     int
		want    domain.TimeSpan
	}{
		{"doubles seconds", domain.Span(1, domain.UnitSecond), 0, domain.Span(2, domain.UnitSecond)},
		{"promotes to minutes", domain.Span(60, domain.UnitSecond), 0, domain.Span(2, domain.UnitMinute)},
		{"keeps odd seconds", domain.Span(45, domain.UnitSecond), 0, domain.Span(90, domain.UnitSecond)},
		{"keeps seconds without even division", domain.Span(32, domain.UnitSecond), 0, domain.Span(64, domain.UnitSecond)},
		{"keeps minutes without even division", domain.Span(45, domain.UnitMinute), 0, domain.Span(90, domain.UnitMinute)},
		{"promotes to hours", domain.Span(30, domain.UnitMinute), 0, domain.Span(1, domain.UnitHour)},
		{"promotes to days", domain.Span(12, domain.UnitHour), 0, domain.Span(1, domain.UnitDay)},
		{"caps at limit", domain.Span(16, domain.UnitHour), 0, domain.Span(86400, domain.UnitSecond)},
		{"custom cap", domain.Span(40, domain.UnitSecond), 60, domain.Span(60, domain.UnitSecond)},
		{"never goes to cap", domain.Span(1, domain.UnitNever), 3600, domain.Span(3600, domain.UnitSecond)},
		{"zero becomes one", domain.Span(0, domain.UnitSecond), 0, domain.Span(1, domain.UnitSecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextBackoff(tt.current, tt.cap)
			if got != tt.want {
				t.Errorf("NextBackoff(%s) = %s, want %s", tt.current, got, tt.want)
			}
		})
	}
}

func TestNextBackoff_ReachesCapMonotonically(t *testing.T) {
	span := CollectorMinBackoff
	prev := span.Seconds()

	for i := 0; i < 40; i++ {
		span = NextBackoff(span, DefaultMaxBackoffSeconds)
		if span.Seconds() < prev {
			t.Fatalf("backoff decreased: %d -> %d", prev, span.Seconds())
		}
		prev = span.Seconds()
	}

	if span.Seconds() != DefaultMaxBackoffSeconds {
		t.Errorf("expected cap %d, got %d", DefaultMaxBackoffSeconds, span.Seconds())
	}
}

// --- BackoffPolicy Tests ---

func TestBackoffPolicy_SameClassDoubles(t *testing.T) {
	policy := BackoffPolicy{Min: CollectorMinBackoff, CapSeconds: DefaultMaxBackoffSeconds}
	state := domain.ModuleState{
		BackoffTime:    domain.Span(4, domain.UnitSecond),
		LastErrorClass: domain.ClassTransientFetch,
		Error:          &domain.ErrorInfo{Class: domain.ClassTransientFetch, Message: "timeout"},
	}

	policy.Apply(&state, false)

	if state.BackoffTime != domain.Span(8, domain.UnitSecond) {
		t.Errorf("expected 8 s, got %s", state.BackoffTime)
	}
	if !state.RestartRequired {
		t.Error("expected restart_required")
	}
	if state.ErrorCounts[domain.ClassTransientFetch] != 1 {
		t.Errorf("expected error count 1, got %d", state.ErrorCounts[domain.ClassTransientFetch])
	}
}

func TestBackoffPolicy_NewClassResets(t *testing.T) {
	policy := BackoffPolicy{Min: CollectorMinBackoff, CapSeconds: DefaultMaxBackoffSeconds}
	state := domain.ModuleState{
		BackoffTime:    domain.Span(2, domain.UnitHour),
		LastErrorClass: domain.ClassTransientFetch,
		Error:          &domain.ErrorInfo{Class: domain.ClassPersistence, Message: "db down"},
	}

	policy.Apply(&state, false)

	if state.BackoffTime != CollectorMinBackoff {
		t.Errorf("expected min backoff, got %s", state.BackoffTime)
	}
	if state.LastErrorClass != domain.ClassPersistence {
		t.Errorf("expected last_error %s, got %s", domain.ClassPersistence, state.LastErrorClass)
	}
}

func TestBackoffPolicy_SuccessResets(t *testing.T) {
	policy := BackoffPolicy{Min: ConverterMinBackoff, CapSeconds: DefaultMaxBackoffSeconds}
	state := domain.ModuleState{BackoffTime: domain.Span(2, domain.UnitHour)}

	policy.Apply(&state, false)

	if state.BackoffTime != ConverterMinBackoff {
		t.Errorf("expected min backoff, got %s", state.BackoffTime)
	}
	if state.RestartRequired {
		t.Error("restart_required must stay false after success")
	}
}

func TestBackoffPolicy_PreventedKeepsRestart(t *testing.T) {
	policy := BackoffPolicy{Min: CollectorMinBackoff, CapSeconds: DefaultMaxBackoffSeconds}
	state := domain.ModuleState{BackoffTime: domain.Span(8, domain.UnitSecond)}

	policy.Apply(&state, true)

	if !state.RestartRequired {
		t.Error("expected restart_required to stay set")
	}
	if state.BackoffTime != domain.Span(8, domain.UnitSecond) {
		t.Errorf("backoff must not change, got %s", state.BackoffTime)
	}
}

// --- HasPendingWork Tests ---

func TestHasPendingWork_NeverRequested(t *testing.T) {
	state := domain.ModuleState{UpdateFrequency: domain.Span(1, domain.UnitDay)}

	got := HasPendingWork(time.Now(), &state)
	if !got.Pending {
		t.Error("module that never ran must have pending work")
	}
}

func TestHasPendingWork_UpdateFrequency(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Hour)
	old := now.Add(-25 * time.Hour)

	state := domain.ModuleState{LastRequest: &recent, UpdateFrequency: domain.Span(1, domain.UnitDay)}
	if HasPendingWork(now, &state).Pending {
		t.Error("expected no pending work before update_frequency elapsed")
	}

	state.LastRequest = &old
	if !HasPendingWork(now, &state).Pending {
		t.Error("expected pending work after update_frequency elapsed")
	}
}

func TestHasPendingWork_BackoffPrevented(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	last := now.Add(-5 * time.Second)

	state := domain.ModuleState{
		LastRequest:     &last,
		UpdateFrequency: domain.Span(1, domain.UnitSecond),
		BackoffTime:     domain.Span(1, domain.UnitMinute),
		RestartRequired: true,
	}

	got := HasPendingWork(now, &state)
	if got.Pending || !got.BackoffPrevented {
		t.Errorf("expected backoff prevented, got %+v", got)
	}
	if !state.RestartRequired {
		t.Error("restart_required must stay set while backoff is active")
	}
}

func TestHasPendingWork_BackoffElapsed(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Minute)

	state := domain.ModuleState{
		LastRequest:     &last,
		UpdateFrequency: domain.Span(1, domain.UnitMonth),
		BackoffTime:     domain.Span(1, domain.UnitMinute),
		RestartRequired: true,
	}

	got := HasPendingWork(now, &state)
	if !got.Pending {
		t.Error("expected pending work once backoff elapsed")
	}
	if state.RestartRequired {
		t.Error("restart_required must be cleared")
	}
}

func TestHasPendingWork_Never(t *testing.T) {
	last := time.Now().Add(-365 * 24 * time.Hour)
	state := domain.ModuleState{LastRequest: &last, UpdateFrequency: domain.Span(1, domain.UnitNever)}

	if HasPendingWork(time.Now(), &state).Pending {
		t.Error("never update frequency must not produce pending work")
	}
}
