package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/config"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/logger"
)

func testScheduleConfig() config.ScheduleConfig {
	return config.ScheduleConfig{
		IntervalMinutes:      30,
		FixedTimes:           []string{"09:00", "14:00"},
		CheckIntervalSeconds: 60,
		CooldownSeconds:      1,
	}
}

func TestTimeToCron(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"09:00", "0 9 * * *", false},
		{"14:30", "30 14 * * *", false},
		{"23:59", "59 23 * * *", false},
		{"24:00", "", true},
		{"09:60", "", true},
		{"0900", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := timeToCron(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("timeToCron(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("timeToCron(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := testScheduleConfig()
	cfg.IntervalMinutes = 0
	if _, err := New(cfg, logger.Nop()); err == nil {
		t.Error("zero interval should be rejected")
	}

	cfg = testScheduleConfig()
	cfg.FixedTimes = []string{"nonsense"}
	if _, err := New(cfg, logger.Nop()); err == nil {
		t.Error("bad fixed time should be rejected")
	}
}

func TestScheduler_ShouldRunAfterInterval(t *testing.T) {
	cfg := testScheduleConfig()
	cfg.FixedTimes = nil
	s, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	s.lastRun = now

	if s.ShouldRun(now.Add(10 * time.Minute)) {
		t.Error("should not fire before the interval elapses")
	}
	if !s.ShouldRun(now.Add(31 * time.Minute)) {
		t.Error("should fire after the interval elapses")
	}
}

func TestScheduler_FixedTimeTrigger(t *testing.T) {
	cfg := testScheduleConfig()
	cfg.IntervalMinutes = 48 * 60 // park the interval out of the way
	s, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	s.lastRun = now
	for i := range s.fixedLast {
		s.fixedLast[i] = now
	}

	// Over the next 25 hours both fixed times must come due
	if !s.ShouldRun(now.Add(25 * time.Hour)) {
		t.Error("fixed time should have fired within a day")
	}
}

func TestScheduler_SkipIfBusy(t *testing.T) {
	cfg := testScheduleConfig()
	s, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	s.markRunning()
	if s.ShouldRun(time.Now().Add(48 * time.Hour)) {
		t.Error("triggers must be dropped while a pass is running")
	}

	s.markComplete()
	// markComplete fast-forwards every trigger: nothing fires immediately
	if s.ShouldRun(time.Now()) {
		t.Error("completed pass should reset all triggers")
	}
}

func TestScheduler_RunsImmediatelyThenStops(t *testing.T) {
	cfg := testScheduleConfig()
	cfg.CheckIntervalSeconds = 1
	s, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	done := make(chan struct{})
	go func() {
		s.Run(context.Background(), func(ctx context.Context) error {
			calls++
			return nil
		})
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if calls != 1 {
		t.Errorf("pass ran %d times, want the immediate startup run only", calls)
	}
}

func TestScheduler_PassErrorDoesNotStopLoop(t *testing.T) {
	cfg := testScheduleConfig()
	cfg.CooldownSeconds = 0
	s, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// A failing pass must return control to the loop, not kill the service
	s.Run(ctx, func(ctx context.Context) error {
		return context.DeadlineExceeded
	})
}

func TestScheduler_NextRun(t *testing.T) {
	cfg := testScheduleConfig()
	s, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	s.lastRun = now

	next := s.NextRun()
	if next.IsZero() {
		t.Fatal("NextRun should return a time")
	}
	if next.After(now.Add(30*time.Minute + time.Second)) {
		t.Errorf("next run %v is past the interval bound", next)
	}
}
