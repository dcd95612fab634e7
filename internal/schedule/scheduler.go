// Package schedule drives recurring pipeline passes from a cooperative
// polling loop: one interval trigger plus optional fixed times of day.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hochfrequenz/claude-review-orchestrator/internal/config"
	"github.com/hochfrequenz/claude-review-orchestrator/internal/logger"
)

// PassFunc runs one pipeline pass
type PassFunc func(ctx context.Context) error

// Scheduler owns its trigger list and last-run timestamps. Constructed
// once at startup and handed to the run loop; there is no ambient global
// registration.
type Scheduler struct {
	interval   time.Duration
	fixed      []cron.Schedule
	checkEvery time.Duration
	cooldown   time.Duration
	log        *logger.Logger

	mu        sync.Mutex
	lastRun   time.Time
	fixedLast []time.Time // per-fixed-trigger baseline for Next()
	running   bool

	stopChan chan struct{}
	stopOnce sync.Once
}

// New builds a Scheduler from configuration. Fixed times are "HH:MM"
// wall-clock strings, evaluated daily.
func New(cfg config.ScheduleConfig, log *logger.Logger) (*Scheduler, error) {
	if cfg.IntervalMinutes <= 0 {
		return nil, fmt.Errorf("schedule interval must be positive, got %d", cfg.IntervalMinutes)
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	var fixed []cron.Schedule
	for _, at := range cfg.FixedTimes {
		expr, err := timeToCron(at)
		if err != nil {
			return nil, err
		}
		sched, err := parser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("fixed time %q: %w", at, err)
		}
		fixed = append(fixed, sched)
	}

	now := time.Now()
	fixedLast := make([]time.Time, len(fixed))
	for i := range fixedLast {
		fixedLast[i] = now
	}

	return &Scheduler{
		interval:   cfg.Interval(),
		fixed:      fixed,
		checkEvery: cfg.CheckInterval(),
		cooldown:   cfg.Cooldown(),
		log:        log,
		fixedLast:  fixedLast,
		stopChan:   make(chan struct{}),
	}, nil
}

// timeToCron converts "HH:MM" to a daily cron expression
func timeToCron(at string) (string, error) {
	parts := strings.SplitN(at, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("fixed time %q: want HH:MM", at)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("fixed time %q: bad hour", at)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("fixed time %q: bad minute", at)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// ShouldRun reports whether any trigger has fired since the last pass.
// While a pass is running every trigger is dropped, never queued: two
// passes must not race on the tracking store.
func (s *Scheduler) ShouldRun(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	if now.Sub(s.lastRun) >= s.interval {
		return true
	}
	for i, sched := range s.fixed {
		if now.After(sched.Next(s.fixedLast[i])) {
			return true
		}
	}
	return false
}

// markRunning flags a pass in flight
func (s *Scheduler) markRunning() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
}

// markComplete records the pass end and fast-forwards every trigger, so
// anything that fired while the pass ran is dropped rather than replayed
func (s *Scheduler) markComplete() {
	s.mu.Lock()
	now := time.Now()
	s.running = false
	s.lastRun = now
	for i := range s.fixedLast {
		s.fixedLast[i] = now
	}
	s.mu.Unlock()
}

// NextRun returns the earliest upcoming trigger time
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.lastRun.Add(s.interval)
	for i, sched := range s.fixed {
		if t := sched.Next(s.fixedLast[i]); t.Before(next) {
			next = t
		}
	}
	return next
}

// Run executes pass immediately, then keeps polling triggers until the
// context is cancelled or Stop is called. A failed pass is logged, waits
// out the cool-down, and the loop continues: nothing here terminates the
// service.
func (s *Scheduler) Run(ctx context.Context, pass PassFunc) {
	s.runPass(ctx, pass)

	ticker := time.NewTicker(s.checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			if s.ShouldRun(time.Now()) {
				s.runPass(ctx, pass)
			}
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context, pass PassFunc) {
	s.markRunning()
	err := pass(ctx)
	s.markComplete()

	if err != nil && ctx.Err() == nil {
		s.log.Errorf("pass failed, cooling down %s: %v", s.cooldown, err)
		select {
		case <-ctx.Done():
		case <-s.stopChan:
		case <-time.After(s.cooldown):
		}
	}
}

// Stop terminates the run loop
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
