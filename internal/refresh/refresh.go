// Package refresh drives the two background triggers that keep labels fresh:
// a periodic (hourly) tick and a tick at every local midnight.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dday/internal/dday"
	appLog "dday/internal/log"
)

// DefaultSpec fires at the top of every hour.
const DefaultSpec = "0 * * * *"

// Handler is what the triggers call into. Both entries end in a full
// resynchronization; MidnightTick may prune first.
type Handler interface {
	Refresh(ctx context.Context) error
	MidnightTick(ctx context.Context) error
}

// midnight is a cron.Schedule for the next local midnight. cron asks for the
// following activation after every run, which re-arms the one-shot.
type midnight struct {
	loc *time.Location
}

func (m midnight) Next(t time.Time) time.Time {
	return dday.NextMidnight(t.In(m.loc))
}

// Scheduler owns the cron instance. Suspend tears it down; Resume builds a
// fresh one so nothing from the suspended period fires late.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	loc      *time.Location
	handler  Handler

	mu      sync.Mutex
	c       *cron.Cron
	baseCtx context.Context
}

// New validates spec (standard 5-field cron or a descriptor like "@hourly").
func New(spec string, loc *time.Location, h Handler) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.Local
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("refresh: parse schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, schedule: sched, loc: loc, handler: h}, nil
}

// Start arms both triggers. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.baseCtx = ctx

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() { s.RunPeriodic(s.ctx()) }))
	c.Schedule(midnight{loc: s.loc}, cron.FuncJob(func() { s.RunMidnight(s.ctx()) }))
	c.Start()
	s.c = c

	now := time.Now().In(s.loc)
	appLog.Info("refresh armed",
		"spec", s.spec,
		"next_periodic", s.schedule.Next(now),
		"next_midnight", dday.NextMidnight(now),
	)
}

// Suspend stops both triggers and waits for a running job to finish.
func (s *Scheduler) Suspend() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	appLog.Info("refresh suspended")
}

// Resume re-arms after Suspend.
func (s *Scheduler) Resume(ctx context.Context) {
	s.Start(ctx)
}

// Running reports whether the triggers are armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}

// RunPeriodic performs one periodic tick.
func (s *Scheduler) RunPeriodic(ctx context.Context) {
	s.run(ctx, "periodic", s.handler.Refresh)
}

// RunMidnight performs one day-rollover tick.
func (s *Scheduler) RunMidnight(ctx context.Context) {
	s.run(ctx, "midnight", s.handler.MidnightTick)
}

func (s *Scheduler) run(ctx context.Context, trigger string, fn func(context.Context) error) {
	start := time.Now()
	err := fn(ctx)
	tickDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	if err != nil {
		ticksTotal.WithLabelValues(trigger, "error").Inc()
		appLog.Error("refresh tick failed", err, "trigger", trigger)
		return
	}
	ticksTotal.WithLabelValues(trigger, "ok").Inc()
	appLog.Debug("refresh tick", "trigger", trigger)
}

func (s *Scheduler) ctx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx == nil {
		return context.Background()
	}
	return s.baseCtx
}

// cronLogger routes cron's own logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
