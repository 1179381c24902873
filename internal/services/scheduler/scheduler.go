// Package scheduler fires the blog workflow on a cron schedule, optionally
// guarded by an advisory single-flight lease shared between instances.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/soochol/blogforge/internal/config"
	"github.com/soochol/blogforge/internal/repository"
	"github.com/soochol/blogforge/internal/services"
)

// LeaseName is the lease row guarding scheduled runs.
const LeaseName = "blog-generation"

const defaultLeaseTTL = 10 * time.Minute

// Runner runs one workflow synchronously.
type Runner interface {
	Run(ctx context.Context) services.Result
}

// Info describes the configured schedule.
type Info struct {
	Enabled      bool      `json:"enabled"`
	Cron         string    `json:"cron"`
	Timezone     string    `json:"timezone"`
	Next         time.Time `json:"next,omitempty"`
	SingleFlight bool      `json:"singleFlight"`
	RunTimeout   string    `json:"runTimeout"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLeases enables the single-flight guard over repo.
func WithLeases(repo repository.LeaseRepository) Option {
	return func(s *Scheduler) { s.leases = repo }
}

// WithHolder overrides the lease holder identity.
func WithHolder(holder string) Option {
	return func(s *Scheduler) { s.holder = holder }
}

// Scheduler wraps robfig/cron with one entry for the blog workflow.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	cfg      config.SchedulerConfig
	runner   Runner
	leases   repository.LeaseRepository
	holder   string
	ttl      time.Duration

	mu      sync.Mutex
	entryID cron.EntryID
	started bool
}

// New parses the configured expression and prepares a Scheduler. Nothing
// runs until Start.
func New(cfg config.SchedulerConfig, runner Runner, opts ...Option) (*Scheduler, error) {
	sched, err := parseCronExpr(cfg.Cron, cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", cfg.Cron, err)
	}
	s := &Scheduler{
		cron:     cron.New(),
		schedule: sched,
		cfg:      cfg,
		runner:   runner,
		holder:   defaultHolder(),
		ttl:      cfg.LeaseTTL,
	}
	if s.ttl <= 0 {
		s.ttl = defaultLeaseTTL
	}
	for _, opt := range opts {
		opt(s)
	}
	if !cfg.SingleFlight {
		s.leases = nil
	}
	return s, nil
}

func defaultHolder() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Start registers the cron entry and starts the cron loop. A disabled
// schedule is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.started {
		return
	}
	s.entryID = s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.Tick(context.Background())
	}))
	s.cron.Start()
	s.started = true
	slog.Info("scheduler: started", "cron", s.cfg.Cron, "timezone", s.cfg.Timezone,
		"single_flight", s.leases != nil, "next", s.schedule.Next(time.Now()))
}

// Stop stops the cron loop and waits for a running tick to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if !started {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler: stopped")
}

// Info describes the schedule for status endpoints.
func (s *Scheduler) Info() Info {
	timeout := s.cfg.RunTimeout
	if timeout <= 0 {
		timeout = services.DefaultRunTimeout
	}
	return Info{
		Enabled:      s.cfg.Enabled,
		Cron:         s.cfg.Cron,
		Timezone:     s.cfg.Timezone,
		Next:         s.schedule.Next(time.Now()),
		SingleFlight: s.leases != nil,
		RunTimeout:   timeout.String(),
	}
}

// Tick runs one scheduled execution. It reports false when the run was
// skipped because another holder owns the lease or the lease store failed.
func (s *Scheduler) Tick(ctx context.Context) (services.Result, bool) {
	if s.leases == nil {
		return s.run(ctx), true
	}

	ok, err := s.leases.Acquire(ctx, LeaseName, s.holder, s.ttl)
	if err != nil {
		slog.Warn("scheduler: lease acquire failed, skipping tick", "holder", s.holder, "err", err)
		return services.Result{}, false
	}
	if !ok {
		slog.Info("scheduler: lease held elsewhere, skipping tick", "holder", s.holder)
		return services.Result{}, false
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.heartbeat(hbCtx)
	}()
	defer func() {
		stopHeartbeat()
		wg.Wait()
		if err := s.leases.Release(context.WithoutCancel(ctx), LeaseName, s.holder); err != nil {
			slog.Warn("scheduler: lease release failed", "holder", s.holder, "err", err)
		}
	}()
	return s.run(ctx), true
}

func (s *Scheduler) heartbeat(ctx context.Context) {
	t := time.NewTicker(s.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ok, err := s.leases.Heartbeat(ctx, LeaseName, s.holder)
			if err != nil || !ok {
				slog.Warn("scheduler: lease heartbeat lost", "holder", s.holder, "err", err)
			}
		}
	}
}

func (s *Scheduler) run(ctx context.Context) services.Result {
	res := s.runner.Run(ctx)
	if res.Success {
		slog.Info("scheduler: run completed", "workflow_id", res.WorkflowID, "duration_ms", res.Duration.Milliseconds())
	} else {
		slog.Error("scheduler: run failed", "workflow_id", res.WorkflowID, "err", res.Error)
	}
	return res
}
