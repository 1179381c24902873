package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/soochol/blogforge/internal/config"
	"github.com/soochol/blogforge/internal/repository"
	"github.com/soochol/blogforge/internal/services"
)

type countingRunner struct{ runs atomic.Int32 }

func (c *countingRunner) Run(context.Context) services.Result {
	n := c.runs.Add(1)
	return services.Result{Success: true, WorkflowID: fmt.Sprintf("wf-%d", n)}
}

type brokenLeases struct{}

func (brokenLeases) Acquire(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("db down")
}
func (brokenLeases) Heartbeat(context.Context, string, string) (bool, error) { return false, nil }
func (brokenLeases) Release(context.Context, string, string) error           { return nil }

func testConfig() config.SchedulerConfig {
	return config.SchedulerConfig{Enabled: true, Cron: "0 */12 * * *", SingleFlight: true, LeaseTTL: time.Minute}
}

func TestParseCronExpr_5Field(t *testing.T) {
	sched, err := parseCronExpr("*/5 * * * *", "")
	if err != nil {
		t.Fatalf("expected 5-field expression to parse, got error: %v", err)
	}
	if sched.Next(time.Now()).IsZero() {
		t.Fatal("expected non-zero next time")
	}
}

func TestParseCronExpr_6Field(t *testing.T) {
	sched, err := parseCronExpr("0 */5 * * * *", "")
	if err != nil {
		t.Fatalf("expected 6-field expression to parse, got error: %v", err)
	}
	if sched.Next(time.Now()).IsZero() {
		t.Fatal("expected non-zero next time")
	}
}

func TestParseCronExpr_Timezone(t *testing.T) {
	sched, err := parseCronExpr("0 9 * * *", "Asia/Seoul")
	if err != nil {
		t.Fatalf("parse with timezone: %v", err)
	}
	seoul, _ := time.LoadLocation("Asia/Seoul")
	next := sched.Next(time.Now()).In(seoul)
	if next.Hour() != 9 || next.Minute() != 0 {
		t.Fatalf("expected 09:00 Seoul time, got %v", next)
	}
}

func TestParseCronExpr_Invalid(t *testing.T) {
	if _, err := parseCronExpr("invalid cron", ""); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestNew_InvalidCron(t *testing.T) {
	cfg := testConfig()
	cfg.Cron = "every day"
	if _, err := New(cfg, &countingRunner{}); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestTick_WithoutSingleFlight(t *testing.T) {
	cfg := testConfig()
	cfg.SingleFlight = false
	runner := &countingRunner{}
	s, err := New(cfg, runner, WithLeases(brokenLeases{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ran := s.Tick(context.Background()); !ran {
		t.Fatal("expected tick to run when single flight is off")
	}
	if got := runner.runs.Load(); got != 1 {
		t.Fatalf("expected 1 run, got %d", got)
	}
	if s.Info().SingleFlight {
		t.Fatal("expected single flight to be reported off")
	}
}

func TestTick_SkipsWhenLeaseHeld(t *testing.T) {
	leases := repository.NewMemoryLeaseRepository()
	ctx := context.Background()
	if ok, _ := leases.Acquire(ctx, LeaseName, "other-host", time.Minute); !ok {
		t.Fatal("setup: expected other-host to acquire")
	}

	runner := &countingRunner{}
	s, err := New(testConfig(), runner, WithLeases(leases), WithHolder("me"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ran := s.Tick(ctx); ran {
		t.Fatal("expected tick to be skipped")
	}
	if got := runner.runs.Load(); got != 0 {
		t.Fatalf("expected no run, got %d", got)
	}

	if err := leases.Release(ctx, LeaseName, "other-host"); err != nil {
		t.Fatalf("release: %v", err)
	}
	res, ran := s.Tick(ctx)
	if !ran || !res.Success {
		t.Fatalf("expected run after release, ran=%v res=%+v", ran, res)
	}

	// The lease is released after the run.
	if ok, _ := leases.Acquire(ctx, LeaseName, "other-host", time.Minute); !ok {
		t.Fatal("expected lease to be free after the tick")
	}
}

func TestTick_SkipsOnLeaseError(t *testing.T) {
	runner := &countingRunner{}
	s, err := New(testConfig(), runner, WithLeases(brokenLeases{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ran := s.Tick(context.Background()); ran {
		t.Fatal("expected tick to be skipped on lease error")
	}
	if got := runner.runs.Load(); got != 0 {
		t.Fatalf("expected no run, got %d", got)
	}
}

func TestInfo(t *testing.T) {
	s, err := New(testConfig(), &countingRunner{}, WithLeases(repository.NewMemoryLeaseRepository()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info := s.Info()
	if !info.Enabled || info.Cron != "0 */12 * * *" || !info.SingleFlight {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.RunTimeout != "5m0s" {
		t.Fatalf("expected default run timeout, got %q", info.RunTimeout)
	}
	if info.Next.IsZero() {
		t.Fatal("expected next run time")
	}
}

func TestStartStop_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	s, err := New(cfg, &countingRunner{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	s.Stop()
}
