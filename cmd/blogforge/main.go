package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soochol/blogforge/internal/api"
	"github.com/soochol/blogforge/internal/config"
	"github.com/soochol/blogforge/internal/db"
	"github.com/soochol/blogforge/internal/repository"
	"github.com/soochol/blogforge/internal/services/scheduler"
)

const usage = `blogforge v0.1.0

Usage:
  blogforge serve            start the HTTP API and the scheduler
  blogforge run              run one workflow and print the result
  blogforge migrate          apply database migrations
  blogforge status <id>      print the status of a workflow`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "serve":
		err = serve(ctx, cfg)
	case "run":
		err = runOnce(ctx, cfg)
	case "migrate":
		err = migrate(ctx, cfg)
	case "status":
		if len(os.Args) < 3 {
			fmt.Println(usage)
			os.Exit(2)
		}
		err = status(ctx, cfg, os.Args[2])
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("blogforge: "+os.Args[1]+" failed", "err", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := api.NewServer(a.launcher, a.status, a.articles)
	srv.SetCronSecret(cfg.Scheduler.CronSecret)
	srv.SetResilience(a.limiters, a.breakers)
	if a.local != nil {
		srv.SetMediaHandler(a.local.PublicBase(), a.local.Handler())
	}

	sched, err := scheduler.New(cfg.Scheduler, a.launcher, scheduler.WithLeases(a.leases))
	if err != nil {
		return err
	}
	srv.SetScheduler(sched)
	sched.Start()
	defer sched.Stop()

	httpSrv := &http.Server{Addr: cfg.Addr(), Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting blogforge server", "addr", cfg.Addr())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("blogforge: shutting down", "in_flight", a.launcher.InFlight())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("blogforge: http shutdown", "err", err)
	}
	a.launcher.Wait()
	return nil
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.launcher.Run(ctx)
	if err := printJSON(res); err != nil {
		return err
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return errors.New("database url is not configured")
	}
	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()
	return database.Migrate(ctx)
}

func status(ctx context.Context, cfg *config.Config, workflowID string) error {
	if cfg.Database.URL == "" {
		return errors.New("status needs a database; in-memory runs end with the process")
	}
	database, err := db.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	steps := repository.NewPersistentStepRepository(repository.NewMemoryStepRepository(), database)
	records, err := steps.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("workflow %s: %w", workflowID, repository.ErrNotFound)
	}
	for _, r := range records {
		line := fmt.Sprintf("%3d  %-20s %-11s %s", r.StepNumber, r.StepName, r.Status, r.CreatedAt.Format(time.RFC3339))
		if r.DurationMs != nil {
			line += fmt.Sprintf("  %dms", *r.DurationMs)
		}
		if r.ErrorMessage != "" {
			line += "  " + r.ErrorMessage
		}
		fmt.Println(line)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
