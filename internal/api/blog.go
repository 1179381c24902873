package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/repository"
)

const statusPathPrefix = "/api/blog-generation/status/"

type stepView struct {
	Name      blog.StepName   `json:"name"`
	Status    blog.StepStatus `json:"status"`
	Duration  *int64          `json:"duration"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

type workflowView struct {
	ID          string          `json:"id"`
	Status      blog.StepStatus `json:"status"`
	CurrentStep blog.StepName   `json:"currentStep"`
	StepNumber  int             `json:"stepNumber"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Steps       []stepView      `json:"steps"`
}

// startRun launches a workflow in the background.
// POST /api/blog-generation/run
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	id := s.launcher.Start(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success":    true,
		"message":    "Blog generation workflow started",
		"workflowId": id,
		"statusUrl":  statusPathPrefix + id,
	})
}

// describeRun lists the workflow endpoints.
// GET /api/blog-generation/run
func (s *Server) describeRun(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Blog generation API",
		"endpoints": map[string]string{
			"POST /api/blog-generation/run":                "start a workflow in the background",
			"GET /api/blog-generation/status/{workflowId}": "workflow status and step history",
			"POST /api/blog-generation/cron":               "run a workflow synchronously (scheduled trigger)",
			"GET /api/blog-generation/cron":                "schedule description",
			"GET /api/blog-generation/stats":               "rate limiter and circuit breaker state",
		},
	})
}

// getStatus returns the derived status of one workflow.
// GET /api/blog-generation/status/{workflowId}
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowId")
	st, err := s.status.Status(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Workflow not found")
		return
	}
	if err != nil {
		slog.Error("api: workflow status", "workflow_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to get workflow status")
		return
	}

	view := workflowView{
		ID:          st.WorkflowID,
		Status:      st.Status,
		CurrentStep: st.CurrentStep,
		StepNumber:  st.StepNumber,
		Error:       st.Error,
		StartedAt:   st.StartedAt,
		LastUpdated: st.LastUpdated,
		Steps:       make([]stepView, 0, len(st.Steps)),
	}
	for _, rec := range st.Steps {
		view.Steps = append(view.Steps, stepView{
			Name:      rec.StepName,
			Status:    rec.Status,
			Duration:  rec.DurationMs,
			Timestamp: rec.CreatedAt,
			Metadata:  rec.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "workflow": view})
}

// runCron runs one workflow synchronously for an external scheduler.
// POST /api/blog-generation/cron
func (s *Server) runCron(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeCron(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	// A dropped caller does not abort the run; the launcher ceiling still applies.
	res := s.launcher.Run(context.WithoutCancel(r.Context()))
	if !res.Success {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success":    false,
			"workflowId": res.WorkflowID,
			"error":      res.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    "Blog generated successfully",
		"workflowId": res.WorkflowID,
		"blog": map[string]any{
			"id":    res.Article.ID,
			"title": res.Article.Title,
			"slug":  res.Article.Slug,
		},
		"duration": res.Duration.Milliseconds(),
		"degraded": res.Degraded,
	})
}

// describeCron reports the in-process schedule.
// GET /api/blog-generation/cron
func (s *Server) describeCron(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"message":  "Blog generation cron endpoint",
		"schedule": nil,
	}
	if s.scheduler != nil {
		resp["schedule"] = s.scheduler.Info()
	}
	writeJSON(w, http.StatusOK, resp)
}

// getStats reports limiter queues, breaker states and in-flight runs.
// GET /api/blog-generation/stats
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	limiters := make([]any, 0, len(s.limiters))
	for _, l := range s.limiters {
		limiters = append(limiters, l.Stats())
	}
	breakers := make([]any, 0, len(s.breakers))
	for _, b := range s.breakers {
		breakers = append(breakers, b.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"limiters": limiters,
		"breakers": breakers,
		"inFlight": s.launcher.InFlight(),
	})
}
