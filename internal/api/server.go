package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/soochol/blogforge/internal/repository"
	"github.com/soochol/blogforge/internal/resilience"
	"github.com/soochol/blogforge/internal/services"
	"github.com/soochol/blogforge/internal/services/scheduler"
)

type Server struct {
	launcher   *services.Launcher
	status     *services.StatusService
	articles   repository.ArticleRepository
	scheduler  *scheduler.Scheduler
	cronSecret string
	limiters   []*resilience.Limiter
	breakers   []*resilience.Breaker
	mediaPath  string
	media      http.Handler
}

func NewServer(launcher *services.Launcher, status *services.StatusService, articles repository.ArticleRepository) *Server {
	return &Server{
		launcher: launcher,
		status:   status,
		articles: articles,
	}
}

// SetScheduler exposes the cron schedule on the cron endpoint.
func (s *Server) SetScheduler(sched *scheduler.Scheduler) {
	s.scheduler = sched
}

// SetCronSecret protects the cron endpoint. An empty secret leaves it open.
func (s *Server) SetCronSecret(secret string) {
	s.cronSecret = secret
}

// SetResilience registers the limiters and breakers reported by the stats endpoint.
func (s *Server) SetResilience(limiters []*resilience.Limiter, breakers []*resilience.Breaker) {
	s.limiters = limiters
	s.breakers = breakers
}

// SetMediaHandler serves locally stored images under path.
func (s *Server) SetMediaHandler(path string, h http.Handler) {
	s.mediaPath = strings.TrimSuffix(path, "/")
	s.media = h
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Route("/api", func(r chi.Router) {
		r.Route("/blog-generation", func(r chi.Router) {
			r.Post("/run", s.startRun)
			r.Get("/run", s.describeRun)
			r.Get("/status/{workflowId}", s.getStatus)
			r.Post("/cron", s.runCron)
			r.Get("/cron", s.describeCron)
			r.Get("/stats", s.getStats)
		})
		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.listArticles)
			r.Get("/{slug}", s.getArticle)
			r.Patch("/{id}/status", s.updateArticleStatus)
		})
	})
	if s.media != nil && s.mediaPath != "" {
		r.Handle(s.mediaPath+"/*", s.media)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
