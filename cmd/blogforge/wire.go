package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	adkmodel "google.golang.org/adk/model"

	"github.com/soochol/blogforge/internal/blog/ports"
	"github.com/soochol/blogforge/internal/config"
	"github.com/soochol/blogforge/internal/db"
	"github.com/soochol/blogforge/internal/media"
	"github.com/soochol/blogforge/internal/model"
	"github.com/soochol/blogforge/internal/repository"
	"github.com/soochol/blogforge/internal/resilience"
	"github.com/soochol/blogforge/internal/services"
	"github.com/soochol/blogforge/internal/sources"
	"github.com/soochol/blogforge/internal/storage"
	"github.com/soochol/blogforge/internal/writer"
)

// app holds every long-lived component of the process.
type app struct {
	cfg      *config.Config
	database *db.DB
	steps    repository.StepRepository
	articles repository.ArticleRepository
	leases   repository.LeaseRepository
	status   *services.StatusService
	workflow *services.BlogWorkflow
	launcher *services.Launcher
	limiters []*resilience.Limiter
	breakers []*resilience.Breaker
	local    *storage.LocalStorage
}

func (a *app) Close() {
	if a.database != nil {
		a.database.Close()
	}
}

// newApp connects storage and builds the workflow from cfg. Without a
// database URL everything runs in memory.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.initRepositories(ctx); err != nil {
		return nil, err
	}

	llm, err := a.textModel()
	if err != nil {
		a.Close()
		return nil, err
	}

	textLimiter := resilience.NewLimiter(llm.Name(), cfg.RateLimit.MinInterval, resilience.WithMaxQueue(cfg.RateLimit.MaxQueue))
	a.limiters = append(a.limiters, textLimiter)
	prompts := writer.NewPrompts(cfg.Company, cfg.Requirements)
	w := writer.New(llm, a.guard(llm.Name(), textLimiter), prompts, cfg.Generation)

	trends, err := a.trendSource()
	if err != nil {
		a.Close()
		return nil, err
	}
	research := sources.NewTavilyResearch(cfg.Research.TavilyAPIKey, cfg.Research.TavilyURL, cfg.Research.SearchDepth,
		sources.WithGuard(a.guard("tavily", nil)))

	images, err := a.imageService()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.status = services.NewStatusService(a.steps)
	a.workflow = services.NewBlogWorkflow(services.Deps{
		Trends:   trends,
		Research: research,
		Writer:   w,
		Links:    a.articles,
		Images:   images,
		Articles: a.articles,
		Keywords: a.articles,
		Recorder: a.articles,
		Log:      services.NewStepLogger(a.steps, slog.Default()),
	}, services.WithResearchResults(cfg.Research.MaxResults), services.WithSiteHost(siteHost(cfg.Server.PublicURL)))
	a.launcher = services.NewLauncher(a.workflow, cfg.Scheduler.RunTimeout)
	return a, nil
}

func (a *app) initRepositories(ctx context.Context) error {
	memSteps := repository.NewMemoryStepRepository()
	memArticles := repository.NewMemoryArticleRepository()
	if a.cfg.Database.URL == "" {
		slog.Warn("blogforge: no database configured, using in-memory storage")
		a.steps, a.articles, a.leases = memSteps, memArticles, repository.NewMemoryLeaseRepository()
		return nil
	}

	database, err := db.New(ctx, a.cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if a.cfg.Database.Migrate {
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return fmt.Errorf("migrate database: %w", err)
		}
	}
	a.database = database
	a.steps = repository.NewPersistentStepRepository(memSteps, database)
	a.articles = repository.NewPersistentArticleRepository(memArticles, database, repository.WithDBGuard(a.guard("postgres", nil)))
	a.leases = repository.NewPersistentLeaseRepository(database)
	return nil
}

// guard builds the retry/limiter/breaker stack for one dependency and
// registers its breaker for the stats endpoint.
func (a *app) guard(name string, limiter *resilience.Limiter) resilience.Guard {
	policy := resilience.Policy{
		MaxAttempts: a.cfg.Retry.MaxAttempts,
		BaseDelay:   a.cfg.Retry.BaseDelay,
		MaxDelay:    a.cfg.Retry.MaxDelay,
		Backoff:     resilience.Backoff(a.cfg.Retry.Backoff),
	}
	breaker := resilience.NewBreaker(name, a.cfg.Breaker.Threshold, a.cfg.Breaker.Cooldown)
	a.breakers = append(a.breakers, breaker)
	return resilience.Guard{
		Retrier: resilience.NewRetrier(policy),
		Limiter: limiter,
		Breaker: breaker,
	}
}

// textModel builds the generation provider. OpenAI-compatible providers get
// the configured per-model generation profiles.
func (a *app) textModel() (adkmodel.LLM, error) {
	gen := a.cfg.Generation
	pc, ok := a.cfg.Providers[gen.Provider]
	if !ok {
		return nil, fmt.Errorf("generation provider %q is not configured", gen.Provider)
	}
	overrides, err := writer.ProfileOverrides(gen)
	if err != nil {
		return nil, err
	}
	if pc.Type == "openai" || (pc.Type == "" && pc.URL != "") {
		opts := []model.OpenAIOption{model.WithOpenAIName(gen.Provider), model.WithProfileOverrides(overrides)}
		if pc.URL != "" {
			opts = append(opts, model.WithOpenAIBaseURL(pc.URL))
		}
		return model.NewOpenAILLM(pc.APIKey, opts...), nil
	}
	return model.Build(gen.Provider, pc)
}

func (a *app) trendSource() (ports.TrendSource, error) {
	t := a.cfg.Trends
	serper := func() ports.TrendSource {
		return sources.NewSerperTrends(t.SerperAPIKey, t.SerperURL, t.Query, sources.WithGuard(a.guard("serper", nil)))
	}
	rss := func() ports.TrendSource {
		return sources.NewRSSTrends(t.RSSURL, t.Query, sources.WithGuard(a.guard("rss", nil)))
	}

	var src ports.TrendSource
	switch strings.ToLower(t.Source) {
	case "serper":
		src = serper()
	case "rss":
		src = rss()
	case "", "auto":
		if t.SerperAPIKey != "" {
			src = sources.NewFallbackTrends(serper(), rss())
		} else {
			src = rss()
		}
	default:
		return nil, fmt.Errorf("unknown trend source %q", t.Source)
	}
	if t.Filter != "" {
		return sources.NewFilteredTrends(src, t.Filter)
	}
	return src, nil
}

func (a *app) imageService() (*media.Service, error) {
	var store storage.BlobStore
	switch a.cfg.Storage.Type {
	case "http":
		store = storage.NewHTTPStorage(a.cfg.Storage.Endpoint, a.cfg.Storage.Bucket, a.cfg.Storage.Token, a.cfg.Storage.PublicBaseURL,
			storage.WithUploadGuard(a.guard("storage", nil)))
	case "", "local":
		local, err := storage.NewLocalStorage(a.cfg.Storage.Dir, a.cfg.Storage.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		a.local = local
		store = local
	default:
		return nil, fmt.Errorf("unknown storage type %q", a.cfg.Storage.Type)
	}

	var gemini adkmodel.LLM
	if pc, ok := a.cfg.Providers["gemini"]; ok && pc.APIKey != "" {
		gemini = model.NewGeminiImageLLM(pc.APIKey)
	}
	openAIKey := a.cfg.Providers["openai"].APIKey
	strategy := media.FromConfig(a.cfg.Image, openAIKey, gemini,
		media.WithGuard(a.guard("image", nil)),
		media.WithHTTPClient(&http.Client{Timeout: 90 * time.Second}))
	return media.NewService(strategy, media.WithStore(store, a.cfg.Image.Rehost)), nil
}

// siteHost extracts the host of the public site URL, or "".
func siteHost(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return u.Host
}
