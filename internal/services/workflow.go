package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
	"github.com/soochol/blogforge/internal/extract"
	"github.com/soochol/blogforge/internal/resilience"
)

const (
	defaultResearchResults = 10
	defaultLinkCandidates  = 10
	defaultKeywordCount    = 10

	keywordsDegradedNote = "Keywords extraction failed, continuing"
)

// positionalScores are the synthetic trend scores given to the leading
// candidates. Sources report order only.
var positionalScores = []int{100, 90, 85, 80}

// Deps are the collaborators of a BlogWorkflow. Recorder and Clock are
// optional; every other field is required.
type Deps struct {
	Trends   ports.TrendSource
	Research ports.ResearchSource
	Writer   ports.ContentWriter
	Links    ports.LinkSource
	Images   ports.ImageSource
	Articles ports.ArticleInserter
	Keywords ports.KeywordStore
	Recorder ports.LinkRecorder
	Log      *StepLogger
	Clock    func() time.Time
}

// Result is the outcome of one workflow run.
type Result struct {
	Success    bool               `json:"success"`
	WorkflowID string             `json:"workflowId"`
	Article    *blog.Article      `json:"blogData,omitempty"`
	Error      string             `json:"error,omitempty"`
	Duration   time.Duration      `json:"duration"`
	Degraded   []StageDegradation `json:"degraded,omitempty"`
}

// WorkflowOption configures a BlogWorkflow.
type WorkflowOption func(*BlogWorkflow)

// WithSiteHost sets the public host used to recognise absolute internal links.
func WithSiteHost(host string) WorkflowOption {
	return func(w *BlogWorkflow) { w.siteHost = host }
}

// WithSlugAttempts sets how many slug candidates are tried on insert.
func WithSlugAttempts(n int) WorkflowOption {
	return func(w *BlogWorkflow) { w.slugAttempts = n }
}

// WithResearchResults sets the maximum number of research excerpts requested.
func WithResearchResults(n int) WorkflowOption {
	return func(w *BlogWorkflow) {
		if n > 0 {
			w.researchResults = n
		}
	}
}

// WithWorkflowLogger sets the logger used for run-level records.
func WithWorkflowLogger(l *slog.Logger) WorkflowOption {
	return func(w *BlogWorkflow) { w.logger = l }
}

// BlogWorkflow runs the nine generation stages in order. Stages are never
// retried as a whole; retries happen inside the adapters.
type BlogWorkflow struct {
	deps            Deps
	slugs           *SlugAllocator
	siteHost        string
	slugAttempts    int
	researchResults int
	linkCandidates  int
	keywordCount    int
	logger          *slog.Logger
}

// NewBlogWorkflow creates a workflow over deps.
func NewBlogWorkflow(deps Deps, opts ...WorkflowOption) *BlogWorkflow {
	w := &BlogWorkflow{
		deps:            deps,
		slugAttempts:    DefaultSlugAttempts,
		researchResults: defaultResearchResults,
		linkCandidates:  defaultLinkCandidates,
		keywordCount:    defaultKeywordCount,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.deps.Clock == nil {
		w.deps.Clock = time.Now
	}
	w.slugs = NewSlugAllocator(deps.Articles, w.slugAttempts)
	return w
}

// run is the state threaded through the stages of one execution.
type run struct {
	candidates []blog.TrendCandidate
	topic      string
	research   *blog.ResearchBundle
	body       string
	previous   []blog.LinkCandidate
	meta       blog.Metadata
	image      *blog.Image
	article    *blog.Article
}

type stage struct {
	name blog.StepName
	fn   func(ctx context.Context, r *run) (StageOutcome, map[string]any)
}

func (w *BlogWorkflow) stages() []stage {
	return []stage{
		{blog.StepFetchTrends, w.fetchTrends},
		{blog.StepChooseTopic, w.chooseTopic},
		{blog.StepResearch, w.research},
		{blog.StepGenerateBlog, w.generateBlog},
		{blog.StepAddInternalLinks, w.addInternalLinks},
		{blog.StepGenerateMetadata, w.generateMetadata},
		{blog.StepGetImage, w.getImage},
		{blog.StepSaveToDatabase, w.saveToDatabase},
		{blog.StepSaveKeywords, w.saveKeywords},
	}
}

// Execute runs every stage for workflowID and returns the run result. It
// never panics on collaborator errors; the first failing stage ends the run
// and nothing is persisted unless stage 8 was reached.
func (w *BlogWorkflow) Execute(ctx context.Context, workflowID string) Result {
	start := w.deps.Clock()
	logger := w.logger.With("workflow_id", workflowID)
	res := Result{WorkflowID: workflowID}

	w.deps.Log.Log(ctx, workflowID, blog.StepWorkflow, blog.StepStarted, StepDetail{})
	logger.Info("workflow: started")

	r := &run{}
	for _, st := range w.stages() {
		stepStart := w.deps.Clock()
		w.deps.Log.Log(ctx, workflowID, st.name, blog.StepStarted, StepDetail{})

		var (
			out  StageOutcome
			meta map[string]any
		)
		if err := ctx.Err(); err != nil {
			out = Fail(fmt.Errorf("%s: %w", st.name, err))
		} else {
			out, meta = st.fn(ctx, r)
		}
		elapsed := w.deps.Clock().Sub(stepStart)

		if out.Failed() {
			w.deps.Log.Log(ctx, workflowID, st.name, blog.StepFailed, StepDetail{Metadata: meta, Err: out.Err(), Duration: elapsed})
			res.Error = out.Err().Error()
			res.Duration = w.deps.Clock().Sub(start)
			w.deps.Log.Log(ctx, workflowID, blog.StepWorkflow, blog.StepFailed, StepDetail{Err: out.Err(), Duration: res.Duration})
			logger.Error("workflow: failed", "step", st.name, "class", resilience.Classify(out.Err()),
				"duration_ms", res.Duration.Milliseconds(), "err", out.Err())
			return res
		}
		if out.Degraded() {
			if meta == nil {
				meta = map[string]any{}
			}
			meta["note"] = keywordsDegradedNote
			meta["reason"] = out.Reason()
			res.Degraded = append(res.Degraded, StageDegradation{Step: st.name, Reason: out.Reason()})
			logger.Warn("workflow: stage degraded", "step", st.name, "reason", out.Reason())
		}
		w.deps.Log.Log(ctx, workflowID, st.name, blog.StepCompleted, StepDetail{Metadata: meta, Duration: elapsed})
		logger.Info("workflow: stage completed", "step", st.name, "duration_ms", elapsed.Milliseconds())
	}

	res.Success = true
	res.Article = r.article
	res.Duration = w.deps.Clock().Sub(start)
	w.deps.Log.Log(ctx, workflowID, blog.StepWorkflow, blog.StepCompleted, StepDetail{
		Metadata: map[string]any{"blogId": r.article.ID, "slug": r.article.Slug},
		Duration: res.Duration,
	})
	logger.Info("workflow: completed", "slug", r.article.Slug, "duration_ms", res.Duration.Milliseconds())
	return res
}

func (w *BlogWorkflow) fetchTrends(ctx context.Context, r *run) (StageOutcome, map[string]any) {
	cands, err := w.deps.Trends.Trending(ctx)
	if err != nil {
		return Fail(fmt.Errorf("fetch trends: %w", err)), nil
	}
	if len(cands) < 2 {
		return Fail(&resilience.ValidationError{
			Field:  "trends",
			Reason: fmt.Sprintf("need at least 2 trending topics, got %d", len(cands)),
		}), map[string]any{"topicCount": len(cands)}
	}
	if len(cands) > len(positionalScores) {
		cands = cands[:len(positionalScores)]
	}
	r.candidates = make([]blog.TrendCandidate, len(cands))
	for i, c := range cands {
		c.Score = positionalScores[i]
		r.candidates[i] = c
	}
	return Ok(), map[string]any{"topicCount": len(r.candidates)}
}

func (w *BlogWorkflow) chooseTopic(ctx context.Context, r *run) (StageOutcome, map[string]any) {
	a, b := r.candidates[0], r.candidates[1]
	topic, err := w.deps.Writer.ChooseTopic(ctx, a, b)
	if err != nil {
		return Fail(fmt.Errorf("choose topic: %w", err)), nil
	}
	r.topic = topic
	return Ok(), map[string]any{
		"selectedTopic": topic,
		"options":       []string{a.Query, b.Query},
	}
}

func (w *BlogWorkflow) research(ctx context.Context, r *run) (StageOutcome, map[string]any) {
	bundle, err := w.deps.Research.Research(ctx, r.topic, w.researchResults)
	if err != nil {
		return Fail(fmt.Errorf("research %q: %w", r.topic, err)), nil
	}
	if bundle == nil {
		bundle = &blog.ResearchBundle{}
	}
	r.research = bundle
	return Ok(), map[string]any{
		"resultCount":    len(bundle.Items),
		"researchLength": len(bundle.Text),
	}
}

func (w *BlogWorkflow) generateBlog(ctx context.Context, r *run) (StageOutcome, map[string]any) {
	body, err := w.deps.Writer.GenerateArticle(ctx, r.topic, r.research.Text)
	if err != nil {
		return Fail(fmt.Errorf("generate article: %w", err)), nil
	}
	r.body = body
	return Ok(), map[string]any{
		"wordCount": extract.WordCount(body),
		"length":    len(body),
	}
}

func (w *BlogWorkflow) addInternalLinks(ctx context.Context, r *run) (StageOutcome, map[string]any) {
	previous, err := w.deps.Links.LinkCandidates(ctx, "", w.linkCandidates)
	if err != nil {
		return Fail(fmt.Errorf("list previous articles: %w", err)), nil
	}
	r.previous = previous
	if len(previous) == 0 {
		return Ok(), map[string]any{"previousBlogCount": 0, "skipped": true}
	}
	body, err := w.deps.Writer.AddInternalLinks(ctx, r.body, previous)
	if err != nil {
		return Fail(fmt.Errorf("add internal links: %w", err)), map[string]any{"previousBlogCount": len(previous)}
	}
	r.body = body
	return Ok(), map[string]any{"previousBlogCount": len(previous), "skipped": false}
}

// generateMetadata derives slug, title and description concurrently. Any
// single failure fails the stage.
func (w *BlogWorkflow) generateMetadata(ctx context.Context, r *run) (StageOutcome, map[string]any) {
	var meta blog.Metadata
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := w.deps.Writer.GenerateSlug(gctx, r.body, r.topic)
		if err != nil {
			return fmt.Errorf("slug: %w", err)
		}
		meta.Slug = s
		return nil
	})
	g.Go(func() error {
		t, err := w.deps.Writer.GenerateTitle(gctx, r.body, r.topic)
		if err != nil {
			return fmt.Errorf("title: %w", err)
		}
		meta.Title = t
		return nil
	})
	g.Go(func() error {
		d, err := w.deps.Writer.GenerateDescription(gctx, r.body, r.topic)
		if err != nil {
			return fmt.Errorf("description: %w", err)
		}
		meta.Description = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return Fail(fmt.Errorf("generate metadata: %w", err)), nil
	}

	if meta.Title == "" {
		if doc, err := extract.ParseString(r.body); err == nil {
			meta.Title = doc.FirstHeading()
		}
	}
	if meta.Title == "" {
		return Fail(&resilience.InvalidResponseError{Service: "writer", Reason: "empty title"}), nil
	}
	meta.Slug = blog.CleanSlug(meta.Slug)
	if meta.Slug == "" {
		return Fail(&resilience.InvalidResponseError{Service: "writer", Reason: "empty slug"}), nil
	}
	r.meta = meta
	return Ok(), map[string]any{"slug": meta.Slug, "title": meta.Title}
}

func (w *BlogWorkflow) getImage(ctx context.Context, r *run) (StageOutcome, map[string]any) {
	img, err := w.deps.Images.Image(ctx, r.topic, r.meta.Title)
	if err != nil {
		return Fail(fmt.Errorf("get image: %w", err)), nil
	}
	r.image = img
	if img == nil {
		return Ok(), map[string]any{"imageName": nil}
	}
	return Ok(), map[string]any{"imageName": img.Name, "strategy": img.Source}
}

func (w *BlogWorkflow) saveToDatabase(ctx context.Context, r *run) (StageOutcome, map[string]any) {
	saved, err := w.slugs.Allocate(ctx, &blog.Article{
		Title:           r.meta.Title,
		Slug:            r.meta.Slug,
		Content:         r.body,
		MetaDescription: r.meta.Description,
		PrimaryKeyword:  r.topic,
		Image:           r.image,
		Status:          blog.ArticleDraft,
	})
	if err != nil {
		return Fail(fmt.Errorf("save article: %w", err)), map[string]any{"requestedSlug": r.meta.Slug}
	}
	r.article = saved
	w.recordLinks(ctx, saved, r.previous)
	return Ok(), map[string]any{
		"blogId":        saved.ID,
		"slug":          saved.Slug,
		"requestedSlug": r.meta.Slug,
	}
}

// recordLinks stores the internal links of a saved article that point at a
// known previous article. Failures are logged and ignored.
func (w *BlogWorkflow) recordLinks(ctx context.Context, saved *blog.Article, previous []blog.LinkCandidate) {
	if w.deps.Recorder == nil || len(previous) == 0 {
		return
	}
	doc, err := extract.ParseString(saved.Content)
	if err != nil {
		w.logger.Warn("workflow: parse body for links", "err", err)
		return
	}
	bySlug := make(map[string]blog.LinkCandidate, len(previous))
	for _, p := range previous {
		bySlug[p.Slug] = p
	}
	recorded := 0
	for _, l := range doc.Links() {
		slug, ok := extract.InternalSlug(l.Href, w.siteHost)
		if !ok {
			continue
		}
		target, ok := bySlug[slug]
		if !ok || target.ID == saved.ID {
			continue
		}
		if err := w.deps.Recorder.RecordInternalLink(ctx, saved.ID, target.ID, l.Anchor, l.Position); err != nil {
			w.logger.Warn("workflow: record internal link", "target", slug, "err", err)
			continue
		}
		recorded++
	}
	w.logger.Debug("workflow: internal links recorded", "article_id", saved.ID, "count", recorded)
}

// saveKeywords is best-effort: any failure degrades the stage instead of
// failing the run.
func (w *BlogWorkflow) saveKeywords(ctx context.Context, r *run) (StageOutcome, map[string]any) {
	kws, err := w.deps.Writer.ExtractKeywords(ctx, r.article.Content, w.keywordCount)
	if err != nil {
		return DegradedOk(err.Error()), nil
	}
	if len(kws) == 0 {
		return DegradedOk("no keywords in response"), map[string]any{"keywordCount": 0}
	}
	if err := w.deps.Keywords.SaveKeywords(ctx, r.article.ID, kws); err != nil {
		return DegradedOk(err.Error()), map[string]any{"keywordCount": len(kws)}
	}
	return Ok(), map[string]any{"keywordCount": len(kws)}
}
