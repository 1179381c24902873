package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/media"
	"github.com/soochol/blogforge/internal/repository"
	"github.com/soochol/blogforge/internal/resilience"
)

type fakeTrends struct {
	cands []blog.TrendCandidate
	err   error
}

func (f *fakeTrends) Trending(context.Context) ([]blog.TrendCandidate, error) {
	return f.cands, f.err
}

type fakeResearch struct {
	bundle *blog.ResearchBundle
	err    error
	topic  string
	max    int
}

func (f *fakeResearch) Research(_ context.Context, topic string, maxResults int) (*blog.ResearchBundle, error) {
	f.topic, f.max = topic, maxResults
	return f.bundle, f.err
}

// fakeWriter answers every generation call from fixed values.
type fakeWriter struct {
	mu          sync.Mutex
	topic       string
	body        string
	linkedBody  string
	slug        string
	title       string
	description string
	keywords    []string

	articleErr  error
	slugErr     error
	keywordsErr error

	chosen    [2]blog.TrendCandidate
	linkCalls int
	kwBody    string
}

func (f *fakeWriter) ChooseTopic(_ context.Context, a, b blog.TrendCandidate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chosen = [2]blog.TrendCandidate{a, b}
	return f.topic, nil
}

func (f *fakeWriter) GenerateArticle(context.Context, string, string) (string, error) {
	return f.body, f.articleErr
}

func (f *fakeWriter) AddInternalLinks(_ context.Context, body string, _ []blog.LinkCandidate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkCalls++
	if f.linkedBody != "" {
		return f.linkedBody, nil
	}
	return body, nil
}

func (f *fakeWriter) GenerateSlug(context.Context, string, string) (string, error) {
	return f.slug, f.slugErr
}

func (f *fakeWriter) GenerateTitle(context.Context, string, string) (string, error) {
	return f.title, nil
}

func (f *fakeWriter) GenerateDescription(context.Context, string, string) (string, error) {
	return f.description, nil
}

func (f *fakeWriter) ExtractKeywords(_ context.Context, body string, _ int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kwBody = body
	return f.keywords, f.keywordsErr
}

type harness struct {
	trends   *fakeTrends
	research *fakeResearch
	writer   *fakeWriter
	steps    *repository.MemoryStepRepository
	articles *repository.MemoryArticleRepository
	status   *StatusService
	wf       *BlogWorkflow
}

func longBody(words int) string {
	return "<h1>AI Agents in Retail</h1><p>" + strings.TrimSpace(strings.Repeat("word ", words)) + "</p>"
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		trends: &fakeTrends{cands: []blog.TrendCandidate{
			{Query: "AI Agents in Retail"},
			{Query: "Quantum Computing News"},
		}},
		research: &fakeResearch{bundle: &blog.ResearchBundle{
			Items: []blog.ResearchItem{
				{Content: "Retailers deploy agents", URL: "https://a.example.com"},
				{Content: "Agents cut wait times", URL: "https://b.example.com"},
			},
			Text: "Retailers deploy agents - source: https://a.example.com\n\nAgents cut wait times - source: https://b.example.com",
		}},
		writer: &fakeWriter{
			topic:       "AI Agents in Retail",
			body:        longBody(1600),
			slug:        "ai-agents-retail",
			title:       "How AI Agents Are Reshaping Retail",
			description: "Retail is changing fast.",
			keywords:    []string{"ai agents", "retail"},
		},
		steps:    repository.NewMemoryStepRepository(),
		articles: repository.NewMemoryArticleRepository(),
	}
	h.status = NewStatusService(h.steps)
	h.wf = NewBlogWorkflow(Deps{
		Trends:   h.trends,
		Research: h.research,
		Writer:   h.writer,
		Links:    h.articles,
		Images:   media.NewService(nil),
		Articles: h.articles,
		Keywords: h.articles,
		Recorder: h.articles,
		Log:      NewStepLogger(h.steps, nil),
	})
	return h
}

func recordsFor(steps []blog.StepRecord, name blog.StepName, status blog.StepStatus) []blog.StepRecord {
	var out []blog.StepRecord
	for _, s := range steps {
		if s.StepName == name && s.Status == status {
			out = append(out, s)
		}
	}
	return out
}

func TestExecute_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.wf.Execute(ctx, "wf-success")
	require.True(t, res.Success, res.Error)
	require.NotNil(t, res.Article)
	assert.Equal(t, "wf-success", res.WorkflowID)
	assert.Equal(t, "ai-agents-retail", res.Article.Slug)
	assert.Equal(t, blog.ArticleDraft, res.Article.Status)
	assert.Equal(t, "AI Agents in Retail", res.Article.PrimaryKeyword)
	require.NotNil(t, res.Article.Image)
	assert.Equal(t, "placeholder", res.Article.Image.Source)
	assert.Empty(t, res.Degraded)

	assert.Equal(t, 100, h.writer.chosen[0].Score)
	assert.Equal(t, 90, h.writer.chosen[1].Score)
	assert.Equal(t, "AI Agents in Retail", h.research.topic)
	assert.Equal(t, 10, h.research.max)
	assert.Equal(t, 0, h.writer.linkCalls, "no previous articles, no linking call")

	st, err := h.status.Status(ctx, "wf-success")
	require.NoError(t, err)
	assert.Equal(t, blog.StepCompleted, st.Status)
	assert.Equal(t, blog.StepWorkflow, st.CurrentStep)

	completed := 0
	for _, s := range st.Steps {
		if s.StepName != blog.StepWorkflow && s.Status == blog.StepCompleted {
			completed++
			require.NotNil(t, s.DurationMs)
		}
	}
	assert.Equal(t, 9, completed)
	assert.Equal(t, blog.StepWorkflow, st.Steps[0].StepName)
	assert.Equal(t, blog.StepStarted, st.Steps[0].Status)

	gen := recordsFor(st.Steps, blog.StepGenerateBlog, blog.StepCompleted)
	require.Len(t, gen, 1)
	assert.GreaterOrEqual(t, gen[0].Metadata["wordCount"], 1500)

	links := recordsFor(st.Steps, blog.StepAddInternalLinks, blog.StepCompleted)
	require.Len(t, links, 1)
	assert.Equal(t, true, links[0].Metadata["skipped"])

	stored, err := h.articles.GetBySlug(ctx, "ai-agents-retail")
	require.NoError(t, err)
	assert.Equal(t, res.Article.ID, stored.ID)
	assert.Equal(t, []string{"ai agents", "retail"}, h.articles.Keywords(ctx, stored.ID))
}

func TestExecute_SlugCollision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, slug := range []string{"ai-agents-retail", "ai-agents-retail-2"} {
		require.NoError(t, h.articles.Insert(ctx, &blog.Article{Title: slug, Slug: slug, Content: "<p>old</p>"}))
	}
	h.writer.linkedBody = `<p>See <a href="/ai-agents-retail-2">earlier post</a> and <a href="https://other.example.com/x">elsewhere</a>.</p>`

	res := h.wf.Execute(ctx, "wf-collide")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "ai-agents-retail-3", res.Article.Slug)
	assert.Equal(t, 1, h.writer.linkCalls)

	steps, err := h.steps.ListByWorkflow(ctx, "wf-collide")
	require.NoError(t, err)
	saved := recordsFor(steps, blog.StepSaveToDatabase, blog.StepCompleted)
	require.Len(t, saved, 1)
	assert.Equal(t, "ai-agents-retail-3", saved[0].Metadata["slug"])
	assert.Equal(t, "ai-agents-retail", saved[0].Metadata["requestedSlug"])

	prev, err := h.articles.GetBySlug(ctx, "ai-agents-retail-2")
	require.NoError(t, err)
	links := h.articles.Links(ctx, res.Article.ID)
	require.Len(t, links, 1)
	assert.Equal(t, prev.ID, links[0].TargetID)
	assert.Equal(t, "earlier post", links[0].Anchor)

	assert.Equal(t, h.writer.linkedBody, h.writer.kwBody, "keywords come from the linked body")
}

func TestExecute_GenerationFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.writer.articleErr = &resilience.HTTPError{Service: "openai", StatusCode: 500}

	res := h.wf.Execute(ctx, "wf-fail")
	assert.False(t, res.Success)
	assert.Nil(t, res.Article)
	assert.Contains(t, res.Error, "500")

	st, err := h.status.Status(ctx, "wf-fail")
	require.NoError(t, err)
	assert.Equal(t, blog.StepFailed, st.Status)
	assert.Equal(t, blog.StepWorkflow, st.CurrentStep)
	assert.NotEmpty(t, st.Error)

	failed := recordsFor(st.Steps, blog.StepGenerateBlog, blog.StepFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].ErrorMessage, "500")
	assert.Contains(t, failed[0].ErrorStack, "*resilience.HTTPError")
	assert.Empty(t, recordsFor(st.Steps, blog.StepAddInternalLinks, blog.StepStarted))

	counts, err := h.articles.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[blog.ArticleDraft])
}

func TestExecute_TooFewTrends(t *testing.T) {
	h := newHarness(t)
	h.trends.cands = h.trends.cands[:1]

	res := h.wf.Execute(context.Background(), "wf-trends")
	assert.False(t, res.Success)

	assert.Contains(t, res.Error, "at least 2")

	steps, _ := h.steps.ListByWorkflow(context.Background(), "wf-trends")
	failed := recordsFor(steps, blog.StepFetchTrends, blog.StepFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, 1, failed[0].Metadata["topicCount"])
	assert.Empty(t, recordsFor(steps, blog.StepChooseTopic, blog.StepStarted))
}

func TestExecute_KeywordFailureDegrades(t *testing.T) {
	h := newHarness(t)
	h.writer.keywordsErr = &resilience.HTTPError{Service: "openai", StatusCode: 503}

	res := h.wf.Execute(context.Background(), "wf-kw")
	require.True(t, res.Success)
	require.Len(t, res.Degraded, 1)
	assert.Equal(t, blog.StepSaveKeywords, res.Degraded[0].Step)

	steps, _ := h.steps.ListByWorkflow(context.Background(), "wf-kw")
	kw := recordsFor(steps, blog.StepSaveKeywords, blog.StepCompleted)
	require.Len(t, kw, 1)
	assert.Equal(t, "Keywords extraction failed, continuing", kw[0].Metadata["note"])
	assert.Contains(t, kw[0].Metadata["reason"], "503")
	assert.Empty(t, recordsFor(steps, blog.StepSaveKeywords, blog.StepFailed))
}

func TestExecute_MetadataFailureFailsStage(t *testing.T) {
	h := newHarness(t)
	h.writer.slugErr = &resilience.InvalidResponseError{Service: "openai", Reason: "no usable slug"}

	res := h.wf.Execute(context.Background(), "wf-meta")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "slug")

	steps, _ := h.steps.ListByWorkflow(context.Background(), "wf-meta")
	assert.Len(t, recordsFor(steps, blog.StepGenerateMetadata, blog.StepFailed), 1)
	assert.Empty(t, recordsFor(steps, blog.StepGetImage, blog.StepStarted))
}

func TestExecute_CanceledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.wf.Execute(ctx, "wf-cancel")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, context.Canceled.Error())

	steps, err := h.steps.ListByWorkflow(context.Background(), "wf-cancel")
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.Equal(t, blog.StepFailed, steps[len(steps)-1].Status, "terminal record is written after cancellation")
}

func TestExecute_TrendScoresTruncated(t *testing.T) {
	h := newHarness(t)
	for _, q := range []string{"c", "d", "e", "f"} {
		h.trends.cands = append(h.trends.cands, blog.TrendCandidate{Query: q})
	}

	res := h.wf.Execute(context.Background(), "wf-scores")
	require.True(t, res.Success)

	steps, _ := h.steps.ListByWorkflow(context.Background(), "wf-scores")
	fetched := recordsFor(steps, blog.StepFetchTrends, blog.StepCompleted)
	require.Len(t, fetched, 1)
	assert.Equal(t, 4, fetched[0].Metadata["topicCount"])
}

func TestStageOutcome(t *testing.T) {
	assert.Equal(t, "ok", Ok().String())
	assert.True(t, DegradedOk("x").Degraded())
	assert.Equal(t, "x", DegradedOk("x").Reason())
	f := Fail(errors.New("boom"))
	assert.True(t, f.Failed())
	assert.EqualError(t, f.Err(), "boom")
	assert.Equal(t, "failed: boom", f.String())
}
