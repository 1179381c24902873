package writer

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	adkmodel "google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/config"
	"github.com/soochol/blogforge/internal/resilience"
)

type reply struct {
	text string
	err  error
}

// scriptedLLM replays replies in order and records every request.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []reply
	requests []*adkmodel.LLMRequest
}

func (s *scriptedLLM) Name() string { return "fake" }

func (s *scriptedLLM) GenerateContent(ctx context.Context, req *adkmodel.LLMRequest, stream bool) iter.Seq2[*adkmodel.LLMResponse, error] {
	return func(yield func(*adkmodel.LLMResponse, error) bool) {
		s.mu.Lock()
		s.requests = append(s.requests, req)
		var r reply
		if len(s.replies) > 0 {
			r, s.replies = s.replies[0], s.replies[1:]
		}
		s.mu.Unlock()
		if r.err != nil {
			yield(nil, r.err)
			return
		}
		yield(&adkmodel.LLMResponse{
			Content: genai.NewContentFromText(r.text, genai.RoleModel),
		}, nil)
	}
}

func (s *scriptedLLM) prompt(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i].Contents[0].Parts[0].Text
}

func newTestWriter(llm *scriptedLLM) *Writer {
	cfg := defaultTestConfig()
	guard := resilience.Guard{
		Retrier: resilience.NewRetrier(resilience.DefaultPolicy(),
			resilience.WithSleep(func(context.Context, time.Duration) error { return nil })),
	}
	return New(llm, guard, NewPrompts(cfg.Company, cfg.Requirements), cfg.Generation)
}

func defaultTestConfig() config.Config {
	return config.Config{
		Company: config.CompanyConfig{
			Name:         "Hotel Selection",
			Description:  "Premium hotel booking and selection service",
			Products:     "Hotel comparison, booking assistance, travel planning",
			TargetMarket: "Business travelers and vacation planners",
		},
		Requirements: config.RequirementsConfig{MinWordCount: 1500, MaxWordCount: 2000, MinInternalLinks: 5, ReadingLevel: "Year 5"},
		Generation: config.GenerationConfig{
			Topic:       config.CallConfig{Model: "gpt-4o-mini", MaxTokens: 100},
			Article:     config.CallConfig{Model: "gpt-4-turbo-preview", MaxTokens: 4000},
			Links:       config.CallConfig{Model: "o1-mini", MaxTokens: 4500},
			Slug:        config.CallConfig{Model: "gpt-4o-mini", MaxTokens: 50},
			Title:       config.CallConfig{Model: "gpt-4o-mini", MaxTokens: 100},
			Description: config.CallConfig{Model: "gpt-4o-mini", MaxTokens: 100},
			Keywords:    config.CallConfig{Model: "gpt-4o-mini", MaxTokens: 200},
		},
	}
}

func TestChooseTopic(t *testing.T) {
	a := blog.TrendCandidate{Query: "AI Agents in Retail", Score: 100}
	b := blog.TrendCandidate{Query: "Quantum Computing News", Score: 90}

	tests := []struct {
		name, reply, want string
	}{
		{"plain", "AI Agents in Retail", "AI Agents in Retail"},
		{"quoted", `"Quantum Computing News"`, "Quantum Computing News"},
		{"json", `{"query":"AI Agents in Retail","score":"100"}`, "AI Agents in Retail"},
		{"fenced json", "```json\n{\"query\": \"Quantum Computing News\"}\n```", "Quantum Computing News"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{replies: []reply{{text: tt.reply}}}
			got, err := newTestWriter(llm).ChooseTopic(context.Background(), a, b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			prompt := llm.prompt(0)
			assert.Contains(t, prompt, "Keyword 1: AI Agents in Retail (trend score: 100)")
			assert.Contains(t, prompt, "Keyword 2: Quantum Computing News (trend score: 90)")
			assert.Contains(t, prompt, "website of Hotel Selection (Premium hotel booking and selection service)")
		})
	}
}

func TestGenerateArticle_UsesCallSettings(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{{text: "```html\n<h1>AI Agents</h1><p>Body</p>\n```"}}}
	w := newTestWriter(llm)

	body, err := w.GenerateArticle(context.Background(), "AI Agents", "Excerpt - source: https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "<h1>AI Agents</h1><p>Body</p>", body)

	req := llm.requests[0]
	assert.Equal(t, "gpt-4-turbo-preview", req.Model)
	assert.Equal(t, int32(4000), req.Config.MaxOutputTokens)
	prompt := llm.prompt(0)
	assert.Contains(t, prompt, "Length: 1500 to 2000 words")
	assert.Contains(t, prompt, "Reading level: Suitable for Year 5")
	assert.Contains(t, prompt, "Excerpt - source: https://example.com")
}

func TestAddInternalLinks_SkipsWithoutCandidates(t *testing.T) {
	llm := &scriptedLLM{}
	got, err := newTestWriter(llm).AddInternalLinks(context.Background(), "<p>body</p>", nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>body</p>", got)
	assert.Empty(t, llm.requests)
}

func TestAddInternalLinks_FormatsCandidates(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{{text: "<p>body /hotel-tips</p>"}}}
	prev := []blog.LinkCandidate{{Title: "Hotel Tips", Slug: "hotel-tips", PrimaryKeyword: "hotels", Keywords: []string{"travel", "booking"}}}

	got, err := newTestWriter(llm).AddInternalLinks(context.Background(), "<p>body</p>", prev)
	require.NoError(t, err)
	assert.Equal(t, "<p>body /hotel-tips</p>", got)
	assert.Equal(t, "o1-mini", llm.requests[0].Model)
	assert.Contains(t, llm.prompt(0), "make at least 5 internal links")
	assert.Contains(t, llm.prompt(0), "Blog #1:\n- Title: Hotel Tips\n- URL: /hotel-tips\n- Primary Keyword: hotels\n- Related Keywords: travel, booking")
}

func TestMetadataCalls(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{
		{text: "  AI Agents Retail!\n"},
		{text: `"How AI Agents Are Reshaping Retail"`},
		{text: strings.Repeat("d", 200)},
	}}
	w := newTestWriter(llm)
	ctx := context.Background()

	slug, err := w.GenerateSlug(ctx, "<p>x</p>", "AI Agents in Retail")
	require.NoError(t, err)
	assert.Equal(t, "ai-agents-retail", slug)

	title, err := w.GenerateTitle(ctx, "<p>x</p>", "AI Agents in Retail")
	require.NoError(t, err)
	assert.Equal(t, "How AI Agents Are Reshaping Retail", title)

	desc, err := w.GenerateDescription(ctx, "<p>x</p>", "AI Agents in Retail")
	require.NoError(t, err)
	assert.Len(t, desc, MaxDescriptionLength)

	assert.Contains(t, llm.prompt(0), `primary keyword of the blog post which is "AI Agents in Retail"`)
}

func TestGenerateSlug_Unusable(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{{text: "!!!"}}}
	_, err := newTestWriter(llm).GenerateSlug(context.Background(), "b", "k")
	var invalid *resilience.InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, llm.requests, 1, "invalid responses are not retried")
}

func TestExtractKeywords(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{{text: "AI agents, retail , automation,, Customer Service"}}}
	long := strings.Repeat("word ", 1000)

	kws, err := newTestWriter(llm).ExtractKeywords(context.Background(), long, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"AI agents", "retail", "automation", "Customer Service"}, kws)

	prompt := llm.prompt(0)
	assert.True(t, strings.HasPrefix(prompt, "Extract the 10 most important keywords"))
	assert.Less(t, len(prompt), 2300, "body is truncated to the sample size")
}

func TestComplete_RetriesTransientFailures(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{
		{err: &resilience.HTTPError{Service: "openai", StatusCode: 503}},
		{err: &resilience.RateLimitError{Service: "openai"}},
		{text: "AI Agents"},
	}}
	got, err := newTestWriter(llm).ChooseTopic(context.Background(), blog.TrendCandidate{Query: "a"}, blog.TrendCandidate{Query: "b"})
	require.NoError(t, err)
	assert.Equal(t, "AI Agents", got)
	assert.Len(t, llm.requests, 3)
}

func TestComplete_EmptyReply(t *testing.T) {
	llm := &scriptedLLM{replies: []reply{{text: "   "}}}
	_, err := newTestWriter(llm).GenerateTitle(context.Background(), "b", "k")
	var invalid *resilience.InvalidResponseError
	assert.True(t, errors.As(err, &invalid))
}

func TestSplitKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitKeywords("a, b, c", 2))
	assert.Nil(t, SplitKeywords(" , ,", 0))
}

func TestProfileOverrides(t *testing.T) {
	gen := config.GenerationConfig{
		Links:   config.CallConfig{Model: "my-reasoner", Profile: "reasoning"},
		Article: config.CallConfig{Model: "gpt-4o"},
	}
	got, err := ProfileOverrides(gen)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "reasoning", string(got["my-reasoner"]))

	gen.Title = config.CallConfig{Model: "x", Profile: "bogus"}
	_, err = ProfileOverrides(gen)
	assert.Error(t, err)
}
