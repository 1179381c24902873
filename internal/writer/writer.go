// Package writer performs every text-generation call of the blog pipeline.
// Each call goes through the shared resilience guard (retry, rate limiter,
// circuit breaker) and is built from per-call model settings.
package writer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	adkmodel "google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
	"github.com/soochol/blogforge/internal/config"
	"github.com/soochol/blogforge/internal/llmutil"
	"github.com/soochol/blogforge/internal/model"
	"github.com/soochol/blogforge/internal/resilience"
)

var _ ports.ContentWriter = (*Writer)(nil)

// MaxDescriptionLength is the meta description cut-off in characters.
const MaxDescriptionLength = 160

// Writer implements ports.ContentWriter on top of an adk model.LLM.
type Writer struct {
	llm     adkmodel.LLM
	guard   resilience.Guard
	prompts *Prompts
	calls   config.GenerationConfig
	logger  *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger used for call-level records.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// New creates a Writer. The guard is applied to every call.
func New(llm adkmodel.LLM, guard resilience.Guard, prompts *Prompts, calls config.GenerationConfig, opts ...Option) *Writer {
	w := &Writer{
		llm:     llm,
		guard:   guard,
		prompts: prompts,
		calls:   calls,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ProfileOverrides collects the explicit generation profiles configured per
// call, keyed by model name, for model.WithProfileOverrides.
func ProfileOverrides(gen config.GenerationConfig) (map[string]model.GenerationProfile, error) {
	out := map[string]model.GenerationProfile{}
	for _, c := range []config.CallConfig{gen.Topic, gen.Article, gen.Links, gen.Slug, gen.Title, gen.Description, gen.Keywords} {
		if c.Profile == "" {
			continue
		}
		p, err := model.ParseProfile(c.Profile, c.Model)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", c.Model, err)
		}
		out[c.Model] = p
	}
	return out, nil
}

// complete renders one prompt through the guarded LLM and returns its text.
func (w *Writer) complete(ctx context.Context, name string, call config.CallConfig, prompt string) (string, error) {
	req := &adkmodel.LLMRequest{
		Model:    call.Model,
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			Temperature:     call.Temperature,
			TopP:            call.TopP,
			MaxOutputTokens: call.MaxTokens,
		},
	}
	ctx = model.WithLogFunc(ctx, model.SlogFunc(w.logger, "call", name))

	return resilience.Call(ctx, w.guard, name, func(ctx context.Context) (string, error) {
		var resp *adkmodel.LLMResponse
		for r, err := range w.llm.GenerateContent(ctx, req, false) {
			if err != nil {
				return "", err
			}
			resp = r
		}
		text := strings.TrimSpace(llmutil.ExtractText(resp))
		if text == "" {
			return "", &resilience.InvalidResponseError{Service: w.llm.Name(), Reason: "empty content"}
		}
		if resp.UsageMetadata != nil {
			w.logger.Debug("writer: call completed", "call", name, "model", call.Model,
				"prompt_tokens", resp.UsageMetadata.PromptTokenCount,
				"completion_tokens", resp.UsageMetadata.CandidatesTokenCount)
		}
		return text, nil
	})
}

// ChooseTopic picks one of two trending candidates. A JSON object with a
// "query" field is accepted in place of plain text.
func (w *Writer) ChooseTopic(ctx context.Context, a, b blog.TrendCandidate) (string, error) {
	prompt, err := w.prompts.TopicSelection(a, b)
	if err != nil {
		return "", err
	}
	text, err := w.complete(ctx, "chooseTopic", w.calls.Topic, prompt)
	if err != nil {
		return "", err
	}

	topic := text
	var parsed struct {
		Query string `json:"query"`
	}
	if err := llmutil.DecodeJSON(text, &parsed); err == nil && parsed.Query != "" {
		topic = parsed.Query
	}
	topic = llmutil.TrimQuotes(topic)
	if topic == "" {
		return "", &resilience.InvalidResponseError{Service: w.llm.Name(), Reason: "empty topic"}
	}
	w.logger.Info("writer: topic selected", "topic", topic)
	return topic, nil
}

// GenerateArticle writes the full HTML article.
func (w *Writer) GenerateArticle(ctx context.Context, topic, research string) (string, error) {
	prompt, err := w.prompts.BlogWriting(topic, research)
	if err != nil {
		return "", err
	}
	text, err := w.complete(ctx, "generateBlogPost", w.calls.Article, prompt)
	if err != nil {
		return "", err
	}
	return llmutil.StripCodeFence(text), nil
}

// AddInternalLinks inserts links to previous articles. With no previous
// articles the body is returned unchanged and no call is made.
func (w *Writer) AddInternalLinks(ctx context.Context, body string, previous []blog.LinkCandidate) (string, error) {
	if len(previous) == 0 {
		w.logger.Warn("writer: no previous articles for internal linking")
		return body, nil
	}
	prompt, err := w.prompts.InternalLinking(body, previous)
	if err != nil {
		return "", err
	}
	text, err := w.complete(ctx, "addInternalLinks", w.calls.Links, prompt)
	if err != nil {
		return "", err
	}
	return llmutil.StripCodeFence(text), nil
}

// GenerateSlug returns a cleaned slug containing the primary keyword.
func (w *Writer) GenerateSlug(ctx context.Context, body, keyword string) (string, error) {
	prompt, err := w.prompts.Slug(body, keyword)
	if err != nil {
		return "", err
	}
	text, err := w.complete(ctx, "generateSlug", w.calls.Slug, prompt)
	if err != nil {
		return "", err
	}
	slug := blog.CleanSlug(text)
	if slug == "" {
		return "", &resilience.InvalidResponseError{Service: w.llm.Name(), Reason: fmt.Sprintf("no usable slug in %q", text)}
	}
	return slug, nil
}

// GenerateTitle extracts the article title, without surrounding quotes.
func (w *Writer) GenerateTitle(ctx context.Context, body, keyword string) (string, error) {
	prompt, err := w.prompts.Title(body, keyword)
	if err != nil {
		return "", err
	}
	text, err := w.complete(ctx, "extractTitle", w.calls.Title, prompt)
	if err != nil {
		return "", err
	}
	return llmutil.TrimQuotes(text), nil
}

// GenerateDescription returns a meta description of at most
// MaxDescriptionLength characters.
func (w *Writer) GenerateDescription(ctx context.Context, body, keyword string) (string, error) {
	prompt, err := w.prompts.MetaDescription(body, keyword)
	if err != nil {
		return "", err
	}
	text, err := w.complete(ctx, "generateMetaDescription", w.calls.Description, prompt)
	if err != nil {
		return "", err
	}
	return truncateRunes(text, MaxDescriptionLength), nil
}

// ExtractKeywords returns up to count keywords parsed from a comma-separated reply.
func (w *Writer) ExtractKeywords(ctx context.Context, body string, count int) ([]string, error) {
	prompt, err := w.prompts.Keywords(body, count)
	if err != nil {
		return nil, err
	}
	text, err := w.complete(ctx, "extractKeywords", w.calls.Keywords, prompt)
	if err != nil {
		return nil, err
	}
	return SplitKeywords(text, count), nil
}

// SplitKeywords splits a comma-separated list, trimming entries and dropping
// empty ones. A non-positive limit keeps everything.
func SplitKeywords(text string, limit int) []string {
	var out []string
	for _, k := range strings.Split(text, ",") {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, k)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
