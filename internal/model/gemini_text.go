package model

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"google.golang.org/genai"

	adkmodel "google.golang.org/adk/model"

	"github.com/soochol/blogforge/internal/config"
	"github.com/soochol/blogforge/internal/resilience"
)

var _ adkmodel.LLM = (*GeminiLLM)(nil)

// lazyGenAI creates the genai client on first use so constructing a
// provider never dials out.
type lazyGenAI struct {
	apiKey string
	once   sync.Once
	client *genai.Client
	err    error
}

func (l *lazyGenAI) get(ctx context.Context) (*genai.Client, error) {
	l.once.Do(func() {
		l.client, l.err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  l.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return l.client, l.err
}

// configCopy returns a shallow copy of cfg that can be modified without
// touching the caller's request.
func configCopy(cfg *genai.GenerateContentConfig) *genai.GenerateContentConfig {
	if cfg == nil {
		return &genai.GenerateContentConfig{}
	}
	cp := *cfg
	return &cp
}

// GeminiLLM generates text through the genai SDK.
type GeminiLLM struct {
	name string
	lazy *lazyGenAI
}

func NewGeminiLLM(providerName, apiKey string) *GeminiLLM {
	return &GeminiLLM{name: providerName, lazy: &lazyGenAI{apiKey: apiKey}}
}

func (g *GeminiLLM) Name() string { return g.name }

func (g *GeminiLLM) GenerateContent(ctx context.Context, req *adkmodel.LLMRequest, stream bool) iter.Seq2[*adkmodel.LLMResponse, error] {
	return func(yield func(*adkmodel.LLMResponse, error) bool) {
		yield(g.generate(ctx, req))
	}
}

func (g *GeminiLLM) generate(ctx context.Context, req *adkmodel.LLMRequest) (*adkmodel.LLMResponse, error) {
	client, err := g.lazy.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: client init: %w", err)
	}
	cfg := configCopy(req.Config)
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = defaultMaxTokens
	}

	emitLog(ctx, fmt.Sprintf("gemini: calling model %s", req.Model))

	resp, err := client.Models.GenerateContent(ctx, req.Model, req.Contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return convertGeminiResponse(resp)
}

// convertGeminiResponse keeps the first candidate. A candidate without any
// text is an invalid response.
func convertGeminiResponse(resp *genai.GenerateContentResponse) (*adkmodel.LLMResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &resilience.InvalidResponseError{Service: "gemini", Reason: "no candidates in response"}
	}
	c := resp.Candidates[0]
	if extractText(c.Content) == "" {
		return nil, &resilience.InvalidResponseError{Service: "gemini", Reason: "empty content"}
	}
	return &adkmodel.LLMResponse{
		Content:       c.Content,
		TurnComplete:  true,
		FinishReason:  c.FinishReason,
		UsageMetadata: resp.UsageMetadata,
	}, nil
}

func init() {
	RegisterProvider("gemini", func(name string, cfg config.ProviderConfig) adkmodel.LLM {
		return NewGeminiLLM(name, cfg.APIKey)
	})
}
