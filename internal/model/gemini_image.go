package model

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"google.golang.org/genai"

	adkmodel "google.golang.org/adk/model"

	"github.com/soochol/blogforge/internal/config"
	"github.com/soochol/blogforge/internal/llmutil"
	"github.com/soochol/blogforge/internal/resilience"
)

var _ adkmodel.LLM = (*GeminiImageLLM)(nil)

var imageModels = []string{
	"gemini-2.0-flash-exp-image-generation",
	"gemini-2.5-flash-image",
	"gemini-3-pro-image-preview",
}

// isImageCapableModel reports whether model can return image parts.
func isImageCapableModel(model string) bool {
	return slices.ContainsFunc(imageModels, func(m string) bool { return strings.EqualFold(model, m) })
}

// GeminiImageLLM produces header images. A reply is only accepted when it
// carries an inline image part.
type GeminiImageLLM struct {
	lazy *lazyGenAI
}

func NewGeminiImageLLM(apiKey string) *GeminiImageLLM {
	return &GeminiImageLLM{lazy: &lazyGenAI{apiKey: apiKey}}
}

func (g *GeminiImageLLM) Name() string { return "gemini-image" }

func (g *GeminiImageLLM) GenerateContent(ctx context.Context, req *adkmodel.LLMRequest, stream bool) iter.Seq2[*adkmodel.LLMResponse, error] {
	return func(yield func(*adkmodel.LLMResponse, error) bool) {
		yield(g.generate(ctx, req))
	}
}

func (g *GeminiImageLLM) generate(ctx context.Context, req *adkmodel.LLMRequest) (*adkmodel.LLMResponse, error) {
	client, err := g.lazy.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini-image: client init: %w", err)
	}
	cfg := configCopy(req.Config)
	if isImageCapableModel(req.Model) && len(cfg.ResponseModalities) == 0 {
		cfg.ResponseModalities = []string{"TEXT", "IMAGE"}
	}

	emitLog(ctx, fmt.Sprintf("gemini-image: calling model %s", req.Model))

	resp, err := client.Models.GenerateContent(ctx, req.Model, req.Contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini-image: %w", err)
	}
	return convertImageResponse(resp)
}

func convertImageResponse(resp *genai.GenerateContentResponse) (*adkmodel.LLMResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &resilience.InvalidResponseError{Service: "gemini-image", Reason: "no candidates in response"}
	}
	c := resp.Candidates[0]
	out := &adkmodel.LLMResponse{Content: c.Content, TurnComplete: true, FinishReason: c.FinishReason}
	if _, ok := llmutil.FirstInlineData(out, "image/"); !ok {
		return nil, &resilience.InvalidResponseError{Service: "gemini-image", Reason: "no image in response"}
	}
	return out, nil
}

func init() {
	RegisterProvider("gemini-image", func(_ string, cfg config.ProviderConfig) adkmodel.LLM {
		return NewGeminiImageLLM(cfg.APIKey)
	})
}
