// Package model provides LLM interface implementations for various providers.
package model

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/genai"

	adkmodel "google.golang.org/adk/model"

	"github.com/soochol/blogforge/internal/config"
	"github.com/soochol/blogforge/internal/resilience"
)

var _ adkmodel.LLM = (*OpenAILLM)(nil)

const openaiDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIOption configures an OpenAILLM instance.
type OpenAIOption func(*OpenAILLM)

// WithOpenAIBaseURL sets a custom base URL for the API endpoint.
// This is useful for OpenAI-compatible APIs like Ollama and LM Studio.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *OpenAILLM) {
		o.baseURL = strings.TrimRight(url, "/")
	}
}

// WithOpenAIName sets a custom name for the LLM instance.
func WithOpenAIName(name string) OpenAIOption {
	return func(o *OpenAILLM) {
		o.name = name
	}
}

// WithOpenAIHTTPClient replaces the HTTP client.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAILLM) {
		o.client = c
	}
}

// WithProfileOverrides pins the generation profile for specific model names,
// taking precedence over name-based inference.
func WithProfileOverrides(overrides map[string]GenerationProfile) OpenAIOption {
	return func(o *OpenAILLM) {
		for k, v := range overrides {
			o.profiles[k] = v
		}
	}
}

// OpenAILLM implements the ADK model.LLM interface for the OpenAI Chat
// Completions API. Request parameters are built through a GenerationProfile.
type OpenAILLM struct {
	apiKey   string
	baseURL  string
	name     string
	client   *http.Client
	profiles map[string]GenerationProfile
}

// NewOpenAILLM creates a new OpenAI LLM adapter.
func NewOpenAILLM(apiKey string, opts ...OpenAIOption) *OpenAILLM {
	llm := &OpenAILLM{
		apiKey:   apiKey,
		baseURL:  openaiDefaultBaseURL,
		name:     "openai",
		client:   http.DefaultClient,
		profiles: map[string]GenerationProfile{},
	}
	for _, opt := range opts {
		opt(llm)
	}
	return llm
}

// Name returns the configured name of this LLM (default "openai").
func (o *OpenAILLM) Name() string {
	return o.name
}

// Profile returns the generation profile used for model.
func (o *OpenAILLM) Profile(model string) GenerationProfile {
	if p, ok := o.profiles[model]; ok {
		return p
	}
	return ProfileForModel(model)
}

// GenerateContent sends a chat completion request and yields exactly one
// LLMResponse. Streaming is not used by this service.
func (o *OpenAILLM) GenerateContent(ctx context.Context, req *adkmodel.LLMRequest, stream bool) iter.Seq2[*adkmodel.LLMResponse, error] {
	return func(yield func(*adkmodel.LLMResponse, error) bool) {
		resp, err := o.generate(ctx, req)
		yield(resp, err)
	}
}

func (o *OpenAILLM) generate(ctx context.Context, req *adkmodel.LLMRequest) (*adkmodel.LLMResponse, error) {
	header := http.Header{}
	if o.apiKey != "" {
		header.Set("Authorization", "Bearer "+o.apiKey)
	}

	emitLog(ctx, fmt.Sprintf("openai: calling model %s (%s profile)", req.Model, o.Profile(req.Model)))

	var out openaiChatResponse
	if err := resilience.PostJSON(ctx, o.client, "openai", o.baseURL+"/chat/completions", header, o.buildRequestBody(req), &out); err != nil {
		return nil, err
	}
	return convertOpenAIResponse(&out)
}

// buildRequestBody converts an LLMRequest into a chat completions request body.
func (o *OpenAILLM) buildRequestBody(req *adkmodel.LLMRequest) map[string]any {
	profile := o.Profile(req.Model)
	body := map[string]any{
		"model":  req.Model,
		"stream": false,
	}

	var system string
	if req.Config != nil {
		system = extractText(req.Config.SystemInstruction)
	}

	var messages []chatMessage
	if system != "" && profile.SupportsSystemRole() {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	for i, content := range req.Contents {
		text := extractText(content)
		if text == "" {
			continue
		}
		if i == 0 && system != "" && !profile.SupportsSystemRole() {
			text = system + "\n\n" + text
		}
		messages = append(messages, chatMessage{Role: openaiRole(content.Role), Content: text})
	}
	body["messages"] = messages

	profile.Apply(body, req.Config)
	if req.Config != nil && len(req.Config.StopSequences) > 0 {
		body["stop"] = req.Config.StopSequences
	}
	return body
}

// convertOpenAIResponse converts a chat response into an ADK LLMResponse.
// Empty output is an invalid response, not a retryable failure.
func convertOpenAIResponse(resp *openaiChatResponse) (*adkmodel.LLMResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, &resilience.InvalidResponseError{Service: "openai", Reason: "no choices in response"}
	}
	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, &resilience.InvalidResponseError{Service: "openai", Reason: "empty content"}
	}

	out := &adkmodel.LLMResponse{
		Content: &genai.Content{
			Role:  genai.RoleModel,
			Parts: []*genai.Part{genai.NewPartFromText(choice.Message.Content)},
		},
		TurnComplete: true,
	}
	switch choice.FinishReason {
	case "stop":
		out.FinishReason = genai.FinishReasonStop
	case "length":
		out.FinishReason = genai.FinishReasonMaxTokens
	}
	if resp.Usage != nil {
		out.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     resp.Usage.PromptTokens,
			CandidatesTokenCount: resp.Usage.CompletionTokens,
			TotalTokenCount:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// extractText concatenates all text parts from a Content.
func extractText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var parts []string
	for _, part := range content.Parts {
		if part != nil && part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// openaiRole converts a genai role string to an OpenAI role string.
func openaiRole(role string) string {
	switch role {
	case genai.RoleModel:
		return "assistant"
	case "system":
		return "system"
	default:
		return "user"
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
		TotalTokens      int32 `json:"total_tokens"`
	} `json:"usage"`
}

func init() {
	RegisterProvider("openai", func(name string, cfg config.ProviderConfig) adkmodel.LLM {
		opts := []OpenAIOption{WithOpenAIName(name)}
		if cfg.URL != "" {
			opts = append(opts, WithOpenAIBaseURL(cfg.URL))
		}
		return NewOpenAILLM(cfg.APIKey, opts...)
	})
}
