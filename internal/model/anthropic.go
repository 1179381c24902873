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

var _ adkmodel.LLM = (*AnthropicLLM)(nil)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	defaultMaxTokens        = 4096
)

// AnthropicOption configures an AnthropicLLM.
type AnthropicOption func(*AnthropicLLM)

// WithAnthropicBaseURL sets the API root.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(a *AnthropicLLM) { a.baseURL = strings.TrimRight(url, "/") }
}

// WithAnthropicHTTPClient replaces the HTTP client.
func WithAnthropicHTTPClient(c *http.Client) AnthropicOption {
	return func(a *AnthropicLLM) { a.client = c }
}

// AnthropicLLM adapts the Messages API to model.LLM. Articles are generated
// in one turn, so only text blocks are sent and read back.
type AnthropicLLM struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAnthropicLLM(apiKey string, opts ...AnthropicOption) *AnthropicLLM {
	a := &AnthropicLLM{apiKey: apiKey, baseURL: defaultAnthropicBaseURL, client: http.DefaultClient}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *AnthropicLLM) Name() string { return "anthropic" }

func (a *AnthropicLLM) GenerateContent(ctx context.Context, req *adkmodel.LLMRequest, stream bool) iter.Seq2[*adkmodel.LLMResponse, error] {
	return func(yield func(*adkmodel.LLMResponse, error) bool) {
		yield(a.generate(ctx, req))
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model         string             `json:"model"`
	System        string             `json:"system,omitempty"`
	Messages      []anthropicMessage `json:"messages"`
	MaxTokens     int32              `json:"max_tokens"`
	Temperature   *float32           `json:"temperature,omitempty"`
	TopP          *float32           `json:"top_p,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int32 `json:"input_tokens"`
		OutputTokens int32 `json:"output_tokens"`
	} `json:"usage"`
}

func (a *AnthropicLLM) generate(ctx context.Context, req *adkmodel.LLMRequest) (*adkmodel.LLMResponse, error) {
	header := http.Header{}
	header.Set("x-api-key", a.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	emitLog(ctx, fmt.Sprintf("anthropic: calling model %s", req.Model))

	var out anthropicResponse
	if err := resilience.PostJSON(ctx, a.client, "anthropic", a.baseURL+"/v1/messages", header, a.buildRequestBody(req), &out); err != nil {
		return nil, err
	}
	return convertAnthropicResponse(&out)
}

// buildRequestBody maps an LLMRequest onto the Messages API. The model
// role becomes "assistant"; everything else is sent as "user".
func (a *AnthropicLLM) buildRequestBody(req *adkmodel.LLMRequest) anthropicRequest {
	body := anthropicRequest{Model: req.Model, MaxTokens: defaultMaxTokens}
	for _, c := range req.Contents {
		text := extractText(c)
		if text == "" {
			continue
		}
		role := "user"
		if c.Role == genai.RoleModel {
			role = "assistant"
		}
		body.Messages = append(body.Messages, anthropicMessage{Role: role, Content: text})
	}

	if cfg := req.Config; cfg != nil {
		body.System = extractText(cfg.SystemInstruction)
		body.Temperature = cfg.Temperature
		body.TopP = cfg.TopP
		body.StopSequences = cfg.StopSequences
		if cfg.MaxOutputTokens > 0 {
			body.MaxTokens = cfg.MaxOutputTokens
		}
	}
	return body
}

func convertAnthropicResponse(resp *anthropicResponse) (*adkmodel.LLMResponse, error) {
	var parts []*genai.Part
	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			parts = append(parts, genai.NewPartFromText(block.Text))
		}
	}
	if len(parts) == 0 {
		return nil, &resilience.InvalidResponseError{Service: "anthropic", Reason: "empty content"}
	}

	out := &adkmodel.LLMResponse{
		Content:      &genai.Content{Role: genai.RoleModel, Parts: parts},
		TurnComplete: true,
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     resp.Usage.InputTokens,
			CandidatesTokenCount: resp.Usage.OutputTokens,
			TotalTokenCount:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	switch resp.StopReason {
	case "end_turn", "stop_sequence":
		out.FinishReason = genai.FinishReasonStop
	case "max_tokens":
		out.FinishReason = genai.FinishReasonMaxTokens
	}
	return out, nil
}

func init() {
	RegisterProvider("anthropic", func(_ string, cfg config.ProviderConfig) adkmodel.LLM {
		var opts []AnthropicOption
		if cfg.URL != "" {
			opts = append(opts, WithAnthropicBaseURL(cfg.URL))
		}
		return NewAnthropicLLM(cfg.APIKey, opts...)
	})
}
