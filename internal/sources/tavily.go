package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
	"github.com/soochol/blogforge/internal/resilience"
)

var _ ports.ResearchSource = (*TavilyResearch)(nil)

const DefaultTavilyURL = "https://api.tavily.com/search"

// TavilyResearch gathers web excerpts for a topic from the Tavily search API.
type TavilyResearch struct {
	client
	apiKey string
	url    string
	depth  string
}

// NewTavilyResearch creates a research source. depth defaults to "advanced".
func NewTavilyResearch(apiKey, url, depth string, opts ...Option) *TavilyResearch {
	if url == "" {
		url = DefaultTavilyURL
	}
	if depth == "" {
		depth = "advanced"
	}
	t := &TavilyResearch{client: newClient(), apiKey: apiKey, url: url, depth: depth}
	t.apply(opts)
	return t
}

// Research returns up to maxResults excerpts in relevance order.
func (t *TavilyResearch) Research(ctx context.Context, topic string, maxResults int) (*blog.ResearchBundle, error) {
	if t.apiKey == "" {
		return nil, &resilience.ValidationError{Field: "tavily_api_key", Reason: "not configured"}
	}
	query := strings.Trim(strings.TrimSpace(topic), `"`)
	if query == "" {
		return nil, &resilience.ValidationError{Field: "topic", Reason: "empty"}
	}

	return resilience.Call(ctx, t.guard, "performResearch", func(ctx context.Context) (*blog.ResearchBundle, error) {
		var out struct {
			Results *[]blog.ResearchItem `json:"results"`
		}
		err := t.postJSON(ctx, "tavily", t.url,
			http.Header{"Authorization": {"Bearer " + t.apiKey}},
			map[string]any{
				"query":           query,
				"search_depth":    t.depth,
				"include_domains": []string{},
				"exclude_domains": []string{},
				"max_results":     maxResults,
			},
			&out)
		if err != nil {
			return nil, err
		}
		if out.Results == nil {
			return nil, &resilience.InvalidResponseError{Service: "tavily", Reason: "missing or invalid results"}
		}
		bundle := FormatResearch(*out.Results)
		slog.Info("sources: research completed", "topic", query, "results", len(bundle.Items), "length", len(bundle.Text))
		return bundle, nil
	})
}

// FormatResearch flattens items into "<content> - source: <url>" paragraphs.
func FormatResearch(items []blog.ResearchItem) *blog.ResearchBundle {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s - source: %s", it.Content, it.URL))
	}
	return &blog.ResearchBundle{Items: items, Text: strings.Join(parts, "\n\n")}
}
