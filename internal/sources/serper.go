package sources

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
	"github.com/soochol/blogforge/internal/resilience"
)

var _ ports.TrendSource = (*SerperTrends)(nil)

const (
	DefaultSerperURL = "https://google.serper.dev/news"
	DefaultQuery     = "AI Agents"
)

// SerperTrends reads trending headlines from the Serper Google search API.
type SerperTrends struct {
	client
	apiKey string
	url    string
	query  string
}

// NewSerperTrends creates a Serper trend source. Empty url and query fall
// back to the defaults.
func NewSerperTrends(apiKey, url, query string, opts ...Option) *SerperTrends {
	if url == "" {
		url = DefaultSerperURL
	}
	if query == "" {
		query = DefaultQuery
	}
	s := &SerperTrends{client: newClient(), apiKey: apiKey, url: url, query: query}
	s.apply(opts)
	return s
}

type serperResult struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

type serperResponse struct {
	News    []serperResult `json:"news"`
	Organic []serperResult `json:"organic"`
}

// Trending returns result titles in ranking order.
func (s *SerperTrends) Trending(ctx context.Context) ([]blog.TrendCandidate, error) {
	if s.apiKey == "" {
		return nil, &resilience.ValidationError{Field: "serper_api_key", Reason: "not configured"}
	}
	return resilience.Call(ctx, s.guard, "fetchTrendingTopics", func(ctx context.Context) ([]blog.TrendCandidate, error) {
		var out serperResponse
		err := s.postJSON(ctx, "serper", s.url,
			http.Header{"X-Api-Key": {s.apiKey}},
			map[string]any{"q": s.query, "gl": "us", "hl": "en", "num": 10},
			&out)
		if err != nil {
			return nil, err
		}
		results := out.News
		if results == nil {
			results = out.Organic
		}
		if results == nil {
			return nil, &resilience.InvalidResponseError{Service: "serper", Reason: "missing or invalid results"}
		}

		var trends []blog.TrendCandidate
		for _, r := range results {
			if title := strings.TrimSpace(r.Title); title != "" {
				trends = append(trends, blog.TrendCandidate{Query: title, Link: r.Link})
			}
		}
		slog.Info("sources: trending topics fetched", "source", "serper", "query", s.query, "count", len(trends))
		return trends, nil
	})
}
