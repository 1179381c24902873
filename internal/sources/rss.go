package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
	"github.com/soochol/blogforge/internal/resilience"
)

var _ ports.TrendSource = (*RSSTrends)(nil)

// DefaultRSSURL is the Google News search feed; the query is appended.
const DefaultRSSURL = "https://news.google.com/rss/search?hl=en-US&gl=US&ceid=US:en&q="

// RSSTrends reads headlines from a news search feed.
type RSSTrends struct {
	client
	feedURL string
	query   string
	max     int
}

// NewRSSTrends creates a feed-backed trend source. feedURL is used as a
// prefix to which the escaped query is appended.
func NewRSSTrends(feedURL, query string, opts ...Option) *RSSTrends {
	if feedURL == "" {
		feedURL = DefaultRSSURL
	}
	if query == "" {
		query = DefaultQuery
	}
	r := &RSSTrends{client: newClient(), feedURL: feedURL, query: query, max: 10}
	r.apply(opts)
	return r
}

func (r *RSSTrends) url() string {
	return r.feedURL + url.QueryEscape(r.query)
}

// Trending returns feed item titles in feed order.
func (r *RSSTrends) Trending(ctx context.Context) ([]blog.TrendCandidate, error) {
	return resilience.Call(ctx, r.guard, "fetchRSSTrends", func(ctx context.Context) ([]blog.TrendCandidate, error) {
		fp := gofeed.NewParser()
		fp.Client = r.http

		feed, err := fp.ParseURLWithContext(r.url(), ctx)
		if err != nil {
			var herr gofeed.HTTPError
			if errors.As(err, &herr) {
				return nil, &resilience.HTTPError{Service: "rss", StatusCode: herr.StatusCode, Body: herr.Status}
			}
			if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
				return nil, &resilience.InvalidResponseError{Service: "rss", Reason: err.Error()}
			}
			return nil, fmt.Errorf("rss: fetch feed: %w", err)
		}

		var trends []blog.TrendCandidate
		for _, item := range feed.Items {
			title := stripPublisher(item.Title)
			if title == "" {
				continue
			}
			trends = append(trends, blog.TrendCandidate{Query: title, Link: item.Link})
			if len(trends) >= r.max {
				break
			}
		}
		slog.Info("sources: trending topics fetched", "source", "rss", "query", r.query, "count", len(trends))
		return trends, nil
	})
}

// stripPublisher drops the " - Publisher" suffix news feeds append to titles.
func stripPublisher(title string) string {
	title = strings.TrimSpace(title)
	if i := strings.LastIndex(title, " - "); i > 0 {
		return strings.TrimSpace(title[:i])
	}
	return title
}
