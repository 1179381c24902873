// Package sources holds the trend and research adapters that feed the
// first stages of the blog pipeline.
package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/soochol/blogforge/internal/resilience"
)

const defaultTimeout = 30 * time.Second

// client carries the transport and resilience guard shared by HTTP sources.
type client struct {
	http  *http.Client
	guard resilience.Guard
}

func newClient() client {
	return client{
		http:  &http.Client{Timeout: defaultTimeout},
		guard: resilience.Guard{Retrier: resilience.NewRetrier(resilience.DefaultPolicy())},
	}
}

// Option configures a source.
type Option func(*client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *client) { cl.http = c }
}

// WithGuard sets the retry/breaker guard wrapped around every request.
func WithGuard(g resilience.Guard) Option {
	return func(cl *client) { cl.guard = g }
}

func (c *client) apply(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// postJSON sends body as JSON and decodes a 2xx reply into out.
func (c *client) postJSON(ctx context.Context, service, url string, header http.Header, body, out any) error {
	return resilience.PostJSON(ctx, c.http, service, url, header, body, out)
}
