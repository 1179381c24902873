package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/soochol/blogforge/internal/resilience"
)

// remote is the HTTP plumbing shared by API-backed strategies.
type remote struct {
	client *http.Client
	guard  resilience.Guard
	now    func() time.Time
}

func newRemote() remote {
	return remote{
		client: &http.Client{Timeout: 60 * time.Second},
		guard:  resilience.Guard{Retrier: resilience.NewRetrier(resilience.DefaultPolicy())},
		now:    time.Now,
	}
}

// Option configures an API-backed strategy.
type Option func(*remote)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *remote) { r.client = c }
}

// WithGuard sets the retry/breaker guard.
func WithGuard(g resilience.Guard) Option {
	return func(r *remote) { r.guard = g }
}

// WithClock sets the clock used for generated image names.
func WithClock(now func() time.Time) Option {
	return func(r *remote) { r.now = now }
}

func (r *remote) apply(opts []Option) {
	for _, opt := range opts {
		opt(r)
	}
}

// doJSON sends a request (body may be nil) and decodes a 2xx JSON reply.
func (r *remote) doJSON(ctx context.Context, service, method, url string, headers map[string]string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &resilience.ValidationError{Field: "body", Reason: err.Error()}
		}
		reader = bytes.NewReader(payload)
	}
	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return &resilience.ValidationError{Field: "url", Reason: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", service, err)
	}
	defer resp.Body.Close()
	if err := resilience.CheckResponse(service, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &resilience.InvalidResponseError{Service: service, Reason: "decode: " + err.Error()}
	}
	return nil
}
