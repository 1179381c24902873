package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/soochol/blogforge/internal/resilience"
)

// HTTPStorage uploads objects with PUT <endpoint>/<bucket>/<key> using a
// static bearer token, as accepted by most S3-compatible gateways and CDN
// upload APIs. A PUT replaces the object, so uploads run under the guard.
type HTTPStorage struct {
	endpoint   string
	bucket     string
	publicBase string
	client     *http.Client
	guard      resilience.Guard
}

// HTTPOption configures an HTTPStorage.
type HTTPOption func(*HTTPStorage)

// WithUploadGuard sets the retry/breaker guard around uploads.
func WithUploadGuard(g resilience.Guard) HTTPOption {
	return func(s *HTTPStorage) { s.guard = g }
}

// NewHTTPStorage creates a bucket client. An empty publicBase means objects
// are served from the upload URL itself.
func NewHTTPStorage(endpoint, bucket, token, publicBase string, opts ...HTTPOption) *HTTPStorage {
	client := http.DefaultClient
	if token != "" {
		client = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	s := &HTTPStorage{
		endpoint:   strings.TrimRight(endpoint, "/"),
		bucket:     strings.Trim(bucket, "/"),
		publicBase: publicBase,
		client:     client,
		guard:      resilience.Guard{Retrier: resilience.NewRetrier(resilience.DefaultPolicy())},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPStorage) objectURL(key string) string {
	if s.bucket == "" {
		return joinURL(s.endpoint, key)
	}
	return s.endpoint + "/" + s.bucket + "/" + key
}

func (s *HTTPStorage) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	// Buffered so every attempt sends the full body.
	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("storage: read %s: %w", key, err)
	}
	target := s.objectURL(key)

	_, err = resilience.Call(ctx, s.guard, "uploadImage", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.put(ctx, target, contentType, body)
	})
	if err != nil {
		return "", err
	}

	if s.publicBase != "" {
		return joinURL(s.publicBase, key), nil
	}
	return target, nil
}

func (s *HTTPStorage) put(ctx context.Context, target, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(body))
	if err != nil {
		return &resilience.ValidationError{Field: "url", Reason: err.Error()}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", target, err)
	}
	defer resp.Body.Close()
	return resilience.CheckResponse("storage", resp)
}
