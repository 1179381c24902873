// Package media obtains a header image for each article. A configured
// strategy is tried first; any failure falls back to a placeholder so the
// pipeline never fails on imagery.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
	"github.com/soochol/blogforge/internal/storage"
)

var _ ports.ImageSource = (*Service)(nil)

// maxDownloadBytes caps images fetched for rehosting.
const maxDownloadBytes = 20 << 20

// Result is what a strategy produced. Data, when set, must be uploaded before
// the image is usable. Ephemeral marks remote URLs that expire.
type Result struct {
	Image       blog.Image
	Data        []byte
	ContentType string
	Ephemeral   bool
}

// Strategy produces one header image.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, topic, title string) (*Result, error)
}

// Service implements ports.ImageSource over a strategy, a placeholder
// fallback and an optional blob store for rehosting.
type Service struct {
	strategy    Strategy
	placeholder *Placeholder
	store       storage.BlobStore
	rehost      bool
	client      *http.Client
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithStore enables uploads of generated image bytes. With rehost set,
// ephemeral remote URLs are downloaded and re-uploaded as well.
func WithStore(store storage.BlobStore, rehost bool) ServiceOption {
	return func(s *Service) {
		s.store = store
		s.rehost = rehost
	}
}

// WithDownloadClient sets the client used to fetch images for rehosting.
func WithDownloadClient(c *http.Client) ServiceOption {
	return func(s *Service) { s.client = c }
}

// WithPlaceholder replaces the fallback placeholder.
func WithPlaceholder(p *Placeholder) ServiceOption {
	return func(s *Service) { s.placeholder = p }
}

// NewService creates the image source. A nil strategy always yields the placeholder.
func NewService(strategy Strategy, opts ...ServiceOption) *Service {
	s := &Service{
		strategy:    strategy,
		placeholder: NewPlaceholder(time.Now),
		client:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strategy returns the configured strategy name.
func (s *Service) Strategy() string {
	if s.strategy == nil {
		return s.placeholder.Name()
	}
	return s.strategy.Name()
}

// Image never fails for strategy errors; it returns a placeholder instead.
func (s *Service) Image(ctx context.Context, topic, title string) (*blog.Image, error) {
	if s.strategy == nil {
		return s.fallback(ctx, topic, title)
	}

	res, err := s.strategy.Fetch(ctx, topic, title)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("media: strategy failed, using placeholder", "strategy", s.strategy.Name(), "err", err)
		return s.fallback(ctx, topic, title)
	}
	img := res.Image
	img.Source = s.strategy.Name()

	switch {
	case len(res.Data) > 0:
		if s.store == nil {
			slog.Warn("media: no blob store for generated image, using placeholder", "strategy", img.Source)
			return s.fallback(ctx, topic, title)
		}
		url, err := s.upload(ctx, img.Name, res.ContentType, bytes.NewReader(res.Data))
		if err != nil {
			slog.Warn("media: upload failed, using placeholder", "strategy", img.Source, "err", err)
			return s.fallback(ctx, topic, title)
		}
		img.FullURL, img.ThumbnailURL = url, url
	case res.Ephemeral && s.rehost && s.store != nil:
		if url, err := s.rehostURL(ctx, img.Name, img.FullURL); err != nil {
			slog.Warn("media: rehost failed, keeping provider URL", "strategy", img.Source, "err", err)
		} else {
			img.FullURL, img.ThumbnailURL = url, url
		}
	}

	slog.Info("media: image ready", "strategy", img.Source, "name", img.Name)
	return &img, nil
}

func (s *Service) fallback(ctx context.Context, topic, title string) (*blog.Image, error) {
	res, err := s.placeholder.Fetch(ctx, topic, title)
	if err != nil {
		return nil, err
	}
	img := res.Image
	img.Source = s.placeholder.Name()
	return &img, nil
}

func (s *Service) upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	return s.store.Upload(ctx, path.Join("images", name), contentType, r)
}

// rehostURL downloads src and uploads it under name.
func (s *Service) rehostURL(ctx context.Context, name, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return "", fmt.Errorf("download: image larger than %d bytes", maxDownloadBytes)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if ext := storage.ExtensionFor(contentType); ext != ".bin" && !strings.HasSuffix(name, ext) {
		name = strings.TrimSuffix(name, path.Ext(name)) + ext
	}
	return s.upload(ctx, name, contentType, bytes.NewReader(data))
}

// imagePrompt is the generation prompt shared by the generative strategies.
func imagePrompt(topic, title string) string {
	subject := title
	if subject == "" {
		subject = topic
	}
	p := fmt.Sprintf("Create a professional, modern blog header image for an article about \"%s\". The image should be clean, engaging, and suitable for a business blog. No text in the image.", subject)
	if r := []rune(p); len(r) > 1000 {
		p = string(r[:1000])
	}
	return p
}
