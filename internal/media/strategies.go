package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	adkmodel "google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/llmutil"
	"github.com/soochol/blogforge/internal/resilience"
	"github.com/soochol/blogforge/internal/storage"
)

// DALLE generates an image with the OpenAI images API.
type DALLE struct {
	remote
	apiKey  string
	baseURL string
	model   string
}

func NewDALLE(apiKey, baseURL, model string, opts ...Option) *DALLE {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "dall-e-3"
	}
	d := &DALLE{remote: newRemote(), apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), model: model}
	d.apply(opts)
	return d
}

func (d *DALLE) Name() string { return "dalle" }

func (d *DALLE) Fetch(ctx context.Context, topic, title string) (*Result, error) {
	return resilience.Call(ctx, d.guard, "generateWithDALLE", func(ctx context.Context) (*Result, error) {
		var out struct {
			Data []struct {
				URL string `json:"url"`
			} `json:"data"`
		}
		err := d.doJSON(ctx, "dalle", "POST", d.baseURL+"/images/generations",
			map[string]string{"Authorization": "Bearer " + d.apiKey},
			map[string]any{
				"model":           d.model,
				"prompt":          imagePrompt(topic, title),
				"n":               1,
				"size":            "1792x1024",
				"quality":         "standard",
				"response_format": "url",
			}, &out)
		if err != nil {
			return nil, err
		}
		if len(out.Data) == 0 || out.Data[0].URL == "" {
			return nil, &resilience.InvalidResponseError{Service: "dalle", Reason: "no image generated"}
		}
		u := out.Data[0].URL
		return &Result{
			Image:     blog.Image{Name: fmt.Sprintf("blog-%d.png", d.now().UnixMilli()), FullURL: u, ThumbnailURL: u},
			Ephemeral: true,
		}, nil
	})
}

// Gemini generates an image through an image-capable adk model.
type Gemini struct {
	remote
	llm   adkmodel.LLM
	model string
}

func NewGemini(llm adkmodel.LLM, model string, opts ...Option) *Gemini {
	g := &Gemini{remote: newRemote(), llm: llm, model: model}
	g.apply(opts)
	return g
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Fetch(ctx context.Context, topic, title string) (*Result, error) {
	req := &adkmodel.LLMRequest{
		Model:    g.model,
		Contents: []*genai.Content{genai.NewContentFromText(imagePrompt(topic, title), genai.RoleUser)},
		Config:   &genai.GenerateContentConfig{},
	}
	return resilience.Call(ctx, g.guard, "generateWithGemini", func(ctx context.Context) (*Result, error) {
		var resp *adkmodel.LLMResponse
		for r, err := range g.llm.GenerateContent(ctx, req, false) {
			if err != nil {
				return nil, err
			}
			resp = r
		}
		blob, ok := llmutil.FirstInlineData(resp, "image/")
		if !ok {
			return nil, &resilience.InvalidResponseError{Service: "gemini", Reason: "no image in response"}
		}
		name := fmt.Sprintf("gemini-%d%s", g.now().UnixMilli(), storage.ExtensionFor(blob.MIMEType))
		return &Result{Image: blog.Image{Name: name}, Data: blob.Data, ContentType: blob.MIMEType}, nil
	})
}

// Unsplash picks a random landscape photo matching the topic.
type Unsplash struct {
	remote
	accessKey string
	baseURL   string
}

func NewUnsplash(accessKey, baseURL string, opts ...Option) *Unsplash {
	if baseURL == "" {
		baseURL = "https://api.unsplash.com"
	}
	u := &Unsplash{remote: newRemote(), accessKey: accessKey, baseURL: strings.TrimRight(baseURL, "/")}
	u.apply(opts)
	return u
}

func (u *Unsplash) Name() string { return "unsplash" }

func (u *Unsplash) Fetch(ctx context.Context, topic, _ string) (*Result, error) {
	if u.accessKey == "" {
		return nil, &resilience.ValidationError{Field: "unsplash_access_key", Reason: "not configured"}
	}
	target := u.baseURL + "/photos/random?" + url.Values{"query": {topic}, "orientation": {"landscape"}}.Encode()
	return resilience.Call(ctx, u.guard, "fetchFromUnsplash", func(ctx context.Context) (*Result, error) {
		var out struct {
			ID   string `json:"id"`
			URLs struct {
				Regular string `json:"regular"`
				Thumb   string `json:"thumb"`
			} `json:"urls"`
		}
		if err := u.doJSON(ctx, "unsplash", "GET", target,
			map[string]string{"Authorization": "Client-ID " + u.accessKey}, nil, &out); err != nil {
			return nil, err
		}
		if out.URLs.Regular == "" {
			return nil, &resilience.InvalidResponseError{Service: "unsplash", Reason: "no photo URL"}
		}
		return &Result{Image: blog.Image{
			Name:         fmt.Sprintf("unsplash-%s.jpg", out.ID),
			FullURL:      out.URLs.Regular,
			ThumbnailURL: out.URLs.Thumb,
		}}, nil
	})
}

// Pexels takes the first landscape search hit for the topic.
type Pexels struct {
	remote
	apiKey  string
	baseURL string
}

func NewPexels(apiKey, baseURL string, opts ...Option) *Pexels {
	if baseURL == "" {
		baseURL = "https://api.pexels.com/v1"
	}
	p := &Pexels{remote: newRemote(), apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/")}
	p.apply(opts)
	return p
}

func (p *Pexels) Name() string { return "pexels" }

func (p *Pexels) Fetch(ctx context.Context, topic, _ string) (*Result, error) {
	if p.apiKey == "" {
		return nil, &resilience.ValidationError{Field: "pexels_api_key", Reason: "not configured"}
	}
	target := p.baseURL + "/search?" + url.Values{"query": {topic}, "per_page": {"1"}, "orientation": {"landscape"}}.Encode()
	return resilience.Call(ctx, p.guard, "fetchFromPexels", func(ctx context.Context) (*Result, error) {
		var out struct {
			Photos []struct {
				ID  int64 `json:"id"`
				Src struct {
					Large  string `json:"large"`
					Medium string `json:"medium"`
				} `json:"src"`
			} `json:"photos"`
		}
		if err := p.doJSON(ctx, "pexels", "GET", target,
			map[string]string{"Authorization": p.apiKey}, nil, &out); err != nil {
			return nil, err
		}
		if len(out.Photos) == 0 {
			return nil, &resilience.InvalidResponseError{Service: "pexels", Reason: "no images found"}
		}
		photo := out.Photos[0]
		return &Result{Image: blog.Image{
			Name:         fmt.Sprintf("pexels-%d.jpg", photo.ID),
			FullURL:      photo.Src.Large,
			ThumbnailURL: photo.Src.Medium,
		}}, nil
	})
}

// N8N delegates image production to an external automation webhook.
type N8N struct {
	remote
	url    string
	apiKey string
}

func NewN8N(webhookURL, apiKey string, opts ...Option) *N8N {
	n := &N8N{remote: newRemote(), url: webhookURL, apiKey: apiKey}
	n.apply(opts)
	return n
}

func (n *N8N) Name() string { return "n8n" }

func (n *N8N) Fetch(ctx context.Context, topic, title string) (*Result, error) {
	if n.url == "" {
		return nil, &resilience.ValidationError{Field: "n8n_webhook_url", Reason: "not configured"}
	}
	headers := map[string]string{}
	if n.apiKey != "" {
		headers["Authorization"] = "Bearer " + n.apiKey
	}
	return resilience.Call(ctx, n.guard, "callN8NWorkflow", func(ctx context.Context) (*Result, error) {
		var out struct {
			Name          string `json:"name"`
			WebViewLink   string `json:"webViewLink"`
			ThumbnailLink string `json:"thumbnailLink"`
		}
		if err := n.doJSON(ctx, "n8n", "POST", n.url, headers,
			map[string]string{"topic": topic, "title": title}, &out); err != nil {
			return nil, err
		}
		if out.WebViewLink == "" {
			return nil, &resilience.InvalidResponseError{Service: "n8n", Reason: "missing webViewLink"}
		}
		if out.Name == "" {
			out.Name = fmt.Sprintf("n8n-%d.jpg", n.now().UnixMilli())
		}
		if out.ThumbnailLink == "" {
			out.ThumbnailLink = out.WebViewLink
		}
		return &Result{Image: blog.Image{Name: out.Name, FullURL: out.WebViewLink, ThumbnailURL: out.ThumbnailLink}}, nil
	})
}
