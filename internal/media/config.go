package media

import (
	"log/slog"
	"strings"

	adkmodel "google.golang.org/adk/model"

	"github.com/soochol/blogforge/internal/config"
)

// FromConfig builds the configured strategy. Unknown or unconfigured
// strategies degrade to the placeholder with a warning.
func FromConfig(cfg config.ImageConfig, openAIKey string, gemini adkmodel.LLM, opts ...Option) Strategy {
	source := strings.ToLower(strings.TrimSpace(cfg.Source))
	missing := func(what string) Strategy {
		slog.Warn("media: strategy not configured, using placeholder", "strategy", source, "missing", what)
		return NewPlaceholder(nil)
	}

	switch source {
	case "", "placeholder":
		return NewPlaceholder(nil)
	case "dalle":
		if openAIKey == "" {
			return missing("openai api key")
		}
		return NewDALLE(openAIKey, cfg.OpenAIURL, cfg.DalleModel, opts...)
	case "gemini":
		if gemini == nil || cfg.GeminiModel == "" {
			return missing("gemini provider or model")
		}
		return NewGemini(gemini, cfg.GeminiModel, opts...)
	case "unsplash":
		if cfg.UnsplashAccessKey == "" {
			return missing("unsplash_access_key")
		}
		return NewUnsplash(cfg.UnsplashAccessKey, "", opts...)
	case "pexels":
		if cfg.PexelsAPIKey == "" {
			return missing("pexels_api_key")
		}
		return NewPexels(cfg.PexelsAPIKey, "", opts...)
	case "n8n":
		if cfg.N8NWebhookURL == "" {
			return missing("n8n_webhook_url")
		}
		return NewN8N(cfg.N8NWebhookURL, "", opts...)
	default:
		slog.Warn("media: unknown strategy, using placeholder", "strategy", source)
		return NewPlaceholder(nil)
	}
}
