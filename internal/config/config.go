package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the top-level application configuration.
type Config struct {
	Server       ServerConfig              `yaml:"server"`
	Database     DatabaseConfig            `yaml:"database"`
	Providers    map[string]ProviderConfig `yaml:"providers"`
	Generation   GenerationConfig          `yaml:"generation"`
	Company      CompanyConfig             `yaml:"company"`
	Requirements RequirementsConfig        `yaml:"requirements"`
	Retry        RetryConfig               `yaml:"retry"`
	RateLimit    RateLimitConfig           `yaml:"rate_limit"`
	Breaker      BreakerConfig             `yaml:"breaker"`
	Trends       TrendsConfig              `yaml:"trends"`
	Research     ResearchConfig            `yaml:"research"`
	Image        ImageConfig               `yaml:"image"`
	Storage      StorageConfig             `yaml:"storage"`
	Scheduler    SchedulerConfig           `yaml:"scheduler"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	PublicURL string `yaml:"public_url"` // site base URL; absolute links to it count as internal
}

// DatabaseConfig holds database connection settings. An empty URL runs
// everything in memory.
type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"` // apply embedded migrations on startup
}

// ProviderConfig holds AI provider settings.
type ProviderConfig struct {
	Type   string `yaml:"type"`    // e.g. "openai", "anthropic", "gemini"
	URL    string `yaml:"url"`     // base URL
	APIKey string `yaml:"api_key"` // API key
}

// CallConfig describes one text-generation call.
type CallConfig struct {
	Model       string   `yaml:"model"`
	Profile     string   `yaml:"profile"` // "standard", "reasoning" or "" to infer from model
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"top_p"`
	MaxTokens   int32    `yaml:"max_tokens"`
}

// GenerationConfig selects the provider and per-call parameters.
type GenerationConfig struct {
	Provider    string     `yaml:"provider"` // key into Providers
	Topic       CallConfig `yaml:"topic"`
	Article     CallConfig `yaml:"article"`
	Links       CallConfig `yaml:"links"`
	Slug        CallConfig `yaml:"slug"`
	Title       CallConfig `yaml:"title"`
	Description CallConfig `yaml:"description"`
	Keywords    CallConfig `yaml:"keywords"`
}

// CompanyConfig is the prompt context describing the publisher.
type CompanyConfig struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Products     string `yaml:"products"`
	TargetMarket string `yaml:"target_market"`
}

// RequirementsConfig constrains generated articles.
type RequirementsConfig struct {
	MinWordCount     int    `yaml:"min_word_count"`
	MaxWordCount     int    `yaml:"max_word_count"`
	MinInternalLinks int    `yaml:"min_internal_links"`
	ReadingLevel     string `yaml:"reading_level"`
}

// RetryConfig configures the retry engine shared by all adapters.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Backoff     string        `yaml:"backoff"` // "exponential" or "linear"
}

// RateLimitConfig configures the text-generation rate limiter.
type RateLimitConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
	MaxQueue    int           `yaml:"max_queue"` // 0 = unbounded
}

// BreakerConfig configures every per-dependency circuit breaker.
type BreakerConfig struct {
	Threshold int           `yaml:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// TrendsConfig selects and configures the trend source.
type TrendsConfig struct {
	Source       string `yaml:"source"` // "serper", "rss" or "auto"
	Query        string `yaml:"query"`
	SerperAPIKey string `yaml:"serper_api_key"`
	SerperURL    string `yaml:"serper_url"`
	RSSURL       string `yaml:"rss_url"`
	Filter       string `yaml:"filter"` // expr boolean over {Query, Link, Position}
}

// ResearchConfig configures the research source.
type ResearchConfig struct {
	TavilyAPIKey string `yaml:"tavily_api_key"`
	TavilyURL    string `yaml:"tavily_url"`
	SearchDepth  string `yaml:"search_depth"`
	MaxResults   int    `yaml:"max_results"`
}

// ImageConfig selects the header image strategy.
type ImageConfig struct {
	Source            string `yaml:"source"` // dalle, gemini, unsplash, pexels, n8n, placeholder
	OpenAIURL         string `yaml:"openai_url"`
	DalleModel        string `yaml:"dalle_model"`
	GeminiModel       string `yaml:"gemini_model"`
	UnsplashAccessKey string `yaml:"unsplash_access_key"`
	PexelsAPIKey      string `yaml:"pexels_api_key"`
	N8NWebhookURL     string `yaml:"n8n_webhook_url"`
	Rehost            bool   `yaml:"rehost"`
}

// StorageConfig selects the blob store used for rehosted images.
type StorageConfig struct {
	Type          string `yaml:"type"` // "local" or "http"
	Dir           string `yaml:"dir"`
	PublicBaseURL string `yaml:"public_base_url"`
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Token         string `yaml:"token"`
}

// SchedulerConfig holds settings for the scheduled trigger.
type SchedulerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Cron         string        `yaml:"cron"`
	Timezone     string        `yaml:"timezone"`
	CronSecret   string        `yaml:"cron_secret"`
	RunTimeout   time.Duration `yaml:"run_timeout"`   // wall-clock ceiling per run
	SingleFlight bool          `yaml:"single_flight"` // advisory lease around scheduled runs
	LeaseTTL     time.Duration `yaml:"lease_ttl"`
}

func f32(v float32) *float32 { return &v }

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database:  DatabaseConfig{Migrate: true},
		Providers: map[string]ProviderConfig{},
		Generation: GenerationConfig{
			Provider:    "openai",
			Topic:       CallConfig{Model: "gpt-4o-mini", Temperature: f32(0.7), MaxTokens: 100},
			Article:     CallConfig{Model: "gpt-4-turbo-preview", Temperature: f32(0.8), MaxTokens: 4000},
			Links:       CallConfig{Model: "o1-mini", MaxTokens: 4500},
			Slug:        CallConfig{Model: "gpt-4o-mini", Temperature: f32(0.5), MaxTokens: 50},
			Title:       CallConfig{Model: "gpt-4o-mini", Temperature: f32(0.7), MaxTokens: 100},
			Description: CallConfig{Model: "gpt-4o-mini", Temperature: f32(0.7), MaxTokens: 100},
			Keywords:    CallConfig{Model: "gpt-4o-mini", Temperature: f32(0.3), MaxTokens: 200},
		},
		Company: CompanyConfig{
			Name:         "Hotel Selection",
			Description:  "Premium hotel booking and selection service",
			Products:     "Hotel comparison, booking assistance, travel planning",
			TargetMarket: "Business travelers and vacation planners",
		},
		Requirements: RequirementsConfig{
			MinWordCount:     1500,
			MaxWordCount:     2000,
			MinInternalLinks: 5,
			ReadingLevel:     "Year 5",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Backoff:     "exponential",
		},
		RateLimit: RateLimitConfig{MinInterval: 2 * time.Second},
		Breaker:   BreakerConfig{Threshold: 5, Cooldown: 60 * time.Second},
		Trends: TrendsConfig{
			Source:    "auto",
			Query:     "AI Agents",
			SerperURL: "https://google.serper.dev/news",
			RSSURL:    "https://news.google.com/rss/search?hl=en-US&gl=US&ceid=US:en&q=",
		},
		Research: ResearchConfig{
			TavilyURL:   "https://api.tavily.com/search",
			SearchDepth: "advanced",
			MaxResults:  10,
		},
		Image: ImageConfig{
			Source:      "placeholder",
			DalleModel:  "dall-e-3",
			GeminiModel: "gemini-2.5-flash-image",
			Rehost:      true,
		},
		Storage: StorageConfig{
			Type:          "local",
			Dir:           "data/media",
			PublicBaseURL: "/media",
		},
		Scheduler: SchedulerConfig{
			Cron:       "0 */12 * * *",
			Timezone:   "UTC",
			RunTimeout: 5 * time.Minute,
			LeaseTTL:   10 * time.Minute,
		},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Ensure Providers map is never nil even if YAML has "providers: {}" or omits it.
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}

	return cfg, nil
}

// LoadDefault loads ".env" (if present) into the environment, then
// "config.yaml" from the current directory (defaults if missing), then
// applies environment overrides.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := Load("config.yaml")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = defaults()
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// ApplyEnv overrides cfg with any of the recognised environment variables.
func ApplyEnv(cfg *Config) {
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Server.PublicURL, "SITE_URL")
	setString(&cfg.Company.Name, "COMPANY_NAME")
	setString(&cfg.Company.Description, "COMPANY_DESCRIPTION")
	setString(&cfg.Company.Products, "COMPANY_PRODUCTS")
	setString(&cfg.Company.TargetMarket, "TARGET_MARKET")
	setInt(&cfg.Requirements.MinWordCount, "MIN_WORD_COUNT")
	setInt(&cfg.Requirements.MaxWordCount, "MAX_WORD_COUNT")
	setInt(&cfg.Requirements.MinInternalLinks, "MIN_INTERNAL_LINKS")
	setString(&cfg.Requirements.ReadingLevel, "READING_LEVEL")
	setString(&cfg.Trends.SerperAPIKey, "SERPER_API_KEY")
	setString(&cfg.Trends.Query, "TRENDS_QUERY")
	setString(&cfg.Research.TavilyAPIKey, "TAVILY_API_KEY")
	setString(&cfg.Image.Source, "IMAGE_SOURCE")
	setString(&cfg.Image.UnsplashAccessKey, "UNSPLASH_ACCESS_KEY")
	setString(&cfg.Image.PexelsAPIKey, "PEXELS_API_KEY")
	setString(&cfg.Image.N8NWebhookURL, "N8N_IMAGE_WEBHOOK_URL")
	setString(&cfg.Storage.Token, "STORAGE_TOKEN")
	setString(&cfg.Scheduler.CronSecret, "CRON_SECRET")
	setString(&cfg.Scheduler.Cron, "BLOG_SCHEDULE_INTERVAL")

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		p := cfg.Providers["openai"]
		if p.Type == "" {
			p.Type = "openai"
		}
		p.APIKey = key
		cfg.Providers["openai"] = p
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		p := cfg.Providers["gemini"]
		if p.Type == "" {
			p.Type = "gemini"
		}
		p.APIKey = key
		cfg.Providers["gemini"] = p
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
