package model

import (
	"fmt"
	"sort"

	adkmodel "google.golang.org/adk/model"

	"github.com/soochol/blogforge/internal/config"
)

// Factory builds a provider from its configuration. name is the key the
// provider was configured under.
type Factory func(name string, cfg config.ProviderConfig) adkmodel.LLM

var factories = map[string]Factory{}

// RegisterProvider makes a provider type available to Build. Provider files
// call it from init.
func RegisterProvider(typeName string, f Factory) {
	factories[typeName] = f
}

// Types lists the registered provider types.
func Types() []string {
	out := make([]string, 0, len(factories))
	for t := range factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build constructs the provider configured under name. An unregistered
// type with a URL is treated as an OpenAI-compatible endpoint.
func Build(name string, cfg config.ProviderConfig) (adkmodel.LLM, error) {
	if f, ok := factories[cfg.Type]; ok {
		return f(name, cfg), nil
	}
	if cfg.URL != "" {
		return NewOpenAILLM(cfg.APIKey, WithOpenAIBaseURL(cfg.URL), WithOpenAIName(name)), nil
	}
	return nil, fmt.Errorf("provider %q: unknown type %q (known: %v)", name, cfg.Type, Types())
}
