package model

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenerationProfile names a model family's request parameter convention.
// The set is closed: every chat-completions call is built through exactly
// one of these.
type GenerationProfile string

const (
	// ProfileStandard sends temperature, top_p and max_tokens.
	ProfileStandard GenerationProfile = "standard"
	// ProfileReasoning omits sampling parameters and sends max_completion_tokens.
	ProfileReasoning GenerationProfile = "reasoning"
)

const (
	defaultTemperature = float32(0.7)
	defaultTopP        = float32(1)
	defaultTokenLimit  = int32(1000)
)

var reasoningPrefixes = []string{"o1", "o3", "o4"}

// ProfileForModel infers the profile from a model name.
func ProfileForModel(model string) GenerationProfile {
	lower := strings.ToLower(model)
	for _, p := range reasoningPrefixes {
		if strings.HasPrefix(lower, p) {
			return ProfileReasoning
		}
	}
	return ProfileStandard
}

// ParseProfile validates an explicit profile name. An empty name infers
// the profile from model.
func ParseProfile(name, model string) (GenerationProfile, error) {
	switch GenerationProfile(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return ProfileForModel(model), nil
	case ProfileStandard:
		return ProfileStandard, nil
	case ProfileReasoning:
		return ProfileReasoning, nil
	default:
		return "", fmt.Errorf("unknown generation profile %q", name)
	}
}

// Apply writes the profile's sampling and token-limit parameters into body.
func (p GenerationProfile) Apply(body map[string]any, cfg *genai.GenerateContentConfig) {
	limit := defaultTokenLimit
	if cfg != nil && cfg.MaxOutputTokens > 0 {
		limit = cfg.MaxOutputTokens
	}

	switch p {
	case ProfileReasoning:
		body["max_completion_tokens"] = limit
	default:
		temp, topP := defaultTemperature, defaultTopP
		if cfg != nil && cfg.Temperature != nil {
			temp = *cfg.Temperature
		}
		if cfg != nil && cfg.TopP != nil {
			topP = *cfg.TopP
		}
		body["temperature"] = temp
		body["top_p"] = topP
		body["max_tokens"] = limit
	}
}

// SupportsSystemRole reports whether the family accepts a system message.
// Reasoning models receive the system instruction folded into the first user turn.
func (p GenerationProfile) SupportsSystemRole() bool {
	return p != ProfileReasoning
}
