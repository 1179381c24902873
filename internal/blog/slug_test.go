package blog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ai-agents-retail", "ai-agents-retail"},
		{"  \"AI Agents Retail\"\n", "ai-agents-retail"},
		{"AI Agents: The Future!", "ai-agents-the-future"},
		{"--already--dashed--", "already-dashed"},
		{"multi   space\ttab", "multi-space-tab"},
		{"www.example.com/intelligent-agents", "wwwexamplecomintelligent-agents"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanSlug(tt.in), "CleanSlug(%q)", tt.in)
	}
}

func TestSlugCandidate(t *testing.T) {
	assert.Equal(t, "ai-agents", SlugCandidate("ai-agents", 1))
	assert.Equal(t, "ai-agents-2", SlugCandidate("ai-agents", 2))
	assert.Equal(t, "ai-agents-10", SlugCandidate("ai-agents", 10))
}
