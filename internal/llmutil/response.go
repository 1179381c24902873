package llmutil

import (
	"strings"

	adkmodel "google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ExtractText concatenates all text parts from an LLMResponse into a single string.
// Returns an empty string if the response or its content is nil.
func ExtractText(resp *adkmodel.LLMResponse) string {
	if resp == nil || resp.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Content.Parts {
		if p != nil && p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// FirstInlineData returns the first inline binary part of resp whose MIME
// type starts with prefix (for example "image/").
func FirstInlineData(resp *adkmodel.LLMResponse, prefix string) (*genai.Blob, bool) {
	if resp == nil || resp.Content == nil {
		return nil, false
	}
	for _, p := range resp.Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 &&
			strings.HasPrefix(p.InlineData.MIMEType, prefix) {
			return p.InlineData, true
		}
	}
	return nil, false
}
