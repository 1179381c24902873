package llmutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripMarkdownJSON extracts JSON from an LLM response that may contain
// markdown code fences or leading text. It trims whitespace, strips ```json
// and ``` fences, and finds the first '{' to start parsing from.
// Returns an error if no '{' is found in the text.
func StripMarkdownJSON(text string) (string, error) {
	content := StripCodeFence(text)

	// Skip '{{' pairs so template placeholders in leading prose don't match.
	start := -1
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			if i+1 < len(content) && content[i+1] == '{' {
				i++
				continue
			}
			start = i
			break
		}
	}

	if start < 0 {
		return "", fmt.Errorf("no JSON object found in text")
	}

	return content[start:], nil
}

// DecodeJSON decodes the first JSON object in text into v. Trailing prose
// after the object is ignored.
func DecodeJSON(text string, v any) error {
	raw, err := StripMarkdownJSON(text)
	if err != nil {
		return err
	}
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}
	return nil
}

// StripCodeFence removes a surrounding markdown code fence with an optional
// language tag (```html, ```json, ...).
func StripCodeFence(text string) string {
	content := strings.TrimSpace(text)
	if strings.HasPrefix(content, "```") {
		content = content[3:]
		if nl := strings.IndexByte(content, '\n'); nl >= 0 && !strings.ContainsAny(content[:nl], " <{") {
			content = content[nl+1:]
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// TrimQuotes strips whitespace and one layer of surrounding quote characters.
func TrimQuotes(text string) string {
	s := strings.TrimSpace(text)
	for _, q := range []string{`"`, "'", "`", "“”"} {
		open, close := q, q
		if len([]rune(q)) == 2 {
			r := []rune(q)
			open, close = string(r[0]), string(r[1])
		}
		if len(s) >= len(open)+len(close) && strings.HasPrefix(s, open) && strings.HasSuffix(s, close) {
			return strings.TrimSpace(s[len(open) : len(s)-len(close)])
		}
	}
	return s
}
