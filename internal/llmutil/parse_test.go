package llmutil

import (
	"strings"
	"testing"
)

func TestStripMarkdownJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"clean", `{"title": "Agents at Work"}`, `{"title": "Agents at Work"}`, false},
		{"json fence", "```json\n{\"slug\": \"ai-agents\"}\n```", `{"slug": "ai-agents"}`, false},
		{"bare fence", "```\n{\"slug\": \"x\"}\n```", `{"slug": "x"}`, false},
		{"leading prose", "Here are the keywords:\n{\"keywords\": []}", `{"keywords": []}`, false},
		{"template braces in prose", "Use {{topic}} here.\n\n{\"topic\": \"retail\"}", `{"topic": "retail"}`, false},
		{"no object", "Sorry, I cannot help with that.", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripMarkdownJSON(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripMarkdownJSON_KeepsTrailingText(t *testing.T) {
	got, err := StripMarkdownJSON("Notes first.\n```json\n{\n  \"keywords\": [\"ai\"]\n}\n```\nThanks!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, "{\n  \"keywords\"") || !strings.HasSuffix(got, "Thanks!") {
		t.Errorf("unexpected result %q", got)
	}
}

func TestDecodeJSON_TrailingProse(t *testing.T) {
	var out struct {
		Query string `json:"query"`
	}
	err := DecodeJSON("Sure!\n```json\n{\"query\": \"ai agents\"}\n```\nHope that helps.", &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Query != "ai agents" {
		t.Errorf("Query = %q, want %q", out.Query, "ai agents")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"html fence", "```html\n<h1>Hi</h1>\n```", "<h1>Hi</h1>"},
		{"bare fence", "```\n<p>x</p>\n```", "<p>x</p>"},
		{"no fence", "  <p>x</p> ", "<p>x</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"Agents at Work"`, "Agents at Work"},
		{"'single'", "single"},
		{"\u201cCurly\u201d", "Curly"},
		{"plain", "plain"},
		{`"`, `"`},
	}
	for _, tt := range tests {
		if got := TrimQuotes(tt.in); got != tt.want {
			t.Errorf("TrimQuotes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
