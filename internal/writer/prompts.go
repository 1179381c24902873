package writer

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/config"
)

//go:embed prompts/*.md
var promptFS embed.FS

var promptTemplates = template.Must(template.ParseFS(promptFS, "prompts/*.md"))

// keywordSampleChars bounds the article text sent for keyword extraction.
const keywordSampleChars = 2000

// Prompts renders every generation prompt with the publisher context.
type Prompts struct {
	Company      config.CompanyConfig
	Requirements config.RequirementsConfig
}

// NewPrompts creates a prompt renderer.
func NewPrompts(company config.CompanyConfig, req config.RequirementsConfig) *Prompts {
	return &Prompts{Company: company, Requirements: req}
}

func (p *Prompts) render(name string, data map[string]any) (string, error) {
	data["Company"] = p.Company
	data["Requirements"] = p.Requirements
	var b strings.Builder
	if err := promptTemplates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}

// TopicSelection asks the model to choose between the two leading trends.
func (p *Prompts) TopicSelection(a, b blog.TrendCandidate) (string, error) {
	return p.render("topic.md", map[string]any{"A": a, "B": b})
}

// BlogWriting asks for the full HTML article.
func (p *Prompts) BlogWriting(topic, research string) (string, error) {
	return p.render("article.md", map[string]any{"Topic": topic, "Research": research})
}

// InternalLinking asks the model to insert links to previous articles.
func (p *Prompts) InternalLinking(body string, previous []blog.LinkCandidate) (string, error) {
	return p.render("links.md", map[string]any{"Body": body, "Previous": FormatPreviousBlogs(previous)})
}

func (p *Prompts) Slug(body, keyword string) (string, error) {
	return p.render("slug.md", map[string]any{"Body": body, "Keyword": keyword})
}

func (p *Prompts) Title(body, keyword string) (string, error) {
	return p.render("title.md", map[string]any{"Body": body, "Keyword": keyword})
}

func (p *Prompts) MetaDescription(body, keyword string) (string, error) {
	return p.render("description.md", map[string]any{"Body": body, "Keyword": keyword})
}

// Keywords asks for a comma-separated keyword list over the start of text.
func (p *Prompts) Keywords(text string, count int) (string, error) {
	if r := []rune(text); len(r) > keywordSampleChars {
		text = string(r[:keywordSampleChars])
	}
	return p.render("keywords.md", map[string]any{"Body": text, "Count": count})
}

// FormatPreviousBlogs lists link candidates in the block format the linking
// prompt expects.
func FormatPreviousBlogs(blogs []blog.LinkCandidate) string {
	entries := make([]string, 0, len(blogs))
	for i, b := range blogs {
		entries = append(entries, fmt.Sprintf(
			"\nBlog #%d:\n- Title: %s\n- URL: /%s\n- Primary Keyword: %s\n- Related Keywords: %s\n",
			i+1, b.Title, b.Slug, b.PrimaryKeyword, strings.Join(b.Keywords, ", ")))
	}
	return strings.Join(entries, "\n")
}
