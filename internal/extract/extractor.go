// Package extract inspects generated article HTML: visible text, word
// count, links and headings.
package extract

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockElements end a word even when the markup has no whitespace between them.
const blockElements = "p, div, li, h1, h2, h3, h4, h5, h6, td, th, blockquote, section, article, header, footer"

// Link is one anchor found in a document, in document order.
type Link struct {
	Href     string
	Anchor   string
	Position int // 0-based among all anchors with an href
}

// Document is a parsed HTML article body.
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML document or fragment.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("html parse failed: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString is Parse over a string.
func ParseString(html string) (*Document, error) {
	return Parse(strings.NewReader(html))
}

// Text returns the visible text with whitespace collapsed. Script and style
// contents are excluded.
func (d *Document) Text() string {
	body := d.doc.Find("body")
	body.Find("script, style, noscript").Remove()
	body.Find(blockElements).AppendHtml(" ")
	return strings.Join(strings.Fields(body.Text()), " ")
}

// WordCount counts whitespace-separated words of the visible text.
func (d *Document) WordCount() int {
	return len(strings.Fields(d.Text()))
}

// Links returns every anchor with a non-empty href.
func (d *Document) Links() []Link {
	var links []Link
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		links = append(links, Link{
			Href:     href,
			Anchor:   strings.Join(strings.Fields(s.Text()), " "),
			Position: len(links),
		})
	})
	return links
}

// FirstHeading returns the text of the first h1, falling back to the first h2.
func (d *Document) FirstHeading() string {
	for _, sel := range []string{"h1", "h2"} {
		if h := strings.TrimSpace(d.doc.Find(sel).First().Text()); h != "" {
			return strings.Join(strings.Fields(h), " ")
		}
	}
	return ""
}

// WordCount parses html and counts its words. Unparseable input falls back
// to counting raw fields.
func WordCount(html string) int {
	d, err := ParseString(html)
	if err != nil {
		return len(strings.Fields(html))
	}
	return d.WordCount()
}

// InternalSlug reports the article slug an href points at when it is a
// site-relative single-segment path such as "/ai-agents" or
// "https://blog.example.com/ai-agents" with host equal to site (site may be
// empty to accept relative links only).
func InternalSlug(href, site string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	if u.Host != "" && (site == "" || !strings.EqualFold(u.Host, site)) {
		return "", false
	}
	if u.Host == "" && u.Scheme != "" {
		return "", false // mailto:, javascript: ...
	}
	p := strings.Trim(u.Path, "/")
	if p == "" || strings.Contains(p, "/") {
		return "", false
	}
	return p, true
}
