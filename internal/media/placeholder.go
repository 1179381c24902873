package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/soochol/blogforge/internal/blog"
)

const placeholderURL = "https://via.placeholder.com/1200x630/0066CC/FFFFFF?text="

// Placeholder returns a static placeholder image labelled with the title.
type Placeholder struct {
	now func() time.Time
}

func NewPlaceholder(now func() time.Time) *Placeholder {
	if now == nil {
		now = time.Now
	}
	return &Placeholder{now: now}
}

func (p *Placeholder) Name() string { return "placeholder" }

func (p *Placeholder) Fetch(_ context.Context, topic, title string) (*Result, error) {
	label := title
	if label == "" {
		label = topic
	}
	u := placeholderURL + strings.ReplaceAll(url.QueryEscape(label), "+", "%20")
	return &Result{Image: blog.Image{
		Name:         fmt.Sprintf("placeholder-%d.png", p.now().UnixMilli()),
		FullURL:      u,
		ThumbnailURL: u,
	}}, nil
}
