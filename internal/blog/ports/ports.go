// Package ports declares the narrow collaborator interfaces the generation
// pipeline depends on. Concrete adapters live in sources, writer, media and
// repository; tests substitute fakes.
package ports

import (
	"context"
	"errors"

	"github.com/soochol/blogforge/internal/blog"
)

// ErrSlugConflict is wrapped by ArticleStore.Insert when the slug is already taken.
var ErrSlugConflict = errors.New("slug already exists")

// TrendSource returns trending search phrases ordered by position.
type TrendSource interface {
	Trending(ctx context.Context) ([]blog.TrendCandidate, error)
}

// ResearchSource returns research excerpts for a topic.
type ResearchSource interface {
	Research(ctx context.Context, topic string, maxResults int) (*blog.ResearchBundle, error)
}

// ContentWriter performs every text-generation call of the pipeline.
type ContentWriter interface {
	ChooseTopic(ctx context.Context, a, b blog.TrendCandidate) (string, error)
	GenerateArticle(ctx context.Context, topic, research string) (string, error)
	AddInternalLinks(ctx context.Context, body string, previous []blog.LinkCandidate) (string, error)
	GenerateSlug(ctx context.Context, body, keyword string) (string, error)
	GenerateTitle(ctx context.Context, body, keyword string) (string, error)
	GenerateDescription(ctx context.Context, body, keyword string) (string, error)
	ExtractKeywords(ctx context.Context, body string, count int) ([]string, error)
}

// ImageSource obtains one header image for a topic.
type ImageSource interface {
	Image(ctx context.Context, topic, title string) (*blog.Image, error)
}

// ArticleInserter inserts a complete article. Implementations assign ID and
// CreatedAt and wrap ErrSlugConflict when the slug is taken.
type ArticleInserter interface {
	Insert(ctx context.Context, a *blog.Article) error
}

// LinkSource lists previous articles eligible for internal linking.
type LinkSource interface {
	LinkCandidates(ctx context.Context, excludeID string, limit int) ([]blog.LinkCandidate, error)
}

// KeywordStore persists the keyword list of an article.
type KeywordStore interface {
	SaveKeywords(ctx context.Context, articleID string, keywords []string) error
}

// LinkRecorder records an internal link between two stored articles.
type LinkRecorder interface {
	RecordInternalLink(ctx context.Context, sourceID, targetID, anchor string, position int) error
}

// ArticleStore is the article persistence the pipeline needs.
type ArticleStore interface {
	ArticleInserter
	LinkSource
	KeywordStore
	LinkRecorder
}
