package repository

import (
	"context"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
)

// ArticleRepository stores generated articles, their keywords and the
// internal links between them.
type ArticleRepository interface {
	ports.ArticleStore
	Get(ctx context.Context, id string) (*blog.Article, error)
	GetBySlug(ctx context.Context, slug string) (*blog.Article, error)
	UpdateStatus(ctx context.Context, id string, status blog.ArticleStatus) (*blog.Article, error)
	// List returns one page of articles and the total matching q.Status.
	List(ctx context.Context, q blog.ArticleQuery) ([]*blog.Article, int, error)
	Count(ctx context.Context) (map[blog.ArticleStatus]int, error)
}
