package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/db"
	"github.com/soochol/blogforge/internal/resilience"
)

var _ ArticleRepository = (*PersistentArticleRepository)(nil)

// ArticleDB defines the DB-layer methods needed by the persistent article repo.
// *db.DB satisfies this interface.
type ArticleDB interface {
	InsertArticle(ctx context.Context, a *blog.Article) error
	GetArticle(ctx context.Context, id string) (*blog.Article, error)
	GetArticleBySlug(ctx context.Context, slug string) (*blog.Article, error)
	UpdateArticleStatus(ctx context.Context, id string, status blog.ArticleStatus) (*blog.Article, error)
	ListArticles(ctx context.Context, q blog.ArticleQuery) ([]*blog.Article, int, error)
	LinkCandidates(ctx context.Context, excludeID string, limit int) ([]blog.LinkCandidate, error)
	SaveKeywords(ctx context.Context, articleID string, keywords []string) error
	RecordInternalLink(ctx context.Context, sourceID, targetID, anchor string, position int) error
	CountArticles(ctx context.Context) (map[blog.ArticleStatus]int, error)
}

// PersistentArticleRepository stores articles in PostgreSQL, which owns
// slug uniqueness. Single-article reads are cached in memory.
//
// Reads and idempotent writes run under the guard. Inserts are attempted
// once so a slug conflict reaches the slug allocator unchanged, and link
// recording is attempted once because a replayed insert would duplicate
// the row.
type PersistentArticleRepository struct {
	mem   *MemoryArticleRepository
	db    ArticleDB
	guard resilience.Guard
}

// PersistentOption configures a PersistentArticleRepository.
type PersistentOption func(*PersistentArticleRepository)

// WithDBGuard sets the retry/breaker guard around database calls.
func WithDBGuard(g resilience.Guard) PersistentOption {
	return func(r *PersistentArticleRepository) { r.guard = g }
}

func NewPersistentArticleRepository(mem *MemoryArticleRepository, database ArticleDB, opts ...PersistentOption) *PersistentArticleRepository {
	r := &PersistentArticleRepository{
		mem:   mem,
		db:    database,
		guard: resilience.Guard{Retrier: resilience.NewRetrier(resilience.DefaultPolicy())},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PersistentArticleRepository) Insert(ctx context.Context, a *blog.Article) error {
	if err := r.db.InsertArticle(ctx, a); err != nil {
		return err
	}
	r.mem.put(ctx, a)
	return nil
}

func (r *PersistentArticleRepository) Get(ctx context.Context, id string) (*blog.Article, error) {
	if a, err := r.mem.Get(ctx, id); err == nil {
		return a, nil
	}
	return r.lookup(ctx, "getArticle", "article "+id, func(ctx context.Context) (*blog.Article, error) {
		return r.db.GetArticle(ctx, id)
	})
}

func (r *PersistentArticleRepository) GetBySlug(ctx context.Context, slug string) (*blog.Article, error) {
	if a, err := r.mem.GetBySlug(ctx, slug); err == nil {
		return a, nil
	}
	return r.lookup(ctx, "getBlogBySlug", "article "+slug, func(ctx context.Context) (*blog.Article, error) {
		return r.db.GetArticleBySlug(ctx, slug)
	})
}

func (r *PersistentArticleRepository) UpdateStatus(ctx context.Context, id string, status blog.ArticleStatus) (*blog.Article, error) {
	return r.lookup(ctx, "updateBlogStatus", "article "+id, func(ctx context.Context) (*blog.Article, error) {
		return r.db.UpdateArticleStatus(ctx, id, status)
	})
}

// lookup runs a single-article query under the guard and caches the result.
// A missing row is an answer, not a failure, so it never reaches the breaker.
func (r *PersistentArticleRepository) lookup(ctx context.Context, op, what string, fn func(ctx context.Context) (*blog.Article, error)) (*blog.Article, error) {
	a, err := resilience.Call(ctx, r.guard, op, func(ctx context.Context) (*blog.Article, error) {
		a, err := fn(ctx)
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return a, err
	})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	r.mem.put(ctx, a)
	return a, nil
}

type articlePage struct {
	items []*blog.Article
	total int
}

func (r *PersistentArticleRepository) List(ctx context.Context, q blog.ArticleQuery) ([]*blog.Article, int, error) {
	page, err := resilience.Call(ctx, r.guard, "listBlogs", func(ctx context.Context) (articlePage, error) {
		items, total, err := r.db.ListArticles(ctx, q)
		return articlePage{items: items, total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return page.items, page.total, nil
}

func (r *PersistentArticleRepository) LinkCandidates(ctx context.Context, excludeID string, limit int) ([]blog.LinkCandidate, error) {
	return resilience.Call(ctx, r.guard, "getPreviousBlogPosts", func(ctx context.Context) ([]blog.LinkCandidate, error) {
		return r.db.LinkCandidates(ctx, excludeID, limit)
	})
}

func (r *PersistentArticleRepository) SaveKeywords(ctx context.Context, articleID string, keywords []string) error {
	_, err := resilience.Call(ctx, r.guard, "saveBlogKeywords", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.db.SaveKeywords(ctx, articleID, keywords)
	})
	return err
}

func (r *PersistentArticleRepository) RecordInternalLink(ctx context.Context, sourceID, targetID, anchor string, position int) error {
	return r.db.RecordInternalLink(ctx, sourceID, targetID, anchor, position)
}

func (r *PersistentArticleRepository) Count(ctx context.Context) (map[blog.ArticleStatus]int, error) {
	return resilience.Call(ctx, r.guard, "countBlogs", func(ctx context.Context) (map[blog.ArticleStatus]int, error) {
		return r.db.CountArticles(ctx)
	})
}
