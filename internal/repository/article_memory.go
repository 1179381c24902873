package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
	memstore "github.com/soochol/blogforge/internal/repository/memory"
)

var _ ArticleRepository = (*MemoryArticleRepository)(nil)

// InternalLink is one recorded link between two articles.
type InternalLink struct {
	SourceID string
	TargetID string
	Anchor   string
	Position int
}

// MemoryArticleRepository is a thread-safe in-memory ArticleRepository.
// Slug uniqueness is enforced by a slug index.
type MemoryArticleRepository struct {
	mu       sync.Mutex // guards slugs, keywords, links and seq
	store    *memstore.Store[*blog.Article]
	slugs    map[string]string // slug -> id
	keywords map[string][]string
	links    []InternalLink
	seq      map[string]int
	next     int
	now      func() time.Time
}

func NewMemoryArticleRepository(opts ...Option) *MemoryArticleRepository {
	o := newOptions(opts)
	return &MemoryArticleRepository{
		store:    memstore.New(func(a *blog.Article) string { return a.ID }),
		slugs:    make(map[string]string),
		keywords: make(map[string][]string),
		seq:      make(map[string]int),
		now:      o.now,
	}
}

func (r *MemoryArticleRepository) Insert(ctx context.Context, a *blog.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.slugs[a.Slug]; taken {
		return fmt.Errorf("%w: %s", ports.ErrSlugConflict, a.Slug)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = blog.ArticleDraft
	}
	a.CreatedAt = r.now()
	r.putLocked(ctx, a)
	return nil
}

// put caches an article that already has an ID and timestamps.
func (r *MemoryArticleRepository) put(ctx context.Context, a *blog.Article) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(ctx, a)
}

func (r *MemoryArticleRepository) putLocked(ctx context.Context, a *blog.Article) {
	cp := *a
	if prev, err := r.store.Get(ctx, a.ID); err == nil && prev.Slug != a.Slug {
		delete(r.slugs, prev.Slug)
	}
	r.slugs[cp.Slug] = cp.ID
	if _, ok := r.seq[cp.ID]; !ok {
		r.next++
		r.seq[cp.ID] = r.next
	}
	_ = r.store.Set(ctx, &cp)
}

func (r *MemoryArticleRepository) Get(ctx context.Context, id string) (*blog.Article, error) {
	a, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: article %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryArticleRepository) GetBySlug(ctx context.Context, slug string) (*blog.Article, error) {
	r.mu.Lock()
	id, ok := r.slugs[slug]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: article %s", ErrNotFound, slug)
	}
	return r.Get(ctx, id)
}

func (r *MemoryArticleRepository) UpdateStatus(ctx context.Context, id string, status blog.ArticleStatus) (*blog.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: article %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	cp := *a
	cp.Status = status
	if status == blog.ArticlePublished && cp.PublishedAt == nil {
		t := r.now()
		cp.PublishedAt = &t
	}
	_ = r.store.Set(ctx, &cp)
	out := cp
	return &out, nil
}

// newestFirst orders arts by creation time, later inserts first on ties.
// Caller holds r.mu.
func (r *MemoryArticleRepository) newestFirst(arts []*blog.Article) {
	sort.Slice(arts, func(i, j int) bool {
		if !arts[i].CreatedAt.Equal(arts[j].CreatedAt) {
			return arts[i].CreatedAt.After(arts[j].CreatedAt)
		}
		return r.seq[arts[i].ID] > r.seq[arts[j].ID]
	})
}

func (r *MemoryArticleRepository) List(ctx context.Context, q blog.ArticleQuery) ([]*blog.Article, int, error) {
	arts, err := r.store.Filter(ctx, func(a *blog.Article) bool {
		return q.Status == "" || a.Status == q.Status
	})
	if err != nil {
		return nil, 0, err
	}

	r.mu.Lock()
	r.newestFirst(arts)
	r.mu.Unlock()

	total := len(arts)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	out := make([]*blog.Article, 0, end-start)
	for _, a := range arts[start:end] {
		cp := *a
		out = append(out, &cp)
	}
	return out, total, nil
}

func (r *MemoryArticleRepository) LinkCandidates(ctx context.Context, excludeID string, limit int) ([]blog.LinkCandidate, error) {
	arts, err := r.store.Filter(ctx, func(a *blog.Article) bool {
		return a.ID != excludeID && (a.Status == blog.ArticleDraft || a.Status == blog.ArticlePublished)
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.newestFirst(arts)
	if limit > 0 && len(arts) > limit {
		arts = arts[:limit]
	}

	out := make([]blog.LinkCandidate, 0, len(arts))
	for _, a := range arts {
		kws := append([]string(nil), r.keywords[a.ID]...)
		if kws == nil {
			kws = []string{}
		}
		out = append(out, blog.LinkCandidate{
			ID:             a.ID,
			Title:          a.Title,
			Slug:           a.Slug,
			PrimaryKeyword: a.PrimaryKeyword,
			Keywords:       kws,
		})
	}
	return out, nil
}

func (r *MemoryArticleRepository) SaveKeywords(ctx context.Context, articleID string, keywords []string) error {
	if !r.store.Has(ctx, articleID) {
		return fmt.Errorf("%w: article %s", ErrNotFound, articleID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keywords[articleID] = append([]string(nil), keywords...)
	return nil
}

func (r *MemoryArticleRepository) Keywords(_ context.Context, articleID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keywords[articleID]...)
}

func (r *MemoryArticleRepository) RecordInternalLink(ctx context.Context, sourceID, targetID, anchor string, position int) error {
	if !r.store.Has(ctx, sourceID) || !r.store.Has(ctx, targetID) {
		return fmt.Errorf("%w: link %s -> %s", ErrNotFound, sourceID, targetID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, InternalLink{SourceID: sourceID, TargetID: targetID, Anchor: anchor, Position: position})
	return nil
}

// Links returns the internal links recorded from sourceID.
func (r *MemoryArticleRepository) Links(_ context.Context, sourceID string) []InternalLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []InternalLink
	for _, l := range r.links {
		if l.SourceID == sourceID {
			out = append(out, l)
		}
	}
	return out
}

func (r *MemoryArticleRepository) Count(ctx context.Context) (map[blog.ArticleStatus]int, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := map[blog.ArticleStatus]int{}
	for _, a := range all {
		out[a.Status]++
	}
	return out, nil
}
