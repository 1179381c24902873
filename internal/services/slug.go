package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
)

// ErrSlugExhausted is returned when every candidate slug is taken.
var ErrSlugExhausted = errors.New("no free slug")

// DefaultSlugAttempts is the number of candidates tried before giving up.
const DefaultSlugAttempts = 10

// SlugAllocator inserts an article under the first free slug of the
// sequence base, base-2, base-3, ... Uniqueness is decided by the store at
// insert time, never by a prior lookup.
type SlugAllocator struct {
	store       ports.ArticleInserter
	maxAttempts int
	logger      *slog.Logger
}

// NewSlugAllocator creates an allocator. maxAttempts <= 0 uses DefaultSlugAttempts.
func NewSlugAllocator(store ports.ArticleInserter, maxAttempts int) *SlugAllocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultSlugAttempts
	}
	return &SlugAllocator{store: store, maxAttempts: maxAttempts, logger: slog.Default()}
}

// Allocate inserts a copy of a and returns it with the final slug and the
// store-assigned ID and CreatedAt.
func (s *SlugAllocator) Allocate(ctx context.Context, a *blog.Article) (*blog.Article, error) {
	base := a.Slug
	if base == "" {
		return nil, errors.New("allocate slug: empty base slug")
	}
	for n := 1; n <= s.maxAttempts; n++ {
		candidate := *a
		candidate.Slug = blog.SlugCandidate(base, n)

		err := s.store.Insert(ctx, &candidate)
		if err == nil {
			if n > 1 {
				s.logger.Info("slug: allocated suffixed slug", "requested", base, "slug", candidate.Slug)
			}
			return &candidate, nil
		}
		if !errors.Is(err, ports.ErrSlugConflict) {
			return nil, fmt.Errorf("insert article %q: %w", candidate.Slug, err)
		}
		s.logger.Debug("slug: candidate taken", "slug", candidate.Slug)
	}
	return nil, fmt.Errorf("%w: %q after %d attempts", ErrSlugExhausted, base, s.maxAttempts)
}
