package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/blog/ports"
)

const (
	uniqueViolation = pq.ErrorCode("23505")
	slugConstraint  = "articles_slug_key"
)

var articleColumns = []string{
	"id", "title", "slug", "content", "meta_description", "primary_keyword",
	"image_name", "image_url", "image_thumbnail_url", "image_source",
	"status", "created_at", "published_at",
}

// IsSlugConflict reports whether err is the unique violation on articles.slug.
func IsSlugConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == slugConstraint
}

// InsertArticle stores a new article, assigning ID (when empty) and CreatedAt.
// A taken slug is reported as ports.ErrSlugConflict.
func (d *DB) InsertArticle(ctx context.Context, a *blog.Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = blog.ArticleDraft
	}
	var imgName, imgURL, imgThumb, imgSource any
	if a.Image != nil {
		imgName = a.Image.Name
		imgURL = a.Image.FullURL
		imgThumb = a.Image.ThumbnailURL
		imgSource = nullString(a.Image.Source)
	}

	query, args, err := psql.Insert("articles").
		Columns("id", "title", "slug", "content", "meta_description", "primary_keyword",
			"image_name", "image_url", "image_thumbnail_url", "image_source", "status", "published_at").
		Values(a.ID, a.Title, a.Slug, a.Content, a.MetaDescription, a.PrimaryKeyword,
			imgName, imgURL, imgThumb, imgSource, string(a.Status), a.PublishedAt).
		Suffix("RETURNING created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert article: %w", err)
	}

	if err := d.Pool.QueryRowContext(ctx, query, args...).Scan(&a.CreatedAt); err != nil {
		if IsSlugConflict(err) {
			return fmt.Errorf("%w: %s", ports.ErrSlugConflict, a.Slug)
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// GetArticleBySlug returns the article with the given slug.
func (d *DB) GetArticleBySlug(ctx context.Context, slug string) (*blog.Article, error) {
	return d.getArticle(ctx, sq.Eq{"slug": slug})
}

// GetArticle returns the article with the given ID.
func (d *DB) GetArticle(ctx context.Context, id string) (*blog.Article, error) {
	return d.getArticle(ctx, sq.Eq{"id": id})
}

func (d *DB) getArticle(ctx context.Context, where sq.Eq) (*blog.Article, error) {
	query, args, err := psql.Select(articleColumns...).From("articles").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get article: %w", err)
	}
	a, err := scanArticle(d.Pool.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return a, nil
}

// UpdateArticleStatus changes the publication state. Publishing stamps
// published_at once; later publishes keep the first timestamp.
func (d *DB) UpdateArticleStatus(ctx context.Context, id string, status blog.ArticleStatus) (*blog.Article, error) {
	update := psql.Update("articles").Set("status", string(status))
	if status == blog.ArticlePublished {
		update = update.Set("published_at", sq.Expr("COALESCE(published_at, NOW())"))
	}
	query, args, err := update.
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(articleColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update article status: %w", err)
	}
	a, err := scanArticle(d.Pool.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update article status: %w", err)
	}
	return a, nil
}

// LinkCandidates returns the most recent draft or published articles other
// than excludeID, with their keywords.
func (d *DB) LinkCandidates(ctx context.Context, excludeID string, limit int) ([]blog.LinkCandidate, error) {
	sel := psql.Select("a.id", "a.title", "a.slug", "a.primary_keyword", "COALESCE(k.keywords, '{}')").
		From("articles a").
		LeftJoin("article_keywords k ON k.article_id = a.id").
		Where(sq.Eq{"a.status": []string{string(blog.ArticleDraft), string(blog.ArticlePublished)}}).
		OrderBy("a.created_at DESC").
		Limit(uint64(limit))
	if excludeID != "" {
		sel = sel.Where(sq.NotEq{"a.id": excludeID})
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build link candidates: %w", err)
	}

	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list link candidates: %w", err)
	}
	defer rows.Close()

	var out []blog.LinkCandidate
	for rows.Next() {
		var c blog.LinkCandidate
		var keywords pq.StringArray
		if err := rows.Scan(&c.ID, &c.Title, &c.Slug, &c.PrimaryKeyword, &keywords); err != nil {
			return nil, fmt.Errorf("scan link candidate: %w", err)
		}
		c.Keywords = []string(keywords)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link candidates: %w", err)
	}
	return out, nil
}

// SaveKeywords replaces the keyword list of an article.
func (d *DB) SaveKeywords(ctx context.Context, articleID string, keywords []string) error {
	if keywords == nil {
		keywords = []string{}
	}
	query, args, err := psql.Insert("article_keywords").
		Columns("article_id", "keywords").
		Values(articleID, pq.Array(keywords)).
		Suffix("ON CONFLICT (article_id) DO UPDATE SET keywords = EXCLUDED.keywords, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save keywords: %w", err)
	}
	if _, err := d.Pool.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save keywords: %w", err)
	}
	return nil
}

// RecordInternalLink stores one link from source to target.
func (d *DB) RecordInternalLink(ctx context.Context, sourceID, targetID, anchor string, position int) error {
	query, args, err := psql.Insert("internal_links").
		Columns("id", "source_id", "target_id", "anchor_text", "link_position").
		Values(uuid.NewString(), sourceID, targetID, anchor, position).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert internal link: %w", err)
	}
	if _, err := d.Pool.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert internal link: %w", err)
	}
	return nil
}

// ListArticles returns one page of articles, newest first, and the number
// of articles matching q.Status.
func (d *DB) ListArticles(ctx context.Context, q blog.ArticleQuery) ([]*blog.Article, int, error) {
	countQuery, countArgs, pageQuery, pageArgs, err := articleListQueries(q)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := d.Pool.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listed articles: %w", err)
	}

	rows, err := d.Pool.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := []*blog.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate articles: %w", err)
	}
	return out, total, nil
}

func articleListQueries(q blog.ArticleQuery) (countSQL string, countArgs []any, pageSQL string, pageArgs []any, err error) {
	count := psql.Select("COUNT(*)").From("articles")
	page := psql.Select(articleColumns...).From("articles").OrderBy("created_at DESC", "id")
	if q.Limit > 0 {
		page = page.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		page = page.Offset(uint64(q.Offset))
	}
	if q.Status != "" {
		count = count.Where(sq.Eq{"status": string(q.Status)})
		page = page.Where(sq.Eq{"status": string(q.Status)})
	}
	if countSQL, countArgs, err = count.ToSql(); err != nil {
		return "", nil, "", nil, fmt.Errorf("build count articles: %w", err)
	}
	if pageSQL, pageArgs, err = page.ToSql(); err != nil {
		return "", nil, "", nil, fmt.Errorf("build list articles: %w", err)
	}
	return countSQL, countArgs, pageSQL, pageArgs, nil
}

// CountArticles returns the number of stored articles per status.
func (d *DB) CountArticles(ctx context.Context) (map[blog.ArticleStatus]int, error) {
	query, args, err := psql.Select("status", "COUNT(*)").From("articles").GroupBy("status").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count articles: %w", err)
	}
	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}
	defer rows.Close()

	out := map[blog.ArticleStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan article count: %w", err)
		}
		out[blog.ArticleStatus(status)] = n
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*blog.Article, error) {
	var (
		a                                 blog.Article
		status                            string
		imgName, imgURL, imgThumb, imgSrc sql.NullString
		publishedAt                       sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Slug, &a.Content, &a.MetaDescription, &a.PrimaryKeyword,
		&imgName, &imgURL, &imgThumb, &imgSrc, &status, &a.CreatedAt, &publishedAt); err != nil {
		return nil, err
	}
	a.Status = blog.ArticleStatus(status)
	if imgURL.Valid {
		a.Image = &blog.Image{
			Name:         imgName.String,
			FullURL:      imgURL.String,
			ThumbnailURL: imgThumb.String,
			Source:       imgSrc.String,
		}
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	return &a, nil
}

