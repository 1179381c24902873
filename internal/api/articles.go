package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/soochol/blogforge/internal/blog"
	"github.com/soochol/blogforge/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// listArticles returns one page of articles, newest first. status defaults
// to published; "all" disables the filter.
// GET /api/articles?limit=&offset=&status=
func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	q, err := parseArticleQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := s.articles.List(r.Context(), q)
	if err != nil {
		slog.Error("api: list articles", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	if items == nil {
		items = []*blog.Article{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"articles": items,
		"total":    total,
		"limit":    q.Limit,
		"offset":   q.Offset,
	})
}

func parseArticleQuery(r *http.Request) (blog.ArticleQuery, error) {
	q := blog.ArticleQuery{Status: blog.ArticlePublished, Limit: defaultPageSize}
	values := r.URL.Query()

	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, errors.New("limit must be a positive integer")
		}
		q.Limit = min(n, maxPageSize)
	}
	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, errors.New("offset must be a non-negative integer")
		}
		q.Offset = n
	}
	switch v := blog.ArticleStatus(values.Get("status")); {
	case v == "":
	case v == "all":
		q.Status = ""
	case v.Valid():
		q.Status = v
	default:
		return q, errors.New("status must be draft, published, archived or all")
	}
	return q, nil
}

// getArticle returns one stored article.
// GET /api/articles/{slug}
func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	a, err := s.articles.GetBySlug(r.Context(), slug)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	if err != nil {
		slog.Error("api: get article", "slug", slug, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get article")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// updateArticleStatus changes the publication status of an article.
// PATCH /api/articles/{id}/status
func (s *Server) updateArticleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Status blog.ArticleStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be draft, published or archived")
		return
	}

	a, err := s.articles.UpdateStatus(r.Context(), id, req.Status)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	if err != nil {
		slog.Error("api: update article status", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to update article")
		return
	}
	writeJSON(w, http.StatusOK, a)
}
