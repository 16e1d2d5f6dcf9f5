package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/autonews-pipeline/internal/article"
)

const (
	defaultArticleLimit = 50
	maxArticleLimit     = 500
	readTimeout         = 3 * time.Second
)

// envelope is the response shape shared by every article endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// articleView exposes the translated side of an article.
type articleView struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title_en"`
	Content   string    `json:"content_en"`
	Date      string    `json:"date"`
	Category  string    `json:"category"`
	ImageURL  *string   `json:"image_url"`
	SourceURL string    `json:"source_url"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toArticleView(a article.StoredArticle) articleView {
	return articleView{
		ID:        a.ID,
		Title:     a.TitleTranslated,
		Content:   a.BodyTranslated,
		Date:      a.PublishedAt,
		Category:  a.Category,
		ImageURL:  a.ImageFilename,
		SourceURL: a.SourceURL,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

// listArticles handles GET /api/articles?limit=. Newest articles come first.
func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, false, nil, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	rows, err := s.reader.List(ctx, limit)
	if err != nil {
		s.logger.Error("list articles failed", zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, false, nil, "Failed to retrieve articles")
		return
	}
	views := make([]articleView, 0, len(rows))
	for _, row := range rows {
		views = append(views, toArticleView(row))
	}
	writeEnvelope(w, http.StatusOK, true, views, "Articles retrieved successfully")
}

// getArticle handles GET /api/articles/{id}: 400 for a malformed id, 404 when
// no row matches.
func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeEnvelope(w, http.StatusBadRequest, false, nil, "invalid article id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	row, err := s.reader.Get(ctx, id)
	if err != nil {
		if errors.Is(err, article.ErrNotFound) {
			writeEnvelope(w, http.StatusNotFound, false, nil, "Article not found")
			return
		}
		s.logger.Error("get article failed", zap.Int64("id", id), zap.Error(err))
		writeEnvelope(w, http.StatusInternalServerError, false, nil, "Failed to retrieve article")
		return
	}
	writeEnvelope(w, http.StatusOK, true, toArticleView(row), "Article retrieved successfully")
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultArticleLimit, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	return min(val, maxArticleLimit), nil
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any, msg string) {
	writeJSON(w, status, envelope{Success: success, Data: data, Message: msg})
}
