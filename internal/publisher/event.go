// Package publisher defines the notification emitted after an article is stored.
package publisher

import (
	"time"

	"github.com/JakeFAU/autonews-pipeline/internal/article"
)

// ArticleEvent announces a persisted article to downstream consumers.
type ArticleEvent struct {
	RunID     string    `json:"run_id,omitempty"`
	SourceURL string    `json:"source_url"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Image     *string   `json:"image"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewArticleEvent builds the event for a.
func NewArticleEvent(runID string, a article.Article, at time.Time) ArticleEvent {
	return ArticleEvent{
		RunID:     runID,
		SourceURL: a.SourceURL,
		Title:     a.TitleTranslated,
		Category:  a.Category,
		Image:     a.ImageFilename,
		Status:    string(a.Status),
		Timestamp: at.UTC(),
	}
}
