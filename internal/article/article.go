// Package article defines the domain types and ports shared by the pipeline stages.
package article

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Status describes the lifecycle state of a stored article.
type Status string

const (
	// StatusPending marks an article that has been extracted but not yet enriched.
	StatusPending Status = "pending"
	// StatusCompleted marks an article that passed translation and was persisted.
	StatusCompleted Status = "completed"
	// StatusFailed marks an article whose enrichment failed.
	StatusFailed Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// ErrNotFound is returned by readers when no article matches the lookup.
var ErrNotFound = errors.New("article not found")

// Article is the unit of work flowing through the pipeline. SourceURL is the
// natural key used for upserts.
type Article struct {
	SourceURL       string
	TitleOriginal   string
	TitleTranslated string
	BodyOriginal    string
	BodyTranslated  string
	PublishedAt     string
	Category        string
	ImageFilename   *string
	Status          Status
}

// StoredArticle is an Article as returned by the store.
type StoredArticle struct {
	ID int64
	Article
	CreatedAt time.Time
}

// ImageCandidate is an image URL discovered in a page, with the optional
// width/height attributes declared on the element.
type ImageCandidate struct {
	URL    string
	Width  *int
	Height *int
}

// TooSmall reports whether both declared dimensions are present and both fall
// below the thresholds. Missing dimensions never reject a candidate.
func (c ImageCandidate) TooSmall(minWidth, minHeight int) bool {
	if c.Width == nil || c.Height == nil {
		return false
	}
	return *c.Width < minWidth && *c.Height < minHeight
}

// Categories is the closed vocabulary an article can be classified into.
type Categories struct {
	names    []string
	set      map[string]struct{}
	fallback string
}

// NewCategories builds a vocabulary. The fallback is added to the vocabulary
// when it is not already part of it.
func NewCategories(names []string, fallback string) Categories {
	c := Categories{set: make(map[string]struct{}, len(names)+1), fallback: fallback}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := c.set[name]; ok {
			continue
		}
		c.set[name] = struct{}{}
		c.names = append(c.names, name)
	}
	if _, ok := c.set[fallback]; !ok && fallback != "" {
		c.set[fallback] = struct{}{}
		c.names = append(c.names, fallback)
	}
	return c
}

// Contains reports whether name is an exact member of the vocabulary.
func (c Categories) Contains(name string) bool {
	_, ok := c.set[name]
	return ok
}

// Names returns the vocabulary in declaration order.
func (c Categories) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Fallback returns the category used when classification fails.
func (c Categories) Fallback() string {
	return c.fallback
}

// Page is a fetched HTTP response.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher retrieves a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Store persists articles keyed by SourceURL.
type Store interface {
	Upsert(ctx context.Context, a Article) error
}

// Reader exposes persisted articles to the read-only API.
type Reader interface {
	List(ctx context.Context, limit int) ([]StoredArticle, error)
	Get(ctx context.Context, id int64) (StoredArticle, error)
}

// Publisher announces persisted articles to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
