// Package pipeline drives one article at a time through fetch, extraction,
// enrichment, image resolution and persistence.
//
// Each URL moves Fetched -> Extracted -> Enriched -> ImageResolved ->
// Persisted, or leaves the line as Dropped with a reason. A dropped article
// costs nothing downstream: an empty body makes no model calls, and a failed
// translation downloads no image and writes no row.
package pipeline

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/autonews-pipeline/internal/article"
	"github.com/JakeFAU/autonews-pipeline/internal/extract"
	"github.com/JakeFAU/autonews-pipeline/internal/metrics"
	"github.com/JakeFAU/autonews-pipeline/internal/publisher"
)

// State is the last stage an article reached.
type State string

// States an article moves through.
const (
	StateFetched       State = "fetched"
	StateExtracted     State = "extracted"
	StateEnriched      State = "enriched"
	StateImageResolved State = "image_resolved"
	StatePersisted     State = "persisted"
	StateDropped       State = "dropped"
)

// DropReason explains why an article left the pipeline.
type DropReason string

// Drop reasons.
const (
	DropFetch       DropReason = "fetch_failed"
	DropParse       DropReason = "parse_failed"
	DropEmptyBody   DropReason = "empty_body"
	DropTranslation DropReason = "translation_failed"
	DropPersist     DropReason = "persist_failed"
	DropCanceled    DropReason = "canceled"
)

// Translator translates text, returning "" on failure.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// Categorizer classifies text, always returning a vocabulary member.
type Categorizer interface {
	Categorize(ctx context.Context, text string) string
}

// ImageResolver picks, downloads and names the lead image.
type ImageResolver interface {
	Resolve(ctx context.Context, candidates []string, title, category string) *string
}

// Limiter gates every remote enrichment call.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Deps are the collaborators of a Pipeline. Publisher is optional.
type Deps struct {
	Fetcher     article.Fetcher
	Extractor   *extract.Extractor
	Limiter     Limiter
	Translator  Translator
	Categorizer Categorizer
	Images      ImageResolver
	Store       article.Store
	Publisher   article.Publisher
	Clock       article.Clock
}

// Config tunes pacing and defaults.
type Config struct {
	Pause         time.Duration
	UntitledTitle string
	RunID         string
}

// Outcome is the result of processing one URL.
type Outcome struct {
	URL   string
	State State
	// Reached is the last stage completed before the outcome.
	Reached State
	Reason  DropReason
	Article *article.Article
	Err     error
}

// Label is the metric/summary label of the outcome.
func (o Outcome) Label() string {
	if o.State == StateDropped {
		return string(o.Reason)
	}
	return string(o.State)
}

// Summary tallies a run.
type Summary struct {
	Total     int
	Persisted int
	Dropped   map[string]int
	Canceled  bool
}

// Pipeline processes articles sequentially.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Pipeline.
func New(deps Deps, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UntitledTitle == "" {
		cfg.UntitledTitle = "No Title"
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(extract.Options{})
	}
	return &Pipeline{deps: deps, cfg: cfg, logger: logger}
}

// Run processes urls in order with a fixed pause between consecutive
// articles. A cancelled context stops the run between articles.
func (p *Pipeline) Run(ctx context.Context, urls []string) Summary {
	summary := Summary{Dropped: map[string]int{}}
	for i, url := range urls {
		if ctx.Err() != nil {
			summary.Canceled = true
			break
		}
		p.logger.Info("processing article",
			zap.Int("index", i+1),
			zap.Int("total", len(urls)),
			zap.String("url", url),
		)
		outcome := p.Process(ctx, url)
		summary.Total++
		if outcome.State == StatePersisted {
			summary.Persisted++
		} else {
			summary.Dropped[string(outcome.Reason)]++
		}
		metrics.ObserveArticle(outcome.Label())

		if i < len(urls)-1 && p.cfg.Pause > 0 {
			if err := p.deps.Clock.Sleep(ctx, p.cfg.Pause); err != nil {
				summary.Canceled = true
				break
			}
		}
	}
	p.logger.Info("run finished",
		zap.Int("total", summary.Total),
		zap.Int("persisted", summary.Persisted),
		zap.Any("dropped", summary.Dropped),
		zap.Bool("canceled", summary.Canceled),
	)
	return summary
}

// Process runs a single URL to Persisted or Dropped.
func (p *Pipeline) Process(ctx context.Context, url string) Outcome {
	logger := p.logger.With(zap.String("url", url))

	page, err := p.deps.Fetcher.Fetch(ctx, url)
	if err != nil {
		return p.drop(logger, url, "", DropFetch, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return p.drop(logger, url, StateFetched, DropParse, err)
	}
	base := page.URL
	if base == "" {
		base = url
	}
	fields := p.deps.Extractor.Extract(doc, base)
	if strings.TrimSpace(fields.Body) == "" {
		return p.drop(logger, url, StateExtracted, DropEmptyBody, nil)
	}

	a := article.Article{
		SourceURL:     url,
		TitleOriginal: fields.Title,
		BodyOriginal:  fields.Body,
		PublishedAt:   fields.Date,
		Status:        article.StatusPending,
	}
	if a.TitleOriginal == "" {
		a.TitleOriginal = p.cfg.UntitledTitle
	}
	logger.Debug("article extracted",
		zap.Int("body_chars", len([]rune(a.BodyOriginal))),
		zap.Int("image_candidates", len(fields.ImageCandidates)),
	)

	if err := p.deps.Limiter.Acquire(ctx); err != nil {
		return p.drop(logger, url, StateExtracted, DropCanceled, err)
	}
	a.TitleTranslated = p.deps.Translator.Translate(ctx, a.TitleOriginal)
	if err := p.deps.Limiter.Acquire(ctx); err != nil {
		return p.drop(logger, url, StateExtracted, DropCanceled, err)
	}
	a.BodyTranslated = p.deps.Translator.Translate(ctx, a.BodyOriginal)
	if a.TitleTranslated == "" || a.BodyTranslated == "" {
		return p.drop(logger, url, StateExtracted, DropTranslation, nil)
	}

	if err := p.deps.Limiter.Acquire(ctx); err != nil {
		return p.drop(logger, url, StateExtracted, DropCanceled, err)
	}
	a.Category = p.deps.Categorizer.Categorize(ctx, a.BodyOriginal)

	if p.deps.Images != nil {
		a.ImageFilename = p.deps.Images.Resolve(ctx, fields.ImageCandidates, a.TitleOriginal, a.Category)
	}

	a.Status = article.StatusCompleted
	if err := p.deps.Store.Upsert(ctx, a); err != nil {
		logger.Error("persist article failed", zap.Error(err))
		return Outcome{URL: url, State: StateDropped, Reached: StateImageResolved, Reason: DropPersist, Article: &a, Err: err}
	}
	logger.Info("article persisted",
		zap.String("title", a.TitleTranslated),
		zap.String("category", a.Category),
		zap.Bool("has_image", a.ImageFilename != nil),
	)
	p.publish(ctx, logger, a)
	return Outcome{URL: url, State: StatePersisted, Reached: StatePersisted, Article: &a}
}

func (p *Pipeline) publish(ctx context.Context, logger *zap.Logger, a article.Article) {
	if p.deps.Publisher == nil {
		return
	}
	event := publisher.NewArticleEvent(p.cfg.RunID, a, p.deps.Clock.Now())
	id, err := p.deps.Publisher.Publish(ctx, event)
	if err != nil {
		logger.Warn("publish article event failed", zap.Error(err))
		return
	}
	logger.Debug("article event published", zap.String("message_id", id))
}

func (p *Pipeline) drop(logger *zap.Logger, url string, reached State, reason DropReason, err error) Outcome {
	fields := []zap.Field{zap.String("reason", string(reason)), zap.String("reached", string(reached))}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Warn("article dropped", fields...)
	return Outcome{URL: url, State: StateDropped, Reached: reached, Reason: reason, Err: err}
}
