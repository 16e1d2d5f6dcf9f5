// Package postgres provides Postgres-backed persistence for articles and runs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/autonews-pipeline/internal/article"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	RunsTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Pool is the subset of *pgxpool.Pool the stores use.
type Pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// ArticleStore reads and writes article rows keyed by source_url.
type ArticleStore struct {
	pool  Pool
	table string
}

// Connect opens and pings a pool for cfg.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// NewArticleStore connects using cfg.
func NewArticleStore(ctx context.Context, cfg Config) (*ArticleStore, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := NewArticleStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewArticleStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewArticleStoreWithPool(pool Pool, table string) (*ArticleStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "articles"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ArticleStore{pool: pool, table: table}, nil
}

// Pool exposes the underlying pool so sibling stores can share it.
func (s *ArticleStore) Pool() Pool {
	return s.pool
}

// Close releases the underlying pool resources.
func (s *ArticleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *ArticleStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the articles table when missing.
func (s *ArticleStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	title_ar TEXT NOT NULL DEFAULT '',
	title_en TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL DEFAULT '',
	content_ar TEXT NOT NULL DEFAULT '',
	content_en TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	image_url TEXT,
	source_url TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'failed')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Upsert inserts a, or updates the translated fields, category, image and
// status of the row with the same source_url. Original-language fields are
// never rewritten.
func (s *ArticleStore) Upsert(ctx context.Context, a article.Article) error {
	if strings.TrimSpace(a.SourceURL) == "" {
		return fmt.Errorf("source url is required")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("invalid article status %q", a.Status)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	title_ar,
	title_en,
	date,
	content_ar,
	content_en,
	category,
	image_url,
	source_url,
	status
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (source_url) DO UPDATE SET
	title_en = EXCLUDED.title_en,
	content_en = EXCLUDED.content_en,
	category = EXCLUDED.category,
	image_url = EXCLUDED.image_url,
	status = EXCLUDED.status`, s.table)

	args := []any{
		a.TitleOriginal,
		a.TitleTranslated,
		a.PublishedAt,
		a.BodyOriginal,
		a.BodyTranslated,
		a.Category,
		a.ImageFilename,
		a.SourceURL,
		string(a.Status),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

const selectColumns = `id, title_ar, title_en, date, content_ar, content_en, category, image_url, source_url, status, created_at`

// List returns up to limit articles, newest first. limit <= 0 means 50.
func (s *ArticleStore) List(ctx context.Context, limit int) ([]article.StoredArticle, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id DESC LIMIT $1`, selectColumns, s.table)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	var out []article.StoredArticle
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

// Get returns the article with id, or article.ErrNotFound.
func (s *ArticleStore) Get(ctx context.Context, id int64) (article.StoredArticle, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectColumns, s.table)
	a, err := scanArticle(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return article.StoredArticle{}, article.ErrNotFound
		}
		return article.StoredArticle{}, err
	}
	return a, nil
}

func scanArticle(row pgx.Row) (article.StoredArticle, error) {
	var (
		a      article.StoredArticle
		status string
	)
	err := row.Scan(
		&a.ID,
		&a.TitleOriginal,
		&a.TitleTranslated,
		&a.PublishedAt,
		&a.BodyOriginal,
		&a.BodyTranslated,
		&a.Category,
		&a.ImageFilename,
		&a.SourceURL,
		&status,
		&a.CreatedAt,
	)
	if err != nil {
		return article.StoredArticle{}, fmt.Errorf("scan article: %w", err)
	}
	a.Status = article.Status(status)
	return a, nil
}
