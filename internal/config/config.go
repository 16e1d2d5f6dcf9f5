// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Sitemap    SitemapConfig    `mapstructure:"sitemap"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Translate  TranslateConfig  `mapstructure:"translate"`
	Categorize CategorizeConfig `mapstructure:"categorize"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Images     ImagesConfig     `mapstructure:"images"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SitemapConfig points the run at its work list.
type SitemapConfig struct {
	URL   string `mapstructure:"url"`
	Limit int    `mapstructure:"limit"`
}

// HTTPConfig configures outbound HTTP behavior.
type HTTPConfig struct {
	TimeoutSeconds              int     `mapstructure:"timeout_seconds"`
	UserAgent                   string  `mapstructure:"user_agent"`
	HostRPS                     float64 `mapstructure:"host_rps"`
	HostBurst                   int     `mapstructure:"host_burst"`
	ImageProbeTimeoutSeconds    int     `mapstructure:"image_probe_timeout_seconds"`
	ImageDownloadTimeoutSeconds int     `mapstructure:"image_download_timeout_seconds"`
}

// RateLimitConfig bounds remote model calls in a sliding window.
type RateLimitConfig struct {
	MaxRequests       int `mapstructure:"max_requests"`
	TimeWindowSeconds int `mapstructure:"time_window_seconds"`
}

// TranslateConfig tunes the translation operation.
type TranslateConfig struct {
	MaxRetries         int    `mapstructure:"max_retries"`
	InitialWaitSeconds int    `mapstructure:"initial_wait_seconds"`
	SourceLanguage     string `mapstructure:"source_language"`
	TargetLanguage     string `mapstructure:"target_language"`
}

// CategorizeConfig tunes the categorization operation.
type CategorizeConfig struct {
	MaxRetries         int      `mapstructure:"max_retries"`
	InitialWaitSeconds int      `mapstructure:"initial_wait_seconds"`
	Categories         []string `mapstructure:"categories"`
	Fallback           string   `mapstructure:"fallback"`
}

// GeminiConfig holds model credentials.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// ImagesConfig controls where images land and which ones qualify.
type ImagesConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	MinWidth  int    `mapstructure:"min_width"`
	MinHeight int    `mapstructure:"min_height"`
	MinBytes  int    `mapstructure:"min_bytes"`
	MaxBytes  int64  `mapstructure:"max_bytes"`
}

// PipelineConfig controls pacing between articles.
type PipelineConfig struct {
	PauseMs int `mapstructure:"pause_ms"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	RunsTable              string `mapstructure:"runs_table"`
	MaxConns               int    `mapstructure:"max_conns"`
	MinConns               int    `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the read-only API server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sitemap.url", "")
	v.SetDefault("sitemap.limit", 0)
	v.SetDefault("http.timeout_seconds", 20)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("http.host_rps", 0)
	v.SetDefault("http.host_burst", 1)
	v.SetDefault("http.image_probe_timeout_seconds", 10)
	v.SetDefault("http.image_download_timeout_seconds", 15)
	v.SetDefault("ratelimit.max_requests", 2)
	v.SetDefault("ratelimit.time_window_seconds", 60)
	v.SetDefault("translate.max_retries", 3)
	v.SetDefault("translate.initial_wait_seconds", 5)
	v.SetDefault("translate.source_language", "Arabic")
	v.SetDefault("translate.target_language", "English")
	v.SetDefault("categorize.max_retries", 2)
	v.SetDefault("categorize.initial_wait_seconds", 5)
	v.SetDefault("categorize.categories", []string{
		"Politics", "Sports", "Technology", "Business", "Entertainment",
		"Health", "Science", "World", "Local", "Other",
	})
	v.SetDefault("categorize.fallback", "Other")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("images.dir", "data/articles_images")
	v.SetDefault("images.gcs_bucket", "")
	v.SetDefault("images.min_width", 300)
	v.SetDefault("images.min_height", 200)
	v.SetDefault("images.min_bytes", 1000)
	v.SetDefault("images.max_bytes", 20<<20)
	v.SetDefault("pipeline.pause_ms", 1000)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "articles")
	v.SetDefault("db.runs_table", "pipeline_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// bindLegacyEnv keeps the unprefixed variable names deployments already export.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"sitemap.url":    {"NEWSPIPE_SITEMAP_URL", "SITEMAP_URL"},
		"gemini.api_key": {"NEWSPIPE_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"db.dsn":         {"NEWSPIPE_DB_DSN", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Sitemap.URL) == "" {
		errs = append(errs, errors.New("sitemap.url is required"))
	}
	if c.Sitemap.Limit < 0 {
		errs = append(errs, errors.New("sitemap.limit must be >= 0"))
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("http.timeout_seconds must be > 0"))
	}
	if c.HTTP.ImageProbeTimeoutSeconds <= 0 || c.HTTP.ImageDownloadTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("http image timeouts must be > 0"))
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, errors.New("ratelimit.max_requests must be > 0"))
	}
	if c.RateLimit.TimeWindowSeconds <= 0 {
		errs = append(errs, errors.New("ratelimit.time_window_seconds must be > 0"))
	}
	if c.Translate.MaxRetries <= 0 || c.Categorize.MaxRetries <= 0 {
		errs = append(errs, errors.New("max_retries must be > 0"))
	}
	if c.Translate.InitialWaitSeconds < 0 || c.Categorize.InitialWaitSeconds < 0 {
		errs = append(errs, errors.New("initial_wait_seconds must be >= 0"))
	}
	if len(c.Categorize.Categories) == 0 {
		errs = append(errs, errors.New("categorize.categories must not be empty"))
	}
	if strings.TrimSpace(c.Categorize.Fallback) == "" {
		errs = append(errs, errors.New("categorize.fallback is required"))
	}
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		errs = append(errs, errors.New("gemini.api_key is required"))
	}
	if c.Images.GCSBucket == "" && c.Images.Dir == "" {
		errs = append(errs, errors.New("images.dir or images.gcs_bucket must be set"))
	}
	if c.Images.MinBytes < 0 {
		errs = append(errs, errors.New("images.min_bytes must be >= 0"))
	}
	if c.Pipeline.PauseMs < 0 {
		errs = append(errs, errors.New("pipeline.pause_ms must be >= 0"))
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		errs = append(errs, errors.New("db.dsn is required"))
	}
	if c.DB.MaxConns < 0 || c.DB.MinConns < 0 || (c.DB.MaxConns > 0 && c.DB.MinConns > c.DB.MaxConns) {
		errs = append(errs, errors.New("db.min_conns must be between 0 and db.max_conns"))
	}
	if c.DB.MaxConnLifetimeSeconds < 0 {
		errs = append(errs, errors.New("db.max_conn_lifetime_seconds must be >= 0"))
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		errs = append(errs, errors.New("pubsub.project_id and pubsub.topic_name must be set together"))
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	return errors.Join(errs...)
}

// HTTPTimeout is the page fetch timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ImageProbeTimeout bounds a single HEAD probe.
func (c Config) ImageProbeTimeout() time.Duration {
	return time.Duration(c.HTTP.ImageProbeTimeoutSeconds) * time.Second
}

// ImageDownloadTimeout bounds a single image GET.
func (c Config) ImageDownloadTimeout() time.Duration {
	return time.Duration(c.HTTP.ImageDownloadTimeoutSeconds) * time.Second
}

// Window is the sliding window used by the enrichment rate limiter.
func (c Config) Window() time.Duration {
	return time.Duration(c.RateLimit.TimeWindowSeconds) * time.Second
}

// TranslateInitialWait is the first retry backoff for translation.
func (c Config) TranslateInitialWait() time.Duration {
	return time.Duration(c.Translate.InitialWaitSeconds) * time.Second
}

// CategorizeInitialWait is the first retry backoff for categorization.
func (c Config) CategorizeInitialWait() time.Duration {
	return time.Duration(c.Categorize.InitialWaitSeconds) * time.Second
}

// DBMaxConnLifetime bounds how long a pooled connection is reused. Zero keeps the pgx default.
func (c Config) DBMaxConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeSeconds) * time.Second
}

// PipelinePause is the delay between consecutive articles.
func (c Config) PipelinePause() time.Duration {
	return time.Duration(c.Pipeline.PauseMs) * time.Millisecond
}

// PublishEnabled reports whether completion notifications are configured.
func (c Config) PublishEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.TopicName != ""
}
