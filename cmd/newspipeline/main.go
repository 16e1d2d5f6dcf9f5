package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/autonews-pipeline/internal/api"
	"github.com/JakeFAU/autonews-pipeline/internal/article"
	"github.com/JakeFAU/autonews-pipeline/internal/clock/system"
	"github.com/JakeFAU/autonews-pipeline/internal/config"
	"github.com/JakeFAU/autonews-pipeline/internal/enrich"
	"github.com/JakeFAU/autonews-pipeline/internal/enrich/gemini"
	"github.com/JakeFAU/autonews-pipeline/internal/extract"
	collyfetcher "github.com/JakeFAU/autonews-pipeline/internal/fetcher/colly"
	idgen "github.com/JakeFAU/autonews-pipeline/internal/id/uuid"
	"github.com/JakeFAU/autonews-pipeline/internal/images"
	"github.com/JakeFAU/autonews-pipeline/internal/logging"
	"github.com/JakeFAU/autonews-pipeline/internal/pipeline"
	"github.com/JakeFAU/autonews-pipeline/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/autonews-pipeline/internal/publisher/pubsub"
	"github.com/JakeFAU/autonews-pipeline/internal/sitemap"
	gcsstore "github.com/JakeFAU/autonews-pipeline/internal/storage/gcs"
	localstore "github.com/JakeFAU/autonews-pipeline/internal/storage/local"
	"github.com/JakeFAU/autonews-pipeline/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	limit := flag.Int("limit", -1, "Process at most N sitemap URLs (overrides sitemap.limit)")
	reset := flag.Bool("reset", false, "Reset stored articles before the run (not supported)")
	serve := flag.Bool("serve", false, "Serve the read API after the run until interrupted")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *limit >= 0 {
		cfg.Sitemap.Limit = *limit
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := 0
	if err := run(ctx, cfg, logger, *reset, *serve || cfg.Server.Enabled); err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		code = 1
	}
	stop()
	if syncErr := logger.Sync(); syncErr != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
	}
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, reset, serve bool) error {
	runID, err := idgen.New().NewRawID()
	if err != nil {
		return err
	}
	runLogger := logging.ForRun(logger, runID.String())
	if reset {
		runLogger.Warn("reset is not supported; existing articles are kept")
	}

	pgCfg := postgres.Config{
		DSN:             cfg.DB.DSN,
		Table:           cfg.DB.Table,
		RunsTable:       cfg.DB.RunsTable,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: cfg.DBMaxConnLifetime(),
	}
	articles, err := postgres.NewArticleStore(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer articles.Close()
	runs, err := postgres.NewRunStore(articles.Pool(), pgCfg.RunsTable)
	if err != nil {
		return err
	}
	if err := articles.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := runs.EnsureSchema(ctx); err != nil {
		return err
	}

	clock := system.New()
	hostLimiter := ratelimit.NewHostLimiter(ratelimit.HostConfig{RPS: cfg.HTTP.HostRPS, Burst: cfg.HTTP.HostBurst})

	steps, cleanup, err := buildPipeline(ctx, cfg, runID.String(), clock, hostLimiter, articles, runLogger)
	if err != nil {
		return err
	}
	defer cleanup()

	startedAt := clock.Now()
	if err := runs.StartRun(ctx, runID, cfg.Sitemap.URL, startedAt); err != nil {
		runLogger.Warn("record run start failed", zap.Error(err))
	}

	sitemapFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
		Kind:      "sitemap",
	}, hostLimiter)
	urls, err := sitemap.New(sitemapFetcher, logging.ForComponent(runLogger, "sitemap")).URLs(ctx, cfg.Sitemap.URL)
	if err != nil {
		finishRun(runs, runID, clock, postgres.RunFailed, pipeline.Summary{}, err, runLogger)
		return fmt.Errorf("load sitemap: %w", err)
	}
	urls = sitemap.Limit(urls, cfg.Sitemap.Limit)
	runLogger.Info("run started", zap.String("sitemap", cfg.Sitemap.URL), zap.Int("articles", len(urls)))

	summary := steps.Run(ctx, urls)
	var runErr error
	status := postgres.RunSucceeded
	if summary.Canceled {
		status = postgres.RunFailed
		runErr = context.Cause(ctx)
	}
	finishRun(runs, runID, clock, status, summary, runErr, runLogger)

	if serve && ctx.Err() == nil {
		return serveAPI(ctx, cfg, articles, logging.ForComponent(logger, "api"))
	}
	return nil
}

// buildPipeline wires the enrichment, image and persistence stages. The
// returned cleanup releases remote clients.
func buildPipeline(
	ctx context.Context,
	cfg config.Config,
	runID string,
	clock *system.Clock,
	hostLimiter *ratelimit.HostLimiter,
	store article.Store,
	logger *zap.Logger,
) (*pipeline.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	gen, err := gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, func() {
		if err := gen.Close(); err != nil {
			logger.Warn("close gemini client failed", zap.Error(err))
		}
	})

	window := ratelimit.NewWindow(cfg.RateLimit.MaxRequests, cfg.Window(),
		ratelimit.WithClock(clock),
		ratelimit.WithLogger(logging.ForComponent(logger, "ratelimit")),
	)
	translator := enrich.NewTranslator(gen,
		enrich.RetryConfig{MaxRetries: cfg.Translate.MaxRetries, InitialWait: cfg.TranslateInitialWait(), Sleep: clock.Sleep},
		enrich.Languages{Source: cfg.Translate.SourceLanguage, Target: cfg.Translate.TargetLanguage},
		logging.ForComponent(logger, "translate"),
	)
	categorizer := enrich.NewCategorizer(gen,
		enrich.RetryConfig{MaxRetries: cfg.Categorize.MaxRetries, InitialWait: cfg.CategorizeInitialWait(), Sleep: clock.Sleep},
		article.NewCategories(cfg.Categorize.Categories, cfg.Categorize.Fallback),
		logging.ForComponent(logger, "categorize"),
	)

	var sink images.Store
	if cfg.Images.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("create storage client: %w", err)
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("close storage client failed", zap.Error(err))
			}
		})
		gcs, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Images.GCSBucket, Prefix: cfg.Images.Dir})
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		sink = gcs
	} else {
		local, err := localstore.New(localstore.Config{BaseDir: cfg.Images.Dir})
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		sink = local
	}
	resolver := images.New(images.Config{
		MinBytes:        cfg.Images.MinBytes,
		MaxBytes:        cfg.Images.MaxBytes,
		ProbeTimeout:    cfg.ImageProbeTimeout(),
		DownloadTimeout: cfg.ImageDownloadTimeout(),
		UserAgent:       cfg.HTTP.UserAgent,
	}, &http.Client{}, sink, clock, hostLimiter, logging.ForComponent(logger, "images"))

	deps := pipeline.Deps{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.HTTPTimeout(),
		}, hostLimiter),
		Extractor:   extract.New(extract.Options{MinImageWidth: cfg.Images.MinWidth, MinImageHeight: cfg.Images.MinHeight}),
		Limiter:     window,
		Translator:  translator,
		Categorizer: categorizer,
		Images:      resolver,
		Store:       store,
		Clock:       clock,
	}
	if cfg.PublishEnabled() {
		pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if err != nil {
			logger.Warn("pubsub publisher disabled", zap.Error(err))
		} else {
			closers = append(closers, func() {
				if err := pub.Close(); err != nil {
					logger.Warn("close pubsub publisher failed", zap.Error(err))
				}
			})
			deps.Publisher = pub
		}
	}

	p := pipeline.New(deps, pipeline.Config{Pause: cfg.PipelinePause(), RunID: runID}, logging.ForComponent(logger, "pipeline"))
	return p, cleanup, nil
}

func finishRun(
	runs *postgres.RunStore,
	runID uuid.UUID,
	clock *system.Clock,
	status postgres.RunStatus,
	summary pipeline.Summary,
	runErr error,
	logger *zap.Logger,
) {
	var msg *string
	if runErr != nil {
		s := runErr.Error()
		msg = &s
	}
	// The run context may already be canceled; the final write gets its own budget.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stats := postgres.RunStats{Total: summary.Total, Persisted: summary.Persisted, Dropped: summary.Dropped}
	if err := runs.FinishRun(ctx, runID, clock.Now(), status, stats, msg); err != nil {
		logger.Warn("record run finish failed", zap.Error(err))
	}
}

func serveAPI(ctx context.Context, cfg config.Config, reader article.Reader, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(reader, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
