// Package main hosts the news pipeline entrypoint.
//
// Architecture overview:
//   - Work list: the configured sitemap is fetched through the Colly fetcher and every <loc> becomes one article
//     URL, optionally truncated by -limit / sitemap.limit.
//   - Per-article pipeline: internal/pipeline processes URLs one at a time. Each page is fetched, parsed with
//     goquery, and reduced to title, date, body and image candidates. Articles with an empty body stop there.
//   - Enrichment: title and body are translated and the body is categorized through Gemini. Every remote call first
//     acquires a slot in the shared sliding-window limiter; failures retry with exponential backoff and fall back to
//     safe defaults. A failed translation drops the article before any image download or database write.
//   - Images: the first candidate that answers a HEAD probe with an image content type is downloaded and written
//     to the local images directory, or to GCS when images.gcs_bucket is set. Existing files are never replaced.
//   - Persistence & fanout: completed articles are upserted into Postgres keyed by source URL. A compact Pub/Sub
//     notification is published when a project and topic are configured. Each run is recorded in pipeline_runs.
//   - Read API: with -serve (or server.enabled) a chi server exposes /api/articles, probes and /metrics after the
//     batch finishes, until SIGINT/SIGTERM.
//
// Operational notes:
//   - Pacing: per-host token buckets throttle page, sitemap and image requests; a fixed pause separates articles.
//   - Shutdown: SIGINT/SIGTERM cancel the run between articles; the run row is marked failed with the reason.
//   - Exit status: 1 when configuration, the database connection, the Gemini client or the sitemap fetch fails.
//
// Quick checklist:
//   - Configure env vars: NEWSPIPE_SITEMAP_URL (or SITEMAP_URL), NEWSPIPE_GEMINI_API_KEY (or GEMINI_API_KEY),
//     NEWSPIPE_DB_DSN (or DATABASE_URL), optional NEWSPIPE_PUBSUB_PROJECT_ID / NEWSPIPE_PUBSUB_TOPIC_NAME.
//   - Run locally: go run ./cmd/newspipeline -config config.yaml -limit 5
package main
