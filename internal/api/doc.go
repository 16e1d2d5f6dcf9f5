// Package api hosts the read-only HTTP interface over persisted articles.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/articles and /api/articles/{id} for translated articles.
package api
