// Package api hosts the serve-mode HTTP server. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/documents to process a single discovery item.
//   - POST /v1/runs to process the configured discovery aggregate.
//   - GET /v1/documents/{signature} to read the document index.
package api
