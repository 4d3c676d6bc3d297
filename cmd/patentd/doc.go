// Package main hosts the patent collector entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the control plane (list, add, control, logs) plus health and
//     metrics endpoints. Every handler delegates to internal/control.Service.
//   - Queue & worker: submitted URLs land in an unbounded in-memory FIFO. A single worker drains it one item
//     at a time; pause closes the dequeue gate and skip cancels the in-flight item's context.
//   - Fetch pipeline: pages are fetched with the Colly-based fetcher, parsed with goquery, and reduced to a
//     patent.Record by the field extractor. Artifacts (metadata, abstract, PDF, description, figures) are
//     written under <base_dir>/<id>_data/ and downloaded through resty.
//   - Fanout (optional): written files are mirrored to GCS when storage.gcs_bucket is set, records are
//     upserted into Postgres when db.dsn is set. Completion events go to Pub/Sub when
//     pubsub.project_id is set; otherwise they are kept in process and served on /api/patents/events.
//   - Configuration & plumbing: Viper populates config from env (PATENTS_*) and an optional file; zap
//     provides structured logging; Prometheus metrics are exported on /metrics.
//
// Quick checklist:
//   - Configure env vars: PATENTS_SERVER_PORT, PATENTS_SCRAPER_BASE_DIR, PATENTS_HTTP_PAGE_TIMEOUT_SECONDS,
//     PATENTS_STORAGE_GCS_BUCKET, PATENTS_DB_DSN, PATENTS_PUBSUB_PROJECT_ID and PATENTS_PUBSUB_TOPIC_NAME.
//   - Run locally: go run ./cmd/patentd -config config.yaml (or rely solely on env overrides).
//   - The process reacts to SIGINT/SIGTERM by draining the HTTP server and letting the in-flight item finish
//     its current checkpoint.
package main
