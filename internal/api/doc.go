// Package api hosts the HTTP control plane. Notable routes:
//   - GET /api/patents/list for the artifact catalog.
//   - POST /api/patents/add to queue a URL.
//   - GET /api/patents/control?action=start|pause|resume|skip for worker commands.
//   - GET /api/patents/logs for the operator log buffer.
//   - GET /api/patents/events for completion events kept in process.
//   - GET /healthz, /readyz and /metrics for probes and Prometheus scraping.
package api
