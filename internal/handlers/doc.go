// Package handlers provides the HTTP status API of the photo album daemon.
//
// It includes handlers for:
//   - Health probes (/healthz, /livez, /readyz)
//   - Pipeline status: request queue depth, decode workers, cache occupancy
//   - Background jobs: snapshot, pause and resume
//   - Triggering a library scan
//   - Build information and Prometheus metrics
//
// Handlers depends on small interfaces rather than concrete types so the
// image pipeline, scheduler and indexer can be replaced by fakes in tests.
package handlers
