package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler returns the Prometheus metrics handler
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Register mounts every route on r. The metrics endpoint is mounted only
// when withMetrics is set.
func (h *Handlers) Register(r *mux.Router, withMetrics bool) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes stay on the root router so a method mismatch answers 405.
	r.HandleFunc("/api/status", h.GetStatus).Methods("GET")
	r.HandleFunc("/api/jobs", h.ListJobs).Methods("GET")
	r.HandleFunc("/api/jobs/pause", h.PauseJobs).Methods("POST")
	r.HandleFunc("/api/jobs/resume", h.ResumeJobs).Methods("POST")
	r.HandleFunc("/api/scan", h.TriggerScan).Methods("POST")

	if withMetrics {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}
}
