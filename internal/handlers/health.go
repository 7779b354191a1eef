package handlers

import (
	"net/http"
	"runtime"
	"time"

	"photoalbum/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Indexing  bool   `json:"indexing"`
	LastIndex string `json:"lastIndexed,omitempty"`

	Images int `json:"images"`
	Videos int `json:"videos"`

	// MemoryPaused is set while decoding is held back by heap pressure.
	MemoryPaused bool `json:"memoryPaused,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns 200 once the first library scan has completed and
// 503 before that. Memory pressure reports "degraded" with 200.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	progress := h.library.Progress()
	ready := h.library.IsReady()

	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Indexing:     progress.IsIndexing,
		Images:       progress.Images,
		Videos:       progress.Videos,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !progress.LastIndex.IsZero() {
		response.LastIndex = progress.LastIndex.Format(time.RFC3339)
	}

	switch {
	case !ready:
		response.Status = statusStarting
	case h.memory != nil && h.memory.IsPaused():
		response.Status = statusDegraded
		response.MemoryPaused = true
	default:
		response.Status = statusHealthy
	}

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, response)
}

// LivenessCheck always returns 200 while the process serves requests.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// HEAD gets headers only
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 only when the library has been indexed.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.library.IsReady() {
		writeJSONStatus(w, "ready", http.StatusOK)
		return
	}
	writeJSONStatus(w, "not_ready", http.StatusServiceUnavailable)
}
