package handlers

import (
	"errors"
	"net/http"

	"photoalbum/internal/backgroundtask"
	"photoalbum/internal/indexer"
	"photoalbum/internal/logging"
)

var log = logging.For("api")

// StatusResponse describes the image pipeline at a glance.
type StatusResponse struct {
	Loader struct {
		Workers  int            `json:"workers"`
		InFlight int            `json:"inFlight"`
		Decoding int            `json:"decoding"`
		Queued   map[string]int `json:"queued"`
	} `json:"loader"`

	Cache struct {
		Entries       int   `json:"entries"`
		Bytes         int64 `json:"bytes"`
		Budget        int64 `json:"budget"`
		ThumbnailSize int   `json:"thumbnailSize"`
	} `json:"cache"`

	Jobs struct {
		Queued  int  `json:"queued"`
		Running int  `json:"running"`
		Waiting int  `json:"waiting"`
		Paused  bool `json:"paused"`
	} `json:"jobs"`

	Library indexer.IndexProgress `json:"library"`

	MemoryUsage float64 `json:"memoryUsage,omitempty"`
}

// GetStatus reports queue depth per priority, decode workers, cache
// occupancy and background job counts.
func (h *Handlers) GetStatus(w http.ResponseWriter, _ *http.Request) {
	var resp StatusResponse

	resp.Loader.Workers = h.pipeline.Workers()
	resp.Loader.InFlight = h.pipeline.ActiveCount()
	resp.Loader.Decoding = h.pipeline.Decoding()
	resp.Loader.Queued = h.pipeline.Pending()

	resp.Cache.Entries = h.cache.Len()
	resp.Cache.Bytes = h.cache.Bytes()
	resp.Cache.Budget = h.cache.Budget()
	resp.Cache.ThumbnailSize = h.cache.ThumbnailSize()

	resp.Jobs.Queued, resp.Jobs.Running, resp.Jobs.Waiting = h.jobs.Stats()
	resp.Jobs.Paused = h.jobs.IsPaused()

	resp.Library = h.library.Progress()
	if h.memory != nil {
		resp.MemoryUsage = h.memory.Usage()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}

// JobsResponse lists the live background jobs.
type JobsResponse struct {
	Paused bool                     `json:"paused"`
	Jobs   []backgroundtask.JobInfo `json:"jobs"`
}

// ListJobs returns a snapshot of every job that has not completed.
func (h *Handlers) ListJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := h.jobs.Snapshot()
	if jobs == nil {
		jobs = []backgroundtask.JobInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, JobsResponse{Paused: h.jobs.IsPaused(), Jobs: jobs})
}

// PauseJobs stops the scheduler from starting new jobs.
func (h *Handlers) PauseJobs(w http.ResponseWriter, _ *http.Request) {
	h.jobs.Pause()
	log.Info("background jobs paused")
	writeJSONStatus(w, "paused", http.StatusOK)
}

// ResumeJobs lets the scheduler start jobs again.
func (h *Handlers) ResumeJobs(w http.ResponseWriter, _ *http.Request) {
	h.jobs.Resume()
	log.Info("background jobs resumed")
	writeJSONStatus(w, "resumed", http.StatusOK)
}

// TriggerScan starts a library scan in the background. It answers 409 when
// one is already running.
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	if h.scanner == nil {
		writeJSONError(w, "scanning is not available", http.StatusServiceUnavailable)
		return
	}
	if h.library.Progress().IsIndexing {
		writeJSONStatus(w, "already_running", http.StatusConflict)
		return
	}

	go func() {
		if err := h.scanner.Scan(h.scanCtx); err != nil && !errors.Is(err, indexer.ErrIndexing) {
			log.Error("scan failed: %v", err)
		}
	}()
	writeJSONStatus(w, "started", http.StatusAccepted)
}
