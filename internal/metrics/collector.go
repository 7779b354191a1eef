package metrics

import (
	"time"

	"photoalbum/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats is a point-in-time view of the pipeline's queues and cache.
type Stats struct {
	QueueDepth   map[string]int // pending still-image requests by priority label
	InFlight     int
	CacheEntries int
	CacheBytes   int64
	CacheBudget  int64
	JobsQueued   int
	JobsRunning  int
	JobsWaiting  int
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func() Stats

// GetStats calls f.
func (f StatsFunc) GetStats() Stats { return f() }

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	for _, p := range priorityLabels {
		RequestQueueDepth.WithLabelValues(p).Set(float64(stats.QueueDepth[p]))
	}
	RequestsInFlight.Set(float64(stats.InFlight))
	CacheEntries.Set(float64(stats.CacheEntries))
	CacheBytes.Set(float64(stats.CacheBytes))
	CacheBudgetBytes.Set(float64(stats.CacheBudget))
	BackgroundJobsQueued.Set(float64(stats.JobsQueued))
	BackgroundJobsRunning.Set(float64(stats.JobsRunning))
	BackgroundJobsWaiting.Set(float64(stats.JobsWaiting))

	logging.Debug("Metrics collected: in_flight=%d, cache=%d entries/%d bytes, jobs queued=%d running=%d waiting=%d",
		stats.InFlight, stats.CacheEntries, stats.CacheBytes, stats.JobsQueued, stats.JobsRunning, stats.JobsWaiting)
}
