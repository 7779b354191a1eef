package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"photoalbum/internal/logging"
	"photoalbum/internal/metrics"
)

var log = logging.For("memory")

// Config holds memory management configuration
type Config struct {
	// LimitBytes is the soft memory limit (0 = use GOMEMLIMIT or no limit)
	LimitBytes int64

	// HighWaterMark is the fraction of the limit below which paused
	// workers resume (0.0-1.0)
	HighWaterMark float64

	// CriticalWaterMark is the fraction at which decode workers pause (0.0-1.0)
	CriticalWaterMark float64

	// CheckInterval is how often to sample heap usage
	CheckInterval time.Duration
}

// DefaultConfig returns sensible defaults for memory management
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     5 * time.Second,
	}
}

// Sampler reports the current heap allocation in bytes.
type Sampler func() uint64

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Monitor samples heap usage and pauses decode workers while it is above
// the critical water mark. Workers resume once usage drops below the high
// water mark, so the two marks form a hysteresis band.
type Monitor struct {
	config  Config
	limit   int64
	sample  Sampler
	gc      func()
	stopped chan struct{}
	done    chan struct{}
	once    sync.Once

	mu      sync.RWMutex
	current uint64
	paused  bool
	resume  chan struct{} // closed when a pause ends
}

// NewMonitor creates a memory monitor. With no explicit limit it falls
// back to GOMEMLIMIT; with neither, backpressure is disabled.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < 1<<62 {
			limit = goMemLimit
			log.Info("using GOMEMLIMIT: %s", formatBytes(limit))
		}
	}
	if limit == 0 {
		log.Warn("no memory limit configured, backpressure disabled")
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}

	return &Monitor{
		config:  config,
		limit:   limit,
		sample:  heapAlloc,
		gc:      runtime.GC,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
		resume:  make(chan struct{}),
	}
}

// WithSampler replaces the heap sampler. Used by tests.
func (m *Monitor) WithSampler(s Sampler) *Monitor {
	m.sample = s
	m.gc = func() {}
	return m
}

// Start begins sampling in a background goroutine.
func (m *Monitor) Start() {
	if m.limit == 0 {
		close(m.done)
		return
	}
	go m.loop()
}

// Stop ends sampling and releases every goroutine blocked in WaitIfPaused.
// Safe to call more than once.
func (m *Monitor) Stop() {
	m.once.Do(func() {
		close(m.stopped)
	})
}

func (m *Monitor) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check()
		case <-m.stopped:
			return
		}
	}
}

// Check samples usage once and updates the paused state.
func (m *Monitor) Check() {
	if m.limit == 0 {
		return
	}
	alloc := m.sample()
	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = alloc

	switch {
	case usage >= m.config.CriticalWaterMark && !m.paused:
		log.Warn("memory critical (%.1f%% of limit), pausing decode workers", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go m.gc()
	case usage < m.config.HighWaterMark && m.paused:
		log.Info("memory recovered (%.1f%% of limit), resuming decode workers", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// WaitIfPaused blocks while memory is critical. It returns false if ctx is
// done or the monitor is stopped before the pause ends. A nil monitor never
// blocks.
func (m *Monitor) WaitIfPaused(ctx context.Context) bool {
	if m == nil {
		return true
	}
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return true
	}
	resume := m.resume
	m.mu.RUnlock()

	select {
	case <-resume:
		return true
	case <-m.stopped:
		return false
	case <-ctx.Done():
		return false
	}
}

// IsPaused reports whether workers should currently hold off.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns the last sampled allocation as a fraction of the limit,
// or 0 when no limit is configured.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}

// Limit returns the effective memory limit in bytes.
func (m *Monitor) Limit() int64 {
	return m.limit
}
