package slo

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Tracker samples request outcomes and periodically recomputes the SLO
// gauges from a sliding window. It feeds the slo_* metrics declared in this
// package so dashboards can compare live ratios against the targets.
type Tracker struct {
	mu      sync.Mutex
	window  time.Duration
	samples []sample
}

type sample struct {
	at        time.Time
	duration  time.Duration
	serverErr bool
}

// NewTracker creates a Tracker keeping samples for the given window.
// A zero or negative window defaults to five minutes.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Tracker{window: window}
}

// Observe records one finished request.
func (t *Tracker) Observe(statusCode int, duration time.Duration) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, sample{
		at:        now,
		duration:  duration,
		serverErr: statusCode >= http.StatusInternalServerError,
	})
	t.evictLocked(now)
}

type trackerResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *trackerResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware wraps a handler so its outcomes feed the tracker.
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &trackerResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)
		t.Observe(rw.statusCode, time.Since(start))
	})
}

// Start recomputes the SLO gauges every interval until ctx is cancelled.
// Run it in its own goroutine.
func (t *Tracker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Flush()
		}
	}
}

// Flush recomputes and publishes the gauges from the current window.
// An empty window publishes perfect availability and zero latency so a
// quiet service does not read as an outage.
func (t *Tracker) Flush() {
	t.mu.Lock()
	t.evictLocked(time.Now())
	total := len(t.samples)
	if total == 0 {
		t.mu.Unlock()
		UpdateAvailability(1)
		UpdateErrorRate(0)
		UpdateLatencyP95(0)
		UpdateLatencyP99(0)
		return
	}

	errors := 0
	durations := make([]time.Duration, total)
	for i, s := range t.samples {
		durations[i] = s.duration
		if s.serverErr {
			errors++
		}
	}
	t.mu.Unlock()

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	errorRate := float64(errors) / float64(total)
	UpdateAvailability(1 - errorRate)
	UpdateErrorRate(errorRate)
	UpdateLatencyP95(percentile(durations, 0.95).Seconds())
	UpdateLatencyP99(percentile(durations, 0.99).Seconds())
}

// evictLocked drops samples older than the window. Caller holds mu.
func (t *Tracker) evictLocked(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.samples) && t.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.samples = append(t.samples[:0], t.samples[i:]...)
	}
}

// percentile reads the nearest-rank percentile from sorted durations.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
