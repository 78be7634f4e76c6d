package utils

import (
	"slices"
	"sync"
	"time"
)

const defaultLatencyWindow = 512

// LatencyTracker keeps a sliding window of refresh durations for percentile
// logging. Older samples are overwritten once the window is full.
type LatencyTracker struct {
	mu    sync.Mutex
	ring  []time.Duration
	next  int
	total int
}

// NewLatencyTracker creates a tracker with a window of size samples.
func NewLatencyTracker(size int) *LatencyTracker {
	if size <= 0 {
		size = defaultLatencyWindow
	}
	return &LatencyTracker{ring: make([]time.Duration, 0, size)}
}

// Observe records d, evicting the oldest sample when the window is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total++
	if len(l.ring) < cap(l.ring) {
		l.ring = append(l.ring, d)
		return
	}
	l.ring[l.next] = d
	l.next = (l.next + 1) % len(l.ring)
}

// Percentile returns the nearest-rank p-th percentile (0-100) of the window,
// or zero when nothing has been observed.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	window := slices.Clone(l.ring)
	l.mu.Unlock()

	if len(window) == 0 {
		return 0
	}
	switch {
	case p <= 0:
		return slices.Min(window)
	case p >= 100:
		return slices.Max(window)
	}
	slices.Sort(window)
	idx := int(p / 100 * float64(len(window)-1))
	return window[min(max(idx, 0), len(window)-1)]
}

// Count returns the number of samples currently in the window.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ring)
}

// Total returns the number of samples ever observed.
func (l *LatencyTracker) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}
