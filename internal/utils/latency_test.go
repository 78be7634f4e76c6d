package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentiles(t *testing.T) {
	tracker := NewLatencyTracker(10)
	if got := tracker.Percentile(95); got != 0 {
		t.Fatalf("empty tracker should report 0, got %v", got)
	}
	for _, ms := range []int{50, 10, 40, 20, 30} {
		tracker.Observe(time.Duration(ms) * time.Millisecond)
	}

	cases := map[float64]time.Duration{
		0:   10 * time.Millisecond,
		50:  30 * time.Millisecond,
		95:  40 * time.Millisecond,
		100: 50 * time.Millisecond,
	}
	for p, want := range cases {
		if got := tracker.Percentile(p); got != want {
			t.Errorf("p%.0f: expected %v, got %v", p, want, got)
		}
	}
}

func TestLatencyTrackerWindowEvictsOldest(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 1; i <= 10; i++ {
		tracker.Observe(time.Duration(i) * time.Second)
	}
	if tracker.Count() != 3 {
		t.Fatalf("expected window of 3, got %d", tracker.Count())
	}
	if tracker.Total() != 10 {
		t.Fatalf("expected 10 observations, got %d", tracker.Total())
	}
	if got := tracker.Percentile(0); got != 8*time.Second {
		t.Fatalf("oldest surviving sample should be 8s, got %v", got)
	}
}
