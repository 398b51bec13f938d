package engine

import (
	"math"
	"testing"
	"time"
)

func TestLiveTrackerAccumulates(t *testing.T) {
	tr := NewLiveTracker(DefaultEngineConfig())

	if seg := tr.Advance(fixAt(0, 5, t0)); seg.ContributedM() != 0 {
		t.Fatalf("first point must contribute nothing")
	}
	tr.Advance(fixAt(200, 5, t0.Add(2*time.Minute)))
	tr.Advance(fixAt(205, 5, t0.Add(4*time.Minute))) // jitter
	tr.Advance(fixAt(400, 5, t0.Add(6*time.Minute)))

	if got := tr.TotalKm(); got < 0.35 || got > 0.45 {
		t.Fatalf("unexpected live total: %v km", got)
	}
}

func TestLiveTrackerMatchesBatchRecompute(t *testing.T) {
	// the live estimate and the authoritative fold share ClassifySegment,
	// so over the same ordered input they must agree exactly
	cfg := DefaultEngineConfig()
	var points []LocationPoint
	for i := 0; i < 20; i++ {
		points = append(points, fixAt(float64(i*i%7)*120, 5, t0.Add(time.Duration(i)*90*time.Second)))
	}

	tr := NewLiveTracker(cfg)
	for _, p := range points {
		tr.Advance(p)
	}

	if batch := SessionDistanceKm(cfg, points); math.Abs(tr.TotalKm()-batch) > 1e-12 {
		t.Fatalf("live %v km diverged from batch %v km", tr.TotalKm(), batch)
	}
}

func TestLiveTrackerReset(t *testing.T) {
	tr := NewLiveTracker(DefaultEngineConfig())
	tr.Advance(fixAt(0, 5, t0))
	tr.Advance(fixAt(300, 5, t0.Add(time.Minute)))
	if tr.TotalKm() == 0 {
		t.Fatalf("expected accumulated distance")
	}

	tr.Reset()
	if tr.TotalKm() != 0 {
		t.Fatalf("expected zero after reset")
	}
	if seg := tr.Advance(fixAt(600, 5, t0.Add(2*time.Minute))); seg.ContributedM() != 0 {
		t.Fatalf("first point after reset must contribute nothing")
	}
}
