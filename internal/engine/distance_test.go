package engine

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

// metersNorth converts a northward offset in meters to degrees of latitude.
func metersNorth(m float64) float64 {
	return m / 111320.0
}

func fixAt(latOffsetM float64, accuracy float64, at time.Time) LocationPoint {
	return LocationPoint{
		EmployeeID: "emp-1",
		SessionID:  "sess-1",
		Latitude:   -6.2 + metersNorth(latOffsetM),
		Longitude:  106.816,
		AccuracyM:  &accuracy,
		RecordedAt: at,
	}
}

func TestClassifySegmentCounted(t *testing.T) {
	a := fixAt(0, 5, t0)
	b := fixAt(200, 5, t0.Add(2*time.Minute))

	seg := ClassifySegment(DefaultEngineConfig(), a, b)
	if seg.Class != SegmentCounted {
		t.Fatalf("expected counted, got %s", seg.Class)
	}
	if math.Abs(seg.RawMeters-200) > 2 {
		t.Fatalf("unexpected raw distance: %v", seg.RawMeters)
	}
	if seg.ContributedM() != seg.RawMeters {
		t.Fatalf("counted segment must contribute its raw distance")
	}
}

func TestClassifySegmentAccuracy(t *testing.T) {
	// either endpoint above the ceiling zeroes the contribution
	a := fixAt(0, 80, t0)
	b := fixAt(500, 5, t0.Add(5*time.Minute))

	seg := ClassifySegment(DefaultEngineConfig(), a, b)
	if seg.Class != SegmentAccuracy {
		t.Fatalf("expected accuracy, got %s", seg.Class)
	}
	if seg.ContributedM() != 0 {
		t.Fatalf("degraded segment must contribute zero")
	}
}

func TestClassifySegmentJitter(t *testing.T) {
	// 5 m apart, 5 m accuracy each, 5 minutes apart: below max(10, 2*5)=10
	a := fixAt(0, 5, t0)
	b := fixAt(5, 5, t0.Add(5*time.Minute))

	seg := ClassifySegment(DefaultEngineConfig(), a, b)
	if seg.Class != SegmentJitter {
		t.Fatalf("expected jitter, got %s", seg.Class)
	}
	if seg.ContributedM() != 0 {
		t.Fatalf("jitter must contribute zero")
	}
}

func TestClassifySegmentJitterScalesWithAccuracy(t *testing.T) {
	// 25 m apart but 20 m accuracy: threshold max(10, 2*20)=40, still jitter
	a := fixAt(0, 20, t0)
	b := fixAt(25, 20, t0.Add(time.Minute))

	if seg := ClassifySegment(DefaultEngineConfig(), a, b); seg.Class != SegmentJitter {
		t.Fatalf("expected jitter, got %s", seg.Class)
	}
}

func TestClassifySegmentTeleport(t *testing.T) {
	// 50 km in 60 seconds, implied ~3000 km/h
	a := fixAt(0, 5, t0)
	b := fixAt(50000, 5, t0.Add(time.Minute))

	seg := ClassifySegment(DefaultEngineConfig(), a, b)
	if seg.Class != SegmentTeleport {
		t.Fatalf("expected teleport, got %s", seg.Class)
	}
	if seg.ContributedM() != 0 {
		t.Fatalf("teleport must contribute zero")
	}
}

func TestClassifySegmentZeroElapsed(t *testing.T) {
	a := fixAt(0, 5, t0)
	b := fixAt(500, 5, t0)

	if seg := ClassifySegment(DefaultEngineConfig(), a, b); seg.Class != SegmentTeleport {
		t.Fatalf("expected teleport for zero elapsed time, got %s", seg.Class)
	}
}

func TestClassifySegmentMissingAccuracy(t *testing.T) {
	a := LocationPoint{Latitude: -6.2, Longitude: 106.816, RecordedAt: t0}
	b := LocationPoint{Latitude: -6.2 + metersNorth(200), Longitude: 106.816, RecordedAt: t0.Add(2 * time.Minute)}

	// no accuracy reported: only the base jitter floor applies
	if seg := ClassifySegment(DefaultEngineConfig(), a, b); seg.Class != SegmentCounted {
		t.Fatalf("expected counted, got %s", seg.Class)
	}

	c := LocationPoint{Latitude: -6.2 + metersNorth(205), Longitude: 106.816, RecordedAt: t0.Add(3 * time.Minute)}
	if seg := ClassifySegment(DefaultEngineConfig(), b, c); seg.Class != SegmentJitter {
		t.Fatalf("expected jitter under base floor, got %s", seg.Class)
	}
}

func TestSessionDistanceKm(t *testing.T) {
	points := []LocationPoint{
		fixAt(0, 5, t0),
		fixAt(200, 5, t0.Add(2*time.Minute)),
		fixAt(400, 5, t0.Add(4*time.Minute)),
		fixAt(405, 5, t0.Add(6*time.Minute)), // jitter leg
		fixAt(600, 5, t0.Add(8*time.Minute)),
	}

	got := SessionDistanceKm(DefaultEngineConfig(), points)
	// three counted ~200 m legs and one ~195 m leg from the jitter point
	if got < 0.55 || got > 0.65 {
		t.Fatalf("unexpected cumulative distance: %v km", got)
	}

	if SessionDistanceKm(DefaultEngineConfig(), points[:1]) != 0 {
		t.Fatalf("single point must accumulate nothing")
	}
	if SessionDistanceKm(DefaultEngineConfig(), nil) != 0 {
		t.Fatalf("empty input must accumulate nothing")
	}
}
