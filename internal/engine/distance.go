package engine

import (
	"backend-fieldtrack/internal/shared/geo"
)

// SegmentClass labels the movement between two consecutive fixes.
type SegmentClass string

const (
	SegmentCounted  SegmentClass = "counted"
	SegmentAccuracy SegmentClass = "accuracy"
	SegmentJitter   SegmentClass = "jitter"
	SegmentTeleport SegmentClass = "teleport"
)

// Segment is the classified movement between two consecutive fixes.
// RawMeters is the haversine distance regardless of class.
type Segment struct {
	RawMeters float64
	Class     SegmentClass
}

// ContributedM is the distance this segment adds to the session total.
// Only counted segments contribute; degraded classes are classification
// outcomes, not errors.
func (s Segment) ContributedM() float64 {
	switch s.Class {
	case SegmentCounted:
		return s.RawMeters
	case SegmentAccuracy, SegmentJitter, SegmentTeleport:
		return 0
	}
	return 0
}

// ClassifySegment computes the haversine distance between two validated,
// time-ordered fixes and decides whether it is real motion. This function
// is pure; the live on-device total and the authoritative server recompute
// both call it, so the two can never disagree on a segment.
func ClassifySegment(cfg EngineConfig, a, b LocationPoint) Segment {
	cfg = cfg.Sanitize()

	raw := geo.HaversineM(a.Latitude, a.Longitude, b.Latitude, b.Longitude)

	if accuracyOf(a) > cfg.MaxAccuracyM || accuracyOf(b) > cfg.MaxAccuracyM {
		return Segment{RawMeters: raw, Class: SegmentAccuracy}
	}

	jitterFloor := cfg.JitterBaseM
	if scaled := cfg.JitterMultiplier * (accuracyOf(a) + accuracyOf(b)) / 2; scaled > jitterFloor {
		jitterFloor = scaled
	}
	if raw < jitterFloor {
		return Segment{RawMeters: raw, Class: SegmentJitter}
	}

	elapsed := b.RecordedAt.Sub(a.RecordedAt)
	if elapsed <= 0 {
		// nonzero displacement in zero time: implied speed is unbounded
		return Segment{RawMeters: raw, Class: SegmentTeleport}
	}
	speedKmh := (raw / 1000) / elapsed.Hours()
	if speedKmh > cfg.TeleportSpeedKmh {
		return Segment{RawMeters: raw, Class: SegmentTeleport}
	}

	return Segment{RawMeters: raw, Class: SegmentCounted}
}

// SessionDistanceKm folds ClassifySegment over consecutive validated pairs
// in point order and returns the cumulative contributed distance.
func SessionDistanceKm(cfg EngineConfig, points []LocationPoint) float64 {
	var meters float64
	for i := 1; i < len(points); i++ {
		meters += ClassifySegment(cfg, points[i-1], points[i]).ContributedM()
	}
	return meters / 1000
}

// accuracyOf treats a missing accuracy as zero for threshold math: it never
// trips the accuracy ceiling and only the base jitter floor applies.
func accuracyOf(p LocationPoint) float64 {
	if p.AccuracyM == nil {
		return 0
	}
	return *p.AccuracyM
}
