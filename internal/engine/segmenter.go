package engine

import (
	"backend-fieldtrack/internal/shared/geo"
)

// BuildTimeline segments one session's points into STOP and MOVE events.
// The input must be sorted ascending by RecordedAt; that is the caller's
// responsibility.
//
// Clustering is anchor-and-expand: the point at the cursor becomes the
// anchor and the cluster absorbs every subsequent point within the stop
// radius of that fixed anchor, ending at the first point outside it. A
// cluster of two or more points dwelling at least the minimum stop duration
// becomes a STOP with the cluster centroid; everything else accumulates
// into the in-transit run and is flushed as a single MOVE when the next
// stop begins or the input ends.
//
// The cluster reference is the fixed anchor, not the previous point, so a
// noisy anchor can extend a cluster further than a sliding reference
// would. That is the behavior the radii were tuned against, so it stays; a
// running-centroid anchor is a candidate change, not an assumed one.
//
// The output is fully determined by the input point set, which is what
// makes regeneration idempotent.
func BuildTimeline(cfg EngineConfig, sessionID string, points []LocationPoint) []TimelineEvent {
	cfg = cfg.Sanitize()

	var events []TimelineEvent
	var transit []LocationPoint

	flushTransit := func() {
		if ev, ok := moveEvent(cfg, sessionID, transit); ok {
			events = append(events, ev)
		}
		transit = nil
	}

	i := 0
	for i < len(points) {
		anchor := points[i]
		j := i + 1
		for j < len(points) {
			d := geo.HaversineM(anchor.Latitude, anchor.Longitude,
				points[j].Latitude, points[j].Longitude)
			if d > cfg.StopRadiusM {
				break
			}
			j++
		}
		cluster := points[i:j]

		if ev, ok := stopEvent(cfg, sessionID, cluster); ok {
			flushTransit()
			events = append(events, ev)
		} else {
			transit = append(transit, cluster...)
		}

		// j >= i+1 always, so the cursor advances and the loop terminates
		i = j
	}
	flushTransit()

	return events
}

func stopEvent(cfg EngineConfig, sessionID string, cluster []LocationPoint) (TimelineEvent, bool) {
	if len(cluster) < 2 {
		return TimelineEvent{}, false
	}
	first, last := cluster[0], cluster[len(cluster)-1]
	if last.RecordedAt.Sub(first.RecordedAt) < cfg.StopMinDuration {
		return TimelineEvent{}, false
	}

	lats := make([]float64, len(cluster))
	lngs := make([]float64, len(cluster))
	for k, p := range cluster {
		lats[k] = p.Latitude
		lngs[k] = p.Longitude
	}
	centerLat, centerLng := geo.Centroid(lats, lngs)

	return TimelineEvent{
		SessionID:  sessionID,
		Type:       EventStop,
		StartTime:  first.RecordedAt,
		EndTime:    last.RecordedAt,
		PointCount: len(cluster),
		CenterLat:  centerLat,
		CenterLng:  centerLng,
	}, true
}

func moveEvent(cfg EngineConfig, sessionID string, run []LocationPoint) (TimelineEvent, bool) {
	if len(run) < 2 {
		return TimelineEvent{}, false
	}
	first, last := run[0], run[len(run)-1]

	// distance over consecutive legs, not anchor-to-point
	var meters float64
	for k := 1; k < len(run); k++ {
		meters += ClassifySegment(cfg, run[k-1], run[k]).ContributedM()
	}

	return TimelineEvent{
		SessionID:  sessionID,
		Type:       EventMove,
		StartTime:  first.RecordedAt,
		EndTime:    last.RecordedAt,
		PointCount: len(run),
		StartLat:   first.Latitude,
		StartLng:   first.Longitude,
		EndLat:     last.Latitude,
		EndLng:     last.Longitude,
		DistanceKm: meters / 1000,
	}, true
}

// Downsample thins a track for rendering. A point is kept when enough time
// or enough distance has passed since the last kept point; the first and
// last points always survive. Distance and alert computation never run on
// downsampled data.
func Downsample(cfg EngineConfig, points []LocationPoint) []LocationPoint {
	cfg = cfg.Sanitize()

	if len(points) <= 2 {
		return points
	}

	kept := []LocationPoint{points[0]}
	lastKept := points[0]
	for _, p := range points[1 : len(points)-1] {
		if p.RecordedAt.Sub(lastKept.RecordedAt) >= cfg.DownsampleInterval ||
			geo.HaversineM(lastKept.Latitude, lastKept.Longitude, p.Latitude, p.Longitude) >= cfg.DownsampleDeltaM {
			kept = append(kept, p)
			lastKept = p
		}
	}
	return append(kept, points[len(points)-1])
}
