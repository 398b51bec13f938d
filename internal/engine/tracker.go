package engine

// LiveTracker accumulates an advisory running total on the device while a
// session is active. Points arrive from a single ordered provider stream,
// so no locking is needed, only ordered calls to Advance.
//
// The total here is the live estimate shown to the user; the authoritative
// number is recomputed server-side from the persisted log. The two converge
// but are not required to match at any instant.
type LiveTracker struct {
	cfg    EngineConfig
	last   *LocationPoint
	meters float64
}

func NewLiveTracker(cfg EngineConfig) *LiveTracker {
	return &LiveTracker{cfg: cfg.Sanitize()}
}

// Advance feeds the next validated point and returns the classified segment
// against the previous one. The first point establishes the baseline and
// returns a zero-valued jitter segment.
func (t *LiveTracker) Advance(p LocationPoint) Segment {
	if t.last == nil {
		t.last = &p
		return Segment{Class: SegmentJitter}
	}
	seg := ClassifySegment(t.cfg, *t.last, p)
	t.meters += seg.ContributedM()
	t.last = &p
	return seg
}

func (t *LiveTracker) TotalKm() float64 {
	return t.meters / 1000
}

// Reset clears the baseline and total, for reuse across sessions.
func (t *LiveTracker) Reset() {
	t.last = nil
	t.meters = 0
}
