package ingest

import (
	"time"

	"backend-fieldtrack/internal/engine"
)

// RawPoint is one candidate fix as delivered by the device layer, before
// validation and enrichment.
type RawPoint struct {
	EmployeeID string    `json:"employee_id"`
	SessionID  string    `json:"session_id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
	SpeedMps   *float64  `json:"speed_mps,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Result reports what happened to one candidate fix. Rejection and
// duplication are outcomes, not errors; the stream stays healthy either way.
type Result struct {
	Accepted  bool                 `json:"accepted"`
	Duplicate bool                 `json:"duplicate,omitempty"`
	Reason    engine.RejectReason  `json:"reason,omitempty"`
	Point     engine.LocationPoint `json:"point,omitempty"`
	LiveKm    float64              `json:"live_km"`
}

// LiveStatus is the advisory view for an active session: the on-device
// style running total plus rejection counters. The authoritative total
// lives on the session row and is recomputed server-side.
type LiveStatus struct {
	SessionID  string           `json:"session_id"`
	LiveKm     float64          `json:"live_km"`
	Rejections map[string]int64 `json:"rejections,omitempty"`
}
