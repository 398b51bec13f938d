package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

type EventType string

const (
	EventStop EventType = "stop"
	EventMove EventType = "move"
)

type AlertType string

const (
	AlertStuck      AlertType = "stuck"
	AlertNoSignal   AlertType = "no_signal"
	AlertClockDrift AlertType = "clock_drift"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// LocationPoint is one validated GPS fix. AccuracyM and SpeedMps are
// pointers because devices may omit them; an absent accuracy is not the
// same thing as a perfect zero-meter fix.
type LocationPoint struct {
	Hash             string    `json:"hash,omitempty"`
	EmployeeID       string    `json:"employee_id"`
	SessionID        string    `json:"session_id"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	AccuracyM        *float64  `json:"accuracy_m,omitempty"`
	SpeedMps         *float64  `json:"speed_mps,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
	ServerReceivedAt time.Time `json:"server_received_at,omitempty"`
}

// TimelineEvent is one STOP or MOVE segment of a session. Stop events carry
// the cluster centroid; move events carry endpoints and contributed distance.
type TimelineEvent struct {
	SessionID  string    `json:"session_id"`
	Type       EventType `json:"type"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	PointCount int       `json:"point_count"`
	CenterLat  float64   `json:"center_lat,omitempty"`
	CenterLng  float64   `json:"center_lng,omitempty"`
	StartLat   float64   `json:"start_lat,omitempty"`
	StartLng   float64   `json:"start_lng,omitempty"`
	EndLat     float64   `json:"end_lat,omitempty"`
	EndLng     float64   `json:"end_lng,omitempty"`
	DistanceKm float64   `json:"distance_km,omitempty"`
}

// PointHash derives the dedup key for a fix. Coordinates are quantized to
// five decimals (~1 m) so a replayed point hashes identically even if the
// device re-serialized the floats.
func PointHash(employeeID, sessionID string, recordedAt time.Time, lat, lng float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%.5f|%.5f",
		employeeID, sessionID, recordedAt.Unix(), lat, lng)))
	return hex.EncodeToString(sum[:])
}
