package alert

import (
	"time"

	"backend-fieldtrack/internal/engine"
)

// Alert is one operational alert row. Closing never deletes: is_open flips
// and end_time is stamped, so history survives.
type Alert struct {
	ID             string           `json:"id"`
	EmployeeID     string           `json:"employee_id"`
	SessionID      string           `json:"session_id,omitempty"`
	Type           engine.AlertType `json:"type"`
	Severity       engine.Severity  `json:"severity"`
	Message        string           `json:"message"`
	IsOpen         bool             `json:"is_open"`
	CreatedAt      time.Time        `json:"created_at"`
	EndTime        *time.Time       `json:"end_time,omitempty"`
	AcknowledgedAt *time.Time       `json:"acknowledged_at,omitempty"`
}

// anchor is the per-session reference point for stuck detection.
type anchor struct {
	Lat   float64
	Lng   float64
	Since time.Time
}
