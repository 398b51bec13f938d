package session

import (
	"time"

	"backend-fieldtrack/internal/engine"
)

type Session struct {
	ID         string               `json:"id"`
	EmployeeID string               `json:"employee_id"`
	StartTime  time.Time            `json:"start_time"`
	EndTime    *time.Time           `json:"end_time,omitempty"`
	Status     engine.SessionStatus `json:"status"`
	TotalKm    float64              `json:"total_km"`
}

// Finished reports whether the session reached a terminal status. Terminal
// sessions are immutable except for total_km recomputation.
func (s Session) Finished() bool {
	switch s.Status {
	case engine.SessionActive:
		return false
	case engine.SessionCompleted, engine.SessionCancelled:
		return true
	}
	return false
}
