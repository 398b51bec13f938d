package session

import (
	"context"
	"errors"
	"time"

	"backend-fieldtrack/internal/db"
	"backend-fieldtrack/internal/engine"

	"github.com/google/uuid"
)

var ErrNotActive = errors.New("session is not active")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Start handles the session_started boundary signal. The core does not
// decide when sessions begin; it only records the signal.
func (s *Service) Start(ctx context.Context, employeeID string, startTime time.Time) (Session, error) {
	sess := Session{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		StartTime:  startTime,
		Status:     engine.SessionActive,
	}
	if sess.StartTime.IsZero() {
		sess.StartTime = time.Now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, employee_id, start_time, status)
		VALUES ($1,$2,$3,$4)
		RETURNING start_time
	`, sess.ID, sess.EmployeeID, sess.StartTime, sess.Status)
	if err := row.Scan(&sess.StartTime); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Stop handles the session_stopped boundary signal. Only an active session
// can transition; completed rows stay immutable apart from total_km.
func (s *Service) Stop(ctx context.Context, sessionID string, endTime time.Time) (Session, error) {
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return s.finish(ctx, sessionID, endTime, engine.SessionCompleted)
}

// Cancel marks an active session cancelled without an authoritative total.
func (s *Service) Cancel(ctx context.Context, sessionID string) (Session, error) {
	return s.finish(ctx, sessionID, time.Now(), engine.SessionCancelled)
}

func (s *Service) finish(ctx context.Context, sessionID string, endTime time.Time, status engine.SessionStatus) (Session, error) {
	sess := Session{ID: sessionID, Status: status}
	row := s.db.QueryRow(ctx, `
		UPDATE sessions
		SET end_time=$2, status=$3
		WHERE id=$1 AND status='active'
		RETURNING employee_id, start_time, end_time, total_km
	`, sessionID, endTime, status)
	if err := row.Scan(&sess.EmployeeID, &sess.StartTime, &sess.EndTime, &sess.TotalKm); err != nil {
		return Session{}, ErrNotActive
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (Session, error) {
	var sess Session
	row := s.db.QueryRow(ctx, `
		SELECT id, employee_id, start_time, end_time, status, total_km
		FROM sessions WHERE id=$1
	`, sessionID)
	if err := row.Scan(&sess.ID, &sess.EmployeeID, &sess.StartTime, &sess.EndTime, &sess.Status, &sess.TotalKm); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Active lists the sessions the alert and regeneration sweeps care about.
func (s *Service) Active(ctx context.Context) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, employee_id, start_time, end_time, status, total_km
		FROM sessions WHERE status='active'
		ORDER BY start_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.EmployeeID, &sess.StartTime, &sess.EndTime, &sess.Status, &sess.TotalKm); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
