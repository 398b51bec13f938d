package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"backend-fieldtrack/internal/db"
	"backend-fieldtrack/internal/engine"
	"backend-fieldtrack/internal/shared/geo"
	"backend-fieldtrack/internal/stream"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// Service runs the three per-session alert state machines: stuck,
// no-signal and clock drift. Each check is independent and idempotent to
// re-invocation: an already-open alert of the same type is never doubled.
//
// Anchor state lives in redis so sweeps survive restarts; without redis it
// degrades to process-local memory.
type Service struct {
	db        db.Querier
	redis     *redis.Client
	hub       *stream.Hub
	engineCfg func() engine.EngineConfig

	mu      sync.Mutex
	anchors map[string]anchor
}

var nowFn = time.Now

func NewService(database db.Querier, redisClient *redis.Client, hub *stream.Hub, engineCfg func() engine.EngineConfig) *Service {
	if engineCfg == nil {
		engineCfg = engine.DefaultEngineConfig
	}
	return &Service{
		db:        database,
		redis:     redisClient,
		hub:       hub,
		engineCfg: engineCfg,
		anchors:   map[string]anchor{},
	}
}

// OnPoint advances every point-driven state machine for one accepted fix.
func (s *Service) OnPoint(ctx context.Context, p engine.LocationPoint) error {
	cfg := s.engineCfg()

	// a fresh point means the signal is back
	if err := s.closeIfOpen(ctx, p.SessionID, engine.AlertNoSignal, p.ServerReceivedAt); err != nil {
		return err
	}
	if err := s.checkClockDrift(ctx, cfg, p); err != nil {
		return err
	}
	return s.checkStuck(ctx, cfg, p)
}

// checkStuck keeps a fixed anchor per session. Staying inside the stuck
// radius long enough opens a warning; leaving the radius resets the anchor
// and closes any open stuck alert.
func (s *Service) checkStuck(ctx context.Context, cfg engine.EngineConfig, p engine.LocationPoint) error {
	anc, ok, err := s.loadAnchor(ctx, p.SessionID)
	if err != nil {
		return err
	}
	if !ok {
		return s.storeAnchor(ctx, p.SessionID, anchor{Lat: p.Latitude, Lng: p.Longitude, Since: p.RecordedAt})
	}

	dist := geo.HaversineM(anc.Lat, anc.Lng, p.Latitude, p.Longitude)
	if dist > cfg.StuckRadiusM {
		if err := s.storeAnchor(ctx, p.SessionID, anchor{Lat: p.Latitude, Lng: p.Longitude, Since: p.RecordedAt}); err != nil {
			return err
		}
		return s.closeIfOpen(ctx, p.SessionID, engine.AlertStuck, p.RecordedAt)
	}

	elapsed := p.RecordedAt.Sub(anc.Since)
	if elapsed < cfg.StuckMinDuration {
		return nil
	}
	msg := fmt.Sprintf("employee stationary for %d min near (%.5f, %.5f)",
		int(elapsed.Minutes()), anc.Lat, anc.Lng)
	return s.openIfNotOpen(ctx, Alert{
		EmployeeID: p.EmployeeID,
		SessionID:  p.SessionID,
		Type:       engine.AlertStuck,
		Severity:   engine.SeverityWarning,
		Message:    msg,
	})
}

// checkClockDrift compares the device clock against the ingestion clock.
// Drift only surfaces a data-quality signal; it never blocks the point.
func (s *Service) checkClockDrift(ctx context.Context, cfg engine.EngineConfig, p engine.LocationPoint) error {
	drift := p.ServerReceivedAt.Sub(p.RecordedAt)
	if drift < 0 {
		drift = -drift
	}
	if drift < cfg.ClockDriftThreshold {
		return s.closeIfOpen(ctx, p.SessionID, engine.AlertClockDrift, p.ServerReceivedAt)
	}
	return s.openIfNotOpen(ctx, Alert{
		EmployeeID: p.EmployeeID,
		SessionID:  p.SessionID,
		Type:       engine.AlertClockDrift,
		Severity:   engine.SeverityWarning,
		Message:    fmt.Sprintf("device clock drift of %d min", int(drift.Minutes())),
	})
}

// SweepNoSignal opens a critical alert for every active session that has
// gone quiet past the timeout. Safe to re-run at any interval.
func (s *Service) SweepNoSignal(ctx context.Context) error {
	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.employee_id, COALESCE(MAX(p.server_received_at), s.start_time)
		FROM sessions s
		LEFT JOIN location_points p ON p.session_id = s.id
		WHERE s.status='active'
		GROUP BY s.id, s.employee_id, s.start_time
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type stale struct {
		sessionID  string
		employeeID string
		lastSeen   time.Time
	}
	var candidates []stale
	for rows.Next() {
		var c stale
		if err := rows.Scan(&c.sessionID, &c.employeeID, &c.lastSeen); err != nil {
			return err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	cfg := s.engineCfg()
	now := nowFn()
	for _, c := range candidates {
		quiet := now.Sub(c.lastSeen)
		if quiet < cfg.NoSignalTimeout {
			continue
		}
		err := s.openIfNotOpen(ctx, Alert{
			EmployeeID: c.employeeID,
			SessionID:  c.sessionID,
			Type:       engine.AlertNoSignal,
			Severity:   engine.SeverityCritical,
			Message:    fmt.Sprintf("no location update for %d min", int(quiet.Minutes())),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// openIfNotOpen creates an alert unless one of the same type is already
// open for the session. The partial unique index backs this up against
// concurrent sweeps.
func (s *Service) openIfNotOpen(ctx context.Context, a Alert) error {
	var existing string
	err := s.db.QueryRow(ctx, `
		SELECT id FROM alerts WHERE session_id=$1 AND type=$2 AND is_open
	`, a.SessionID, a.Type).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	a.ID = uuid.NewString()
	a.IsOpen = true
	a.CreatedAt = nowFn()
	_, err = s.db.Exec(ctx, `
		INSERT INTO alerts (id, employee_id, session_id, type, severity, message, is_open, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7)
	`, a.ID, a.EmployeeID, a.SessionID, a.Type, a.Severity, a.Message, a.CreatedAt)
	if err != nil {
		return err
	}

	if s.hub != nil {
		payload, _ := json.Marshal(a)
		s.hub.Broadcast(a.SessionID, payload)
	}
	return nil
}

// closeIfOpen resolves an open alert without deleting it.
func (s *Service) closeIfOpen(ctx context.Context, sessionID string, alertType engine.AlertType, at time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE alerts SET is_open=FALSE, end_time=$3
		WHERE session_id=$1 AND type=$2 AND is_open
	`, sessionID, alertType, at)
	return err
}

// Acknowledge stamps acknowledged_at once; re-acks are no-ops.
func (s *Service) Acknowledge(ctx context.Context, alertID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE alerts SET acknowledged_at=$2
		WHERE id=$1 AND acknowledged_at IS NULL
	`, alertID, nowFn())
	return err
}

// Open lists currently open alerts, oldest first.
func (s *Service) Open(ctx context.Context) ([]Alert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, employee_id, session_id, type, severity, message, is_open, created_at, end_time, acknowledged_at
		FROM alerts WHERE is_open
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.SessionID, &a.Type, &a.Severity, &a.Message, &a.IsOpen, &a.CreatedAt, &a.EndTime, &a.AcknowledgedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *Service) loadAnchor(ctx context.Context, sessionID string) (anchor, bool, error) {
	if s.redis == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		anc, ok := s.anchors[sessionID]
		return anc, ok, nil
	}

	fields, err := s.redis.HGetAll(ctx, anchorKey(sessionID)).Result()
	if err != nil {
		return anchor{}, false, err
	}
	if len(fields) == 0 {
		return anchor{}, false, nil
	}

	lat, _ := strconv.ParseFloat(fields["lat"], 64)
	lng, _ := strconv.ParseFloat(fields["lng"], 64)
	since, err := strconv.ParseInt(fields["since"], 10, 64)
	if err != nil {
		// garbled anchor: treat as unset so the next point re-anchors
		log.Printf("dropping garbled anchor for session %s", sessionID)
		return anchor{}, false, nil
	}
	return anchor{Lat: lat, Lng: lng, Since: time.Unix(since, 0)}, true, nil
}

func (s *Service) storeAnchor(ctx context.Context, sessionID string, anc anchor) error {
	if s.redis == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.anchors[sessionID] = anc
		return nil
	}
	return s.redis.HSet(ctx, anchorKey(sessionID),
		"lat", strconv.FormatFloat(anc.Lat, 'f', -1, 64),
		"lng", strconv.FormatFloat(anc.Lng, 'f', -1, 64),
		"since", strconv.FormatInt(anc.Since.Unix(), 10),
	).Err()
}

func anchorKey(sessionID string) string {
	return "fieldtrack:anchor:" + sessionID
}
