package timeline

import (
	"context"
	"errors"
	"log"

	"backend-fieldtrack/internal/db"
	"backend-fieldtrack/internal/engine"

	"github.com/jackc/pgx/v5"
)

// ErrBusy means another worker holds the session's regeneration lock.
var ErrBusy = errors.New("session regeneration already in progress")

// Pool is the database surface regeneration needs: plain queries plus
// transactions for the advisory-locked recompute. Satisfied by both
// pgxpool.Pool and pgxmock pools.
type Pool interface {
	db.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service recomputes the authoritative distance and timeline for a session
// from its full persisted point log. The same pure engine functions drive
// the live on-device estimate, so the two can only differ by points not yet
// uploaded, never by formula.
type Service struct {
	db        Pool
	engineCfg func() engine.EngineConfig
}

func NewService(pool Pool, engineCfg func() engine.EngineConfig) *Service {
	if engineCfg == nil {
		engineCfg = engine.DefaultEngineConfig
	}
	return &Service{db: pool, engineCfg: engineCfg}
}

// Summary reports one regeneration run.
type Summary struct {
	SessionID  string  `json:"session_id"`
	PointCount int     `json:"point_count"`
	EventCount int     `json:"event_count"`
	TotalKm    float64 `json:"total_km"`
}

// Regenerate reloads every persisted point for the session and rebuilds
// distance and timeline from scratch inside one transaction. Events upsert
// on (session_id, start_time), so re-running over the same point set is a
// no-op. A transaction-scoped advisory lock keyed by the session id keeps
// two workers from regenerating the same session concurrently; losing the
// race is reported as ErrBusy, not an error state.
func (s *Service) Regenerate(ctx context.Context, sessionID string) (Summary, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, sessionID).Scan(&locked); err != nil {
		return Summary{}, err
	}
	if !locked {
		return Summary{}, ErrBusy
	}

	points, err := loadPoints(ctx, tx, sessionID)
	if err != nil {
		return Summary{}, err
	}

	cfg := s.engineCfg()
	events := engine.BuildTimeline(cfg, sessionID, points)
	totalKm := engine.SessionDistanceKm(cfg, points)

	for _, ev := range events {
		_, err := tx.Exec(ctx, `
			INSERT INTO timeline_events (session_id, type, start_time, end_time, point_count, center_lat, center_lng, start_lat, start_lng, end_lat, end_lng, distance_km)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (session_id, start_time) DO UPDATE SET
				type=EXCLUDED.type,
				end_time=EXCLUDED.end_time,
				point_count=EXCLUDED.point_count,
				center_lat=EXCLUDED.center_lat,
				center_lng=EXCLUDED.center_lng,
				start_lat=EXCLUDED.start_lat,
				start_lng=EXCLUDED.start_lng,
				end_lat=EXCLUDED.end_lat,
				end_lng=EXCLUDED.end_lng,
				distance_km=EXCLUDED.distance_km
		`, ev.SessionID, ev.Type, ev.StartTime, ev.EndTime, ev.PointCount,
			ev.CenterLat, ev.CenterLng, ev.StartLat, ev.StartLng, ev.EndLat, ev.EndLng, ev.DistanceKm)
		if err != nil {
			return Summary{}, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE sessions SET total_km=$2 WHERE id=$1`, sessionID, totalKm); err != nil {
		return Summary{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Summary{}, err
	}
	return Summary{SessionID: sessionID, PointCount: len(points), EventCount: len(events), TotalKm: totalKm}, nil
}

// Sweep regenerates every session that can still change: active ones and
// those completed within the last day. Sessions are independent units of
// work; a busy or failing session never stops the sweep.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM sessions
		WHERE status='active'
		   OR (end_time IS NOT NULL AND end_time > now() - interval '1 day')
	`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	done := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			// interrupted mid-sweep: already committed sessions stay valid
			return done, ctx.Err()
		}
		if _, err := s.Regenerate(ctx, id); err != nil {
			if errors.Is(err, ErrBusy) {
				continue
			}
			log.Printf("regenerate session %s: %v", id, err)
			continue
		}
		done++
	}
	return done, nil
}

// Events returns the persisted timeline for a session, in time order.
func (s *Service) Events(ctx context.Context, sessionID string) ([]engine.TimelineEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT session_id, type, start_time, end_time, point_count, center_lat, center_lng, start_lat, start_lng, end_lat, end_lng, distance_km
		FROM timeline_events WHERE session_id=$1
		ORDER BY start_time
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []engine.TimelineEvent
	for rows.Next() {
		var ev engine.TimelineEvent
		if err := rows.Scan(&ev.SessionID, &ev.Type, &ev.StartTime, &ev.EndTime, &ev.PointCount,
			&ev.CenterLat, &ev.CenterLng, &ev.StartLat, &ev.StartLng, &ev.EndLat, &ev.EndLng, &ev.DistanceKm); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Track returns a downsampled point list for rendering. Distance and alert
// computation never use this view.
func (s *Service) Track(ctx context.Context, sessionID string) ([]engine.LocationPoint, error) {
	points, err := loadPoints(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	return engine.Downsample(s.engineCfg(), points), nil
}

func loadPoints(ctx context.Context, q db.Querier, sessionID string) ([]engine.LocationPoint, error) {
	rows, err := q.Query(ctx, `
		SELECT hash, employee_id, session_id, latitude, longitude, accuracy_m, speed_mps, recorded_at, server_received_at
		FROM location_points WHERE session_id=$1
		ORDER BY recorded_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []engine.LocationPoint
	for rows.Next() {
		var p engine.LocationPoint
		if err := rows.Scan(&p.Hash, &p.EmployeeID, &p.SessionID, &p.Latitude, &p.Longitude,
			&p.AccuracyM, &p.SpeedMps, &p.RecordedAt, &p.ServerReceivedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
