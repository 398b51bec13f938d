package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"backend-fieldtrack/internal/db"
	"backend-fieldtrack/internal/engine"
	"backend-fieldtrack/internal/stream"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// AlertSink receives every accepted point so the per-session alert state
// machines can advance. Kept as an interface so service tests need no
// detector wiring.
type AlertSink interface {
	OnPoint(ctx context.Context, p engine.LocationPoint) error
}

type Service struct {
	db        db.Querier
	redis     *redis.Client
	hub       *stream.Hub
	alerts    AlertSink
	engineCfg func() engine.EngineConfig
}

var nowFn = time.Now

// NewService wires the ingress path. engineCfg is read at call time so
// operators can retune thresholds without a restart.
func NewService(database db.Querier, redisClient *redis.Client, hub *stream.Hub, alerts AlertSink, engineCfg func() engine.EngineConfig) *Service {
	if engineCfg == nil {
		engineCfg = engine.DefaultEngineConfig
	}
	return &Service{db: database, redis: redisClient, hub: hub, alerts: alerts, engineCfg: engineCfg}
}

// Ingest validates, deduplicates and persists one fix, then advances the
// advisory total and the alert state. A rejected or replayed fix changes
// nothing and never blocks subsequent points.
func (s *Service) Ingest(ctx context.Context, raw RawPoint) (Result, error) {
	cfg := s.engineCfg()

	point := engine.LocationPoint{
		EmployeeID:       raw.EmployeeID,
		SessionID:        raw.SessionID,
		Latitude:         raw.Latitude,
		Longitude:        raw.Longitude,
		AccuracyM:        raw.AccuracyM,
		SpeedMps:         raw.SpeedMps,
		RecordedAt:       raw.RecordedAt,
		ServerReceivedAt: nowFn(),
	}

	if reason := engine.ValidatePoint(cfg, point); reason != engine.RejectNone {
		s.countRejection(ctx, raw.SessionID, reason)
		return Result{Reason: reason}, nil
	}

	point.Hash = engine.PointHash(point.EmployeeID, point.SessionID, point.RecordedAt, point.Latitude, point.Longitude)

	prev, hasPrev, err := s.lastPoint(ctx, point.SessionID)
	if err != nil {
		return Result{}, err
	}

	inserted, err := s.insertPoint(ctx, point)
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		// replayed from an offline queue; already counted once
		return Result{Duplicate: true, Point: point, LiveKm: s.liveKm(ctx, point.SessionID)}, nil
	}

	if hasPrev {
		seg := engine.ClassifySegment(cfg, prev, point)
		if contributed := seg.ContributedM(); contributed > 0 {
			s.addLiveKm(ctx, point.SessionID, contributed/1000)
		} else if seg.Class == engine.SegmentTeleport {
			log.Printf("teleport segment dropped: session=%s raw=%.0fm", point.SessionID, seg.RawMeters)
		}
	}

	if s.alerts != nil {
		if err := s.alerts.OnPoint(ctx, point); err != nil {
			log.Printf("alert check failed: session=%s err=%v", point.SessionID, err)
		}
	}

	if s.hub != nil {
		payload, _ := json.Marshal(point)
		s.hub.Broadcast(point.SessionID, payload)
	}

	return Result{Accepted: true, Point: point, LiveKm: s.liveKm(ctx, point.SessionID)}, nil
}

// IngestBatch feeds a flushed uplink batch point by point, in order.
// Per-point outcomes are collected; only infrastructure failures abort.
func (s *Service) IngestBatch(ctx context.Context, raws []RawPoint) ([]Result, error) {
	results := make([]Result, 0, len(raws))
	for _, raw := range raws {
		res, err := s.Ingest(ctx, raw)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Live returns the advisory running total and rejection counters.
func (s *Service) Live(ctx context.Context, sessionID string) (LiveStatus, error) {
	status := LiveStatus{SessionID: sessionID, LiveKm: s.liveKm(ctx, sessionID)}
	if s.redis == nil {
		return status, nil
	}

	counts, err := s.redis.HGetAll(ctx, rejectKey(sessionID)).Result()
	if err != nil {
		return status, err
	}
	if len(counts) > 0 {
		status.Rejections = make(map[string]int64, len(counts))
		for reason, raw := range counts {
			n, _ := strconv.ParseInt(raw, 10, 64)
			status.Rejections[reason] = n
		}
	}
	return status, nil
}

func (s *Service) lastPoint(ctx context.Context, sessionID string) (engine.LocationPoint, bool, error) {
	var p engine.LocationPoint
	row := s.db.QueryRow(ctx, `
		SELECT latitude, longitude, accuracy_m, recorded_at
		FROM location_points
		WHERE session_id=$1
		ORDER BY recorded_at DESC
		LIMIT 1
	`, sessionID)
	if err := row.Scan(&p.Latitude, &p.Longitude, &p.AccuracyM, &p.RecordedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.LocationPoint{}, false, nil
		}
		return engine.LocationPoint{}, false, err
	}
	p.SessionID = sessionID
	return p, true, nil
}

func (s *Service) insertPoint(ctx context.Context, p engine.LocationPoint) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO location_points (hash, employee_id, session_id, latitude, longitude, accuracy_m, speed_mps, recorded_at, server_received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (hash) DO NOTHING
	`, p.Hash, p.EmployeeID, p.SessionID, p.Latitude, p.Longitude, p.AccuracyM, p.SpeedMps, p.RecordedAt, p.ServerReceivedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Service) countRejection(ctx context.Context, sessionID string, reason engine.RejectReason) {
	if s.redis == nil {
		return
	}
	if err := s.redis.HIncrBy(ctx, rejectKey(sessionID), string(reason), 1).Err(); err != nil {
		log.Printf("rejection counter error: %v", err)
	}
}

func (s *Service) addLiveKm(ctx context.Context, sessionID string, km float64) {
	if s.redis == nil {
		return
	}
	if err := s.redis.IncrByFloat(ctx, liveKmKey(sessionID), km).Err(); err != nil {
		log.Printf("live km counter error: %v", err)
	}
}

func (s *Service) liveKm(ctx context.Context, sessionID string) float64 {
	if s.redis == nil {
		return 0
	}
	raw, err := s.redis.Get(ctx, liveKmKey(sessionID)).Result()
	if err != nil {
		return 0
	}
	km, _ := strconv.ParseFloat(raw, 64)
	return km
}

func rejectKey(sessionID string) string {
	return "fieldtrack:rejects:" + sessionID
}

func liveKmKey(sessionID string) string {
	return "fieldtrack:live:" + sessionID + ":km"
}
