package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-fieldtrack/internal/engine"

	"github.com/pashagolub/pgxmock/v3"
)

var errQuery = errors.New("query error")

var tlT0 = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func pointColumns() []string {
	return []string{"hash", "employee_id", "session_id", "latitude", "longitude", "accuracy_m", "speed_mps", "recorded_at", "server_received_at"}
}

// a dwell: five fixes within a few meters over 12 minutes
func stopRows() *pgxmock.Rows {
	rows := pgxmock.NewRows(pointColumns())
	acc := 5.0
	for i := 0; i < 5; i++ {
		at := tlT0.Add(time.Duration(i) * 3 * time.Minute)
		rows.AddRow("hash-"+string(rune('a'+i)), "emp-1", "sess-1",
			-6.2+float64(i)*2/111320.0, 106.816, &acc, (*float64)(nil), at, at)
	}
	return rows
}

func TestRegenerateStopSession(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pg_try_advisory_xact_lock`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectQuery(`SELECT hash, employee_id, session_id, latitude, longitude`).
		WithArgs("sess-1").
		WillReturnRows(stopRows())
	// a 12 minute dwell becomes one stop event
	mock.ExpectExec(`INSERT INTO timeline_events`).
		WithArgs("sess-1", engine.EventStop, pgxmock.AnyArg(), pgxmock.AnyArg(), 5,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE sessions SET total_km`).
		WithArgs("sess-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	svc := NewService(mock, nil)
	summary, err := svc.Regenerate(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if summary.PointCount != 5 || summary.EventCount != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegenerateBusy(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pg_try_advisory_xact_lock`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(false))
	mock.ExpectRollback()

	svc := NewService(mock, nil)
	if _, err := svc.Regenerate(context.Background(), "sess-1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestRegenerateEmptySession(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pg_try_advisory_xact_lock`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectQuery(`SELECT hash, employee_id, session_id, latitude, longitude`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows(pointColumns()))
	mock.ExpectExec(`UPDATE sessions SET total_km`).
		WithArgs("sess-1", 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	svc := NewService(mock, nil)
	summary, err := svc.Regenerate(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if summary.PointCount != 0 || summary.EventCount != 0 || summary.TotalKm != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRegenerateUpsertError(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pg_try_advisory_xact_lock`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectQuery(`SELECT hash, employee_id, session_id, latitude, longitude`).
		WithArgs("sess-1").
		WillReturnRows(stopRows())
	mock.ExpectExec(`INSERT INTO timeline_events`).WillReturnError(errQuery)
	mock.ExpectRollback()

	svc := NewService(mock, nil)
	if _, err := svc.Regenerate(context.Background(), "sess-1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSweepSkipsBusySessions(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id FROM sessions`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sess-1").AddRow("sess-2"))

	// sess-1 loses the lock race
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pg_try_advisory_xact_lock`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(false))
	mock.ExpectRollback()

	// sess-2 regenerates normally
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pg_try_advisory_xact_lock`).
		WithArgs("sess-2").
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectQuery(`SELECT hash, employee_id, session_id, latitude, longitude`).
		WithArgs("sess-2").
		WillReturnRows(pgxmock.NewRows(pointColumns()))
	mock.ExpectExec(`UPDATE sessions SET total_km`).
		WithArgs("sess-2", 0.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	svc := NewService(mock, nil)
	done, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if done != 1 {
		t.Fatalf("expected 1 regenerated session, got %d", done)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT id FROM sessions`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("sess-1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(mock, nil)
	done, err := svc.Sweep(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if done != 0 {
		t.Fatalf("expected no progress, got %d", done)
	}
}

func TestEvents(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT session_id, type, start_time, end_time, point_count`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"session_id", "type", "start_time", "end_time", "point_count",
			"center_lat", "center_lng", "start_lat", "start_lng", "end_lat", "end_lng", "distance_km"}).
			AddRow("sess-1", engine.EventStop, tlT0, tlT0.Add(12*time.Minute), 5,
				-6.2, 106.816, 0.0, 0.0, 0.0, 0.0, 0.0).
			AddRow("sess-1", engine.EventMove, tlT0.Add(12*time.Minute), tlT0.Add(30*time.Minute), 8,
				0.0, 0.0, -6.2, 106.816, -6.21, 106.82, 1.4))

	svc := NewService(mock, nil)
	events, err := svc.Events(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 || events[0].Type != engine.EventStop || events[1].DistanceKm != 1.4 {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestTrackDownsamples(t *testing.T) {
	mock := newMock(t)

	// 5 fixes one second apart at the same spot collapse to first and last
	rows := pgxmock.NewRows(pointColumns())
	acc := 5.0
	for i := 0; i < 5; i++ {
		at := tlT0.Add(time.Duration(i) * time.Second)
		rows.AddRow("h", "emp-1", "sess-1", -6.2, 106.816, &acc, (*float64)(nil), at, at)
	}
	mock.ExpectQuery(`SELECT hash, employee_id, session_id, latitude, longitude`).
		WithArgs("sess-1").
		WillReturnRows(rows)

	svc := NewService(mock, nil)
	track, err := svc.Track(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(track) != 2 {
		t.Fatalf("expected 2 kept points, got %d", len(track))
	}
}

func TestEventsQueryError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT session_id, type, start_time, end_time, point_count`).
		WithArgs("sess-1").
		WillReturnError(errQuery)

	svc := NewService(mock, nil)
	if _, err := svc.Events(context.Background(), "sess-1"); err == nil {
		t.Fatalf("expected error")
	}
}
