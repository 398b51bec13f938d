package timeline

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend-fieldtrack/internal/engine"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func passthrough(c *fiber.Ctx) error { return c.Next() }

func TestTimelineHandlers(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT session_id, type, start_time, end_time, point_count`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"session_id", "type", "start_time", "end_time", "point_count",
			"center_lat", "center_lng", "start_lat", "start_lng", "end_lat", "end_lng", "distance_km"}).
			AddRow("sess-1", engine.EventStop, tlT0, tlT0.Add(12*time.Minute), 5,
				-6.2, 106.816, 0.0, 0.0, 0.0, 0.0, 0.0))

	mock.ExpectQuery(`SELECT hash, employee_id, session_id, latitude, longitude`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows(pointColumns()))

	app := fiber.New()
	RegisterRoutes(app.Group("/timeline"), NewService(mock, nil), passthrough)

	req := httptest.NewRequest(http.MethodGet, "/timeline/sess-1", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("events status: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/timeline/sess-1/track", nil)
	resp, err = app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("track status: %v", err)
	}
}

func TestTimelineHandlerRegenerate(t *testing.T) {
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

	app := fiber.New()
	RegisterRoutes(app.Group("/timeline"), NewService(mock, nil), passthrough)

	req := httptest.NewRequest(http.MethodPost, "/timeline/sess-1/regenerate", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("regenerate status: %v", err)
	}
}

func TestTimelineHandlerRegenerateBusy(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT pg_try_advisory_xact_lock`).
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(false))
	mock.ExpectRollback()

	app := fiber.New()
	RegisterRoutes(app.Group("/timeline"), NewService(mock, nil), passthrough)

	req := httptest.NewRequest(http.MethodPost, "/timeline/sess-1/regenerate", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict while another worker holds the lock")
	}
}

func TestTimelineHandlerEventsError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT session_id, type, start_time, end_time, point_count`).
		WithArgs("sess-err").
		WillReturnError(errQuery)

	app := fiber.New()
	RegisterRoutes(app.Group("/timeline"), NewService(mock, nil), passthrough)

	req := httptest.NewRequest(http.MethodGet, "/timeline/sess-err", nil)
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected error")
	}
}
