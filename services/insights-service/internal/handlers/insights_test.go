package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/salonpulse/salonpulse/libs/schedule"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/cache"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/forecast"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/insights"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
)

type stubReaders struct {
	appts      []model.Appointment
	orders     []model.Order
	revenue    map[string]float64
	apptCalls  int
	monthCalls int
}

func (s *stubReaders) Appointments(context.Context, insights.AppointmentFilter) ([]model.Appointment, error) {
	s.apptCalls++
	return s.appts, nil
}

func (s *stubReaders) Orders(context.Context, insights.OrderFilter) ([]model.Order, error) {
	return s.orders, nil
}

func (s *stubReaders) Schedules(context.Context, string, []string) (map[string]schedule.Weekly, error) {
	return map[string]schedule.Weekly{}, nil
}

func (s *stubReaders) StaffNames(context.Context, string, []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *stubReaders) ServiceNames(context.Context, string, []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *stubReaders) MonthlyRevenue(context.Context, string, string, string, time.Time, time.Time) (map[string]float64, error) {
	s.monthCalls++
	return s.revenue, nil
}

func newTestHandler(stub *stubReaders) *Handler {
	agg := insights.NewAggregator(stub, stub, stub, stub)
	engine := forecast.NewEngine(stub)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(agg, engine, nil, cache.New(), logger, Config{CacheTTL: time.Minute})
}

func TestOverviewEndpoint(t *testing.T) {
	stub := &stubReaders{}
	h := newTestHandler(stub)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/insights/overview?company_id=c1&from=2026-01-01&to=2026-01-31&group_by=day", nil)
	rec := httptest.NewRecorder()
	h.Overview(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var report insights.OverviewReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if report.From != "2026-01-01" || report.GroupBy != "day" {
		t.Fatalf("report header = %s/%s", report.From, report.GroupBy)
	}

	// Second identical request must come from the cache.
	callsAfterFirst := stub.apptCalls
	rec = httptest.NewRecorder()
	h.Overview(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/insights/overview?company_id=c1&from=2026-01-01&to=2026-01-31&group_by=day", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("cached status = %d", rec.Code)
	}
	if stub.apptCalls != callsAfterFirst {
		t.Fatalf("cached request hit the reader (%d -> %d)", callsAfterFirst, stub.apptCalls)
	}
}

func TestOverviewEndpointValidation(t *testing.T) {
	h := newTestHandler(&stubReaders{})

	cases := []string{
		"/api/v1/insights/overview?company_id=c1&from=2026-01-31&to=2026-01-01",
		"/api/v1/insights/overview?company_id=c1&from=2026-01-01&to=2026-01-31&group_by=quarter",
		"/api/v1/insights/overview?from=2026-01-01&to=2026-01-31",
		"/api/v1/insights/overview?company_id=c1&from=notadate&to=2026-01-31",
	}
	for _, url := range cases {
		rec := httptest.NewRecorder()
		h.Overview(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", url, rec.Code)
		}
	}
}

func TestForecastEndpoint(t *testing.T) {
	stub := &stubReaders{revenue: map[string]float64{}}
	h := newTestHandler(stub)

	rec := httptest.NewRecorder()
	h.Forecast(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/insights/forecast?company_id=c1&months=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var projection forecast.Projection
	if err := json.Unmarshal(rec.Body.Bytes(), &projection); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	if len(projection.History) != 24 {
		t.Fatalf("history length = %d, want 24", len(projection.History))
	}
	if len(projection.Forecast) != 3 {
		t.Fatalf("forecast length = %d, want 3", len(projection.Forecast))
	}

	rec = httptest.NewRecorder()
	h.Forecast(rec, httptest.NewRequest(http.MethodGet,
		"/api/v1/insights/forecast?company_id=c1&months=99", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("months=99 status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Forecast(rec, httptest.NewRequest(http.MethodGet, "/api/v1/insights/forecast", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing company status = %d, want 400", rec.Code)
	}
}
