package insights

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/salonpulse/salonpulse/libs/schedule"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/cache"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
)

type fakeReaders struct {
	appts     []model.Appointment
	orders    []model.Order
	schedules map[string]schedule.Weekly
	names     map[string]string

	apptCalls  int
	orderCalls int
	apptErr    error
}

func (f *fakeReaders) Appointments(_ context.Context, filter AppointmentFilter) ([]model.Appointment, error) {
	f.apptCalls++
	if f.apptErr != nil {
		return nil, f.apptErr
	}
	statuses := map[string]bool{}
	for _, s := range filter.Statuses {
		statuses[s] = true
	}
	var out []model.Appointment
	for _, appt := range f.appts {
		if appt.CompanyID != filter.CompanyID {
			continue
		}
		if filter.StaffID != "" && appt.StaffID != filter.StaffID {
			continue
		}
		if filter.ServiceID != "" && appt.ServiceID != filter.ServiceID {
			continue
		}
		if len(statuses) > 0 && !statuses[appt.Status] {
			continue
		}
		if appt.StartTime.Before(filter.From) || appt.StartTime.After(filter.To) {
			continue
		}
		out = append(out, appt)
	}
	return out, nil
}

func (f *fakeReaders) Orders(_ context.Context, filter OrderFilter) ([]model.Order, error) {
	f.orderCalls++
	statuses := map[string]bool{}
	for _, s := range filter.Statuses {
		statuses[s] = true
	}
	var out []model.Order
	for _, o := range f.orders {
		if o.CompanyID != filter.CompanyID {
			continue
		}
		if filter.StaffID != "" && o.StaffID != filter.StaffID {
			continue
		}
		if len(statuses) > 0 && !statuses[o.Status] {
			continue
		}
		if o.CreatedAt.Before(filter.From) || o.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeReaders) Schedules(_ context.Context, _ string, ids []string) (map[string]schedule.Weekly, error) {
	out := map[string]schedule.Weekly{}
	for _, id := range ids {
		if w, ok := f.schedules[id]; ok {
			out[id] = w
		}
	}
	return out, nil
}

func (f *fakeReaders) StaffNames(_ context.Context, _ string, ids []string) (map[string]string, error) {
	return f.names, nil
}

func (f *fakeReaders) ServiceNames(_ context.Context, _ string, ids []string) (map[string]string, error) {
	return f.names, nil
}

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func januaryFixture() *fakeReaders {
	return &fakeReaders{
		appts: []model.Appointment{
			{ID: "a1", CompanyID: "c1", StaffID: "s1", ServiceID: "svcA", ClientID: "cA",
				StartTime: date(2026, 1, 5, 9, 0), EndTime: date(2026, 1, 5, 9, 30),
				Status: model.StatusCompleted, Price: 50},
			{ID: "a2", CompanyID: "c1", StaffID: "s1", ServiceID: "svcA", ClientID: "cB",
				StartTime: date(2026, 1, 12, 9, 0), EndTime: date(2026, 1, 12, 9, 30),
				Status: model.StatusNoShow, Price: 50},
			{ID: "a3", CompanyID: "c1", StaffID: "s1", ServiceID: "svcB", ClientID: "cC",
				StartTime: date(2026, 1, 19, 9, 0), EndTime: date(2026, 1, 19, 9, 30),
				Status: model.StatusCanceled, Price: 40},
		},
		orders: []model.Order{
			{ID: "o1", CompanyID: "c1", StaffID: "s1", Total: 100,
				Status: model.OrderStatusPaid, CreatedAt: date(2026, 1, 6, 14, 0)},
		},
		schedules: map[string]schedule.Weekly{
			// One hour every Monday; January 2026 has four Mondays before the 31st.
			"s1": {"monday": []schedule.Window{{Start: "09:00", End: "10:00"}}},
		},
		names: map[string]string{"s1": "Dana", "svcA": "Haircut"},
	}
}

func januaryParams() OverviewParams {
	return OverviewParams{
		CompanyID: "c1",
		From:      date(2026, 1, 1, 0, 0),
		To:        date(2026, 1, 31, 23, 59),
		GroupBy:   GroupByDay,
	}
}

func TestPerformanceOverview(t *testing.T) {
	readers := januaryFixture()
	agg := NewAggregator(readers, readers, readers, readers)

	report, err := agg.PerformanceOverview(context.Background(), januaryParams())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	if report.AppointmentCount != 3 || report.CompletedCount != 1 || report.NoShowCount != 1 {
		t.Fatalf("counts = %d/%d/%d, want 3/1/1",
			report.AppointmentCount, report.CompletedCount, report.NoShowCount)
	}
	if report.TotalRevenue != 100 || report.OrderCount != 1 {
		t.Fatalf("revenue = %v over %d orders, want 100 over 1", report.TotalRevenue, report.OrderCount)
	}
	// 60 booked minutes against 4 Mondays x 60 available minutes.
	if report.Occupancy != 0.25 {
		t.Fatalf("occupancy = %v, want 0.25", report.Occupancy)
	}
	if report.NoShowRate != 0.5 {
		t.Fatalf("no-show rate = %v, want 0.5", report.NoShowRate)
	}
	if report.TicketAverage != 100 {
		t.Fatalf("ticket average = %v, want 100", report.TicketAverage)
	}

	if len(report.TopServices) != 1 || report.TopServices[0].ServiceID != "svcA" {
		t.Fatalf("top services = %+v, want single svcA row", report.TopServices)
	}
	if report.TopServices[0].Revenue != 50 || report.TopServices[0].Count != 1 {
		t.Fatalf("svcA row = %+v, want revenue 50 count 1", report.TopServices[0])
	}
	if report.TopServices[0].Name != "Haircut" {
		t.Fatalf("svcA name = %q, want Haircut", report.TopServices[0].Name)
	}

	// All three appointments start Monday 09:00.
	if report.Heatmap[1][9] != 3 {
		t.Fatalf("heatmap[monday][9] = %d, want 3", report.Heatmap[1][9])
	}

	if report.NewClients != 2 || report.ReturningClients != 0 {
		t.Fatalf("clients = %d new / %d returning, want 2/0", report.NewClients, report.ReturningClients)
	}

	codes := map[string]bool{}
	for _, ins := range report.Insights {
		codes[ins.Code] = true
	}
	if !codes["low_occupancy"] || !codes["high_no_show"] || !codes["retention"] {
		t.Fatalf("insights = %+v, want low_occupancy, high_no_show and retention", report.Insights)
	}
	if codes["low_ticket"] {
		t.Fatalf("ticket of 100 should not trigger the upsell insight")
	}
}

func TestPerformanceOverviewTimeseries(t *testing.T) {
	readers := januaryFixture()
	agg := NewAggregator(readers, readers, readers, readers)

	report, err := agg.PerformanceOverview(context.Background(), januaryParams())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}

	want := []TimeseriesPoint{
		{Bucket: "2026-01-05", Appointments: 1},
		{Bucket: "2026-01-06", Revenue: 100},
		{Bucket: "2026-01-12", Appointments: 1},
		{Bucket: "2026-01-19", Appointments: 1},
	}
	if !reflect.DeepEqual(report.Timeseries, want) {
		t.Fatalf("timeseries = %+v, want %+v", report.Timeseries, want)
	}
}

func TestPerformanceOverviewEmpty(t *testing.T) {
	readers := &fakeReaders{}
	agg := NewAggregator(readers, readers, readers, readers)

	report, err := agg.PerformanceOverview(context.Background(), OverviewParams{
		CompanyID: "c1",
		From:      date(2026, 2, 1, 0, 0),
		To:        date(2026, 2, 28, 0, 0),
	})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if report.Occupancy != 0 || report.NoShowRate != 0 || report.TicketAverage != 0 {
		t.Fatalf("empty input must produce zero ratios, got %+v", report)
	}
	for wd := 0; wd < 7; wd++ {
		for h := 0; h < 24; h++ {
			if report.Heatmap[wd][h] != 0 {
				t.Fatalf("heatmap[%d][%d] = %d on empty input", wd, h, report.Heatmap[wd][h])
			}
		}
	}
}

func TestPerformanceOverviewRatiosBounded(t *testing.T) {
	readers := januaryFixture()
	agg := NewAggregator(readers, readers, readers, readers)

	report, err := agg.PerformanceOverview(context.Background(), januaryParams())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if report.Occupancy < 0 || report.Occupancy > 1 {
		t.Fatalf("occupancy %v out of [0,1]", report.Occupancy)
	}
	if report.NoShowRate < 0 || report.NoShowRate > 1 {
		t.Fatalf("no-show rate %v out of [0,1]", report.NoShowRate)
	}
	for _, c := range report.Cohorts {
		for _, r := range []float64{c.Ret30, c.Ret60, c.Ret90} {
			if r < 0 || r > 1 {
				t.Fatalf("cohort %s retention %v out of [0,1]", c.Month, r)
			}
		}
	}
}

func TestPerformanceOverviewValidation(t *testing.T) {
	readers := &fakeReaders{}
	agg := NewAggregator(readers, readers, readers, readers)

	_, err := agg.PerformanceOverview(context.Background(), OverviewParams{
		CompanyID: "c1",
		From:      date(2026, 2, 10, 0, 0),
		To:        date(2026, 2, 1, 0, 0),
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("inverted range: got %v, want ErrInvalidRange", err)
	}

	_, err = agg.PerformanceOverview(context.Background(), OverviewParams{
		CompanyID: "c1",
		From:      date(2026, 2, 1, 0, 0),
		To:        date(2026, 2, 28, 0, 0),
		GroupBy:   "quarter",
	})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("unknown group_by: got %v, want ErrInvalidParameter", err)
	}

	_, err = agg.PerformanceOverview(context.Background(), OverviewParams{
		From: date(2026, 2, 1, 0, 0),
		To:   date(2026, 2, 28, 0, 0),
	})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("missing company: got %v, want ErrInvalidParameter", err)
	}
}

func TestNormalizeRangeDefaultMonthCoversLastDay(t *testing.T) {
	from, to, err := normalizeRange(time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("default range: %v", err)
	}
	if from.Day() != 1 || from.Hour() != 0 || from.Minute() != 0 || from.Second() != 0 {
		t.Fatalf("from is not the first of the month at midnight: %s", from)
	}
	// The upper bound must be the last instant of the month, so inclusive
	// reader filters keep events landing on the final day.
	if got := from.AddDate(0, 1, 0).Sub(to); got != time.Second {
		t.Fatalf("to ends %s before next month, want 1s", got)
	}
	lastDayNoon := from.AddDate(0, 1, 0).Add(-12 * time.Hour)
	if lastDayNoon.After(to) {
		t.Fatalf("noon on the last day (%s) falls outside the default range ending %s", lastDayNoon, to)
	}
}

func TestPerformanceOverviewReaderErrorPassesThrough(t *testing.T) {
	boom := errors.New("reader down")
	readers := &fakeReaders{apptErr: boom}
	agg := NewAggregator(readers, readers, readers, readers)

	_, err := agg.PerformanceOverview(context.Background(), januaryParams())
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want reader error", err)
	}
}

func TestPerformanceOverviewCachedReadsOnce(t *testing.T) {
	readers := januaryFixture()
	agg := NewAggregator(readers, readers, readers, readers)
	memo := cache.New()

	params := januaryParams()
	key := cache.Key("overview", map[string]any{
		"company": params.CompanyID,
		"from":    params.From.Format(time.RFC3339),
		"to":      params.To.Format(time.RFC3339),
		"group":   params.GroupBy,
	})
	produce := func(ctx context.Context) (OverviewReport, error) {
		return agg.PerformanceOverview(ctx, params)
	}

	first, err := cache.Wrap(context.Background(), memo, key, time.Minute, produce)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	callsAfterFirst := readers.apptCalls

	second, err := cache.Wrap(context.Background(), memo, key, time.Minute, produce)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if readers.apptCalls != callsAfterFirst {
		t.Fatalf("cached call hit the reader again (%d -> %d)", callsAfterFirst, readers.apptCalls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached result differs from computed result")
	}
}

func TestBucketKeyWeekStartsMonday(t *testing.T) {
	wed := date(2026, 1, 7, 10, 0)
	sun := date(2026, 1, 11, 23, 0)
	mon := date(2026, 1, 5, 0, 0)
	for _, ts := range []time.Time{wed, sun, mon} {
		if got := bucketKey(ts, GroupByWeek); got != "2026-01-05" {
			t.Fatalf("week bucket for %s = %s, want 2026-01-05", ts, got)
		}
	}
	if got := bucketKey(wed, GroupByMonth); got != "2026-01" {
		t.Fatalf("month bucket = %s, want 2026-01", got)
	}
	if got := bucketKey(wed, GroupByDay); got != "2026-01-07" {
		t.Fatalf("day bucket = %s, want 2026-01-07", got)
	}
}
