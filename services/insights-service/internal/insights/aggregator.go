package insights

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/salonpulse/salonpulse/libs/schedule"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
)

const (
	GroupByDay   = "day"
	GroupByWeek  = "week"
	GroupByMonth = "month"

	topServicesLimit = 10
)

// Insight thresholds used by the rule engine in buildInsights.
const (
	lowOccupancyThreshold  = 0.6
	highNoShowThreshold    = 0.12
	lowTicketThreshold     = 35.0
	cohortTrailingMonths   = 12
	cohortReturnHorizonMax = 90
)

type Aggregator struct {
	appointments AppointmentReader
	orders       OrderReader
	schedules    ScheduleReader
	names        NameResolver
}

func NewAggregator(appointments AppointmentReader, orders OrderReader, schedules ScheduleReader, names NameResolver) *Aggregator {
	return &Aggregator{
		appointments: appointments,
		orders:       orders,
		schedules:    schedules,
		names:        names,
	}
}

type OverviewParams struct {
	CompanyID string
	UnitID    string
	StaffID   string
	ServiceID string
	From      time.Time // zero means current month start
	To        time.Time // zero means current month end
	GroupBy   string    // day, week or month; empty defaults to day
}

type TimeseriesPoint struct {
	Bucket       string  `json:"bucket"`
	Revenue      float64 `json:"revenue"`
	Appointments int     `json:"appointments"`
}

type ServiceRow struct {
	ServiceID string  `json:"service_id"`
	Name      string  `json:"name"`
	Revenue   float64 `json:"revenue"`
	Count     int     `json:"count"`
}

type CohortRow struct {
	Month string  `json:"month"`
	Size  int     `json:"size"`
	Ret30 float64 `json:"ret30"`
	Ret60 float64 `json:"ret60"`
	Ret90 float64 `json:"ret90"`
}

type Insight struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type OverviewReport struct {
	From             string            `json:"from"`
	To               string            `json:"to"`
	GroupBy          string            `json:"group_by"`
	TotalRevenue     float64           `json:"total_revenue"`
	OrderCount       int               `json:"order_count"`
	AppointmentCount int               `json:"appointment_count"`
	CompletedCount   int               `json:"completed_count"`
	NoShowCount      int               `json:"no_show_count"`
	TicketAverage    float64           `json:"ticket_average"`
	Occupancy        float64           `json:"occupancy"`
	NoShowRate       float64           `json:"no_show_rate"`
	NewClients       int               `json:"new_clients"`
	ReturningClients int               `json:"returning_clients"`
	Timeseries       []TimeseriesPoint `json:"timeseries"`
	TopServices      []ServiceRow      `json:"top_services"`
	Cohorts          []CohortRow       `json:"cohorts"`
	Heatmap          [7][24]int        `json:"heatmap"`
	Insights         []Insight         `json:"insights"`
}

// PerformanceOverview computes the dashboard report for one tenant and date
// range. All inputs are fetched through the injected readers before any
// arithmetic happens; reader errors pass through untouched.
func (a *Aggregator) PerformanceOverview(ctx context.Context, p OverviewParams) (OverviewReport, error) {
	groupBy, err := normalizeGroupBy(p.GroupBy)
	if err != nil {
		return OverviewReport{}, err
	}
	from, to, err := normalizeRange(p.From, p.To)
	if err != nil {
		return OverviewReport{}, err
	}
	if strings.TrimSpace(p.CompanyID) == "" {
		return OverviewReport{}, fmt.Errorf("%w: company id required", ErrInvalidParameter)
	}

	appts, err := a.appointments.Appointments(ctx, AppointmentFilter{
		CompanyID: p.CompanyID,
		UnitID:    p.UnitID,
		StaffID:   p.StaffID,
		ServiceID: p.ServiceID,
		From:      from,
		To:        to,
		Statuses:  []string{model.StatusScheduled, model.StatusCompleted, model.StatusCanceled, model.StatusNoShow},
	})
	if err != nil {
		return OverviewReport{}, err
	}

	orders, err := a.orders.Orders(ctx, OrderFilter{
		CompanyID: p.CompanyID,
		UnitID:    p.UnitID,
		StaffID:   p.StaffID,
		From:      from,
		To:        to,
		Statuses:  []string{model.OrderStatusPaid, model.OrderStatusFinished},
	})
	if err != nil {
		return OverviewReport{}, err
	}

	report := OverviewReport{
		From:    from.Format("2006-01-02"),
		To:      to.Format("2006-01-02"),
		GroupBy: groupBy,
	}

	var minutesBooked float64
	staffSeen := map[string]bool{}
	for _, appt := range appts {
		report.AppointmentCount++
		switch appt.Status {
		case model.StatusCompleted:
			report.CompletedCount++
		case model.StatusNoShow:
			report.NoShowCount++
		}
		if appt.Status != model.StatusCanceled {
			minutesBooked += appt.EndTime.Sub(appt.StartTime).Minutes()
		}
		staffSeen[appt.StaffID] = true
		wd := int(appt.StartTime.Weekday())
		report.Heatmap[wd][appt.StartTime.Hour()]++
	}

	for _, o := range orders {
		report.OrderCount++
		report.TotalRevenue += o.Total
	}

	report.NoShowRate = safeDivide(float64(report.NoShowCount),
		float64(report.CompletedCount+report.NoShowCount+countStatus(appts, model.StatusScheduled)))

	report.TicketAverage = ticketAverage(report.TotalRevenue, report.CompletedCount, report.OrderCount)

	minutesAvailable, err := a.minutesAvailable(ctx, p.CompanyID, staffSeen, from, to)
	if err != nil {
		return OverviewReport{}, err
	}
	report.Occupancy = safeDivide(minutesBooked, minutesAvailable)

	report.Timeseries = buildTimeseries(appts, orders, groupBy)
	report.TopServices, err = a.topServices(ctx, p.CompanyID, appts)
	if err != nil {
		return OverviewReport{}, err
	}

	cohortAppts, err := a.appointments.Appointments(ctx, AppointmentFilter{
		CompanyID: p.CompanyID,
		UnitID:    p.UnitID,
		From:      monthStart(to).AddDate(0, -(cohortTrailingMonths - 1), 0),
		To:        to,
		Statuses:  []string{model.StatusScheduled, model.StatusCompleted, model.StatusNoShow},
	})
	if err != nil {
		return OverviewReport{}, err
	}
	report.Cohorts = BuildCohorts(cohortAppts, to)
	report.NewClients, report.ReturningClients = clientSplit(cohortAppts, from, to)

	report.Insights = buildInsights(report)
	return report, nil
}

func (a *Aggregator) minutesAvailable(ctx context.Context, companyID string, staffSeen map[string]bool, from, to time.Time) (float64, error) {
	if len(staffSeen) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(staffSeen))
	for id := range staffSeen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	schedules, err := a.schedules.Schedules(ctx, companyID, ids)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, id := range ids {
		total += schedule.MinutesForRange(schedules[id], from, to)
	}
	return float64(total), nil
}

func (a *Aggregator) topServices(ctx context.Context, companyID string, appts []model.Appointment) ([]ServiceRow, error) {
	byService := map[string]*ServiceRow{}
	for _, appt := range appts {
		if appt.Status != model.StatusCompleted {
			continue
		}
		row, ok := byService[appt.ServiceID]
		if !ok {
			row = &ServiceRow{ServiceID: appt.ServiceID}
			byService[appt.ServiceID] = row
		}
		row.Revenue += appt.Price
		row.Count++
	}

	rows := make([]ServiceRow, 0, len(byService))
	for _, row := range byService {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].ServiceID < rows[j].ServiceID
	})
	if len(rows) > topServicesLimit {
		rows = rows[:topServicesLimit]
	}

	if len(rows) > 0 && a.names != nil {
		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ServiceID)
		}
		names, err := a.names.ServiceNames(ctx, companyID, ids)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if name := names[rows[i].ServiceID]; name != "" {
				rows[i].Name = name
			} else {
				rows[i].Name = rows[i].ServiceID
			}
		}
	}
	return rows, nil
}

func buildTimeseries(appts []model.Appointment, orders []model.Order, groupBy string) []TimeseriesPoint {
	points := map[string]*TimeseriesPoint{}
	bucketOf := func(t time.Time) string { return bucketKey(t, groupBy) }
	get := func(key string) *TimeseriesPoint {
		p, ok := points[key]
		if !ok {
			p = &TimeseriesPoint{Bucket: key}
			points[key] = p
		}
		return p
	}

	for _, o := range orders {
		get(bucketOf(o.CreatedAt)).Revenue += o.Total
	}
	for _, appt := range appts {
		get(bucketOf(appt.StartTime)).Appointments++
	}

	out := make([]TimeseriesPoint, 0, len(points))
	for _, p := range points {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out
}

// bucketKey truncates a timestamp to its reporting bucket. Weeks start
// Monday, matching how salons read weekly dashboards.
func bucketKey(t time.Time, groupBy string) string {
	switch groupBy {
	case GroupByMonth:
		return t.Format("2006-01")
	case GroupByWeek:
		shift := (int(t.Weekday()) + 6) % 7
		monday := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, -shift)
		return monday.Format("2006-01-02")
	default:
		return t.Format("2006-01-02")
	}
}

func buildInsights(r OverviewReport) []Insight {
	var out []Insight
	if r.Occupancy < lowOccupancyThreshold {
		out = append(out, Insight{
			Code:    "low_occupancy",
			Message: fmt.Sprintf("occupancy is %.0f%%; consider promotions for off-peak hours", r.Occupancy*100),
		})
	}
	if r.NoShowRate > highNoShowThreshold {
		out = append(out, Insight{
			Code:    "high_no_show",
			Message: fmt.Sprintf("no-show rate is %.0f%%; enable reminders or deposits", r.NoShowRate*100),
		})
	}
	if r.TicketAverage < lowTicketThreshold {
		out = append(out, Insight{
			Code:    "low_ticket",
			Message: fmt.Sprintf("average ticket is %.2f; bundle services to raise it", r.TicketAverage),
		})
	}
	if r.ReturningClients < r.NewClients {
		out = append(out, Insight{
			Code:    "retention",
			Message: "more new clients than returning ones; consider a retention campaign",
		})
	}
	return out
}

func ticketAverage(revenue float64, completed, orderCount int) float64 {
	if completed > 0 {
		return revenue / float64(completed)
	}
	return safeDivide(revenue, float64(orderCount))
}

// safeDivide yields 0 on a zero denominator so dashboards never see NaN.
func safeDivide(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func countStatus(appts []model.Appointment, status string) int {
	n := 0
	for _, appt := range appts {
		if appt.Status == status {
			n++
		}
	}
	return n
}

func normalizeGroupBy(groupBy string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(groupBy)) {
	case "", GroupByDay:
		return GroupByDay, nil
	case GroupByWeek:
		return GroupByWeek, nil
	case GroupByMonth:
		return GroupByMonth, nil
	default:
		return "", fmt.Errorf("%w: group_by must be day, week or month", ErrInvalidParameter)
	}
}

// normalizeRange fills an omitted range with the current calendar month and
// rejects inverted ranges. The default upper bound is the last instant of the
// month's final day; readers filter inclusively, so anything on that day
// still counts.
func normalizeRange(from, to time.Time) (time.Time, time.Time, error) {
	if from.IsZero() && to.IsZero() {
		now := time.Now().UTC()
		from = monthStart(now)
		to = from.AddDate(0, 1, 0).Add(-time.Second)
	}
	if from.IsZero() || to.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from and to must be set together", ErrInvalidRange)
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from is after to", ErrInvalidRange)
	}
	return from, to, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
