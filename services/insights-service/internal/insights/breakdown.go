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

type BreakdownParams struct {
	CompanyID string
	UnitID    string
	From      time.Time
	To        time.Time
}

type StaffRow struct {
	StaffID       string  `json:"staff_id"`
	Name          string  `json:"name"`
	Revenue       float64 `json:"revenue"`
	Appointments  int     `json:"appointments"`
	Completed     int     `json:"completed"`
	NoShows       int     `json:"no_shows"`
	MinutesBooked int     `json:"minutes_booked"`
	Occupancy     float64 `json:"occupancy"`
	TicketAverage float64 `json:"ticket_average"`
	NoShowRate    float64 `json:"no_show_rate"`
}

// StaffBreakdown ranks staff by revenue over the range. Revenue comes from
// paid orders attributed to the staff member; the appointment columns come
// from the booking read model.
func (a *Aggregator) StaffBreakdown(ctx context.Context, p BreakdownParams) ([]StaffRow, error) {
	from, to, err := normalizeRange(p.From, p.To)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.CompanyID) == "" {
		return nil, fmt.Errorf("%w: company id required", ErrInvalidParameter)
	}

	appts, err := a.appointments.Appointments(ctx, AppointmentFilter{
		CompanyID: p.CompanyID,
		UnitID:    p.UnitID,
		From:      from,
		To:        to,
		Statuses:  []string{model.StatusScheduled, model.StatusCompleted, model.StatusCanceled, model.StatusNoShow},
	})
	if err != nil {
		return nil, err
	}
	orders, err := a.orders.Orders(ctx, OrderFilter{
		CompanyID: p.CompanyID,
		UnitID:    p.UnitID,
		From:      from,
		To:        to,
		Statuses:  []string{model.OrderStatusPaid, model.OrderStatusFinished},
	})
	if err != nil {
		return nil, err
	}

	byStaff := map[string]*StaffRow{}
	get := func(staffID string) *StaffRow {
		row, ok := byStaff[staffID]
		if !ok {
			row = &StaffRow{StaffID: staffID}
			byStaff[staffID] = row
		}
		return row
	}

	orderCounts := map[string]int{}
	for _, o := range orders {
		if o.StaffID == "" {
			continue
		}
		get(o.StaffID).Revenue += o.Total
		orderCounts[o.StaffID]++
	}

	scheduledCounts := map[string]int{}
	for _, appt := range appts {
		row := get(appt.StaffID)
		row.Appointments++
		switch appt.Status {
		case model.StatusCompleted:
			row.Completed++
		case model.StatusNoShow:
			row.NoShows++
		case model.StatusScheduled:
			scheduledCounts[appt.StaffID]++
		}
		if appt.Status != model.StatusCanceled {
			row.MinutesBooked += int(appt.EndTime.Sub(appt.StartTime).Minutes())
		}
	}

	ids := make([]string, 0, len(byStaff))
	for id := range byStaff {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	schedules, err := a.schedules.Schedules(ctx, p.CompanyID, ids)
	if err != nil {
		return nil, err
	}
	var names map[string]string
	if a.names != nil {
		names, err = a.names.StaffNames(ctx, p.CompanyID, ids)
		if err != nil {
			return nil, err
		}
	}

	rows := make([]StaffRow, 0, len(ids))
	for _, id := range ids {
		row := *byStaff[id]
		available := schedule.MinutesForRange(schedules[id], from, to)
		row.Occupancy = safeDivide(float64(row.MinutesBooked), float64(available))
		row.TicketAverage = ticketAverage(row.Revenue, row.Completed, orderCounts[id])
		row.NoShowRate = safeDivide(float64(row.NoShows), float64(row.Completed+row.NoShows+scheduledCounts[id]))
		if name := names[id]; name != "" {
			row.Name = name
		} else {
			row.Name = id
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		return rows[i].StaffID < rows[j].StaffID
	})
	return rows, nil
}
