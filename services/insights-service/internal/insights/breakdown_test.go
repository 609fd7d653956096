package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/salonpulse/salonpulse/libs/schedule"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
)

func TestStaffBreakdown(t *testing.T) {
	readers := &fakeReaders{
		appts: []model.Appointment{
			{ID: "a1", CompanyID: "c1", StaffID: "s1", ServiceID: "svcA", ClientID: "cA",
				StartTime: date(2026, 1, 5, 9, 0), EndTime: date(2026, 1, 5, 10, 0),
				Status: model.StatusCompleted, Price: 80},
			{ID: "a2", CompanyID: "c1", StaffID: "s2", ServiceID: "svcA", ClientID: "cB",
				StartTime: date(2026, 1, 5, 9, 0), EndTime: date(2026, 1, 5, 9, 30),
				Status: model.StatusNoShow, Price: 40},
			{ID: "a3", CompanyID: "c1", StaffID: "s2", ServiceID: "svcB", ClientID: "cC",
				StartTime: date(2026, 1, 12, 9, 0), EndTime: date(2026, 1, 12, 9, 45),
				Status: model.StatusCompleted, Price: 60},
		},
		orders: []model.Order{
			{ID: "o1", CompanyID: "c1", StaffID: "s1", Total: 80,
				Status: model.OrderStatusPaid, CreatedAt: date(2026, 1, 5, 11, 0)},
			{ID: "o2", CompanyID: "c1", StaffID: "s2", Total: 200,
				Status: model.OrderStatusFinished, CreatedAt: date(2026, 1, 12, 11, 0)},
		},
		schedules: map[string]schedule.Weekly{
			"s1": {"monday": []schedule.Window{{Start: "09:00", End: "11:00"}}},
			"s2": {"monday": []schedule.Window{{Start: "09:00", End: "10:00"}}},
		},
		names: map[string]string{"s1": "Dana", "s2": "Luca"},
	}
	agg := NewAggregator(readers, readers, readers, readers)

	rows, err := agg.StaffBreakdown(context.Background(), BreakdownParams{
		CompanyID: "c1",
		From:      date(2026, 1, 1, 0, 0),
		To:        date(2026, 1, 31, 23, 59),
	})
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	// Sorted by revenue, descending.
	if rows[0].StaffID != "s2" || rows[1].StaffID != "s1" {
		t.Fatalf("order = %s, %s, want s2 first", rows[0].StaffID, rows[1].StaffID)
	}

	s2 := rows[0]
	if s2.Name != "Luca" || s2.Revenue != 200 || s2.Appointments != 2 || s2.Completed != 1 || s2.NoShows != 1 {
		t.Fatalf("s2 row = %+v", s2)
	}
	if s2.MinutesBooked != 75 {
		t.Fatalf("s2 minutes booked = %d, want 75", s2.MinutesBooked)
	}
	// 75 booked over 4 Mondays x 60 minutes.
	if s2.Occupancy != 75.0/240.0 {
		t.Fatalf("s2 occupancy = %v, want %v", s2.Occupancy, 75.0/240.0)
	}
	if s2.TicketAverage != 200 {
		t.Fatalf("s2 ticket = %v, want 200", s2.TicketAverage)
	}
	if s2.NoShowRate != 0.5 {
		t.Fatalf("s2 no-show rate = %v, want 0.5", s2.NoShowRate)
	}

	s1 := rows[1]
	if s1.Revenue != 80 || s1.Occupancy != 60.0/480.0 {
		t.Fatalf("s1 row = %+v", s1)
	}
}

func TestStaffBreakdownValidation(t *testing.T) {
	readers := &fakeReaders{}
	agg := NewAggregator(readers, readers, readers, readers)

	_, err := agg.StaffBreakdown(context.Background(), BreakdownParams{
		CompanyID: "c1",
		From:      date(2026, 2, 2, 0, 0),
		To:        date(2026, 2, 1, 0, 0),
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("got %v, want ErrInvalidRange", err)
	}

	_, err = agg.StaffBreakdown(context.Background(), BreakdownParams{
		From: date(2026, 2, 1, 0, 0),
		To:   date(2026, 2, 2, 0, 0),
	})
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("got %v, want ErrInvalidParameter", err)
	}
}

func TestStaffBreakdownEmpty(t *testing.T) {
	readers := &fakeReaders{}
	agg := NewAggregator(readers, readers, readers, readers)

	rows, err := agg.StaffBreakdown(context.Background(), BreakdownParams{
		CompanyID: "c1",
		From:      date(2026, 2, 1, 0, 0),
		To:        date(2026, 2, 28, 0, 0),
	})
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %+v, want none", rows)
	}
}
