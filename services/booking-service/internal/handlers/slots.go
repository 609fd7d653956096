package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/salonpulse/salonpulse/libs/httpx"
	"github.com/salonpulse/salonpulse/libs/schedule"
	"github.com/salonpulse/salonpulse/services/booking-service/internal/availability"
	"github.com/salonpulse/salonpulse/services/booking-service/internal/storage"
)

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type slotsResponse struct {
	Date     string     `json:"date"`
	StaffID  string     `json:"staff_id"`
	Duration int        `json:"duration_minutes"`
	Slots    []slotItem `json:"slots"`
}

// Slots answers GET /api/v1/bookings/slots: every start time on the given
// date where the staff member could take the requested service, after
// working windows and existing bookings are applied.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	companyID := strings.TrimSpace(q.Get("company_id"))
	staffID := strings.TrimSpace(q.Get("staff_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	rawDate := strings.TrimSpace(q.Get("date"))
	if companyID == "" || staffID == "" || serviceID == "" || rawDate == "" {
		http.Error(w, "company_id, staff_id, service_id and date required", http.StatusBadRequest)
		return
	}

	date, err := time.ParseInLocation("2006-01-02", rawDate, time.UTC)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	svc, err := h.catalog.GetService(ctx, companyID, serviceID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load service", http.StatusInternalServerError)
		return
	}
	if svc.DurationMinutes <= 0 {
		http.Error(w, "service has no duration configured", http.StatusUnprocessableEntity)
		return
	}
	duration := time.Duration(svc.DurationMinutes) * time.Minute

	weekly, stepMinutes := h.resolveWeekly(ctx, companyID, staffID, date)
	if raw := strings.TrimSpace(q.Get("step_minutes")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 240 {
			stepMinutes = n
		}
	}
	step := availability.DefaultStep
	if stepMinutes > 0 {
		step = time.Duration(stepMinutes) * time.Minute
	}

	dayStart := date
	dayEnd := date.AddDate(0, 0, 1)
	booked, err := h.repo.ListBookedIntervals(ctx, companyID, staffID, dayStart, dayEnd)
	if err != nil {
		http.Error(w, "failed to load bookings", http.StatusInternalServerError)
		return
	}
	busy := make([]schedule.Interval, 0, len(booked))
	for _, appt := range booked {
		busy = append(busy, schedule.Interval{Start: appt.StartTime, End: appt.EndTime})
	}

	starts := availability.SlotsForDay(weekly, date, duration, step, busy, time.Now().UTC())

	slots := make([]slotItem, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, slotItem{
			StartTime: start.UTC().Format(time.RFC3339),
			EndTime:   start.Add(duration).UTC().Format(time.RFC3339),
		})
	}

	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		Date:     rawDate,
		StaffID:  staffID,
		Duration: svc.DurationMinutes,
		Slots:    slots,
	})
}

// resolveWeekly prefers the roster provider when one is configured, falling
// back to locally stored windows when the provider is absent or errors. The
// returned step is the provider's slot step, 0 when unknown. A nil Weekly
// means no schedule information exists at all.
func (h *BookingHandler) resolveWeekly(ctx context.Context, companyID, staffID string, date time.Time) (schedule.Weekly, int) {
	day := schedule.DayName(date.Weekday())
	if h.scheduling != nil {
		plan, err := h.scheduling.GetDayPlan(ctx, companyID, staffID, date.Format("2006-01-02"))
		if err == nil {
			if !plan.IsWorking {
				return schedule.Weekly{day: nil}, plan.SlotStepMinutes
			}
			return schedule.Weekly{day: plan.Windows}, plan.SlotStepMinutes
		}
		h.logger.Warn("roster provider failed, using local schedule", "err", err)
	}

	weekly, err := h.schedules.WeeklySchedule(ctx, companyID, staffID)
	if err != nil {
		h.logger.Error("failed to load weekly schedule", "err", err)
		return nil, 0
	}
	return weekly, 0
}
