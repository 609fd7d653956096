package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonpulse/salonpulse/libs/httpx"
	"github.com/salonpulse/salonpulse/libs/schedule"
	"github.com/salonpulse/salonpulse/services/booking-service/internal/model"
	"github.com/salonpulse/salonpulse/services/booking-service/internal/outbox"
	"github.com/salonpulse/salonpulse/services/booking-service/internal/scheduling"
	"github.com/salonpulse/salonpulse/services/booking-service/internal/storage"
)

// BookingStore is the transactional surface the handlers need from the
// appointments repository.
type BookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	LockIdempotencyKey(ctx context.Context, tx pgx.Tx, companyID, key string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, tx pgx.Tx, companyID, key, appointmentID string, statusCode int, response []byte) error
	Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error)
	GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, companyID, appointmentID string) (model.Appointment, error)
	CancelAppointment(ctx context.Context, tx pgx.Tx, companyID, appointmentID, reason string) (time.Time, error)
	SetStatus(ctx context.Context, tx pgx.Tx, companyID, appointmentID, status string) error
	ListByCompany(ctx context.Context, companyID string, limit int) ([]model.Appointment, error)
	ListBookedIntervals(ctx context.Context, companyID, staffID string, start, end time.Time) ([]model.Appointment, error)
}

// ServiceCatalog resolves the booked service's duration and price.
type ServiceCatalog interface {
	GetService(ctx context.Context, companyID, serviceID string) (model.Service, error)
}

// ScheduleSource reads locally stored staff working windows.
type ScheduleSource interface {
	WeeklySchedule(ctx context.Context, companyID, staffID string) (schedule.Weekly, error)
}

// EventOutbox records domain events inside the booking transaction.
type EventOutbox interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type BookingHandler struct {
	repo       BookingStore
	catalog    ServiceCatalog
	schedules  ScheduleSource
	outboxRepo EventOutbox
	scheduling scheduling.Provider
	logger     *slog.Logger
}

func NewBookingHandler(
	repo BookingStore,
	catalog ServiceCatalog,
	schedules ScheduleSource,
	outboxRepo EventOutbox,
	schedulingProvider scheduling.Provider,
	logger *slog.Logger,
) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		catalog:    catalog,
		schedules:  schedules,
		outboxRepo: outboxRepo,
		scheduling: schedulingProvider,
		logger:     logger,
	}
}

type createBookingRequest struct {
	CompanyID string `json:"company_id"`
	UnitID    string `json:"unit_id"`
	ServiceID string `json:"service_id"`
	StaffID   string `json:"staff_id"`
	ClientID  string `json:"client_id"`
	StartTime string `json:"start_time"`
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	EndTime       string `json:"end_time"`
}

type cancelBookingRequest struct {
	CompanyID     string `json:"company_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

type statusUpdateRequest struct {
	CompanyID     string `json:"company_id"`
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

type listAppointmentItem struct {
	AppointmentID string  `json:"appointment_id"`
	StaffID       string  `json:"staff_id"`
	ServiceID     string  `json:"service_id"`
	ClientID      string  `json:"client_id"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	Status        string  `json:"status"`
	Price         float64 `json:"price"`
	CancelledAt   string  `json:"cancelled_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// Bookings dispatches /api/v1/bookings by method: POST creates, GET lists.
func (h *BookingHandler) Bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.CompanyID = strings.TrimSpace(req.CompanyID)
	req.UnitID = strings.TrimSpace(req.UnitID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ClientID = strings.TrimSpace(req.ClientID)

	if req.CompanyID == "" || req.ServiceID == "" || req.StaffID == "" || req.ClientID == "" {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	svc, err := h.catalog.GetService(ctx, req.CompanyID, req.ServiceID)
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
	endTime := startTime.Add(time.Duration(svc.DurationMinutes) * time.Minute)

	appt := &model.Appointment{
		CompanyID: req.CompanyID,
		UnitID:    req.UnitID,
		ServiceID: req.ServiceID,
		StaffID:   req.StaffID,
		ClientID:  req.ClientID,
		StartTime: startTime,
		EndTime:   endTime,
		Status:    model.StatusScheduled,
		Price:     svc.Price,
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, appt.CompanyID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.AppointmentID != "" && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			if len(rec.ResponsePayload) > 0 {
				_, _ = w.Write(rec.ResponsePayload)
				return
			}
			_ = json.NewEncoder(w).Encode(createBookingResponse{AppointmentID: rec.AppointmentID})
			return
		}
	}

	if ok := h.startWithinWorkingWindows(ctx, appt); !ok {
		http.Error(w, "requested time is outside staff working hours", http.StatusUnprocessableEntity)
		return
	}

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	if err := h.insertAppointmentEvent(ctx, tx, "booking.appointment.booked.v1", id, appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	resp := createBookingResponse{
		AppointmentID: id,
		EndTime:       endTime.UTC().Format(time.RFC3339),
	}
	respBody, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, appt.CompanyID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CompanyID = strings.TrimSpace(req.CompanyID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.CompanyID == "" || req.AppointmentID == "" {
		http.Error(w, "company_id and appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetAppointmentForUpdate(ctx, tx, req.CompanyID, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if appt.Status == model.StatusCanceled && appt.CancelledAt != nil {
		h.writeCancelResponse(w, appt.ID, appt.CancelledAt.UTC())
		return
	}
	if appt.Status != model.StatusScheduled {
		http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.CancelAppointment(ctx, tx, req.CompanyID, appt.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	if err := h.insertAppointmentEvent(ctx, tx, "booking.appointment.cancelled.v1", appt.ID, &appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.writeCancelResponse(w, appt.ID, cancelledAt.UTC())
}

// UpdateStatus moves a scheduled appointment to completed or no_show,
// emitting the matching event for the analytics read model.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CompanyID = strings.TrimSpace(req.CompanyID)
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Status = strings.TrimSpace(strings.ToLower(req.Status))
	if req.CompanyID == "" || req.AppointmentID == "" {
		http.Error(w, "company_id and appointment_id required", http.StatusBadRequest)
		return
	}
	if req.Status != model.StatusCompleted && req.Status != model.StatusNoShow {
		http.Error(w, "status must be completed or no_show", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetAppointmentForUpdate(ctx, tx, req.CompanyID, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if appt.Status == req.Status {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"appointment_id": appt.ID, "status": appt.Status})
		return
	}

	if err := h.repo.SetStatus(ctx, tx, req.CompanyID, req.AppointmentID, req.Status); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment is not in a scheduled state", http.StatusConflict)
			return
		}
		http.Error(w, "failed to update status", http.StatusInternalServerError)
		return
	}

	appt.Status = req.Status
	eventType := "booking.appointment.completed.v1"
	if req.Status == model.StatusNoShow {
		eventType = "booking.appointment.no_show.v1"
	}
	if err := h.insertAppointmentEvent(ctx, tx, eventType, appt.ID, &appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"appointment_id": appt.ID, "status": appt.Status})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	companyID := strings.TrimSpace(r.Header.Get("X-Company-Id"))
	if companyID == "" {
		companyID = strings.TrimSpace(r.URL.Query().Get("company_id"))
	}
	if companyID == "" {
		http.Error(w, "company_id required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.repo.ListByCompany(r.Context(), companyID, limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, appt := range appts {
		item := listAppointmentItem{
			AppointmentID: appt.ID,
			StaffID:       appt.StaffID,
			ServiceID:     appt.ServiceID,
			ClientID:      appt.ClientID,
			StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
			EndTime:       appt.EndTime.UTC().Format(time.RFC3339),
			Status:        appt.Status,
			Price:         appt.Price,
			CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	httpx.WriteJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, appointmentID string, cancelledAt time.Time) {
	httpx.WriteJSON(w, http.StatusOK, cancelBookingResponse{
		AppointmentID: appointmentID,
		Status:        model.StatusCanceled,
		CancelledAt:   cancelledAt.Format(time.RFC3339),
	})
}

func (h *BookingHandler) insertAppointmentEvent(ctx context.Context, tx pgx.Tx, eventType, appointmentID string, appt *model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appointmentID,
		"company_id":     appt.CompanyID,
		"unit_id":        appt.UnitID,
		"staff_id":       appt.StaffID,
		"service_id":     appt.ServiceID,
		"client_id":      appt.ClientID,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"price":          appt.Price,
		"status":         appt.Status,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       payload,
	})
}

// startWithinWorkingWindows rejects bookings outside the staff member's
// schedule. Roster provider wins when configured; local windows otherwise.
// Degrades open when neither source has an answer, so a company that never
// configured schedules can still take bookings.
func (h *BookingHandler) startWithinWorkingWindows(ctx context.Context, appt *model.Appointment) bool {
	weekly, _ := h.resolveWeekly(ctx, appt.CompanyID, appt.StaffID, appt.StartTime)
	if weekly == nil {
		return true
	}
	for _, win := range schedule.WindowsOn(weekly, appt.StartTime) {
		if !appt.StartTime.Before(win.Start) && !appt.EndTime.After(win.End) {
			return true
		}
	}
	return false
}
