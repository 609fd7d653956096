package insights

import (
	"context"
	"errors"
	"time"

	"github.com/salonpulse/salonpulse/libs/schedule"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
)

// Reports never touch storage directly; they consume these tenant-scoped
// readers so the aggregation logic stays pure and testable.

var (
	ErrInvalidRange     = errors.New("invalid date range")
	ErrInvalidParameter = errors.New("invalid parameter")
)

type AppointmentFilter struct {
	CompanyID string
	UnitID    string
	StaffID   string
	ServiceID string
	From      time.Time
	To        time.Time
	Statuses  []string
}

type OrderFilter struct {
	CompanyID string
	UnitID    string
	StaffID   string
	From      time.Time
	To        time.Time
	Statuses  []string
}

type AppointmentReader interface {
	Appointments(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error)
}

type OrderReader interface {
	Orders(ctx context.Context, f OrderFilter) ([]model.Order, error)
}

// ScheduleReader maps staff ids to their weekly working windows. Staff with
// no configured schedule are simply absent from the result.
type ScheduleReader interface {
	Schedules(ctx context.Context, companyID string, staffIDs []string) (map[string]schedule.Weekly, error)
}

// NameResolver turns staff and service ids into display labels. Missing ids
// resolve to an empty string; callers fall back to the raw id.
type NameResolver interface {
	StaffNames(ctx context.Context, companyID string, ids []string) (map[string]string, error)
	ServiceNames(ctx context.Context, companyID string, ids []string) (map[string]string, error)
}
