package model

import "time"

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
	StatusNoShow    = "no_show"
)

type Appointment struct {
	ID           string
	CompanyID    string
	UnitID       string
	ServiceID    string
	StaffID      string
	ClientID     string
	StartTime    time.Time
	EndTime      time.Time
	Status       string
	Price        float64
	CancelReason string
	CancelledAt  *time.Time
	CreatedAt    time.Time
}

// Service is a catalog entry owned by a company: what gets booked and for
// how long.
type Service struct {
	ID              string
	CompanyID       string
	Name            string
	DurationMinutes int
	Price           float64
}
