package model

import "time"

// Appointment statuses mirrored from the booking service's read model.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
	StatusNoShow    = "no_show"
)

// Order statuses that count as revenue.
const (
	OrderStatusPaid     = "paid"
	OrderStatusFinished = "finished"
)

// Appointment is the read view ingested from booking events. Rows are
// immutable snapshots; status transitions arrive as further events.
type Appointment struct {
	ID        string
	CompanyID string
	UnitID    string
	StaffID   string
	ServiceID string
	ClientID  string
	StartTime time.Time
	EndTime   time.Time
	Status    string
	Price     float64
}

// Order is the read view of a point-of-sale order.
type Order struct {
	ID        string
	CompanyID string
	UnitID    string
	StaffID   string
	ClientID  string
	Total     float64
	Status    string
	CreatedAt time.Time
}
