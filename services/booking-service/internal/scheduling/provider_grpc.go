//go:build protogen

package scheduling

import (
	"context"
	"time"

	"github.com/salonpulse/salonpulse/libs/grpcx"
	"github.com/salonpulse/salonpulse/libs/schedule"
	rosterv1 "github.com/salonpulse/salonpulse/protos/gen/roster/v1"
)

// DayPlan is the roster answer for one staff member on one date: whether
// they work at all, and which wall-clock windows apply after time-off is
// subtracted.
type DayPlan struct {
	IsWorking       bool
	Windows         []schedule.Window
	SlotStepMinutes int
}

// Provider resolves day plans from a central roster service. A nil provider
// means bookings fall back to the locally stored weekly schedule.
type Provider interface {
	GetDayPlan(ctx context.Context, companyID, staffID, date string) (DayPlan, error)
}

type grpcProvider struct {
	client rosterv1.RosterServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: rosterv1.NewRosterServiceClient(conn)}, nil
}

func (p *grpcProvider) GetDayPlan(ctx context.Context, companyID, staffID, date string) (DayPlan, error) {
	resp, err := p.client.GetDayPlan(ctx, &rosterv1.DayPlanRequest{
		CompanyId: companyID,
		StaffId:   staffID,
		Date:      date,
	})
	if err != nil {
		return DayPlan{}, err
	}
	plan := DayPlan{
		IsWorking:       resp.GetIsWorking(),
		SlotStepMinutes: int(resp.GetSlotStepMinutes()),
	}
	for _, w := range resp.GetWindows() {
		plan.Windows = append(plan.Windows, schedule.Window{
			Start: w.GetStart(),
			End:   w.GetEnd(),
		})
	}
	return plan, nil
}
