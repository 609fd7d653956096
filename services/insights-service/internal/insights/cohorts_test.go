package insights

import (
	"testing"
	"time"

	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
)

func visit(client string, start time.Time) model.Appointment {
	return model.Appointment{
		CompanyID: "c1",
		ClientID:  client,
		StaffID:   "s1",
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Status:    model.StatusCompleted,
	}
}

func TestCohortReturnAt46Days(t *testing.T) {
	first := date(2024, 1, 5, 10, 0)
	next := date(2024, 2, 20, 10, 0) // 46 days later

	rows := BuildCohorts([]model.Appointment{
		visit("client-1", first),
		visit("client-1", next),
	}, date(2024, 12, 31, 0, 0))

	if len(rows) != 1 {
		t.Fatalf("got %d cohorts, want 1", len(rows))
	}
	row := rows[0]
	if row.Month != "2024-01" || row.Size != 1 {
		t.Fatalf("cohort = %+v, want month 2024-01 size 1", row)
	}
	if row.Ret30 != 0 {
		t.Fatalf("ret30 = %v, want 0 for a 46-day return", row.Ret30)
	}
	if row.Ret60 != 1 || row.Ret90 != 1 {
		t.Fatalf("ret60/ret90 = %v/%v, want 1/1", row.Ret60, row.Ret90)
	}
}

func TestCohortNoReturn(t *testing.T) {
	rows := BuildCohorts([]model.Appointment{
		visit("solo", date(2024, 3, 10, 9, 0)),
	}, date(2024, 12, 31, 0, 0))

	if len(rows) != 1 || rows[0].Size != 1 {
		t.Fatalf("rows = %+v, want one cohort of size 1", rows)
	}
	if rows[0].Ret30 != 0 || rows[0].Ret60 != 0 || rows[0].Ret90 != 0 {
		t.Fatalf("single-visit client must not count as returned: %+v", rows[0])
	}
}

func TestCohortReturnBeyond90Days(t *testing.T) {
	rows := BuildCohorts([]model.Appointment{
		visit("late", date(2024, 1, 5, 10, 0)),
		visit("late", date(2024, 6, 1, 10, 0)),
	}, date(2024, 12, 31, 0, 0))

	row := rows[0]
	if row.Ret30 != 0 || row.Ret60 != 0 || row.Ret90 != 0 {
		t.Fatalf("return after 90 days must not count: %+v", row)
	}
}

func TestCohortWindowExcludesOldFirstVisits(t *testing.T) {
	rows := BuildCohorts([]model.Appointment{
		visit("ancient", date(2020, 5, 1, 10, 0)),
		visit("recent", date(2024, 10, 1, 10, 0)),
	}, date(2024, 12, 31, 0, 0))

	if len(rows) != 1 || rows[0].Month != "2024-10" {
		t.Fatalf("rows = %+v, want only the 2024-10 cohort", rows)
	}
}

func TestCohortSkipsCanceledAndAnonymous(t *testing.T) {
	canceled := visit("ghost", date(2024, 4, 1, 10, 0))
	canceled.Status = model.StatusCanceled
	anonymous := visit("", date(2024, 4, 2, 10, 0))

	rows := BuildCohorts([]model.Appointment{canceled, anonymous}, date(2024, 12, 31, 0, 0))
	if len(rows) != 0 {
		t.Fatalf("rows = %+v, want none", rows)
	}
}

func TestClientSplit(t *testing.T) {
	from := date(2024, 6, 1, 0, 0)
	to := date(2024, 6, 30, 23, 59)

	appts := []model.Appointment{
		visit("newbie", date(2024, 6, 10, 10, 0)),
		visit("regular", date(2024, 3, 1, 10, 0)),
		visit("regular", date(2024, 6, 15, 10, 0)),
		visit("dormant", date(2024, 2, 1, 10, 0)),
	}

	newClients, returning := clientSplit(appts, from, to)
	if newClients != 1 || returning != 1 {
		t.Fatalf("split = %d new / %d returning, want 1/1", newClients, returning)
	}
}
