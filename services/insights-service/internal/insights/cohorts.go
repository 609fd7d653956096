package insights

import (
	"sort"
	"time"

	"github.com/salonpulse/salonpulse/services/insights-service/internal/model"
)

// BuildCohorts groups clients by the calendar month of their first visit
// inside the trailing twelve months ending at windowEnd, then measures how
// many returned within 30, 60 and 90 days of that first visit. A return at
// day 46 counts toward ret60 and ret90 but not ret30.
func BuildCohorts(appts []model.Appointment, windowEnd time.Time) []CohortRow {
	visits := visitsByClient(appts)
	if len(visits) == 0 {
		return nil
	}

	cohortFloor := monthStart(windowEnd).AddDate(0, -(cohortTrailingMonths - 1), 0)

	type tally struct {
		size  int
		ret30 int
		ret60 int
		ret90 int
	}
	byMonth := map[string]*tally{}

	for _, times := range visits {
		first := times[0]
		if first.Before(cohortFloor) || first.After(windowEnd) {
			continue
		}
		month := first.Format("2006-01")
		t, ok := byMonth[month]
		if !ok {
			t = &tally{}
			byMonth[month] = t
		}
		t.size++

		for _, next := range times[1:] {
			gap := next.Sub(first)
			if gap <= 0 || gap > cohortReturnHorizonMax*24*time.Hour {
				continue
			}
			if gap <= 30*24*time.Hour {
				t.ret30++
			}
			if gap <= 60*24*time.Hour {
				t.ret60++
			}
			t.ret90++
			break
		}
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	rows := make([]CohortRow, 0, len(months))
	for _, m := range months {
		t := byMonth[m]
		rows = append(rows, CohortRow{
			Month: m,
			Size:  t.size,
			Ret30: safeDivide(float64(t.ret30), float64(t.size)),
			Ret60: safeDivide(float64(t.ret60), float64(t.size)),
			Ret90: safeDivide(float64(t.ret90), float64(t.size)),
		})
	}
	return rows
}

// clientSplit counts clients active in [from, to] as new when their first
// observed visit falls inside the range, returning otherwise.
func clientSplit(appts []model.Appointment, from, to time.Time) (newClients, returningClients int) {
	for _, times := range visitsByClient(appts) {
		active := false
		for _, t := range times {
			if !t.Before(from) && !t.After(to) {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		first := times[0]
		if !first.Before(from) && !first.After(to) {
			newClients++
		} else {
			returningClients++
		}
	}
	return newClients, returningClients
}

func visitsByClient(appts []model.Appointment) map[string][]time.Time {
	visits := map[string][]time.Time{}
	for _, appt := range appts {
		if appt.ClientID == "" || appt.Status == model.StatusCanceled {
			continue
		}
		visits[appt.ClientID] = append(visits[appt.ClientID], appt.StartTime)
	}
	for id := range visits {
		times := visits[id]
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
		visits[id] = times
	}
	return visits
}
