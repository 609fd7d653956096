package storage

import (
	"context"
	"time"

	"github.com/salonpulse/salonpulse/libs/db"
	"github.com/salonpulse/salonpulse/libs/schedule"
)

// ScheduleRepository reads staff weekly working windows. Windows are stored
// as minutes since midnight, one row per (staff, weekday, window), so split
// shifts are just multiple rows.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) WeeklySchedule(ctx context.Context, companyID, staffID string) (schedule.Weekly, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT w.weekday, w.start_minute, w.end_minute
		FROM staff_schedule_windows w
		JOIN staff s ON s.id = w.staff_id
		WHERE s.company_id = $1 AND w.staff_id = $2
		ORDER BY w.weekday ASC, w.start_minute ASC
	`, companyID, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	weekly := schedule.Weekly{}
	for rows.Next() {
		var weekday, startMin, endMin int
		if err := rows.Scan(&weekday, &startMin, &endMin); err != nil {
			return nil, err
		}
		if weekday < 0 || weekday > 6 || endMin <= startMin {
			continue
		}
		day := schedule.DayName(time.Weekday(weekday))
		weekly[day] = append(weekly[day], schedule.Window{
			Start: schedule.FormatClock(startMin),
			End:   schedule.FormatClock(endMin),
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(weekly) == 0 {
		return nil, nil
	}
	return weekly, nil
}
