package storage

import (
	"context"
	"time"

	"github.com/salonpulse/salonpulse/libs/db"
	"github.com/salonpulse/salonpulse/libs/schedule"
)

// DirectoryRepository resolves display names and staff schedules from the
// locally replicated directory tables.
type DirectoryRepository struct {
	pool *db.Pool
}

func NewDirectoryRepository(pool *db.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) StaffNames(ctx context.Context, companyID string, ids []string) (map[string]string, error) {
	return r.names(ctx, `
		SELECT staff_id, display_name
		FROM staff_directory
		WHERE company_id = $1 AND staff_id = ANY($2)
	`, companyID, ids)
}

func (r *DirectoryRepository) ServiceNames(ctx context.Context, companyID string, ids []string) (map[string]string, error) {
	return r.names(ctx, `
		SELECT service_id, display_name
		FROM service_directory
		WHERE company_id = $1 AND service_id = ANY($2)
	`, companyID, ids)
}

func (r *DirectoryRepository) names(ctx context.Context, query, companyID string, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	rows, err := r.pool.Query(ctx, query, companyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Schedules maps staff ids to weekly windows. Staff without schedule rows
// are absent from the result, which the aggregator treats as zero available
// minutes.
func (r *DirectoryRepository) Schedules(ctx context.Context, companyID string, staffIDs []string) (map[string]schedule.Weekly, error) {
	if len(staffIDs) == 0 {
		return map[string]schedule.Weekly{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id, weekday, start_minute, end_minute
		FROM staff_schedule_windows
		WHERE company_id = $1 AND staff_id = ANY($2)
		ORDER BY staff_id, weekday, start_minute
	`, companyID, staffIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]schedule.Weekly{}
	for rows.Next() {
		var staffID string
		var weekday, startMin, endMin int
		if err := rows.Scan(&staffID, &weekday, &startMin, &endMin); err != nil {
			return nil, err
		}
		if weekday < 0 || weekday > 6 || endMin <= startMin {
			continue
		}
		weekly, ok := out[staffID]
		if !ok {
			weekly = schedule.Weekly{}
			out[staffID] = weekly
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
	return out, nil
}
