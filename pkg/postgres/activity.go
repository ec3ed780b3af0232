package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/charity-hub/pkg/db"
)

const activityColumns = `id, volunteer_id, project_id, team_id, activity_type, duration_minutes,
	activity_date, description, points_awarded, approved_by, created_at`

func scanActivity(row interface{ Scan(...any) error }) (*db.ActivityLog, error) {
	var a db.ActivityLog
	var activityType string
	if err := row.Scan(&a.ID, &a.VolunteerID, &a.ProjectID, &a.TeamID, &activityType, &a.DurationMinutes,
		&a.ActivityDate, &a.Description, &a.PointsAwarded, &a.ApprovedBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ActivityType = db.ActivityType(activityType)
	return &a, nil
}

// InsertActivity inserts a new activity log record
func (t *tx) InsertActivity(ctx context.Context, activity *db.ActivityLog) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO activity_log (id, volunteer_id, project_id, team_id, activity_type, duration_minutes,
			activity_date, description, points_awarded, approved_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, activity.ID, activity.VolunteerID, activity.ProjectID, activity.TeamID, string(activity.ActivityType),
		activity.DurationMinutes, activity.ActivityDate.UTC(), activity.Description, activity.PointsAwarded,
		activity.ApprovedBy, activity.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert activity", err)
	}
	return nil
}

// GetActivity retrieves an activity by ID
func (t *tx) GetActivity(ctx context.Context, id string) (*db.ActivityLog, error) {
	a, err := scanActivity(t.tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM activity_log WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get activity", err)
	}
	return a, nil
}

// LockActivity retrieves an activity and locks its row until the
// transaction ends, so two approvals of the same row serialise
func (t *tx) LockActivity(ctx context.Context, id string) (*db.ActivityLog, error) {
	a, err := scanActivity(t.tx.QueryRow(ctx, `SELECT `+activityColumns+` FROM activity_log WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapErr("lock activity", err)
	}
	return a, nil
}

// ApproveActivity sets the approver and the awarded points of a pending
// activity. Already-approved rows are left untouched and reported as not found.
func (t *tx) ApproveActivity(ctx context.Context, id, approverID string, points int) error {
	return t.execOne(ctx, "approve activity", `
		UPDATE activity_log SET approved_by = $2, points_awarded = $3
		WHERE id = $1 AND approved_by IS NULL
	`, id, approverID, points)
}

// DeleteActivity removes a pending activity. Approved rows are never removed.
func (t *tx) DeleteActivity(ctx context.Context, id string) error {
	return t.execOne(ctx, "delete activity", `DELETE FROM activity_log WHERE id = $1 AND approved_by IS NULL`, id)
}

// ListActivitiesByVolunteer retrieves a volunteer's activities, newest first
func (t *tx) ListActivitiesByVolunteer(ctx context.Context, volunteerID string) ([]db.ActivityLog, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+activityColumns+` FROM activity_log WHERE volunteer_id = $1
		ORDER BY activity_date DESC, created_at DESC, id
	`, volunteerID)
	if err != nil {
		return nil, wrapErr("query activities", err)
	}
	return scanActivities(rows)
}

func scanActivities(rows pgx.Rows) ([]db.ActivityLog, error) {
	defer rows.Close()

	var activities []db.ActivityLog
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate activities", err)
	}
	return activities, nil
}

// SumApprovedPoints sums points_awarded over the volunteer's approved activities
func (t *tx) SumApprovedPoints(ctx context.Context, volunteerID string) (int, error) {
	var sum int
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(points_awarded), 0)::INTEGER FROM activity_log
		WHERE volunteer_id = $1 AND approved_by IS NOT NULL
	`, volunteerID).Scan(&sum)
	if err != nil {
		return 0, wrapErr("sum approved points", err)
	}
	return sum, nil
}
