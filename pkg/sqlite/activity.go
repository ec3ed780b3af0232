package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jakechorley/charity-hub/pkg/db"
)

const activityColumns = `id, volunteer_id, project_id, team_id, activity_type, duration_minutes,
	activity_date, description, points_awarded, approved_by, created_at`

func scanActivity(row scanner) (*db.ActivityLog, error) {
	var a db.ActivityLog
	var projectID, teamID, approvedBy sql.NullString
	var activityType string
	var activityDate, createdAt int64
	if err := row.Scan(&a.ID, &a.VolunteerID, &projectID, &teamID, &activityType, &a.DurationMinutes,
		&activityDate, &a.Description, &a.PointsAwarded, &approvedBy, &createdAt); err != nil {
		return nil, err
	}
	a.ProjectID = stringPtr(projectID)
	a.TeamID = stringPtr(teamID)
	a.ApprovedBy = stringPtr(approvedBy)
	a.ActivityType = db.ActivityType(activityType)
	a.ActivityDate = fromMillis(activityDate)
	a.CreatedAt = fromMillis(createdAt)
	return &a, nil
}

func (t *tx) InsertActivity(ctx context.Context, activity *db.ActivityLog) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO activity_log (id, volunteer_id, project_id, team_id, activity_type, duration_minutes,
			activity_date, description, points_awarded, approved_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, activity.ID, activity.VolunteerID, nullString(activity.ProjectID), nullString(activity.TeamID),
		string(activity.ActivityType), activity.DurationMinutes, toMillis(activity.ActivityDate), activity.Description,
		activity.PointsAwarded, nullString(activity.ApprovedBy), toMillis(activity.CreatedAt))
	if err != nil {
		return wrapErr("insert activity", err)
	}
	return nil
}

func (t *tx) GetActivity(ctx context.Context, id string) (*db.ActivityLog, error) {
	a, err := scanActivity(t.tx.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activity_log WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr("get activity", err)
	}
	return a, nil
}

func (t *tx) LockActivity(ctx context.Context, id string) (*db.ActivityLog, error) {
	return t.GetActivity(ctx, id)
}

func (t *tx) ApproveActivity(ctx context.Context, id, approverID string, points int) error {
	return t.execOne(ctx, "approve activity", `
		UPDATE activity_log SET approved_by = ?, points_awarded = ?
		WHERE id = ? AND approved_by IS NULL
	`, approverID, points, id)
}

func (t *tx) DeleteActivity(ctx context.Context, id string) error {
	return t.execOne(ctx, "delete activity", `DELETE FROM activity_log WHERE id = ? AND approved_by IS NULL`, id)
}

func (t *tx) ListActivitiesByVolunteer(ctx context.Context, volunteerID string) ([]db.ActivityLog, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+activityColumns+` FROM activity_log WHERE volunteer_id = ?
		ORDER BY activity_date DESC, created_at DESC, id
	`, volunteerID)
	if err != nil {
		return nil, wrapErr("query activities", err)
	}
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

func (t *tx) SumApprovedPoints(ctx context.Context, volunteerID string) (int, error) {
	var sum int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(points_awarded), 0) FROM activity_log
		WHERE volunteer_id = ? AND approved_by IS NOT NULL
	`, volunteerID).Scan(&sum)
	if err != nil {
		return 0, wrapErr("sum approved points", err)
	}
	return sum, nil
}
