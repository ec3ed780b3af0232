package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/invariants"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// LogActivityRequest records a contribution awaiting approval
type LogActivityRequest struct {
	VolunteerID     string          `validate:"required"`
	ProjectID       *string         `validate:"omitempty,min=1"`
	TeamID          *string         `validate:"omitempty,min=1"`
	Type            db.ActivityType `validate:"required,oneof=hours_logged task_completed training_attended"`
	DurationMinutes int             `validate:"min=0"`
	Date            time.Time       `validate:"required"`
	Description     string
}

// LogActivity inserts a pending activity with no points.
// When only a team is given the activity is attributed to the team's project
// as well.
func LogActivity(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, req LogActivityRequest) (*db.ActivityLog, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := requireSelfOrAdmin(actor, req.VolunteerID); err != nil {
		return nil, err
	}
	if _, err := tx.GetVolunteerProfile(ctx, req.VolunteerID); err != nil {
		return nil, lookupErr("volunteer", req.VolunteerID, err)
	}

	projectID := req.ProjectID
	if req.TeamID != nil {
		team, err := tx.GetTeam(ctx, *req.TeamID)
		if err != nil {
			return nil, lookupErr("team", *req.TeamID, err)
		}
		if projectID != nil && *projectID != team.ProjectID {
			return nil, apperr.WithMetadata(apperr.CodeInvalidValue,
				fmt.Sprintf("team %s does not belong to project %s", team.ID, *projectID),
				map[string]string{"team_id": team.ID, "project_id": *projectID})
		}
		member, err := isActiveMember(ctx, tx, team.ID, req.VolunteerID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, apperr.WithMetadata(apperr.CodeNotMember,
				fmt.Sprintf("volunteer %s is not an active member of team %s", req.VolunteerID, team.ID),
				map[string]string{"team_id": team.ID, "volunteer_id": req.VolunteerID})
		}
		projectID = &team.ProjectID
	}
	if projectID != nil {
		project, err := tx.GetProject(ctx, *projectID)
		if err != nil {
			return nil, lookupErr("project", *projectID, err)
		}
		if project.Status.Closed() {
			return nil, apperr.Newf(apperr.CodeProjectClosed, "project %s is %s", project.ID, project.Status)
		}
	}

	activity := db.ActivityLog{
		ID:              newID(),
		VolunteerID:     req.VolunteerID,
		ProjectID:       projectID,
		TeamID:          req.TeamID,
		ActivityType:    req.Type,
		DurationMinutes: req.DurationMinutes,
		ActivityDate:    req.Date.UTC().Truncate(time.Millisecond),
		Description:     req.Description,
		CreatedAt:       now(),
	}
	if err := tx.InsertActivity(ctx, &activity); err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}

	logger.Debug("Logged activity",
		zap.String("activity_id", activity.ID),
		zap.String("volunteer_id", activity.VolunteerID),
		zap.String("type", string(activity.ActivityType)),
		zap.Int("duration_minutes", activity.DurationMinutes))
	return &activity, nil
}

// ApproveResult is the state after an approval attempt
type ApproveResult struct {
	Activity db.ActivityLog
	// Balance is the volunteer's cached point balance after the call
	Balance int
	// AlreadyApproved is set when the activity was approved before this call
	// and nothing changed
	AlreadyApproved bool
}

// Approve finalizes an activity's points and credits the volunteer.
//
// The activity row is locked and its approval state checked in the same
// transaction that credits the balance, so approving twice never credits
// twice. A repeat approval returns the existing state without error.
func Approve(ctx context.Context, tx db.Tx, engine *invariants.Engine, logger *zap.Logger, actor model.Actor, activityID string, points int) (*ApproveResult, error) {
	if points < 0 {
		return nil, apperr.WithMetadata(apperr.CodeInvalidValue,
			fmt.Sprintf("points must not be negative, got %d", points),
			map[string]string{"field": "points"})
	}

	activity, err := tx.LockActivity(ctx, activityID)
	if err != nil {
		return nil, lookupErr("activity", activityID, err)
	}
	if err := engine.Validate(ctx, tx, invariants.ApproveOp{Activity: activity, ApproverID: actor.UserID}); err != nil {
		return nil, err
	}

	profile, err := tx.LockVolunteerProfile(ctx, activity.VolunteerID)
	if err != nil {
		return nil, lookupErr("volunteer", activity.VolunteerID, err)
	}

	if activity.Approved() {
		logger.Debug("Activity already approved",
			zap.String("activity_id", activityID),
			zap.String("approved_by", *activity.ApprovedBy))
		return &ApproveResult{Activity: *activity, Balance: profile.Points, AlreadyApproved: true}, nil
	}

	if err := tx.ApproveActivity(ctx, activityID, actor.UserID, points); err != nil {
		return nil, fmt.Errorf("failed to approve activity: %w", err)
	}

	lastActivity := activity.ActivityDate
	if profile.LastActivity != nil && profile.LastActivity.After(lastActivity) {
		lastActivity = *profile.LastActivity
	}
	balance := profile.Points + points
	if err := tx.SetVolunteerPoints(ctx, profile.UserID, balance, &lastActivity); err != nil {
		return nil, fmt.Errorf("failed to credit volunteer: %w", err)
	}

	approver := actor.UserID
	activity.ApprovedBy = &approver
	activity.PointsAwarded = points

	logger.Debug("Approved activity",
		zap.String("activity_id", activityID),
		zap.String("volunteer_id", activity.VolunteerID),
		zap.Int("points", points),
		zap.Int("balance", balance))
	return &ApproveResult{Activity: *activity, Balance: balance}, nil
}

// Reject discards a pending activity. Approved activity cannot be rejected.
func Reject(ctx context.Context, tx db.Tx, engine *invariants.Engine, logger *zap.Logger, actor model.Actor, activityID string) error {
	activity, err := tx.LockActivity(ctx, activityID)
	if err != nil {
		return lookupErr("activity", activityID, err)
	}
	if err := engine.Validate(ctx, tx, invariants.ApproveOp{Activity: activity, ApproverID: actor.UserID}); err != nil {
		return err
	}
	if activity.Approved() {
		return apperr.WithMetadata(apperr.CodeAlreadyApproved,
			fmt.Sprintf("activity %s is already approved", activityID),
			map[string]string{"activity_id": activityID})
	}
	if err := tx.DeleteActivity(ctx, activityID); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	logger.Debug("Rejected activity", zap.String("activity_id", activityID), zap.String("by", actor.UserID))
	return nil
}

// ListActivities returns a volunteer's activity, newest first
func ListActivities(ctx context.Context, tx db.Tx, actor model.Actor, volunteerID string) ([]db.ActivityLog, error) {
	if err := requireSelfOrAdmin(actor, volunteerID); err != nil {
		return nil, err
	}
	if _, err := tx.GetVolunteerProfile(ctx, volunteerID); err != nil {
		return nil, lookupErr("volunteer", volunteerID, err)
	}
	activities, err := tx.ListActivitiesByVolunteer(ctx, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}
