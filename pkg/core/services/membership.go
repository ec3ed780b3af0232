package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/invariants"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// CreateTeam adds a team to a project. Team names are unique per project.
func CreateTeam(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, projectID, name string, maxMembers int) (*db.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.CodeInvalidValue, "team name is required")
	}
	if maxMembers < 1 {
		return nil, apperr.WithMetadata(apperr.CodeInvalidValue,
			fmt.Sprintf("max members must be at least 1, got %d", maxMembers),
			map[string]string{"field": "max_members"})
	}
	project, err := requireProjectOwner(ctx, tx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status.Closed() {
		return nil, apperr.Newf(apperr.CodeProjectClosed, "project %s is %s", projectID, project.Status)
	}

	team := db.Team{
		ID:         newID(),
		ProjectID:  projectID,
		Name:       name,
		MaxMembers: maxMembers,
		CreatedAt:  now(),
	}
	if err := tx.InsertTeam(ctx, &team); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, apperr.WithMetadata(apperr.CodeAlreadyExists,
				fmt.Sprintf("team %q already exists in project %s", name, projectID),
				map[string]string{"project_id": projectID, "name": name})
		}
		return nil, fmt.Errorf("failed to insert team: %w", err)
	}

	logger.Debug("Created team",
		zap.String("team_id", team.ID),
		zap.String("project_id", projectID),
		zap.Int("max_members", maxMembers))
	return &team, nil
}

// Join adds a volunteer to a team.
//
// The team row is locked before anything else is read, so the capacity
// check and the membership write see the same state. A closed membership
// from an earlier stint is reactivated rather than duplicated, and keeps
// its original join time.
func Join(ctx context.Context, tx db.Tx, engine *invariants.Engine, logger *zap.Logger, actor model.Actor, teamID, volunteerID string) (*db.TeamMembership, error) {
	if err := requireSelfOrAdmin(actor, volunteerID); err != nil {
		return nil, err
	}

	team, err := tx.LockTeam(ctx, teamID)
	if err != nil {
		return nil, lookupErr("team", teamID, err)
	}
	user, err := tx.GetUser(ctx, volunteerID)
	if err != nil {
		return nil, lookupErr("user", volunteerID, err)
	}
	if !user.IsActive {
		return nil, unauthorized("user %s is deactivated", volunteerID)
	}
	if _, err := tx.GetVolunteerProfile(ctx, volunteerID); err != nil {
		return nil, lookupErr("volunteer", volunteerID, err)
	}
	project, err := tx.GetProject(ctx, team.ProjectID)
	if err != nil {
		return nil, lookupErr("project", team.ProjectID, err)
	}
	if project.Status.Closed() {
		return nil, apperr.Newf(apperr.CodeProjectClosed, "project %s is %s", project.ID, project.Status)
	}

	existing, err := tx.GetMembership(ctx, teamID, volunteerID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if existing != nil && existing.IsActive {
		return nil, apperr.WithMetadata(apperr.CodeAlreadyMember,
			fmt.Sprintf("volunteer %s is already a member of team %s", volunteerID, teamID),
			map[string]string{"team_id": teamID, "volunteer_id": volunteerID})
	}

	if err := engine.Validate(ctx, tx, invariants.JoinOp{TeamID: teamID, VolunteerID: volunteerID}); err != nil {
		return nil, err
	}

	if existing != nil {
		if err := tx.ActivateMembership(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to reactivate membership: %w", err)
		}
		existing.IsActive = true
		logger.Debug("Reactivated membership", zap.String("team_id", teamID), zap.String("volunteer_id", volunteerID))
		return existing, nil
	}

	membership := db.TeamMembership{
		ID:          newID(),
		TeamID:      teamID,
		VolunteerID: volunteerID,
		IsActive:    true,
		JoinedAt:    now(),
	}
	if err := tx.InsertMembership(ctx, &membership); err != nil {
		return nil, fmt.Errorf("failed to insert membership: %w", err)
	}
	logger.Debug("Joined team", zap.String("team_id", teamID), zap.String("volunteer_id", volunteerID))
	return &membership, nil
}

// LeaveResult reports what Leave changed
type LeaveResult struct {
	Membership    db.TeamMembership
	LeaderCleared bool
}

// Leave closes a volunteer's membership. If they led the team the leader is
// cleared in the same transaction.
func Leave(ctx context.Context, tx db.Tx, engine *invariants.Engine, logger *zap.Logger, actor model.Actor, teamID, volunteerID string) (*LeaveResult, error) {
	team, err := tx.LockTeam(ctx, teamID)
	if err != nil {
		return nil, lookupErr("team", teamID, err)
	}
	if !actor.Is(volunteerID) {
		if _, err := requireProjectOwner(ctx, tx, actor, team.ProjectID); err != nil {
			return nil, err
		}
	}

	membership, err := tx.GetMembership(ctx, teamID, volunteerID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if membership == nil || !membership.IsActive {
		return nil, apperr.WithMetadata(apperr.CodeNotMember,
			fmt.Sprintf("volunteer %s is not an active member of team %s", volunteerID, teamID),
			map[string]string{"team_id": teamID, "volunteer_id": volunteerID})
	}

	if err := tx.DeactivateMembership(ctx, membership.ID); err != nil {
		return nil, fmt.Errorf("failed to deactivate membership: %w", err)
	}
	cleared, err := engine.CompensateLeave(ctx, tx, teamID, volunteerID)
	if err != nil {
		return nil, err
	}

	membership.IsActive = false
	logger.Debug("Left team",
		zap.String("team_id", teamID),
		zap.String("volunteer_id", volunteerID),
		zap.Bool("leader_cleared", cleared))
	return &LeaveResult{Membership: *membership, LeaderCleared: cleared}, nil
}

// AssignLeader makes an active member the team's leader. On rejection the
// previous leader stays in place.
func AssignLeader(ctx context.Context, tx db.Tx, engine *invariants.Engine, logger *zap.Logger, actor model.Actor, teamID, volunteerID string) (*db.Team, error) {
	team, err := tx.LockTeam(ctx, teamID)
	if err != nil {
		return nil, lookupErr("team", teamID, err)
	}
	if _, err := requireProjectOwner(ctx, tx, actor, team.ProjectID); err != nil {
		return nil, err
	}
	if err := engine.Validate(ctx, tx, invariants.AssignLeaderOp{TeamID: teamID, VolunteerID: volunteerID}); err != nil {
		return nil, err
	}
	if err := tx.SetTeamLeader(ctx, teamID, &volunteerID); err != nil {
		return nil, fmt.Errorf("failed to set team leader: %w", err)
	}

	logger.Debug("Assigned team leader", zap.String("team_id", teamID), zap.String("volunteer_id", volunteerID))
	team.TeamLeaderID = &volunteerID
	return team, nil
}

// ListMembers returns a team's memberships, closed ones included unless
// activeOnly is set. Only admins, the owning charity and active members may
// see the roster.
func ListMembers(ctx context.Context, tx db.Tx, actor model.Actor, teamID string, activeOnly bool) ([]db.TeamMembership, error) {
	team, err := tx.GetTeam(ctx, teamID)
	if err != nil {
		return nil, lookupErr("team", teamID, err)
	}
	if err := requireTeamAccess(ctx, tx, actor, team); err != nil {
		return nil, err
	}
	memberships, err := tx.ListTeamMemberships(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	if !activeOnly {
		return memberships, nil
	}
	active := memberships[:0]
	for _, m := range memberships {
		if m.IsActive {
			active = append(active, m)
		}
	}
	return active, nil
}
