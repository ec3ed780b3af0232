package invariants

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// CapacityRule keeps a team's active membership count at or below
// max_members.
//
// The team row is read through LockTeam so two concurrent joins cannot both
// observe the same stale count.
type CapacityRule struct{}

func (r *CapacityRule) Name() string { return "Capacity" }

func (r *CapacityRule) Applies(op Operation) bool {
	_, ok := op.(JoinOp)
	return ok
}

func (r *CapacityRule) Check(ctx context.Context, tx db.Tx, op Operation) error {
	join := op.(JoinOp)

	team, err := tx.LockTeam(ctx, join.TeamID)
	if err != nil {
		return notFound("team", join.TeamID, err)
	}
	active, err := tx.CountActiveMemberships(ctx, team.ID)
	if err != nil {
		return fmt.Errorf("failed to count active memberships: %w", err)
	}
	if active+1 > team.MaxMembers {
		return apperr.WithMetadata(apperr.CodeCapacityExceeded,
			fmt.Sprintf("team %q is full (%d/%d)", team.Name, active, team.MaxMembers),
			map[string]string{
				"team_id":     team.ID,
				"max_members": strconv.Itoa(team.MaxMembers),
			})
	}
	return nil
}

// LeaderRule requires a team leader to hold an active membership in that
// team. Only volunteers can hold memberships, so this also rules out other
// roles.
type LeaderRule struct{}

func (r *LeaderRule) Name() string { return "Leader" }

func (r *LeaderRule) Applies(op Operation) bool {
	_, ok := op.(AssignLeaderOp)
	return ok
}

func (r *LeaderRule) Check(ctx context.Context, tx db.Tx, op Operation) error {
	assign := op.(AssignLeaderOp)

	if _, err := tx.LockTeam(ctx, assign.TeamID); err != nil {
		return notFound("team", assign.TeamID, err)
	}
	membership, err := tx.GetMembership(ctx, assign.TeamID, assign.VolunteerID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("failed to get membership: %w", err)
	}
	if membership == nil || !membership.IsActive {
		return apperr.WithMetadata(apperr.CodeInvalidLeader,
			fmt.Sprintf("volunteer %s is not an active member of team %s", assign.VolunteerID, assign.TeamID),
			map[string]string{"team_id": assign.TeamID, "volunteer_id": assign.VolunteerID})
	}
	return nil
}

type existsFunc func(ctx context.Context, tx db.Tx, id string) error

// RatingTargetRule resolves a polymorphic rating target through a dispatch
// table keyed by entity type
type RatingTargetRule struct {
	lookups map[db.RatedEntityType]existsFunc
}

func NewRatingTargetRule() *RatingTargetRule {
	return &RatingTargetRule{
		lookups: map[db.RatedEntityType]existsFunc{
			db.RatedVolunteer: func(ctx context.Context, tx db.Tx, id string) error {
				_, err := tx.GetVolunteerProfile(ctx, id)
				return err
			},
			db.RatedCharity: func(ctx context.Context, tx db.Tx, id string) error {
				_, err := tx.GetCharityProfile(ctx, id)
				return err
			},
			db.RatedProject: func(ctx context.Context, tx db.Tx, id string) error {
				_, err := tx.GetProject(ctx, id)
				return err
			},
			db.RatedTeam: func(ctx context.Context, tx db.Tx, id string) error {
				_, err := tx.GetTeam(ctx, id)
				return err
			},
		},
	}
}

func (r *RatingTargetRule) Name() string { return "RatingTarget" }

func (r *RatingTargetRule) Applies(op Operation) bool {
	_, ok := op.(RateOp)
	return ok
}

func (r *RatingTargetRule) Check(ctx context.Context, tx db.Tx, op Operation) error {
	rate := op.(RateOp)

	lookup, ok := r.lookups[rate.TargetType]
	if !ok {
		return apperr.Newf(apperr.CodeInvalidValue, "unknown rating target type %q", rate.TargetType)
	}
	if err := lookup(ctx, tx, rate.TargetID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperr.WithMetadata(apperr.CodeDanglingReference,
				fmt.Sprintf("%s %s does not exist", rate.TargetType, rate.TargetID),
				map[string]string{"target_type": string(rate.TargetType), "target_id": rate.TargetID})
		}
		return fmt.Errorf("failed to look up %s: %w", rate.TargetType, err)
	}
	return nil
}

// ApprovalRule checks the approver against storage rather than trusting the
// asserted role. Admins approve anything. A charity approves only activity
// attributed to one of its own projects, directly or through a team.
type ApprovalRule struct{}

func (r *ApprovalRule) Name() string { return "ApprovalAuthority" }

func (r *ApprovalRule) Applies(op Operation) bool {
	_, ok := op.(ApproveOp)
	return ok
}

func (r *ApprovalRule) Check(ctx context.Context, tx db.Tx, op Operation) error {
	approve := op.(ApproveOp)
	activity := approve.Activity

	approver, err := tx.GetUser(ctx, approve.ApproverID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return unauthorized(approve, "approver does not exist")
		}
		return fmt.Errorf("failed to get approver: %w", err)
	}
	if !approver.IsActive {
		return unauthorized(approve, "approver is deactivated")
	}

	switch approver.Role {
	case db.RoleAdmin:
		return nil
	case db.RoleCharity:
	default:
		return unauthorized(approve, fmt.Sprintf("role %s cannot approve activity", approver.Role))
	}

	if activity.ProjectID == nil && activity.TeamID == nil {
		return unauthorized(approve, "activity without a project or team can only be approved by an admin")
	}
	if activity.ProjectID != nil {
		owner, err := projectOwner(ctx, tx, *activity.ProjectID)
		if err != nil {
			return err
		}
		if owner != approver.ID {
			return unauthorized(approve, "approver does not own the activity's project")
		}
	}
	if activity.TeamID != nil {
		team, err := tx.GetTeam(ctx, *activity.TeamID)
		if err != nil {
			return notFound("team", *activity.TeamID, err)
		}
		owner, err := projectOwner(ctx, tx, team.ProjectID)
		if err != nil {
			return err
		}
		if owner != approver.ID {
			return unauthorized(approve, "approver does not own the activity's team")
		}
	}
	return nil
}

func projectOwner(ctx context.Context, tx db.Tx, projectID string) (string, error) {
	project, err := tx.GetProject(ctx, projectID)
	if err != nil {
		return "", notFound("project", projectID, err)
	}
	return project.CharityID, nil
}

func unauthorized(op ApproveOp, reason string) error {
	return apperr.WithMetadata(apperr.CodeUnauthorized, reason, map[string]string{
		"activity_id": op.Activity.ID,
		"approver_id": op.ApproverID,
	})
}
