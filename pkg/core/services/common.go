package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

var validate = validator.New()

// validateRequest reports the first failing field as INVALID_VALUE
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperr.WithMetadata(apperr.CodeInvalidValue,
			fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag()),
			map[string]string{"field": fe.Field(), "rule": fe.Tag()})
	}
	return apperr.Wrap(apperr.CodeInvalidValue, "invalid request", err)
}

func newID() string {
	return uuid.New().String()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// lookupErr turns a missing row into NOT_FOUND and wraps anything else
func lookupErr(entity, id string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperr.WithMetadata(apperr.CodeNotFound, fmt.Sprintf("%s %s not found", entity, id),
			map[string]string{"entity": entity, "id": id})
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

func unauthorized(format string, args ...any) error {
	return apperr.Newf(apperr.CodeUnauthorized, format, args...)
}

func requireAdmin(actor model.Actor) error {
	if !actor.IsAdmin() {
		return unauthorized("admin role required")
	}
	return nil
}

func requireSelfOrAdmin(actor model.Actor, userID string) error {
	if actor.IsAdmin() || actor.Is(userID) {
		return nil
	}
	return unauthorized("user %s may not act for %s", actor.UserID, userID)
}

// requireProjectOwner loads the project and checks the actor is its charity
// or an admin
func requireProjectOwner(ctx context.Context, tx db.Tx, actor model.Actor, projectID string) (*db.Project, error) {
	project, err := tx.GetProject(ctx, projectID)
	if err != nil {
		return nil, lookupErr("project", projectID, err)
	}
	if actor.IsAdmin() || actor.Is(project.CharityID) {
		return project, nil
	}
	return nil, unauthorized("only the owning charity may manage project %s", projectID)
}

// requireTeamAccess allows admins, the owning charity, and active members
func requireTeamAccess(ctx context.Context, tx db.Tx, actor model.Actor, team *db.Team) error {
	if actor.IsAdmin() {
		return nil
	}
	project, err := tx.GetProject(ctx, team.ProjectID)
	if err != nil {
		return lookupErr("project", team.ProjectID, err)
	}
	if actor.Is(project.CharityID) {
		return nil
	}
	active, err := isActiveMember(ctx, tx, team.ID, actor.UserID)
	if err != nil {
		return err
	}
	if !active {
		return apperr.WithMetadata(apperr.CodeNotMember,
			fmt.Sprintf("user %s is not an active member of team %s", actor.UserID, team.ID),
			map[string]string{"team_id": team.ID, "user_id": actor.UserID})
	}
	return nil
}

func isActiveMember(ctx context.Context, tx db.Tx, teamID, volunteerID string) (bool, error) {
	membership, err := tx.GetMembership(ctx, teamID, volunteerID)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get membership: %w", err)
	}
	return membership.IsActive, nil
}

// purgeTargetRatings removes ratings that point at a row about to be deleted.
// Ratings have no foreign key to their target, so cascades never reach them.
func purgeTargetRatings(ctx context.Context, tx db.Tx, entityType db.RatedEntityType, id string) error {
	if err := tx.DeleteRatingsForTarget(ctx, entityType, id); err != nil {
		return fmt.Errorf("failed to delete ratings for %s %s: %w", entityType, id, err)
	}
	return nil
}

// purgeProjectRatings removes ratings of a project and of every team in it
func purgeProjectRatings(ctx context.Context, tx db.Tx, projectID string) error {
	teams, err := tx.ListTeamsByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to list teams: %w", err)
	}
	for _, team := range teams {
		if err := purgeTargetRatings(ctx, tx, db.RatedTeam, team.ID); err != nil {
			return err
		}
	}
	return purgeTargetRatings(ctx, tx, db.RatedProject, projectID)
}
