package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

// CreateProjectRequest describes a new project. New projects start pending.
type CreateProjectRequest struct {
	CharityID          string `validate:"required"`
	Title              string `validate:"required,max=200"`
	Description        string
	RequiredVolunteers int `validate:"min=1"`
	StartDate          *time.Time
	EndDate            *time.Time
}

// CreateProject creates a project owned by a charity
func CreateProject(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, req CreateProjectRequest) (*db.Project, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := requireSelfOrAdmin(actor, req.CharityID); err != nil {
		return nil, err
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, apperr.New(apperr.CodeInvalidValue, "end date is before start date")
	}
	if _, err := tx.GetCharityProfile(ctx, req.CharityID); err != nil {
		return nil, lookupErr("charity", req.CharityID, err)
	}

	project := db.Project{
		ID:                 newID(),
		CharityID:          req.CharityID,
		Title:              req.Title,
		Description:        req.Description,
		Status:             db.ProjectPending,
		RequiredVolunteers: req.RequiredVolunteers,
		StartDate:          utcPtr(req.StartDate),
		EndDate:            utcPtr(req.EndDate),
		CreatedAt:          now(),
	}
	if err := tx.InsertProject(ctx, &project); err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	logger.Debug("Created project",
		zap.String("project_id", project.ID),
		zap.String("charity_id", project.CharityID))
	return &project, nil
}

var projectTransitions = map[db.ProjectStatus][]db.ProjectStatus{
	db.ProjectPending: {db.ProjectActive, db.ProjectCancelled},
	db.ProjectActive:  {db.ProjectCompleted, db.ProjectCancelled},
}

// SetProjectStatus moves a project along its lifecycle.
// Completed and cancelled are terminal.
func SetProjectStatus(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, projectID string, status db.ProjectStatus) (*db.Project, error) {
	project, err := requireProjectOwner(ctx, tx, actor, projectID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, next := range projectTransitions[project.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperr.WithMetadata(apperr.CodeInvalidTransition,
			fmt.Sprintf("project cannot move from %s to %s", project.Status, status),
			map[string]string{"project_id": projectID, "from": string(project.Status), "to": string(status)})
	}

	if err := tx.SetProjectStatus(ctx, projectID, status); err != nil {
		return nil, fmt.Errorf("failed to set project status: %w", err)
	}
	logger.Debug("Project status changed",
		zap.String("project_id", projectID),
		zap.String("from", string(project.Status)),
		zap.String("to", string(status)))

	project.Status = status
	return project, nil
}

// DeleteProject removes a project, its teams, memberships and messages.
// Activity rows keep their history with the project reference cleared.
func DeleteProject(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, projectID string) error {
	if _, err := requireProjectOwner(ctx, tx, actor, projectID); err != nil {
		return err
	}
	if err := purgeProjectRatings(ctx, tx, projectID); err != nil {
		return err
	}
	if err := tx.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	logger.Info("Deleted project", zap.String("project_id", projectID))
	return nil
}

// CreateSkill adds a skill to the global lookup
func CreateSkill(ctx context.Context, tx db.Tx, logger *zap.Logger, actor model.Actor, name string) (*db.Skill, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.CodeInvalidValue, "skill name is required")
	}
	skill := db.Skill{ID: newID(), Name: name}
	if err := tx.InsertSkill(ctx, &skill); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return nil, apperr.Newf(apperr.CodeAlreadyExists, "skill %q already exists", name)
		}
		return nil, fmt.Errorf("failed to insert skill: %w", err)
	}
	logger.Debug("Created skill", zap.String("skill_id", skill.ID), zap.String("name", name))
	return &skill, nil
}

// AddProjectSkill records that a project needs a skill. Adding it twice is
// a no-op.
func AddProjectSkill(ctx context.Context, tx db.Tx, actor model.Actor, projectID, skillID string) error {
	if _, err := requireProjectOwner(ctx, tx, actor, projectID); err != nil {
		return err
	}
	if _, err := tx.GetSkill(ctx, skillID); err != nil {
		return lookupErr("skill", skillID, err)
	}
	if err := tx.AddProjectSkill(ctx, projectID, skillID); err != nil {
		return fmt.Errorf("failed to add project skill: %w", err)
	}
	return nil
}

// SetVolunteerSkill sets a volunteer's proficiency in a skill
func SetVolunteerSkill(ctx context.Context, tx db.Tx, actor model.Actor, volunteerID, skillID string, proficiency int) (*db.VolunteerSkill, error) {
	if err := requireSelfOrAdmin(actor, volunteerID); err != nil {
		return nil, err
	}
	if proficiency < 1 || proficiency > 5 {
		return nil, apperr.WithMetadata(apperr.CodeInvalidValue,
			fmt.Sprintf("proficiency must be between 1 and 5, got %d", proficiency),
			map[string]string{"field": "proficiency"})
	}
	if _, err := tx.GetVolunteerProfile(ctx, volunteerID); err != nil {
		return nil, lookupErr("volunteer", volunteerID, err)
	}
	if _, err := tx.GetSkill(ctx, skillID); err != nil {
		return nil, lookupErr("skill", skillID, err)
	}
	skill := db.VolunteerSkill{VolunteerID: volunteerID, SkillID: skillID, Proficiency: proficiency}
	if err := tx.UpsertVolunteerSkill(ctx, &skill); err != nil {
		return nil, fmt.Errorf("failed to set volunteer skill: %w", err)
	}
	return &skill, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
