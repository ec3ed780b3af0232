package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

func TestCreateProject(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	create := func(actor model.Actor, req CreateProjectRequest) (*db.Project, error) {
		var project *db.Project
		err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
			var err error
			project, err = CreateProject(ctx, tx, f.logger, actor, req)
			return err
		})
		return project, err
	}

	project, err := create(charityActor(charity), CreateProjectRequest{
		CharityID: charity, Title: " Winter coats ", RequiredVolunteers: 4, StartDate: &start, EndDate: &end,
	})
	require.NoError(t, err)
	assert.Equal(t, "Winter coats", project.Title)
	assert.Equal(t, db.ProjectPending, project.Status)

	_, err = create(charityActor(charity), CreateProjectRequest{CharityID: charity, Title: "x", RequiredVolunteers: 0})
	assert.ErrorIs(t, err, apperr.ErrInvalidValue)

	_, err = create(charityActor(charity), CreateProjectRequest{
		CharityID: charity, Title: "x", RequiredVolunteers: 1, StartDate: &end, EndDate: &start,
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidValue)

	_, err = create(charityActor(f.seed.Charity("Library")), CreateProjectRequest{CharityID: charity, Title: "x", RequiredVolunteers: 1})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	volunteer := f.seed.Volunteer("alice")
	_, err = create(adminActor(f.seed.Admin("root")), CreateProjectRequest{CharityID: volunteer, Title: "x", RequiredVolunteers: 1})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetProjectStatus_Transitions(t *testing.T) {
	tests := []struct {
		from db.ProjectStatus
		to   db.ProjectStatus
		ok   bool
	}{
		{db.ProjectPending, db.ProjectActive, true},
		{db.ProjectPending, db.ProjectCancelled, true},
		{db.ProjectPending, db.ProjectCompleted, false},
		{db.ProjectActive, db.ProjectCompleted, true},
		{db.ProjectActive, db.ProjectCancelled, true},
		{db.ProjectActive, db.ProjectPending, false},
		{db.ProjectCompleted, db.ProjectActive, false},
		{db.ProjectCancelled, db.ProjectActive, false},
	}

	f := newFixture(t)
	charity := f.seed.Charity("Shelter")

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			project := f.seed.Project(charity, tt.from)
			err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
				_, err := SetProjectStatus(ctx, tx, f.logger, charityActor(charity), project, tt.to)
				return err
			})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
		})
	}
}

func TestDeleteProject(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	project := f.seed.Project(charity, db.ProjectActive)
	team := f.seed.Team(project, 3)
	volunteer := f.seed.Volunteer("alice")
	f.seed.Member(team, volunteer)
	activity := f.seed.Activity(volunteer, &project, &team, 45)

	_, err := f.rate(t, volunteerActor(volunteer), RateRequest{TargetType: db.RatedTeam, TargetID: team, Value: 5})
	require.NoError(t, err)

	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		return DeleteProject(ctx, tx, f.logger, volunteerActor(volunteer), project)
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		return DeleteProject(ctx, tx, f.logger, charityActor(charity), project)
	}))

	require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		ratings, err := tx.ListRatingsForTarget(ctx, db.RatedTeam, team)
		require.NoError(t, err)
		assert.Empty(t, ratings)

		_, err = tx.GetTeam(ctx, team)
		assert.ErrorIs(t, err, db.ErrNotFound)

		// history survives with its attribution cleared
		kept, err := tx.GetActivity(ctx, activity)
		require.NoError(t, err)
		assert.Nil(t, kept.ProjectID)
		assert.Nil(t, kept.TeamID)
		return nil
	}))
}

func TestSkills(t *testing.T) {
	f := newFixture(t)
	admin := adminActor(f.seed.Admin("root"))
	charity := f.seed.Charity("Shelter")
	project := f.seed.Project(charity, db.ProjectActive)
	volunteer := f.seed.Volunteer("alice")

	var skill *db.Skill
	require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		var err error
		skill, err = CreateSkill(ctx, tx, f.logger, admin, "First aid")
		return err
	}))

	err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := CreateSkill(ctx, tx, f.logger, admin, "First aid")
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := CreateSkill(ctx, tx, f.logger, charityActor(charity), "Cooking")
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	for i := 0; i < 2; i++ {
		require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
			return AddProjectSkill(ctx, tx, charityActor(charity), project, skill.ID)
		}))
	}

	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := SetVolunteerSkill(ctx, tx, volunteerActor(volunteer), volunteer, skill.ID, 6)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidValue)

	for _, proficiency := range []int{2, 4} {
		require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
			_, err := SetVolunteerSkill(ctx, tx, volunteerActor(volunteer), volunteer, skill.ID, proficiency)
			return err
		}))
	}

	require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		projectSkills, err := tx.ListProjectSkills(ctx, project)
		require.NoError(t, err)
		assert.Len(t, projectSkills, 1)

		volunteerSkills, err := tx.ListVolunteerSkills(ctx, volunteer)
		require.NoError(t, err)
		require.Len(t, volunteerSkills, 1)
		assert.Equal(t, 4, volunteerSkills[0].Proficiency)
		return nil
	}))
}
