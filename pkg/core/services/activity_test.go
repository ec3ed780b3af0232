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

func (f *fixture) approve(t *testing.T, actor model.Actor, activityID string, points int) (*ApproveResult, error) {
	var result *ApproveResult
	err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		var err error
		result, err = Approve(ctx, tx, f.engine, f.logger, actor, activityID, points)
		return err
	})
	return result, err
}

func (f *fixture) logActivity(t *testing.T, actor model.Actor, req LogActivityRequest) (*db.ActivityLog, error) {
	var activity *db.ActivityLog
	err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		var err error
		activity, err = LogActivity(ctx, tx, f.logger, actor, req)
		return err
	})
	return activity, err
}

func TestApprove_CreditsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	project := f.seed.Project(charity, db.ProjectActive)
	volunteer := f.seed.Volunteer("alice")

	date := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	activity, err := f.logActivity(t, volunteerActor(volunteer), LogActivityRequest{
		VolunteerID:     volunteer,
		ProjectID:       &project,
		Type:            db.ActivityHoursLogged,
		DurationMinutes: 120,
		Date:            date,
	})
	require.NoError(t, err)
	assert.False(t, activity.Approved())
	assert.Zero(t, activity.PointsAwarded)

	before := f.profile(t, volunteer)
	assert.Nil(t, before.LastActivity)

	result, err := f.approve(t, charityActor(charity), activity.ID, 10)
	require.NoError(t, err)
	assert.False(t, result.AlreadyApproved)
	assert.Equal(t, 10, result.Balance)
	assert.Equal(t, 10, result.Activity.PointsAwarded)

	after := f.profile(t, volunteer)
	assert.Equal(t, before.Points+10, after.Points)
	require.NotNil(t, after.LastActivity)
	assert.True(t, date.Equal(*after.LastActivity))

	// a second approval with a different value changes nothing
	again, err := f.approve(t, charityActor(charity), activity.ID, 50)
	require.NoError(t, err)
	assert.True(t, again.AlreadyApproved)
	assert.Equal(t, 10, again.Activity.PointsAwarded)
	assert.Equal(t, 10, again.Balance)
	assert.Equal(t, 10, f.profile(t, volunteer).Points)
}

func TestApprove_Rejections(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	project := f.seed.Project(charity, db.ProjectActive)
	volunteer := f.seed.Volunteer("alice")
	activity := f.seed.Activity(volunteer, &project, nil, 30)

	_, err := f.approve(t, charityActor(charity), activity, -1)
	assert.ErrorIs(t, err, apperr.ErrInvalidValue)

	_, err = f.approve(t, volunteerActor(volunteer), activity, 5)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.approve(t, charityActor(f.seed.Charity("Library")), activity, 5)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.approve(t, charityActor(charity), "missing", 5)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Zero(t, f.profile(t, volunteer).Points)
}

func TestApprove_LastActivityNeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	admin := adminActor(f.seed.Admin("root"))
	volunteer := f.seed.Volunteer("alice")

	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	older := recent.AddDate(0, -1, 0)

	for _, date := range []time.Time{recent, older} {
		activity, err := f.logActivity(t, volunteerActor(volunteer), LogActivityRequest{
			VolunteerID: volunteer, Type: db.ActivityTrainingAttended, Date: date,
		})
		require.NoError(t, err)
		_, err = f.approve(t, admin, activity.ID, 2)
		require.NoError(t, err)
	}

	profile := f.profile(t, volunteer)
	assert.Equal(t, 4, profile.Points)
	require.NotNil(t, profile.LastActivity)
	assert.True(t, recent.Equal(*profile.LastActivity))
}

func TestLogActivity_Validation(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	project := f.seed.Project(charity, db.ProjectActive)
	otherProject := f.seed.Project(charity, db.ProjectActive)
	cancelled := f.seed.Project(charity, db.ProjectCancelled)
	team := f.seed.Team(project, 3)
	volunteer := f.seed.Volunteer("alice")
	date := time.Now()

	tests := []struct {
		name    string
		req     LogActivityRequest
		wantErr *apperr.Error
	}{
		{"unknown type", LogActivityRequest{VolunteerID: volunteer, Type: "napping", Date: date}, apperr.ErrInvalidValue},
		{"negative duration", LogActivityRequest{VolunteerID: volunteer, Type: db.ActivityHoursLogged, DurationMinutes: -5, Date: date}, apperr.ErrInvalidValue},
		{"missing date", LogActivityRequest{VolunteerID: volunteer, Type: db.ActivityHoursLogged}, apperr.ErrInvalidValue},
		{"missing project", LogActivityRequest{VolunteerID: volunteer, ProjectID: strPtr("nope"), Type: db.ActivityHoursLogged, Date: date}, apperr.ErrNotFound},
		{"cancelled project", LogActivityRequest{VolunteerID: volunteer, ProjectID: &cancelled, Type: db.ActivityHoursLogged, Date: date}, apperr.ErrProjectClosed},
		{"team outside project", LogActivityRequest{VolunteerID: volunteer, ProjectID: &otherProject, TeamID: &team, Type: db.ActivityHoursLogged, Date: date}, apperr.ErrInvalidValue},
		{"not on the team", LogActivityRequest{VolunteerID: volunteer, TeamID: &team, Type: db.ActivityHoursLogged, Date: date}, apperr.ErrNotMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.logActivity(t, volunteerActor(volunteer), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.logActivity(t, volunteerActor(f.seed.Volunteer("bob")), LogActivityRequest{
		VolunteerID: volunteer, Type: db.ActivityHoursLogged, Date: date,
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestLogActivity_TeamImpliesProject(t *testing.T) {
	f := newFixture(t)
	project := f.seed.Project(f.seed.Charity("Shelter"), db.ProjectActive)
	team := f.seed.Team(project, 3)
	volunteer := f.seed.Volunteer("alice")
	f.seed.Member(team, volunteer)

	activity, err := f.logActivity(t, volunteerActor(volunteer), LogActivityRequest{
		VolunteerID: volunteer, TeamID: &team, Type: db.ActivityTaskCompleted, Date: time.Now(),
	})
	require.NoError(t, err)
	require.NotNil(t, activity.ProjectID)
	assert.Equal(t, project, *activity.ProjectID)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	project := f.seed.Project(charity, db.ProjectActive)
	volunteer := f.seed.Volunteer("alice")
	pending := f.seed.Activity(volunteer, &project, nil, 60)
	approved := f.seed.Activity(volunteer, &project, nil, 60)
	_, err := f.approve(t, charityActor(charity), approved, 3)
	require.NoError(t, err)

	reject := func(actor model.Actor, id string) error {
		return inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
			return Reject(ctx, tx, f.engine, f.logger, actor, id)
		})
	}

	assert.ErrorIs(t, reject(volunteerActor(volunteer), pending), apperr.ErrUnauthorized)
	stranger := f.seed.Volunteer("mallory")
	assert.ErrorIs(t, reject(volunteerActor(stranger), approved), apperr.ErrUnauthorized)
	assert.ErrorIs(t, reject(charityActor(charity), approved), apperr.ErrAlreadyApproved)
	require.NoError(t, reject(charityActor(charity), pending))
	assert.ErrorIs(t, reject(charityActor(charity), pending), apperr.ErrNotFound)

	var activities []db.ActivityLog
	require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		var err error
		activities, err = ListActivities(ctx, tx, volunteerActor(volunteer), volunteer)
		return err
	}))
	require.Len(t, activities, 1)
	assert.Equal(t, approved, activities[0].ID)
}
