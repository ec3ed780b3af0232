package invariants

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/db"
	"github.com/jakechorley/charity-hub/pkg/sqlite/sqlitetest"
)

// validate runs the engine in a rolled-back transaction
func validate(t *testing.T, store db.Store, op Operation) error {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	return NewEngine(zap.NewNop()).Validate(ctx, tx, op)
}

func TestCapacityRule(t *testing.T) {
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)

	charity := seed.Charity("Food Bank")
	project := seed.Project(charity, db.ProjectActive)
	team := seed.Team(project, 2)
	seed.Member(team, seed.Volunteer("alice"))

	assert.NoError(t, validate(t, store, JoinOp{TeamID: team, VolunteerID: seed.Volunteer("bob")}))

	seed.Member(team, seed.Volunteer("carol"))
	err := validate(t, store, JoinOp{TeamID: team, VolunteerID: seed.Volunteer("dave")})
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, team, appErr.Metadata["team_id"])
	assert.Equal(t, "2", appErr.Metadata["max_members"])
}

func TestCapacityRule_InactiveMembershipsDoNotCount(t *testing.T) {
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)

	team := seed.Team(seed.Project(seed.Charity("Shelter"), db.ProjectActive), 1)
	membership := seed.Member(team, seed.Volunteer("alice"))
	seed.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.DeactivateMembership(ctx, membership)
	})

	assert.NoError(t, validate(t, store, JoinOp{TeamID: team, VolunteerID: seed.Volunteer("bob")}))
}

func TestCapacityRule_UnknownTeam(t *testing.T) {
	store := sqlitetest.Open(t)
	err := validate(t, store, JoinOp{TeamID: "missing", VolunteerID: "v"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestLeaderRule(t *testing.T) {
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)

	team := seed.Team(seed.Project(seed.Charity("Shelter"), db.ProjectActive), 5)
	member := seed.Volunteer("alice")
	seed.Member(team, member)
	outsider := seed.Volunteer("bob")
	former := seed.Volunteer("carol")
	formerMembership := seed.Member(team, former)
	seed.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.DeactivateMembership(ctx, formerMembership)
	})

	tests := []struct {
		name      string
		volunteer string
		wantErr   error
	}{
		{"active member", member, nil},
		{"never joined", outsider, apperr.ErrInvalidLeader},
		{"membership closed", former, apperr.ErrInvalidLeader},
		{"not a volunteer", seed.Admin("root"), apperr.ErrInvalidLeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(t, store, AssignLeaderOp{TeamID: team, VolunteerID: tt.volunteer})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRatingTargetRule(t *testing.T) {
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)

	charity := seed.Charity("Shelter")
	project := seed.Project(charity, db.ProjectActive)
	team := seed.Team(project, 3)
	volunteer := seed.Volunteer("alice")

	tests := []struct {
		name    string
		op      RateOp
		wantErr error
	}{
		{"existing team", RateOp{TargetType: db.RatedTeam, TargetID: team}, nil},
		{"existing project", RateOp{TargetType: db.RatedProject, TargetID: project}, nil},
		{"existing volunteer", RateOp{TargetType: db.RatedVolunteer, TargetID: volunteer}, nil},
		{"existing charity", RateOp{TargetType: db.RatedCharity, TargetID: charity}, nil},
		{"missing team", RateOp{TargetType: db.RatedTeam, TargetID: "no-such-team"}, apperr.ErrDanglingReference},
		{"id of the wrong type", RateOp{TargetType: db.RatedVolunteer, TargetID: charity}, apperr.ErrDanglingReference},
		{"unknown type", RateOp{TargetType: "sponsor", TargetID: team}, apperr.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(t, store, tt.op)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApprovalRule(t *testing.T) {
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)

	owner := seed.Charity("Shelter")
	otherCharity := seed.Charity("Library")
	admin := seed.Admin("root")
	volunteer := seed.Volunteer("alice")
	project := seed.Project(owner, db.ProjectActive)
	team := seed.Team(project, 3)

	inactiveAdmin := seed.Admin("retired")
	seed.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.SetUserActive(ctx, inactiveAdmin, false)
	})

	onProject := &db.ActivityLog{ID: "a1", VolunteerID: volunteer, ProjectID: &project}
	onTeam := &db.ActivityLog{ID: "a2", VolunteerID: volunteer, TeamID: &team}
	unattributed := &db.ActivityLog{ID: "a3", VolunteerID: volunteer}

	tests := []struct {
		name     string
		activity *db.ActivityLog
		approver string
		wantErr  bool
	}{
		{"owner approves project activity", onProject, owner, false},
		{"owner approves team activity", onTeam, owner, false},
		{"admin approves anything", unattributed, admin, false},
		{"other charity", onProject, otherCharity, true},
		{"other charity via team", onTeam, otherCharity, true},
		{"charity on unattributed activity", unattributed, owner, true},
		{"volunteer", onProject, volunteer, true},
		{"inactive admin", onProject, inactiveAdmin, true},
		{"unknown approver", onProject, "ghost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(t, store, ApproveOp{Activity: tt.activity, ApproverID: tt.approver})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrUnauthorized)
		})
	}
}

func TestCompensateLeave(t *testing.T) {
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)

	team := seed.Team(seed.Project(seed.Charity("Shelter"), db.ProjectActive), 3)
	leader := seed.Volunteer("alice")
	other := seed.Volunteer("bob")
	seed.Member(team, leader)
	seed.Member(team, other)
	seed.Leader(team, leader)

	engine := NewEngine(zap.NewNop())

	seed.Do(func(ctx context.Context, tx db.Tx) error {
		cleared, err := engine.CompensateLeave(ctx, tx, team, other)
		assert.False(t, cleared)
		return err
	})
	got := sqlitetest.Read(t, store, func(ctx context.Context, tx db.Tx) (*db.Team, error) {
		return tx.GetTeam(ctx, team)
	})
	require.NotNil(t, got.TeamLeaderID)
	assert.Equal(t, leader, *got.TeamLeaderID)

	seed.Do(func(ctx context.Context, tx db.Tx) error {
		cleared, err := engine.CompensateLeave(ctx, tx, team, leader)
		assert.True(t, cleared)
		return err
	})
	got = sqlitetest.Read(t, store, func(ctx context.Context, tx db.Tx) (*db.Team, error) {
		return tx.GetTeam(ctx, team)
	})
	assert.Nil(t, got.TeamLeaderID)
}

type denyAll struct{}

func (denyAll) Name() string              { return "DenyAll" }
func (denyAll) Applies(op Operation) bool { return true }
func (denyAll) Check(ctx context.Context, tx db.Tx, op Operation) error {
	return apperr.New(apperr.CodeUnauthorized, "closed for maintenance")
}

func TestEngine_ExtraRulesRunAfterBuiltIns(t *testing.T) {
	store := sqlitetest.Open(t)
	seed := sqlitetest.NewSeeder(t, store)
	team := seed.Team(seed.Project(seed.Charity("Shelter"), db.ProjectActive), 1)
	seed.Member(team, seed.Volunteer("alice"))

	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	engine := NewEngine(zap.NewNop(), denyAll{})

	// capacity fires first
	err = engine.Validate(ctx, tx, JoinOp{TeamID: team, VolunteerID: "x"})
	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)

	err = engine.Validate(ctx, tx, RateOp{TargetType: db.RatedTeam, TargetID: team})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
