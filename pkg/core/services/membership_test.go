package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
)

func (f *fixture) join(t *testing.T, teamID, volunteerID string) (*db.TeamMembership, error) {
	var membership *db.TeamMembership
	err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		var err error
		membership, err = Join(ctx, tx, f.engine, f.logger, volunteerActor(volunteerID), teamID, volunteerID)
		return err
	})
	return membership, err
}

func (f *fixture) leave(t *testing.T, teamID, volunteerID string) (*LeaveResult, error) {
	var result *LeaveResult
	err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		var err error
		result, err = Leave(ctx, tx, f.engine, f.logger, volunteerActor(volunteerID), teamID, volunteerID)
		return err
	})
	return result, err
}

func TestJoin(t *testing.T) {
	f := newFixture(t)
	team := f.seed.Team(f.seed.Project(f.seed.Charity("Shelter"), db.ProjectActive), 2)
	alice := f.seed.Volunteer("alice")

	membership, err := f.join(t, team, alice)
	require.NoError(t, err)
	assert.True(t, membership.IsActive)
	assert.Equal(t, alice, membership.VolunteerID)

	_, err = f.join(t, team, alice)
	assert.ErrorIs(t, err, apperr.ErrAlreadyMember)
	assert.Equal(t, 1, f.activeCount(t, team))
}

func TestJoin_CapacityNeverExceeded(t *testing.T) {
	f := newFixture(t)
	team := f.seed.Team(f.seed.Project(f.seed.Charity("Shelter"), db.ProjectActive), 3)

	var rejected int
	for i := 0; i < 6; i++ {
		_, err := f.join(t, team, f.seed.Volunteer("volunteer"))
		if err != nil {
			assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
			rejected++
		}
		assert.LessOrEqual(t, f.activeCount(t, team), 3)
	}
	assert.Equal(t, 3, rejected)
}

func TestJoin_ConcurrentRaceForLastSlot(t *testing.T) {
	f := newFixture(t)
	team := f.seed.Team(f.seed.Project(f.seed.Charity("Shelter"), db.ProjectActive), 2)
	f.seed.Member(team, f.seed.Volunteer("existing"))

	volunteers := []string{f.seed.Volunteer("a"), f.seed.Volunteer("b")}
	errs := make([]error, len(volunteers))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, v := range volunteers {
		wg.Add(1)
		go func(i int, volunteerID string) {
			defer wg.Done()
			<-start
			ctx := context.Background()
			tx, err := f.store.Begin(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			if _, err := Join(ctx, tx, f.engine, f.logger, volunteerActor(volunteerID), team, volunteerID); err != nil {
				_ = tx.Rollback(ctx)
				errs[i] = err
				return
			}
			errs[i] = tx.Commit(ctx)
		}(i, v)
	}
	close(start)
	wg.Wait()

	var succeeded, full int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.CodeOf(err) == apperr.CodeCapacityExceeded:
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, full)
	assert.Equal(t, 2, f.activeCount(t, team))
}

func TestJoin_RejoinReactivatesMembership(t *testing.T) {
	f := newFixture(t)
	team := f.seed.Team(f.seed.Project(f.seed.Charity("Shelter"), db.ProjectActive), 2)
	alice := f.seed.Volunteer("alice")

	first, err := f.join(t, team, alice)
	require.NoError(t, err)
	_, err = f.leave(t, team, alice)
	require.NoError(t, err)

	second, err := f.join(t, team, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsActive)
	assert.True(t, first.JoinedAt.Equal(second.JoinedAt))

	members, err := listMembers(t, f, volunteerActor(alice), team, false)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.True(t, first.JoinedAt.Equal(members[0].JoinedAt), "rejoining keeps the first join time")
}

func TestJoin_Rejections(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	open := f.seed.Team(f.seed.Project(charity, db.ProjectActive), 5)
	closed := f.seed.Team(f.seed.Project(charity, db.ProjectCompleted), 5)
	alice := f.seed.Volunteer("alice")
	bob := f.seed.Volunteer("bob")

	_, err := f.join(t, closed, alice)
	assert.ErrorIs(t, err, apperr.ErrProjectClosed)

	_, err = f.join(t, "missing", alice)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := Join(ctx, tx, f.engine, f.logger, volunteerActor(bob), open, alice)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	admin := f.seed.Admin("root")
	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := Join(ctx, tx, f.engine, f.logger, adminActor(admin), open, admin)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound, "admins have no volunteer profile")

	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := Join(ctx, tx, f.engine, f.logger, adminActor(admin), open, bob)
		return err
	})
	assert.NoError(t, err, "admins may enrol a volunteer")
}

func TestLeave_NotMember(t *testing.T) {
	f := newFixture(t)
	team := f.seed.Team(f.seed.Project(f.seed.Charity("Shelter"), db.ProjectActive), 2)
	alice := f.seed.Volunteer("alice")

	_, err := f.leave(t, team, alice)
	assert.ErrorIs(t, err, apperr.ErrNotMember)

	_, err = f.join(t, team, alice)
	require.NoError(t, err)
	_, err = f.leave(t, team, alice)
	require.NoError(t, err)

	_, err = f.leave(t, team, alice)
	assert.ErrorIs(t, err, apperr.ErrNotMember)
}

func TestLeave_ClearsLeader(t *testing.T) {
	f := newFixture(t)
	team := f.seed.Team(f.seed.Project(f.seed.Charity("Shelter"), db.ProjectActive), 3)
	leader := f.seed.Volunteer("alice")
	member := f.seed.Volunteer("bob")
	f.seed.Member(team, leader)
	f.seed.Member(team, member)
	f.seed.Leader(team, leader)

	result, err := f.leave(t, team, member)
	require.NoError(t, err)
	assert.False(t, result.LeaderCleared)
	require.NotNil(t, f.team(t, team).TeamLeaderID)

	result, err = f.leave(t, team, leader)
	require.NoError(t, err)
	assert.True(t, result.LeaderCleared)
	assert.False(t, result.Membership.IsActive)
	assert.Nil(t, f.team(t, team).TeamLeaderID)
}

func TestLeave_OwnerMayRemoveMember(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	other := f.seed.Charity("Library")
	team := f.seed.Team(f.seed.Project(charity, db.ProjectActive), 3)
	alice := f.seed.Volunteer("alice")
	f.seed.Member(team, alice)

	err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := Leave(ctx, tx, f.engine, f.logger, charityActor(other), team, alice)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := Leave(ctx, tx, f.engine, f.logger, charityActor(charity), team, alice)
		return err
	})
	assert.NoError(t, err)
	assert.Zero(t, f.activeCount(t, team))
}

func TestAssignLeader(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	team := f.seed.Team(f.seed.Project(charity, db.ProjectActive), 3)
	alice := f.seed.Volunteer("alice")
	bob := f.seed.Volunteer("bob")
	f.seed.Member(team, alice)

	assign := func(actor, volunteer string) error {
		return inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
			_, err := AssignLeader(ctx, tx, f.engine, f.logger, charityActor(actor), team, volunteer)
			return err
		})
	}

	require.NoError(t, assign(charity, alice))
	require.NotNil(t, f.team(t, team).TeamLeaderID)

	// a non-member is rejected and the previous leader stays
	err := assign(charity, bob)
	assert.ErrorIs(t, err, apperr.ErrInvalidLeader)
	leader := f.team(t, team).TeamLeaderID
	require.NotNil(t, leader)
	assert.Equal(t, alice, *leader)

	err = assign(f.seed.Charity("Library"), alice)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCreateTeam(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	project := f.seed.Project(charity, db.ProjectPending)

	create := func(name string, max int) (*db.Team, error) {
		var team *db.Team
		err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
			var err error
			team, err = CreateTeam(ctx, tx, f.logger, charityActor(charity), project, name, max)
			return err
		})
		return team, err
	}

	team, err := create("Kitchen", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, team.MaxMembers)
	assert.Nil(t, team.TeamLeaderID)

	_, err = create("Kitchen", 2)
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	_, err = create("Garden", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidValue)

	_, err = create("  ", 3)
	assert.ErrorIs(t, err, apperr.ErrInvalidValue)
}

func listMembers(t *testing.T, f *fixture, actor model.Actor, teamID string, activeOnly bool) ([]db.TeamMembership, error) {
	var members []db.TeamMembership
	err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		var err error
		members, err = ListMembers(ctx, tx, actor, teamID, activeOnly)
		return err
	})
	return members, err
}

func TestListMembers(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	team := f.seed.Team(f.seed.Project(charity, db.ProjectActive), 3)
	alice := f.seed.Volunteer("alice")
	bob := f.seed.Volunteer("bob")
	f.seed.Member(team, alice)
	f.seed.Member(team, bob)
	_, err := f.leave(t, team, bob)
	require.NoError(t, err)

	all, err := listMembers(t, f, charityActor(charity), team, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := listMembers(t, f, volunteerActor(alice), team, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, alice, active[0].VolunteerID)

	_, err = listMembers(t, f, volunteerActor(bob), team, true)
	assert.ErrorIs(t, err, apperr.ErrNotMember)
	_, err = listMembers(t, f, charityActor(f.seed.Charity("Other")), team, true)
	assert.ErrorIs(t, err, apperr.ErrNotMember)

	_, err = listMembers(t, f, adminActor(f.seed.Admin("root")), "missing", true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
