package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/charity-hub/pkg/core/apperr"
	"github.com/jakechorley/charity-hub/pkg/db"
)

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	admin := adminActor(f.seed.Admin("root"))
	volunteer := f.seed.Volunteer("alice")

	for _, points := range []int{4, 6, 0} {
		activity := f.seed.Activity(volunteer, nil, nil, 30)
		_, err := f.approve(t, admin, activity, points)
		require.NoError(t, err)
	}
	f.seed.Activity(volunteer, nil, nil, 30) // pending rows never count

	reconcile := func() *ReconcileResult {
		var result *ReconcileResult
		require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
			var err error
			result, err = Reconcile(ctx, tx, f.logger, admin, volunteer)
			return err
		}))
		return result
	}

	result := reconcile()
	assert.False(t, result.Drifted)
	assert.Equal(t, 10, result.Cached)
	assert.Equal(t, 10, result.Recomputed)

	// corrupt the cache behind the service's back
	f.seed.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.SetVolunteerPoints(ctx, volunteer, 99, nil)
	})

	result = reconcile()
	assert.True(t, result.Drifted)
	assert.Equal(t, 99, result.Cached)
	assert.Equal(t, 10, result.Recomputed)
	assert.Equal(t, 10, f.profile(t, volunteer).Points)

	err := inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := Reconcile(ctx, tx, f.logger, volunteerActor(volunteer), volunteer)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestBalanceMatchesApprovedLog(t *testing.T) {
	f := newFixture(t)
	charity := f.seed.Charity("Shelter")
	project := f.seed.Project(charity, db.ProjectActive)
	volunteers := []string{f.seed.Volunteer("a"), f.seed.Volunteer("b"), f.seed.Volunteer("c")}

	for i, v := range volunteers {
		for j := 0; j <= i; j++ {
			activity := f.seed.Activity(v, &project, nil, 15)
			points := (i + 1) * (j + 2)
			_, err := f.approve(t, charityActor(charity), activity, points)
			require.NoError(t, err)
			// retries of the same approval must not change anything
			_, err = f.approve(t, charityActor(charity), activity, points+100)
			require.NoError(t, err)
		}
		f.seed.Activity(v, &project, nil, 15)
	}

	for _, v := range volunteers {
		sum := 0
		require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
			var err error
			sum, err = tx.SumApprovedPoints(ctx, v)
			return err
		}))
		assert.Equal(t, sum, f.profile(t, v).Points)
	}
}

func TestVolunteerPointsAndListing(t *testing.T) {
	f := newFixture(t)
	admin := adminActor(f.seed.Admin("root"))
	alice := f.seed.Volunteer("alice")
	bob := f.seed.Volunteer("bob")
	f.seed.Charity("Shelter")

	_, err := f.approve(t, admin, f.seed.Activity(alice, nil, nil, 60), 7)
	require.NoError(t, err)

	var profile *db.VolunteerProfile
	require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		var err error
		profile, err = VolunteerPoints(ctx, tx, volunteerActor(alice), alice)
		return err
	}))
	assert.Equal(t, 7, profile.Points)

	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := VolunteerPoints(ctx, tx, volunteerActor(bob), alice)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := VolunteerPoints(ctx, tx, admin, "missing")
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	var ids []string
	require.NoError(t, inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		var err error
		ids, err = ListVolunteerIDs(ctx, tx, admin)
		return err
	}))
	assert.ElementsMatch(t, []string{alice, bob}, ids)

	err = inTx(t, f.store, func(ctx context.Context, tx db.Tx) error {
		_, err := ListVolunteerIDs(ctx, tx, volunteerActor(alice))
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
