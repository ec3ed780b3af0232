package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/charity-hub/pkg/core/invariants"
	"github.com/jakechorley/charity-hub/pkg/core/model"
	"github.com/jakechorley/charity-hub/pkg/db"
	"github.com/jakechorley/charity-hub/pkg/sqlite/sqlitetest"
)

type fixture struct {
	store  db.Store
	seed   *sqlitetest.Seeder
	engine *invariants.Engine
	logger *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	store := sqlitetest.Open(t)
	return &fixture{
		store:  store,
		seed:   sqlitetest.NewSeeder(t, store),
		engine: invariants.NewEngine(zap.NewNop()),
		logger: zap.NewNop(),
	}
}

// inTx runs fn in a transaction, committing only when fn succeeds
func inTx(t *testing.T, store db.Store, fn func(ctx context.Context, tx db.Tx) error) error {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	if err := fn(ctx, tx); err != nil {
		require.NoError(t, tx.Rollback(ctx))
		return err
	}
	return tx.Commit(ctx)
}

func volunteerActor(id string) model.Actor { return model.Actor{UserID: id, Role: db.RoleVolunteer} }
func charityActor(id string) model.Actor   { return model.Actor{UserID: id, Role: db.RoleCharity} }
func adminActor(id string) model.Actor     { return model.Actor{UserID: id, Role: db.RoleAdmin} }

func (f *fixture) team(t *testing.T, id string) *db.Team {
	return sqlitetest.Read(t, f.store, func(ctx context.Context, tx db.Tx) (*db.Team, error) {
		return tx.GetTeam(ctx, id)
	})
}

func (f *fixture) profile(t *testing.T, id string) *db.VolunteerProfile {
	return sqlitetest.Read(t, f.store, func(ctx context.Context, tx db.Tx) (*db.VolunteerProfile, error) {
		return tx.GetVolunteerProfile(ctx, id)
	})
}

func (f *fixture) activeCount(t *testing.T, teamID string) int {
	return sqlitetest.Read(t, f.store, func(ctx context.Context, tx db.Tx) (int, error) {
		return tx.CountActiveMemberships(ctx, teamID)
	})
}

func strPtr(s string) *string { return &s }
