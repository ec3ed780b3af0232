package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/charity-hub/pkg/db"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, db.ErrNotFound},
		{"serialization failure", &pgconn.PgError{Code: codeSerializationFailure}, db.ErrConflict},
		{"deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, db.ErrConflict},
		{"lock not available", &pgconn.PgError{Code: codeLockNotAvailable}, db.ErrConflict},
		{"unique violation", &pgconn.PgError{Code: codeUniqueViolation}, db.ErrAlreadyExists},
		{"foreign key violation", fmt.Errorf("exec: %w", &pgconn.PgError{Code: codeForeignKeyViolation}), db.ErrReferenced},
		{"syntax error", &pgconn.PgError{Code: "42601"}, nil},
		{"plain error", errors.New("connection reset"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestWrapErr_KeepsDriverError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: codeUniqueViolation, Message: "duplicate key"}
	err := wrapErr("insert user", pgErr)

	assert.ErrorIs(t, err, db.ErrAlreadyExists)
	var target *pgconn.PgError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, codeUniqueViolation, target.Code)
	assert.Contains(t, err.Error(), "failed to insert user")
}

// TestStore_Integration runs against a live database when
// CHARITY_HUB_TEST_POSTGRES_URL is set
func TestStore_Integration(t *testing.T) {
	url := os.Getenv("CHARITY_HUB_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("CHARITY_HUB_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()

	store, err := NewDB(ctx, url)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.RunMigrations(ctx))
	require.NoError(t, store.RunMigrations(ctx), "migrations are idempotent")

	suffix := uuid.New().String()
	userID := "vol-" + suffix
	adminID := "admin-" + suffix

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	for _, u := range []db.User{
		{ID: userID, Email: userID + "@example.org", PasswordHash: "x", FullName: "Vol", Role: db.RoleVolunteer, IsActive: true, CreatedAt: time.Now()},
		{ID: adminID, Email: adminID + "@example.org", PasswordHash: "x", FullName: "Admin", Role: db.RoleAdmin, IsActive: true, CreatedAt: time.Now()},
	} {
		require.NoError(t, tx.InsertUser(ctx, &u))
	}
	require.NoError(t, tx.InsertVolunteerProfile(ctx, &db.VolunteerProfile{UserID: userID}))
	activityID := uuid.New().String()
	require.NoError(t, tx.InsertActivity(ctx, &db.ActivityLog{
		ID: activityID, VolunteerID: userID, ActivityType: db.ActivityHoursLogged,
		DurationMinutes: 60, ActivityDate: time.Now(), CreatedAt: time.Now(),
	}))
	require.NoError(t, tx.Commit(ctx))

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = tx.InsertUser(ctx, &db.User{ID: uuid.New().String(), Email: userID + "@example.org", Role: db.RoleVolunteer, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, db.ErrAlreadyExists)
	require.NoError(t, tx.Rollback(ctx))

	tx, err = store.Begin(ctx)
	require.NoError(t, err)
	activity, err := tx.LockActivity(ctx, activityID)
	require.NoError(t, err)
	assert.False(t, activity.Approved())
	require.NoError(t, tx.ApproveActivity(ctx, activityID, adminID, 4))
	assert.ErrorIs(t, tx.ApproveActivity(ctx, activityID, adminID, 4), db.ErrNotFound)
	sum, err := tx.SumApprovedPoints(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 4, sum)
	require.NoError(t, tx.Commit(ctx))
}
