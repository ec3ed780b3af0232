// Package sqlitetest opens throwaway SQLite stores and seeds rows for tests
package sqlitetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/charity-hub/pkg/db"
	"github.com/jakechorley/charity-hub/pkg/sqlite"
)

// Open creates a migrated store in the test's temp dir, closed on cleanup
func Open(t *testing.T) *sqlite.DB {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "charity_hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Seeder writes fixture rows, one committed transaction per call
type Seeder struct {
	t     *testing.T
	store db.Store
}

func NewSeeder(t *testing.T, store db.Store) *Seeder {
	return &Seeder{t: t, store: store}
}

// Do runs fn in its own committed transaction
func (s *Seeder) Do(fn func(ctx context.Context, tx db.Tx) error) {
	s.t.Helper()
	ctx := context.Background()
	tx, err := s.store.Begin(ctx)
	require.NoError(s.t, err)
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, tx.Commit(ctx))
}

func (s *Seeder) user(name string, role db.Role) string {
	id := uuid.New().String()
	s.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.InsertUser(ctx, &db.User{
			ID:           id,
			Email:        name + "-" + id[:8] + "@example.org",
			PasswordHash: "hash",
			FullName:     name,
			Role:         role,
			IsActive:     true,
			CreatedAt:    time.Now().UTC(),
		})
	})
	return id
}

// Volunteer creates a volunteer user with an empty profile
func (s *Seeder) Volunteer(name string) string {
	id := s.user(name, db.RoleVolunteer)
	s.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.InsertVolunteerProfile(ctx, &db.VolunteerProfile{UserID: id})
	})
	return id
}

// Charity creates a verified charity user with its profile
func (s *Seeder) Charity(name string) string {
	id := s.user(name, db.RoleCharity)
	s.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.InsertCharityProfile(ctx, &db.CharityProfile{
			UserID:           id,
			OrganizationName: name,
			LicenseNumber:    "LIC-" + id[:8],
			IsVerified:       true,
		})
	})
	return id
}

func (s *Seeder) Admin(name string) string {
	return s.user(name, db.RoleAdmin)
}

// Project creates a project owned by charityID
func (s *Seeder) Project(charityID string, status db.ProjectStatus) string {
	id := uuid.New().String()
	s.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.InsertProject(ctx, &db.Project{
			ID:                 id,
			CharityID:          charityID,
			Title:              "Project " + id[:8],
			Status:             status,
			RequiredVolunteers: 5,
			CreatedAt:          time.Now().UTC(),
		})
	})
	return id
}

// Team creates a team with no leader
func (s *Seeder) Team(projectID string, maxMembers int) string {
	id := uuid.New().String()
	s.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.InsertTeam(ctx, &db.Team{
			ID:         id,
			ProjectID:  projectID,
			Name:       "Team " + id[:8],
			MaxMembers: maxMembers,
			CreatedAt:  time.Now().UTC(),
		})
	})
	return id
}

// Member adds an active membership without any capacity check
func (s *Seeder) Member(teamID, volunteerID string) string {
	id := uuid.New().String()
	s.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.InsertMembership(ctx, &db.TeamMembership{
			ID:          id,
			TeamID:      teamID,
			VolunteerID: volunteerID,
			IsActive:    true,
			JoinedAt:    time.Now().UTC(),
		})
	})
	return id
}

// Leader sets the team leader directly
func (s *Seeder) Leader(teamID, volunteerID string) {
	s.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.SetTeamLeader(ctx, teamID, &volunteerID)
	})
}

// Activity logs a pending activity
func (s *Seeder) Activity(volunteerID string, projectID, teamID *string, minutes int) string {
	id := uuid.New().String()
	now := time.Now().UTC()
	s.Do(func(ctx context.Context, tx db.Tx) error {
		return tx.InsertActivity(ctx, &db.ActivityLog{
			ID:              id,
			VolunteerID:     volunteerID,
			ProjectID:       projectID,
			TeamID:          teamID,
			ActivityType:    db.ActivityHoursLogged,
			DurationMinutes: minutes,
			ActivityDate:    now,
			CreatedAt:       now,
		})
	})
	return id
}

// Read runs fn in a transaction that is rolled back afterwards
func Read[T any](t *testing.T, store db.Store, fn func(ctx context.Context, tx db.Tx) (T, error)) T {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	value, err := fn(ctx, tx)
	require.NoError(t, err)
	return value
}
