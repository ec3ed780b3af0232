package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/charity-hub/pkg/db"
)

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (*db.User, error) {
	var u db.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = db.Role(role)
	return &u, nil
}

// InsertUser inserts a new user record
func (t *tx) InsertUser(ctx context.Context, user *db.User) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.PasswordHash, user.FullName, string(user.Role), user.IsActive, user.CreatedAt.UTC())
	if err != nil {
		return wrapErr("insert user", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (t *tx) GetUser(ctx context.Context, id string) (*db.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get user", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email address
func (t *tx) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, wrapErr("get user by email", err)
	}
	return u, nil
}

// SetUserActive toggles the user's active flag
func (t *tx) SetUserActive(ctx context.Context, id string, active bool) error {
	return t.execOne(ctx, "set user active", `UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
}

// DeleteUser removes a user row; dependent rows follow the schema's cascade rules
func (t *tx) DeleteUser(ctx context.Context, id string) error {
	return t.execOne(ctx, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

// CountUsersByRole counts users with the given role
func (t *tx) CountUsersByRole(ctx context.Context, role db.Role) (int, error) {
	var count int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&count); err != nil {
		return 0, wrapErr("count users", err)
	}
	return count, nil
}

// InsertVolunteerProfile inserts the profile of a volunteer user
func (t *tx) InsertVolunteerProfile(ctx context.Context, profile *db.VolunteerProfile) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO volunteer_profiles (user_id, bio, points, last_activity)
		VALUES ($1, $2, $3, $4)
	`, profile.UserID, profile.Bio, profile.Points, utcPtr(profile.LastActivity))
	if err != nil {
		return wrapErr("insert volunteer profile", err)
	}
	return nil
}

func (t *tx) getVolunteerProfile(ctx context.Context, action, query, userID string) (*db.VolunteerProfile, error) {
	var p db.VolunteerProfile
	err := t.tx.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Bio, &p.Points, &p.LastActivity)
	if err != nil {
		return nil, wrapErr(action, err)
	}
	return &p, nil
}

// GetVolunteerProfile retrieves a volunteer profile by user ID
func (t *tx) GetVolunteerProfile(ctx context.Context, userID string) (*db.VolunteerProfile, error) {
	return t.getVolunteerProfile(ctx, "get volunteer profile", `
		SELECT user_id, bio, points, last_activity FROM volunteer_profiles WHERE user_id = $1
	`, userID)
}

// LockVolunteerProfile retrieves a volunteer profile with a row lock
func (t *tx) LockVolunteerProfile(ctx context.Context, userID string) (*db.VolunteerProfile, error) {
	return t.getVolunteerProfile(ctx, "lock volunteer profile", `
		SELECT user_id, bio, points, last_activity FROM volunteer_profiles WHERE user_id = $1 FOR UPDATE
	`, userID)
}

// SetVolunteerPoints overwrites the cached point balance and last activity time
func (t *tx) SetVolunteerPoints(ctx context.Context, userID string, points int, lastActivity *time.Time) error {
	return t.execOne(ctx, "set volunteer points", `
		UPDATE volunteer_profiles SET points = $2, last_activity = $3 WHERE user_id = $1
	`, userID, points, utcPtr(lastActivity))
}

// ListVolunteerIDs returns the IDs of all volunteer profiles
func (t *tx) ListVolunteerIDs(ctx context.Context) ([]string, error) {
	rows, err := t.tx.Query(ctx, `SELECT user_id FROM volunteer_profiles ORDER BY user_id`)
	if err != nil {
		return nil, wrapErr("query volunteer ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan volunteer id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate volunteer ids", err)
	}
	return ids, nil
}

// InsertCharityProfile inserts the profile of a charity user
func (t *tx) InsertCharityProfile(ctx context.Context, profile *db.CharityProfile) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO charity_profiles (user_id, organization_name, license_number, is_verified, description)
		VALUES ($1, $2, $3, $4, $5)
	`, profile.UserID, profile.OrganizationName, profile.LicenseNumber, profile.IsVerified, profile.Description)
	if err != nil {
		return wrapErr("insert charity profile", err)
	}
	return nil
}

// GetCharityProfile retrieves a charity profile by user ID
func (t *tx) GetCharityProfile(ctx context.Context, userID string) (*db.CharityProfile, error) {
	var p db.CharityProfile
	err := t.tx.QueryRow(ctx, `
		SELECT user_id, organization_name, license_number, is_verified, description
		FROM charity_profiles WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.OrganizationName, &p.LicenseNumber, &p.IsVerified, &p.Description)
	if err != nil {
		return nil, wrapErr("get charity profile", err)
	}
	return &p, nil
}

// SetCharityVerified sets the verification flag of a charity
func (t *tx) SetCharityVerified(ctx context.Context, userID string, verified bool) error {
	return t.execOne(ctx, "set charity verified", `
		UPDATE charity_profiles SET is_verified = $2 WHERE user_id = $1
	`, userID, verified)
}

func utcPtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	u := v.UTC()
	return &u
}
