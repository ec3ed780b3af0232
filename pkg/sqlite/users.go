package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jakechorley/charity-hub/pkg/db"
)

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at`

func scanUser(row scanner) (*db.User, error) {
	var u db.User
	var role string
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.IsActive, &createdAt); err != nil {
		return nil, err
	}
	u.Role = db.Role(role)
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

func (t *tx) InsertUser(ctx context.Context, user *db.User) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, full_name, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.PasswordHash, user.FullName, string(user.Role), boolToInt(user.IsActive), toMillis(user.CreatedAt))
	if err != nil {
		return wrapErr("insert user", err)
	}
	return nil
}

func (t *tx) GetUser(ctx context.Context, id string) (*db.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr("get user", err)
	}
	return u, nil
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	u, err := scanUser(t.tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, wrapErr("get user by email", err)
	}
	return u, nil
}

func (t *tx) SetUserActive(ctx context.Context, id string, active bool) error {
	return t.execOne(ctx, "set user active", `UPDATE users SET is_active = ? WHERE id = ?`, boolToInt(active), id)
}

func (t *tx) DeleteUser(ctx context.Context, id string) error {
	return t.execOne(ctx, "delete user", `DELETE FROM users WHERE id = ?`, id)
}

func (t *tx) CountUsersByRole(ctx context.Context, role db.Role) (int, error) {
	var count int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&count); err != nil {
		return 0, wrapErr("count users", err)
	}
	return count, nil
}

func (t *tx) InsertVolunteerProfile(ctx context.Context, profile *db.VolunteerProfile) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO volunteer_profiles (user_id, bio, points, last_activity) VALUES (?, ?, ?, ?)
	`, profile.UserID, profile.Bio, profile.Points, nullMillis(profile.LastActivity))
	if err != nil {
		return wrapErr("insert volunteer profile", err)
	}
	return nil
}

// GetVolunteerProfile retrieves a volunteer profile by user ID
func (t *tx) GetVolunteerProfile(ctx context.Context, userID string) (*db.VolunteerProfile, error) {
	var p db.VolunteerProfile
	var lastActivity sql.NullInt64
	err := t.tx.QueryRowContext(ctx, `
		SELECT user_id, bio, points, last_activity FROM volunteer_profiles WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.Bio, &p.Points, &lastActivity)
	if err != nil {
		return nil, wrapErr("get volunteer profile", err)
	}
	p.LastActivity = timePtr(lastActivity)
	return &p, nil
}

// LockVolunteerProfile is a plain read: the immediate transaction already
// holds the database write lock
func (t *tx) LockVolunteerProfile(ctx context.Context, userID string) (*db.VolunteerProfile, error) {
	return t.GetVolunteerProfile(ctx, userID)
}

func (t *tx) SetVolunteerPoints(ctx context.Context, userID string, points int, lastActivity *time.Time) error {
	return t.execOne(ctx, "set volunteer points", `
		UPDATE volunteer_profiles SET points = ?, last_activity = ? WHERE user_id = ?
	`, points, nullMillis(lastActivity), userID)
}

func (t *tx) ListVolunteerIDs(ctx context.Context) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT user_id FROM volunteer_profiles ORDER BY user_id`)
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

func (t *tx) InsertCharityProfile(ctx context.Context, profile *db.CharityProfile) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO charity_profiles (user_id, organization_name, license_number, is_verified, description)
		VALUES (?, ?, ?, ?, ?)
	`, profile.UserID, profile.OrganizationName, profile.LicenseNumber, boolToInt(profile.IsVerified), profile.Description)
	if err != nil {
		return wrapErr("insert charity profile", err)
	}
	return nil
}

func (t *tx) GetCharityProfile(ctx context.Context, userID string) (*db.CharityProfile, error) {
	var p db.CharityProfile
	err := t.tx.QueryRowContext(ctx, `
		SELECT user_id, organization_name, license_number, is_verified, description
		FROM charity_profiles WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.OrganizationName, &p.LicenseNumber, &p.IsVerified, &p.Description)
	if err != nil {
		return nil, wrapErr("get charity profile", err)
	}
	return &p, nil
}

func (t *tx) SetCharityVerified(ctx context.Context, userID string, verified bool) error {
	return t.execOne(ctx, "set charity verified", `
		UPDATE charity_profiles SET is_verified = ? WHERE user_id = ?
	`, boolToInt(verified), userID)
}
