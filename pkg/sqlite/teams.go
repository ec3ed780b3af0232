package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jakechorley/charity-hub/pkg/db"
)

const teamColumns = `id, project_id, name, max_members, team_leader_id, created_at`

func scanTeam(row scanner) (*db.Team, error) {
	var team db.Team
	var leaderID sql.NullString
	var createdAt int64
	if err := row.Scan(&team.ID, &team.ProjectID, &team.Name, &team.MaxMembers, &leaderID, &createdAt); err != nil {
		return nil, err
	}
	team.TeamLeaderID = stringPtr(leaderID)
	team.CreatedAt = fromMillis(createdAt)
	return &team, nil
}

func (t *tx) InsertTeam(ctx context.Context, team *db.Team) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO teams (id, project_id, name, max_members, team_leader_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, team.ID, team.ProjectID, team.Name, team.MaxMembers, nullString(team.TeamLeaderID), toMillis(team.CreatedAt))
	if err != nil {
		return wrapErr("insert team", err)
	}
	return nil
}

func (t *tx) GetTeam(ctx context.Context, id string) (*db.Team, error) {
	team, err := scanTeam(t.tx.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id))
	if err != nil {
		return nil, wrapErr("get team", err)
	}
	return team, nil
}

// LockTeam is a plain read: the immediate transaction already holds the
// database write lock, so no other writer can change the team or its
// memberships before commit
func (t *tx) LockTeam(ctx context.Context, id string) (*db.Team, error) {
	return t.GetTeam(ctx, id)
}

func (t *tx) SetTeamLeader(ctx context.Context, teamID string, leaderID *string) error {
	return t.execOne(ctx, "set team leader", `UPDATE teams SET team_leader_id = ? WHERE id = ?`, nullString(leaderID), teamID)
}

func (t *tx) ListTeamsByProject(ctx context.Context, projectID string) ([]db.Team, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE project_id = ? ORDER BY name`, projectID)
	if err != nil {
		return nil, wrapErr("query teams", err)
	}
	defer rows.Close()

	var teams []db.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *team)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterate teams", err)
	}
	return teams, nil
}

const membershipColumns = `id, team_id, volunteer_id, is_active, joined_at`

func scanMembership(row scanner) (*db.TeamMembership, error) {
	var m db.TeamMembership
	var joinedAt int64
	if err := row.Scan(&m.ID, &m.TeamID, &m.VolunteerID, &m.IsActive, &joinedAt); err != nil {
		return nil, err
	}
	m.JoinedAt = fromMillis(joinedAt)
	return &m, nil
}

func (t *tx) queryMemberships(ctx context.Context, action, query string, args ...any) ([]db.TeamMembership, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(action, err)
	}
	defer rows.Close()

	var memberships []db.TeamMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(action, err)
	}
	return memberships, nil
}

func (t *tx) GetMembership(ctx context.Context, teamID, volunteerID string) (*db.TeamMembership, error) {
	m, err := scanMembership(t.tx.QueryRowContext(ctx, `
		SELECT `+membershipColumns+` FROM team_memberships WHERE team_id = ? AND volunteer_id = ?
	`, teamID, volunteerID))
	if err != nil {
		return nil, wrapErr("get membership", err)
	}
	return m, nil
}

func (t *tx) InsertMembership(ctx context.Context, membership *db.TeamMembership) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO team_memberships (id, team_id, volunteer_id, is_active, joined_at)
		VALUES (?, ?, ?, ?, ?)
	`, membership.ID, membership.TeamID, membership.VolunteerID, boolToInt(membership.IsActive), toMillis(membership.JoinedAt))
	if err != nil {
		return wrapErr("insert membership", err)
	}
	return nil
}

func (t *tx) ActivateMembership(ctx context.Context, id string) error {
	return t.execOne(ctx, "activate membership", `UPDATE team_memberships SET is_active = 1 WHERE id = ?`, id)
}

func (t *tx) DeactivateMembership(ctx context.Context, id string) error {
	return t.execOne(ctx, "deactivate membership", `UPDATE team_memberships SET is_active = 0 WHERE id = ?`, id)
}

func (t *tx) CountActiveMemberships(ctx context.Context, teamID string) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM team_memberships WHERE team_id = ? AND is_active = 1
	`, teamID).Scan(&count)
	if err != nil {
		return 0, wrapErr("count active memberships", err)
	}
	return count, nil
}

func (t *tx) ListTeamMemberships(ctx context.Context, teamID string) ([]db.TeamMembership, error) {
	return t.queryMemberships(ctx, "query memberships", `
		SELECT `+membershipColumns+` FROM team_memberships WHERE team_id = ? ORDER BY joined_at, id
	`, teamID)
}

func (t *tx) ListActiveMembershipsByVolunteer(ctx context.Context, volunteerID string) ([]db.TeamMembership, error) {
	return t.queryMemberships(ctx, "query volunteer memberships", `
		SELECT `+membershipColumns+` FROM team_memberships WHERE volunteer_id = ? AND is_active = 1 ORDER BY joined_at, id
	`, volunteerID)
}
